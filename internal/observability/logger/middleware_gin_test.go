package logger

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
)

func TestRequestLevel(t *testing.T) {
	cases := []struct {
		route     string
		status    int
		errorType string
		want      string
	}{
		{"/health", http.StatusOK, "", "debug"},
		{"/v1/events", http.StatusOK, "", "info"},
		{"/v1/events", http.StatusBadRequest, "validation_error", "debug"},
		{"/v1/widget/init", http.StatusBadRequest, "validation_error", "info"},
		{"/v1/events", http.StatusUnauthorized, "unauthorized", "warn"},
		{"/v1/events", http.StatusTooManyRequests, "rate_limited", "warn"},
		{"/r/:code", http.StatusInternalServerError, "internal_error", "error"},
		{"/metrics", http.StatusInternalServerError, "", "debug"},
	}
	for _, tc := range cases {
		got := requestLevel(tc.route, tc.status, tc.errorType)
		assert.Equal(t, tc.want, got.String(), "%s %d", tc.route, tc.status)
	}
	assert.Equal(t, zap.InfoLevel, requestLevel("/v1/participants", http.StatusOK, ""))
}
