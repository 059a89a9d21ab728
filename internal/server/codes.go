package server

import (
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/smallbiznis/referral/internal/code"
)

type codeValidationResponse struct {
	Valid  bool   `json:"valid"`
	Code   string `json:"code"`
	Reason string `json:"reason,omitempty"`
}

// ValidateCode reports whether a vanity code is acceptable. Rejection is a
// 200 response carrying the reason.
func (s *Server) ValidateCode(c *gin.Context) {
	raw := strings.TrimSpace(c.Query("code"))
	if raw == "" {
		AbortWithError(c, newValidationError("code", "required", "code is required"))
		return
	}

	resp := codeValidationResponse{Valid: true, Code: code.NormalizeCode(raw)}
	if err := s.codes.ValidateVanity(raw); err != nil {
		resp.Valid = false
		resp.Reason = vanityRejectionReason(err)
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) SuggestCode(c *gin.Context) {
	name := strings.TrimSpace(c.Query("name"))
	if name == "" {
		AbortWithError(c, newValidationError("name", "required", "name is required"))
		return
	}

	suggestion := s.codes.Suggest(name)
	if suggestion == "" {
		c.JSON(http.StatusOK, codeValidationResponse{Reason: code.ErrEmptySuggestion.Error()})
		return
	}

	c.JSON(http.StatusOK, codeValidationResponse{Valid: true, Code: suggestion})
}

func vanityRejectionReason(err error) string {
	switch {
	case errors.Is(err, code.ErrTooShort),
		errors.Is(err, code.ErrTooLong),
		errors.Is(err, code.ErrInvalidCharacters),
		errors.Is(err, code.ErrProfane):
		return err.Error()
	default:
		return "invalid_code"
	}
}
