package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// Redirect answers GET /r/:code with a 307 so the method is preserved.
func (s *Server) Redirect(c *gin.Context) {
	ctx := c.Request.Context()
	code := strings.TrimSpace(c.Param("code"))
	if code != "" {
		c.Set("referral_code", code)
	}

	location, err := s.redirects.Resolve(ctx, code)
	if err != nil {
		status, _ := mapError(err)
		s.obsMetrics.RecordRedirect(ctx, status)
		AbortWithError(c, err)
		return
	}

	s.obsMetrics.RecordRedirect(ctx, http.StatusTemporaryRedirect)
	c.Redirect(http.StatusTemporaryRedirect, location)
}
