package server

import (
	"io"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	eventdomain "github.com/smallbiznis/referral/internal/event/domain"
	"github.com/smallbiznis/referral/internal/productcontext"
)

// maxEventBodyBytes bounds one ingestion request body.
const maxEventBodyBytes = 1 << 20

func (s *Server) IngestEvent(c *gin.Context) {
	productID, ok := productcontext.ProductIDFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrProductRequired)
		return
	}

	body, err := io.ReadAll(io.LimitReader(c.Request.Body, maxEventBodyBytes))
	if err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	cmd, err := eventdomain.ParseCommand(body)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Set("event_type", string(cmd.EventType))
	if signup, ok := cmd.Payload.(eventdomain.SignupPayload); ok {
		if code := strings.TrimSpace(signup.ReferralCode); code != "" {
			c.Set("referral_code", code)
		}
	}

	result, err := s.eventSvc.Ingest(c.Request.Context(), productID, cmd)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, result)
}

func (s *Server) GetEvent(c *gin.Context) {
	productID, ok := productcontext.ProductIDFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrProductRequired)
		return
	}

	id, err := parseSnowflakeParam(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	event, err := s.eventSvc.Get(c.Request.Context(), productID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, event)
}
