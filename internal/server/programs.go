package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/referral/internal/audit/domain"
	"github.com/smallbiznis/referral/internal/observability/logger"
	"github.com/smallbiznis/referral/internal/productcontext"
	programdomain "github.com/smallbiznis/referral/internal/program/domain"
	"go.uber.org/zap"
)

type setProgramStatusRequest struct {
	Status string `json:"status"`
}

func (s *Server) GetProgram(c *gin.Context) {
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

	program, err := s.programSvc.Get(c.Request.Context(), productID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": program})
}

// SetProgramStatus pauses, archives or reactivates a program. Widget init
// and event ingestion only see the active program.
func (s *Server) SetProgramStatus(c *gin.Context) {
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

	var req setProgramStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	status := programdomain.Status(strings.ToLower(strings.TrimSpace(req.Status)))

	ctx := c.Request.Context()
	if err := s.programSvc.SetStatus(ctx, productID, id, status); err != nil {
		AbortWithError(c, err)
		return
	}

	program, err := s.programSvc.Get(ctx, productID, id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	logger.FromContext(ctx).Info("program status updated",
		zap.String("program_id", id.String()),
		zap.String("status", string(status)),
	)
	s.recordAudit(c, auditdomain.ActionProgramStatus, auditdomain.TargetProgram, id.String(), map[string]any{
		"status": string(status),
	})
	c.JSON(http.StatusOK, gin.H{"data": program})
}
