package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	auditdomain "github.com/smallbiznis/referral/internal/audit/domain"
	"github.com/smallbiznis/referral/internal/observability/logger"
	"github.com/smallbiznis/referral/internal/productcontext"
	"go.uber.org/zap"
)

func (s *Server) ListAuditLogs(c *gin.Context) {
	productID, ok := productcontext.ProductIDFromContext(c.Request.Context())
	if !ok {
		AbortWithError(c, ErrProductRequired)
		return
	}
	if s.auditSvc == nil {
		c.JSON(http.StatusOK, gin.H{"data": []auditdomain.AuditLog{}})
		return
	}

	page, err := parsePagination(c)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	items, info, err := s.auditSvc.List(c.Request.Context(), productID, auditdomain.ListRequest{
		Pagination: page,
		Action:     strings.TrimSpace(c.Query("action")),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": items, "page_info": info})
}

// recordAudit appends an audit entry for the authenticated product. Failures
// are logged and never fail the request that already succeeded.
func (s *Server) recordAudit(c *gin.Context, action, targetType, targetID string, metadata map[string]any) {
	if s.auditSvc == nil {
		return
	}
	ctx := c.Request.Context()
	err := s.auditSvc.Record(ctx, auditdomain.Entry{
		Action:     action,
		TargetType: targetType,
		TargetID:   targetID,
		Metadata:   metadata,
	})
	if err != nil {
		logger.FromContext(ctx).Warn("audit log write failed", zap.String("action", action), zap.Error(err))
	}
}
