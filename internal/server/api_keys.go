package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	apikeydomain "github.com/smallbiznis/referral/internal/apikey/domain"
	auditdomain "github.com/smallbiznis/referral/internal/audit/domain"
	"github.com/smallbiznis/referral/internal/audit/masking"
	"github.com/smallbiznis/referral/internal/observability/logger"
	"go.uber.org/zap"
)

type createAPIKeyRequest struct {
	Name   string   `json:"name"`
	Scopes []string `json:"scopes"`
}

func (s *Server) ListAPIKeys(c *gin.Context) {
	keys, err := s.apiKeySvc.List(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": keys})
}

func (s *Server) ListAPIKeyScopes(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"data": apikeydomain.AllScopes()})
}

func (s *Server) CreateAPIKey(c *gin.Context) {
	var req createAPIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.apiKeySvc.Create(c.Request.Context(), apikeydomain.CreateRequest{
		Name:   strings.TrimSpace(req.Name),
		Scopes: req.Scopes,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	logger.FromContext(c.Request.Context()).Info("api key created", zap.String("key_id", resp.KeyID))
	s.recordAudit(c, auditdomain.ActionAPIKeyCreate, auditdomain.TargetAPIKey, resp.KeyID, map[string]any{
		"name":     strings.TrimSpace(req.Name),
		"scopes":   req.Scopes,
		"key_hint": masking.MaskSecret(resp.APIKey),
	})
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RotateAPIKey(c *gin.Context) {
	keyID := strings.TrimSpace(c.Param("key_id"))
	resp, err := s.apiKeySvc.Rotate(c.Request.Context(), keyID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	logger.FromContext(c.Request.Context()).Info("api key rotated",
		zap.String("key_id", resp.KeyID),
		zap.String("rotated_from_key_id", keyID),
	)
	s.recordAudit(c, auditdomain.ActionAPIKeyRotate, auditdomain.TargetAPIKey, resp.KeyID, map[string]any{
		"rotated_from_key_id": keyID,
		"key_hint":            masking.MaskSecret(resp.APIKey),
	})
	c.JSON(http.StatusOK, gin.H{"data": resp})
}

func (s *Server) RevokeAPIKey(c *gin.Context) {
	keyID := strings.TrimSpace(c.Param("key_id"))
	if err := s.apiKeySvc.Revoke(c.Request.Context(), keyID); err != nil {
		AbortWithError(c, err)
		return
	}

	logger.FromContext(c.Request.Context()).Info("api key revoked", zap.String("key_id", keyID))
	s.recordAudit(c, auditdomain.ActionAPIKeyRevoke, auditdomain.TargetAPIKey, keyID, nil)
	c.Status(http.StatusNoContent)
}
