package server

import (
	"strings"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/referral/internal/observability/context"
	"github.com/smallbiznis/referral/internal/productcontext"
)

const (
	actorAPIKey     = "api_key"
	actorWidgetUser = "widget_user"

	contextAPIKeyIDKey = "api_key_id"
)

// APIKeyRequired authenticates requests with a product-scoped API key and
// rejects keys missing the given scope. Product identity comes solely from the
// api_keys table.
func (s *Server) APIKeyRequired(scope string) gin.HandlerFunc {
	return func(c *gin.Context) {
		raw, ok := bearerToken(c)
		if !ok {
			AbortWithError(c, ErrUnauthorized)
			return
		}

		key, err := s.apiKeySvc.Authenticate(c.Request.Context(), raw)
		if err != nil {
			AbortWithError(c, err)
			return
		}
		if scope != "" && !key.HasScope(scope) {
			AbortWithError(c, ErrForbidden)
			return
		}

		ctx := c.Request.Context()
		ctx = productcontext.WithProductID(ctx, key.ProductID)
		ctx = obscontext.WithProductID(ctx, key.ProductID.String())
		ctx = obscontext.WithActor(ctx, actorAPIKey, key.KeyID)

		c.Set(contextAPIKeyIDKey, key.KeyID)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}

// bearerToken extracts the credential of an "Authorization: Bearer <token>"
// header.
func bearerToken(c *gin.Context) (string, bool) {
	header := strings.TrimSpace(c.GetHeader("Authorization"))
	if header == "" {
		return "", false
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", false
	}
	return parts[1], true
}
