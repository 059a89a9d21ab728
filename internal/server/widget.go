package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	obscontext "github.com/smallbiznis/referral/internal/observability/context"
	widgetdomain "github.com/smallbiznis/referral/internal/widget/domain"
)

func (s *Server) InitWidget(c *gin.Context) {
	token, ok := bearerToken(c)
	if !ok {
		AbortWithError(c, widgetdomain.ErrMissingToken)
		return
	}

	var req widgetdomain.InitRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}
	if code := strings.TrimSpace(req.ReferralCode); code != "" {
		c.Set("referral_code", code)
	}

	ctx := obscontext.WithProductID(c.Request.Context(), req.ProductID)
	ctx = obscontext.WithActor(ctx, actorWidgetUser, "")

	config, err := s.widgetSvc.Init(ctx, token, req)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, config)
}
