package widget

import (
	"github.com/smallbiznis/referral/internal/widget/service"
	"go.uber.org/fx"
)

var Module = fx.Module("widget.service",
	fx.Provide(service.New),
)
