package program

import (
	"github.com/smallbiznis/referral/internal/program/repository"
	"github.com/smallbiznis/referral/internal/program/service"
	"go.uber.org/fx"
)

var Module = fx.Module("program.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
