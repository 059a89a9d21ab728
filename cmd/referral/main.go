package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/referral/internal/clock"
	"github.com/smallbiznis/referral/internal/config"
	"github.com/smallbiznis/referral/internal/migration"
	"github.com/smallbiznis/referral/internal/observability"
	"github.com/smallbiznis/referral/internal/server"
	"github.com/smallbiznis/referral/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		migration.Module,
		clock.Module,

		// Domains, HTTP routes and bootstrap seeding
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.SnowflakeNodeID)
}
