package main

import (
	"github.com/bwmarrin/snowflake"
	"go.uber.org/fx"

	"github.com/smallbiznis/egsbridge/internal/clock"
	"github.com/smallbiznis/egsbridge/internal/config"
	"github.com/smallbiznis/egsbridge/internal/migration"
	"github.com/smallbiznis/egsbridge/internal/observability"
	"github.com/smallbiznis/egsbridge/internal/server"
	"github.com/smallbiznis/egsbridge/pkg/db"
)

func main() {
	app := fx.New(
		// Core infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		migration.Module,

		// HTTP surface; pulls in the invoice, relay and onboarding modules
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(1)
	if err != nil {
		panic(err)
	}
	return node
}
