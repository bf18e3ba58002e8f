package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/crm/internal/clock"
	"github.com/smallbiznis/crm/internal/config"
	"github.com/smallbiznis/crm/internal/observability"
	"github.com/smallbiznis/crm/internal/scheduler"
	"github.com/smallbiznis/crm/internal/server"
	"github.com/smallbiznis/crm/pkg/db"
	"go.uber.org/fx"
)

func main() {
	app := fx.New(
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,

		// Domain services required by the jobs
		server.Services,

		// No server module!
		scheduler.Module,
		scheduler.RunnerModule,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(3)
	if err != nil {
		panic(err)
	}
	return node
}
