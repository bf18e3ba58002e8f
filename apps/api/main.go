package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/crm/internal/clock"
	"github.com/smallbiznis/crm/internal/config"
	"github.com/smallbiznis/crm/internal/observability"
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

		// Jobs are triggered from apps/scheduler; /api/jobs/:name/run answers 503 here.
		server.Services,
		server.Module,
	)
	app.Run()
}

func RegisterSnowflake() *snowflake.Node {
	node, err := snowflake.NewNode(2)
	if err != nil {
		panic(err)
	}
	return node
}
