package jobrun

import (
	"github.com/smallbiznis/crm/internal/jobrun/repository"
	"github.com/smallbiznis/crm/internal/jobrun/service"
	"go.uber.org/fx"
)

var Module = fx.Module("jobrun.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
