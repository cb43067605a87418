package override

import (
	"github.com/smallbiznis/vintner/internal/override/repository"
	"github.com/smallbiznis/vintner/internal/override/service"
	"go.uber.org/fx"
)

var Module = fx.Module("override.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
