package invoice

import (
	"github.com/smallbiznis/vintner/internal/invoice/render"
	"github.com/smallbiznis/vintner/internal/invoice/repository"
	"github.com/smallbiznis/vintner/internal/invoice/service"
	"go.uber.org/fx"
)

var Module = fx.Module("invoice.service",
	fx.Provide(repository.Provide),
	fx.Provide(render.NewRenderer),
	fx.Provide(service.NewSequenceLock),
	fx.Provide(service.New),
)
