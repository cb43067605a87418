package pricelist

import (
	"github.com/smallbiznis/vintner/internal/pricelist/repository"
	"github.com/smallbiznis/vintner/internal/pricelist/service"
	"go.uber.org/fx"
)

var Module = fx.Module("pricelist.service",
	fx.Provide(repository.Provide),
	fx.Provide(service.New),
)
