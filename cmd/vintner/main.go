package main

import (
	"github.com/bwmarrin/snowflake"
	"github.com/smallbiznis/vintner/internal/audit"
	"github.com/smallbiznis/vintner/internal/authorization"
	"github.com/smallbiznis/vintner/internal/clock"
	"github.com/smallbiznis/vintner/internal/config"
	"github.com/smallbiznis/vintner/internal/customer"
	"github.com/smallbiznis/vintner/internal/distlock"
	"github.com/smallbiznis/vintner/internal/invoice"
	invoicedomain "github.com/smallbiznis/vintner/internal/invoice/domain"
	"github.com/smallbiznis/vintner/internal/migration"
	"github.com/smallbiznis/vintner/internal/observability"
	"github.com/smallbiznis/vintner/internal/order"
	orderdomain "github.com/smallbiznis/vintner/internal/order/domain"
	"github.com/smallbiznis/vintner/internal/override"
	"github.com/smallbiznis/vintner/internal/pricelist"
	pricelistdomain "github.com/smallbiznis/vintner/internal/pricelist/domain"
	"github.com/smallbiznis/vintner/internal/pricing"
	"github.com/smallbiznis/vintner/pkg/db"
	"go.uber.org/fx"
	"go.uber.org/zap"
)

func main() {
	app := fx.New(
		// Core Infrastructure
		config.Module,
		observability.Module,
		fx.Provide(RegisterSnowflake),
		db.Module,
		clock.Module,
		distlock.Module,
		migration.Module,

		// Functional Domains
		audit.Module,
		authorization.Module,
		customer.Module,
		pricelist.Module,
		pricing.Module,
		override.Module,
		order.Module,
		invoice.Module,

		fx.Invoke(verifyWiring),
	)
	app.Run()
}

func RegisterSnowflake(cfg config.Config) (*snowflake.Node, error) {
	return snowflake.NewNode(cfg.NodeID)
}

// verifyWiring forces construction of the services the order-entry and
// invoicing callers use.
func verifyWiring(
	log *zap.Logger,
	cfg config.Config,
	_ pricelistdomain.Service,
	_ orderdomain.Service,
	_ invoicedomain.Service,
) {
	log.Info("vintner engine ready",
		zap.String("version", cfg.AppVersion),
		zap.String("environment", cfg.Environment),
		zap.Int64("node_id", cfg.NodeID),
		zap.Bool("sequence_lock", cfg.Redis.Enabled),
	)
}
