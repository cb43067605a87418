// Package migration creates the engine schema on startup.
package migration

import (
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	auditdomain "github.com/smallbiznis/vintner/internal/audit/domain"
	customerdomain "github.com/smallbiznis/vintner/internal/customer/domain"
	invoicedomain "github.com/smallbiznis/vintner/internal/invoice/domain"
	orderdomain "github.com/smallbiznis/vintner/internal/order/domain"
	overridedomain "github.com/smallbiznis/vintner/internal/override/domain"
	pricelistdomain "github.com/smallbiznis/vintner/internal/pricelist/domain"
	"gorm.io/gorm"
)

const migrationsDir = "migrations"

//go:embed migrations/*.sql
var embeddedMigrations embed.FS

// Models lists every table the engine persists, in dependency order.
func Models() []any {
	return []any{
		&auditdomain.AuditLog{},
		&customerdomain.Customer{},
		&pricelistdomain.PriceList{},
		&pricelistdomain.PriceListItem{},
		&orderdomain.Order{},
		&orderdomain.OrderLine{},
		&overridedomain.PriceOverride{},
		&invoicedomain.Invoice{},
		&invoicedomain.InvoiceItem{},
		&invoicedomain.InvoiceSequence{},
	}
}

// Run applies the embedded SQL on PostgreSQL. Other dialects, used for local
// runs and tests, get the schema from the gorm models instead.
func Run(conn *gorm.DB) error {
	if conn == nil {
		return errors.New("migration database handle is required")
	}
	if conn.Dialector.Name() != "postgres" {
		return conn.AutoMigrate(Models()...)
	}

	sqlDB, err := conn.DB()
	if err != nil {
		return err
	}
	return RunMigrations(sqlDB)
}

func RunMigrations(db *sql.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}

	sub, err := fs.Sub(embeddedMigrations, migrationsDir)
	if err != nil {
		return fmt.Errorf("open migrations: %w", err)
	}

	source, err := iofs.New(sub, ".")
	if err != nil {
		return fmt.Errorf("create migration source: %w", err)
	}

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		return fmt.Errorf("create migration driver: %w", err)
	}

	migrator, err := migrate.NewWithInstance("iofs", source, "postgres", driver)
	if err != nil {
		return fmt.Errorf("create migrator: %w", err)
	}

	upErr := migrator.Up()
	if upErr != nil && !errors.Is(upErr, migrate.ErrNoChange) {
		return fmt.Errorf("apply migrations: %w", upErr)
	}
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}
