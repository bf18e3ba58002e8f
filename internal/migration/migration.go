package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	customerdomain "github.com/smallbiznis/crm/internal/customer/domain"
	jobrundomain "github.com/smallbiznis/crm/internal/jobrun/domain"
	orderdomain "github.com/smallbiznis/crm/internal/order/domain"
	productdomain "github.com/smallbiznis/crm/internal/product/domain"
	"gorm.io/gorm"
)

// Models lists every table the CRM owns, parents first.
func Models() []any {
	return []any{
		&customerdomain.Customer{},
		&productdomain.Product{},
		&orderdomain.Order{},
		&orderdomain.OrderProduct{},
		&jobrundomain.JobRun{},
	}
}

// Migrate brings the schema up to date. Postgres uses the versioned SQL
// files; other dialects fall back to AutoMigrate.
func Migrate(conn *gorm.DB) error {
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

// RunMigrations applies the embedded postgres migrations.
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
	// Closing the migrator would close the shared *sql.DB.

	return nil
}
