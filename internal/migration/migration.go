package migration

import (
	"database/sql"
	"errors"
	"fmt"
	"io/fs"

	auditdomain "github.com/denhac/memberbridge/internal/audit/domain"
	customerdomain "github.com/denhac/memberbridge/internal/customer/domain"
	eventstoredomain "github.com/denhac/memberbridge/internal/eventstore/domain"
	jobdomain "github.com/denhac/memberbridge/internal/jobs/domain"
	subscriptiondomain "github.com/denhac/memberbridge/internal/subscription/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"gorm.io/gorm"
)

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
	// Do not call migrator.Close here because it would close the shared *sql.DB.

	return nil
}

// Models lists every table the service owns.
func Models() []any {
	return []any{
		&eventstoredomain.StoredEvent{},
		&customerdomain.Customer{},
		&subscriptiondomain.Subscription{},
		&jobdomain.Job{},
		&auditdomain.AuditLog{},
	}
}

// AutoMigrate creates the schema from the gorm models. Used for sqlite and
// mysql, which the embedded migrations do not target.
func AutoMigrate(db *gorm.DB) error {
	if db == nil {
		return errors.New("migration database handle is required")
	}
	if err := db.AutoMigrate(Models()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}
