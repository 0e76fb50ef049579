// Package dbtest starts a throwaway PostgreSQL container with the schema applied.
package dbtest

import (
	"context"
	"database/sql"
	"io"
	"testing"
	"time"

	"tshe-crm/migrations"
	"tshe-crm/pkg/database"
	"tshe-crm/pkg/logger"

	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"gorm.io/gorm"
)

// NewPostgres returns a migrated database. The container is terminated on test cleanup.
func NewPostgres(t *testing.T) *gorm.DB {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("crm_test"),
		postgres.WithUsername("crm"),
		postgres.WithPassword("crm"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("Failed to start PostgreSQL container: %v", err)
	}
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("Failed to terminate container: %v", err)
		}
	})

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("Failed to get connection string: %v", err)
	}

	sqlDB, err := sql.Open(migrations.Dialect, dsn)
	if err != nil {
		t.Fatalf("Failed to open database: %v", err)
	}
	defer sqlDB.Close()
	if err := migrations.Up(sqlDB); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	db, err := database.Open(dsn, "silent", logger.NewWithWriter(io.Discard, io.Discard))
	if err != nil {
		t.Fatalf("Failed to connect: %v", err)
	}
	return db
}

// CreateUser inserts a user row and returns its id.
func CreateUser(t *testing.T, db *gorm.DB, name, role string) string {
	t.Helper()
	var id string
	err := db.Raw(
		"INSERT INTO users (name, email, password_hash, role) VALUES (?, ?, 'x', ?) RETURNING id",
		name, name+"@tshe.test", role,
	).Scan(&id).Error
	if err != nil {
		t.Fatalf("Failed to create user %s: %v", name, err)
	}
	return id
}
