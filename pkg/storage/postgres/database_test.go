package postgres_test

import (
	"os"
	"testing"

	"chartfeed/config"
	"chartfeed/pkg/storage/postgres"
)

// go test -v --run TestCreateDatabase
func TestCreateDatabase(t *testing.T) {
	if os.Getenv("CHARTFEED_TEST_PG_DSN") == "" {
		t.Skip("CHARTFEED_TEST_PG_DSN not set")
	}
	cfg := config.PostgresConfig{
		Host:     os.Getenv("PGHOST"),
		Port:     5432,
		User:     os.Getenv("PGUSER"),
		Password: os.Getenv("PGPASSWORD"),
		DBName:   "chartfeed_test_create",
		SSLMode:  "disable",
	}

	err := postgres.CreateDatabase(cfg)
	if err != nil {
		t.Fatalf("failed to create database: %v", err)
	}
	// second call is a no-op
	if err := postgres.CreateDatabase(cfg); err != nil {
		t.Fatalf("expected idempotent create, got %v", err)
	}
}
