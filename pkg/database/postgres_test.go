package database

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/noah-isme/pending-subjects-api/pkg/config"
)

func TestDSN(t *testing.T) {
	cfg := config.DatabaseConfig{Host: "db", Port: 5433, User: "app", Password: "secret", Name: "pending"}
	assert.Equal(t, "host=db port=5433 user=app password=secret dbname=pending sslmode=disable", DSN(cfg))

	cfg.SSLMode = "require"
	assert.Contains(t, DSN(cfg), "sslmode=require")
}
