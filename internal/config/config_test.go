package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestLoadDefaults(t *testing.T) {
	for _, key := range []string{"DB_DRIVER", "DATABASE_DSN", "HTTP_PORT", "DELIVERY_FEE", "REDEMPTION_THRESHOLD", "REDIS_ADDR"} {
		t.Setenv(key, "")
	}

	cfg := Load()
	assert.Equal(t, "sqlite", cfg.DB.Driver)
	assert.Equal(t, "pharmastore.db", cfg.DB.DSN)
	assert.Equal(t, 1, cfg.DB.MaxOpenConns)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "1", cfg.Store.DeliveryFee.String())
	assert.Equal(t, 100, cfg.Store.RedemptionThreshold)
	assert.Empty(t, cfg.Redis.Addr)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("DB_DRIVER", "pgx")
	t.Setenv("DATABASE_DSN", "")
	t.Setenv("DB_HOST", "db")
	t.Setenv("DB_USER", "app")
	t.Setenv("DB_PASSWORD", "pw")
	t.Setenv("DB_NAME", "shop")
	t.Setenv("HTTP_PORT", "not-a-port")
	t.Setenv("DB_PORT", "5432")
	t.Setenv("DELIVERY_FEE", "1.50")
	t.Setenv("AI_TIMEOUT", "3s")
	t.Setenv("APP_ENV", "production")

	cfg := Load()
	assert.Equal(t, "postgres://app:pw@db:5432/shop?sslmode=disable", cfg.DB.DSN)
	assert.Equal(t, 10, cfg.DB.MaxOpenConns)
	assert.Equal(t, "8080", cfg.HTTPPort)
	assert.Equal(t, "1.5", cfg.Store.DeliveryFee.String())
	assert.Equal(t, 3*time.Second, cfg.AI.Timeout)
	assert.True(t, cfg.IsProduction())
}
