package config

import (
    "testing"
    "time"

    "github.com/stretchr/testify/assert"
)

func TestLoadMemoryStoreDefaults(t *testing.T) {
    t.Setenv("APP_PORT", "8080")
    t.Setenv("JWT_SECRET", "s3cret")
    t.Setenv("STORE_DRIVER", "memory")

    cfg := Load()
    assert.Equal(t, "8080", cfg.Port)
    assert.Equal(t, StoreMemory, cfg.StoreDriver)
    assert.Equal(t, 5*time.Minute, cfg.HoldTimeout)
    assert.Equal(t, 5*time.Minute, cfg.SweepInterval)
    assert.Equal(t, 64, cfg.WSSendBuffer)
    assert.False(t, cfg.RabbitEnabled)
    assert.Empty(t, cfg.DBHost)
}

func TestLoadIndependentSweepSettings(t *testing.T) {
    t.Setenv("APP_PORT", "8080")
    t.Setenv("JWT_SECRET", "s3cret")
    t.Setenv("STORE_DRIVER", "mysql")
    t.Setenv("DB_USER", "cinema")
    t.Setenv("DB_PASS", "")
    t.Setenv("DB_HOST", "127.0.0.1")
    t.Setenv("DB_PORT", "3306")
    t.Setenv("DB_NAME", "seats")
    t.Setenv("HOLD_TIMEOUT", "90s")
    t.Setenv("SWEEP_INTERVAL", "15s")
    t.Setenv("WS_SEND_BUFFER", "0")
    t.Setenv("RABBITMQ_ENABLED", "yes")
    t.Setenv("RABBITMQ_URL", "")
    t.Setenv("AMQP_URL", "amqp://u:p@broker:5672/")

    cfg := Load()
    assert.Equal(t, "cinema", cfg.DBUser)
    assert.Empty(t, cfg.DBPass)
    assert.Equal(t, 90*time.Second, cfg.HoldTimeout)
    assert.Equal(t, 15*time.Second, cfg.SweepInterval)
    assert.Equal(t, 1, cfg.WSSendBuffer)
    assert.True(t, cfg.RabbitEnabled)
    assert.Equal(t, "amqp://u:p@broker:5672/", cfg.RabbitURL)
}

func TestLoadRateLimitConfigClamps(t *testing.T) {
    t.Setenv("RATE_LIMIT_BURST", "5")
    t.Setenv("RATE_LIMIT_REFILL_EVERY", "2s")
    t.Setenv("RATE_LIMIT_TTL", "1s")

    cfg := LoadRateLimitConfig()
    assert.Equal(t, 5, cfg.Capacity)
    assert.Equal(t, 1, cfg.RefillTokens)
    assert.Equal(t, 2*time.Second, cfg.RefillInterval)
    assert.Equal(t, 10*time.Second, cfg.TTL)
}

func TestEnvBoolFallsBackOnGarbage(t *testing.T) {
    t.Setenv("X_FLAG", "maybe")
    assert.True(t, envBool("X_FLAG", true))
    t.Setenv("X_FLAG", "off")
    assert.False(t, envBool("X_FLAG", true))
}

func TestRedisOptionsPrefersHostPort(t *testing.T) {
    t.Setenv("REDIS_ADDR", "ignored:1")
    t.Setenv("REDIS_HOST", "cache")
    t.Setenv("REDIS_PORT", "6380")
    t.Setenv("REDIS_DB", "2")
    t.Setenv("REDIS_TLS", "")

    opts := RedisOptions()
    assert.Equal(t, "cache:6380", opts.Addr)
    assert.Equal(t, 2, opts.DB)
    assert.Nil(t, opts.TLSConfig)
}
