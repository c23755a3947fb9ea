package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func clearDBEnv(t *testing.T) {
	t.Helper()
	for _, k := range []string{"DB_DSN", "MYSQL_DSN", "DB_HOST", "DB_PORT", "DB_USER", "DB_PASSWORD", "DB_NAME", "DB_PATH"} {
		t.Setenv(k, "")
	}
}

func TestNew_Defaults(t *testing.T) {
	clearDBEnv(t)
	t.Setenv("DB_DRIVER", "")

	cfg := New()
	assert.Equal(t, "mysql", cfg.DB.Driver)
	assert.Equal(t, "root:root@tcp(localhost:3306)/agentmatch?parseTime=true&charset=utf8mb4&loc=UTC", cfg.DB.DSN)
	assert.Equal(t, "sql", cfg.RateLimit.Backend)
	assert.Equal(t, 0.15, cfg.House.BreakupProbability)
	assert.Equal(t, 24*time.Hour, cfg.House.BreakupGrace)
	assert.Equal(t, "8080", cfg.HTTP.Port)
	assert.False(t, cfg.Jobs.Enabled)
}

func TestNew_DriverDSNs(t *testing.T) {
	clearDBEnv(t)

	t.Setenv("DB_DRIVER", "Postgres")
	cfg := New()
	assert.Equal(t, "postgres", cfg.DB.Driver)
	assert.Contains(t, cfg.DB.DSN, "port=5432")

	t.Setenv("DB_DRIVER", "sqlite")
	t.Setenv("DB_PATH", "/tmp/am.db")
	assert.Equal(t, "/tmp/am.db", New().DB.DSN)

	t.Setenv("DB_DSN", "explicit")
	assert.Equal(t, "explicit", New().DB.DSN)
}

func TestNew_Overrides(t *testing.T) {
	clearDBEnv(t)
	t.Setenv("REDIS_ENABLED", "no")
	t.Setenv("REDIS_DB", "3")
	t.Setenv("JOBS_ENABLED", "on")
	t.Setenv("JOBS_KARMA_INTERVAL", "90s")
	t.Setenv("HOUSE_BREAKUP_PROBABILITY", "0.5")
	t.Setenv("KARMA_CONCURRENCY", "not-a-number")

	cfg := New()
	assert.False(t, cfg.Redis.Enabled)
	assert.Equal(t, 3, cfg.Redis.DB)
	assert.True(t, cfg.Jobs.Enabled)
	assert.Equal(t, 90*time.Second, cfg.Jobs.KarmaInterval)
	assert.Equal(t, 0.5, cfg.House.BreakupProbability)
	assert.Equal(t, 4, cfg.Karma.Concurrency)
}

func TestIsTruthy(t *testing.T) {
	for _, v := range []string{"1", "true", "YES", " on "} {
		assert.True(t, isTruthy(v), v)
	}
	for _, v := range []string{"", "0", "false", "nah"} {
		assert.False(t, isTruthy(v), v)
	}
}
