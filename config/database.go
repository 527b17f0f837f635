package config

import (
	"fmt"
	"strings"

	"github.com/assistly/llm-jobs/internal/domain/model"
)

// StoreDriver selects the job store backend.
type StoreDriver string

const (
	// StoreDriverRedis keeps job records as Redis JSON values with TTLs.
	StoreDriverRedis StoreDriver = "redis"
	// StoreDriverPostgres keeps job records in a PostgreSQL table.
	StoreDriverPostgres StoreDriver = "postgres"
	// StoreDriverMemory keeps job records in process memory. Dev only.
	StoreDriverMemory StoreDriver = "memory"
)

// StoreConfig selects and tunes the job store backend.
type StoreConfig struct {
	// Driver picks the backend: redis, postgres, or memory.
	Driver StoreDriver `env:"STORE_DRIVER" envDefault:"redis"`

	// KeyPrefix namespaces Redis keys when Driver is redis.
	KeyPrefix string `env:"STORE_KEY_PREFIX" envDefault:"llmjobs"`

	// RetentionDays is the default retention horizon for new job records.
	// Individual submissions may override it.
	RetentionDays int `env:"STORE_RETENTION_DAYS" envDefault:"14"`
}

// Sanitize applies guardrails to store configuration values.
func (s *StoreConfig) Sanitize() {
	if s.Driver == "" {
		s.Driver = StoreDriverRedis
	}
	if s.KeyPrefix == "" {
		s.KeyPrefix = "llmjobs"
	}
	if s.RetentionDays < 1 {
		s.RetentionDays = model.DefaultRetentionDays
	}
}

// DBConfig contains PostgreSQL database configuration.
type DBConfig struct {
	Host     string `env:"HOST"     envDefault:"localhost"`
	Port     int    `env:"PORT"     envDefault:"5432"`
	User     string `env:"USER"     envDefault:"llmjobs"`
	Password string `env:"PASSWORD" envDefault:"llmjobs"`
	Name     string `env:"NAME"     envDefault:"llmjobs"`
	SSLMode  string `env:"SSL_MODE" envDefault:"disable"` // Use 'disable' for local dev, 'require' for production
	// RunMigrationsOnStart controls whether the application automatically applies migrations during startup.
	RunMigrationsOnStart bool `env:"RUN_MIGRATIONS_ON_START" envDefault:"true"`
}

// DSN builds a connection string for the pgx stdlib driver.
func (d DBConfig) DSN() string {
	return fmt.Sprintf(
		"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
	)
}

// RedisConfig contains Redis configuration.
type RedisConfig struct {
	URI                string   `env:"URI"                  envDefault:"localhost:6379"`
	Password           string   `env:"PASSWORD"             envDefault:""`
	DB                 int      `env:"DB"                   envDefault:"0"`
	SentinelNodes      []string `env:"SENTINEL_NODES"       envDefault:"localhost:26379"`
	SentinelMasterName string   `env:"SENTINEL_MASTER_NAME" envDefault:"mymaster"`
	SentinelPassword   string   `env:"SENTINEL_PASSWORD"    envDefault:""`
	UseSentinel        bool     `env:"USE_SENTINEL"         envDefault:"false"`
}

// TrimmedSentinelNodes returns the sentinel node list with blank entries removed.
func (r RedisConfig) TrimmedSentinelNodes() []string {
	nodes := make([]string, 0, len(r.SentinelNodes))
	for _, n := range r.SentinelNodes {
		if n = strings.TrimSpace(n); n != "" {
			nodes = append(nodes, n)
		}
	}
	return nodes
}
