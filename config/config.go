package config

import (
	"fmt"
	"log"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// Config represents the overall application configuration.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Database   DatabaseConfig   `yaml:"database"`
	Visitor    VisitorConfig    `yaml:"visitor"`
	Sweeper    SweeperConfig    `yaml:"sweeper"`
	Push       PushConfig       `yaml:"push"`
	WorkerPool WorkerPoolConfig `yaml:"worker_pool"`
	Events     EventsConfig     `yaml:"events"`
}

// WorkerPoolConfig holds the configuration for the notification worker pool.
type WorkerPoolConfig struct {
	Size int `yaml:"size"`
}

// PushConfig holds the VAPID keys for web push notifications.
type PushConfig struct {
	PublicKey  string `yaml:"vapid_public_key"`
	PrivateKey string `yaml:"vapid_private_key"`
	Subject    string `yaml:"subject"`
	TTL        int    `yaml:"ttl"`
}

// Enabled reports whether VAPID keys are configured.
func (p PushConfig) Enabled() bool {
	return p.PublicKey != "" && p.PrivateKey != ""
}

// ServerConfig holds the server-related configuration.
type ServerConfig struct {
	Port                 int      `yaml:"port"`
	RequestIPHeader      string   `yaml:"request_ip_header"` // platform header only, e.g. CF-Connecting-IP
	TrustedProxies       []string `yaml:"trusted_proxies"`   // IPs or CIDRs whose X-Forwarded-For is honoured
	RateLimitPerSec      float64  `yaml:"rate_limit_per_sec"`
	RateLimitBurst       int      `yaml:"rate_limit_burst"`
	CodeLookupPerSec     float64  `yaml:"code_lookup_per_sec"`
	CodeLookupBurst      int      `yaml:"code_lookup_burst"`
	CacheTTLSeconds      int      `yaml:"cache_ttl_seconds"`
	ShutdownGraceSeconds int      `yaml:"shutdown_grace_seconds"`
}

// DatabaseConfig holds the database connection configuration.
type DatabaseConfig struct {
	Driver                 string `yaml:"driver"` // "postgres" | "sqlite"
	DSN                    string `yaml:"dsn"`
	MaxOpenConns           int    `yaml:"max_open_conns"`
	MaxIdleConns           int    `yaml:"max_idle_conns"`
	ConnMaxLifetimeMinutes int    `yaml:"conn_max_lifetime_minutes"`
	LogSQL                 bool   `yaml:"log_sql"`
}

// VisitorConfig holds the approval policy.
type VisitorConfig struct {
	Scope                string `yaml:"scope"`
	Timezone             string `yaml:"timezone"`
	MaxWindowHours       int    `yaml:"max_window_hours"`
	EntryPolicy          string `yaml:"entry_policy"` // "advisory" | "strict"
	RepeatVisitThreshold int    `yaml:"repeat_visit_threshold"`
	OverstayGraceMinutes int    `yaml:"overstay_grace_minutes"`
	TrendDays            int    `yaml:"trend_days"`
}

// SweeperConfig controls the background expiry sweep.
type SweeperConfig struct {
	Enabled         bool          `yaml:"enabled"`
	IntervalSeconds int           `yaml:"interval_seconds"`
	Interval        time.Duration `yaml:"-"` // Ignored by YAML parser
}

// EventsConfig points at the NATS server lifecycle events are published to.
// An empty URL disables publishing.
type EventsConfig struct {
	NATSURL       string `yaml:"nats_url"`
	SubjectPrefix string `yaml:"subject_prefix"`
}

// Load reads the configuration from the given path. Values from the
// environment (and a .env file, if present) override the file.
func Load(path string) (*Config, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	var cfg Config
	decoder := yaml.NewDecoder(f)
	if err := decoder.Decode(&cfg); err != nil {
		return nil, err
	}

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		log.Printf("could not read .env file: %v", err)
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)

	if err := validateProxies(cfg.Server.TrustedProxies); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func validateProxies(proxies []string) error {
	for _, p := range proxies {
		if net.ParseIP(p) != nil {
			continue
		}
		if _, _, err := net.ParseCIDR(p); err != nil {
			return fmt.Errorf("invalid server.trusted_proxies entry %q", p)
		}
	}
	return nil
}

func applyEnv(cfg *Config) {
	if v := strings.TrimSpace(os.Getenv("DATABASE_DRIVER")); v != "" {
		cfg.Database.Driver = v
	}
	if v := strings.TrimSpace(os.Getenv("DATABASE_DSN")); v != "" {
		cfg.Database.DSN = v
	}
	if v := strings.TrimSpace(os.Getenv("NATS_URL")); v != "" {
		cfg.Events.NATSURL = v
	}
	if v := strings.TrimSpace(os.Getenv("SERVER_PORT")); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		} else {
			log.Printf("ignoring invalid SERVER_PORT %q", v)
		}
	}
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port <= 0 {
		cfg.Server.Port = 8080
	}
	if cfg.Server.RateLimitPerSec <= 0 {
		cfg.Server.RateLimitPerSec = 10
	}
	if cfg.Server.RateLimitBurst <= 0 {
		cfg.Server.RateLimitBurst = 5
	}
	if cfg.Server.CodeLookupPerSec <= 0 {
		cfg.Server.CodeLookupPerSec = 1
	}
	if cfg.Server.CodeLookupBurst <= 0 {
		cfg.Server.CodeLookupBurst = 3
	}
	if cfg.Server.CacheTTLSeconds <= 0 {
		cfg.Server.CacheTTLSeconds = 60
	}
	if cfg.Server.ShutdownGraceSeconds <= 0 {
		cfg.Server.ShutdownGraceSeconds = 5
	}

	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "postgres"
	}

	if cfg.Visitor.Scope == "" {
		cfg.Visitor.Scope = "default"
	}
	if cfg.Visitor.Timezone == "" {
		cfg.Visitor.Timezone = "UTC"
	}
	if cfg.Visitor.MaxWindowHours <= 0 {
		cfg.Visitor.MaxWindowHours = 8
	}
	if cfg.Visitor.EntryPolicy == "" {
		cfg.Visitor.EntryPolicy = "advisory"
	}
	if cfg.Visitor.RepeatVisitThreshold <= 0 {
		cfg.Visitor.RepeatVisitThreshold = 2
	}
	if cfg.Visitor.OverstayGraceMinutes <= 0 {
		cfg.Visitor.OverstayGraceMinutes = 120
	}
	if cfg.Visitor.TrendDays <= 0 {
		cfg.Visitor.TrendDays = 30
	}

	if cfg.Sweeper.IntervalSeconds <= 0 {
		cfg.Sweeper.IntervalSeconds = 300
	}
	cfg.Sweeper.Interval = time.Duration(cfg.Sweeper.IntervalSeconds) * time.Second

	if cfg.Push.TTL <= 0 {
		cfg.Push.TTL = 3600
	}

	if cfg.WorkerPool.Size <= 0 {
		log.Printf("worker_pool.size is not set or invalid; defaulting to 1")
		cfg.WorkerPool.Size = 1
	}

	if cfg.Events.SubjectPrefix == "" {
		cfg.Events.SubjectPrefix = "visitor"
	}
}
