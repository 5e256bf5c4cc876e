// Package config loads the service configuration from a YAML file.
package config

import (
	"fmt"
	"os"
	"time"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

const (
	EnvDev   = "dev"
	EnvStage = "stage"
	EnvProd  = "prod"
)

const (
	StorageDriverPostgres = "postgres"
	StorageDriverSQLite   = "sqlite"

	CacheDriverMemory = "memory"
	CacheDriverRedis  = "redis"
)

type Config struct {
	Env        string `yaml:"env" validate:"oneof=dev stage prod"`
	LogLevel   string `yaml:"log_level" validate:"oneof=debug info warn error"`
	HTTPServer `yaml:"http_server"`
	Storage    Storage   `yaml:"storage"`
	Cache      Cache     `yaml:"cache"`
	ShortCode  ShortCode `yaml:"shortcode"`
	Resolver   Resolver  `yaml:"resolver"`
	Recorder   Recorder  `yaml:"recorder"`
	Favicon    Favicon   `yaml:"favicon"`
	Auth       Auth      `yaml:"auth"`
	RateLimit  RateLimit `yaml:"rate_limit"`
}

type HTTPServer struct {
	Port            int           `yaml:"port" validate:"min=1,max=65535"`
	ReadTimeout     time.Duration `yaml:"read_timeout"`
	WriteTimeout    time.Duration `yaml:"write_timeout"`
	IdleTimeout     time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes"`
	CertFile        string        `yaml:"cert_file"`
	KeyFile         string        `yaml:"key_file"`
	CountryHeader   string        `yaml:"country_header"`
}

var defaultHTTPServer = HTTPServer{
	Port:            8080,
	ReadTimeout:     5 * time.Second,
	WriteTimeout:    10 * time.Second,
	IdleTimeout:     time.Minute,
	ShutdownTimeout: 10 * time.Second,
	MaxHeaderBytes:  1 << 20,
	CountryHeader:   "CF-IPCountry",
}

func (s *HTTPServer) Addr() string {
	return fmt.Sprintf(":%d", s.Port)
}

// TLS reports whether both a certificate and a key were configured.
func (s *HTTPServer) TLS() bool {
	return s.CertFile != "" && s.KeyFile != ""
}

type Storage struct {
	Driver   string   `yaml:"driver" validate:"oneof=postgres sqlite"`
	Postgres Postgres `yaml:"postgres"`
	SQLite   SQLite   `yaml:"sqlite"`
}

type Postgres struct {
	User            string        `yaml:"user"`
	Password        string        `yaml:"password"`
	Host            string        `yaml:"host"`
	Port            int           `yaml:"port"`
	DB              string        `yaml:"db"`
	SSLMode         string        `yaml:"sslmode"`
	ConnMaxIdleTime time.Duration `yaml:"conn_max_idle_time"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	ConnectTimeout  time.Duration `yaml:"connect_timeout"`
}

var defaultPostgres = Postgres{
	Host:            "localhost",
	Port:            5432,
	SSLMode:         "disable",
	ConnMaxIdleTime: 5 * time.Minute,
	ConnMaxLifetime: 30 * time.Minute,
	MaxIdleConns:    5,
	MaxOpenConns:    25,
	ConnectTimeout:  30 * time.Second,
}

func (p *Postgres) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		p.User, p.Password, p.Host, p.Port, p.DB, p.SSLMode)
}

type SQLite struct {
	Path      string `yaml:"path"`
	ReadConns int    `yaml:"read_conns" validate:"gte=0"`
}

type Cache struct {
	Driver          string        `yaml:"driver" validate:"oneof=memory redis"`
	TTL             time.Duration `yaml:"ttl" validate:"gt=0"`
	CleanupInterval time.Duration `yaml:"cleanup_interval"`
	Redis           Redis         `yaml:"redis"`
}

type Redis struct {
	Addr           string        `yaml:"addr"`
	Username       string        `yaml:"username"`
	Password       string        `yaml:"password"`
	DB             int           `yaml:"db"`
	DialTimeout    time.Duration `yaml:"dial_timeout"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
	PoolSize       int           `yaml:"pool_size"`
	ConnectTimeout time.Duration `yaml:"connect_timeout"`
	RetryInterval  time.Duration `yaml:"retry_interval"`
	MaxWait        time.Duration `yaml:"max_wait"`
	PingTimeout    time.Duration `yaml:"ping_timeout"`
}

var defaultCache = Cache{
	Driver:          CacheDriverMemory,
	TTL:             time.Minute,
	CleanupInterval: 5 * time.Minute,
	Redis: Redis{
		Addr:           "localhost:6379",
		DialTimeout:    5 * time.Second,
		ReadTimeout:    time.Second,
		WriteTimeout:   time.Second,
		PoolSize:       10,
		ConnectTimeout: 30 * time.Second,
		RetryInterval:  200 * time.Millisecond,
		MaxWait:        5 * time.Second,
		PingTimeout:    2 * time.Second,
	},
}

type ShortCode struct {
	Length      int `yaml:"length" validate:"min=1,max=32"`
	MaxAttempts int `yaml:"max_attempts" validate:"min=1"`
}

type Resolver struct {
	Timeout time.Duration `yaml:"timeout" validate:"gt=0"`
}

type Recorder struct {
	NodeID          int64         `yaml:"node_id" validate:"min=0,max=1023"`
	QueueSize       int           `yaml:"queue_size"`
	Workers         int           `yaml:"workers"`
	BatchSize       int           `yaml:"batch_size"`
	FlushInterval   time.Duration `yaml:"flush_interval"`
	AttemptTimeout  time.Duration `yaml:"attempt_timeout"`
	RetryInitial    time.Duration `yaml:"retry_initial"`
	RetryMax        time.Duration `yaml:"retry_max"`
	RetryMaxElapsed time.Duration `yaml:"retry_max_elapsed"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

var defaultRecorder = Recorder{
	QueueSize:       10000,
	Workers:         2,
	BatchSize:       256,
	FlushInterval:   time.Second,
	AttemptTimeout:  5 * time.Second,
	RetryInitial:    100 * time.Millisecond,
	RetryMax:        5 * time.Second,
	RetryMaxElapsed: time.Minute,
	ShutdownTimeout: 10 * time.Second,
}

type Favicon struct {
	Enabled bool          `yaml:"enabled"`
	Timeout time.Duration `yaml:"timeout"`
}

type Auth struct {
	JWTSecret string `yaml:"jwt_secret" validate:"required,min=16"`
}

type RateLimit struct {
	Enabled   bool          `yaml:"enabled"`
	Burst     int           `yaml:"burst"`
	PerMinute int           `yaml:"per_minute"`
	IdleTTL   time.Duration `yaml:"idle_ttl"`
}

var defaultRateLimit = RateLimit{
	Enabled:   true,
	Burst:     20,
	PerMinute: 60,
	IdleTTL:   15 * time.Minute,
}

// Load reads the YAML file at path over the defaults. ${VAR} references in
// the file are expanded from the environment before decoding.
func Load(path string) (*Config, error) {
	const op = "config.Load"

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%s: failed to read config file: %w", op, err)
	}

	var cfg Config
	setDefaults(&cfg)

	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return nil, fmt.Errorf("%s: failed to decode config file: %w", op, err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("%s: invalid config: %w", op, err)
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if err := validator.New().Struct(c); err != nil {
		return err
	}

	switch c.Storage.Driver {
	case StorageDriverPostgres:
		if c.Storage.Postgres.DB == "" {
			return fmt.Errorf("storage.postgres.db is required")
		}
	case StorageDriverSQLite:
		if c.Storage.SQLite.Path == "" {
			return fmt.Errorf("storage.sqlite.path is required")
		}
	}

	if c.Cache.Driver == CacheDriverRedis && c.Cache.Redis.Addr == "" {
		return fmt.Errorf("cache.redis.addr is required")
	}

	return nil
}

func setDefaults(cfg *Config) {
	cfg.Env = EnvDev
	cfg.LogLevel = "info"
	cfg.HTTPServer = defaultHTTPServer
	cfg.Storage = Storage{
		Driver:   StorageDriverPostgres,
		Postgres: defaultPostgres,
		SQLite:   SQLite{Path: "shortlink.db", ReadConns: 4},
	}
	cfg.Cache = defaultCache
	cfg.ShortCode = ShortCode{Length: 7, MaxAttempts: 5}
	cfg.Resolver = Resolver{Timeout: 50 * time.Millisecond}
	cfg.Recorder = defaultRecorder
	cfg.Favicon = Favicon{Enabled: true, Timeout: 3 * time.Second}
	cfg.RateLimit = defaultRateLimit
}
