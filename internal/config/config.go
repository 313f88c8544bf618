package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"pursekeep.org/internal/auth"
)

// Config is the root configuration structure.
type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Auth     AuthConfig     `yaml:"auth"`
	Logging  LoggingConfig  `yaml:"logging"`
}

// ServerConfig contains HTTP and gRPC listener settings.
type ServerConfig struct {
	HTTPAddr          string        `yaml:"http_addr"`
	GRPCAddr          string        `yaml:"grpc_addr"`
	ReadTimeout       time.Duration `yaml:"read_timeout"`
	ReadHeaderTimeout time.Duration `yaml:"read_header_timeout"`
	WriteTimeout      time.Duration `yaml:"write_timeout"`
	IdleTimeout       time.Duration `yaml:"idle_timeout"`
	ShutdownTimeout   time.Duration `yaml:"shutdown_timeout"`
	MaxBodyBytes      int64         `yaml:"max_body_bytes"`
}

// DatabaseConfig contains PostgreSQL settings. An empty DSN selects the
// in-memory user store.
type DatabaseConfig struct {
	DSN             string        `yaml:"dsn"`
	MaxOpenConns    int           `yaml:"max_open_conns"`
	MaxIdleConns    int           `yaml:"max_idle_conns"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime"`
	MigrateOnStart  bool          `yaml:"migrate_on_start"`
}

// AuthConfig contains token signing and password hashing settings.
type AuthConfig struct {
	Secret          string       `yaml:"secret"`
	Algorithm       string       `yaml:"algorithm"`
	TokenTTLMinutes int          `yaml:"token_ttl_minutes"`
	Issuer          string       `yaml:"issuer"`
	Argon2          Argon2Config `yaml:"argon2"`
}

// Argon2Config mirrors auth.HashParams.
type Argon2Config struct {
	MemoryKiB   uint32 `yaml:"memory_kib"`
	Iterations  uint32 `yaml:"iterations"`
	Parallelism uint8  `yaml:"parallelism"`
	SaltLength  uint32 `yaml:"salt_length"`
	KeyLength   uint32 `yaml:"key_length"`
}

// LoggingConfig contains logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// Default returns the configuration used before file and env overrides.
func Default() Config {
	p := auth.DefaultHashParams
	return Config{
		Server: ServerConfig{
			HTTPAddr:          ":8080",
			GRPCAddr:          ":9090",
			ReadTimeout:       15 * time.Second,
			ReadHeaderTimeout: 15 * time.Second,
			WriteTimeout:      15 * time.Second,
			IdleTimeout:       60 * time.Second,
			ShutdownTimeout:   10 * time.Second,
			MaxBodyBytes:      1 << 20,
		},
		Database: DatabaseConfig{
			MaxOpenConns:    10,
			MaxIdleConns:    10,
			ConnMaxLifetime: 30 * time.Minute,
		},
		Auth: AuthConfig{
			Algorithm:       "HS256",
			TokenTTLMinutes: 30,
			Issuer:          "pursekeep",
			Argon2: Argon2Config{
				MemoryKiB:   p.Memory,
				Iterations:  p.Iterations,
				Parallelism: p.Parallelism,
				SaltLength:  p.SaltLength,
				KeyLength:   p.KeyLength,
			},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// Load reads the optional YAML file at path, applies environment
// overrides and validates the result.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config file: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config file: %w", err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return Config{}, err
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() error {
	setString := func(key string, dst *string) {
		if v, ok := os.LookupEnv(key); ok {
			*dst = strings.TrimSpace(v)
		}
	}
	setString("PURSEKEEP_HTTP_ADDR", &c.Server.HTTPAddr)
	setString("PURSEKEEP_GRPC_ADDR", &c.Server.GRPCAddr)
	setString("PURSEKEEP_PG_DSN", &c.Database.DSN)
	setString("PURSEKEEP_AUTH_SECRET", &c.Auth.Secret)
	setString("PURSEKEEP_AUTH_ALGORITHM", &c.Auth.Algorithm)
	setString("PURSEKEEP_AUTH_ISSUER", &c.Auth.Issuer)
	setString("PURSEKEEP_LOG_LEVEL", &c.Logging.Level)
	setString("PURSEKEEP_LOG_FORMAT", &c.Logging.Format)

	if v, ok := os.LookupEnv("PURSEKEEP_TOKEN_TTL_MINUTES"); ok {
		n, err := strconv.Atoi(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("PURSEKEEP_TOKEN_TTL_MINUTES: %w", err)
		}
		c.Auth.TokenTTLMinutes = n
	}
	if v, ok := os.LookupEnv("PURSEKEEP_MIGRATE_ON_START"); ok {
		b, err := strconv.ParseBool(strings.TrimSpace(v))
		if err != nil {
			return fmt.Errorf("PURSEKEEP_MIGRATE_ON_START: %w", err)
		}
		c.Database.MigrateOnStart = b
	}
	return nil
}

// Validate checks the values the process cannot start without.
func (c Config) Validate() error {
	var errs []error
	if strings.TrimSpace(c.Auth.Secret) == "" {
		errs = append(errs, errors.New("auth.secret is required"))
	}
	if c.Auth.TokenTTLMinutes <= 0 {
		errs = append(errs, fmt.Errorf("auth.token_ttl_minutes must be > 0, got %d", c.Auth.TokenTTLMinutes))
	}
	switch strings.ToUpper(c.Auth.Algorithm) {
	case "HS256", "HS384", "HS512":
	default:
		errs = append(errs, fmt.Errorf("auth.algorithm %q is not supported", c.Auth.Algorithm))
	}
	if c.Server.HTTPAddr == "" {
		errs = append(errs, errors.New("server.http_addr is required"))
	}
	if c.Server.MaxBodyBytes <= 0 {
		errs = append(errs, errors.New("server.max_body_bytes must be > 0"))
	}
	return errors.Join(errs...)
}

// TokenTTL returns the configured access token lifetime.
func (a AuthConfig) TokenTTL() time.Duration {
	return time.Duration(a.TokenTTLMinutes) * time.Minute
}

// TokenConfig builds the codec configuration.
func (a AuthConfig) TokenConfig() auth.TokenConfig {
	return auth.TokenConfig{
		Secret:    []byte(a.Secret),
		Algorithm: a.Algorithm,
		TTL:       a.TokenTTL(),
		Issuer:    a.Issuer,
	}
}

// HashParams builds the hasher parameters.
func (a AuthConfig) HashParams() auth.HashParams {
	return auth.HashParams{
		Memory:      a.Argon2.MemoryKiB,
		Iterations:  a.Argon2.Iterations,
		Parallelism: a.Argon2.Parallelism,
		SaltLength:  a.Argon2.SaltLength,
		KeyLength:   a.Argon2.KeyLength,
	}
}
