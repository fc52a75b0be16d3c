package config

import (
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
)

const (
	StorageMongo  = "mongo"
	StorageSQLite = "sqlite"
)

type Config struct {
	Env         string           `yaml:"env" env:"ENV" env-default:"local"`
	Storage     string           `yaml:"storage" env:"STORAGE" env-default:"mongo"`
	StoragePath string           `yaml:"storage_path" env:"STORAGE_PATH"`
	Mongo       MongoConfig      `yaml:"mongo"`
	Tokens      TokenConfig      `yaml:"tokens"`
	HTTPServer  HTTPServerConfig `yaml:"http_server"`
	Grpc        GRPCConfig       `yaml:"grpc"`
}

type MongoConfig struct {
	URI      string        `yaml:"uri" env:"MONGO_URI" env-default:"mongodb://localhost:27017"`
	Database string        `yaml:"database" env:"MONGO_DATABASE" env-default:"forum"`
	Timeout  time.Duration `yaml:"timeout" env-default:"10s"`
}

// TokenConfig carries the signing secrets and lifetimes of both halves of a
// token pair.
type TokenConfig struct {
	AccessSecret  string        `yaml:"access_token_secret" env:"ACCESS_TOKEN_SECRET" env-required:"true"`
	AccessTTL     time.Duration `yaml:"access_token_expiry" env:"ACCESS_TOKEN_EXPIRY" env-default:"15m"`
	RefreshSecret string        `yaml:"refresh_token_secret" env:"REFRESH_TOKEN_SECRET" env-required:"true"`
	RefreshTTL    time.Duration `yaml:"refresh_token_expiry" env:"REFRESH_TOKEN_EXPIRY" env-default:"240h"`
}

type HTTPServerConfig struct {
	Address         string        `yaml:"address" env:"HTTP_ADDRESS" env-default:"localhost:8080"`
	Timeout         time.Duration `yaml:"timeout" env-default:"5s"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env-default:"60s"`
	InsecureCookies bool          `yaml:"insecure_cookies"`
	AllowOrigins    []string      `yaml:"allow_origins" env-default:"http://localhost:5173"`
	LoginRPS        float64       `yaml:"login_rps" env-default:"1"`
	LoginBurst      int           `yaml:"login_burst" env-default:"5"`
	// TrustedProxies lists the proxies whose X-Forwarded-For is believed.
	// Empty means the client IP is always the remote address.
	TrustedProxies  []string      `yaml:"trusted_proxies" env:"HTTP_TRUSTED_PROXIES"`
}

type GRPCConfig struct {
	Port    int           `yaml:"port" env-default:"44044"`
	Timeout time.Duration `yaml:"timeout" env-default:"5s"`
}

// MustLoad reads the config from the path given by --config or CONFIG_PATH
// and panics on failure.
func MustLoad() *Config {
	path := fetchConfigPath()
	if path == "" {
		panic("config path is empty")
	}

	return MustLoadPath(path)
}

func MustLoadPath(path string) *Config {
	cfg, err := Load(path)
	if err != nil {
		panic(err.Error())
	}

	return cfg
}

func Load(path string) (*Config, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("config file not found: %s", path)
	}

	var cfg Config
	if err := cleanenv.ReadConfig(path, &cfg); err != nil {
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Tokens.AccessSecret == c.Tokens.RefreshSecret {
		return errors.New("access and refresh token secrets must differ")
	}
	if c.Tokens.AccessTTL <= 0 || c.Tokens.RefreshTTL <= 0 {
		return errors.New("token expiries must be positive")
	}
	switch c.Storage {
	case StorageMongo:
	case StorageSQLite:
		if c.StoragePath == "" {
			return errors.New("storage_path is required for sqlite storage")
		}
	default:
		return fmt.Errorf("unknown storage %q", c.Storage)
	}
	return nil
}

// fetchConfigPath takes the path from the --config flag, falling back to
// the CONFIG_PATH env variable.
func fetchConfigPath() string {
	var res string

	flag.StringVar(&res, "config", "", "path to config file")
	flag.Parse()

	if res == "" {
		res = os.Getenv("CONFIG_PATH")
	}

	return res
}
