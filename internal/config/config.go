package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	Storage
	HTTPServer
	Log
	Admin
	BBS
}

type Storage struct {
	Driver      string        `env:"STORAGE_DRIVER" env-default:"memory"`
	SQLitePath  string        `env:"SQLITE_PATH" env-default:"./data/bbs.db"`
	DatabaseURL string        `env:"DATABASE_URL"`
	Timeout     time.Duration `env:"STORE_TIMEOUT" env-default:"10s"`
	SQLLogLevel string        `env:"SQL_LOG_LEVEL" env-default:"warn"`
}

type HTTPServer struct {
	BindAddress     string        `env:"BIND_ADDRESS" env-default:"localhost"`
	BindPort        string        `env:"BIND_PORT" env-default:"8080"`
	ShutdownTimeout time.Duration `env:"SHUTDOWN_TIMEOUT" env-default:"5s"`
	ReadTimeout     time.Duration `env:"READ_TIMEOUT" env-default:"5s"`
	WriteTimeout    time.Duration `env:"WRITE_TIMEOUT" env-default:"15s"`
	AllowedOrigins  []string      `env:"CORS_ALLOWED_ORIGINS" env-separator:"," env-default:"http://localhost:5173"`
}

type Log struct {
	Level string `env:"LOG_LEVEL" env-default:"info"`
	JSON  bool   `env:"LOG_JSON" env-default:"false"`
}

type Admin struct {
	// JWTSecret verifies admin tokens issued by the identity provider.
	JWTSecret string `env:"ADMIN_JWT_SECRET"`
}

type BBS struct {
	SeedFile  string `env:"BBS_SEED_FILE"`
	PageSize  int    `env:"BBS_PAGE_SIZE" env-default:"20"`
	DemoPosts bool   `env:"BBS_DEMO_POSTS" env-default:"false"`
}

// New reads the configuration from the environment after loading the dotenv
// file at env, when one exists.
func New(env string) (*Config, error) {
	conf := &Config{}

	if env != "" {
		if err := godotenv.Overload(env); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("godotenv.Overload: %v", err)
		}
	}

	if err := cleanenv.ReadEnv(conf); err != nil {
		return nil, fmt.Errorf("cleanenv.ReadEnv: %v", err)
	}

	if err := conf.validate(); err != nil {
		return nil, err
	}
	return conf, nil
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case "memory", "sqlite":
	case "postgres":
		if c.Storage.DatabaseURL == "" {
			return errors.New("DATABASE_URL must be set for postgres storage")
		}
	default:
		return fmt.Errorf("unknown STORAGE_DRIVER %q", c.Storage.Driver)
	}
	if c.BBS.PageSize <= 0 {
		return fmt.Errorf("BBS_PAGE_SIZE must be positive, got %d", c.BBS.PageSize)
	}
	return nil
}

// Addr is the listen address of the HTTP server.
func (c *Config) Addr() string {
	return fmt.Sprintf("%v:%v", c.HTTPServer.BindAddress, c.HTTPServer.BindPort)
}

// Usage prints the supported environment variables.
func Usage() {
	cleanenv.FUsage(os.Stderr, &Config{}, nil)()
}
