// Package config loads the settings of the mediator binaries from the
// environment and an optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds application configuration values.
type Config struct {
	Env  string `validate:"required,oneof=dev prod"`
	HTTP struct {
		Addr            string        `validate:"required"`
		ShutdownTimeout time.Duration `validate:"gt=0"`
	}
	API struct {
		// Base is the path prefix of every contract route.
		Base string
	}
	Log struct {
		ConsoleLevel string `validate:"required,oneof=debug info warn error"`
		FileLevel    string `validate:"required,oneof=debug info warn error"`
		File         string
		ConsoleJSON  bool
	}
	Journal struct {
		Driver    string        `validate:"required,oneof=sqlite postgres none"`
		DSN       string        `validate:"required_unless=Driver none"`
		Retention time.Duration `validate:"gt=0"`
		PruneSpec string        `validate:"required"`
	}
	Client struct {
		BaseURL string        `validate:"required,url"`
		Timeout time.Duration `validate:"gt=0"`
		Retries int           `validate:"min=0,max=10"`
	}
	Guard struct {
		APIKeys   []string
		RateLimit time.Duration `validate:"min=0"`
	}
	Tracing bool
}

var validate = validator.New()

// Load reads configuration from environment variables and an optional .env
// file in the working directory.
func Load() (Config, error) {
	_ = godotenv.Load()
	return FromEnv()
}

// FromEnv reads configuration from environment variables only.
func FromEnv() (Config, error) {
	var (
		c    Config
		errs []error
	)
	dur := func(k, def string) time.Duration {
		d, err := time.ParseDuration(getenv(k, def))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", k, err))
		}
		return d
	}
	num := func(k, def string) int {
		n, err := strconv.Atoi(getenv(k, def))
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", k, err))
		}
		return n
	}
	flag := func(k string) bool {
		v := getenv(k, "false")
		b, err := strconv.ParseBool(v)
		if err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", k, err))
		}
		return b
	}

	c.Env = getenv("ENV", "prod")
	c.HTTP.Addr = getenv("HTTP_ADDR", ":8080")
	c.HTTP.ShutdownTimeout = dur("HTTP_SHUTDOWN_TIMEOUT", "10s")
	c.API.Base = strings.Trim(getenv("API_BASE", "api"), "/")
	c.Log.ConsoleLevel = strings.ToLower(getenv("LOG_CONSOLE_LEVEL", "info"))
	c.Log.FileLevel = strings.ToLower(getenv("LOG_FILE_LEVEL", "debug"))
	c.Log.File = os.Getenv("LOG_FILE")
	c.Log.ConsoleJSON = flag("LOG_CONSOLE_JSON")
	c.Journal.Driver = strings.ToLower(getenv("JOURNAL_DRIVER", "sqlite"))
	c.Journal.DSN = getenv("JOURNAL_DSN", "data/journal.db")
	c.Journal.Retention = dur("JOURNAL_RETENTION", "168h")
	c.Journal.PruneSpec = getenv("JOURNAL_PRUNE_SPEC", "@every 1h")
	c.Client.BaseURL = getenv("CLIENT_BASE_URL", "http://localhost:8080/api")
	c.Client.Timeout = dur("CLIENT_TIMEOUT", "15s")
	c.Client.Retries = num("CLIENT_RETRIES", "2")
	c.Guard.APIKeys = splitList(os.Getenv("API_KEYS"))
	c.Guard.RateLimit = dur("RATE_LIMIT", "0s")
	c.Tracing = flag("TRACING")

	if len(errs) > 0 {
		return Config{}, errors.Join(errs...)
	}
	if err := validate.Struct(c); err != nil {
		return Config{}, err
	}
	return c, nil
}

func splitList(s string) []string {
	var out []string
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}
