package config

import (
	"errors"
	"fmt"
	"strings"
)

var validLogLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
var validLogFormats = map[string]bool{"json": true, "console": true}

// Validate checks the configuration for values the service cannot run with.
// All problems are reported at once.
func Validate(cfg *Config) error {
	var errs []error

	if strings.TrimSpace(cfg.Service.Name) == "" {
		errs = append(errs, errors.New("service.name must not be empty"))
	}

	if cfg.HTTP.Port < 1 || cfg.HTTP.Port > 65535 {
		errs = append(errs, fmt.Errorf("http.port %d out of range", cfg.HTTP.Port))
	}
	if cfg.HTTP.ReadTimeout <= 0 || cfg.HTTP.WriteTimeout <= 0 {
		errs = append(errs, errors.New("http timeouts must be positive"))
	}

	if !strings.HasPrefix(cfg.MongoDB.URL, "mongodb://") && !strings.HasPrefix(cfg.MongoDB.URL, "mongodb+srv://") {
		errs = append(errs, fmt.Errorf("mongodb.url %q must use mongodb:// or mongodb+srv://", cfg.MongoDB.URL))
	}
	if strings.TrimSpace(cfg.MongoDB.Database) == "" {
		errs = append(errs, errors.New("mongodb.database must not be empty"))
	}
	if cfg.MongoDB.Timeout <= 0 {
		errs = append(errs, errors.New("mongodb.timeout must be positive"))
	}

	if !validLogLevels[cfg.Logger.Level] {
		errs = append(errs, fmt.Errorf("logger.level %q is not one of debug, info, warn, error", cfg.Logger.Level))
	}
	if !validLogFormats[cfg.Logger.Format] {
		errs = append(errs, fmt.Errorf("logger.format %q is not one of json, console", cfg.Logger.Format))
	}

	if cfg.RateLimit.Enabled {
		if cfg.RateLimit.RPS <= 0 {
			errs = append(errs, errors.New("ratelimit.rps must be positive when the limiter is enabled"))
		}
		if cfg.RateLimit.Burst < 1 {
			errs = append(errs, errors.New("ratelimit.burst must be at least 1 when the limiter is enabled"))
		}
	}

	if cfg.Directory.DefaultPageSize < 1 {
		errs = append(errs, errors.New("directory.default_page_size must be at least 1"))
	}
	if cfg.Directory.MaxPageSize < cfg.Directory.DefaultPageSize {
		errs = append(errs, errors.New("directory.max_page_size must not be below directory.default_page_size"))
	}

	return errors.Join(errs...)
}
