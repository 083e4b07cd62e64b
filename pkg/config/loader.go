package config

import (
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix is the prefix of every configuration environment variable.
const EnvPrefix = "ADMITDESK"

// Loader loads configuration from an optional file and the environment.
type Loader struct {
	configFile string
	envPrefix  string
}

// NewLoader creates a Loader. configFile may be empty, in which case only
// defaults and environment variables apply.
func NewLoader(configFile string) *Loader {
	return &Loader{configFile: configFile, envPrefix: EnvPrefix}
}

// Load resolves the configuration with precedence ENV > file > defaults and
// validates the result.
func (l *Loader) Load() (*Config, error) {
	v := viper.New()

	l.setDefaults(v, DefaultConfig())

	if l.configFile != "" {
		v.SetConfigFile(l.configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file %s: %w", l.configFile, err)
		}
	}

	v.SetEnvPrefix(l.envPrefix)
	l.bindEnvVars(v)

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	if err := Validate(&cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}

func (l *Loader) setDefaults(v *viper.Viper, d *Config) {
	v.SetDefault("service.name", d.Service.Name)
	v.SetDefault("service.environment", d.Service.Environment)

	v.SetDefault("http.port", d.HTTP.Port)
	v.SetDefault("http.read_timeout", d.HTTP.ReadTimeout)
	v.SetDefault("http.write_timeout", d.HTTP.WriteTimeout)
	v.SetDefault("http.idle_timeout", d.HTTP.IdleTimeout)
	v.SetDefault("http.shutdown_timeout", d.HTTP.ShutdownTimeout)

	v.SetDefault("mongodb.url", d.MongoDB.URL)
	v.SetDefault("mongodb.database", d.MongoDB.Database)
	v.SetDefault("mongodb.timeout", d.MongoDB.Timeout)

	v.SetDefault("logger.level", d.Logger.Level)
	v.SetDefault("logger.format", d.Logger.Format)

	v.SetDefault("ratelimit.enabled", d.RateLimit.Enabled)
	v.SetDefault("ratelimit.rps", d.RateLimit.RPS)
	v.SetDefault("ratelimit.burst", d.RateLimit.Burst)

	v.SetDefault("directory.default_page_size", d.Directory.DefaultPageSize)
	v.SetDefault("directory.max_page_size", d.Directory.MaxPageSize)
}

// bindEnvVars binds every nested key explicitly; viper's AutomaticEnv does
// not see keys that only exist in defaults of nested structs.
func (l *Loader) bindEnvVars(v *viper.Viper) {
	v.BindEnv("service.name", l.env("SERVICE_NAME"))
	v.BindEnv("service.environment", l.env("SERVICE_ENVIRONMENT"), l.env("ENVIRONMENT"))

	v.BindEnv("http.port", l.env("HTTP_PORT"))
	v.BindEnv("http.read_timeout", l.env("HTTP_READ_TIMEOUT"))
	v.BindEnv("http.write_timeout", l.env("HTTP_WRITE_TIMEOUT"))
	v.BindEnv("http.idle_timeout", l.env("HTTP_IDLE_TIMEOUT"))
	v.BindEnv("http.shutdown_timeout", l.env("HTTP_SHUTDOWN_TIMEOUT"))

	v.BindEnv("mongodb.url", l.env("MONGODB_URL"))
	v.BindEnv("mongodb.database", l.env("MONGODB_DATABASE"))
	v.BindEnv("mongodb.timeout", l.env("MONGODB_TIMEOUT"))

	v.BindEnv("logger.level", l.env("LOG_LEVEL"))
	v.BindEnv("logger.format", l.env("LOG_FORMAT"))

	v.BindEnv("ratelimit.enabled", l.env("RATELIMIT_ENABLED"))
	v.BindEnv("ratelimit.rps", l.env("RATELIMIT_RPS"))
	v.BindEnv("ratelimit.burst", l.env("RATELIMIT_BURST"))

	v.BindEnv("directory.default_page_size", l.env("DIRECTORY_DEFAULT_PAGE_SIZE"))
	v.BindEnv("directory.max_page_size", l.env("DIRECTORY_MAX_PAGE_SIZE"))
}

func (l *Loader) env(suffix string) string {
	return l.envPrefix + "_" + strings.ToUpper(suffix)
}
