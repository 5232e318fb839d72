package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

type Config struct {
	Mode            string        `mapstructure:"mode"`
	LogLevel        string        `mapstructure:"log_level"`
	Host            string        `mapstructure:"host"`
	HTTPPort        int           `mapstructure:"http_port"`
	HTTPSPort       int           `mapstructure:"https_port"`
	StaticPath      string        `mapstructure:"static_path"`
	CertDir         string        `mapstructure:"cert_dir"`
	InitFile        string        `mapstructure:"init_file"`
	WatchCerts      bool          `mapstructure:"watch_certs"`
	HealthInterval  time.Duration `mapstructure:"health_interval"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	ReadLimit       int64         `mapstructure:"read_limit"`
	PingPeriod      time.Duration `mapstructure:"ping_period"`
	SendBuffer      int           `mapstructure:"send_buffer"`
	RoleARoom       string        `mapstructure:"role_a_room"`
	RoleBRoom       string        `mapstructure:"role_b_room"`
	ControlLimit    int           `mapstructure:"control_limit"`
	ControlInterval time.Duration `mapstructure:"control_interval"`

	// HTTPPortSet is true when http_port came from the config file or
	// RELAY_HTTP_PORT rather than the default.
	HTTPPortSet bool `mapstructure:"-"`
}

func (c *Config) PlainAddr() string { return fmt.Sprintf("%s:%d", c.Host, c.HTTPPort) }
func (c *Config) TLSAddr() string   { return fmt.Sprintf("%s:%d", c.Host, c.HTTPSPort) }

func setDefaults(v *viper.Viper) {
	v.SetDefault("mode", "release")
	v.SetDefault("log_level", "info")
	v.SetDefault("host", "")
	v.SetDefault("http_port", 3001)
	v.SetDefault("https_port", 3002)
	v.SetDefault("static_path", "./public")
	v.SetDefault("cert_dir", "./certificates")
	v.SetDefault("init_file", "config/init.json")
	v.SetDefault("watch_certs", true)
	v.SetDefault("health_interval", "10s")
	v.SetDefault("shutdown_timeout", "5s")
	v.SetDefault("read_limit", 32768)
	v.SetDefault("ping_period", "54s")
	v.SetDefault("send_buffer", 32)
	v.SetDefault("role_a_room", "TPV")
	v.SetDefault("role_b_room", "second_screen")
	v.SetDefault("control_limit", 3)
	v.SetDefault("control_interval", "1m")
}

// Load reads config/config.<CONFIG_ENV>.yaml (dev by default). Missing files
// fall back to defaults; RELAY_* environment variables override both.
func Load() (*Config, error) {
	env := os.Getenv("CONFIG_ENV")
	if env == "" {
		env = "dev"
	}
	return LoadFile(fmt.Sprintf("config/config.%s.yaml", env))
}

func LoadFile(fileName string) (*Config, error) {
	v := viper.New()
	v.SetConfigType("yaml")
	v.SetConfigFile(fileName)
	v.AddConfigPath(".")
	v.AddConfigPath("./config")

	v.SetEnvPrefix("RELAY")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !os.IsNotExist(err) {
			return nil, fmt.Errorf("failed to read config %s: %w", fileName, err)
		}
		log.Warn().Str("module", "config").Str("file", fileName).Msg("config file not found, using defaults")
	} else {
		log.Info().Str("module", "config").Str("file", fileName).Msg("loaded config")
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}
	_, envPort := os.LookupEnv("RELAY_HTTP_PORT")
	cfg.HTTPPortSet = envPort || v.InConfig("http_port")
	log.Info().
		Str("module", "config").
		Str("mode", cfg.Mode).
		Int("http_port", cfg.HTTPPort).
		Int("https_port", cfg.HTTPSPort).
		Str("static", cfg.StaticPath).
		Msg("config ready")
	return &cfg, nil
}
