package config

import (
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
)

// LoadInitFile returns the plain listener port remembered in path. When the
// file is absent or unreadable it is rewritten with defaultPort; a corrupt
// file is replaced, not repaired.
func LoadInitFile(path string, defaultPort int) (int, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("json")

	if err := v.ReadInConfig(); err == nil {
		if port := v.GetInt("port"); port > 0 && port < 65536 {
			log.Info().Str("module", "config").Str("file", path).Int("port", port).Msg("loaded init file")
			return port, nil
		}
		log.Warn().Str("module", "config").Str("file", path).Msg("init file has no valid port, rewriting")
	} else {
		log.Warn().Err(err).Str("module", "config").Str("file", path).Msg("init file unreadable, rewriting")
	}

	return defaultPort, SaveInitFile(path, defaultPort)
}

// SaveInitFile records port in path, creating the directory if needed.
func SaveInitFile(path string, port int) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	v := viper.New()
	v.SetConfigType("json")
	v.Set("port", port)
	return v.WriteConfigAs(path)
}

// ApplyInitFile settles the plain listener port. An explicit http_port (config
// file or RELAY_HTTP_PORT) wins and is written to the init file; otherwise the
// port remembered in the init file is used.
func ApplyInitFile(cfg *Config) error {
	if cfg.HTTPPortSet {
		log.Info().Str("module", "config").Str("file", cfg.InitFile).Int("port", cfg.HTTPPort).Msg("explicit http_port, updating init file")
		return SaveInitFile(cfg.InitFile, cfg.HTTPPort)
	}
	port, err := LoadInitFile(cfg.InitFile, cfg.HTTPPort)
	cfg.HTTPPort = port
	return err
}
