package config

import (
	"os"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// InitLogging sets up the global console logger. Call it before Load so the
// loader can log.
func InitLogging() {
	zerolog.TimeFieldFormat = zerolog.TimeFormatUnix
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)
}

// ApplyLogLevel switches the global level to the configured one. Unknown
// names keep the current level.
func (c *Config) ApplyLogLevel() {
	if c.LogLevel == "" {
		return
	}
	lvl, err := zerolog.ParseLevel(c.LogLevel)
	if err != nil {
		log.Warn().Str("module", "config").Str("log_level", c.LogLevel).Msg("unknown log level ignored")
		return
	}
	zerolog.SetGlobalLevel(lvl)
}
