package observability

import (
	"cmp"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LogConfig selects the level, the encoding and the sink of the process logger
type LogConfig struct {
	Level   string
	Format  string // json (default) or console
	Service string
	Out     io.Writer
}

var levelNames = map[string]zerolog.Level{
	"trace":   zerolog.TraceLevel,
	"debug":   zerolog.DebugLevel,
	"info":    zerolog.InfoLevel,
	"warn":    zerolog.WarnLevel,
	"warning": zerolog.WarnLevel,
	"error":   zerolog.ErrorLevel,
	"fatal":   zerolog.FatalLevel,
	"panic":   zerolog.PanicLevel,
}

// LevelFor maps a configured level name onto zerolog, falling back to info
func LevelFor(name string) zerolog.Level {
	if level, ok := levelNames[strings.ToLower(strings.TrimSpace(name))]; ok {
		return level
	}
	return zerolog.InfoLevel
}

// NewLogger builds the process logger, tags every entry with the service
// name and installs it as the zerolog global.
func NewLogger(cfg LogConfig) zerolog.Logger {
	zerolog.SetGlobalLevel(LevelFor(cfg.Level))

	logger := zerolog.New(sink(cfg)).
		With().
		Timestamp().
		Str("service", cmp.Or(cfg.Service, "bookshop")).
		Logger()
	log.Logger = logger
	return logger
}

func sink(cfg LogConfig) io.Writer {
	var out io.Writer = os.Stdout
	if cfg.Out != nil {
		out = cfg.Out
	}
	if strings.EqualFold(cfg.Format, "console") {
		return zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	return out
}

// ForRequest scopes logger to one request. An empty id leaves it untouched.
func ForRequest(logger zerolog.Logger, requestID string) zerolog.Logger {
	if requestID == "" {
		return logger
	}
	return logger.With().Str("request_id", requestID).Logger()
}
