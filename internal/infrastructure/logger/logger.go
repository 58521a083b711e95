package logger

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

const service = "vendorpay"

// Config holds logger configuration.
type Config struct {
	Level  string // debug, info, warn, error
	Format string // json, console
	// Process distinguishes the API server from other binaries in shared
	// log streams. Optional.
	Process string
}

// New returns a logger writing to stdout.
func New(cfg Config) zerolog.Logger {
	return NewWithWriter(cfg, os.Stdout)
}

// NewWithWriter returns a logger writing to w. Timestamps are UTC RFC3339
// with milliseconds. An unknown level falls back to info and is reported once.
func NewWithWriter(cfg Config, w io.Writer) zerolog.Logger {
	zerolog.TimeFieldFormat = "2006-01-02T15:04:05.000Z07:00"
	zerolog.TimestampFunc = func() time.Time { return time.Now().UTC() }

	out := w
	if strings.EqualFold(cfg.Format, "console") {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339, NoColor: true}
	}

	level, known := parseLevel(cfg.Level)
	ctx := zerolog.New(out).Level(level).With().Timestamp().Str("service", service)
	if cfg.Process != "" {
		ctx = ctx.Str("process", cfg.Process)
	}
	if level <= zerolog.DebugLevel {
		ctx = ctx.Caller()
	}
	log := ctx.Logger()

	if !known {
		log.Warn().Str("log_level", cfg.Level).Msg("unknown log level, using info")
	}
	return log
}

func parseLevel(s string) (zerolog.Level, bool) {
	if s == "" {
		return zerolog.InfoLevel, true
	}
	switch level, err := zerolog.ParseLevel(strings.ToLower(s)); {
	case err != nil, level == zerolog.NoLevel:
		return zerolog.InfoLevel, false
	default:
		return level, true
	}
}
