package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/rs/zerolog"
	slogzerolog "github.com/samber/slog-zerolog/v2"
)

// NewLogger builds the CLI logger: slog's text handler, or zerolog JSON
// lines behind an slog handler. Verbose lowers the level to DEBUG, which
// includes every executed statement.
func NewLogger(w io.Writer, format string, verbose bool) (*slog.Logger, error) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	switch format {
	case "", "text":
		return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level})), nil
	case "json":
		zl := zerolog.New(w).With().Timestamp().Logger()
		return slog.New(slogzerolog.Option{Level: level, Logger: &zl}.NewZerologHandler()), nil
	default:
		return nil, fmt.Errorf("invalid log format %q: must be one of %v", format, ValidLogFormats)
	}
}
