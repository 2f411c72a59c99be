package logger

import (
	"io"
	"os"
	"strings"

	"github.com/google/goterm/term"
	"github.com/rs/zerolog"
)

const timeLayout = "2006-01-02 15:04:05"

type Options struct {
	Level   string
	JSON    bool
	Colored bool
	// Out defaults to stdout.
	Out io.Writer
}

// New builds the process logger. Components derive their own loggers from it
// with With().Str("component", ...).
func New(opts Options) (zerolog.Logger, error) {
	level := strings.TrimSpace(opts.Level)
	if level == "" {
		level = zerolog.LevelInfoValue
	}
	lvl, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil {
		return zerolog.Nop(), err
	}

	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	if !opts.JSON {
		cw := zerolog.ConsoleWriter{
			Out:        out,
			NoColor:    !opts.Colored,
			TimeFormat: timeLayout,
		}
		if opts.Colored {
			cw.FormatLevel = formatLevel
		}
		out = cw
	}

	return zerolog.New(out).
		Level(lvl).
		With().
		Timestamp().
		Logger(), nil
}

func formatLevel(i interface{}) string {
	level, _ := i.(string)
	switch level {
	case zerolog.LevelTraceValue, zerolog.LevelDebugValue:
		return term.Cyanf("[%s]", abbrev(level))
	case zerolog.LevelInfoValue:
		return term.Greenf("[INF]")
	case zerolog.LevelWarnValue:
		return term.Yellowf("[WRN]")
	case zerolog.LevelErrorValue, zerolog.LevelFatalValue, zerolog.LevelPanicValue:
		return term.Redf("[%s]", abbrev(level))
	default:
		return term.Whitef("[UNK]")
	}
}

func abbrev(level string) string {
	if len(level) < 3 {
		return strings.ToUpper(level)
	}
	return strings.ToUpper(level[:3])
}
