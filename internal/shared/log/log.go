package log

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

var (
	mu     sync.RWMutex
	output io.Writer = os.Stderr
	level            = zerolog.InfoLevel
	plain  bool
)

type Options struct {
	Level  string
	Output io.Writer
	// Plain disables colors, for log collectors.
	Plain bool
}

// Configure sets the defaults used by every logger created afterwards.
func Configure(opts Options) error {
	lvl := zerolog.InfoLevel
	if opts.Level != "" {
		var err error
		lvl, err = zerolog.ParseLevel(strings.ToLower(opts.Level))
		if err != nil {
			return fmt.Errorf("failed to parse log level '%s': %w", opts.Level, err)
		}
	}
	mu.Lock()
	defer mu.Unlock()
	level = lvl
	plain = opts.Plain
	if opts.Output != nil {
		output = opts.Output
	}
	return nil
}

func New(module string) zerolog.Logger {
	mu.RLock()
	w, lvl, noColor := output, level, plain
	mu.RUnlock()

	out := zerolog.ConsoleWriter{
		Out:           w,
		NoColor:       noColor,
		TimeFormat:    "15:04:05",
		PartsOrder:    []string{"time", "level", "module", "message"},
		FieldsExclude: []string{"module"},
	}

	out.FormatPartValueByName = func(i any, s string) string {
		if s == "module" && i != nil {
			return strings.ToUpper(fmt.Sprintf("%s", i))
		}
		return ""
	}

	if !noColor {
		out.FormatFieldName = func(i any) string {
			return fmt.Sprintf("\n         \033[30m- \033[36m%s: \033[0m", i)
		}
		out.FormatErrFieldName = func(i any) string {
			return fmt.Sprintf("\n         \033[30m- \033[31m%s: \033[0m", i)
		}
	}

	logger := zerolog.New(out).
		Level(lvl).
		With().
		Timestamp().
		Str("module", module).
		Logger()

	return logger
}

// OrNop returns l, or a disabled logger when l is nil.
func OrNop(l *zerolog.Logger) *zerolog.Logger {
	if l != nil {
		return l
	}
	nop := zerolog.Nop()
	return &nop
}
