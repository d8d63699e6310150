package internal

import (
	"io"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
	"github.com/mattn/go-colorable"
	"github.com/mattn/go-isatty"
)

// NewLogger builds the process logger. "json" writes one JSON object per
// line; "text" writes tint's human format, coloured only on a terminal.
// "auto" picks text on a terminal and JSON otherwise.
func NewLogger(f *os.File, level slog.Leveler, format string) *slog.Logger {
	tty := isatty.IsTerminal(f.Fd()) || isatty.IsCygwinTerminal(f.Fd())
	if format == LogFormatAuto || format == "" {
		format = LogFormatJSON
		if tty {
			format = LogFormatText
		}
	}
	return newLogger(f, tty, level, format)
}

func newLogger(w io.Writer, tty bool, level slog.Leveler, format string) *slog.Logger {
	if format == LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	}
	if f, ok := w.(*os.File); ok {
		w = colorable.NewColorable(f)
	}
	return slog.New(tint.NewHandler(w, &tint.Options{
		Level:      level,
		TimeFormat: "15:04:05.000",
		NoColor:    !tty,
	}))
}
