package logger

import (
	"log"
	"log/slog"
	"os"
)

// New returns a stdlib *log.Logger for libraries that only speak
// Printf/Println. Lines are forwarded to base at the given level under a
// component attribute; a nil base writes plain text to stdout.
func New(component string, base *slog.Logger, level slog.Level) *log.Logger {
	if base == nil {
		return log.New(os.Stdout, "["+component+"] ", log.LstdFlags)
	}
	return slog.NewLogLogger(base.With("component", component).Handler(), level)
}
