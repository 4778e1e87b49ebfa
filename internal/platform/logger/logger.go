package logger

import (
	"log/slog"
	"os"
)

// New returns the process logger. JSON output so log aggregation can key on
// request_id and record_id fields.
func New() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stdout, nil))
}
