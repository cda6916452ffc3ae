// Package zap adapts a *zap.Logger to querycache.Logger.
package zap

import (
	"github.com/unkn0wn-root/querycache"
	"go.uber.org/zap"
)

var _ querycache.Logger = Logger{}

type Logger struct{ L *zap.Logger }

// New tags every entry with the table it logs for.
func New(l *zap.Logger, table string) Logger {
	return Logger{L: l.With(zap.String("table", table))}
}

func (z Logger) Debug(msg string, f querycache.Fields) { z.L.Debug(msg, zf(f)...) }
func (z Logger) Info(msg string, f querycache.Fields)  { z.L.Info(msg, zf(f)...) }
func (z Logger) Warn(msg string, f querycache.Fields)  { z.L.Warn(msg, zf(f)...) }
func (z Logger) Error(msg string, f querycache.Fields) { z.L.Error(msg, zf(f)...) }

func zf(f querycache.Fields) []zap.Field {
	if len(f) == 0 {
		return nil
	}
	out := make([]zap.Field, 0, len(f))
	for k, v := range f {
		if err, ok := v.(error); ok {
			out = append(out, zap.NamedError(k, err))
			continue
		}
		out = append(out, zap.Any(k, v))
	}
	return out
}
