// Package logrus adapts a *logrus.Entry to querycache.Logger.
package logrus

import (
	"github.com/sirupsen/logrus"
	"github.com/unkn0wn-root/querycache"
)

var _ querycache.Logger = Logger{}

type Logger struct{ E *logrus.Entry }

// New tags every entry with the table it logs for.
func New(l *logrus.Logger, table string) Logger {
	return Logger{E: l.WithField("table", table)}
}

func (l Logger) Debug(msg string, f querycache.Fields) { l.with(f).Debug(msg) }
func (l Logger) Info(msg string, f querycache.Fields)  { l.with(f).Info(msg) }
func (l Logger) Warn(msg string, f querycache.Fields)  { l.with(f).Warn(msg) }
func (l Logger) Error(msg string, f querycache.Fields) { l.with(f).Error(msg) }

func (l Logger) with(f querycache.Fields) *logrus.Entry {
	if len(f) == 0 {
		return l.E
	}
	return l.E.WithFields(logrus.Fields(f))
}
