package querycache

import "time"

// TTL defaults.
const (
	OneDay      = 24 * time.Hour
	OneHour     = time.Hour
	FiveMinutes = 5 * time.Minute

	DefaultNamespace = "db"
	DefaultEntityTTL = OneDay
	DefaultCountTTL  = OneDay
	DefaultFilterTTL = FiveMinutes

	defaultGenRetention = 30 * 24 * time.Hour
	defaultSweep        = time.Hour
)

// coalesce returns def when v is the zero value of T - otherwise v.
func coalesce[T comparable](v, def T) T {
	var zero T
	if v == zero {
		return def
	}
	return v
}
