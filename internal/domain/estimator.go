package domain

import "context"

// SizeEstimator reports the approximate on-disk size of a schema in bytes.
// Implementations return 0 when the size cannot be determined.
type SizeEstimator interface {
	EstimateSizeBytes(ctx context.Context, schema string) int64
}

type Logger interface {
	Debugf(template string, args ...interface{})
	Infof(template string, args ...interface{})
	Warnf(template string, args ...interface{})
	Errorf(template string, args ...interface{})
}

// Notifier delivers a short human-readable message about a finished pull.
type Notifier interface {
	Notify(ctx context.Context, message string) error
}
