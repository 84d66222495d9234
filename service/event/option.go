package event

import "log/slog"

type options struct {
	logger *slog.Logger
}

// Option customises a Listener.
type Option func(o *options)

// WithLogger sets the logger used for consume and handler failures.
func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		if logger != nil {
			o.logger = logger
		}
	}
}
