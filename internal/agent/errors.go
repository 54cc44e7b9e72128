package agent

import "errors"

// ErrConfiguration matches every ConfigError. Configuration errors are fatal
// and never retried.
var ErrConfiguration = errors.New("configuration error")

// ConfigError reports a missing API key, a missing run id or an unmapped step kind.
type ConfigError struct {
	Reason string
}

func (e *ConfigError) Error() string { return "configuration error: " + e.Reason }

func (e *ConfigError) Is(target error) bool { return target == ErrConfiguration }
