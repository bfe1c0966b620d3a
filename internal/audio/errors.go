package audio

import "fmt"

// ConfigurationError reports a missing credential or an unsupported policy
// combination. It is fatal and surfaced before any network activity.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}
