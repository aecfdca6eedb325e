package politeness

import (
	"fmt"

	"github.com/rohmanhakim/author-index/pkg/failure"
)

// ConfigError reports an invalid construction argument. Always fatal: a
// misconfigured politeness gate must never silently run unthrottled.
type ConfigError struct {
	Message string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("politeness config error: %s", e.Message)
}

func (e *ConfigError) Severity() failure.Severity {
	return failure.SeverityFatal
}
