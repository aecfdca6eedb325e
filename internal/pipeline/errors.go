package pipeline

import (
	"fmt"

	"github.com/rohmanhakim/author-index/pkg/failure"
)

// RunError wraps the one fatal, whole-run-aborting failure: discover()
// raising. It is always fatal — a run either completes with
// per-URL errors counted, or it fails outright and is reported as such.
type RunError struct {
	Stage   string
	Message string
}

func (e *RunError) Error() string {
	return fmt.Sprintf("pipeline run error at stage %q: %s", e.Stage, e.Message)
}

func (e *RunError) Severity() failure.Severity {
	return failure.SeverityFatal
}

var _ failure.ClassifiedError = (*RunError)(nil)

// callStage runs fn, converting both its returned error and any panic it
// raises into a single error value so a single misbehaving stage never
// takes down the rest of the per-URL loop. This mirrors the try/except
// wrapping around each stage call.
func callStage(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("%v", r)
		}
	}()
	return fn()
}
