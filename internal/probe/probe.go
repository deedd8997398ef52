package probe

import (
	"context"

	"github.com/hamed0406/sitewatch/internal/domain"
)

// Result is the outcome of a single probe.
//
// Fields:
//   - StatusCode: HTTP status code when a response arrived; 0 for transport/DNS errors.
//   - Message: response status line or the transport error text.
type Result struct {
	Success    bool
	StatusCode int
	LatencyMS  float64
	Message    string
}

// Status classifies the result. Anything that is not a success is DOWN.
func (r Result) Status() domain.Status {
	if r.Success {
		return domain.StatusUp
	}
	return domain.StatusDown
}

// Checker performs a single check for a given target URL. Implementations
// never return errors: failures are reported as an unsuccessful Result.
type Checker interface {
	Check(ctx context.Context, target string) Result
}
