package probe

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"
)

// HTTPChecker issues one GET per check. A target is up only when it answers
// exactly 200; there are no retries, the next sweep absorbs transient errors.
type HTTPChecker struct {
	Client *http.Client
	// DNS, when set, adds a resolver classification to transport failures.
	DNS bool

	diagnose func(ctx context.Context, host string) DNSStatus
}

func NewHTTPChecker(timeout time.Duration) *HTTPChecker {
	return &HTTPChecker{
		Client:   &http.Client{Timeout: timeout},
		diagnose: CheckDNS,
	}
}

func (h *HTTPChecker) Check(ctx context.Context, target string) Result {
	start := time.Now()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return Result{Success: false, Message: err.Error()}
	}
	req.Header.Set("User-Agent", "sitewatch/1.0")

	resp, err := h.Client.Do(req)
	latency := time.Since(start).Seconds() * 1000 // ms
	if err != nil {
		msg := err.Error()
		if h.DNS {
			// the probe ctx is usually spent by now; the lookup has its own bound
			msg = fmt.Sprintf("%s dns=%s", msg, h.lookup(context.WithoutCancel(ctx), extractHost(target)).Class)
		}
		return Result{Success: false, Message: msg, LatencyMS: latency}
	}
	defer resp.Body.Close()
	// drain a little so keep-alive connections can be reused
	_, _ = io.CopyN(io.Discard, resp.Body, 4<<10)

	return Result{
		Success:    resp.StatusCode == http.StatusOK,
		StatusCode: resp.StatusCode,
		Message:    resp.Status,
		LatencyMS:  latency,
	}
}

func (h *HTTPChecker) lookup(ctx context.Context, host string) DNSStatus {
	if h.diagnose != nil {
		return h.diagnose(ctx, host)
	}
	return CheckDNS(ctx, host)
}

func extractHost(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return raw
	}
	return u.Hostname()
}
