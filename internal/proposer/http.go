package proposer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/simjay/celor/internal/wire"
)

// defaultUserAgent identifies the client when the caller does not supply
// its own build-stamped value.
const defaultUserAgent = "celor-proposer"

// HTTPClient calls a configured LLM-proposer endpoint once per bank
// miss: net/http, context, and a configurable timeout, decoding the
// transport document the endpoint returns. Outbound calls are
// rate-limited so a watch-mode sweep over many broken manifests cannot
// hammer the remote model endpoint; the limiter waits (within ctx)
// rather than failing, since a proposer call is already the slow path.
type HTTPClient struct {
	Endpoint string
	Timeout  time.Duration

	// UserAgent is sent with every request; empty means defaultUserAgent.
	UserAgent string

	http    *http.Client
	limiter *rate.Limiter
}

var _ Proposer = (*HTTPClient)(nil)

// NewHTTPClient builds a client against endpoint with the given timeout,
// limited to one request per second with a burst of two. An empty
// endpoint makes every Propose call return ErrUnavailable without
// attempting a request, so callers can wire this client in
// unconditionally and let the controller's fallback path take over.
func NewHTTPClient(endpoint string, timeout time.Duration) *HTTPClient {
	return &HTTPClient{
		Endpoint: endpoint,
		Timeout:  timeout,
		http:     &http.Client{Timeout: timeout},
		limiter:  rate.NewLimiter(rate.Limit(1), 2),
	}
}

// SetRateLimit replaces the default outbound limit. Zero or negative rps
// disables limiting entirely.
func (c *HTTPClient) SetRateLimit(rps float64, burst int) {
	if rps <= 0 {
		c.limiter = rate.NewLimiter(rate.Inf, 0)
		return
	}
	if burst <= 0 {
		burst = 1
	}
	c.limiter = rate.NewLimiter(rate.Limit(rps), burst)
}

type requestPayload struct {
	Artifact   json.RawMessage    `json:"artifact"`
	Violations []ViolationSummary `json:"violations"`
}

// wireProposal is the shape of a proposer response document.
type wireProposal struct {
	Template  wire.Template      `json:"template"`
	HoleSpace wire.OrderedObject `json:"hole_space"`
}

func (c *HTTPClient) Propose(ctx context.Context, pc ProposalContext) (*Proposal, error) {
	if c.Endpoint == "" {
		return nil, ErrUnavailable
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("proposer: rate limit wait: %w", err)
	}

	body, err := json.Marshal(requestPayload{Artifact: pc.ArtifactJSON, Violations: pc.Violations})
	if err != nil {
		return nil, fmt.Errorf("proposer: encoding request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.Endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("proposer: building request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	ua := c.UserAgent
	if ua == "" {
		ua = defaultUserAgent
	}
	req.Header.Set("User-Agent", ua)

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("proposer: request failed: %w", err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("proposer: reading response: %w", err)
	}
	if resp.StatusCode >= 300 {
		return nil, fmt.Errorf("proposer: %s returned status %d: %s", c.Endpoint, resp.StatusCode, bytes.TrimSpace(data))
	}

	var wp wireProposal
	if err := json.Unmarshal(data, &wp); err != nil {
		return nil, fmt.Errorf("proposer: malformed response: %w", err)
	}
	if len(wp.HoleSpace) == 0 {
		return nil, fmt.Errorf("proposer: malformed response: missing hole_space")
	}

	tmpl, err := wire.DecodeTemplate(wp.Template)
	if err != nil {
		return nil, fmt.Errorf("proposer: malformed response: %w", err)
	}
	space, err := wire.DecodeHoleSpace(wp.HoleSpace)
	if err != nil {
		return nil, fmt.Errorf("proposer: malformed response: %w", err)
	}

	for _, hole := range tmpl.HoleNames() {
		if !space.Has(hole) {
			return nil, fmt.Errorf("proposer: malformed response: template references hole %q absent from hole_space", hole)
		}
	}

	return &Proposal{Template: tmpl, HoleSpace: space}, nil
}
