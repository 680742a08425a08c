package proposer

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPClientDecodesWellFormedProposal(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"template": map[string]any{
				"ops": []map[string]any{
					{"op": "EnsureReplicas", "args": map[string]any{"replicas": map[string]any{"$hole": "replicas"}}},
				},
			},
			"hole_space": map[string]any{
				"replicas": []int{2, 3, 4, 5},
			},
		})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, 2*time.Second)
	p, err := c.Propose(context.Background(), ProposalContext{ArtifactJSON: []byte(`{}`)})
	require.NoError(t, err)
	require.NotNil(t, p)
	assert.True(t, p.HoleSpace.Has("replicas"))
	assert.Equal(t, []string{"replicas"}, p.Template.HoleNames())
}

func TestHTTPClientRejectsHoleSpaceMismatch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"template": map[string]any{
				"ops": []map[string]any{
					{"op": "EnsureReplicas", "args": map[string]any{"replicas": map[string]any{"$hole": "x"}}},
				},
			},
			"hole_space": map[string]any{
				"replicas": []int{2, 3},
			},
		})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, 2*time.Second)
	_, err := c.Propose(context.Background(), ProposalContext{ArtifactJSON: []byte(`{}`)})
	assert.Error(t, err)
}

func TestHTTPClientSendsUserAgent(t *testing.T) {
	var got string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("User-Agent")
		_ = json.NewEncoder(w).Encode(map[string]any{
			"template":   map[string]any{"ops": []map[string]any{}},
			"hole_space": map[string]any{"replicas": []int{2}},
		})
	}))
	defer srv.Close()

	c := NewHTTPClient(srv.URL, 2*time.Second)
	c.UserAgent = "repairctl/9.9.9"
	_, err := c.Propose(context.Background(), ProposalContext{})
	require.NoError(t, err)
	assert.Equal(t, "repairctl/9.9.9", got)
}

func TestHTTPClientRateLimitWaitHonoursContext(t *testing.T) {
	c := NewHTTPClient("http://unreachable.invalid", time.Second)
	// Exhaust the burst so the next call must wait, then cancel.
	c.SetRateLimit(0.001, 1)
	require.True(t, c.limiter.Allow())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := c.Propose(ctx, ProposalContext{})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestHTTPClientEmptyEndpointIsUnavailable(t *testing.T) {
	c := NewHTTPClient("", time.Second)
	_, err := c.Propose(context.Background(), ProposalContext{})
	assert.ErrorIs(t, err, ErrUnavailable)
}

func TestDefaultProposerAlwaysUnavailable(t *testing.T) {
	_, err := (Default{}).Propose(context.Background(), ProposalContext{})
	assert.ErrorIs(t, err, ErrUnavailable)
}
