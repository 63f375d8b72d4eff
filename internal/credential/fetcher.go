package credential

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/Baoanh2610/callvideo/internal/token"
)

const maxResponseBytes = 16 << 10

// FetchError is a failure talking to the token service: network error, bad
// HTTP status, or a malformed response. Never retried automatically; the
// caller decides.
type FetchError struct {
	Status int // 0 when the request never completed
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("token fetch failed (http %d): %v", e.Status, e.Err)
	}
	return fmt.Sprintf("token fetch failed: %v", e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// Source produces credentials for an (identity, channel) pair. Implemented
// by Fetcher; tests substitute fakes.
type Source interface {
	Acquire(ctx context.Context, identity, channel string) (*token.Credential, error)
}

// Fetcher requests credentials from the token service over HTTP.
type Fetcher struct {
	endpoint string
	client   *http.Client
	now      func() time.Time
}

// NewFetcher creates a fetcher for the given token endpoint URL.
func NewFetcher(endpoint string) *Fetcher {
	return &Fetcher{
		endpoint: endpoint,
		client:   &http.Client{Timeout: 15 * time.Second},
		now:      time.Now,
	}
}

// Acquire requests a credential for (identity, channel). Any of: transport
// failure, non-2xx status, unparseable body, or a missing or non-string
// token field yields a FetchError. Exactly one attempt per call.
func (f *Fetcher) Acquire(ctx context.Context, identity, channel string) (*token.Credential, error) {
	body, err := json.Marshal(token.JoinRequest{Identity: identity, Room: channel})
	if err != nil {
		return nil, &FetchError{Err: fmt.Errorf("marshal request: %w", err)}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, f.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, &FetchError{Err: fmt.Errorf("create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, &FetchError{Err: err}
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, &FetchError{Status: resp.StatusCode, Err: fmt.Errorf("read response: %w", err)}
	}

	if resp.StatusCode != http.StatusOK {
		return nil, &FetchError{
			Status: resp.StatusCode,
			Err:    fmt.Errorf("token service: %s", strings.TrimSpace(string(raw))),
		}
	}

	var parsed struct {
		Token json.RawMessage `json:"token"`
	}
	if err := json.Unmarshal(raw, &parsed); err != nil {
		return nil, &FetchError{Status: resp.StatusCode, Err: fmt.Errorf("unmarshal response: %w", err)}
	}
	if parsed.Token == nil {
		return nil, &FetchError{Status: resp.StatusCode, Err: fmt.Errorf("token missing from response")}
	}
	var tok string
	if err := json.Unmarshal(parsed.Token, &tok); err != nil || tok == "" {
		return nil, &FetchError{Status: resp.StatusCode, Err: fmt.Errorf("token is not a string")}
	}

	// The wire response carries only the token; the validity window is
	// stamped locally from the fixed TTL.
	issuedAt := f.now()
	return &token.Credential{
		Token:     tok,
		Channel:   channel,
		UID:       identity,
		IssuedAt:  issuedAt,
		ExpiresAt: issuedAt.Add(token.TTL),
	}, nil
}
