package credential

import (
	"context"
	"sync"

	"github.com/Baoanh2610/callvideo/internal/token"
)

// Store holds at most one live credential per session and drives its
// replacement. No speculative pre-fetching: credentials are fetched only
// when Acquire or Renew is called.
type Store struct {
	source Source

	mu  sync.Mutex
	cur *token.Credential
}

func NewStore(source Source) *Store {
	return &Store{source: source}
}

// Acquire fetches a credential for (identity, channel) and installs it as
// the current one.
func (s *Store) Acquire(ctx context.Context, identity, channel string) (*token.Credential, error) {
	cred, err := s.source.Acquire(ctx, identity, channel)
	if err != nil {
		return nil, err
	}
	s.mu.Lock()
	s.cur = cred
	s.mu.Unlock()
	return cred, nil
}

// Renew has the identical contract to Acquire; on success the stored
// credential is replaced atomically, so there is never a window where both
// old and new are current.
func (s *Store) Renew(ctx context.Context, identity, channel string) (*token.Credential, error) {
	return s.Acquire(ctx, identity, channel)
}

// Current returns the live credential, or nil.
func (s *Store) Current() *token.Credential {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cur
}

// Clear discards the current credential. Called after leave completes; a
// cleared credential is never reused.
func (s *Store) Clear() {
	s.mu.Lock()
	s.cur = nil
	s.mu.Unlock()
}
