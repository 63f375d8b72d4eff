package token

import (
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"
)

var (
	// ErrInvalidRequest marks a join request the caller must correct.
	ErrInvalidRequest = errors.New("invalid join request")

	// ErrServerMisconfigured marks a deployment whose signing secrets are
	// missing. Operator-fixable, never user-fixable.
	ErrServerMisconfigured = errors.New("signing secrets not configured")
)

// UIDPolicy selects how issued tokens bind to a participant uid.
type UIDPolicy int

const (
	// BindClientUID binds the token to the identity supplied by the caller,
	// who must join with exactly that value. This is the default: it lets
	// the client pre-generate a unique uid and avoid collisions.
	BindClientUID UIDPolicy = iota

	// BindServerUID binds the token to the wildcard uid; the platform
	// assigns one at join time. The identity field is accepted but unused.
	BindServerUID
)

// Service turns validated join requests into credentials. It keeps no state
// between calls and is safe for concurrent use and horizontal replication.
type Service struct {
	signer Signer
	policy UIDPolicy
	logger *zap.Logger
	now    func() time.Time
}

// NewService creates a token service. A nil signer models a deployment
// without secrets: every Issue call fails with ErrServerMisconfigured.
func NewService(signer Signer, policy UIDPolicy, logger *zap.Logger) *Service {
	return &Service{signer: signer, policy: policy, logger: logger, now: time.Now}
}

// Issue validates req and returns a credential bound to (room, uid), valid
// for TTL from the moment of issuance. Validation fails fast and is
// terminal per call; the signer is never invoked for an invalid request.
func (s *Service) Issue(req JoinRequest) (*Credential, error) {
	if s.signer == nil {
		return nil, ErrServerMisconfigured
	}
	if req.Room == "" {
		return nil, fmt.Errorf("%w: room is required", ErrInvalidRequest)
	}

	uid := WildcardUID
	if s.policy == BindClientUID {
		if req.Identity == "" {
			return nil, fmt.Errorf("%w: identity is required", ErrInvalidRequest)
		}
		uid = req.Identity
	}

	issuedAt := s.now()
	expiresAt := issuedAt.Add(TTL)

	tok, err := s.signer.Sign(req.Room, uid, expiresAt)
	if err != nil {
		s.logger.Error("token signing failed", zap.String("room", req.Room), zap.Error(err))
		return nil, fmt.Errorf("sign token: %w", err)
	}

	s.logger.Info("token issued",
		zap.String("room", req.Room),
		zap.String("uid", uid),
		zap.Time("expiresAt", expiresAt),
	)

	return &Credential{
		Token:     tok,
		Channel:   req.Room,
		UID:       uid,
		IssuedAt:  issuedAt,
		ExpiresAt: expiresAt,
	}, nil
}
