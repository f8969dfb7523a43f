package session

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"
	"time"

	"filecrate.org/internal/auth"
	"filecrate.org/internal/ids"
)

// Service drives the three session state machines. All expiry decisions are
// made lazily against the injected clock at the moment of use.
type Service struct {
	store Store
	users auth.UserStore
	now   func() time.Time

	maxTries        int
	loginTTL        time.Duration
	challengeTTL    time.Duration
	verificationTTL time.Duration
}

// Option configures Service behavior.
type Option func(*Service)

// WithClock overrides the time source (useful for tests).
func WithClock(fn func() time.Time) Option {
	return func(s *Service) {
		if fn != nil {
			s.now = fn
		}
	}
}

// WithMaxTries overrides the attempt cap for token-bearing sessions.
func WithMaxTries(n int) Option {
	return func(s *Service) {
		if n > 0 {
			s.maxTries = n
		}
	}
}

// WithLoginTTL overrides the login session lifetime.
func WithLoginTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.loginTTL = ttl
		}
	}
}

// WithChallengeTTL overrides the OTP challenge lifetime.
func WithChallengeTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.challengeTTL = ttl
		}
	}
}

// WithVerificationTTL overrides the account verification lifetime.
func WithVerificationTTL(ttl time.Duration) Option {
	return func(s *Service) {
		if ttl > 0 {
			s.verificationTTL = ttl
		}
	}
}

// NewService constructs a session service over the given stores.
func NewService(store Store, users auth.UserStore, opts ...Option) *Service {
	s := &Service{
		store:           store,
		users:           users,
		now:             time.Now,
		maxTries:        DefaultMaxTries,
		loginTTL:        DefaultLoginTTL,
		challengeTTL:    DefaultChallengeTTL,
		verificationTTL: DefaultVerificationTTL,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// IssueLogin creates a fresh login session for the user.
func (s *Service) IssueLogin(ctx context.Context, userID string) (*LoginSession, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", auth.ErrInvalidInput)
	}
	now := s.now().UTC()
	sess := &LoginSession{
		ID:        ids.Token(loginIDLength),
		UserID:    userID,
		ExpiresAt: now.Add(s.loginTTL),
		CreatedAt: now,
	}
	if err := s.store.CreateLogin(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// ResolveLogin loads a login session and re-validates its expiry against the
// current time before trusting it.
func (s *Service) ResolveLogin(ctx context.Context, id string) (*LoginSession, error) {
	sess, err := s.store.FindLogin(ctx, id)
	if err != nil {
		return nil, err
	}
	if !sess.Active(s.now()) {
		return nil, ErrExpired
	}
	return sess, nil
}

// Logout invalidates a login session explicitly. The stored flag is the one
// place the expired state is persisted rather than computed.
func (s *Service) Logout(ctx context.Context, id string) error {
	if _, err := s.store.FindLogin(ctx, id); err != nil {
		return err
	}
	return s.store.ExpireLogin(ctx, id)
}

// IssueChallenge creates an OTP challenge for the user's second factor,
// bound to the login session it must confirm. Delivery of the token (email,
// authenticator) is out of scope; callers read it off the returned record.
func (s *Service) IssueChallenge(ctx context.Context, userID, loginID string) (*AuthChallenge, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", auth.ErrInvalidInput)
	}
	loginID = strings.TrimSpace(loginID)
	if loginID == "" {
		return nil, fmt.Errorf("%w: login session id is required", auth.ErrInvalidInput)
	}
	now := s.now().UTC()
	c := &AuthChallenge{
		ID:        ids.Token(challengeIDLength),
		Token:     ids.OTP(otpLength),
		UserID:    userID,
		LoginID:   loginID,
		MaxTries:  s.maxTries,
		ExpiresAt: now.Add(s.challengeTTL),
		CreatedAt: now,
	}
	if err := s.store.CreateChallenge(ctx, c); err != nil {
		return nil, err
	}
	return c, nil
}

// VerifyChallenge runs one verification attempt against an OTP challenge.
// A verified outcome confirms the login session the challenge was bound to
// at issue time. The returned error reports only infrastructure problems;
// the protocol outcome, including wrong tokens and dead sessions, travels
// in Result.
func (s *Service) VerifyChallenge(ctx context.Context, id, token string) (Result, error) {
	var res Result
	c, err := s.store.MutateChallenge(ctx, id, func(c *AuthChallenge) (bool, error) {
		res = s.attempt(c.State(s.now()), c.Token, token, &c.Tries, c.MaxTries, &c.Verified)
		return res.Outcome == OutcomeVerified || res.Outcome == OutcomeWrongToken, nil
	})
	if err != nil {
		return Result{}, err
	}
	if res.Outcome == OutcomeVerified {
		if err := s.store.ConfirmLogin(ctx, c.LoginID); err != nil {
			return Result{}, err
		}
	}
	return res, nil
}

// IssueVerification creates an account-verification session for the user.
func (s *Service) IssueVerification(ctx context.Context, userID string) (*VerificationSession, error) {
	userID = strings.TrimSpace(userID)
	if userID == "" {
		return nil, fmt.Errorf("%w: user id is required", auth.ErrInvalidInput)
	}
	now := s.now().UTC()
	v := &VerificationSession{
		ID:        ids.Token(verificationIDLength),
		Token:     ids.Token(verificationTokLength),
		UserID:    userID,
		MaxTries:  s.maxTries,
		ExpiresAt: now.Add(s.verificationTTL),
		CreatedAt: now,
	}
	if err := s.store.CreateVerification(ctx, v); err != nil {
		return nil, err
	}
	return v, nil
}

// VerifyAccount runs one verification attempt against an account-verification
// session and, on success, marks the owning user verified.
func (s *Service) VerifyAccount(ctx context.Context, id, token string) (Result, error) {
	var res Result
	v, err := s.store.MutateVerification(ctx, id, func(v *VerificationSession) (bool, error) {
		res = s.attempt(v.State(s.now()), v.Token, token, &v.Tries, v.MaxTries, &v.Verified)
		return res.Outcome == OutcomeVerified || res.Outcome == OutcomeWrongToken, nil
	})
	if err != nil {
		return Result{}, err
	}
	if res.Outcome == OutcomeVerified {
		if err := s.users.SetVerified(ctx, v.UserID); err != nil {
			return Result{}, err
		}
	}
	return res, nil
}

// attempt applies one verification attempt to a nominally loaded challenge
// row. A wrong token against an Active session costs exactly one try; a dead
// session is reported without consuming anything. An already verified token
// is unusable and reported as expired so replays gain nothing.
func (s *Service) attempt(state State, want, got string, tries *int, maxTries int, verified *bool) Result {
	switch state {
	case StateExpired, StateVerified:
		return Result{Outcome: OutcomeExpired}
	case StateExhausted:
		return Result{Outcome: OutcomeExhausted}
	}
	if subtle.ConstantTimeCompare([]byte(want), []byte(got)) == 1 {
		*verified = true
		return Result{Outcome: OutcomeVerified}
	}
	*tries++
	remaining := maxTries - *tries
	if remaining < 0 {
		remaining = 0
	}
	return Result{Outcome: OutcomeWrongToken, RemainingTries: remaining}
}
