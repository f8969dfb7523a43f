package session

import (
	"errors"
	"time"
)

// State is the lifecycle position of a session, computed from stored fields
// and the current time rather than swept by a background job. Verified,
// Expired and Exhausted are terminal for verification purposes.
type State int

const (
	StateActive State = iota
	StateVerified
	StateExpired
	StateExhausted
)

func (s State) String() string {
	switch s {
	case StateActive:
		return "active"
	case StateVerified:
		return "verified"
	case StateExpired:
		return "expired"
	case StateExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Outcome of one verification attempt.
type Outcome int

const (
	OutcomeVerified Outcome = iota
	OutcomeWrongToken
	OutcomeExpired
	OutcomeExhausted
)

// MarshalText renders outcomes as their names in JSON responses.
func (o Outcome) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

func (o Outcome) String() string {
	switch o {
	case OutcomeVerified:
		return "verified"
	case OutcomeWrongToken:
		return "wrong_token"
	case OutcomeExpired:
		return "expired"
	case OutcomeExhausted:
		return "exhausted"
	default:
		return "unknown"
	}
}

// Result reports a verification attempt. RemainingTries is meaningful only
// for OutcomeWrongToken.
type Result struct {
	Outcome        Outcome `json:"outcome"`
	RemainingTries int     `json:"remaining_tries,omitempty"`
}

var (
	ErrNotFound = errors.New("session: not found")
	ErrExpired  = errors.New("session: expired")
)

// Defaults mirroring the production validity windows: a login session is a
// long-lived remember-me credential, an OTP challenge is minutes, account
// verification is a day.
const (
	DefaultMaxTries        = 3
	DefaultLoginTTL        = 60 * 24 * time.Hour
	DefaultChallengeTTL    = 60 * time.Minute
	DefaultVerificationTTL = 24 * time.Hour

	loginIDLength         = 30
	challengeIDLength     = 50
	verificationIDLength  = 60
	otpLength             = 6
	verificationTokLength = 8
)

// LoginSession is a long-lived credential exchanged for short-lived access
// tokens. It has no token or retry counter; it dies by logout (the stored
// Expired flag) or by passing ExpiresAt. Confirmed is set when the OTP
// challenge bound to this session verifies; only confirmed sessions mint
// access tokens.
type LoginSession struct {
	ID        string    `json:"id"`
	UserID    string    `json:"user_id"`
	ExpiresAt time.Time `json:"expires_at"`
	Expired   bool      `json:"expired"`
	Confirmed bool      `json:"confirmed"`
	CreatedAt time.Time `json:"created_at"`
}

// Active reports whether the session is still usable at the given time.
func (s *LoginSession) Active(now time.Time) bool {
	return !s.Expired && now.Before(s.ExpiresAt)
}

// AuthChallenge is the OTP leg of a login: a short-lived, attempt-limited
// token exchange. Each challenge is bound to the login session it was issued
// for; a successful verify confirms that session and no other.
type AuthChallenge struct {
	ID        string    `json:"id"`
	Token     string    `json:"-"`
	UserID    string    `json:"user_id"`
	LoginID   string    `json:"login_id"`
	Tries     int       `json:"tries"`
	MaxTries  int       `json:"max_tries"`
	ExpiresAt time.Time `json:"expires_at"`
	Verified  bool      `json:"verified"`
	CreatedAt time.Time `json:"created_at"`
}

// State evaluates the challenge lazily against the current time.
func (c *AuthChallenge) State(now time.Time) State {
	return challengeState(c.Verified, c.ExpiresAt, c.Tries, c.MaxTries, now)
}

// VerificationSession carries the account-verification token. Same shape and
// attempt discipline as AuthChallenge; success flips the user's verified flag
// instead of granting access.
type VerificationSession struct {
	ID        string    `json:"id"`
	Token     string    `json:"-"`
	UserID    string    `json:"user_id"`
	Tries     int       `json:"tries"`
	MaxTries  int       `json:"max_tries"`
	ExpiresAt time.Time `json:"expires_at"`
	Verified  bool      `json:"verified"`
	CreatedAt time.Time `json:"created_at"`
}

// State evaluates the session lazily against the current time.
func (v *VerificationSession) State(now time.Time) State {
	return challengeState(v.Verified, v.ExpiresAt, v.Tries, v.MaxTries, now)
}

// Time and attempt limits are orthogonal: the cap on tries blunts slow brute
// force, the expiry bounds how long a leaked token stays dangerous. Expiry
// wins when both have passed.
func challengeState(verified bool, expiresAt time.Time, tries, maxTries int, now time.Time) State {
	if verified {
		return StateVerified
	}
	if !now.Before(expiresAt) {
		return StateExpired
	}
	if tries >= maxTries {
		return StateExhausted
	}
	return StateActive
}
