package session

import "context"

// Store persists the three session families. Mutate hooks run their callback
// with the row held under an exclusive lock (or equivalent) so that duplicate
// submissions of the same token cannot race each other into lost try counts;
// the mutated row is written back only when the callback reports a change.
type Store interface {
	CreateLogin(ctx context.Context, s *LoginSession) error
	FindLogin(ctx context.Context, id string) (*LoginSession, error)
	ExpireLogin(ctx context.Context, id string) error
	ConfirmLogin(ctx context.Context, id string) error

	CreateChallenge(ctx context.Context, c *AuthChallenge) error
	MutateChallenge(ctx context.Context, id string, fn func(*AuthChallenge) (changed bool, err error)) (*AuthChallenge, error)

	CreateVerification(ctx context.Context, v *VerificationSession) error
	MutateVerification(ctx context.Context, id string, fn func(*VerificationSession) (changed bool, err error)) (*VerificationSession, error)
}
