package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"filecrate.org/internal/auth"
)

type memStore struct {
	logins        map[string]*LoginSession
	challenges    map[string]*AuthChallenge
	verifications map[string]*VerificationSession
}

func newMemStore() *memStore {
	return &memStore{
		logins:        make(map[string]*LoginSession),
		challenges:    make(map[string]*AuthChallenge),
		verifications: make(map[string]*VerificationSession),
	}
}

func (m *memStore) CreateLogin(_ context.Context, s *LoginSession) error {
	cp := *s
	m.logins[s.ID] = &cp
	return nil
}

func (m *memStore) FindLogin(_ context.Context, id string) (*LoginSession, error) {
	s, ok := m.logins[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *s
	return &cp, nil
}

func (m *memStore) ExpireLogin(_ context.Context, id string) error {
	s, ok := m.logins[id]
	if !ok {
		return ErrNotFound
	}
	s.Expired = true
	return nil
}

func (m *memStore) ConfirmLogin(_ context.Context, id string) error {
	s, ok := m.logins[id]
	if !ok {
		return ErrNotFound
	}
	s.Confirmed = true
	return nil
}

func (m *memStore) CreateChallenge(_ context.Context, c *AuthChallenge) error {
	cp := *c
	m.challenges[c.ID] = &cp
	return nil
}

func (m *memStore) MutateChallenge(_ context.Context, id string, fn func(*AuthChallenge) (bool, error)) (*AuthChallenge, error) {
	c, ok := m.challenges[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *c
	changed, err := fn(&cp)
	if err != nil {
		return nil, err
	}
	if changed {
		m.challenges[id] = &cp
	}
	out := cp
	return &out, nil
}

func (m *memStore) CreateVerification(_ context.Context, v *VerificationSession) error {
	cp := *v
	m.verifications[v.ID] = &cp
	return nil
}

func (m *memStore) MutateVerification(_ context.Context, id string, fn func(*VerificationSession) (bool, error)) (*VerificationSession, error) {
	v, ok := m.verifications[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *v
	changed, err := fn(&cp)
	if err != nil {
		return nil, err
	}
	if changed {
		m.verifications[id] = &cp
	}
	out := cp
	return &out, nil
}

// fakeUsers records SetVerified calls; only that method matters here.
type fakeUsers struct {
	verified map[string]bool
}

func (f *fakeUsers) Create(context.Context, *auth.User) error { return nil }

func (f *fakeUsers) Find(context.Context, string) (*auth.User, error) {
	return nil, auth.ErrNotFound
}

func (f *fakeUsers) FindByEmail(context.Context, string) (*auth.User, error) {
	return nil, auth.ErrNotFound
}

func (f *fakeUsers) SetVerified(_ context.Context, id string) error {
	if f.verified == nil {
		f.verified = make(map[string]bool)
	}
	f.verified[id] = true
	return nil
}

func newClock(start time.Time) (func() time.Time, func(time.Duration)) {
	current := start
	return func() time.Time { return current }, func(d time.Duration) { current = current.Add(d) }
}

func TestLoginSessionLifecycle(t *testing.T) {
	store := newMemStore()
	now, advance := newClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	svc := NewService(store, &fakeUsers{}, WithClock(now))

	sess, err := svc.IssueLogin(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("IssueLogin: %v", err)
	}
	if len(sess.ID) != loginIDLength {
		t.Fatalf("unexpected id length: %d", len(sess.ID))
	}

	got, err := svc.ResolveLogin(context.Background(), sess.ID)
	if err != nil {
		t.Fatalf("ResolveLogin: %v", err)
	}
	if got.UserID != "user-1" {
		t.Fatalf("unexpected user: %s", got.UserID)
	}

	// Logout flips the stored flag; resolution refuses afterwards.
	if err := svc.Logout(context.Background(), sess.ID); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := svc.ResolveLogin(context.Background(), sess.ID); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired after logout, got %v", err)
	}

	// A fresh session dies by wall clock alone.
	sess2, err := svc.IssueLogin(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("IssueLogin: %v", err)
	}
	advance(DefaultLoginTTL + time.Minute)
	if _, err := svc.ResolveLogin(context.Background(), sess2.ID); !errors.Is(err, ErrExpired) {
		t.Fatalf("expected ErrExpired after ttl, got %v", err)
	}
}

func TestResolveLoginUnknown(t *testing.T) {
	svc := NewService(newMemStore(), &fakeUsers{})
	if _, err := svc.ResolveLogin(context.Background(), "absent"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestChallengeVerifyHappyPath(t *testing.T) {
	store := newMemStore()
	now, _ := newClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	svc := NewService(store, &fakeUsers{}, WithClock(now))

	login, err := svc.IssueLogin(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("IssueLogin: %v", err)
	}
	c, err := svc.IssueChallenge(context.Background(), "user-1", login.ID)
	if err != nil {
		t.Fatalf("IssueChallenge: %v", err)
	}
	if len(c.Token) != otpLength {
		t.Fatalf("unexpected otp length: %d", len(c.Token))
	}

	res, err := svc.VerifyChallenge(context.Background(), c.ID, c.Token)
	if err != nil {
		t.Fatalf("VerifyChallenge: %v", err)
	}
	if res.Outcome != OutcomeVerified {
		t.Fatalf("expected verified, got %s", res.Outcome)
	}
	if got, err := svc.ResolveLogin(context.Background(), login.ID); err != nil || !got.Confirmed {
		t.Fatalf("login not confirmed after verify: %+v, %v", got, err)
	}

	// Replaying the correct token against a verified challenge is refused.
	res, err = svc.VerifyChallenge(context.Background(), c.ID, c.Token)
	if err != nil {
		t.Fatalf("VerifyChallenge replay: %v", err)
	}
	if res.Outcome != OutcomeExpired {
		t.Fatalf("expected expired on replay, got %s", res.Outcome)
	}
}

func TestChallengeExhaustion(t *testing.T) {
	store := newMemStore()
	now, _ := newClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	svc := NewService(store, &fakeUsers{}, WithClock(now))

	login, err := svc.IssueLogin(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("IssueLogin: %v", err)
	}
	c, err := svc.IssueChallenge(context.Background(), "user-1", login.ID)
	if err != nil {
		t.Fatalf("IssueChallenge: %v", err)
	}

	for i := 1; i <= DefaultMaxTries; i++ {
		res, err := svc.VerifyChallenge(context.Background(), c.ID, "000000x")
		if err != nil {
			t.Fatalf("attempt %d: %v", i, err)
		}
		if res.Outcome != OutcomeWrongToken {
			t.Fatalf("attempt %d: expected wrong token, got %s", i, res.Outcome)
		}
		if res.RemainingTries != DefaultMaxTries-i {
			t.Fatalf("attempt %d: expected %d remaining, got %d", i, DefaultMaxTries-i, res.RemainingTries)
		}
	}

	// Even the correct token is refused once tries are spent, and no further
	// try is consumed.
	res, err := svc.VerifyChallenge(context.Background(), c.ID, c.Token)
	if err != nil {
		t.Fatalf("post-exhaustion attempt: %v", err)
	}
	if res.Outcome != OutcomeExhausted {
		t.Fatalf("expected exhausted, got %s", res.Outcome)
	}
	if got := store.challenges[c.ID].Tries; got != DefaultMaxTries {
		t.Fatalf("tries advanced past the cap: %d", got)
	}
}

func TestChallengeExpiryBeatsTries(t *testing.T) {
	store := newMemStore()
	now, advance := newClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	svc := NewService(store, &fakeUsers{}, WithClock(now))

	login, err := svc.IssueLogin(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("IssueLogin: %v", err)
	}
	c, err := svc.IssueChallenge(context.Background(), "user-1", login.ID)
	if err != nil {
		t.Fatalf("IssueChallenge: %v", err)
	}

	advance(DefaultChallengeTTL + time.Second)

	// Correct token, untouched try budget, but the clock has run out.
	res, err := svc.VerifyChallenge(context.Background(), c.ID, c.Token)
	if err != nil {
		t.Fatalf("VerifyChallenge: %v", err)
	}
	if res.Outcome != OutcomeExpired {
		t.Fatalf("expected expired, got %s", res.Outcome)
	}
	if got := store.challenges[c.ID].Tries; got != 0 {
		t.Fatalf("attempt against expired session consumed a try: %d", got)
	}
}

func TestChallengeConfirmsOnlyBoundLogin(t *testing.T) {
	store := newMemStore()
	now, _ := newClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	svc := NewService(store, &fakeUsers{}, WithClock(now))

	loginA, err := svc.IssueLogin(context.Background(), "user-1")
	if err != nil {
		t.Fatalf("IssueLogin: %v", err)
	}
	loginB, err := svc.IssueLogin(context.Background(), "user-2")
	if err != nil {
		t.Fatalf("IssueLogin: %v", err)
	}
	c, err := svc.IssueChallenge(context.Background(), "user-1", loginA.ID)
	if err != nil {
		t.Fatalf("IssueChallenge: %v", err)
	}

	// A wrong token confirms nothing.
	if _, err := svc.VerifyChallenge(context.Background(), c.ID, "nope"); err != nil {
		t.Fatalf("VerifyChallenge wrong: %v", err)
	}
	if store.logins[loginA.ID].Confirmed {
		t.Fatalf("login confirmed by failed attempt")
	}

	res, err := svc.VerifyChallenge(context.Background(), c.ID, c.Token)
	if err != nil {
		t.Fatalf("VerifyChallenge: %v", err)
	}
	if res.Outcome != OutcomeVerified {
		t.Fatalf("expected verified, got %s", res.Outcome)
	}
	if !store.logins[loginA.ID].Confirmed {
		t.Fatalf("bound login not confirmed")
	}
	if store.logins[loginB.ID].Confirmed {
		t.Fatalf("unrelated login confirmed")
	}
}

func TestVerifyAccountFlipsUser(t *testing.T) {
	store := newMemStore()
	users := &fakeUsers{}
	now, _ := newClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	svc := NewService(store, users, WithClock(now))

	v, err := svc.IssueVerification(context.Background(), "user-9")
	if err != nil {
		t.Fatalf("IssueVerification: %v", err)
	}
	if len(v.Token) != verificationTokLength {
		t.Fatalf("unexpected token length: %d", len(v.Token))
	}

	res, err := svc.VerifyAccount(context.Background(), v.ID, "wrong")
	if err != nil {
		t.Fatalf("VerifyAccount wrong: %v", err)
	}
	if res.Outcome != OutcomeWrongToken || res.RemainingTries != DefaultMaxTries-1 {
		t.Fatalf("unexpected result: %+v", res)
	}
	if users.verified["user-9"] {
		t.Fatalf("user verified after failed attempt")
	}

	res, err = svc.VerifyAccount(context.Background(), v.ID, v.Token)
	if err != nil {
		t.Fatalf("VerifyAccount: %v", err)
	}
	if res.Outcome != OutcomeVerified {
		t.Fatalf("expected verified, got %s", res.Outcome)
	}
	if !users.verified["user-9"] {
		t.Fatalf("user not marked verified")
	}
}

func TestVerifyAccountExpiry(t *testing.T) {
	store := newMemStore()
	users := &fakeUsers{}
	now, advance := newClock(time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC))
	svc := NewService(store, users, WithClock(now))

	v, err := svc.IssueVerification(context.Background(), "user-9")
	if err != nil {
		t.Fatalf("IssueVerification: %v", err)
	}
	advance(DefaultVerificationTTL + time.Minute)

	res, err := svc.VerifyAccount(context.Background(), v.ID, v.Token)
	if err != nil {
		t.Fatalf("VerifyAccount: %v", err)
	}
	if res.Outcome != OutcomeExpired {
		t.Fatalf("expected expired, got %s", res.Outcome)
	}
	if users.verified["user-9"] {
		t.Fatalf("user verified through expired session")
	}
}
