package httpapi

import (
	"net/http"
	"strings"
	"time"

	"filecrate.org/internal/audit"
	"filecrate.org/internal/auth"
	"filecrate.org/internal/ids"
	"filecrate.org/internal/obs"
	"filecrate.org/internal/session"
)

const accessTokenTTL = 15 * time.Minute

type registerRequest struct {
	Email    string `json:"email"`
	Username string `json:"username"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

type otpRequest struct {
	LoginID     string `json:"login_id"`
	ChallengeID string `json:"challenge_id"`
	Token       string `json:"token"`
}

type tokenRequest struct {
	LoginID string `json:"login_id"`
}

type verifyAccountRequest struct {
	VerificationID string `json:"verification_id"`
	Token          string `json:"token"`
}

type logoutRequest struct {
	LoginID string `json:"login_id"`
}

type tokenResponse struct {
	Token     string    `json:"token"`
	ExpiresAt time.Time `json:"expires_at"`
}

func (a *API) handleRegister(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req registerRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	req.Username = strings.TrimSpace(req.Username)
	if req.Email == "" || req.Username == "" {
		writeError(w, r, http.StatusBadRequest, "email and username are required")
		return
	}
	if len(req.Password) < 8 {
		writeError(w, r, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}

	hash, err := auth.HashPassword(req.Password)
	if err != nil {
		writeError(w, r, http.StatusInternalServerError, "registration failed")
		return
	}
	user := &auth.User{
		ID:           ids.New(),
		Email:        req.Email,
		Username:     req.Username,
		Name:         strings.TrimSpace(req.Name),
		PasswordHash: hash,
	}
	if err := a.users.Create(r.Context(), user); err != nil {
		handleDomainError(w, r, err)
		return
	}

	// Token delivery (mail) is out of scope; the verification token travels
	// in the response so the operator side can forward it.
	v, err := a.sessions.IssueVerification(r.Context(), user.ID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.register", map[string]any{
		"user_id": user.ID,
		"email":   user.Email,
	})
	writeJSON(w, http.StatusCreated, map[string]any{
		"user": user,
		"verification": map[string]any{
			"id":         v.ID,
			"token":      v.Token,
			"expires_at": v.ExpiresAt,
		},
	})
}

func (a *API) handleLogin(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req loginRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	user, err := a.users.FindByEmail(r.Context(), req.Email)
	if err != nil {
		// same answer for unknown account and bad password
		writeError(w, r, http.StatusUnauthorized, "invalid credentials")
		return
	}
	if err := auth.VerifyPassword(user.PasswordHash, req.Password); err != nil {
		writeError(w, r, http.StatusUnauthorized, "invalid credentials")
		return
	}

	login, err := a.sessions.IssueLogin(r.Context(), user.ID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	challenge, err := a.sessions.IssueChallenge(r.Context(), user.ID, login.ID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.login", map[string]any{
		"user_id":  user.ID,
		"login_id": login.ID,
	})
	writeJSON(w, http.StatusOK, map[string]any{
		"login": map[string]any{
			"id":         login.ID,
			"expires_at": login.ExpiresAt,
		},
		"challenge": map[string]any{
			"id":         challenge.ID,
			"token":      challenge.Token,
			"expires_at": challenge.ExpiresAt,
			"max_tries":  challenge.MaxTries,
		},
	})
}

func (a *API) handleOTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req otpRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	res, err := a.sessions.VerifyChallenge(r.Context(), req.ChallengeID, req.Token)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	obs.ObserveSessionVerification("challenge", res.Outcome.String())
	if res.Outcome != session.OutcomeVerified {
		writeVerificationFailure(w, r, res)
		return
	}

	login, err := a.sessions.ResolveLogin(r.Context(), req.LoginID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	// A verified challenge confirms only the login it was issued for; a
	// different login id here means the challenge belongs to another session.
	if !login.Confirmed {
		writeError(w, r, http.StatusForbidden, "challenge does not belong to this login session")
		return
	}
	token, expiresAt, err := a.mintAccessToken(r, login.UserID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.otp.verified", map[string]any{
		"user_id":      login.UserID,
		"challenge_id": req.ChallengeID,
	})
	writeJSON(w, http.StatusOK, tokenResponse{Token: token, ExpiresAt: expiresAt})
}

// handleToken exchanges an active, OTP-confirmed login session for a fresh
// access token. A password login alone is not enough to mint tokens.
func (a *API) handleToken(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req tokenRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	login, err := a.sessions.ResolveLogin(r.Context(), req.LoginID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	if !login.Confirmed {
		writeError(w, r, http.StatusForbidden, "otp verification required")
		return
	}
	token, expiresAt, err := a.mintAccessToken(r, login.UserID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, tokenResponse{Token: token, ExpiresAt: expiresAt})
}

func (a *API) handleVerifyAccount(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	var req verifyAccountRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	res, err := a.sessions.VerifyAccount(r.Context(), req.VerificationID, req.Token)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	obs.ObserveSessionVerification("verification", res.Outcome.String())
	if res.Outcome != session.OutcomeVerified {
		writeVerificationFailure(w, r, res)
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.account.verified", map[string]any{
		"verification_id": req.VerificationID,
	})
	writeJSON(w, http.StatusOK, res)
}

func (a *API) handleLogout(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		methodNotAllowed(w, r, http.MethodPost)
		return
	}
	userID, ok := a.requireUser(w, r)
	if !ok {
		return
	}
	var req logoutRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}
	login, err := a.sessions.ResolveLogin(r.Context(), req.LoginID)
	if err != nil {
		handleDomainError(w, r, err)
		return
	}
	if login.UserID != userID {
		writeError(w, r, http.StatusForbidden, "not your session")
		return
	}
	if err := a.sessions.Logout(r.Context(), req.LoginID); err != nil {
		handleDomainError(w, r, err)
		return
	}

	_ = audit.LogEvent(r.Context(), "auth.logout", map[string]any{
		"login_id": req.LoginID,
	})
	w.WriteHeader(http.StatusNoContent)
}

func (a *API) mintAccessToken(r *http.Request, userID string) (string, time.Time, error) {
	user, err := a.users.Find(r.Context(), userID)
	if err != nil {
		return "", time.Time{}, err
	}
	roles, err := a.roles.RolesForUser(r.Context(), userID)
	if err != nil {
		return "", time.Time{}, err
	}
	// only named roles travel in the token; ownership roles stay in the store
	names := make([]string, 0, len(roles))
	for _, role := range roles {
		if role.Name != "" {
			names = append(names, role.Name)
		}
	}
	token, err := auth.GenerateToken(user.ID, names, user.Verified, accessTokenTTL)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, time.Now().UTC().Add(accessTokenTTL), nil
}

// writeVerificationFailure maps non-verified outcomes: a wrong token is a 401
// carrying the remaining attempts, a dead session is 410 Gone.
func writeVerificationFailure(w http.ResponseWriter, r *http.Request, res session.Result) {
	switch res.Outcome {
	case session.OutcomeWrongToken:
		writeJSON(w, http.StatusUnauthorized, res)
	default:
		writeJSON(w, http.StatusGone, res)
	}
}
