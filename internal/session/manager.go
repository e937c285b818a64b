// Package session owns the authentication lifecycle of the invest platform
// client: OTP request, verification, registration, profile refresh and
// logout. The Manager is the single source of truth for "who is the current
// user" and the only component that writes the persisted credential pair.
package session

import (
	"context"
	"log/slog"
	"strings"
	"sync"

	"github.com/exonvc/invest/internal/api"
	"github.com/exonvc/invest/internal/credstore"
	"github.com/exonvc/invest/internal/identity"
)

// IdentityAPI is the slice of the identity client the Manager depends on.
type IdentityAPI interface {
	SendOTP(ctx context.Context, phone string) (identity.Ack, error)
	VerifyOTP(ctx context.Context, phone, otp string) (identity.Grant, error)
	Profile(ctx context.Context, token string) (identity.User, error)
	UpdateProfile(ctx context.Context, token string, patch identity.ProfilePatch) (identity.User, error)
}

// Manager coordinates session state between the identity API, the credential
// store and in-memory consumers. State-mutating operations are not
// serialized against each other beyond memory safety: concurrent operations
// race and the last persisted write wins.
type Manager struct {
	api     IdentityAPI
	store   credstore.Store
	logger  *slog.Logger
	onReset func()

	mu     sync.RWMutex
	status Status
	token  string
	user   identity.User
}

// Option customizes a Manager.
type Option func(*Manager)

// WithResetHook registers a callback invoked after every logout, once the
// persisted and in-memory state is fully cleared. Consumers use it to hard
// reset their own state the way the original client reloaded the page.
func WithResetHook(fn func()) Option {
	return func(m *Manager) { m.onReset = fn }
}

// New builds a Manager and restores any persisted session. When a stored
// credential pair exists the Manager starts in StatusHydrating with the
// cached token and user readable immediately; callers should follow up with
// Reconcile to settle the session. A load failure is treated as no session.
func New(ctx context.Context, idAPI IdentityAPI, store credstore.Store, logger *slog.Logger, opts ...Option) *Manager {
	m := &Manager{
		api:    idAPI,
		store:  store,
		logger: logger,
		status: StatusAnonymous,
	}
	for _, opt := range opts {
		opt(m)
	}

	creds, ok, err := store.Load(ctx)
	if err != nil {
		m.logger.Warn("session restore failed", "error", err)
		return m
	}
	if ok {
		m.status = StatusHydrating
		m.token = creds.Token
		m.user = creds.User
	}
	return m
}

// Snapshot returns the current session state.
func (m *Manager) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return Snapshot{Status: m.status, Token: m.token, User: m.user}
}

// BearerToken returns the current token when the session can make
// authenticated calls, which includes the optimistic hydrating window.
func (m *Manager) BearerToken() (string, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.token == "" {
		return "", false
	}
	return m.token, true
}

// Reconcile revalidates a hydrated session against the profile endpoint.
// On success the server copy of the user overwrites both the in-memory and
// persisted records. Any failure (network, 401, malformed response) tears
// the session down entirely; the demotion is silent because an expired
// session is routine, not an error. Returns the settled status.
func (m *Manager) Reconcile(ctx context.Context) Status {
	m.mu.RLock()
	status, token := m.status, m.token
	m.mu.RUnlock()

	if status != StatusHydrating {
		return status
	}

	user, err := m.api.Profile(ctx, token)
	if err != nil || user.Empty() {
		m.logger.Info("session revalidation failed, clearing session", "error", err)
		m.teardown(ctx)
		return StatusAnonymous
	}

	if err := m.persist(ctx, token, user); err != nil {
		m.logger.Warn("session refresh persist failed", "error", err)
		m.teardown(ctx)
		return StatusAnonymous
	}

	m.mu.Lock()
	m.status = StatusAuthenticated
	m.user = user
	m.mu.Unlock()
	return StatusAuthenticated
}

// RequestOTP asks the backend to deliver a login code. The phone string is
// forwarded as given. No persisted state changes; from an unauthenticated
// state the in-memory status moves to StatusOTPPending on success.
func (m *Manager) RequestOTP(ctx context.Context, phone string) Result {
	ack, err := m.api.SendOTP(ctx, phone)
	if err != nil {
		m.logger.Debug("send otp failed", "error", err)
		return failure(api.Message(err))
	}

	m.mu.Lock()
	if m.status == StatusAnonymous {
		m.status = StatusOTPPending
	}
	m.mu.Unlock()

	return success(firstNonEmpty(ack.Message, msgOTPSent))
}

// Login exchanges a phone/OTP pair for a session. The credential pair is
// persisted together before the in-memory state flips; a response without an
// access token is a logical rejection that leaves all state untouched.
func (m *Manager) Login(ctx context.Context, phone, otp string) LoginResult {
	grant, err := m.api.VerifyOTP(ctx, phone, otp)
	if err != nil {
		m.logger.Debug("verify otp failed", "error", err)
		return LoginResult{Result: failure(api.Message(err))}
	}
	if grant.AccessToken == "" {
		return LoginResult{Result: failure(msgLoginFailed)}
	}

	if err := m.persist(ctx, grant.AccessToken, grant.User); err != nil {
		m.logger.Error("persist session failed", "error", err)
		return LoginResult{Result: failure(msgLoginFailed)}
	}

	m.mu.Lock()
	m.status = StatusAuthenticated
	m.token = grant.AccessToken
	m.user = grant.User
	m.mu.Unlock()

	m.logger.Info("login", "user_id", grant.User.ID, "phone", grant.User.Phone)
	return LoginResult{Result: success(""), User: grant.User}
}

// Register verifies the OTP exactly as Login does, then completes the
// profile with the supplied name, email and national code. The operation is
// all-or-nothing from the caller's point of view: when the profile update
// fails, the token obtained from verification is discarded rather than
// persisted, so a failed registration leaves no session behind.
func (m *Manager) Register(ctx context.Context, reg Registration) LoginResult {
	grant, err := m.api.VerifyOTP(ctx, reg.Phone, reg.OTP)
	if err != nil {
		m.logger.Debug("register verify otp failed", "error", err)
		return LoginResult{Result: failure(api.Message(err))}
	}
	if grant.AccessToken == "" {
		return LoginResult{Result: failure(msgRegisterFailed)}
	}

	patch := identity.ProfilePatch{
		FullName:     strings.TrimSpace(reg.FirstName + " " + reg.LastName),
		Email:        reg.Email,
		NationalCode: reg.NationalID,
	}

	updated, err := m.api.UpdateProfile(ctx, grant.AccessToken, patch)
	if err != nil {
		m.logger.Debug("register profile update failed", "error", err)
		return LoginResult{Result: failure(api.Message(err))}
	}

	// Server echo first, locally supplied fields win for anything the
	// update call did not return.
	base := grant.User
	if !updated.Empty() {
		base = updated
	}
	user := patch.Merge(base)

	if err := m.persist(ctx, grant.AccessToken, user); err != nil {
		m.logger.Error("persist session failed", "error", err)
		return LoginResult{Result: failure(msgRegisterFailed)}
	}

	m.mu.Lock()
	m.status = StatusAuthenticated
	m.token = grant.AccessToken
	m.user = user
	m.mu.Unlock()

	m.logger.Info("register", "user_id", user.ID, "phone", user.Phone)
	return LoginResult{Result: success(""), User: user}
}

// UpdateProfile applies a sparse patch to the current user. Calling it
// without a session is a caller bug surfaced as a failure result, not a
// panic. A 401 from the backend invalidates the whole session.
func (m *Manager) UpdateProfile(ctx context.Context, patch identity.ProfilePatch) Result {
	m.mu.RLock()
	token, user := m.token, m.user
	m.mu.RUnlock()

	if token == "" {
		return failure(msgNoToken)
	}

	if _, err := m.api.UpdateProfile(ctx, token, patch); err != nil {
		if api.IsUnauthorized(err) {
			m.Invalidate(ctx)
		}
		m.logger.Debug("profile update failed", "error", err)
		return failure(api.Message(err))
	}

	merged := patch.Merge(user)
	if err := m.persist(ctx, token, merged); err != nil {
		m.logger.Error("persist session failed", "error", err)
		return failure(msgUpdateFailed)
	}

	m.mu.Lock()
	m.user = merged
	m.mu.Unlock()
	return success("")
}

// Logout unconditionally destroys the session, persisted and in-memory, and
// then fires the reset hook. It never fails.
func (m *Manager) Logout(ctx context.Context) {
	m.teardown(ctx)
	m.logger.Info("logout")
	if m.onReset != nil {
		m.onReset()
	}
}

// Invalidate destroys the session in response to an expired or revoked
// credential observed by any consumer. Destruction is immediate and total.
func (m *Manager) Invalidate(ctx context.Context) {
	m.logger.Info("session invalidated")
	m.teardown(ctx)
}

func (m *Manager) persist(ctx context.Context, token string, user identity.User) error {
	return m.store.Save(ctx, credstore.Credentials{Token: token, User: user})
}

func (m *Manager) teardown(ctx context.Context) {
	if err := m.store.Clear(ctx); err != nil {
		m.logger.Warn("clear persisted session failed", "error", err)
	}
	m.mu.Lock()
	m.status = StatusAnonymous
	m.token = ""
	m.user = identity.User{}
	m.mu.Unlock()
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
