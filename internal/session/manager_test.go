package session

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"testing"

	"github.com/exonvc/invest/internal/api"
	"github.com/exonvc/invest/internal/credstore"
	"github.com/exonvc/invest/internal/identity"
	"github.com/exonvc/invest/internal/logging"
)

// fakeAPI is a scripted identity backend that records the order of calls.
type fakeAPI struct {
	ack       identity.Ack
	sendErr   error
	grant     identity.Grant
	verifyErr error
	profile   identity.User
	profErr   error
	updated   identity.User
	updateErr error

	calls []string
}

func (f *fakeAPI) SendOTP(_ context.Context, phone string) (identity.Ack, error) {
	f.calls = append(f.calls, "send")
	if f.sendErr != nil {
		return identity.Ack{}, f.sendErr
	}
	return f.ack, nil
}

func (f *fakeAPI) VerifyOTP(_ context.Context, phone, otp string) (identity.Grant, error) {
	f.calls = append(f.calls, "verify")
	if f.verifyErr != nil {
		return identity.Grant{}, f.verifyErr
	}
	return f.grant, nil
}

func (f *fakeAPI) Profile(_ context.Context, token string) (identity.User, error) {
	f.calls = append(f.calls, "profile")
	if f.profErr != nil {
		return identity.User{}, f.profErr
	}
	return f.profile, nil
}

func (f *fakeAPI) UpdateProfile(_ context.Context, token string, patch identity.ProfilePatch) (identity.User, error) {
	f.calls = append(f.calls, "update")
	if f.updateErr != nil {
		return identity.User{}, f.updateErr
	}
	return f.updated, nil
}

var testUser = identity.User{ID: 1, Phone: "09123456789", FullName: "Test User"}

func newManager(t *testing.T, fake *fakeAPI) (*Manager, *credstore.MemoryStore) {
	t.Helper()
	store := credstore.NewMemoryStore()
	m := New(context.Background(), fake, store, logging.Discard())
	return m, store
}

// checkInvariant asserts: authenticated status implies a persisted pair, and
// an empty store implies the session is not authenticated.
func checkInvariant(t *testing.T, m *Manager, store *credstore.MemoryStore) {
	t.Helper()
	snap := m.Snapshot()
	_, ok, err := store.Load(context.Background())
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if snap.Status == StatusAuthenticated && !ok {
		t.Fatalf("authenticated without persisted credentials")
	}
	if snap.Status == StatusAuthenticated && (snap.Token == "" || snap.User.Empty()) {
		t.Fatalf("authenticated with incomplete in-memory state")
	}
	if !ok && snap.Token != "" {
		t.Fatalf("in-memory token %q with empty store in status %v", snap.Token, snap.Status)
	}
}

func TestRequestOTP(t *testing.T) {
	ctx := context.Background()
	fake := &fakeAPI{ack: identity.Ack{Success: true, Message: "sent"}}
	m, store := newManager(t, fake)

	res := m.RequestOTP(ctx, "09123456789")
	if !res.OK {
		t.Fatalf("expected success, got %q", res.Err)
	}
	if res.Message != "sent" {
		t.Fatalf("unexpected message %q", res.Message)
	}
	if got := m.Snapshot().Status; got != StatusOTPPending {
		t.Fatalf("expected otp_pending, got %v", got)
	}
	if _, ok, _ := store.Load(ctx); ok {
		t.Fatal("otp request must not persist anything")
	}
}

func TestRequestOTPNetworkError(t *testing.T) {
	fake := &fakeAPI{sendErr: errors.New("dial tcp: connection refused")}
	m, _ := newManager(t, fake)

	res := m.RequestOTP(context.Background(), "09123456789")
	if res.OK {
		t.Fatal("expected failure")
	}
	if res.Err == "" {
		t.Fatal("expected a non-empty error message")
	}
	if got := m.Snapshot().Status; got != StatusAnonymous {
		t.Fatalf("failed send must not change status, got %v", got)
	}
}

func TestLoginSuccess(t *testing.T) {
	ctx := context.Background()
	fake := &fakeAPI{grant: identity.Grant{AccessToken: "abc", User: testUser}}
	m, store := newManager(t, fake)

	res := m.Login(ctx, "09123456789", "123456")
	if !res.OK {
		t.Fatalf("login: %q", res.Err)
	}
	if res.User.ID != 1 {
		t.Fatalf("unexpected user %+v", res.User)
	}

	snap := m.Snapshot()
	if snap.Status != StatusAuthenticated || snap.Token != "abc" {
		t.Fatalf("unexpected snapshot %+v", snap)
	}

	// Fresh read through a new manager sees the persisted pair.
	fresh := New(ctx, fake, store, logging.Discard())
	freshSnap := fresh.Snapshot()
	if freshSnap.Status != StatusHydrating || freshSnap.Token != "abc" {
		t.Fatalf("fresh manager got %+v", freshSnap)
	}
	fake.profile = testUser
	if got := fresh.Reconcile(ctx); got != StatusAuthenticated {
		t.Fatalf("reconcile: %v", got)
	}
	checkInvariant(t, m, store)
}

func TestLoginWithoutTokenLeavesStateUntouched(t *testing.T) {
	ctx := context.Background()
	fake := &fakeAPI{grant: identity.Grant{AccessToken: "abc", User: testUser}}
	m, store := newManager(t, fake)

	if res := m.Login(ctx, "09123456789", "123456"); !res.OK {
		t.Fatalf("login: %q", res.Err)
	}
	tokenBefore, userBefore := store.RawEntries()

	// Logical rejection: response carries no access token.
	fake.grant = identity.Grant{}
	res := m.Login(ctx, "09123456789", "000000")
	if res.OK {
		t.Fatal("expected rejection")
	}
	if res.Err == "" {
		t.Fatal("expected a failure message")
	}

	tokenAfter, userAfter := store.RawEntries()
	if !bytes.Equal(tokenBefore, tokenAfter) || !bytes.Equal(userBefore, userAfter) {
		t.Fatal("persisted state changed on failed login")
	}
	if got := m.Snapshot().Status; got != StatusAuthenticated {
		t.Fatalf("previous session must survive, got %v", got)
	}
}

func TestLoginTransportError(t *testing.T) {
	ctx := context.Background()
	fake := &fakeAPI{verifyErr: errors.New("timeout")}
	m, store := newManager(t, fake)

	res := m.Login(ctx, "09123456789", "123456")
	if res.OK || res.Err == "" {
		t.Fatalf("expected normalized failure, got %+v", res)
	}
	if _, ok, _ := store.Load(ctx); ok {
		t.Fatal("failed login must not persist anything")
	}
}

func TestRegisterShortCircuitsOnVerifyFailure(t *testing.T) {
	fake := &fakeAPI{verifyErr: &api.StatusError{Code: http.StatusBadRequest, Detail: "کد تایید اشتباه است"}}
	m, store := newManager(t, fake)

	res := m.Register(context.Background(), Registration{Phone: "09123456789", OTP: "000000"})
	if res.OK {
		t.Fatal("expected failure")
	}
	if res.Err != "کد تایید اشتباه است" {
		t.Fatalf("expected the backend detail verbatim, got %q", res.Err)
	}
	for _, call := range fake.calls {
		if call == "update" {
			t.Fatal("profile update must not run when verification fails")
		}
	}
	if _, ok, _ := store.Load(context.Background()); ok {
		t.Fatal("no partial account may be persisted")
	}
}

func TestRegisterDiscardsTokenOnProfileFailure(t *testing.T) {
	ctx := context.Background()
	fake := &fakeAPI{
		grant:     identity.Grant{AccessToken: "abc", User: testUser},
		updateErr: errors.New("timeout"),
	}
	m, store := newManager(t, fake)

	res := m.Register(ctx, Registration{Phone: "09123456789", OTP: "123456", FirstName: "Sara", LastName: "Moradi"})
	if res.OK {
		t.Fatal("expected failure")
	}
	if _, ok, _ := store.Load(ctx); ok {
		t.Fatal("token from step 1 must be discarded when step 2 fails")
	}
	if _, ok := m.BearerToken(); ok {
		t.Fatal("no in-memory token may survive a failed registration")
	}
}

func TestRegisterMergesLocalFields(t *testing.T) {
	ctx := context.Background()
	fake := &fakeAPI{
		grant:   identity.Grant{AccessToken: "abc", User: identity.User{ID: 7, Phone: "09120000000"}},
		updated: identity.User{ID: 7, Phone: "09120000000"},
	}
	m, store := newManager(t, fake)

	res := m.Register(ctx, Registration{
		Phone: "09120000000", OTP: "123456",
		FirstName: "Sara", LastName: "Moradi", Email: "sara@example.com",
	})
	if !res.OK {
		t.Fatalf("register: %q", res.Err)
	}
	if res.User.FullName != "Sara Moradi" || res.User.Email != "sara@example.com" {
		t.Fatalf("local fields must win, got %+v", res.User)
	}

	creds, ok, _ := store.Load(ctx)
	if !ok || creds.User.FullName != "Sara Moradi" {
		t.Fatalf("persisted user incomplete: %+v", creds.User)
	}
	checkInvariant(t, m, store)
}

func TestReconcileFailureClearsPersistedSession(t *testing.T) {
	ctx := context.Background()
	store := credstore.NewMemoryStore()
	if err := store.Save(ctx, credstore.Credentials{Token: "stale", User: testUser}); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	fake := &fakeAPI{profErr: &api.StatusError{Code: http.StatusUnauthorized, Detail: "توکن منقضی شده"}}
	m := New(ctx, fake, store, logging.Discard())
	if got := m.Snapshot().Status; got != StatusHydrating {
		t.Fatalf("expected hydrating start, got %v", got)
	}

	if got := m.Reconcile(ctx); got != StatusAnonymous {
		t.Fatalf("expected demotion to anonymous, got %v", got)
	}
	if _, ok, _ := store.Load(ctx); ok {
		t.Fatal("revalidation failure must clear the persisted pair")
	}
	snap := m.Snapshot()
	if snap.Token != "" || !snap.User.Empty() {
		t.Fatalf("teardown must be total, got %+v", snap)
	}
}

func TestReconcileOverwritesCachedUser(t *testing.T) {
	ctx := context.Background()
	store := credstore.NewMemoryStore()
	cached := testUser
	cached.FullName = "Old Name"
	if err := store.Save(ctx, credstore.Credentials{Token: "abc", User: cached}); err != nil {
		t.Fatalf("seed store: %v", err)
	}

	serverCopy := testUser
	serverCopy.FullName = "Fresh Name"
	fake := &fakeAPI{profile: serverCopy}
	m := New(ctx, fake, store, logging.Discard())

	if got := m.Reconcile(ctx); got != StatusAuthenticated {
		t.Fatalf("reconcile: %v", got)
	}
	if got := m.Snapshot().User.FullName; got != "Fresh Name" {
		t.Fatalf("server copy is authoritative, got %q", got)
	}
	creds, _, _ := store.Load(ctx)
	if creds.User.FullName != "Fresh Name" {
		t.Fatalf("persisted copy not refreshed: %+v", creds.User)
	}
}

func TestReconcileIsNoOpOutsideHydration(t *testing.T) {
	fake := &fakeAPI{}
	m, _ := newManager(t, fake)
	if got := m.Reconcile(context.Background()); got != StatusAnonymous {
		t.Fatalf("expected anonymous, got %v", got)
	}
	if len(fake.calls) != 0 {
		t.Fatalf("no network call expected, got %v", fake.calls)
	}
}

func TestUpdateProfileWithoutSession(t *testing.T) {
	fake := &fakeAPI{}
	m, _ := newManager(t, fake)

	res := m.UpdateProfile(context.Background(), identity.ProfilePatch{Email: "a@b.com"})
	if res.OK {
		t.Fatal("expected failure")
	}
	if res.Err == "" {
		t.Fatal("expected a failure message")
	}
	if len(fake.calls) != 0 {
		t.Fatal("no network call may be made without a token")
	}
}

func TestUpdateProfileMergesAndPersists(t *testing.T) {
	ctx := context.Background()
	fake := &fakeAPI{grant: identity.Grant{AccessToken: "abc", User: testUser}, updated: testUser}
	m, store := newManager(t, fake)
	if res := m.Login(ctx, testUser.Phone, "123456"); !res.OK {
		t.Fatalf("login: %q", res.Err)
	}

	res := m.UpdateProfile(ctx, identity.ProfilePatch{Email: "new@example.com"})
	if !res.OK {
		t.Fatalf("update: %q", res.Err)
	}
	if got := m.Snapshot().User.Email; got != "new@example.com" {
		t.Fatalf("patch not merged, got %q", got)
	}
	creds, _, _ := store.Load(ctx)
	if creds.User.Email != "new@example.com" {
		t.Fatalf("patch not persisted: %+v", creds.User)
	}
}

func TestUpdateProfileUnauthorizedInvalidatesSession(t *testing.T) {
	ctx := context.Background()
	fake := &fakeAPI{grant: identity.Grant{AccessToken: "abc", User: testUser}}
	m, store := newManager(t, fake)
	if res := m.Login(ctx, testUser.Phone, "123456"); !res.OK {
		t.Fatalf("login: %q", res.Err)
	}

	fake.updateErr = &api.StatusError{Code: http.StatusUnauthorized, Detail: "توکن نامعتبر"}
	res := m.UpdateProfile(ctx, identity.ProfilePatch{Email: "x@y.com"})
	if res.OK {
		t.Fatal("expected failure")
	}
	if got := m.Snapshot().Status; got != StatusAnonymous {
		t.Fatalf("401 must destroy the session, got %v", got)
	}
	if _, ok, _ := store.Load(ctx); ok {
		t.Fatal("401 must clear the persisted pair")
	}
}

func TestLogoutAlwaysYieldsAnonymous(t *testing.T) {
	ctx := context.Background()
	fake := &fakeAPI{grant: identity.Grant{AccessToken: "abc", User: testUser}}

	resetCalled := false
	store := credstore.NewMemoryStore()
	m := New(ctx, fake, store, logging.Discard(), WithResetHook(func() { resetCalled = true }))

	// From every reachable state, logout lands in the same place.
	states := []func(){
		func() {},
		func() { m.RequestOTP(ctx, testUser.Phone) },
		func() { m.Login(ctx, testUser.Phone, "123456") },
	}
	for i, enter := range states {
		enter()
		m.Logout(ctx)
		snap := m.Snapshot()
		if snap.Status != StatusAnonymous || snap.Token != "" || !snap.User.Empty() {
			t.Fatalf("state %d: logout left %+v", i, snap)
		}
		if _, ok, _ := store.Load(ctx); ok {
			t.Fatalf("state %d: persisted pair survived logout", i)
		}
	}
	if !resetCalled {
		t.Fatal("reset hook not invoked")
	}
}

// TestInvariantAcrossOperationSequences drives the manager through scripted
// operation sequences and asserts the persistence invariant after every
// step: authenticated if and only if the stored pair is complete.
func TestInvariantAcrossOperationSequences(t *testing.T) {
	ctx := context.Background()

	type step func(m *Manager, fake *fakeAPI)
	ok := identity.Grant{AccessToken: "abc", User: testUser}

	steps := map[string]step{
		"send_ok":    func(m *Manager, f *fakeAPI) { f.sendErr = nil; m.RequestOTP(ctx, testUser.Phone) },
		"send_fail":  func(m *Manager, f *fakeAPI) { f.sendErr = errors.New("x"); m.RequestOTP(ctx, testUser.Phone) },
		"login_ok":   func(m *Manager, f *fakeAPI) { f.verifyErr = nil; f.grant = ok; m.Login(ctx, testUser.Phone, "1") },
		"login_deny": func(m *Manager, f *fakeAPI) { f.verifyErr = nil; f.grant = identity.Grant{}; m.Login(ctx, testUser.Phone, "1") },
		"login_err":  func(m *Manager, f *fakeAPI) { f.verifyErr = errors.New("x"); m.Login(ctx, testUser.Phone, "1") },
		"update_ok":  func(m *Manager, f *fakeAPI) { f.updateErr = nil; m.UpdateProfile(ctx, identity.ProfilePatch{Email: "a@b.c"}) },
		"update_401": func(m *Manager, f *fakeAPI) {
			f.updateErr = &api.StatusError{Code: http.StatusUnauthorized, Detail: "x"}
			m.UpdateProfile(ctx, identity.ProfilePatch{Email: "a@b.c"})
		},
		"logout": func(m *Manager, f *fakeAPI) { m.Logout(ctx) },
	}

	sequences := [][]string{
		{"send_ok", "login_ok", "update_ok", "logout"},
		{"login_deny", "send_fail", "login_ok", "update_401", "login_ok", "logout", "update_ok"},
		{"logout", "logout", "login_err", "send_ok", "login_ok", "login_deny", "update_ok"},
		{"login_ok", "login_ok", "update_401", "send_ok", "logout"},
	}

	for _, seq := range sequences {
		fake := &fakeAPI{}
		m, store := newManager(t, fake)
		for _, name := range seq {
			steps[name](m, fake)
			checkInvariant(t, m, store)
		}
	}
}
