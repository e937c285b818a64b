package identity

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/exonvc/invest/internal/api"
)

func TestVerifyOTPDecodesGrant(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/auth/verify-otp" {
			t.Errorf("path %q", r.URL.Path)
		}
		var req map[string]string
		json.NewDecoder(r.Body).Decode(&req)
		if req["phone"] != "09123456789" || req["otp"] != "123456" {
			t.Errorf("unexpected body %v", req)
		}
		w.Write([]byte(`{"access_token":"abc","token_type":"bearer","user":{"id":1,"phone":"09123456789"}}`))
	}))
	defer srv.Close()

	grant, err := NewClient(api.New(srv.URL)).VerifyOTP(context.Background(), "09123456789", "123456")
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if grant.AccessToken != "abc" || grant.User.ID != 1 {
		t.Fatalf("unexpected grant %+v", grant)
	}
}

func TestUpdateProfileUnwrapsEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPut {
			t.Errorf("method %q", r.Method)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer abc" {
			t.Errorf("authorization %q", got)
		}
		w.Write([]byte(`{"message":"ok","success":true,"user":{"id":1,"phone":"09123456789","email":"a@b.com"}}`))
	}))
	defer srv.Close()

	user, err := NewClient(api.New(srv.URL)).UpdateProfile(context.Background(), "abc", ProfilePatch{Email: "a@b.com"})
	if err != nil {
		t.Fatalf("update: %v", err)
	}
	if user.Email != "a@b.com" {
		t.Fatalf("unexpected user %+v", user)
	}
}

func TestProfilePatchMerge(t *testing.T) {
	base := User{ID: 1, Phone: "09123456789", FullName: "Old", Email: "old@example.com"}
	merged := ProfilePatch{FullName: "New Name"}.Merge(base)
	if merged.FullName != "New Name" {
		t.Fatalf("full name %q", merged.FullName)
	}
	if merged.Email != "old@example.com" {
		t.Fatalf("untouched field changed: %q", merged.Email)
	}
	if got := (ProfilePatch{}).Merge(base); got != base {
		t.Fatalf("empty patch must be identity, got %+v", got)
	}
}
