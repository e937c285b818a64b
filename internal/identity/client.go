// Package identity wraps the remote identity API: OTP delivery and
// verification, and profile reads/writes. The contract is consumed, not
// owned; see internal/identitystub for the test double.
package identity

import (
	"context"
	"net/http"

	"github.com/exonvc/invest/internal/api"
)

const (
	sendOTPPath   = "/api/auth/send-otp"
	verifyOTPPath = "/api/auth/verify-otp"
	profilePath   = "/api/user/profile"
)

// Client calls the identity endpoints over the shared API transport.
type Client struct {
	api *api.Client
}

// NewClient wraps the transport.
func NewClient(transport *api.Client) *Client {
	return &Client{api: transport}
}

// SendOTP asks the backend to deliver a one-time code to the phone number.
// The phone string is forwarded as given; format validation is the caller's
// responsibility.
func (c *Client) SendOTP(ctx context.Context, phone string) (Ack, error) {
	var ack Ack
	err := c.api.Do(ctx, http.MethodPost, sendOTPPath, "", map[string]string{"phone": phone}, &ack)
	if err != nil {
		return Ack{}, err
	}
	return ack, nil
}

// VerifyOTP exchanges a phone/code pair for a bearer token and the account
// record.
func (c *Client) VerifyOTP(ctx context.Context, phone, otp string) (Grant, error) {
	var grant Grant
	err := c.api.Do(ctx, http.MethodPost, verifyOTPPath, "", map[string]string{"phone": phone, "otp": otp}, &grant)
	if err != nil {
		return Grant{}, err
	}
	return grant, nil
}

// Profile fetches the current account for the given token.
func (c *Client) Profile(ctx context.Context, token string) (User, error) {
	var user User
	if err := c.api.Do(ctx, http.MethodGet, profilePath, token, nil, &user); err != nil {
		return User{}, err
	}
	return user, nil
}

// UpdateProfile applies a sparse patch to the current account and returns
// the updated record from the `{message, success, user}` envelope.
func (c *Client) UpdateProfile(ctx context.Context, token string, patch ProfilePatch) (User, error) {
	var envelope struct {
		Message string `json:"message"`
		Success bool   `json:"success"`
		User    User   `json:"user"`
	}
	if err := c.api.Do(ctx, http.MethodPut, profilePath, token, patch, &envelope); err != nil {
		return User{}, err
	}
	return envelope.User, nil
}
