package identitystub

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

var b64 = base64.RawURLEncoding

var (
	errInvalidToken = errors.New("invalid token")
	errExpiredToken = errors.New("expired token")
)

// signHS256 creates a compact JWT string using HS256.
func signHS256(claims map[string]any, secret []byte) (string, error) {
	header := map[string]string{"alg": "HS256", "typ": "JWT"}
	h, err := json.Marshal(header)
	if err != nil {
		return "", err
	}
	c, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	unsigned := b64.EncodeToString(h) + "." + b64.EncodeToString(c)
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(unsigned))
	sig := mac.Sum(nil)
	return unsigned + "." + b64.EncodeToString(sig), nil
}

// parseAndVerifyHS256 verifies the token signature and expiry and returns
// the claims.
func parseAndVerifyHS256(token string, secret []byte) (map[string]any, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return nil, errInvalidToken
	}
	unsigned := parts[0] + "." + parts[1]
	sigBytes, err := b64.DecodeString(parts[2])
	if err != nil {
		return nil, errInvalidToken
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(unsigned))
	if !hmac.Equal(sigBytes, mac.Sum(nil)) {
		return nil, errInvalidToken
	}
	payload, err := b64.DecodeString(parts[1])
	if err != nil {
		return nil, errInvalidToken
	}
	var claims map[string]any
	if err := json.Unmarshal(payload, &claims); err != nil {
		return nil, errInvalidToken
	}
	if expFloat, ok := claims["exp"].(float64); ok {
		if time.Now().Unix() >= int64(expFloat) {
			return nil, errExpiredToken
		}
	}
	return claims, nil
}
