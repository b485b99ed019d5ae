package core

import (
	"encoding/base64"
	"encoding/json"
	"fmt"
	"strings"
)

// IdentityClaims is the subset of id-token claims the app displays.
type IdentityClaims struct {
	Email        string `json:"email"`
	HostedDomain string `json:"hd,omitempty"`
}

// DecodeIdentityToken extracts display claims from a JWT-shaped identity
// token without verifying its signature. The payload is the second
// base64url segment, padded back to a multiple of 4 before decoding.
// Malformed tokens return a parse error; callers degrade to an anonymous
// display rather than failing the surrounding operation.
func DecodeIdentityToken(idToken string) (IdentityClaims, error) {
	parts := strings.Split(idToken, ".")
	if len(parts) != 3 {
		return IdentityClaims{}, ErrParse("invalid identity token format")
	}

	payload := parts[1]
	if pad := len(payload) % 4; pad != 0 {
		payload += strings.Repeat("=", 4-pad)
	}

	decoded, err := base64.URLEncoding.DecodeString(payload)
	if err != nil {
		return IdentityClaims{}, ErrParse(fmt.Sprintf("identity token decode: %v", err))
	}

	var claims IdentityClaims
	if err := json.Unmarshal(decoded, &claims); err != nil {
		return IdentityClaims{}, ErrParse(fmt.Sprintf("identity token claims: %v", err))
	}
	return claims, nil
}
