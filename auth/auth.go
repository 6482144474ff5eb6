// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

package auth

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/base64"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
)

// UserTokenHeader carries the user token on REST requests. Browsers cannot
// set headers on a websocket handshake, so the token query parameter is
// accepted as well.
const (
	UserTokenHeader = "X-User-Token"
	UserTokenQuery  = "token"
)

var (
	ErrNoToken      = errors.New("no user token")
	ErrInvalidToken = errors.New("invalid user token")
)

// IssueUserToken signs a user ID issued by the upstream login service.
// The token is "<user_id>.<signature>".
func IssueUserToken(userID, secret string) string {
	return userID + "." + sign(userID, secret)
}

// VerifyUserToken checks the token's signature and returns the user ID.
func VerifyUserToken(token, secret string) (string, error) {
	i := strings.LastIndexByte(token, '.')
	if i <= 0 || i == len(token)-1 {
		return "", ErrInvalidToken
	}

	userID, sig := token[:i], token[i+1:]
	if !hmac.Equal([]byte(sig), []byte(sign(userID, secret))) {
		return "", ErrInvalidToken
	}
	return userID, nil
}

// UserFromRequest returns the authenticated user of the request.
// It returns ErrNoToken for anonymous requests and ErrInvalidToken for
// tokens that fail verification.
func UserFromRequest(r *http.Request, secret string) (string, error) {
	token := r.Header.Get(UserTokenHeader)
	if token == "" {
		token = r.URL.Query().Get(UserTokenQuery)
	}
	if token == "" {
		return "", ErrNoToken
	}
	return VerifyUserToken(token, secret)
}

func sign(userID, secret string) string {
	h := hmac.New(sha256.New, []byte(secret))
	h.Write([]byte(userID))
	// URL-safe base64 without padding so tokens survive query strings
	return strings.TrimRight(base64.URLEncoding.EncodeToString(h.Sum(nil)), "=")
}

// HashIP creates a one-way hash of an IP address for privacy
// Includes salt to prevent rainbow table attacks
func HashIP(ip, salt string) string {
	h := hmac.New(sha256.New, []byte(salt))
	h.Write([]byte(ip))
	sum := h.Sum(nil)
	// Return first 16 hex chars (64 bits) - enough for log correlation
	return hex.EncodeToString(sum[:8])
}
