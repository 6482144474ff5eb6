// Copyright (c) 2025 Daniel Kuo.
// Source-available; no permission granted to use, copy, modify, or distribute. See LICENSE.

/*
Package auth identifies the user behind a request.

# User Tokens

Users are managed by an upstream login service. It hands each client a
token signed with the shared SESSION_SECRET:

	token := auth.IssueUserToken(userID, secret)
	userID, err := auth.VerifyUserToken(token, secret)

A token is the user ID, a dot, and the URL-safe base64 HMAC-SHA256 of the
ID without padding. Nothing is stored; the signature is checked on each
request.

# Requests

Handlers read the user from the X-User-Token header, or from the token
query parameter on websocket handshakes:

	userID, err := auth.UserFromRequest(r, cfg.SessionSecret)
	if errors.Is(err, auth.ErrNoToken) {
		// anonymous
	}

# IP Hashing

Request logs carry a hashed client IP rather than the address itself:

	hash := auth.HashIP(ipAddress, salt)

Returns first 8 bytes (16 hex chars) of HMAC-SHA256.
*/
package auth
