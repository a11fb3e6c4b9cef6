// Package token derives the rotating proof-of-presence token: a keyed MAC
// over a session id and a fixed-length time window index.
package token

import (
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
	"time"
)

// Engine computes rotating tokens from a server-held secret. The secret is
// set once at construction and never exposed; tokens are one-way.
type Engine struct {
	secret []byte
	window time.Duration
}

// New creates an engine. windowSeconds <= 0 falls back to 30.
func New(secret string, windowSeconds int) *Engine {
	if windowSeconds <= 0 {
		windowSeconds = 30
	}
	return &Engine{
		secret: []byte(secret),
		window: time.Duration(windowSeconds) * time.Second,
	}
}

// WindowSeconds returns the rotation period in seconds.
func (e *Engine) WindowSeconds() int64 {
	return int64(e.window / time.Second)
}

// Window returns the index of the rotation window containing t.
func (e *Engine) Window(t time.Time) int64 {
	return t.Unix() / e.WindowSeconds()
}

// SecondsRemaining returns how long the window containing t is still valid.
func (e *Engine) SecondsRemaining(t time.Time) int64 {
	return e.WindowSeconds() - t.Unix()%e.WindowSeconds()
}

// Token returns the hex-encoded HMAC-SHA256 of "sessionID:window".
// Identical inputs always yield the identical token for the same secret.
func (e *Engine) Token(sessionID string, window int64) string {
	mac := hmac.New(sha256.New, e.secret)
	fmt.Fprintf(mac, "%s:%d", sessionID, window)
	return hex.EncodeToString(mac.Sum(nil))
}

// Verify reports whether candidate equals the expected token for the given
// session and window, in constant time.
func (e *Engine) Verify(sessionID string, window int64, candidate string) bool {
	expected := e.Token(sessionID, window)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(candidate)) == 1
}
