package gateway

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"fmt"
)

const (
	// challengeBytes sizes the random challenge sent on connect
	challengeBytes = 32
	// maxAuthAttempts bounds failed signatures before the connection is cut
	maxAuthAttempts = 3
)

// AuthHandler runs the gateway's challenge-response handshake: the server
// sends a random challenge, the client answers with HMAC-SHA256 over it
// keyed by the shared secret
type AuthHandler struct {
	sharedSecret string
}

// NewAuthHandler creates an auth handler for one shared secret
func NewAuthHandler(sharedSecret string) *AuthHandler {
	return &AuthHandler{sharedSecret: sharedSecret}
}

// GenerateChallenge returns a fresh hex-encoded random challenge
func (a *AuthHandler) GenerateChallenge() (string, error) {
	challenge := make([]byte, challengeBytes)
	if _, err := rand.Read(challenge); err != nil {
		return "", fmt.Errorf("failed to generate challenge: %w", err)
	}
	return hex.EncodeToString(challenge), nil
}

// sign computes the expected answer for a challenge
func (a *AuthHandler) sign(challenge string) string {
	h := hmac.New(sha256.New, []byte(a.sharedSecret))
	h.Write([]byte(challenge))
	return hex.EncodeToString(h.Sum(nil))
}

// VerifySignature checks a client's answer in constant time
func (a *AuthHandler) VerifySignature(challenge, signature string) bool {
	expected := a.sign(challenge)
	return subtle.ConstantTimeCompare([]byte(expected), []byte(signature)) == 1
}

// HandleAuthResponse resolves a client's answer to its pending challenge.
// A valid answer authenticates the client and consumes the challenge;
// after maxAuthAttempts failures the caller closes the connection.
func (a *AuthHandler) HandleAuthResponse(client *Client, signature string) AuthResult {
	if client.Challenge == "" {
		return AuthResult{Event: "auth.failure", Message: "No challenge found"}
	}

	if !a.VerifySignature(client.Challenge, signature) {
		client.AuthAttempts++
		msg := "Invalid signature"
		if client.AuthAttempts >= maxAuthAttempts {
			msg = "Too many failed attempts"
		}
		return AuthResult{Event: "auth.failure", Message: msg}
	}

	client.Authenticated = true
	client.State = StateAuthenticated
	client.AuthAttempts = 0
	client.Challenge = ""

	return AuthResult{Event: "auth.success", Success: true}
}
