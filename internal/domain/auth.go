package domain

import "time"

// AuthMethod is how a caller proved control of an account.
type AuthMethod string

const (
	AuthMethodWallet AuthMethod = "wallet"
	AuthMethodAPIKey AuthMethod = "api_key"
)

// Principal is an authenticated caller.
type Principal struct {
	Account Address    `json:"account"`
	Method  AuthMethod `json:"method"`
	TokenID string     `json:"-"`
}

// LoginChallenge is the message a wallet must sign to obtain a session.
type LoginChallenge struct {
	Account   Address   `json:"account"`
	Nonce     string    `json:"nonce"`
	Message   string    `json:"message"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Session is the token pair issued after a successful login.
type Session struct {
	Account      Address   `json:"account"`
	AccessToken  string    `json:"access_token"`
	RefreshToken string    `json:"refresh_token"`
	ExpiresAt    time.Time `json:"expires_at"`
}
