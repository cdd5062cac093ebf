package auth

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
)

const userinfoEndpoint = "https://www.googleapis.com/oauth2/v2/userinfo"

// Identity is what the login provider tells us about an account: the
// stable provider id plus the email. Everything else the product knows
// about a user (nickname, chats) lives in our own store.
type Identity struct {
	ProviderID string `json:"id"`
	Email      string `json:"email"`
}

// GoogleProvider wraps the OAuth code-exchange flow against Google.
type GoogleProvider struct {
	config *oauth2.Config
}

func NewGoogleProvider(clientID, clientSecret, redirectURL string) *GoogleProvider {
	return &GoogleProvider{
		config: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes: []string{
				"https://www.googleapis.com/auth/userinfo.profile",
				"https://www.googleapis.com/auth/userinfo.email",
			},
			Endpoint: google.Endpoint,
		},
	}
}

// LoginURL is where the client gets redirected to start the flow. State
// is echoed back on the callback and must be verified by the caller.
func (p *GoogleProvider) LoginURL(state string) string {
	return p.config.AuthCodeURL(state)
}

// Exchange trades the callback code for the account's identity.
func (p *GoogleProvider) Exchange(ctx context.Context, code string) (*Identity, error) {
	token, err := p.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("exchange code: %w", err)
	}

	client := p.config.Client(ctx, token)
	resp, err := client.Get(userinfoEndpoint)
	if err != nil {
		return nil, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetch userinfo: status %d", resp.StatusCode)
	}

	var id Identity
	if err := json.NewDecoder(resp.Body).Decode(&id); err != nil {
		return nil, fmt.Errorf("decode userinfo: %w", err)
	}
	if id.ProviderID == "" || id.Email == "" {
		return nil, fmt.Errorf("userinfo missing id or email")
	}
	return &id, nil
}
