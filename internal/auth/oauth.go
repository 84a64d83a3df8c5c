// Package auth exchanges OAuth authorization codes for user profiles.
// Google and Facebook are supported; the handler layer only sees the
// normalized Profile.
package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/facebook"
	"golang.org/x/oauth2/google"
)

// ErrExchangeFailed covers any failure between the code exchange and
// the profile fetch. Handlers map it to 401.
var ErrExchangeFailed = errors.New("oauth exchange failed")

// Profile is the provider-agnostic identity handed to the user store.
type Profile struct {
	Provider string
	ID       string
	Email    string
	Name     string
	Picture  string
}

// Exchanger turns an authorization code into a Profile.
type Exchanger interface {
	Exchange(ctx context.Context, code string) (Profile, error)
}

const maxProfileBody = 1 << 20

// fetchJSON GETs url with the token-bound client and decodes into v.
func fetchJSON(ctx context.Context, conf *oauth2.Config, tok *oauth2.Token, url string, v any) error {
	resp, err := conf.Client(ctx, tok).Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("profile endpoint returned %d", resp.StatusCode)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxProfileBody))
	if err != nil {
		return err
	}
	return json.Unmarshal(body, v)
}

// GoogleExchanger resolves Google authorization codes.
type GoogleExchanger struct {
	conf *oauth2.Config
}

func NewGoogleExchanger(clientID, clientSecret, redirectURL string) *GoogleExchanger {
	return &GoogleExchanger{conf: &oauth2.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{"openid", "email", "profile"},
		Endpoint:     google.Endpoint,
	}}
}

func (g *GoogleExchanger) Exchange(ctx context.Context, code string) (Profile, error) {
	tok, err := g.conf.Exchange(ctx, code)
	if err != nil {
		return Profile{}, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	var info struct {
		Sub     string `json:"sub"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture string `json:"picture"`
	}
	if err := fetchJSON(ctx, g.conf, tok, "https://www.googleapis.com/oauth2/v3/userinfo", &info); err != nil {
		return Profile{}, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	if info.Sub == "" || info.Email == "" {
		return Profile{}, ErrExchangeFailed
	}
	return Profile{
		Provider: "google",
		ID:       info.Sub,
		Email:    info.Email,
		Name:     info.Name,
		Picture:  info.Picture,
	}, nil
}

// FacebookExchanger resolves Facebook authorization codes.
type FacebookExchanger struct {
	conf *oauth2.Config
}

func NewFacebookExchanger(appID, appSecret, redirectURL string) *FacebookExchanger {
	return &FacebookExchanger{conf: &oauth2.Config{
		ClientID:     appID,
		ClientSecret: appSecret,
		RedirectURL:  redirectURL,
		Scopes:       []string{"email", "public_profile"},
		Endpoint:     facebook.Endpoint,
	}}
}

func (f *FacebookExchanger) Exchange(ctx context.Context, code string) (Profile, error) {
	tok, err := f.conf.Exchange(ctx, code)
	if err != nil {
		return Profile{}, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	var info struct {
		ID      string `json:"id"`
		Email   string `json:"email"`
		Name    string `json:"name"`
		Picture struct {
			Data struct {
				URL string `json:"url"`
			} `json:"data"`
		} `json:"picture"`
	}
	if err := fetchJSON(ctx, f.conf, tok,
		"https://graph.facebook.com/v18.0/me?fields=id,email,name,picture", &info); err != nil {
		return Profile{}, fmt.Errorf("%w: %v", ErrExchangeFailed, err)
	}
	if info.ID == "" || info.Email == "" {
		// Facebook omits email for phone-only accounts; we require it.
		return Profile{}, ErrExchangeFailed
	}
	return Profile{
		Provider: "facebook",
		ID:       info.ID,
		Email:    info.Email,
		Name:     info.Name,
		Picture:  info.Picture.Data.URL,
	}, nil
}
