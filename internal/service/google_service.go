package service

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"

	"github.com/storegrid/identity-service/internal/apperr"
	"github.com/storegrid/identity-service/internal/observability"
	"github.com/storegrid/identity-service/internal/repository"
	"github.com/storegrid/identity-service/internal/security"
)

const googleUserinfoEndpoint = "https://openidconnect.googleapis.com/v1/userinfo"

// googleStatePayload is sealed into the oauth state cookie. The hostname
// pins the callback to the host that started the flow, the verifier is the
// PKCE secret, and RedirectURL is where to land the user afterwards.
type googleStatePayload struct {
	State       string `json:"state"`
	Verifier    string `json:"verifier"`
	Hostname    string `json:"hostname"`
	RedirectURL string `json:"redirectUrl"`
}

type googleUserinfo struct {
	Sub           string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	Picture       string `json:"picture"`
}

// GoogleService federates login through Google with PKCE. Accounts are
// keyed by email: a Google login attaches to an existing account with the
// same address rather than creating a duplicate.
type GoogleService struct {
	users     repository.UserRepository
	sessions  *SessionService
	twoFactor *TwoFactorService
	codec     *security.Codec
	oauth     *oauth2.Config
}

func NewGoogleService(users repository.UserRepository, sessions *SessionService, twoFactor *TwoFactorService, codec *security.Codec, clientID, clientSecret, redirectURL string) *GoogleService {
	return &GoogleService{
		users:     users,
		sessions:  sessions,
		twoFactor: twoFactor,
		codec:     codec,
		oauth: &oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			RedirectURL:  redirectURL,
			Scopes:       []string{"openid", "email", "profile"},
			Endpoint:     google.Endpoint,
		},
	}
}

func (s *GoogleService) Enabled() bool { return s.oauth.ClientID != "" }

// Begin builds the consent URL and the sealed state token the handler
// stores in a cookie for the callback leg.
func (s *GoogleService) Begin(hostname, redirectURL string) (authURL, stateToken string, err error) {
	state := security.GenerateSessionToken()
	verifier := oauth2.GenerateVerifier()
	stateToken, err = s.codec.Seal(security.PurposeGoogleOAuth, googleStatePayload{
		State:       state,
		Verifier:    verifier,
		Hostname:    hostname,
		RedirectURL: redirectURL,
	}, security.DefaultTokenTTL)
	if err != nil {
		return "", "", err
	}
	authURL = s.oauth.AuthCodeURL(state, oauth2.AccessTypeOnline, oauth2.S256ChallengeOption(verifier))
	return authURL, stateToken, nil
}

// Callback validates the state echo, exchanges the code, loads the Google
// profile and completes the login on the hostname that began the flow.
// It returns the redirect target captured at Begin time.
func (s *GoogleService) Callback(ctx context.Context, stateToken, state, code, hostname string) (*LoginResult, string, error) {
	var payload googleStatePayload
	if err := s.codec.Unseal(stateToken, security.PurposeGoogleOAuth, &payload); err != nil {
		return nil, "", err
	}
	if !security.ConstantTimeEquals(payload.State, state) || payload.Hostname != hostname {
		observability.RecordLoginAttempt(ctx, "google", "state_mismatch")
		return nil, "", apperr.ErrInvalidToken
	}
	token, err := s.oauth.Exchange(ctx, code, oauth2.VerifierOption(payload.Verifier))
	if err != nil {
		observability.RecordLoginAttempt(ctx, "google", "exchange_failed")
		return nil, "", apperr.ErrInvalidToken
	}
	info, err := s.fetchUserinfo(ctx, token)
	if err != nil {
		return nil, "", err
	}
	if info.Email == "" {
		return nil, "", apperr.ErrInvalidToken
	}
	user, err := s.users.UpsertByEmail(ctx, info.Email, nil)
	if err != nil {
		return nil, "", err
	}
	var picture *string
	if info.Picture != "" {
		picture = &info.Picture
	}
	verified := user.IsEmailVerified || info.EmailVerified
	if err := s.users.UpdateProfile(ctx, user.ID, info.Name, picture, verified); err != nil {
		return nil, "", err
	}
	user.Name = info.Name
	user.PictureURL = picture
	user.IsEmailVerified = verified
	result, err := completeLogin(ctx, user, hostname, "google", s.sessions, s.twoFactor)
	if err != nil {
		return nil, "", err
	}
	return result, payload.RedirectURL, nil
}

func (s *GoogleService) fetchUserinfo(ctx context.Context, token *oauth2.Token) (*googleUserinfo, error) {
	client := s.oauth.Client(ctx, token)
	resp, err := client.Get(googleUserinfoEndpoint)
	if err != nil {
		return nil, fmt.Errorf("fetch userinfo: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("fetch userinfo: status %d: %s", resp.StatusCode, body)
	}
	var info googleUserinfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode userinfo: %w", err)
	}
	return &info, nil
}
