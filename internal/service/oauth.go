package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/traincore/lms-platform/internal/config"
	"github.com/traincore/lms-platform/internal/model"
	"github.com/traincore/lms-platform/internal/repository"
	"github.com/traincore/lms-platform/internal/utils"
)

// OAuthService is the federated login bridge. It exchanges an external
// authorization code for the provider's access token, resolves or
// creates a local user from the external profile, and hands off to the
// same issuance path as direct login. Its three failure classes stay
// distinct: missing client credentials (configuration), a provider
// rejection (ProviderExchangeError with the provider's payload), and
// transport errors (wrapped), so the callback never falls back to an
// unauthenticated state without a reason.
type OAuthService struct {
	cfg    config.Config
	users  repository.UserRepository
	auth   *AuthService
	client *http.Client
}

func NewOAuthService(cfg config.Config, users repository.UserRepository, auth *AuthService) *OAuthService {
	return &OAuthService{
		cfg:    cfg,
		users:  users,
		auth:   auth,
		client: &http.Client{Timeout: 10 * time.Second},
	}
}

// tokenResponse is the provider's token-endpoint reply. Providers return
// either an access token or an error/error_description pair.
type tokenResponse struct {
	AccessToken      string `json:"access_token"`
	TokenType        string `json:"token_type"`
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

// externalProfile is the subset of the provider's userinfo document the
// bridge needs. Google and Microsoft both populate these fields.
type externalProfile struct {
	Email     string `json:"email"`
	GivenName string `json:"given_name"`
	Surname   string `json:"family_name"`
	Name      string `json:"name"`
}

// Login runs the full bridge for one provider and authorization code.
func (s *OAuthService) Login(ctx context.Context, providerName, code string) (model.AuthenticationResult, error) {
	provider, ok := s.cfg.OAuth[strings.ToLower(providerName)]
	if !ok || provider.ClientID == "" || provider.ClientSecret == "" {
		return model.AuthenticationResult{}, fmt.Errorf("%w: %s", ErrConfigurationError, providerName)
	}

	accessToken, err := s.exchangeCode(ctx, provider, code)
	if err != nil {
		return model.AuthenticationResult{}, err
	}
	profile, err := s.fetchProfile(ctx, provider, accessToken)
	if err != nil {
		return model.AuthenticationResult{}, err
	}
	user, err := s.resolveUser(ctx, profile)
	if err != nil {
		return model.AuthenticationResult{}, err
	}
	return s.auth.Finalize(ctx, user)
}

// exchangeCode posts the form-encoded authorization-code grant to the
// provider's token endpoint.
func (s *OAuthService) exchangeCode(ctx context.Context, p config.OAuthProvider, code string) (string, error) {
	form := url.Values{
		"client_id":     {p.ClientID},
		"client_secret": {p.ClientSecret},
		"code":          {code},
		"grant_type":    {"authorization_code"},
		"redirect_uri":  {p.RedirectURI},
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.TokenURL, strings.NewReader(form.Encode()))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("oauth %s: token exchange request: %w", p.Name, err)
	}
	defer resp.Body.Close()

	var body tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil && !errors.Is(err, context.Canceled) {
		// An undecodable body from a non-2xx status is still a rejection.
		body = tokenResponse{}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 || body.AccessToken == "" {
		return "", &ProviderExchangeError{
			Provider:    p.Name,
			StatusCode:  resp.StatusCode,
			Code:        body.Error,
			Description: body.ErrorDescription,
		}
	}
	return body.AccessToken, nil
}

// fetchProfile retrieves the external user profile with a bearer token.
func (s *OAuthService) fetchProfile(ctx context.Context, p config.OAuthProvider, accessToken string) (externalProfile, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.UserInfoURL, nil)
	if err != nil {
		return externalProfile{}, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := s.client.Do(req)
	if err != nil {
		return externalProfile{}, fmt.Errorf("oauth %s: profile request: %w", p.Name, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return externalProfile{}, &ProviderExchangeError{
			Provider:    p.Name,
			StatusCode:  resp.StatusCode,
			Code:        "profile_fetch_failed",
			Description: "userinfo endpoint returned a non-OK status",
		}
	}
	var profile externalProfile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return externalProfile{}, fmt.Errorf("oauth %s: decode profile: %w", p.Name, err)
	}
	if profile.Email == "" {
		return externalProfile{}, fmt.Errorf("oauth %s: profile carries no email", p.Name)
	}
	return profile, nil
}

// resolveUser loads the local user keyed by the external email, creating
// a pending trainee on first federated login. The generated password is
// random and unrecoverable; such accounts log in through the provider or
// run the reset flow to set their own.
func (s *OAuthService) resolveUser(ctx context.Context, profile externalProfile) (model.User, error) {
	user, err := s.users.GetByEmail(ctx, profile.Email)
	if err == nil {
		return user, nil
	}
	if !errors.Is(err, repository.ErrNotFound) {
		return model.User{}, err
	}

	random, err := utils.NewRefreshTokenValue()
	if err != nil {
		return model.User{}, err
	}
	hash, err := utils.HashPassword(random)
	if err != nil {
		return model.User{}, err
	}

	firstName := profile.GivenName
	if firstName == "" {
		firstName = profile.Name
	}
	user = model.User{
		FirstName:    firstName,
		LastName:     profile.Surname,
		Email:        strings.ToLower(profile.Email),
		HashPassword: hash,
		Status:       model.StatusPending,
		Role:         model.RoleTrainee,
	}
	id, err := s.users.Create(ctx, &user)
	if err != nil {
		return model.User{}, err
	}
	user.ID = id
	return user, nil
}
