package services

import (
	"context"
	"net/http"

	"github.com/desertthunder/perc/internal/interceptor"
	"github.com/desertthunder/perc/internal/models"
	"github.com/desertthunder/perc/internal/shared"
)

// AuthService covers /auth.
type AuthService struct {
	*base
}

// Login signs in. In bearer mode the returned access token is stored on the client.
func (s *AuthService) Login(ctx context.Context, email, password string) (*models.AuthResponse, error) {
	req := models.LoginRequest{Email: email, Password: password}
	resp, err := call[models.AuthResponse](ctx, s.base, interceptor.Options{SkipAuth: true}, http.MethodPost, "/auth/login", req)
	if err != nil {
		return nil, err
	}
	s.adoptToken(resp)
	return resp, nil
}

// Register creates an account. The backend signs the new user in.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.AuthResponse, error) {
	resp, err := call[models.AuthResponse](ctx, s.base, interceptor.Options{SkipAuth: true}, http.MethodPost, "/auth/register", req)
	if err != nil {
		return nil, err
	}
	s.adoptToken(resp)
	return resp, nil
}

// Me returns the current user. Callers choose whether a 401 goes through session-expiry handling.
func (s *AuthService) Me(ctx context.Context, opts interceptor.Options) (*models.User, error) {
	return call[models.User](ctx, s.base, opts, http.MethodGet, "/auth/me", nil)
}

// Logout ends the backend session.
func (s *AuthService) Logout(ctx context.Context) error {
	return s.ic.Do(ctx, interceptor.Options{SkipAuth: true}, func(ctx context.Context) error {
		return s.client.Do(ctx, http.MethodPost, "/auth/logout", nil, nil)
	})
}

func (s *AuthService) adoptToken(resp *models.AuthResponse) {
	if s.client.AuthMode() == shared.AuthModeBearer && resp.AccessToken != "" {
		s.client.SetToken(resp.AccessToken, resp.TokenType)
	}
}
