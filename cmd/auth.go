package main

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/desertthunder/perc/internal/client"
	"github.com/desertthunder/perc/internal/models"
	"github.com/desertthunder/perc/internal/shared"
	"github.com/urfave/cli/v3"
)

func readCredentials(cmd *cli.Command) (string, string, error) {
	email := strings.TrimSpace(cmd.String("email"))
	password := cmd.String("password")
	if email == "" {
		return "", "", fmt.Errorf("%w: --email", shared.ErrMissingArgument)
	}
	if password == "" {
		return "", "", fmt.Errorf("%w: --password or PERC_PASSWORD", shared.ErrMissingArgument)
	}
	return email, password, nil
}

// AuthLogin signs in and persists the session for later commands.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	email, password, err := readCredentials(cmd)
	if err != nil {
		return err
	}

	r.logger.Info("signing in", "email", email)

	user, err := r.session.Login(ctx, email, password)
	if err != nil {
		return err
	}

	r.logger.Info("authentication successful")
	return r.writePlain("✓ Signed in as %s\n", user.Name())
}

// AuthRegister creates an account and signs in as it.
func (r *Runner) AuthRegister(ctx context.Context, cmd *cli.Command) error {
	email, password, err := readCredentials(cmd)
	if err != nil {
		return err
	}

	user, err := r.session.Register(ctx, models.RegisterRequest{
		Email:     email,
		Password:  password,
		FirstName: cmd.String("first-name"),
		LastName:  cmd.String("last-name"),
	})
	if err != nil {
		return err
	}

	return r.writePlain("✓ Account created, signed in as %s\n", user.Name())
}

// AuthLogout ends the session on the backend and removes local credentials.
//
// Local credentials are removed even when the backend cannot be reached.
func (r *Runner) AuthLogout(ctx context.Context, cmd *cli.Command) error {
	if err := r.session.Restore(ctx); err != nil {
		r.logger.Warn("could not validate session before logout", "error", err)
	}

	if err := r.session.SignOut(ctx); err != nil {
		r.writePlain("Backend logout failed; local session cleared\n")
		return nil
	}
	return r.writePlain("✓ Signed out\n")
}

// AuthStatus reports whether the stored session is still accepted by the backend.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	r.logger.Info("checking auth status")

	if err := r.session.Restore(ctx); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}

	state := r.session.State()
	r.writePlain("Backend:   %s\n", r.client.BaseURL())
	r.writePlain("Auth mode: %s\n", r.client.AuthMode())

	if !state.IsAuthenticated {
		r.writePlain("Session:   ✗ Not authenticated\n")
		return nil
	}

	r.writePlain("Session:   ✓ Authenticated as %s\n", state.User.Email)
	if tok := r.client.Token(); tok != nil && tok.AccessToken != "" {
		if exp, err := client.TokenExpiry(tok.AccessToken); err == nil {
			r.writePlain("Token:     expires %s (in %s)\n",
				exp.Local().Format(time.RFC1123), time.Until(exp).Round(time.Minute))
		}
	}
	return nil
}

// AuthWhoami prints the signed-in user.
func (r *Runner) AuthWhoami(ctx context.Context, cmd *cli.Command) error {
	user, err := r.requireSession(ctx)
	if err != nil {
		return err
	}

	if cmd.Bool("json") {
		return r.writeJSON(user, true)
	}

	r.writePlain("%s <%s>\n", user.Name(), user.Email)
	return r.writePlain("ID: %s\n", user.ID)
}

// AuthImportCurl adopts the cookies or bearer token of a browser request copied from DevTools.
//
// The imported credentials are validated against /auth/me before they are persisted.
func (r *Runner) AuthImportCurl(ctx context.Context, cmd *cli.Command) error {
	curlCmd := cmd.String("curl")
	curlFile := cmd.String("curl-file")

	if curlCmd == "" && curlFile == "" {
		return fmt.Errorf("%w: either --curl or --curl-file must be provided", shared.ErrMissingArgument)
	}

	if curlCmd != "" && curlFile != "" {
		return fmt.Errorf("%w: cannot specify both --curl and --curl-file", shared.ErrInvalidArgument)
	}

	r.logger.Info("parsing cURL command for session credentials")

	var curlHeaders *shared.CurlHeaders
	var err error

	if curlFile != "" {
		curlHeaders, err = shared.ParseCurlFile(curlFile)
		if err != nil {
			return fmt.Errorf("failed to parse cURL file: %w", err)
		}
		r.logger.Info("parsed cURL from file", "file", curlFile)
	} else {
		curlHeaders, err = shared.ParseCurlCommand(curlCmd)
		if err != nil {
			return fmt.Errorf("failed to parse cURL command: %w", err)
		}
		r.logger.Info("parsed cURL command")
	}

	cookies := curlHeaders.Cookies()
	token := curlHeaders.BearerToken()
	if len(cookies) == 0 && token == "" {
		return fmt.Errorf("%w: the cURL command carries neither cookies nor a bearer token", shared.ErrInvalidInput)
	}

	r.client.ClearCredentials()
	if len(cookies) > 0 {
		r.client.SetCookies(cookies)
	}
	if token != "" {
		r.client.SetToken(token, "Bearer")
	}
	r.logger.Debug("imported credentials", "cookies", len(cookies), "bearer", token != "")

	if err := r.session.Init(ctx); err != nil {
		return fmt.Errorf("%w: %v", shared.ErrServiceUnavailable, err)
	}

	state := r.session.State()
	if !state.IsAuthenticated {
		r.session.Logout()
		return fmt.Errorf("%w: the backend rejected the imported session", shared.ErrAuthFailed)
	}

	r.writePlain("✓ Session imported for %s\n", state.User.Email)
	if curlHeaders.URL != "" && !strings.HasPrefix(curlHeaders.URL, r.client.BaseURL()) {
		r.writePlain("Note: the cURL target %s differs from api.base_url %s\n", curlHeaders.URL, r.client.BaseURL())
	}
	return nil
}
