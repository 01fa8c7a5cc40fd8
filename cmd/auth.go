package main

import (
	"context"
	"fmt"
	"net/url"
	"time"

	"github.com/crosstune/crosstune/internal/server"
	"github.com/crosstune/crosstune/internal/services"
	"github.com/crosstune/crosstune/internal/shared"
	"github.com/crosstune/crosstune/internal/transport"
	"github.com/urfave/cli/v3"
	"golang.org/x/oauth2"
)

const loginTimeout = 3 * time.Minute

// AuthLogin runs the OAuth2 authorization-code flow for a platform: opens
// the consent page, catches the localhost callback, and saves the tokens.
func (r *Runner) AuthLogin(ctx context.Context, cmd *cli.Command) error {
	platform := cmd.StringArg("platform")

	var oauthCfg *oauth2.Config
	switch platform {
	case services.PlatformSpotify:
		oauthCfg = services.NewSpotifyOAuthConfig(r.config.Credentials.Spotify)
	case services.PlatformYouTube:
		oauthCfg = services.NewYouTubeOAuthConfig(r.config.Credentials.YouTube)
	default:
		return fmt.Errorf("%w: login supports spotify and youtube, got %q", shared.ErrUnknownPlatform, platform)
	}

	if oauthCfg.ClientID == "" || oauthCfg.ClientSecret == "" {
		return fmt.Errorf("%w: %s client credentials not configured", shared.ErrMissingCredentials, platform)
	}

	redirect, err := url.Parse(oauthCfg.RedirectURL)
	if err != nil || redirect.Host == "" {
		return fmt.Errorf("%w: invalid redirect uri %q", shared.ErrInvalidConfig, oauthCfg.RedirectURL)
	}

	state := shared.GenerateID()
	authURL := oauthCfg.AuthCodeURL(state, oauth2.AccessTypeOffline)

	r.writePlain("Opening browser for %s authorization...\n", platform)
	r.writePlain("If it does not open, visit:\n%s\n\n", authURL)
	if err := shared.OpenBrowser(authURL); err != nil {
		r.logger.Warn("failed to open browser", "err", err)
	}

	handler := server.NewCallbackHandler(oauthCfg, state)
	token, err := server.RunCallbackServer(ctx, redirect.Host, handler, loginTimeout)
	if err != nil {
		return err
	}

	saved := transport.Tokens{
		Access:  token.AccessToken,
		Refresh: token.RefreshToken,
		Expiry:  token.Expiry,
	}
	if err := r.sessions.SaveTokens(platform, saved); err != nil {
		return fmt.Errorf("failed to save tokens: %w", err)
	}

	r.logger.Info("tokens saved", "platform", platform, "expiry", token.Expiry)
	return r.writePlain("✓ %s account linked\n", platform)
}

// AuthStatus reports which platforms have saved tokens and whether they are
// still fresh.
func (r *Runner) AuthStatus(ctx context.Context, cmd *cli.Command) error {
	for _, platform := range []string{services.PlatformSpotify, services.PlatformYouTube} {
		tokens, err := r.sessions.Tokens(platform)
		switch {
		case err != nil:
			r.writePlain("%s: ✗ not linked\n", platform)
		case !tokens.Expiry.IsZero() && tokens.Expiry.Before(time.Now()) && tokens.Refresh == "":
			r.writePlain("%s: ✗ expired\n", platform)
		default:
			r.writePlain("%s: ✓ linked\n", platform)
		}
	}
	return nil
}
