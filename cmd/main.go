package main

import (
	"context"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/crosstune/crosstune/internal/services"
	"github.com/crosstune/crosstune/internal/shared"
	"github.com/crosstune/crosstune/internal/store"
	"github.com/crosstune/crosstune/internal/transport"
	"github.com/urfave/cli/v3"
)

func main() {
	logger := shared.NewLogger(nil)

	config := shared.DefaultConfig()
	if _, err := os.Stat("config.toml"); err == nil {
		if loadedConfig, err := shared.LoadConfig("config.toml"); err == nil {
			config = loadedConfig
		} else {
			logger.Warn("failed to load config.toml, using defaults", "err", err)
		}
	}

	sessions, err := store.Open(
		config.Store.Path,
		time.Duration(config.Store.ProgressTTLSeconds)*time.Second,
		time.Duration(config.Store.ResultTTLSeconds)*time.Second,
	)
	if err != nil {
		logger.Fatalf("failed to open session store: %v", err)
	}
	defer sessions.Close()

	httpClient := &http.Client{Timeout: 30 * time.Second}

	registry := services.NewRegistry()

	spotifyLogger := shared.WithLogger(logger, "platform", "spotify")
	spotifyClient := transport.New(
		httpClient,
		config.Rates.Spotify,
		services.NewSpotifyOAuthConfig(config.Credentials.Spotify),
		spotifyLogger,
	)
	spotify := services.NewSpotifyService(spotifyClient, sessions, spotifyLogger)
	registry.AddResolver(spotify)
	registry.AddTarget(spotify)

	youtube := services.NewYouTubeService(config.Credentials.YouTube, sessions, config.Rates.YouTube,
		shared.WithLogger(logger, "platform", "youtube"))
	registry.AddResolver(youtube)
	registry.AddTarget(youtube)

	var headers *shared.BrowserHeaders
	if home, err := os.UserHomeDir(); err == nil {
		if loaded, err := shared.LoadHeaders(filepath.Join(home, ".crosstune", "headers.json")); err == nil {
			headers = loaded
		}
	}
	registry.AddResolver(services.NewAppleMusicService(httpClient, headers, shared.WithLogger(logger, "platform", "applemusic")))
	registry.AddResolver(services.NewDeezerService(httpClient, shared.WithLogger(logger, "platform", "deezer")))

	runner := NewRunner(RunnerOpts{
		Config:     config,
		Sessions:   sessions,
		Registry:   registry,
		HTTPClient: httpClient,
		Logger:     logger,
	})

	app := &cli.Command{
		Name:     "crosstune",
		Usage:    "Convert tracks & playlists between music platforms",
		Version:  "0.3.0",
		Commands: runner.register(),
	}

	if err := app.Run(context.Background(), os.Args); err != nil {
		logger.Fatalf("application error: %v", err)
	}
}
