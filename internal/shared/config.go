package shared

import (
	_ "embed"
	"fmt"
	"os"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"
)

//go:embed config.example.toml
var exampleConf []byte

// Config represents the application configuration loaded from a TOML file.
type Config struct {
	Credentials CredentialsConfig `toml:"credentials"`
	Store       StoreConfig       `toml:"store"`
	Server      ServerConfig      `toml:"server"`
	Rates       RatesConfig       `toml:"rates"`
}

// CredentialsConfig contains service-specific credentials.
type CredentialsConfig struct {
	Spotify SpotifyConfig `toml:"spotify"`
	YouTube YouTubeConfig `toml:"youtube"`
}

// SpotifyConfig contains Spotify API credentials.
type SpotifyConfig struct {
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
}

// YouTubeConfig contains YouTube Data API credentials.
type YouTubeConfig struct {
	APIKey       string `toml:"api_key"`
	ClientID     string `toml:"client_id"`
	ClientSecret string `toml:"client_secret"`
	RedirectURI  string `toml:"redirect_uri"`
}

// StoreConfig contains session store settings.
//
// ProgressTTL bounds how long live progress snapshots survive; ResultTTL
// bounds the full conversion result and must outlive ProgressTTL so the
// result survives the "view results" round-trip after progress closes.
type StoreConfig struct {
	Path               string `toml:"path"`
	ProgressTTLSeconds int    `toml:"progress_ttl_seconds"`
	ResultTTLSeconds   int    `toml:"result_ttl_seconds"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Host string `toml:"host"`
	Port int    `toml:"port"`
}

// RatesConfig contains per-platform request pacing budgets in requests per second.
type RatesConfig struct {
	Spotify float64 `toml:"spotify"`
	YouTube float64 `toml:"youtube"`
}

// LoadConfig reads and parses a TOML configuration file from the specified path.
//
// A .env file in the working directory, if present, is loaded first so that
// environment credentials can fill fields the TOML file leaves empty.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMissingConfig, err)
	}

	var config Config
	if err := toml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}

	config.applyEnv()
	return &config, nil
}

// DefaultConfig returns a Config with sensible defaults loaded from the embedded example config.
func DefaultConfig() *Config {
	var config Config
	if err := toml.Unmarshal(exampleConf, &config); err != nil {
		panic(fmt.Sprintf("failed to parse embedded default config: %v", err))
	}
	config.applyEnv()
	return &config
}

// CreateConfigFile creates a config.toml file at the specified path using the embedded example config.
func CreateConfigFile(path string) error {
	if _, err := os.Stat(path); err == nil {
		return fmt.Errorf("config file already exists at %s", path)
	}

	if err := os.WriteFile(path, exampleConf, 0644); err != nil {
		return fmt.Errorf("failed to write config file: %w", err)
	}

	return nil
}

// applyEnv fills empty credential fields from the environment.
func (c *Config) applyEnv() {
	setIfEmpty(&c.Credentials.Spotify.ClientID, "SPOTIFY_CLIENT_ID")
	setIfEmpty(&c.Credentials.Spotify.ClientSecret, "SPOTIFY_CLIENT_SECRET")
	setIfEmpty(&c.Credentials.YouTube.APIKey, "YOUTUBE_API_KEY")
	setIfEmpty(&c.Credentials.YouTube.ClientID, "YOUTUBE_CLIENT_ID")
	setIfEmpty(&c.Credentials.YouTube.ClientSecret, "YOUTUBE_CLIENT_SECRET")
}

func setIfEmpty(field *string, key string) {
	if *field == "" {
		if v := os.Getenv(key); v != "" {
			*field = v
		}
	}
}
