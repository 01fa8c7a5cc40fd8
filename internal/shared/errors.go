package shared

import "fmt"

var (
	// Configuration errors
	ErrMissingConfig      = fmt.Errorf("configuration not found")
	ErrInvalidConfig      = fmt.Errorf("invalid configuration")
	ErrMissingCredentials = fmt.Errorf("missing credentials")

	// Authentication errors. ErrAuthExpired is fatal for a conversion run:
	// a 401 with no usable refresh token, or a refresh that itself failed.
	ErrAuthExpired      = fmt.Errorf("authentication expired")
	ErrNotAuthenticated = fmt.Errorf("not authenticated")

	// API and pipeline errors
	ErrAPIRequest       = fmt.Errorf("API request failed")
	ErrDestinationWrite = fmt.Errorf("destination write failed")
	ErrPlaylistNotFound = fmt.Errorf("playlist not found")

	// Input validation errors
	ErrInvalidLink     = fmt.Errorf("invalid or unsupported link")
	ErrUnknownPlatform = fmt.Errorf("unknown platform")
	ErrMissingArgument = fmt.Errorf("missing required argument")

	// Session store errors
	ErrSessionNotFound = fmt.Errorf("session not found or expired")
)
