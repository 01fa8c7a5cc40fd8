package services

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/crosstune/crosstune/internal/shared"
)

// Platform names accepted on the wire and in CLI flags.
const (
	PlatformSpotify    = "spotify"
	PlatformYouTube    = "youtube"
	PlatformAppleMusic = "applemusic"
	PlatformDeezer     = "deezer"
)

// DetectPlatform maps a link's host to a platform name. Detection is
// fail-fast: an unrecognized host is rejected before any network call.
func DetectPlatform(link string) (string, error) {
	u, err := url.Parse(link)
	if err != nil || u.Host == "" {
		return "", fmt.Errorf("%w: %s", shared.ErrInvalidLink, link)
	}

	host := strings.TrimPrefix(strings.ToLower(u.Host), "www.")
	switch {
	case host == "open.spotify.com":
		return PlatformSpotify, nil
	case host == "youtu.be", host == "youtube.com", host == "music.youtube.com":
		return PlatformYouTube, nil
	case host == "music.apple.com":
		return PlatformAppleMusic, nil
	case host == "deezer.com" || strings.HasSuffix(host, ".deezer.com"):
		return PlatformDeezer, nil
	default:
		return "", fmt.Errorf("%w: %s", shared.ErrUnknownPlatform, host)
	}
}

// Registry holds the configured platform adapters and routes links and
// platform names to them.
type Registry struct {
	resolvers map[string]Resolver
	targets   map[string]Target
}

func NewRegistry() *Registry {
	return &Registry{
		resolvers: make(map[string]Resolver),
		targets:   make(map[string]Target),
	}
}

// AddResolver registers a source adapter under its platform name.
func (r *Registry) AddResolver(res Resolver) {
	r.resolvers[res.Name()] = res
}

// AddTarget registers a destination adapter under its platform name.
func (r *Registry) AddTarget(t Target) {
	r.targets[t.Name()] = t
}

// ResolverFor routes a link to the adapter for its platform.
func (r *Registry) ResolverFor(link string) (Resolver, error) {
	platform, err := DetectPlatform(link)
	if err != nil {
		return nil, err
	}

	res, ok := r.resolvers[platform]
	if !ok {
		return nil, fmt.Errorf("%w: no resolver for %s", shared.ErrUnknownPlatform, platform)
	}
	return res, nil
}

// TargetFor looks up a destination adapter by platform name.
func (r *Registry) TargetFor(platform string) (Target, error) {
	t, ok := r.targets[strings.ToLower(platform)]
	if !ok {
		return nil, fmt.Errorf("%w: no destination support for %q", shared.ErrUnknownPlatform, platform)
	}
	return t, nil
}

// Targets lists the registered destination platform names.
func (r *Registry) Targets() []string {
	names := make([]string, 0, len(r.targets))
	for name := range r.targets {
		names = append(names, name)
	}
	return names
}
