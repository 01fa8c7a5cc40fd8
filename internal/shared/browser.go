package shared

import (
	"fmt"
	"os/exec"
	"runtime"
)

// browserCommand picks the platform launcher for the given URL. Split out
// from [OpenBrowser] so the per-OS mapping can be checked without
// spawning anything.
func browserCommand(goos, url string) (*exec.Cmd, error) {
	switch goos {
	case "darwin":
		return exec.Command("open", url), nil
	case "linux":
		return exec.Command("xdg-open", url), nil
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", url), nil
	default:
		return nil, fmt.Errorf("no browser launcher for %s", goos)
	}
}

// OpenBrowser launches the default browser at url and returns without
// waiting for it. Used to hand the user off to a platform's consent page
// during authorization.
func OpenBrowser(url string) error {
	cmd, err := browserCommand(runtime.GOOS, url)
	if err != nil {
		return err
	}

	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to open browser: %w", err)
	}

	return nil
}
