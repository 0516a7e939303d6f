package shared

import (
	"fmt"
	"net/url"
	"os/exec"
	"runtime"
)

// browserCommand builds the launcher for link on the given GOOS. Only absolute http(s) links are accepted.
func browserCommand(goos, link string) (*exec.Cmd, error) {
	u, err := url.Parse(link)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return nil, fmt.Errorf("%w: not a dashboard link: %q", ErrInvalidInput, link)
	}

	switch goos {
	case "darwin":
		return exec.Command("open", link), nil
	case "linux", "freebsd", "openbsd", "netbsd":
		return exec.Command("xdg-open", link), nil
	case "windows":
		return exec.Command("rundll32", "url.dll,FileProtocolHandler", link), nil
	default:
		return nil, fmt.Errorf("%w: no browser launcher for %s", ErrNotImplemented, goos)
	}
}

// OpenBrowser opens an analysis dashboard link in the default browser without waiting for it.
func OpenBrowser(link string) error {
	cmd, err := browserCommand(runtime.GOOS, link)
	if err != nil {
		return err
	}
	if err := cmd.Start(); err != nil {
		return fmt.Errorf("failed to launch browser for %s: %w", link, err)
	}
	// Reap the launcher process.
	go cmd.Wait()
	return nil
}
