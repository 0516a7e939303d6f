// Utilities for importing a browser session from a "Copy as cURL" command.
package shared

import (
	"fmt"
	"net/http"
	"os"
	"regexp"
	"strings"
)

var (
	curlHeaderRegex = regexp.MustCompile(`-H\s+'([^']+)'|-H\s+"([^"]+)"`)
	curlCookieRegex = regexp.MustCompile(`-b\s+'([^']+)'|-b\s+"([^"]+)"|--cookie\s+'([^']+)'|--cookie\s+"([^"]+)"`)
	curlURLRegex    = regexp.MustCompile(`curl\s+'(https?://[^']+)'|curl\s+"(https?://[^"]+)"|\s(https?://\S+)`)
)

// CurlHeaders represents headers, cookies, and the target URL parsed from a cURL command.
type CurlHeaders struct {
	URL     string
	Headers map[string]string
	Cookie  string
}

// ParseCurlFile reads a .sh file containing a cURL command and extracts headers.
func ParseCurlFile(path string) (*CurlHeaders, error) {
	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read curl file: %w", err)
	}

	return ParseCurlCommand(string(content))
}

// ParseCurlCommand parses a cURL command string and extracts headers.
//
// A cookie passed with -b/--cookie wins over a "Cookie:" header. The cookie is never kept in Headers.
func ParseCurlCommand(curlCmd string) (*CurlHeaders, error) {
	curlCmd = strings.ReplaceAll(curlCmd, "\\\n", " ")
	curlCmd = strings.ReplaceAll(curlCmd, "\\", "")

	result := &CurlHeaders{Headers: make(map[string]string)}
	var headerCookie string

	for _, match := range curlHeaderRegex.FindAllStringSubmatch(curlCmd, -1) {
		key, value, ok := strings.Cut(firstGroup(match), ":")
		if !ok {
			continue
		}
		key, value = strings.TrimSpace(key), strings.TrimSpace(value)

		if strings.EqualFold(key, "cookie") {
			if headerCookie == "" {
				headerCookie = value
			}
			continue
		}
		result.Headers[key] = value
	}

	if m := curlCookieRegex.FindStringSubmatch(curlCmd); m != nil {
		result.Cookie = firstGroup(m)
	} else {
		result.Cookie = headerCookie
	}

	if m := curlURLRegex.FindStringSubmatch(curlCmd); m != nil {
		result.URL = firstGroup(m)
	}

	if len(result.Headers) == 0 && result.Cookie == "" {
		return nil, fmt.Errorf("%w: no headers found in curl command", ErrInvalidInput)
	}

	return result, nil
}

// Cookies parses the cookie string into [http.Cookie] values.
func (c *CurlHeaders) Cookies() []*http.Cookie {
	if c.Cookie == "" {
		return nil
	}
	cookies, err := http.ParseCookie(c.Cookie)
	if err != nil {
		return nil
	}
	return cookies
}

// BearerToken returns the token from an "Authorization: Bearer" header, matching the header name case-insensitively.
func (c *CurlHeaders) BearerToken() string {
	for key, value := range c.Headers {
		if !strings.EqualFold(key, "authorization") {
			continue
		}
		scheme, token, ok := strings.Cut(value, " ")
		if ok && strings.EqualFold(scheme, "bearer") {
			return strings.TrimSpace(token)
		}
	}
	return ""
}

func firstGroup(match []string) string {
	for _, g := range match[1:] {
		if g != "" {
			return g
		}
	}
	return ""
}
