package shared

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseCurlCommand(t *testing.T) {
	tt := []struct {
		name        string
		curlCmd     string
		wantHeaders map[string]string
		wantCookie  string
		wantURL     string
		wantErr     bool
	}{
		{
			name:        "single header with single quotes",
			curlCmd:     `curl -H 'Authorization: Bearer token123' https://api.example.com`,
			wantHeaders: map[string]string{"Authorization": "Bearer token123"},
			wantURL:     "https://api.example.com",
		},
		{
			name:        "single header with double quotes",
			curlCmd:     `curl -H "Authorization: Bearer token123" https://api.example.com`,
			wantHeaders: map[string]string{"Authorization": "Bearer token123"},
			wantURL:     "https://api.example.com",
		},
		{
			name:        "cookie in -b flag",
			curlCmd:     `curl -b 'session=abc123' https://api.example.com`,
			wantHeaders: map[string]string{},
			wantCookie:  "session=abc123",
			wantURL:     "https://api.example.com",
		},
		{
			name:        "cookie header is excluded from regular headers",
			curlCmd:     `curl -H 'Cookie: session=abc123' -H 'Authorization: Bearer token' https://api.example.com`,
			wantHeaders: map[string]string{"Authorization": "Bearer token"},
			wantCookie:  "session=abc123",
			wantURL:     "https://api.example.com",
		},
		{
			name:        "-b cookie takes precedence over -H cookie",
			curlCmd:     `curl -H 'Cookie: old=value' -b 'new=value' https://api.example.com`,
			wantHeaders: map[string]string{},
			wantCookie:  "new=value",
			wantURL:     "https://api.example.com",
		},
		{
			name: "devtools copy with quoted url",
			curlCmd: `curl 'http://localhost:8000/auth/me' \
  -H 'accept: */*' \
  -H 'cookie: sb-access-token=abc; sb-refresh-token=def'`,
			wantHeaders: map[string]string{"accept": "*/*"},
			wantCookie:  "sb-access-token=abc; sb-refresh-token=def",
			wantURL:     "http://localhost:8000/auth/me",
		},
		{
			name:    "no headers or cookies",
			curlCmd: `curl https://api.example.com`,
			wantErr: true,
		},
		{
			name:    "empty command",
			curlCmd: "",
			wantErr: true,
		},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			result, err := ParseCurlCommand(tc.curlCmd)
			if tc.wantErr {
				require.ErrorIs(t, err, ErrInvalidInput)
				return
			}

			require.NoError(t, err)
			assert.Equal(t, tc.wantHeaders, result.Headers)
			assert.Equal(t, tc.wantCookie, result.Cookie)
			assert.Equal(t, tc.wantURL, result.URL)
		})
	}
}

func TestCurlHeaders(t *testing.T) {
	t.Run("Cookies", func(t *testing.T) {
		h := &CurlHeaders{Cookie: "session=abc; csrf=xyz"}
		cookies := h.Cookies()

		require.Len(t, cookies, 2)
		assert.Equal(t, "session", cookies[0].Name)
		assert.Equal(t, "abc", cookies[0].Value)
		assert.Equal(t, "csrf", cookies[1].Name)
	})

	t.Run("Cookies Empty", func(t *testing.T) {
		assert.Nil(t, (&CurlHeaders{}).Cookies())
	})

	t.Run("BearerToken", func(t *testing.T) {
		h := &CurlHeaders{Headers: map[string]string{"authorization": "bearer tok-1"}}
		assert.Equal(t, "tok-1", h.BearerToken())
	})

	t.Run("BearerToken Other Scheme", func(t *testing.T) {
		h := &CurlHeaders{Headers: map[string]string{"Authorization": "Basic dXNlcg=="}}
		assert.Empty(t, h.BearerToken())
	})
}

func TestParseCurlFile(t *testing.T) {
	t.Run("successful file parse", func(t *testing.T) {
		curlFile := filepath.Join(t.TempDir(), "curl.sh")
		curlCmd := `curl -H 'Authorization: Bearer token123' -H 'Content-Type: application/json' https://api.example.com`
		require.NoError(t, os.WriteFile(curlFile, []byte(curlCmd), 0644))

		result, err := ParseCurlFile(curlFile)
		require.NoError(t, err)
		assert.Len(t, result.Headers, 2)
		assert.Equal(t, "token123", result.BearerToken())
	})

	t.Run("file does not exist", func(t *testing.T) {
		_, err := ParseCurlFile("/nonexistent/file.sh")
		assert.Error(t, err)
	})
}
