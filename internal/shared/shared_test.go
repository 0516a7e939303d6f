package shared

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNormalizeURL(t *testing.T) {
	tt := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{name: "adds https scheme", input: "example.com", want: "https://example.com"},
		{name: "keeps http scheme", input: "http://example.com/path", want: "http://example.com/path"},
		{name: "keeps uppercase scheme", input: "HTTPS://Example.com", want: "HTTPS://Example.com"},
		{name: "trims whitespace", input: "  example.com/a?b=1  ", want: "https://example.com/a?b=1"},
		{name: "empty", input: "   ", wantErr: true},
		{name: "no host", input: "https://", wantErr: true},
		{name: "bad escape", input: "example.com/%zz", wantErr: true},
	}

	for _, tc := range tt {
		t.Run(tc.name, func(t *testing.T) {
			got, err := NormalizeURL(tc.input)
			if tc.wantErr {
				assert.ErrorIs(t, err, ErrInvalidInput)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}
}

func TestExpandHome(t *testing.T) {
	home, err := os.UserHomeDir()
	require.NoError(t, err)

	assert.Equal(t, filepath.Join(home, ".perc/session.json"), ExpandHome("~/.perc/session.json"))
	assert.Equal(t, home, ExpandHome("~"))
	assert.Equal(t, "/etc/perc", ExpandHome("/etc/perc"))
	assert.Equal(t, "~other/x", ExpandHome("~other/x"))
}

func TestHelpers(t *testing.T) {
	t.Run("OpenLogFile Appends", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "logs", "tui.log")

		f, err := OpenLogFile(path)
		require.NoError(t, err)
		_, err = f.WriteString("first\n")
		require.NoError(t, err)
		require.NoError(t, f.Close())

		f, err = OpenLogFile(path)
		require.NoError(t, err)
		_, err = f.WriteString("second\n")
		require.NoError(t, err)
		require.NoError(t, f.Close())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		assert.Equal(t, "first\nsecond\n", string(data))
	})

	t.Run("GenerateID", func(t *testing.T) {
		id := GenerateID()
		_, err := uuid.Parse(id)
		assert.NoError(t, err)
		assert.NotEqual(t, id, GenerateID())
	})

	t.Run("MarshalJSON", func(t *testing.T) {
		data := map[string]int{"a": 1}

		compact, err := MarshalJSON(data, false)
		require.NoError(t, err)
		assert.Equal(t, `{"a":1}`, string(compact))

		pretty, err := MarshalJSON(data, true)
		require.NoError(t, err)
		assert.Equal(t, "{\n  \"a\": 1\n}", string(pretty))
	})

	t.Run("VerifyAndReadFile", func(t *testing.T) {
		dir := t.TempDir()
		path := filepath.Join(dir, "data.json")
		require.NoError(t, os.WriteFile(path, []byte(`{"ok":true}`), 0644))

		data, err := VerifyAndReadFile(path)
		require.NoError(t, err)
		assert.NoError(t, ValidateJSON(data))

		_, err = VerifyAndReadFile("")
		assert.ErrorIs(t, err, ErrMissingArgument)

		_, err = VerifyAndReadFile(dir)
		assert.ErrorIs(t, err, ErrInvalidInput)
	})

	t.Run("ValidateJSON", func(t *testing.T) {
		assert.ErrorIs(t, ValidateJSON([]byte("{nope")), ErrInvalidInput)
	})
}

func TestBrowserCommand(t *testing.T) {
	const link = "https://app.example.com/analysis/a-1"

	t.Run("Platform Launchers", func(t *testing.T) {
		tt := []struct {
			goos string
			args []string
		}{
			{"darwin", []string{"open", link}},
			{"linux", []string{"xdg-open", link}},
			{"freebsd", []string{"xdg-open", link}},
			{"windows", []string{"rundll32", "url.dll,FileProtocolHandler", link}},
		}

		for _, tc := range tt {
			t.Run(tc.goos, func(t *testing.T) {
				cmd, err := browserCommand(tc.goos, link)
				require.NoError(t, err)
				assert.Equal(t, tc.args, cmd.Args)
			})
		}
	})

	t.Run("Unsupported Platform", func(t *testing.T) {
		_, err := browserCommand("plan9", link)
		assert.ErrorIs(t, err, ErrNotImplemented)
	})

	t.Run("Rejects Non Web Links", func(t *testing.T) {
		for _, bad := range []string{"", "/etc/passwd", "file:///etc/passwd", "javascript:alert(1)", "https://"} {
			_, err := browserCommand("linux", bad)
			assert.ErrorIs(t, err, ErrInvalidInput, bad)
		}
	})
}
