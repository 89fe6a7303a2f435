package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/courier-mail/courier/smtp"
	"github.com/courier-mail/courier/transport"
	"github.com/stretchr/testify/require"
)

const testConfig = `
ret_msg_count = 10
pop_max_lines = -1
display_format = "html"
stall_timeout = "30s"

[[account]]
name = "work"
email = "me@example.com"

  [account.pop]
  host = "pop.example.com"
  security = "SSL"
  username = "me"
  password = "secret"

  [account.smtp]
  host = "smtp.example.com"
  security = "starttls"
  auth = "CRAM-MD5"
  username = "me"
  password = "secret"
  domain = "client.example.com"
`

func TestDefault(t *testing.T) {
	cfg := Default()

	require.NoError(t, cfg.Validate())
	require.Equal(t, 30, cfg.RetMsgCount)
	require.Equal(t, 500, cfg.PopMaxLines)
	require.Equal(t, "plain", cfg.DisplayFormat)

	timeout, err := cfg.GetStallTimeout()
	require.NoError(t, err)
	require.Equal(t, 60*time.Second, timeout)
}

func TestDecode(t *testing.T) {
	cfg, err := Decode(testConfig)
	require.NoError(t, err)

	require.Equal(t, 10, cfg.RetMsgCount)
	require.Equal(t, -1, cfg.PopMaxLines)
	require.Equal(t, "html", cfg.DisplayFormat)

	account, ok := cfg.Account("work")
	require.True(t, ok)

	require.Equal(t, "ssl", account.POP.Security)
	require.Equal(t, 995, account.POP.Port)
	require.Equal(t, 587, account.SMTP.Port)
	require.Equal(t, "cram-md5", account.SMTP.Auth)

	pop := cfg.POPConfig(account)
	require.Equal(t, transport.SecuritySSL, pop.Security)
	require.Equal(t, 30*time.Second, pop.StallTimeout)
	require.Equal(t, -1, pop.PopMaxLines)

	out := cfg.SMTPConfig(account)
	require.Equal(t, smtp.AuthCRAMMD5, out.Auth)
	require.Equal(t, "client.example.com", out.Domain)

	opts := account.SMTP.Transport()
	require.Equal(t, "smtp.example.com:587", opts.Addr())

	_, ok = cfg.Account("home")
	require.False(t, ok)
}

func TestDecodeDefaultsServerSettings(t *testing.T) {
	cfg, err := Decode(`
[[account]]
name = "home"
  [account.smtp]
  host = "mail.example.com"
`)
	require.NoError(t, err)

	account, ok := cfg.Account("home")
	require.True(t, ok)
	require.Nil(t, account.POP)
	require.Equal(t, "none", account.SMTP.Security)
	require.Equal(t, "auto", account.SMTP.Auth)
	require.Equal(t, 587, account.SMTP.Port)
}

func TestServerStringHidesPassword(t *testing.T) {
	server := Server{Host: "pop.example.com", Port: 110, Security: "none", Username: "me", Password: "secret"}

	require.NotContains(t, server.String(), "secret")
}

func TestDecodeInvalid(t *testing.T) {
	tests := []struct {
		name   string
		config string
		err    error
	}{
		{
			name:   "format",
			config: `display_format = "rtf"`,
			err:    ErrInvalidFormat,
		},
		{
			name:   "count",
			config: `ret_msg_count = 0`,
			err:    ErrInvalidRetMsgCount,
		},
		{
			name:   "no name",
			config: "[[account]]\n[account.pop]\nhost = \"h\"",
			err:    ErrNoAccountName,
		},
		{
			name:   "no server",
			config: "[[account]]\nname = \"a\"",
			err:    ErrNoServer,
		},
		{
			name:   "duplicate",
			config: "[[account]]\nname = \"a\"\n[account.pop]\nhost = \"h\"\n[[account]]\nname = \"a\"\n[account.pop]\nhost = \"h\"",
			err:    ErrDuplicateAccount,
		},
		{
			name:   "security",
			config: "[[account]]\nname = \"a\"\n[account.pop]\nhost = \"h\"\nsecurity = \"tls13\"",
			err:    ErrInvalidSecurity,
		},
		{
			name:   "auth",
			config: "[[account]]\nname = \"a\"\n[account.smtp]\nhost = \"h\"\nauth = \"gssapi\"",
			err:    ErrInvalidAuth,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Decode(tc.config)
			require.ErrorIs(t, err, tc.err)
		})
	}
}

func TestDecodeRejectsUnknownKeys(t *testing.T) {
	_, err := Decode(`retmsgcount = 3`)
	require.Error(t, err)
}

func TestDecodeRejectsBadTimeout(t *testing.T) {
	_, err := Decode(`stall_timeout = "soon"`)
	require.Error(t, err)
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "courier.toml")
	require.NoError(t, os.WriteFile(path, []byte(testConfig), 0o600))

	cfg, err := Load(path)
	require.NoError(t, err)
	require.Len(t, cfg.Accounts, 1)

	_, err = Load(filepath.Join(t.TempDir(), "missing.toml"))
	require.Error(t, err)
}
