// Package config loads engine and account settings from TOML.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/courier-mail/courier/message"
	"github.com/courier-mail/courier/pop3"
	"github.com/courier-mail/courier/smtp"
	"github.com/courier-mail/courier/transport"
)

var (
	ErrNoAccountName      = errors.New("account has no name")
	ErrDuplicateAccount   = errors.New("duplicate account name")
	ErrNoServer           = errors.New("account has neither pop nor smtp server")
	ErrInvalidSecurity    = errors.New("invalid security mode")
	ErrInvalidAuth        = errors.New("invalid smtp auth mechanism")
	ErrInvalidFormat      = errors.New("invalid display format")
	ErrInvalidRetMsgCount = errors.New("ret_msg_count must be positive")
)

type Config struct {
	// RetMsgCount is how many of the newest messages a recent-messages request retrieves.
	RetMsgCount int `toml:"ret_msg_count"`

	// PopMaxLines limits the body lines fetched per message; negative fetches whole messages.
	PopMaxLines int `toml:"pop_max_lines"`

	// DisplayFormat is "plain" or "html".
	DisplayFormat string `toml:"display_format"`

	// StallTimeout is a duration string such as "60s".
	StallTimeout string `toml:"stall_timeout"`

	// DataDir holds the content cache; empty keeps the cache in memory.
	DataDir string `toml:"data_dir"`

	Accounts []Account `toml:"account"`
}

type Account struct {
	Name  string `toml:"name"`
	Email string `toml:"email"`

	POP  *Server `toml:"pop"`
	SMTP *Server `toml:"smtp"`
}

type Server struct {
	Host     string `toml:"host"`
	Port     int    `toml:"port"`
	Security string `toml:"security"`
	Username string `toml:"username"`
	Password string `toml:"password"`

	// Auth and Domain only apply to SMTP servers.
	Auth   string `toml:"auth"`
	Domain string `toml:"domain"`
}

// Default returns a configuration with global defaults and no accounts.
func Default() *Config {
	return &Config{
		RetMsgCount:   pop3.DefaultRetMsgCount,
		PopMaxLines:   pop3.DefaultPopMaxLines,
		DisplayFormat: string(message.DisplayPlain),
		StallTimeout:  pop3.DefaultStallTimeout.String(),
	}
}

// Load reads the TOML file at path over the defaults and validates the result.
func Load(path string) (*Config, error) {
	cfg := Default()

	md, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to load config file %s: %w", path, err)
	}

	if err := cfg.check(md); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Decode parses TOML from data over the defaults and validates the result.
func Decode(data string) (*Config, error) {
	cfg := Default()

	md, err := toml.Decode(data, cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}

	if err := cfg.check(md); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (cfg *Config) check(md toml.MetaData) error {
	if undecoded := md.Undecoded(); len(undecoded) > 0 {
		return fmt.Errorf("unknown config keys: %v", undecoded)
	}

	return cfg.Validate()
}

// Validate checks the settings and fills in per-server defaults such as ports.
func (cfg *Config) Validate() error {
	if cfg.RetMsgCount <= 0 {
		return ErrInvalidRetMsgCount
	}

	switch message.DisplayFormat(cfg.DisplayFormat) {
	case message.DisplayPlain, message.DisplayHTML:
	default:
		return fmt.Errorf("%w: %q", ErrInvalidFormat, cfg.DisplayFormat)
	}

	if _, err := cfg.GetStallTimeout(); err != nil {
		return err
	}

	names := make(map[string]struct{})

	for i := range cfg.Accounts {
		account := &cfg.Accounts[i]

		if account.Name == "" {
			return ErrNoAccountName
		}

		if _, ok := names[account.Name]; ok {
			return fmt.Errorf("%w: %v", ErrDuplicateAccount, account.Name)
		}

		names[account.Name] = struct{}{}

		if account.POP == nil && account.SMTP == nil {
			return fmt.Errorf("%w: %v", ErrNoServer, account.Name)
		}

		if account.POP != nil {
			if err := account.POP.validate(110, 995); err != nil {
				return fmt.Errorf("account %v: pop: %w", account.Name, err)
			}
		}

		if account.SMTP != nil {
			if err := account.SMTP.validate(587, 465); err != nil {
				return fmt.Errorf("account %v: smtp: %w", account.Name, err)
			}

			if err := account.SMTP.validateAuth(); err != nil {
				return fmt.Errorf("account %v: smtp: %w", account.Name, err)
			}
		}
	}

	return nil
}

// GetStallTimeout parses StallTimeout, falling back to the default when unset.
func (cfg *Config) GetStallTimeout() (time.Duration, error) {
	if cfg.StallTimeout == "" {
		return pop3.DefaultStallTimeout, nil
	}

	timeout, err := time.ParseDuration(cfg.StallTimeout)
	if err != nil {
		return 0, fmt.Errorf("invalid stall_timeout: %w", err)
	}

	if timeout <= 0 {
		return 0, fmt.Errorf("invalid stall_timeout: %v", cfg.StallTimeout)
	}

	return timeout, nil
}

// Account returns the account with the given name.
func (cfg *Config) Account(name string) (Account, bool) {
	for _, account := range cfg.Accounts {
		if account.Name == name {
			return account, true
		}
	}

	return Account{}, false
}

// POPConfig returns the POP client settings of the account.
func (cfg *Config) POPConfig(account Account) pop3.Config {
	timeout, _ := cfg.GetStallTimeout()

	return pop3.Config{
		Username:     account.POP.Username,
		Password:     account.POP.Password,
		Security:     transport.Security(account.POP.Security),
		RetMsgCount:  cfg.RetMsgCount,
		PopMaxLines:  cfg.PopMaxLines,
		StallTimeout: timeout,
	}
}

// SMTPConfig returns the SMTP client settings of the account.
func (cfg *Config) SMTPConfig(account Account) smtp.Config {
	timeout, _ := cfg.GetStallTimeout()

	return smtp.Config{
		Username:     account.SMTP.Username,
		Password:     account.SMTP.Password,
		Domain:       account.SMTP.Domain,
		Security:     transport.Security(account.SMTP.Security),
		Auth:         smtp.AuthMechanism(account.SMTP.Auth),
		StallTimeout: timeout,
	}
}

// Transport returns the connection settings of the server.
func (server *Server) Transport() transport.Options {
	return transport.Options{
		Host:     server.Host,
		Port:     server.Port,
		Security: transport.Security(server.Security),
	}
}

// String renders the server without its password.
func (server *Server) String() string {
	return fmt.Sprintf("%v@%v:%v (%v)", server.Username, server.Host, server.Port, server.Security)
}

func (server *Server) validate(plainPort, sslPort int) error {
	if server.Host == "" {
		return errors.New("missing host")
	}

	server.Security = strings.ToLower(server.Security)

	switch transport.Security(server.Security) {
	case "":
		server.Security = string(transport.SecurityNone)

	case transport.SecurityNone, transport.SecuritySSL, transport.SecurityStartTLS:

	default:
		return fmt.Errorf("%w: %q", ErrInvalidSecurity, server.Security)
	}

	if server.Port == 0 {
		if transport.Security(server.Security) == transport.SecuritySSL {
			server.Port = sslPort
		} else {
			server.Port = plainPort
		}
	}

	return nil
}

func (server *Server) validateAuth() error {
	server.Auth = strings.ToLower(server.Auth)

	switch smtp.AuthMechanism(server.Auth) {
	case "":
		server.Auth = string(smtp.AuthAuto)

	case smtp.AuthNone, smtp.AuthPlain, smtp.AuthLogin, smtp.AuthCRAMMD5, smtp.AuthAuto:

	default:
		return fmt.Errorf("%w: %q", ErrInvalidAuth, server.Auth)
	}

	return nil
}
