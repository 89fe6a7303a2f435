package smtp

import (
	"crypto/hmac"
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"strings"

	"github.com/emersion/go-sasl"
)

type AuthMechanism string

const (
	AuthNone    AuthMechanism = "none"
	AuthPlain   AuthMechanism = "plain"
	AuthLogin   AuthMechanism = "login"
	AuthCRAMMD5 AuthMechanism = "cram-md5"

	// AuthAuto picks the best mechanism the server advertises.
	AuthAuto AuthMechanism = "auto"
)

// preference lists mechanisms from most to least preferred, with their EHLO names.
var preference = []struct {
	mech AuthMechanism
	name string
}{
	{AuthCRAMMD5, "CRAM-MD5"},
	{AuthPlain, "PLAIN"},
	{AuthLogin, "LOGIN"},
}

// HMACMD5 computes the RFC 2104 HMAC of data with MD5.
func HMACMD5(key, data []byte) []byte {
	mac := hmac.New(md5.New, key)
	mac.Write(data)

	return mac.Sum(nil)
}

type cramMD5Client struct {
	username string
	password string
}

// CRAMMD5Client answers the server nonce with the username and the hex HMAC-MD5 of the nonce keyed by the password.
func CRAMMD5Client(username, password string) sasl.Client {
	return &cramMD5Client{username: username, password: password}
}

func (c *cramMD5Client) Start() (string, []byte, error) {
	return "CRAM-MD5", nil, nil
}

func (c *cramMD5Client) Next(challenge []byte) ([]byte, error) {
	digest := HMACMD5([]byte(c.password), challenge)

	return []byte(c.username + " " + hex.EncodeToString(digest)), nil
}

type loginClient struct {
	username string
	password string
	step     int
}

// LoginClient sends the username and then the password, each in answer to a server prompt.
func LoginClient(username, password string) sasl.Client {
	return &loginClient{username: username, password: password}
}

func (c *loginClient) Start() (string, []byte, error) {
	c.step = 0

	return "LOGIN", nil, nil
}

func (c *loginClient) Next([]byte) ([]byte, error) {
	c.step++

	switch c.step {
	case 1:
		return []byte(c.username), nil

	case 2:
		return []byte(c.password), nil

	default:
		return nil, sasl.ErrUnexpectedServerChallenge
	}
}

// NewSASLClient returns the client for mech.
func NewSASLClient(mech AuthMechanism, username, password string) (sasl.Client, error) {
	switch mech {
	case AuthPlain:
		return sasl.NewPlainClient("", username, password), nil

	case AuthLogin:
		return LoginClient(username, password), nil

	case AuthCRAMMD5:
		return CRAMMD5Client(username, password), nil

	default:
		return nil, fmt.Errorf("unknown authentication mechanism %q", mech)
	}
}

// chooseMechanism resolves AuthAuto against the AUTH extension parameters. It returns AuthNone if nothing matches.
func chooseMechanism(mech AuthMechanism, extensions map[string]string) AuthMechanism {
	if mech != AuthAuto {
		return mech
	}

	params, ok := extensions["AUTH"]
	if !ok {
		return AuthNone
	}

	advertised := make(map[string]bool)

	for _, name := range strings.Fields(strings.ToUpper(params)) {
		advertised[name] = true
	}

	for _, p := range preference {
		if advertised[p.name] {
			return p.mech
		}
	}

	return AuthNone
}
