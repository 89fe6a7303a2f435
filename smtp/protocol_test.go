package smtp

import (
	"context"
	"encoding/base64"
	"encoding/hex"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/courier-mail/courier/internal/faketransport"
	"github.com/courier-mail/courier/mail"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeServer answers SMTP commands for faketransport. DATA content arrives through SendRaw.
type fakeServer struct {
	mu sync.Mutex

	username string
	password string

	extensions []string
	authReply  string

	// challenge is sent in answer to AUTH CRAM-MD5.
	challenge string

	// pending is the rest of the AUTH exchange in progress.
	pending []authStep

	// finalDelay delays the reply to the end of DATA.
	finalDelay time.Duration
	tr         *faketransport.Transport

	inData bool
}

type authStep struct {
	expect string
	reply  string
}

func newFakeServer() *fakeServer {
	return &fakeServer{
		username:   "user",
		password:   "secret",
		extensions: []string{"PIPELINING", "STARTTLS", "AUTH PLAIN LOGIN CRAM-MD5", "SIZE 10240000"},
	}
}

func (s *fakeServer) handle(line string) []string {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.inData {
		s.inData = false

		if s.finalDelay > 0 {
			go func(tr *faketransport.Transport, delay time.Duration) {
				time.Sleep(delay)
				tr.Queue("250 2.0.0 queued")
			}(s.tr, s.finalDelay)

			return nil
		}

		return []string{"250 2.0.0 queued"}
	}

	if len(s.pending) > 0 {
		step := s.pending[0]
		s.pending = s.pending[1:]

		if line != step.expect {
			s.pending = nil
			return []string{"535 5.7.8 Authentication credentials invalid"}
		}

		return []string{step.reply}
	}

	verb, arg, _ := strings.Cut(line, " ")

	switch strings.ToUpper(verb) {
	case "EHLO":
		lines := []string{"250-fake.example.com greets " + arg}

		for i, ext := range s.extensions {
			if i == len(s.extensions)-1 {
				lines = append(lines, "250 "+ext)
			} else {
				lines = append(lines, "250-"+ext)
			}
		}

		return lines

	case "STARTTLS":
		return []string{"220 2.0.0 Ready to start TLS"}

	case "AUTH":
		mech, ir, _ := strings.Cut(arg, " ")

		switch strings.ToUpper(mech) {
		case "PLAIN":
			if ir != base64.StdEncoding.EncodeToString([]byte("\x00"+s.username+"\x00"+s.password)) {
				return []string{"535 5.7.8 Authentication credentials invalid"}
			}

			return []string{s.authOK()}

		case "LOGIN":
			s.pending = []authStep{
				{expect: base64.StdEncoding.EncodeToString([]byte(s.username)), reply: "334 UGFzc3dvcmQ6"},
				{expect: base64.StdEncoding.EncodeToString([]byte(s.password)), reply: s.authOK()},
			}

			return []string{"334 VXNlcm5hbWU6"}

		case "CRAM-MD5":
			digest := hex.EncodeToString(HMACMD5([]byte(s.password), []byte(s.challenge)))

			s.pending = []authStep{
				{expect: base64.StdEncoding.EncodeToString([]byte(s.username + " " + digest)), reply: s.authOK()},
			}

			return []string{"334 " + base64.StdEncoding.EncodeToString([]byte(s.challenge))}

		default:
			return []string{"504 5.5.4 Unrecognized authentication type"}
		}

	case "MAIL", "RSET":
		return []string{"250 2.1.0 OK"}

	case "RCPT":
		if strings.Contains(arg, "reject") {
			return []string{"550 5.1.1 No such user"}
		}

		return []string{"250 2.1.5 OK"}

	case "DATA":
		s.inData = true
		return []string{"354 End data with <CR><LF>.<CR><LF>"}

	case "QUIT":
		return []string{"221 2.0.0 Bye"}

	default:
		return []string{"500 5.5.2 Unknown command"}
	}
}

func (s *fakeServer) authOK() string {
	if s.authReply != "" {
		return s.authReply
	}

	return "235 2.7.0 Authentication successful"
}

func newTestProtocol(t *testing.T, server *fakeServer, greeting ...string) (*Protocol, *faketransport.Transport) {
	t.Helper()

	if len(greeting) == 0 {
		greeting = []string{"220 fake.example.com ESMTP ready"}
	}

	tr := faketransport.New(server.handle, greeting...)
	server.tr = tr

	require.NoError(t, tr.Open(context.Background()))

	proto := NewProtocol(context.Background(), tr, time.Second)

	t.Cleanup(func() {
		proto.Stop()
		require.NoError(t, tr.Close())
	})

	return proto, tr
}

// newGreetedProtocol returns a protocol that already consumed the server greeting.
func newGreetedProtocol(t *testing.T, server *fakeServer) (*Protocol, *faketransport.Transport) {
	t.Helper()

	proto, tr := newTestProtocol(t, server)

	_, err := proto.ReceiveGreeting()
	require.NoError(t, err)

	return proto, tr
}

func TestGreeting(t *testing.T) {
	proto, _ := newTestProtocol(t, newFakeServer(), "220-fake.example.com ESMTP", "220 ready")

	reply, err := proto.ReceiveGreeting()
	require.NoError(t, err)
	assert.Equal(t, 220, reply.Code)
	assert.Equal(t, []string{"fake.example.com ESMTP", "ready"}, reply.Lines)
}

func TestGreetingRejected(t *testing.T) {
	proto, _ := newTestProtocol(t, newFakeServer(), "421 Service not available")

	_, err := proto.ReceiveGreeting()

	var protoErr *mail.ProtocolError
	require.ErrorAs(t, err, &protoErr)
	assert.True(t, protoErr.Fatal)
	assert.Contains(t, protoErr.Message, "Invalid server greeting")
}

func TestEhlo(t *testing.T) {
	proto, tr := newTestProtocol(t, newFakeServer())

	_, err := proto.ReceiveGreeting()
	require.NoError(t, err)

	extensions, err := proto.Ehlo("client.example.com")
	require.NoError(t, err)

	assert.Equal(t, map[string]string{
		"PIPELINING": "",
		"STARTTLS":   "",
		"AUTH":       "PLAIN LOGIN CRAM-MD5",
		"SIZE":       "10240000",
	}, extensions)
	assert.Equal(t, []string{"EHLO client.example.com"}, tr.Sent())
}

func TestDataDotStuffing(t *testing.T) {
	proto, tr := newTestProtocol(t, newFakeServer())

	_, err := proto.ReceiveGreeting()
	require.NoError(t, err)

	require.NoError(t, proto.Data([]byte("Subject: dots\r\n\r\n.leading\r\n..double\nbare lf\r\n.")))

	assert.Equal(t, "Subject: dots\r\n\r\n..leading\r\n...double\r\nbare lf\r\n..\r\n", tr.Raw())
	assert.Equal(t, []string{"DATA", "."}, tr.Sent())
}

func TestDataFinalReplyIsNotWatched(t *testing.T) {
	server := newFakeServer()
	server.finalDelay = 200 * time.Millisecond

	tr := faketransport.New(server.handle, "220 ready")
	server.tr = tr

	require.NoError(t, tr.Open(context.Background()))
	defer func() { require.NoError(t, tr.Close()) }()

	proto := NewProtocol(context.Background(), tr, 50*time.Millisecond)
	defer proto.Stop()

	_, err := proto.ReceiveGreeting()
	require.NoError(t, err)

	require.NoError(t, proto.Data([]byte("Subject: slow\r\n\r\nbody\r\n")))
	assert.True(t, tr.IsConnected())
}

func TestAuthPlain(t *testing.T) {
	proto, _ := newGreetedProtocol(t, newFakeServer())

	client, err := NewSASLClient(AuthPlain, "user", "secret")
	require.NoError(t, err)

	require.NoError(t, proto.Auth(client))
}

func TestAuthLogin(t *testing.T) {
	proto, tr := newGreetedProtocol(t, newFakeServer())

	require.NoError(t, proto.Auth(LoginClient("user", "secret")))
	assert.Equal(t, []string{"AUTH LOGIN", "dXNlcg==", "c2VjcmV0"}, tr.Sent())
}

func TestAuthCRAMMD5(t *testing.T) {
	server := newFakeServer()
	server.username = "tim"
	server.password = "tanstaaftanstaaf"
	server.challenge = "<1896.697170952@postoffice.reston.mci.net>"

	proto, tr := newGreetedProtocol(t, server)

	require.NoError(t, proto.Auth(CRAMMD5Client("tim", "tanstaaftanstaaf")))

	// RFC 2195 example exchange.
	assert.Equal(t, []string{"AUTH CRAM-MD5", "dGltIGI5MTNhNjAyYzdlZGE3YTQ5NWI0ZTZlNzMzNGQzODkw"}, tr.Sent())
}

func TestAuthRejected(t *testing.T) {
	server := newFakeServer()
	server.password = "other"

	proto, _ := newGreetedProtocol(t, server)

	client, err := NewSASLClient(AuthPlain, "user", "secret")
	require.NoError(t, err)

	err = proto.Auth(client)

	var authErr *mail.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.True(t, authErr.Recoverable)
}

func TestAuthTemporaryFailure(t *testing.T) {
	server := newFakeServer()
	server.authReply = "454 4.7.0 Temporary server failure"

	proto, _ := newGreetedProtocol(t, server)

	client, err := NewSASLClient(AuthPlain, "user", "secret")
	require.NoError(t, err)

	err = proto.Auth(client)

	var protoErr *mail.ProtocolError
	require.ErrorAs(t, err, &protoErr)
	assert.False(t, protoErr.Fatal)
	assert.False(t, mail.IsFinal(err))
}

func TestAuthTemporaryCredentialsFailure(t *testing.T) {
	server := newFakeServer()
	server.authReply = "454 4.7.0 invalid username or password"

	proto, _ := newGreetedProtocol(t, server)

	client, err := NewSASLClient(AuthPlain, "user", "secret")
	require.NoError(t, err)

	err = proto.Auth(client)

	var authErr *mail.AuthError
	require.ErrorAs(t, err, &authErr)
	assert.True(t, authErr.Recoverable)
	assert.False(t, mail.IsFinal(err))
}

func TestRcptRejected(t *testing.T) {
	proto, _ := newGreetedProtocol(t, newFakeServer())

	err := proto.Rcpt("reject@example.com")

	var protoErr *mail.ProtocolError
	require.ErrorAs(t, err, &protoErr)
	assert.Equal(t, "RCPT", protoErr.Command)
	assert.True(t, protoErr.Fatal)
}

func TestQuit(t *testing.T) {
	proto, _ := newGreetedProtocol(t, newFakeServer())

	require.NoError(t, proto.Rset())
	require.NoError(t, proto.Quit())
}

func TestHMACMD5(t *testing.T) {
	tests := []struct {
		key, data, digest string
	}{
		{key: "key", data: "The quick brown fox jumps over the lazy dog", digest: "80070713463e7749b90c2dc24911e275"},
		{key: strings.Repeat("\x0b", 16), data: "Hi There", digest: "9294727a3638bb1c13f48ef8158bfc9d"},
		{key: "Jefe", data: "what do ya want for nothing?", digest: "750c783e6ab0b503eaa86e310a5db738"},
		{key: strings.Repeat("\xaa", 80), data: "Test Using Larger Than Block-Size Key - Hash Key First", digest: "6b1ab7fe4bd7bf8f0b62e6ce61b9d0cd"},
	}

	for _, tc := range tests {
		assert.Equal(t, tc.digest, hex.EncodeToString(HMACMD5([]byte(tc.key), []byte(tc.data))))
	}
}

func TestChooseMechanism(t *testing.T) {
	assert.Equal(t, AuthCRAMMD5, chooseMechanism(AuthAuto, map[string]string{"AUTH": "LOGIN PLAIN CRAM-MD5"}))
	assert.Equal(t, AuthPlain, chooseMechanism(AuthAuto, map[string]string{"AUTH": "login plain"}))
	assert.Equal(t, AuthNone, chooseMechanism(AuthAuto, map[string]string{}))
	assert.Equal(t, AuthLogin, chooseMechanism(AuthLogin, map[string]string{}))
}

func TestCredentialsAreNotLogged(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.TraceLevel)

	proto, _ := newGreetedProtocol(t, newFakeServer())
	proto.log = logrus.NewEntry(logger)

	require.NoError(t, proto.Auth(LoginClient("user", "secret")))

	client, err := NewSASLClient(AuthPlain, "user", "secret")
	require.NoError(t, err)
	require.NoError(t, proto.Auth(client))

	plain := base64.StdEncoding.EncodeToString([]byte("\x00user\x00secret"))

	for _, entry := range hook.AllEntries() {
		assert.NotContains(t, entry.Message, "c2VjcmV0")
		assert.NotContains(t, entry.Message, plain)
	}
}
