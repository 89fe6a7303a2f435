package pop3

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/courier-mail/courier/internal/faketransport"
	"github.com/courier-mail/courier/mail"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func newTestProtocol(t *testing.T, handler faketransport.Handler) (*Protocol, *faketransport.Transport) {
	t.Helper()

	tr := faketransport.New(handler, "+OK POP3 ready")
	require.NoError(t, tr.Open(context.Background()))

	proto := NewProtocol(context.Background(), tr, time.Second)

	t.Cleanup(func() {
		proto.Stop()
		require.NoError(t, tr.Close())
	})

	_, err := proto.ReceiveGreeting()
	require.NoError(t, err)

	return proto, tr
}

func newLoggedInProtocol(t *testing.T, server *testServer) (*Protocol, *faketransport.Transport) {
	t.Helper()

	proto, tr := newTestProtocol(t, server.handle)

	require.NoError(t, proto.User("user"))
	require.NoError(t, proto.Pass("secret"))

	return proto, tr
}

func TestMultilineDotUnescape(t *testing.T) {
	server := newTestServer(testLiteral("uid-1", "dots", ".hidden", "..double", "plain"))

	proto, _ := newLoggedInProtocol(t, server)

	literal, err := proto.Retr(1, nil)
	require.NoError(t, err)

	body := string(literal[strings.Index(string(literal), "\r\n\r\n")+4:])
	assert.Equal(t, ".hidden\r\n..double\r\nplain\r\n", body)
}

func TestMultilineUnescapeExactLine(t *testing.T) {
	proto, _ := newTestProtocol(t, func(line string) []string {
		return []string{"+OK", "..text", "...", "text", "."}
	})

	literal, err := proto.Retr(1, nil)
	require.NoError(t, err)
	assert.Equal(t, ".text\r\n..\r\ntext\r\n", string(literal))
}

func TestMultilineReportsNetworkProgress(t *testing.T) {
	proto, _ := newTestProtocol(t, func(line string) []string {
		return []string{"+OK", "line one", "line two", "."}
	})

	var total int

	_, err := proto.Retr(1, mail.ProgressHandlerFunc(func(kind mail.ProgressKind, count, _ int) {
		if kind == mail.ProgressNetwork {
			total += count
		}
	}))
	require.NoError(t, err)

	assert.Equal(t, len("+OK")+2+len("line one")+2+len("line two")+2+len(".")+2, total)
}

func TestAuthFailureClassification(t *testing.T) {
	tests := []struct {
		message     string
		recoverable bool
	}{
		{message: "[AUTH] invalid password", recoverable: true},
		{message: "Authentication failed", recoverable: true},
		{message: "bad LOGIN", recoverable: true},
		{message: "mailbox locked", recoverable: false},
		{message: "maildrop already in use", recoverable: false},
	}

	for _, tc := range tests {
		t.Run(tc.message, func(t *testing.T) {
			server := newTestServer()
			server.authErr = tc.message

			proto, _ := newTestProtocol(t, server.handle)
			require.NoError(t, proto.User("user"))

			err := proto.Pass("secret")

			var authErr *mail.AuthError
			require.ErrorAs(t, err, &authErr)
			assert.Equal(t, tc.message, authErr.Message)
			assert.Equal(t, tc.recoverable, authErr.Recoverable)
			assert.Equal(t, !tc.recoverable, mail.IsFinal(err))
		})
	}
}

func TestNegativeResponseMessage(t *testing.T) {
	proto, _ := newTestProtocol(t, func(line string) []string {
		return []string{"-ERR no such message, only 2 messages in maildrop"}
	})

	_, err := proto.List(5)

	var protoErr *mail.ProtocolError
	require.ErrorAs(t, err, &protoErr)
	assert.Equal(t, "no such message, only 2 messages in maildrop", protoErr.Message)
	assert.Equal(t, "LIST", protoErr.Command)
}

func TestStatListUidl(t *testing.T) {
	server := newTestServer(
		testLiteral("uid-1", "one", "body"),
		testLiteral("uid-2", "two", "body", "more"),
	)

	proto, _ := newLoggedInProtocol(t, server)

	count, err := proto.Stat()
	require.NoError(t, err)
	assert.Equal(t, 2, count)

	size, err := proto.List(2)
	require.NoError(t, err)
	assert.Equal(t, len(server.messages[1].literal), size)

	sizes, err := proto.ListAll(nil)
	require.NoError(t, err)
	assert.Equal(t, map[int]int{1: len(server.messages[0].literal), 2: len(server.messages[1].literal)}, sizes)

	uid, err := proto.Uidl(1)
	require.NoError(t, err)
	assert.Equal(t, "uid-1", uid)

	uids, err := proto.UidlAll(nil)
	require.NoError(t, err)
	assert.Equal(t, map[int]string{1: "uid-1", 2: "uid-2"}, uids)
}

func TestStatMalformed(t *testing.T) {
	proto, _ := newTestProtocol(t, func(line string) []string {
		return []string{"+OK"}
	})

	_, err := proto.Stat()

	var protoErr *mail.ProtocolError
	require.ErrorAs(t, err, &protoErr)
}

func TestTopHeaderOnly(t *testing.T) {
	server := newTestServer(testLiteral("uid-1", "hello", "body line"))

	proto, _ := newLoggedInProtocol(t, server)

	literal, err := proto.Top(1, 0, nil)
	require.NoError(t, err)
	assert.True(t, strings.HasSuffix(string(literal), "charset=us-ascii\r\n\r\n"))
	assert.NotContains(t, string(literal), "body line")
}

func TestCapa(t *testing.T) {
	proto, _ := newTestProtocol(t, newTestServer().handle)

	capabilities, err := proto.Capa()
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"TOP": "", "UIDL": "", "STLS": "", "SASL": "PLAIN LOGIN"}, capabilities)
}

func TestCapaUnsupported(t *testing.T) {
	proto, _ := newTestProtocol(t, func(line string) []string {
		return []string{"-ERR unknown command"}
	})

	capabilities, err := proto.Capa()
	require.NoError(t, err)
	assert.Nil(t, capabilities)
}

func TestStls(t *testing.T) {
	proto, tr := newTestProtocol(t, newTestServer().handle)

	ok, err := proto.Stls(context.Background())
	require.NoError(t, err)
	assert.True(t, ok)
	assert.True(t, tr.IsTLS())
}

func TestStallTimeout(t *testing.T) {
	server := newTestServer()
	server.setSilent("NOOP")

	tr := faketransport.New(server.handle, "+OK POP3 ready")
	require.NoError(t, tr.Open(context.Background()))

	proto := NewProtocol(context.Background(), tr, 50*time.Millisecond)
	defer proto.Stop()

	_, err := proto.ReceiveGreeting()
	require.NoError(t, err)

	err = proto.Noop()
	require.Error(t, err)
	assert.True(t, errors.Is(err, mail.ErrStallTimeout))
	assert.False(t, mail.IsFinal(err))
	assert.False(t, tr.IsConnected())
	assert.Equal(t, "Connection not responding", mail.StatusText(err))
}

func TestCredentialsAreNotLogged(t *testing.T) {
	logger, hook := test.NewNullLogger()
	logger.SetLevel(logrus.TraceLevel)

	server := newTestServer()
	server.password = "hunter2"

	proto, _ := newTestProtocol(t, server.handle)
	proto.log = logrus.NewEntry(logger)

	require.NoError(t, proto.User("user"))
	require.NoError(t, proto.Pass("hunter2"))

	require.NotEmpty(t, hook.AllEntries())

	for _, entry := range hook.AllEntries() {
		assert.NotContains(t, entry.Message, "hunter2")
	}
}
