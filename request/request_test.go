package request

import (
	"context"
	"sync"
	"testing"

	"github.com/courier-mail/courier/connector"
	"github.com/courier-mail/courier/events"
	"github.com/courier-mail/courier/mail"
	"github.com/courier-mail/courier/store"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m, goleak.IgnoreTopFunction("github.com/golang/glog.(*loggingT).flushDaemon"))
}

type recorder struct {
	events []events.Event
	lock   sync.Mutex
}

func (r *recorder) publish(event events.Event) {
	r.lock.Lock()
	defer r.lock.Unlock()

	r.events = append(r.events, event)
}

func (r *recorder) all() []events.Event {
	r.lock.Lock()
	defer r.lock.Unlock()

	return append([]events.Event(nil), r.events...)
}

func eventsOf[T any](r *recorder) []T {
	var result []T

	for _, event := range r.all() {
		if event, ok := event.(T); ok {
			result = append(result, event)
		}
	}

	return result
}

func testLiteral(subject string) []byte {
	return []byte("From: alice@example.com\r\nTo: bob@example.com\r\nSubject: " + subject + "\r\n\r\nHello " + subject + "\r\n")
}

// newTestRunner returns a runner with a connected dummy client holding the given INBOX messages.
func newTestRunner(t *testing.T, subjects ...string) (*Runner[connector.Incoming], *connector.Dummy, *recorder, []mail.Token) {
	t.Helper()

	rec := &recorder{}
	client := connector.NewDummy(30)

	tokens := make([]mail.Token, 0, len(subjects))

	for _, subject := range subjects {
		tokens = append(tokens, client.SimulateMessage(mail.Inbox, testLiteral(subject), 0))
	}

	require.NoError(t, client.Open(context.Background()))

	return NewRunner[connector.Incoming]("alice", rec.publish, store.NewInMemoryStore()), client, rec, tokens
}

func inboxOf(t *testing.T, client connector.Incoming) *mail.Folder {
	t.Helper()

	root, err := client.FolderTree(context.Background())
	require.NoError(t, err)

	inbox, ok := root.Find(mail.Inbox)
	require.True(t, ok)

	return inbox
}
