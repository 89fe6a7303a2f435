package watcher

import (
	"testing"

	"github.com/courier-mail/courier/async"
	"github.com/courier-mail/courier/events"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestWatcher(t *testing.T) {
	watcher := New[events.Event](
		async.NoopPanicHandler{},
		events.RequestComplete{},
		events.RequestFailed{},
	)

	// The watcher is watching the correct types.
	require.True(t, watcher.IsWatching(events.RequestComplete{}))
	require.True(t, watcher.IsWatching(events.RequestFailed{}))

	// The watcher is not watching the incorrect types.
	require.False(t, watcher.IsWatching(events.RequestStatus{}))
	require.False(t, watcher.IsWatching(events.FolderExpunged{}))

	// Get a channel to read from the watcher.
	resCh := watcher.GetChannel()

	// Send some events to the watcher.
	require.True(t, watcher.Send(events.RequestComplete{RequestID: "1"}))
	require.True(t, watcher.Send(events.RequestStatus{RequestID: "1"}))
	require.True(t, watcher.Send(events.RequestFailed{RequestID: "2", Final: true}))

	// Only the watched events arrive, in order.
	require.Equal(t, events.RequestComplete{RequestID: "1"}, <-resCh)
	require.Equal(t, events.RequestFailed{RequestID: "2", Final: true}, <-resCh)

	// Close the watcher.
	watcher.Close()

	// Sending more events after the watcher is closed should return false.
	require.False(t, watcher.Send(events.RequestComplete{}))
	require.False(t, watcher.Send(events.RequestFailed{}))
}

func TestWatcherWithoutTypesWatchesEverything(t *testing.T) {
	watcher := New[events.Event](async.NoopPanicHandler{})
	defer watcher.Close()

	require.True(t, watcher.IsWatching(events.UnseenChanged{}))
	require.True(t, watcher.Send(events.UnseenChanged{Folder: "INBOX", Count: 3}))
	require.Equal(t, events.UnseenChanged{Folder: "INBOX", Count: 3}, <-watcher.GetChannel())
}
