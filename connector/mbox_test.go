package connector

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/courier-mail/courier/mail"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func openMbox(t *testing.T, dir string) *Mbox {
	t.Helper()

	conn := NewMbox(dir)
	require.NoError(t, conn.Open(context.Background()))

	return conn
}

func TestMboxAppendAndList(t *testing.T) {
	ctx := context.Background()
	conn := openMbox(t, t.TempDir())
	inbox := selectFolder(t, conn, mail.Inbox)

	_, err := conn.Append(ctx, inbox, testLiteral("one"), mail.FlagSeen)
	require.NoError(t, err)

	token, err := conn.Append(ctx, inbox, testLiteral("two"), 0)
	require.NoError(t, err)

	messages, err := conn.FolderMessages(ctx, 1, 10, nil)
	require.NoError(t, err)
	require.Len(t, messages, 2)

	assert.Equal(t, "one", messages[0].Envelope.Subject)
	assert.True(t, messages[0].Flags.Seen())
	assert.Equal(t, "two", messages[1].Envelope.Subject)
	assert.True(t, mail.SameMessage(token, messages[1].Token))

	content, err := conn.Message(ctx, token, nil)
	require.NoError(t, err)
	assert.Equal(t, string(testLiteral("two")), string(content.Literal))
	assert.True(t, content.Complete)

	require.NoError(t, conn.RefreshFolderStatus(ctx, inbox))
	assert.Equal(t, 2, inbox.MsgCount)
	assert.Equal(t, 1, inbox.UnseenCount)
}

func TestMboxFlagsPersist(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()

	conn := openMbox(t, dir)
	inbox := selectFolder(t, conn, mail.Inbox)

	token, err := conn.Append(ctx, inbox, testLiteral("one"), 0)
	require.NoError(t, err)

	changes, err := conn.ChangeFlags(ctx, []mail.Token{token}, mail.FlagSeen|mail.FlagFlagged|mail.FlagJunk, true)
	require.NoError(t, err)
	require.Len(t, changes, 1)
	assert.Equal(t, mail.FlagSeen|mail.FlagFlagged|mail.FlagJunk, changes[0].Flags)

	raw, err := os.ReadFile(filepath.Join(dir, "INBOX.mbox"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "Status: RO")
	assert.Contains(t, string(raw), "X-Status: F")
	assert.Contains(t, string(raw), "X-Keywords: $Junk")

	reopened := openMbox(t, dir)
	selectFolder(t, reopened, mail.Inbox)

	messages, err := reopened.FolderMessages(ctx, 1, 1, nil)
	require.NoError(t, err)
	require.Len(t, messages, 1)

	assert.Equal(t, mail.FlagSeen|mail.FlagFlagged|mail.FlagJunk, messages[0].Flags)
	assert.Equal(t, token.Key(), messages[0].Token.Key())
}

func TestMboxDuplicateMessages(t *testing.T) {
	ctx := context.Background()
	conn := openMbox(t, t.TempDir())
	inbox := selectFolder(t, conn, mail.Inbox)

	first, err := conn.Append(ctx, inbox, testLiteral("same"), 0)
	require.NoError(t, err)

	second, err := conn.Append(ctx, inbox, testLiteral("same"), 0)
	require.NoError(t, err)

	assert.NotEqual(t, first.Key(), second.Key())

	_, err = conn.ChangeFlags(ctx, []mail.Token{second}, mail.FlagSeen, true)
	require.NoError(t, err)

	messages, err := conn.FolderMessages(ctx, 1, 2, nil)
	require.NoError(t, err)
	require.Len(t, messages, 2)

	assert.False(t, messages[0].Flags.Seen())
	assert.True(t, messages[1].Flags.Seen())
}

func TestMboxExpunge(t *testing.T) {
	ctx := context.Background()
	conn := openMbox(t, t.TempDir())
	inbox := selectFolder(t, conn, mail.Inbox)

	first, err := conn.Append(ctx, inbox, testLiteral("one"), 0)
	require.NoError(t, err)

	_, err = conn.Append(ctx, inbox, testLiteral("two"), 0)
	require.NoError(t, err)

	_, err = conn.ChangeFlags(ctx, []mail.Token{first}, mail.FlagDeleted, true)
	require.NoError(t, err)

	remaining, err := conn.Expunge(ctx)
	require.NoError(t, err)
	require.Len(t, remaining, 1)

	_, err = conn.Message(ctx, first, nil)
	assert.ErrorIs(t, err, mail.ErrNotLoadable)
}

func TestMboxCopyMove(t *testing.T) {
	ctx := context.Background()
	conn := openMbox(t, t.TempDir())

	archive, err := conn.CreateFolder("Archive")
	require.NoError(t, err)

	inbox := selectFolder(t, conn, mail.Inbox)

	one, err := conn.Append(ctx, inbox, testLiteral("one"), mail.FlagFlagged)
	require.NoError(t, err)

	two, err := conn.Append(ctx, inbox, testLiteral("two"), 0)
	require.NoError(t, err)

	require.NoError(t, conn.Copy(ctx, []mail.Token{one}, archive))
	require.NoError(t, conn.Move(ctx, []mail.Token{two}, archive))

	require.NoError(t, conn.RefreshFolderStatus(ctx, inbox))
	assert.Equal(t, 1, inbox.MsgCount)

	selectFolder(t, conn, "Archive")

	messages, err := conn.FolderMessages(ctx, 1, 10, nil)
	require.NoError(t, err)
	require.Len(t, messages, 2)

	assert.Equal(t, "one", messages[0].Envelope.Subject)
	assert.True(t, messages[0].Flags.Flagged())
	assert.Equal(t, "two", messages[1].Envelope.Subject)
	assert.True(t, messages[1].Token.ContainedWithin(archive))
}

func TestMboxFolderTree(t *testing.T) {
	ctx := context.Background()
	conn := openMbox(t, t.TempDir())

	_, err := conn.CreateFolder("Sent")
	require.NoError(t, err)

	_, err = conn.CreateFolder("a/b")
	require.Error(t, err)

	root, err := conn.FolderTree(ctx)
	require.NoError(t, err)

	paths := []string{}
	root.Walk(func(folder *mail.Folder) {
		if folder.Path != "" {
			paths = append(paths, folder.Path)
		}
	})

	assert.Equal(t, []string{"INBOX", "Sent"}, paths)

	_, err = conn.SetActiveFolder(ctx, mail.NewFolder("Missing", "Missing", ""))
	assert.ErrorIs(t, err, mail.ErrNoSuchFolder)
}

func TestMboxNotConnected(t *testing.T) {
	conn := NewMbox(t.TempDir())

	_, err := conn.FolderTree(context.Background())
	assert.ErrorIs(t, err, mail.ErrNotConnected)
	assert.ErrorIs(t, conn.Noop(context.Background()), mail.ErrNotConnected)
}
