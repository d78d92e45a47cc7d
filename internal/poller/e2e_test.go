package poller

import (
	"context"
	"database/sql"
	"path/filepath"
	"strings"
	"testing"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/subjective-project/beeper-source/beeper"
	"github.com/subjective-project/beeper-source/internal/store"
)

func createE2EStore(t *testing.T) (string, *sql.DB) {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "index.db")

	db, err := sql.Open("sqlite3", dbPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	schema := `
		CREATE TABLE mx_room_messages (
			roomID TEXT NOT NULL,
			senderContactID TEXT,
			message TEXT,
			timestamp INTEGER NOT NULL,
			eventID TEXT PRIMARY KEY,
			type TEXT NOT NULL,
			isSentByMe INTEGER DEFAULT 0,
			isEncrypted INTEGER DEFAULT 0,
			isDeleted INTEGER DEFAULT 0,
			inReplyToID TEXT,
			text_content TEXT,
			text_formattedContent TEXT
		);
		CREATE TABLE users (userID TEXT PRIMARY KEY, accountID TEXT, user TEXT);
		CREATE TABLE accounts (accountID TEXT PRIMARY KEY, platformName TEXT);
		CREATE TABLE threads (threadID TEXT PRIMARY KEY, thread TEXT, timestamp INTEGER);
	`
	_, err = db.Exec(schema)
	require.NoError(t, err)
	return dbPath, db
}

func runPollerUntil(t *testing.T, dbPath string, wantMessages int) []beeper.Message {
	t.Helper()

	reader := &store.Reader{Path: dbPath, Log: testLogger()}
	got := make(chan beeper.Message, 16)
	sink := func(m beeper.Message) { got <- m }

	p := New(reader, sink, Options{
		StorePath: dbPath,
		Interval:  10 * time.Millisecond,
		Limit:     50,
		Log:       testLogger(),
	})
	go func() { _ = p.Run(context.Background()) }()
	defer func() {
		p.Stop()
		waitForState(t, p, StateStopped)
	}()

	var out []beeper.Message
	deadline := time.After(3 * time.Second)
	for len(out) < wantMessages {
		select {
		case m := <-got:
			out = append(out, m)
		case <-deadline:
			t.Fatalf("timed out waiting for messages, got %d of %d", len(out), wantMessages)
		}
	}
	return out
}

func TestEndToEndDeliversNewMessage(t *testing.T) {
	dbPath, db := createE2EStore(t)

	ts := time.Now().UnixMilli() + 1000
	_, err := db.Exec(`
		INSERT INTO mx_room_messages (roomID, senderContactID, message, timestamp, eventID, type, isDeleted)
		VALUES ('room-e2e', 'local-whatsapp-5', '{"body":"hello"}', ?, 'evt-e2e-1', 'TEXT', 0)
	`, ts)
	require.NoError(t, err)

	msgs := runPollerUntil(t, dbPath, 1)

	msg := msgs[0]
	assert.Equal(t, "hello", msg.Text)
	assert.Equal(t, beeper.NetworkWhatsApp, msg.Network)
	assert.True(t, strings.HasPrefix(msg.ThreadName, "WhatsApp"), "ThreadName = %q", msg.ThreadName)
	assert.Equal(t, "evt-e2e-1", msg.EventID)
	assert.Equal(t, ts, msg.Timestamp)
}

func TestEndToEndMalformedPayloadUsesPreExtractedText(t *testing.T) {
	dbPath, db := createE2EStore(t)

	ts := time.Now().UnixMilli() + 1000
	_, err := db.Exec(`
		INSERT INTO mx_room_messages (roomID, senderContactID, message, timestamp, eventID, type, text_content)
		VALUES ('room-e2e', 'telegram_77', 'this is not json', ?, 'evt-e2e-2', 'TEXT', 'extracted fine')
	`, ts)
	require.NoError(t, err)

	msgs := runPollerUntil(t, dbPath, 1)

	msg := msgs[0]
	assert.Equal(t, "extracted fine", msg.Text)
	assert.Equal(t, beeper.NetworkTelegram, msg.Network)
	assert.Empty(t, msg.RawMessagePayload)
}

func TestEndToEndNothingRedelivered(t *testing.T) {
	dbPath, db := createE2EStore(t)

	ts := time.Now().UnixMilli() + 500
	_, err := db.Exec(`
		INSERT INTO mx_room_messages (roomID, message, timestamp, eventID, type)
		VALUES ('room-e2e', '{"body":"once"}', ?, 'evt-e2e-3', 'TEXT')
	`, ts)
	require.NoError(t, err)

	reader := &store.Reader{Path: dbPath, Log: testLogger()}
	got := make(chan beeper.Message, 16)

	p := New(reader, func(m beeper.Message) { got <- m }, Options{
		StorePath: dbPath,
		Interval:  10 * time.Millisecond,
		Log:       testLogger(),
	})
	go func() { _ = p.Run(context.Background()) }()
	defer func() {
		p.Stop()
		waitForState(t, p, StateStopped)
	}()

	select {
	case m := <-got:
		assert.Equal(t, "once", m.Text)
	case <-time.After(3 * time.Second):
		t.Fatal("message never delivered")
	}

	// Several more ticks pass without the row being re-delivered
	select {
	case m := <-got:
		t.Fatalf("message re-delivered: %q", m.Text)
	case <-time.After(200 * time.Millisecond):
	}
}
