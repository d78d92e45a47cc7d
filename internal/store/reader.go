// Package store is the error-swallowing read layer over the Beeper index.db.
// Every read opens and closes its own connection; connection or query
// failures are logged and surface as empty results, never as errors to the
// caller. The poller keeps running through a bad cycle.
package store

import (
	"log/slog"

	"github.com/subjective-project/beeper-source/beeper"
)

// Reader reads and decodes message rows from the store at Path.
type Reader struct {
	Path string
	Log  *slog.Logger

	// Report, when set, receives store-access errors in addition to the
	// log (e.g. a Sentry capture hook).
	Report func(error)
}

func (r *Reader) fail(op string, err error) {
	if r.Log != nil {
		r.Log.Error("store read failed", "op", op, "path", r.Path, "error", err)
	}
	if r.Report != nil {
		r.Report(err)
	}
}

// RecentSince returns normalized messages newer than the watermark, newest
// first, plus the maximum timestamp over every row observed — including
// rows skipped for empty text, so the caller's watermark still advances
// past them. On any store failure both returns are zero.
func (r *Reader) RecentSince(watermarkMillis int64, limit int) ([]beeper.Message, int64) {
	db, err := beeper.Open(r.Path)
	if err != nil {
		r.fail("recent", err)
		return nil, 0
	}
	defer db.Close()

	rows, err := db.RecentSince(watermarkMillis, limit)
	if err != nil {
		r.fail("recent", err)
		return nil, 0
	}

	var maxSeen int64
	var msgs []beeper.Message
	for _, row := range rows {
		if row.Timestamp > maxSeen {
			maxSeen = row.Timestamp
		}
		if msg, ok := beeper.DecodeRow(row); ok {
			msgs = append(msgs, *msg)
		}
	}
	return msgs, maxSeen
}

// ThreadMessages returns the normalized messages of one room, oldest first.
func (r *Reader) ThreadMessages(threadID string, limit int) []beeper.Message {
	db, err := beeper.Open(r.Path)
	if err != nil {
		r.fail("thread", err)
		return nil
	}
	defer db.Close()

	rows, err := db.ThreadMessages(threadID, limit)
	if err != nil {
		r.fail("thread", err)
		return nil
	}

	var msgs []beeper.Message
	for _, row := range rows {
		if msg, ok := beeper.DecodeRow(row); ok {
			msgs = append(msgs, *msg)
		}
	}
	return msgs
}

// RoomInfo returns the threads-table entry for a room, or nil when the
// room is unknown or the store is unreadable.
func (r *Reader) RoomInfo(roomID string) *beeper.RoomInfo {
	db, err := beeper.Open(r.Path)
	if err != nil {
		r.fail("room", err)
		return nil
	}
	defer db.Close()

	info, err := db.RoomInfo(roomID)
	if err != nil {
		r.fail("room", err)
		return nil
	}
	return info
}

// SelfTest opens the store and runs the trivial count query. Unlike the
// read paths this returns the error; it exists to report health before the
// poll loop starts.
func (r *Reader) SelfTest() (int, error) {
	db, err := beeper.Open(r.Path)
	if err != nil {
		return 0, err
	}
	defer db.Close()

	return db.CountMessages()
}
