// Package beeper provides read-only access to the Beeper desktop client's
// local message cache (index.db) and normalization of its rows into a
// uniform Message shape across bridged networks.
package beeper

import (
	"database/sql"
	"time"
)

// Network identifies the bridged chat platform a message came from.
type Network string

const (
	NetworkWhatsApp Network = "whatsapp"
	NetworkTelegram Network = "telegram"
	NetworkLinkedIn Network = "linkedin"
	NetworkMatrix   Network = "matrix"
	NetworkUnknown  Network = "unknown"
)

// Message types surfaced by this package. Rows with any other type are
// filtered out at the query level.
const (
	TypeText     = "TEXT"
	TypeMedia    = "MEDIA"
	TypeFile     = "FILE"
	TypeLocation = "LOCATION"
	TypeSticker  = "STICKER"
)

// AllowedTypes lists the message types included in store queries.
var AllowedTypes = []string{TypeText, TypeMedia, TypeFile, TypeLocation, TypeSticker}

// HumanTimeLayout is the local-time rendering used for Message.HumanTime.
const HumanTimeLayout = "2006-01-02 15:04:05"

// StoreDB provides read-only access to the Beeper index.db
type StoreDB struct {
	db   *sql.DB
	path string
}

// RawRow is one mx_room_messages row joined against users and accounts,
// before normalization.
type RawRow struct {
	RoomID           string
	SenderContactID  sql.NullString
	MessageJSON      sql.NullString
	Timestamp        int64 // milliseconds since epoch
	EventID          string
	Type             string
	IsSentByMe       bool
	IsEncrypted      bool
	InReplyToID      sql.NullString
	TextContent      sql.NullString
	FormattedContent sql.NullString
	SenderUserJSON   sql.NullString
	PlatformName     sql.NullString
}

// Message is the normalized event shape emitted downstream. Immutable once
// constructed; Text is always non-empty and Network is always one of the
// Network constants.
type Message struct {
	RoomID            string         `json:"room_id"`
	ThreadID          string         `json:"thread_id"`
	ThreadName        string         `json:"thread_name"`
	SenderID          string         `json:"sender_id"`
	SenderName        string         `json:"sender_name"`
	Network           Network        `json:"network"`
	Text              string         `json:"text"`
	Timestamp         int64          `json:"timestamp"`
	EventID           string         `json:"event_id"`
	MessageType       string         `json:"message_type"`
	IsSentByMe        bool           `json:"is_sent_by_me"`
	IsEncrypted       bool           `json:"is_encrypted"`
	IsReply           bool           `json:"is_reply"`
	ReplyToID         string         `json:"reply_to_id,omitempty"`
	HumanTime         string         `json:"human_time"`
	RawMessagePayload map[string]any `json:"raw_message_payload"`
	RawSenderPayload  map[string]any `json:"raw_sender_payload"`
}

// RoomInfo describes one threads-table row for a room.
type RoomInfo struct {
	RoomID       string         `json:"room_id"`
	ThreadData   map[string]any `json:"thread_data"`
	LastActivity int64          `json:"last_activity"`
}

// HumanTime formats a millisecond epoch timestamp in local time at
// seconds precision.
func HumanTime(tsMillis int64) string {
	return time.UnixMilli(tsMillis).Format(HumanTimeLayout)
}
