package beeper

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	_ "github.com/mattn/go-sqlite3"
)

// DefaultStorePath returns the default location of Beeper's index.db
func DefaultStorePath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".config", "BeeperTexts", "index.db")
}

// Open opens the index.db with read-only pragmas. The store is owned by the
// Beeper client; this package never writes to it.
func Open(path string) (*StoreDB, error) {
	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil, fmt.Errorf("index.db not found at %s", path)
	}

	uri := fmt.Sprintf("file:%s?mode=ro", path)
	db, err := sql.Open("sqlite3", uri)
	if err != nil {
		return nil, fmt.Errorf("failed to open index.db: %w", err)
	}

	pragmas := []string{
		"PRAGMA query_only=ON",
		"PRAGMA busy_timeout=5000",
		"PRAGMA temp_store=MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			// Ignore pragma errors (some may not be supported)
			continue
		}
	}

	return &StoreDB{db: db, path: path}, nil
}

// Close closes the store connection
func (s *StoreDB) Close() error {
	if s.db != nil {
		return s.db.Close()
	}
	return nil
}

// Path returns the path to the index.db file
func (s *StoreDB) Path() string {
	return s.path
}

// rowVariant selects which of the two read paths a query serves. Both share
// the same column list, joins, type filter, and scan code.
type rowVariant int

const (
	byWatermark rowVariant = iota // timestamp > ?, newest first
	byRoom                        // roomID = ?, oldest first
)

func buildRowQuery(variant rowVariant) string {
	var cond, order string
	switch variant {
	case byRoom:
		cond = "m.roomID = ?"
		order = "m.timestamp ASC"
	default:
		cond = "m.timestamp > ?"
		order = "m.timestamp DESC"
	}

	return fmt.Sprintf(`
		SELECT
			m.roomID,
			m.senderContactID,
			m.message,
			m.timestamp,
			m.eventID,
			m.type,
			m.isSentByMe,
			m.isEncrypted,
			m.inReplyToID,
			m.text_content,
			m.text_formattedContent,
			u.user,
			a.platformName
		FROM mx_room_messages m
		LEFT JOIN users u ON m.senderContactID = u.userID
		LEFT JOIN accounts a ON u.accountID = a.accountID
		WHERE %s
		  AND m.type IN (%s)
		  AND m.isDeleted = 0
		ORDER BY %s
		LIMIT ?
	`, cond, typeFilterList(), order)
}

func typeFilterList() string {
	quoted := make([]string, len(AllowedTypes))
	for i, t := range AllowedTypes {
		quoted[i] = "'" + t + "'"
	}
	return strings.Join(quoted, ", ")
}

func (s *StoreDB) queryRows(variant rowVariant, key any, limit int) ([]RawRow, error) {
	rows, err := s.db.Query(buildRowQuery(variant), key, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query messages: %w", err)
	}
	defer rows.Close()

	var out []RawRow
	for rows.Next() {
		var r RawRow
		if err := rows.Scan(
			&r.RoomID,
			&r.SenderContactID,
			&r.MessageJSON,
			&r.Timestamp,
			&r.EventID,
			&r.Type,
			&r.IsSentByMe,
			&r.IsEncrypted,
			&r.InReplyToID,
			&r.TextContent,
			&r.FormattedContent,
			&r.SenderUserJSON,
			&r.PlatformName,
		); err != nil {
			return nil, fmt.Errorf("failed to scan message row: %w", err)
		}
		out = append(out, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating message rows: %w", err)
	}

	return out, nil
}

// RecentSince reads rows with timestamp strictly greater than sinceMillis,
// newest first, capped at limit.
func (s *StoreDB) RecentSince(sinceMillis int64, limit int) ([]RawRow, error) {
	return s.queryRows(byWatermark, sinceMillis, limit)
}

// ThreadMessages reads rows for one room, oldest first, capped at limit.
func (s *StoreDB) ThreadMessages(roomID string, limit int) ([]RawRow, error) {
	return s.queryRows(byRoom, roomID, limit)
}

// RoomInfo looks up a room in the threads table. Returns nil if the room
// is unknown. A malformed thread blob degrades to an empty map.
func (s *StoreDB) RoomInfo(roomID string) (*RoomInfo, error) {
	query := `
		SELECT t.thread, t.timestamp
		FROM threads t
		WHERE t.threadID = ?
		LIMIT 1
	`

	var threadJSON sql.NullString
	var lastActivity int64
	err := s.db.QueryRow(query, roomID).Scan(&threadJSON, &lastActivity)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query room info: %w", err)
	}

	info := &RoomInfo{
		RoomID:       roomID,
		ThreadData:   map[string]any{},
		LastActivity: lastActivity,
	}
	if threadJSON.Valid && threadJSON.String != "" {
		var data map[string]any
		if err := json.Unmarshal([]byte(threadJSON.String), &data); err == nil && data != nil {
			info.ThreadData = data
		}
	}
	return info, nil
}

// CountMessages returns the total row count of the messages table. Used by
// the connectivity self-test.
func (s *StoreDB) CountMessages() (int, error) {
	var count int
	err := s.db.QueryRow(`SELECT COUNT(*) FROM mx_room_messages`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count messages: %w", err)
	}
	return count, nil
}
