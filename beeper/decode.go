package beeper

import (
	"database/sql"
	"encoding/json"
	"strings"
)

// parseJSONMap decodes a JSON object column into a generic map. Absent,
// empty, or malformed blobs degrade to an empty map; this never fails.
func parseJSONMap(col sql.NullString) map[string]any {
	if !col.Valid || col.String == "" {
		return map[string]any{}
	}
	var m map[string]any
	if err := json.Unmarshal([]byte(col.String), &m); err != nil || m == nil {
		return map[string]any{}
	}
	return m
}

// stringField returns the payload value for key when it is a non-empty
// string, else "".
func stringField(m map[string]any, key string) string {
	if v, ok := m[key].(string); ok {
		return v
	}
	return ""
}

// textRule is one step of the text-extraction fallback chain. Rules are
// total: a missing field yields "" and the next rule is tried.
type textRule func(row RawRow, payload map[string]any) string

var textRules = []textRule{
	func(row RawRow, _ map[string]any) string { return row.TextContent.String },
	func(row RawRow, _ map[string]any) string { return row.FormattedContent.String },
	func(_ RawRow, payload map[string]any) string { return stringField(payload, "text") },
	func(_ RawRow, payload map[string]any) string { return stringField(payload, "body") },
	func(_ RawRow, payload map[string]any) string { return stringField(payload, "filename") },
	func(_ RawRow, payload map[string]any) string {
		if len(payload) == 0 {
			return ""
		}
		raw, err := json.Marshal(payload)
		if err != nil {
			return ""
		}
		return string(raw)
	},
}

// extractText resolves the message body, trying the pre-extracted columns,
// then well-known payload keys, then the stringified payload itself.
func extractText(row RawRow, payload map[string]any) string {
	for _, rule := range textRules {
		if text := rule(row, payload); text != "" {
			return text
		}
	}
	return ""
}

// senderNameKeys are tried in order against the sender-metadata blob.
var senderNameKeys = []string{"displayName", "name", "username"}

func extractSenderName(sender map[string]any, senderID string) string {
	for _, key := range senderNameKeys {
		if name := stringField(sender, key); name != "" {
			return name
		}
	}
	return senderID
}

// DecodeRow normalizes one raw store row into a Message. The second return
// is false when the row has no extractable non-whitespace text; such rows
// are skipped, not errors. DecodeRow never fails on malformed payloads.
func DecodeRow(row RawRow) (*Message, bool) {
	payload := parseJSONMap(row.MessageJSON)

	text := extractText(row, payload)
	if strings.TrimSpace(text) == "" {
		return nil, false
	}

	senderID := row.SenderContactID.String
	sender := parseJSONMap(row.SenderUserJSON)
	network := ClassifyNetwork(senderID, row.PlatformName.String)

	msg := &Message{
		RoomID:            row.RoomID,
		ThreadID:          row.RoomID, // the store has no separate thread concept
		ThreadName:        ThreadName(row.RoomID, network, sender),
		SenderID:          senderID,
		SenderName:        extractSenderName(sender, senderID),
		Network:           network,
		Text:              text,
		Timestamp:         row.Timestamp,
		EventID:           row.EventID,
		MessageType:       row.Type,
		IsSentByMe:        row.IsSentByMe,
		IsEncrypted:       row.IsEncrypted,
		IsReply:           row.InReplyToID.Valid && row.InReplyToID.String != "",
		ReplyToID:         row.InReplyToID.String,
		HumanTime:         HumanTime(row.Timestamp),
		RawMessagePayload: payload,
		RawSenderPayload:  sender,
	}
	return msg, true
}
