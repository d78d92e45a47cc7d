package beeper

import (
	"fmt"
	"strings"
)

// ThreadName derives a human-readable label for a room. Not guaranteed
// unique; purely cosmetic for downstream display.
func ThreadName(roomID string, network Network, sender map[string]any) string {
	switch network {
	case NetworkWhatsApp:
		// Prefer the contact or group name when the bridge resolved one
		if name := stringField(sender, "displayName"); name != "" {
			return "WhatsApp: " + name
		}
		if name := stringField(sender, "name"); name != "" {
			return "WhatsApp: " + name
		}
		return "WhatsApp Chat"

	case NetworkTelegram:
		if strings.Contains(roomID, "telegram_") {
			return "Telegram Bot/Channel"
		}
		return "Telegram Chat"

	case NetworkLinkedIn:
		return "LinkedIn Chat"

	case NetworkMatrix:
		return "Matrix/Beeper Chat"

	default:
		return fmt.Sprintf("Chat (%s...)", shortRoomID(roomID))
	}
}

// shortRoomID clips a room ID to its first 8 characters, rune-safe.
func shortRoomID(roomID string) string {
	runes := []rune(roomID)
	if len(runes) <= 8 {
		return roomID
	}
	return string(runes[:8])
}
