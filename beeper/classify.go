package beeper

import "strings"

// ParseNetwork maps a platform-name hint onto the Network enumeration.
// Unrecognized hints collapse to NetworkUnknown so emitted messages never
// carry an arbitrary network value.
func ParseNetwork(hint string) Network {
	switch Network(strings.ToLower(strings.TrimSpace(hint))) {
	case NetworkWhatsApp:
		return NetworkWhatsApp
	case NetworkTelegram:
		return NetworkTelegram
	case NetworkLinkedIn:
		return NetworkLinkedIn
	case NetworkMatrix:
		return NetworkMatrix
	default:
		return NetworkUnknown
	}
}

// ClassifyNetwork infers the bridged network from a sender contact ID, with
// the account platform name as the default before substring overrides.
// First match wins; the "local-whatsapp" branch is unreachable after the
// "whatsapp" check but is kept to mirror the bridge's own ordering.
func ClassifyNetwork(senderID, platformHint string) Network {
	network := NetworkUnknown
	if platformHint != "" {
		network = ParseNetwork(platformHint)
	}

	if senderID == "" {
		return network
	}

	id := strings.ToLower(senderID)
	switch {
	case strings.Contains(id, "whatsapp"):
		return NetworkWhatsApp
	case strings.Contains(id, "telegram"):
		return NetworkTelegram
	case strings.Contains(id, "linkedin"):
		return NetworkLinkedIn
	case strings.Contains(id, "beeper.com"):
		return NetworkMatrix
	case strings.Contains(id, "local-whatsapp"):
		return NetworkWhatsApp
	}

	return network
}
