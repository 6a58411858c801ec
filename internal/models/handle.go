package models

import "strings"

// HandlePrefix marks a scanned user handle, e.g. "netpulse:user:anna".
const HandlePrefix = "netpulse:user:"

// HandlePayload encodes a username the way QR codes carry it.
func HandlePayload(username string) string {
	return HandlePrefix + username
}

// ParseHandle strips the recognized handle prefix. Input without the prefix is
// returned trimmed.
func ParseHandle(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if len(trimmed) >= len(HandlePrefix) && strings.EqualFold(trimmed[:len(HandlePrefix)], HandlePrefix) {
		return strings.TrimSpace(trimmed[len(HandlePrefix):])
	}
	return trimmed
}
