package enums

import "strings"

type Status string

const (
	StatusActive  Status = "active"
	StatusOffline Status = "offline"
)

func ParseStatus(raw string) (Status, bool) {
	switch Status(strings.ToLower(strings.TrimSpace(raw))) {
	case StatusActive:
		return StatusActive, true
	case StatusOffline:
		return StatusOffline, true
	default:
		return "", false
	}
}
