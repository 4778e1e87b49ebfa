package service

import (
	"strings"
	"unicode/utf8"

	"github.com/rs/xid"
)

// newTrackingID builds the short human-quotable identifier printed on
// acknowledgement slips: one type prefix letter plus an 8-character tail
// drawn from a fresh xid. The prefix is the event type's first rune so
// non-ASCII type names stay intact. Collisions are possible and handled by
// the store's unique index plus regeneration.
func newTrackingID(eventType string) string {
	prefix := "E"
	if r, _ := utf8.DecodeRuneInString(eventType); r != utf8.RuneError {
		prefix = strings.ToUpper(string(r))
	}
	raw := xid.New().String()
	return prefix + strings.ToUpper(raw[len(raw)-8:])
}
