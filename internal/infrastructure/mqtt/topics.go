package mqtt

import "strings"

// Topics builds the per-station topic tree:
//
//	<prefix>/<station>/reading   every stored reading (not retained)
//	<prefix>/<station>/latest    newest reading (retained)
//	<prefix>/<station>/status    supervisor status and LWT (retained)
type Topics struct {
	base string
}

// NewTopics returns the topic builder for one station. The station name is
// reduced to a single topic level.
func NewTopics(prefix, station string) Topics {
	prefix = strings.Trim(prefix, "/")
	station = TopicSegment(station)
	if prefix == "" {
		return Topics{base: station}
	}
	return Topics{base: prefix + "/" + station}
}

// Reading returns the topic each stored reading is published to.
func (t Topics) Reading() string { return t.base + "/reading" }

// Latest returns the retained topic holding the newest reading.
func (t Topics) Latest() string { return t.base + "/latest" }

// Status returns the retained topic holding the supervisor status.
func (t Topics) Status() string { return t.base + "/status" }

// All matches every topic of the station.
func (t Topics) All() string { return t.base + "/#" }

// TopicSegment makes s safe for use as one topic level: separators and
// wildcards become underscores, and the result is lower case.
func TopicSegment(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	if s == "" {
		return "_"
	}
	return strings.Map(func(r rune) rune {
		switch r {
		case '/', '+', '#', ' ', '\t':
			return '_'
		}
		return r
	}, s)
}
