package tui

import (
	"strconv"
	"strings"
)

type filterKind int

const (
	filterText    filterKind = iota // plain text substring match
	filterKindTag                   // kind:data-in, kind:trigger, etc.
	filterSession                   // session:3
	filterChatter                   // "chatter" keyword
)

type filterCondition struct {
	kindTag filterKind

	text      string
	eventKind string
	sessionID uint16
}

func parseFilter(input string) []filterCondition {
	tokens := strings.Fields(input)
	conds := make([]filterCondition, 0, len(tokens))

	for _, tok := range tokens {
		lower := strings.ToLower(tok)
		switch {
		case lower == "chatter":
			conds = append(conds, filterCondition{kindTag: filterChatter})
		case strings.HasPrefix(lower, "kind:"):
			conds = append(conds, filterCondition{kindTag: filterKindTag, eventKind: lower[len("kind:"):]})
		case strings.HasPrefix(lower, "session:"):
			if n, err := strconv.ParseUint(lower[len("session:"):], 10, 16); err == nil {
				conds = append(conds, filterCondition{kindTag: filterSession, sessionID: uint16(n)})
			}
		default:
			conds = append(conds, filterCondition{kindTag: filterText, text: lower})
		}
	}
	return conds
}

func (c filterCondition) matches(ev wireEvent) bool {
	switch c.kindTag {
	case filterText:
		return strings.Contains(strings.ToLower(ev.Detail), c.text) ||
			strings.Contains(strings.ToLower(ev.Normalized), c.text)
	case filterKindTag:
		return ev.Kind == c.eventKind
	case filterSession:
		return ev.SessionID == c.sessionID
	case filterChatter:
		return ev.Chatter
	}
	return false
}

func matchAllConditions(ev wireEvent, conds []filterCondition) bool {
	for _, c := range conds {
		if !c.matches(ev) {
			return false
		}
	}
	return true
}

func describeFilter(input string) string {
	conds := parseFilter(input)
	if len(conds) == 0 {
		return input
	}
	parts := make([]string, 0, len(conds))
	for _, c := range conds {
		switch c.kindTag {
		case filterText:
			parts = append(parts, "text:"+c.text)
		case filterKindTag:
			parts = append(parts, "kind:"+c.eventKind)
		case filterSession:
			parts = append(parts, "session:"+strconv.Itoa(int(c.sessionID)))
		case filterChatter:
			parts = append(parts, "chatter")
		}
	}
	return strings.Join(parts, " ")
}
