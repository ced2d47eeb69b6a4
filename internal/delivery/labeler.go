package delivery

import (
	"fmt"
	"strings"
	"unicode"
	"unicode/utf8"

	"commonwealth/internal/domain"
)

// EventLabel is the human-readable rendering of a chain event.
type EventLabel struct {
	Heading string
	Label   string
	LinkURL string
}

// ChainEventLabeler turns raw chain events into text. An empty Heading means
// the event has no user-facing rendering.
type ChainEventLabeler interface {
	Label(communityID string, event *domain.ChainEventData) EventLabel
}

// KindLabeler labels events from their "kind" field alone.
type KindLabeler struct{}

func (KindLabeler) Label(communityID string, event *domain.ChainEventData) EventLabel {
	if event == nil {
		return EventLabel{}
	}
	kind := event.Kind()
	if kind == "" {
		return EventLabel{}
	}

	heading := humanize(kind)
	network := event.Network
	if network == "" {
		network = communityID
	}
	return EventLabel{
		Heading: heading,
		Label:   fmt.Sprintf("%s %s at block %d", network, strings.ToLower(heading), event.BlockNumber),
	}
}

// humanize turns "proposal-created" into "Proposal Created".
func humanize(kind string) string {
	words := strings.FieldsFunc(kind, func(r rune) bool {
		return r == '-' || r == '_' || unicode.IsSpace(r)
	})
	for i, w := range words {
		r, size := utf8.DecodeRuneInString(w)
		words[i] = string(unicode.ToUpper(r)) + w[size:]
	}
	return strings.Join(words, " ")
}
