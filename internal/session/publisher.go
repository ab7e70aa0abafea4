package session

import "github.com/robalobadob/wordrush/internal/game"

// Publisher receives the events of every committed transition. Publish is
// called with the session lock held and must not block.
type Publisher interface {
	Publish(sessionID string, events []game.Event)
}

// PublisherFunc adapts a function to Publisher.
type PublisherFunc func(sessionID string, events []game.Event)

func (f PublisherFunc) Publish(sessionID string, events []game.Event) { f(sessionID, events) }

// Discard drops every event.
var Discard Publisher = PublisherFunc(func(string, []game.Event) {})
