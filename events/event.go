// Package events implements the event bus: JSON declarations loaded from
// a directory, each with a type, a list of actions, and an optional time
// predicate. Triggering a type enqueues it for a worker goroutine, which
// fires every matching, currently-true event in registration order.
package events

import (
	"fmt"

	"github.com/joanet/controlplane/expr"
)

// Action is one (path, body) pair an Event fires when triggered,
// matching event.py's "then" entries.
type Action struct {
	Path string
	Body map[string]any
}

// Event is one loaded declaration.
type Event struct {
	Type  string
	Title string
	Then  []Action
	// Time is the raw, unsubstituted time predicate string, or empty if
	// the event always fires. Stored as the substitutable template the
	// same way event.py keeps `self._time` as a string with `$now`
	// and `$HH:MM[:SS]` tokens inside it.
	Time string
}

// CheckTime evaluates the event's time predicate against now's
// seconds-since-midnight. An event with no time predicate always
// matches.
func (e *Event) CheckTime(nowSeconds int) (bool, error) {
	if e.Time == "" {
		return true, nil
	}
	substituted, err := substituteTimeTokens(e.Time, nowSeconds)
	if err != nil {
		return false, fmt.Errorf("events: substitute time tokens for %q: %w", e.Title, err)
	}
	return expr.Eval(substituted)
}
