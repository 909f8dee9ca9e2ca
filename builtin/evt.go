package builtin

import (
	"github.com/joanet/controlplane/apiresult"
	"github.com/joanet/controlplane/events"
	"github.com/joanet/controlplane/plugins"
)

// Evt is the receiving endpoint for the event system: an API function
// an internal trigger (automation, a scheduled executor, another peer)
// calls to fan an event type out to every registered handler. Grounded
// on original_source/plugins/bfunc/evt.py.
type Evt struct {
	Bus *events.Bus
}

// NewEvt registers an Evt function backed by bus under name.
func NewEvt(bus *events.Bus, name string) {
	plugins.Register(name, &Evt{Bus: bus})
}

func (e *Evt) API(ctx *plugins.Context) apiresult.Result {
	if len(ctx.Args) < 1 {
		return apiresult.Msg("This event type is not registered!", true)
	}
	e.Bus.TriggerAll(ctx.Args[0])
	return apiresult.Msg("Dispatched `"+ctx.Args[0]+"`", true)
}

// Permissions always runs at an elevated level regardless of the
// router's default, since this function is only ever meant to be
// reached from internal triggers rather than an external caller.
func (e *Evt) Permissions(def int) int {
	return 100
}
