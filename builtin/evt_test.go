package builtin

import (
	"testing"

	"github.com/joanet/controlplane/events"
	"github.com/joanet/controlplane/plugins"
)

func TestEvtAPIRequiresArg(t *testing.T) {
	e := &Evt{Bus: events.New(t.TempDir(), nil, nil)}
	res := e.API(&plugins.Context{Args: nil})
	if !res.Success {
		t.Fatal("missing event type is reported as a (successful) no-op, not a failure")
	}
}

func TestEvtAPIDispatchesTrigger(t *testing.T) {
	e := &Evt{Bus: events.New(t.TempDir(), nil, nil)}
	res := e.API(&plugins.Context{Args: []string{"SUNSET"}})
	if !res.Success {
		t.Fatalf("expected success, got %+v", res)
	}
}

func TestEvtPermissionsOverridesDefault(t *testing.T) {
	e := &Evt{}
	if got := e.Permissions(1); got != 100 {
		t.Fatalf("Permissions(1) = %d, want 100", got)
	}
}
