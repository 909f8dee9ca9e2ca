package plugins_test

import (
	"testing"

	"github.com/joanet/controlplane/apiresult"
	"github.com/joanet/controlplane/plugins"
)

type echoFunc struct{}

func (echoFunc) API(ctx *plugins.Context) apiresult.Result {
	if len(ctx.Args) == 0 {
		return apiresult.Msg("no args", false)
	}
	return apiresult.Msg(ctx.Args[0], true)
}

type elevatedFunc struct{ echoFunc }

func (elevatedFunc) Permissions(def int) int { return 100 }

func TestRegisterAndInvoke(t *testing.T) {
	plugins.Register("echo-test", echoFunc{})

	res := plugins.Invoke("echo-test", &plugins.Context{Args: []string{"hello"}})
	if !res.Success {
		t.Fatal("expected success")
	}
	if msg, _ := res.JSON.(map[string]any)["message"].(string); msg != "hello" {
		t.Errorf("got message %v", res.JSON)
	}
}

func TestInvokeUnknownFunctionFails(t *testing.T) {
	res := plugins.Invoke("does-not-exist", &plugins.Context{})
	if res.Success {
		t.Error("expected failure for unknown function")
	}
}

func TestPermissionsOverride(t *testing.T) {
	plugins.Register("elevated-test", elevatedFunc{})
	if got := plugins.Permissions("elevated-test", 0); got != 100 {
		t.Errorf("Permissions = %d, want 100", got)
	}
	if got := plugins.Permissions("echo-test", 7); got != 7 {
		t.Errorf("Permissions for non-overriding func = %d, want default 7", got)
	}
	if got := plugins.Permissions("does-not-exist", 3); got != 3 {
		t.Errorf("Permissions for unknown func = %d, want default 3", got)
	}
}

func TestNamesIncludesRegistered(t *testing.T) {
	plugins.Register("names-test", echoFunc{})
	names := plugins.Names()
	found := false
	for _, n := range names {
		if n == "names-test" {
			found = true
		}
	}
	if !found {
		t.Errorf("Names() = %v, missing names-test", names)
	}
}
