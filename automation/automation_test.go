package automation

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/joanet/controlplane/apiresult"
	"github.com/joanet/controlplane/device"
	"github.com/joanet/controlplane/plugins"
	"github.com/joanet/controlplane/router"
	"github.com/joanet/controlplane/scheduler"
)

type recordAction struct {
	calls []map[string]any
}

func (r *recordAction) API(ctx *plugins.Context) apiresult.Result {
	r.calls = append(r.calls, ctx.Body)
	return apiresult.Success(true)
}

func newTestRouter() *router.Router {
	return router.New(device.NewRegistry(), nil, nil)
}

func TestLoadDictVarResolvesDottedPath(t *testing.T) {
	data := map[string]any{"a": map[string]any{"b": 3.0}}
	v, ok := loadDictVar(data, "a.b")
	if !ok || v != 3.0 {
		t.Fatalf("loadDictVar = %v, %v", v, ok)
	}
}

func TestLoadDictVarMissingPathFails(t *testing.T) {
	if _, ok := loadDictVar(map[string]any{}, "a.b"); ok {
		t.Fatal("expected missing path to fail")
	}
}

func TestInjectVarsSubstitutesDeclaredTokens(t *testing.T) {
	a := New("t", time.Second, Clause{}, nil, Clause{}, newTestRouter(), nil)
	a.vars["$x"] = "42"
	if got := a.injectVars("value == $x"); got != "value == 42" {
		t.Fatalf("injectVars = %q", got)
	}
}

func TestCheckEvaluatesLiteralExpression(t *testing.T) {
	a := New("t", time.Second, Clause{}, nil, Clause{}, newTestRouter(), nil)
	ok, err := a.check(Clause{Check: "1 == 1"})
	if err != nil || !ok {
		t.Fatalf("check = %v, %v", ok, err)
	}
}

func TestCheckEmptyClauseNeverFires(t *testing.T) {
	a := New("t", time.Second, Clause{}, nil, Clause{}, newTestRouter(), nil)
	ok, err := a.check(Clause{})
	if err != nil || ok {
		t.Fatalf("check = %v, %v, want false, nil", ok, err)
	}
}

func TestTickFiresThenAndMovesToWaiting(t *testing.T) {
	action := &recordAction{}
	plugins.Register("automation-then-test", action)

	r := newTestRouter()
	then := []Action{{Path: "automation-then-test", Body: map[string]any{"k": "v"}}}
	a := New("tick-test", time.Second, Clause{Check: "1 == 1"}, then, Clause{Check: "1 == 2"}, r, nil)

	a.tick(time.Now())

	if len(action.calls) != 1 {
		t.Fatalf("then fired %d times, want 1", len(action.calls))
	}
	if a.state != StateWaiting {
		t.Fatalf("state = %v, want Waiting", a.state)
	}

	a.tick(time.Now())
	if len(action.calls) != 1 {
		t.Fatalf("then fired again while waiting: %d calls", len(action.calls))
	}
}

func TestTickReturnsToNormalWhenWaitSucceeds(t *testing.T) {
	action := &recordAction{}
	plugins.Register("automation-then-test-2", action)

	r := newTestRouter()
	then := []Action{{Path: "automation-then-test-2"}}
	a := New("tick-test-2", time.Second, Clause{Check: "1 == 1"}, then, Clause{Check: "1 == 1"}, r, nil)

	a.tick(time.Now())
	if a.state != StateWaiting {
		t.Fatal("expected Waiting after first tick")
	}
	a.tick(time.Now())
	if a.state != StateNormal {
		t.Fatal("expected Normal after wait clause succeeds")
	}
}

func TestLoadAllRegistersMatchingDeclarations(t *testing.T) {
	dir := t.TempDir()
	plugins.Register("automation-load-test", &recordAction{})

	writeAutomationFile(t, dir, "valid.json", map[string]any{
		"@type":     "automation",
		"title":     "valid-automation",
		"frequency": 1.0,
		"if":        map[string]any{"query": "", "check": "1 == 2"},
		"then":      []any{map[string]any{"path": "automation-load-test"}},
	})
	writeAutomationFile(t, dir, "other.json", map[string]any{"@type": "event"})

	s := scheduler.New(nil)
	r := newTestRouter()
	if err := LoadAll(dir, s, r, nil); err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if s.Len() != 1 {
		t.Fatalf("registered %d executors, want 1", s.Len())
	}
}

func TestLoadAllSkipsFileMissingTitleOrFrequency(t *testing.T) {
	dir := t.TempDir()
	writeAutomationFile(t, dir, "bad.json", map[string]any{
		"@type": "automation",
		"if":    map[string]any{},
		"then":  []any{},
	})

	s := scheduler.New(nil)
	r := newTestRouter()
	if err := LoadAll(dir, s, r, nil); err != nil {
		t.Fatalf("LoadAll: %v", err)
	}
	if s.Len() != 0 {
		t.Fatalf("registered %d executors, want 0", s.Len())
	}
}

func writeAutomationFile(t *testing.T, dir, name string, doc map[string]any) {
	t.Helper()
	b, err := json.Marshal(doc)
	if err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, name), b, 0o644); err != nil {
		t.Fatal(err)
	}
}
