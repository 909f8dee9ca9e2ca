// Package automation implements IF/THEN/WAIT declarations that tick on
// their own schedule, check a boolean expression against live sensor
// data, fire a list of actions, then wait for a second expression before
// returning to the normal state. Grounded on
// original_source/src/backend/automation.py.
package automation

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/joanet/controlplane/expr"
	"github.com/joanet/controlplane/logger"
	"github.com/joanet/controlplane/router"
	"github.com/joanet/controlplane/scheduler"
)

// State is the two-state machine an Automation cycles through: it checks
// If while Normal, and once If fires it checks Wait until Wait is also
// true, matching automation.py's AutomationState.
type State int

const (
	StateNormal State = iota
	StateWaiting
)

// Clause is one "if" or "wait" block: a set of sensor paths to query and
// a boolean expression to evaluate once their data (and any declared
// $vars) are loaded.
type Clause struct {
	Query string
	Check string
	Body  map[string]any
}

// Action is one "then" entry: a dotted backend-function path plus the
// body to call it with, matching event.py's/automation.py's "then"
// entries.
type Action struct {
	Path string
	Body map[string]any
}

// Automation is one loaded declaration, ticking on its own schedule.
type Automation struct {
	title     string
	frequency time.Duration
	ifClause  Clause
	then      []Action
	wait      Clause

	r   *router.Router
	log *logger.Logger

	mu    sync.Mutex
	state State
	vars  map[string]string
}

// New constructs an Automation from its decoded JSON fields, to be
// ticked through r via the scheduler.
func New(title string, frequency time.Duration, ifClause Clause, then []Action, wait Clause, r *router.Router, log *logger.Logger) *Automation {
	if log == nil {
		log = logger.New(logger.LevelInfo)
	}
	return &Automation{
		title:     title,
		frequency: frequency,
		ifClause:  ifClause,
		then:      then,
		wait:      wait,
		r:         r,
		log:       log,
		state:     StateNormal,
		vars:      map[string]string{},
	}
}

// Title identifies this automation for logging and scheduler IDs.
func (a *Automation) Title() string { return a.title }

// Frequency is how often the automation's scheduled tick fires.
func (a *Automation) Frequency() time.Duration { return a.frequency }

// injectVars replaces every declared $var token in s with its current
// string value, matching automation.py's _inject_vars.
func (a *Automation) injectVars(s string) string {
	for k, v := range a.vars {
		s = strings.ReplaceAll(s, k, v)
	}
	return s
}

// loadVars pulls every "$name" key out of body and resolves its dotted
// path against result, matching automation.py's _load_vars and
// utils.load_dict_var.
func (a *Automation) loadVars(body map[string]any, result map[string]any) {
	for k, v := range body {
		if !strings.HasPrefix(k, "$") {
			continue
		}
		path, ok := v.(string)
		if !ok {
			continue
		}
		val, ok := loadDictVar(result, path)
		if !ok {
			continue
		}
		a.vars[k] = fmt.Sprint(val)
	}
}

// loadDictVar walks a dotted path through nested maps, mirroring
// payload.flattenSchema's dot-path walk and utils.load_dict_var.
func loadDictVar(dct map[string]any, path string) (any, bool) {
	var cur any = dct
	for _, p := range strings.Split(path, ".") {
		m, ok := cur.(map[string]any)
		if !ok {
			return nil, false
		}
		cur, ok = m[p]
		if !ok {
			return nil, false
		}
	}
	return cur, true
}

// check evaluates one clause: every "/"-delimited sensor path in Query is
// polled into a combined result map, any declared $vars are resolved
// against it, and Check (after $var substitution) is evaluated as a
// boolean expression.
func (a *Automation) check(c Clause) (bool, error) {
	if c.Check == "" {
		return false, nil
	}

	result := map[string]any{}
	for _, seg := range strings.Split(c.Query, "/") {
		if seg == "" {
			continue
		}
		fargs := strings.Split(seg, ".")
		data := a.r.QuerySensor(fargs, c.Body)
		for k, v := range data {
			result[k] = v
		}
	}

	a.loadVars(c.Body, result)

	return expr.Eval(a.injectVars(c.Check))
}

// runThen fires every action in the "then" list, substituting $vars into
// each string-valued body field first, matching automation.py's then.
func (a *Automation) runThen() {
	for _, action := range a.then {
		body := make(map[string]any, len(action.Body))
		for k, v := range action.Body {
			if s, ok := v.(string); ok {
				body[k] = a.injectVars(s)
			} else {
				body[k] = v
			}
		}
		for _, seg := range strings.Split(action.Path, "/") {
			if seg == "" {
				continue
			}
			if err := a.r.ExecuteLocal(seg, body); err != nil {
				a.log.Errorf("automation %q: action %q failed: %v", a.title, seg, err)
			}
		}
	}
}

// tick advances the automation's state machine by one step: check If
// while Normal, fire Then and move to Waiting on success; check Wait
// while Waiting, return to Normal on success.
func (a *Automation) tick(t time.Time) {
	a.mu.Lock()
	defer a.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			a.log.Errorf("automation %q: tick panicked: %v", a.title, r)
		}
	}()

	switch a.state {
	case StateNormal:
		ok, err := a.check(a.ifClause)
		if err != nil {
			a.log.Errorf("automation %q: check if: %v", a.title, err)
			return
		}
		if ok {
			a.runThen()
			a.state = StateWaiting
		}
	case StateWaiting:
		ok, err := a.check(a.wait)
		if err != nil {
			a.log.Errorf("automation %q: check wait: %v", a.title, err)
			return
		}
		if ok {
			a.state = StateNormal
		}
	}
}

// RegisterWith installs a's tick as a scheduler.Timed executor, reusing
// the scheduler's own periodic-callback mechanism instead of a bespoke
// ticking loop.
func (a *Automation) RegisterWith(s *scheduler.Scheduler) {
	s.Register(scheduler.NewTimed(a.title, a.frequency, a.tick))
}

// LoadAll reads every "@type":"automation" JSON file in dir, builds an
// Automation for each, and registers it with s. Malformed or
// non-matching files are skipped and logged, matching automation.py's
// load_all/_load_by_str.
func LoadAll(dir string, s *scheduler.Scheduler, r *router.Router, log *logger.Logger) error {
	if log == nil {
		log = logger.New(logger.LevelInfo)
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("automation: read dir %q: %w", dir, err)
	}

	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		path := filepath.Join(dir, entry.Name())
		a, ok, err := loadFile(path, r, log)
		if err != nil {
			log.Errorf("automation: load %s: %v", entry.Name(), err)
			continue
		}
		if !ok {
			continue
		}
		a.RegisterWith(s)
		log.Debugf("automation: loaded %q", a.title)
	}
	return nil
}

func loadFile(path string, r *router.Router, log *logger.Logger) (*Automation, bool, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, false, err
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, false, err
	}
	if doc["@type"] != "automation" {
		return nil, false, nil
	}

	title, _ := doc["title"].(string)
	freq, _ := doc["frequency"].(float64)
	ifClause := decodeClause(doc["if"])
	waitClause := decodeClause(doc["wait"])

	var then []Action
	if list, ok := doc["then"].([]any); ok {
		for _, item := range list {
			m, ok := item.(map[string]any)
			if !ok {
				continue
			}
			body, _ := m["body"].(map[string]any)
			path, _ := m["path"].(string)
			then = append(then, Action{Path: path, Body: body})
		}
	}

	if title == "" || freq <= 0 {
		return nil, false, fmt.Errorf("automation: missing title or frequency")
	}

	a := New(title, time.Duration(freq*float64(time.Second)), ifClause, then, waitClause, r, log)
	return a, true, nil
}

func decodeClause(v any) Clause {
	m, ok := v.(map[string]any)
	if !ok {
		return Clause{}
	}
	query, _ := m["query"].(string)
	check, _ := m["check"].(string)
	body, _ := m["body"].(map[string]any)
	return Clause{Query: query, Check: check, Body: body}
}
