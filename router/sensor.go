package router

import (
	"strings"
	"sync"
	"time"

	"github.com/joanet/controlplane/plugins"
)

// DefaultRepollInterval is how long a sensor's last poll stays valid
// before a new request triggers a fresh one, matching sensor.py's
// Sensor(repoll_after=5).
const DefaultRepollInterval = 5 * time.Second

// Sensor polls a physical or virtual data source and feeds the result
// into an OutputDevice. Grounded on
// original_source/src/backend/sensor.py's Sensor.
type Sensor interface {
	// Poll refreshes the sensor's data, given the path segments after
	// its own name.
	Poll(args []string) error
	// To renders the sensor's last-polled data into out.
	To(out OutputDevice)
}

// NewSensor constructs a fresh Sensor instance.
type NewSensor func() Sensor

var sensors = map[string]NewSensor{}

// live holds the single long-running Sensor instance for each registered
// name, so a throttled poll still renders the previous reading instead
// of a blank one, matching the original's module-level SENSORS dict of
// already-constructed instances.
var (
	liveMu sync.Mutex
	live   = map[string]Sensor{}
)

func liveSensor(name string, ctor NewSensor) Sensor {
	liveMu.Lock()
	defer liveMu.Unlock()
	if s, ok := live[name]; ok {
		return s
	}
	s := ctor()
	live[name] = s
	return s
}

// RegisterSensor adds a named sensor constructor.
func RegisterSensor(name string, ctor NewSensor) {
	sensors[strings.ToLower(name)] = ctor
}

// LookupSensor resolves name to its constructor, case-insensitively.
func LookupSensor(name string) (NewSensor, bool) {
	ctor, ok := sensors[strings.ToLower(name)]
	return ctor, ok
}

// SensorNames lists every registered sensor.
func SensorNames() []string {
	out := make([]string, 0, len(sensors))
	for name := range sensors {
		out = append(out, name)
	}
	return out
}

// pollAndRender polls name's sensor (throttled by guard to at most once
// per DefaultRepollInterval) and renders its data into out, mirroring
// sensor.py's tpoll/to sequence. A concurrent caller for the same sensor
// waits for the in-flight poll rather than triggering its own.
func pollAndRender(guard *plugins.PollGuard, name string, args []string, out OutputDevice) (Sensor, error) {
	ctor, ok := LookupSensor(name)
	if !ok {
		return nil, nil
	}
	inst := liveSensor(name, ctor)
	if _, err := guard.Poll(name, DefaultRepollInterval, func() error {
		return inst.Poll(args)
	}); err != nil {
		return inst, err
	}
	inst.To(out)
	return inst, nil
}

// QuerySensor polls name (throttled the same way a normal request would)
// and returns its rendered data as a plain map, for callers that need a
// sensor reading without going through Handle's path/segment pipeline —
// grounded on automation.py's Automation._query_sensor.
func (r *Router) QuerySensor(fargs []string, body map[string]any) map[string]any {
	if len(fargs) == 0 {
		return nil
	}
	out := DefaultOutput{data: map[string]any{}}
	if _, err := pollAndRender(r.Guard, fargs[0], fargs[1:], out); err != nil {
		return nil
	}
	return out.APIResp()
}
