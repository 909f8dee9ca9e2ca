package builtin

import (
	"fmt"

	"github.com/joanet/controlplane/config"
	"github.com/joanet/controlplane/router"
)

// Plants is an interface-contract stub for the original's soil-moisture
// sensor. original_source/plugins/sensors/plants.py polls an
// Arduino over a serial port (termios line discipline setup, a
// check/read handshake) — concrete hardware I/O, out of scope here.
// This stub keeps the same Poll/To contract and the same
// numeric-string-keyed reading shape, sourcing its channel values from
// config ("plants.readings") instead of a serial port, so anything
// built against a "plants" sensor — automation checks, the default
// output composing a response — still has a real sensor to poll.
type Plants struct {
	Config *config.Store
	data   map[string]any
}

// NewPlantsSensorCtor returns a router.NewSensor bound to cfg, for
// router.RegisterSensor.
func NewPlantsSensorCtor(cfg *config.Store) router.NewSensor {
	return func() router.Sensor {
		return &Plants{Config: cfg}
	}
}

func (p *Plants) Poll(args []string) error {
	v, ok := p.Config.Get("plants.readings")
	if !ok {
		return fmt.Errorf("builtin: plants: no plants.readings configured")
	}
	readings, ok := v.([]any)
	if !ok {
		return fmt.Errorf("builtin: plants: plants.readings must be a list of numbers")
	}

	data := make(map[string]any, len(readings))
	for i, r := range readings {
		f, ok := r.(float64)
		if !ok {
			return fmt.Errorf("builtin: plants: reading %d is not a number", i)
		}
		data[fmt.Sprint(i)] = f
	}
	p.data = data
	return nil
}

func (p *Plants) To(out router.OutputDevice) {
	if p.data == nil {
		out.Set("alert", "alert")
		return
	}
	for k, v := range p.data {
		out.Set(k, v)
	}
}
