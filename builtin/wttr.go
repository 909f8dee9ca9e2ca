package builtin

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/joanet/controlplane/events"
	"github.com/joanet/controlplane/logger"
	"github.com/joanet/controlplane/router"
	"github.com/joanet/controlplane/scheduler"
)

// Wttr polls the public open-meteo forecast API for a fixed location,
// grounded on original_source/plugins/sensors/wttr.py. The original's
// StreamDeck branch — compositing a weather icon onto a physical
// display's image buffer — does not survive here: rendering to a
// specific piece of hardware is concrete device I/O, out of scope.
type Wttr struct {
	Client *http.Client
	Lat    float64
	Long   float64

	data map[string]any
}

const (
	wttrDefaultLat  = 48.9333
	wttrDefaultLong = 9.7444
)

// NewWttrSensor constructs a fresh Wttr at the default location,
// implementing router.NewSensor.
func NewWttrSensor() router.Sensor {
	return &Wttr{Client: http.DefaultClient, Lat: wttrDefaultLat, Long: wttrDefaultLong}
}

func init() {
	router.RegisterSensor("wttr", NewWttrSensor)
}

func (w *Wttr) Poll(args []string) error {
	if w.Client == nil {
		w.Client = http.DefaultClient
	}
	resp, err := w.Client.Get(wttrURL(w.Lat, w.Long))
	if err != nil {
		return fmt.Errorf("builtin: wttr poll: %w", err)
	}
	defer resp.Body.Close()

	var parsed struct {
		Current map[string]any `json:"current"`
		Daily   map[string]any `json:"daily"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return fmt.Errorf("builtin: wttr decode: %w", err)
	}

	data := make(map[string]any, len(parsed.Current)+1)
	for k, v := range parsed.Current {
		data[k] = v
	}
	if parsed.Daily != nil {
		data["daily"] = parsed.Daily
	}
	w.data = data
	return nil
}

func (w *Wttr) To(out router.OutputDevice) {
	if w.data == nil {
		return
	}
	out.Set("wttr", w.data)
}

func wttrURL(lat, long float64) string {
	return fmt.Sprintf(
		"https://api.open-meteo.com/v1/forecast?latitude=%g&longitude=%g&"+
			"current=temperature_2m,relative_humidity_2m,is_day,rain,showers,snowfall,weather_code,cloud_cover&"+
			"daily=sunset&timeformat=unixtime&timezone=Europe%%2FBerlin&forecast_days=1",
		lat, long)
}

// SundownMaker fires an internal SUNSET event each day at the moment
// the day's forecast says the sun actually sets: a Daily executor polls
// the forecast once a day, reads back the predicted sunset time, and
// schedules a one-shot Unix executor for that exact instant. Grounded
// on original_source/plugins/sensors/wttr.py's SundownMaker.
type SundownMaker struct {
	Scheduler *scheduler.Scheduler
	Bus       *events.Bus
	Client    *http.Client
	Log       *logger.Logger
}

// NewSundownMaker registers the daily executor that drives
// SundownMaker, at the given time of day (hour/minute/second, local
// time), on sched.
func NewSundownMaker(sched *scheduler.Scheduler, bus *events.Bus, log *logger.Logger, hour, minute, second int) *SundownMaker {
	sm := &SundownMaker{Scheduler: sched, Bus: bus, Client: http.DefaultClient, Log: log}
	sched.Register(scheduler.NewDaily("sundown-maker", hour, minute, second, func(time.Time) {
		sm.onTrigger()
	}))
	return sm
}

func (sm *SundownMaker) onTrigger() {
	wttr := &Wttr{Client: sm.Client, Lat: wttrDefaultLat, Long: wttrDefaultLong}
	if err := wttr.Poll(nil); err != nil {
		if sm.Log != nil {
			sm.Log.Errorf("builtin: sundown maker: %v", err)
		}
		return
	}

	daily, ok := wttr.data["daily"].(map[string]any)
	if !ok {
		if sm.Log != nil {
			sm.Log.Errorf("builtin: sundown maker: could not retrieve today's sunset")
		}
		return
	}
	sunsets, ok := daily["sunset"].([]any)
	if !ok || len(sunsets) == 0 {
		if sm.Log != nil {
			sm.Log.Errorf("builtin: sundown maker: could not retrieve today's sunset")
		}
		return
	}
	unix, ok := sunsets[0].(float64)
	if !ok {
		if sm.Log != nil {
			sm.Log.Errorf("builtin: sundown maker: could not retrieve today's sunset")
		}
		return
	}

	sm.Scheduler.Register(scheduler.NewUnix("sundown-maker-fire", time.Unix(int64(unix), 0), func(time.Time) {
		sm.Bus.TriggerAll("SUNSET")
	}))
}
