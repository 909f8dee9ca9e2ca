package metrics_test

import (
	"sync"
	"testing"

	"github.com/joanet/controlplane/metrics"
)

func TestRecordRequest(t *testing.T) {
	m := metrics.New()
	m.RecordRequest(true)
	m.RecordRequest(true)
	m.RecordRequest(false)

	snap := m.Snapshot()
	if snap.RequestsTotal != 3 {
		t.Errorf("RequestsTotal: got %d, want 3", snap.RequestsTotal)
	}
	if snap.RequestsSuccess != 2 {
		t.Errorf("RequestsSuccess: got %d, want 2", snap.RequestsSuccess)
	}
	if snap.RequestsFailed != 1 {
		t.Errorf("RequestsFailed: got %d, want 1", snap.RequestsFailed)
	}
}

func TestConcurrentRecordRequest(t *testing.T) {
	m := metrics.New()
	const goroutines = 1000
	var wg sync.WaitGroup
	wg.Add(goroutines)
	for i := 0; i < goroutines; i++ {
		go func() {
			defer wg.Done()
			m.RecordRequest(true)
		}()
	}
	wg.Wait()

	snap := m.Snapshot()
	if snap.RequestsTotal != goroutines {
		t.Errorf("RequestsTotal: got %d, want %d", snap.RequestsTotal, goroutines)
	}
	if snap.RequestsSuccess != goroutines {
		t.Errorf("RequestsSuccess: got %d, want %d", snap.RequestsSuccess, goroutines)
	}
}

func TestGaugeSetters(t *testing.T) {
	m := metrics.New()
	m.SetDevicesRegistered(5)
	m.SetSchedulerExecutors(3)
	m.SetEventQueueDepth(7)

	snap := m.Snapshot()
	if snap.DevicesRegistered != 5 {
		t.Errorf("DevicesRegistered: got %d, want 5", snap.DevicesRegistered)
	}
	if snap.SchedulerExecutors != 3 {
		t.Errorf("SchedulerExecutors: got %d, want 3", snap.SchedulerExecutors)
	}
	if snap.EventQueueDepth != 7 {
		t.Errorf("EventQueueDepth: got %d, want 7", snap.EventQueueDepth)
	}
}
