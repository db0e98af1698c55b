package servicetest

import (
	"context"
	"fmt"
	"sync"
	"time"

	"scriptslap-server/service"
	"scriptslap-server/workflow"
)

// Dispatcher records payloads and answers with Err when it is set.
type Dispatcher struct {
	mu       sync.Mutex
	Err      error
	payloads []workflow.Payload
}

func (d *Dispatcher) Dispatch(_ context.Context, p workflow.Payload) (*workflow.Receipt, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.payloads = append(d.payloads, p)
	if d.Err != nil {
		return nil, d.Err
	}
	return &workflow.Receipt{StatusCode: 200, Body: `{"message":"Workflow was started"}`}, nil
}

func (d *Dispatcher) Payloads() []workflow.Payload {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]workflow.Payload(nil), d.payloads...)
}

// Scheduled is one watchdog a Scheduler was asked for.
type Scheduled struct {
	Kind  string
	ID    string
	After time.Duration
}

// Scheduler records watchdog requests instead of enqueueing them.
type Scheduler struct {
	mu   sync.Mutex
	Jobs []Scheduled
}

func (s *Scheduler) ScheduleScriptWatchdog(_ context.Context, scriptID string, after time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Jobs = append(s.Jobs, Scheduled{Kind: service.TypeScriptWatchdog, ID: scriptID, After: after})
	return nil
}

func (s *Scheduler) ScheduleRefinementWatchdog(_ context.Context, refinementID string, after time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Jobs = append(s.Jobs, Scheduled{Kind: service.TypeRefinementWatchdog, ID: refinementID, After: after})
	return nil
}

// Guard is an in-process service.RequestGuard.
type Guard struct {
	mu   sync.Mutex
	held map[string]bool
}

func (g *Guard) Acquire(_ context.Context, key string, _ time.Duration) (func(), error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.held == nil {
		g.held = map[string]bool{}
	}
	if g.held[key] {
		return nil, service.ErrRequestInFlight
	}
	g.held[key] = true
	return func() {
		g.mu.Lock()
		defer g.mu.Unlock()
		delete(g.held, key)
	}, nil
}

// Hold takes key until the returned func is called.
func (g *Guard) Hold(key string) func() {
	release, err := g.Acquire(context.Background(), key, time.Minute)
	if err != nil {
		panic(err)
	}
	return release
}

// Object is one upload kept by ObjectStore.
type Object struct {
	ContentType  string
	DownloadName string
	Data         []byte
}

// ObjectStore keeps uploads in memory and returns fake download URLs.
type ObjectStore struct {
	mu      sync.Mutex
	Objects map[string]Object
	TTL     time.Duration
}

func (s *ObjectStore) Expiry() time.Duration {
	if s.TTL == 0 {
		return time.Hour
	}
	return s.TTL
}

func (s *ObjectStore) Put(_ context.Context, objectName, contentType, downloadName string, data []byte) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.Objects == nil {
		s.Objects = map[string]Object{}
	}
	s.Objects[objectName] = Object{ContentType: contentType, DownloadName: downloadName, Data: append([]byte(nil), data...)}
	return fmt.Sprintf("https://objects.test/%s", objectName), nil
}

var (
	_ service.Store             = (*MemoryStore)(nil)
	_ workflow.Dispatcher       = (*Dispatcher)(nil)
	_ service.WatchdogScheduler = (*Scheduler)(nil)
	_ service.RequestGuard      = (*Guard)(nil)
	_ service.ObjectStore       = (*ObjectStore)(nil)
)
