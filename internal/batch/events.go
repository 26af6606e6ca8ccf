package batch

import (
	"sync"
	"time"

	"video-mosaic/internal/mosaic"
)

// EventKind is the type of an orchestrator event.
type EventKind string

const (
	EventQueued    EventKind = "queued"
	EventProgress  EventKind = "progress"
	EventCompleted EventKind = "completed"
	EventFailed    EventKind = "failed"
	EventCancelled EventKind = "cancelled"
	EventSkipped   EventKind = "skipped"
)

// Terminal reports whether no further events follow for the job.
func (k EventKind) Terminal() bool {
	switch k {
	case EventCompleted, EventFailed, EventCancelled, EventSkipped:
		return true
	}
	return false
}

// Event is a job state change or progress update.
type Event struct {
	JobID    string            `json:"jobId"`
	Kind     EventKind         `json:"kind"`
	Input    string            `json:"input,omitempty"`
	Progress *mosaic.Progress  `json:"progress,omitempty"`
	Result   *mosaic.JobResult `json:"result,omitempty"`
	Err      error             `json:"-"`
	Error    string            `json:"error,omitempty"`
	Time     time.Time         `json:"time"`
}

// dispatcher fans events out to subscribers, each with its own unbounded
// ordered queue so a slow reader never blocks scheduling.
type dispatcher struct {
	mu     sync.Mutex
	subs   map[*subscriber]struct{}
	closed bool
}

func newDispatcher() *dispatcher {
	return &dispatcher{subs: make(map[*subscriber]struct{})}
}

func (d *dispatcher) publish(ev Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	for s := range d.subs {
		s.push(ev)
	}
}

func (d *dispatcher) subscribe() *subscriber {
	s := &subscriber{
		out:  make(chan Event),
		stop: make(chan struct{}),
	}
	s.cond = sync.NewCond(&s.mu)

	d.mu.Lock()
	if d.closed {
		s.closed = true
	} else {
		d.subs[s] = struct{}{}
	}
	d.mu.Unlock()

	go s.run()
	return s
}

func (d *dispatcher) unsubscribe(s *subscriber) {
	d.mu.Lock()
	delete(d.subs, s)
	d.mu.Unlock()
	s.cancel()
}

// close lets every subscriber drain what it has and then closes its channel.
func (d *dispatcher) close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.closed = true
	for s := range d.subs {
		s.finish()
		delete(d.subs, s)
	}
}

type subscriber struct {
	mu     sync.Mutex
	cond   *sync.Cond
	queue  []Event
	closed bool

	out      chan Event
	stop     chan struct{}
	stopOnce sync.Once
}

func (s *subscriber) push(ev Event) {
	s.mu.Lock()
	s.queue = append(s.queue, ev)
	s.mu.Unlock()
	s.cond.Signal()
}

func (s *subscriber) finish() {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.cond.Signal()
}

func (s *subscriber) cancel() {
	s.stopOnce.Do(func() { close(s.stop) })
	s.finish()
}

func (s *subscriber) run() {
	defer close(s.out)
	for {
		s.mu.Lock()
		for len(s.queue) == 0 && !s.closed {
			s.cond.Wait()
		}
		if len(s.queue) == 0 {
			s.mu.Unlock()
			return
		}
		ev := s.queue[0]
		s.queue[0] = Event{}
		s.queue = s.queue[1:]
		s.mu.Unlock()

		select {
		case s.out <- ev:
		case <-s.stop:
			return
		}
	}
}

// emitter serializes one job's events and drops anything after its
// terminal event.
type emitter struct {
	mu       sync.Mutex
	jobID    string
	input    string
	d        *dispatcher
	terminal bool
}

func (e *emitter) emit(ev Event) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.terminal {
		return false
	}
	ev.JobID = e.jobID
	ev.Input = e.input
	if ev.Time.IsZero() {
		ev.Time = time.Now()
	}
	if ev.Err != nil && ev.Error == "" {
		ev.Error = ev.Err.Error()
	}
	e.terminal = ev.Kind.Terminal()
	e.d.publish(ev)
	return true
}
