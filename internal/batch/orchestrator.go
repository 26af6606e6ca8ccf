package batch

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"time"

	"github.com/google/uuid"

	"video-mosaic/internal/logging"
	"video-mosaic/internal/metrics"
	"video-mosaic/internal/mosaic"
	"video-mosaic/internal/workers"
)

// Composer runs a single job. *mosaic.Engine implements it.
type Composer interface {
	ComposeMosaic(ctx context.Context, req mosaic.JobRequest, progress mosaic.ProgressFunc) (*mosaic.JobResult, error)
	ComposePreview(ctx context.Context, req mosaic.JobRequest, progress mosaic.ProgressFunc) (*mosaic.JobResult, error)
}

// PressureSignal reports host resource pressure. *memory.Monitor
// implements it.
type PressureSignal interface {
	IsPaused() bool
	ShouldThrottle() bool
}

// Options configures an Orchestrator.
type Options struct {
	// Pressure may be nil, in which case the limit stays at the budget.
	Pressure PressureSignal
	// Budget is the default concurrency budget for Submit calls that pass
	// zero. Zero uses workers.ForJobs.
	Budget int
	// TickInterval is how often the limit is re-evaluated against Pressure.
	TickInterval time.Duration
	// OnIdle, if set, is called in its own goroutine each time a batch
	// finishes.
	OnIdle func(State)
}

// State is a snapshot of the orchestrator's bookkeeping.
type State struct {
	Queued           int      `json:"queued"`
	InFlight         []string `json:"inFlight"`
	Completed        int      `json:"completed"`
	Failed           int      `json:"failed"`
	Skipped          int      `json:"skipped"`
	Cancelled        int      `json:"cancelled"`
	Processing       bool     `json:"processing"`
	ConcurrencyLimit int      `json:"concurrencyLimit"`
	Budget           int      `json:"budget"`
}

type jobState struct {
	req    mosaic.JobRequest
	cancel context.CancelFunc
	events *emitter
}

// Orchestrator schedules jobs onto a Composer.
type Orchestrator struct {
	composer Composer
	opts     Options
	log      logging.Logger
	events   *dispatcher

	cmds     chan func()
	closing  chan struct{}
	loopDone chan struct{}
	jobs     sync.WaitGroup

	startOnce sync.Once
	closeOnce sync.Once
	started   bool

	defaultMu  sync.Mutex
	defaultSub *subscriber

	stateMu  sync.RWMutex
	snapshot State

	// Owned by the loop goroutine.
	queue      []*jobState
	inFlight   map[string]*jobState
	order      []string
	counts     State
	processing bool
	limit      int
	budget     int
	paused     bool
	batchStart time.Time
}

// New returns an Orchestrator. Call Start before submitting jobs.
func New(composer Composer, opts Options) *Orchestrator {
	if opts.Budget <= 0 {
		opts.Budget = workers.ForJobs()
	}
	if opts.TickInterval <= 0 {
		opts.TickInterval = time.Second
	}
	o := &Orchestrator{
		composer: composer,
		opts:     opts,
		log:      logging.With("batch"),
		events:   newDispatcher(),
		cmds:     make(chan func()),
		closing:  make(chan struct{}),
		loopDone: make(chan struct{}),
		inFlight: make(map[string]*jobState),
		limit:    opts.Budget,
		budget:   opts.Budget,
	}
	o.publish()
	return o
}

// Start launches the scheduling goroutine. It is safe to call more than
// once.
func (o *Orchestrator) Start() {
	o.startOnce.Do(func() {
		o.started = true
		go o.loop()
	})
}

// Close cancels every job, waits for running jobs to return and closes all
// event channels.
func (o *Orchestrator) Close() {
	o.closeOnce.Do(func() {
		close(o.closing)
		o.startOnce.Do(func() {})
		if o.started {
			<-o.loopDone
		}
		o.jobs.Wait()
		o.events.close()
	})
}

// Events returns the shared event stream. The first call subscribes; events
// published before that are not replayed.
func (o *Orchestrator) Events() <-chan Event {
	o.defaultMu.Lock()
	defer o.defaultMu.Unlock()
	if o.defaultSub == nil {
		o.defaultSub = o.events.subscribe()
	}
	return o.defaultSub.out
}

// Subscribe returns a private event stream and a function that ends it.
func (o *Orchestrator) Subscribe() (<-chan Event, func()) {
	s := o.events.subscribe()
	return s.out, func() { o.events.unsubscribe(s) }
}

// State returns the latest bookkeeping snapshot.
func (o *Orchestrator) State() State {
	o.stateMu.RLock()
	defer o.stateMu.RUnlock()
	s := o.snapshot
	s.InFlight = append([]string(nil), s.InFlight...)
	return s
}

// Submit queues jobs and starts processing if idle. Jobs without an ID, or
// whose ID is already queued or running, get a random one. budget > 0
// replaces the concurrency budget. The returned IDs are in submission order.
func (o *Orchestrator) Submit(jobs []mosaic.JobRequest, budget int) []string {
	states := make([]*jobState, len(jobs))
	for i, req := range jobs {
		if req.ID == "" {
			req.ID = uuid.NewString()
		}
		states[i] = &jobState{
			req:    req,
			events: &emitter{jobID: req.ID, input: req.Input, d: o.events},
		}
	}

	done := make(chan struct{})
	if !o.do(func() { o.enqueue(states, budget); close(done) }) {
		o.log.Warn("Submit after Close: %d jobs dropped", len(jobs))
		for _, js := range states {
			js.events.emit(Event{Kind: EventCancelled, Err: errors.New("orchestrator closed")})
		}
	} else {
		<-done
	}

	ids := make([]string, len(states))
	for i, js := range states {
		ids[i] = js.req.ID
	}
	return ids
}

// CancelAll cancels every queued and running job.
func (o *Orchestrator) CancelAll() {
	o.do(o.cancelAll)
}

// CancelJob cancels one job. It returns false if the job is unknown or
// already finished.
func (o *Orchestrator) CancelJob(id string) bool {
	result := make(chan bool, 1)
	if !o.do(func() { result <- o.cancelJob(id) }) {
		return false
	}
	return <-result
}

// RunBatch submits jobs and streams the results of those that complete or
// are skipped. Every event for these jobs is passed to onProgress, which
// may be nil. Cancelling ctx cancels the jobs. The channel is closed once
// every job has reached a terminal state.
func (o *Orchestrator) RunBatch(ctx context.Context, jobs []mosaic.JobRequest, budget int, onProgress func(Event)) <-chan mosaic.JobResult {
	events, unsubscribe := o.Subscribe()
	ids := o.Submit(jobs, budget)

	pending := make(map[string]bool, len(ids))
	for _, id := range ids {
		pending[id] = true
	}

	out := make(chan mosaic.JobResult, len(ids))
	go func() {
		defer close(out)
		defer unsubscribe()

		ctxDone := ctx.Done()
		for len(pending) > 0 {
			select {
			case <-ctxDone:
				ctxDone = nil
				for id := range pending {
					o.CancelJob(id)
				}
			case ev, ok := <-events:
				if !ok {
					return
				}
				if !pending[ev.JobID] {
					continue
				}
				if onProgress != nil {
					onProgress(ev)
				}
				if !ev.Kind.Terminal() {
					continue
				}
				delete(pending, ev.JobID)
				if ev.Result != nil {
					out <- *ev.Result
				}
			}
		}
	}()
	return out
}

// do runs fn on the loop goroutine. It returns false once Close has begun.
func (o *Orchestrator) do(fn func()) bool {
	select {
	case <-o.closing:
		return false
	default:
	}
	select {
	case o.cmds <- fn:
		return true
	case <-o.closing:
		return false
	}
}

func (o *Orchestrator) loop() {
	defer close(o.loopDone)

	ticker := time.NewTicker(o.opts.TickInterval)
	defer ticker.Stop()

	for {
		select {
		case fn := <-o.cmds:
			fn()
		case <-ticker.C:
			o.adjust()
			o.schedule()
			o.publish()
		case <-o.closing:
			o.cancelAll()
			return
		}
	}
}

func (o *Orchestrator) enqueue(states []*jobState, budget int) {
	if budget <= 0 {
		budget = o.opts.Budget
	}
	if !o.processing {
		o.processing = true
		o.counts = State{}
		o.order = nil
		o.budget = budget
		o.limit = budget
		o.batchStart = time.Now()
		metrics.BatchesSubmitted.Inc()
		o.log.Info("Batch started with %d jobs, budget %d", len(states), budget)
	} else {
		o.budget = budget
		o.limit = min(o.limit, budget)
	}

	for _, js := range states {
		if o.known(js.req.ID) {
			fresh := uuid.NewString()
			o.log.Warn("Job id %q already in use, renamed to %s", js.req.ID, fresh)
			js.req.ID = fresh
			js.events.jobID = fresh
		}
		js.events.emit(Event{Kind: EventQueued})
		o.queue = append(o.queue, js)
	}

	o.schedule()
	o.maybeIdle()
	o.publish()
}

func (o *Orchestrator) known(id string) bool {
	if _, ok := o.inFlight[id]; ok {
		return true
	}
	for _, js := range o.queue {
		if js.req.ID == id {
			return true
		}
	}
	return false
}

// schedule starts queued jobs while there is room under the limit.
func (o *Orchestrator) schedule() {
	for len(o.queue) > 0 && len(o.inFlight) < o.limit {
		if o.opts.Pressure != nil && o.opts.Pressure.IsPaused() {
			if !o.paused {
				o.paused = true
				metrics.BatchPressureAdjustments.WithLabelValues("paused").Inc()
				o.log.Warn("Resource pressure critical, not starting new jobs (%d queued)", len(o.queue))
			}
			return
		}
		if o.paused {
			o.paused = false
			o.log.Info("Resource pressure relieved, resuming")
		}

		js := o.queue[0]
		o.queue[0] = nil
		o.queue = o.queue[1:]
		o.start(js)
	}
}

// adjust moves the limit in response to pressure. It never preempts
// running jobs.
func (o *Orchestrator) adjust() {
	if o.opts.Pressure == nil || !o.processing {
		return
	}
	switch {
	case o.opts.Pressure.IsPaused():
		// schedule refuses to start anything
	case o.opts.Pressure.ShouldThrottle():
		if o.limit > 1 {
			o.limit = max(1, o.limit/2)
			metrics.BatchPressureAdjustments.WithLabelValues("down").Inc()
			o.log.Info("Resource pressure high, concurrency limit lowered to %d", o.limit)
		}
	default:
		if o.limit < o.budget {
			o.limit++
			metrics.BatchPressureAdjustments.WithLabelValues("up").Inc()
			o.log.Debug("Concurrency limit raised to %d", o.limit)
		}
	}
}

func (o *Orchestrator) start(js *jobState) {
	ctx, cancel := context.WithCancel(context.Background())
	js.cancel = cancel
	o.inFlight[js.req.ID] = js
	o.order = append(o.order, js.req.ID)

	o.jobs.Add(1)
	go o.run(ctx, js)
}

// run executes one job on its own goroutine and reports back to the loop.
func (o *Orchestrator) run(ctx context.Context, js *jobState) {
	defer o.jobs.Done()

	var (
		res *mosaic.JobResult
		err error
	)
	func() {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("job panicked: %v", r)
				o.log.Error("Job %s panicked: %v\n%s", js.req.ID, r, debug.Stack())
			}
		}()
		progress := func(p mosaic.Progress) {
			js.events.emit(Event{Kind: EventProgress, Progress: &p})
		}
		if js.req.Preview {
			res, err = o.composer.ComposePreview(ctx, js.req, progress)
		} else {
			res, err = o.composer.ComposeMosaic(ctx, js.req, progress)
		}
	}()

	select {
	case o.cmds <- func() { o.finish(js, res, err) }:
	case <-o.closing:
	}
}

func (o *Orchestrator) finish(js *jobState, res *mosaic.JobResult, err error) {
	if o.inFlight[js.req.ID] != js {
		// Cancelled earlier; the slot is already free.
		return
	}
	delete(o.inFlight, js.req.ID)
	o.removeOrder(js.req.ID)
	js.cancel()

	switch {
	case err == nil && res != nil && res.Skipped:
		o.counts.Skipped++
		js.events.emit(Event{Kind: EventSkipped, Result: res})
	case err == nil:
		o.counts.Completed++
		js.events.emit(Event{Kind: EventCompleted, Result: res})
	case errors.Is(err, mosaic.ErrCancelled):
		o.counts.Cancelled++
		js.events.emit(Event{Kind: EventCancelled, Err: err})
	default:
		o.counts.Failed++
		o.log.Warn("Job %s (%s) failed: %v", js.req.ID, js.req.Input, err)
		js.events.emit(Event{Kind: EventFailed, Err: err})
	}

	o.schedule()
	o.maybeIdle()
	o.publish()
}

func (o *Orchestrator) abandon(js *jobState) {
	delete(o.inFlight, js.req.ID)
	o.removeOrder(js.req.ID)
	js.cancel()
	o.counts.Cancelled++
	js.events.emit(Event{Kind: EventCancelled, Err: mosaic.ErrCancelled})
}

func (o *Orchestrator) cancelAll() {
	n := len(o.inFlight) + len(o.queue)
	for _, id := range append([]string(nil), o.order...) {
		if js, ok := o.inFlight[id]; ok {
			o.abandon(js)
		}
	}
	for _, js := range o.queue {
		o.counts.Cancelled++
		js.events.emit(Event{Kind: EventCancelled, Err: mosaic.ErrCancelled})
	}
	o.queue = nil
	if n > 0 {
		o.log.Info("Cancelled %d jobs", n)
	}
	o.maybeIdle()
	o.publish()
}

func (o *Orchestrator) cancelJob(id string) bool {
	defer o.publish()
	if js, ok := o.inFlight[id]; ok {
		o.abandon(js)
		o.schedule()
		o.maybeIdle()
		return true
	}
	for i, js := range o.queue {
		if js.req.ID == id {
			o.queue = append(o.queue[:i], o.queue[i+1:]...)
			o.counts.Cancelled++
			js.events.emit(Event{Kind: EventCancelled, Err: mosaic.ErrCancelled})
			o.maybeIdle()
			return true
		}
	}
	return false
}

func (o *Orchestrator) removeOrder(id string) {
	for i, v := range o.order {
		if v == id {
			o.order = append(o.order[:i], o.order[i+1:]...)
			return
		}
	}
}

func (o *Orchestrator) maybeIdle() {
	if !o.processing || len(o.queue) > 0 || len(o.inFlight) > 0 {
		return
	}
	o.processing = false
	o.paused = false
	o.log.Info("Batch finished in %v: %d completed, %d skipped, %d failed, %d cancelled",
		time.Since(o.batchStart).Round(time.Millisecond),
		o.counts.Completed, o.counts.Skipped, o.counts.Failed, o.counts.Cancelled)

	if o.opts.OnIdle != nil {
		s := o.counts
		s.ConcurrencyLimit = o.limit
		s.Budget = o.budget
		go o.opts.OnIdle(s)
	}
}

// publish copies loop-owned state into the snapshot and gauges.
func (o *Orchestrator) publish() {
	s := o.counts
	s.Queued = len(o.queue)
	s.InFlight = append([]string{}, o.order...)
	s.Processing = o.processing
	s.ConcurrencyLimit = o.limit
	s.Budget = o.budget

	o.stateMu.Lock()
	o.snapshot = s
	o.stateMu.Unlock()

	metrics.BatchJobsQueued.Set(float64(s.Queued))
	metrics.BatchJobsInFlight.Set(float64(len(s.InFlight)))
	metrics.BatchConcurrencyLimit.Set(float64(s.ConcurrencyLimit))
}
