package streaming

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Sentinel errors for streaming operations.
var (
	// ErrWriteTimeout indicates that a write did not complete within the
	// configured timeout, usually because the client stopped reading.
	ErrWriteTimeout = errors.New("write timeout exceeded")

	// ErrClientGone indicates that the client disconnected. This is detected
	// via the request context being canceled.
	ErrClientGone = errors.New("client disconnected")

	// ErrStreamCanceled indicates that the stream was closed with Close or
	// reached its maximum duration.
	ErrStreamCanceled = errors.New("stream canceled")

	// ErrUnsupported is returned when the response cannot be flushed.
	ErrUnsupported = errors.New("streaming not supported")
)

// Config configures an EventWriter.
type Config struct {
	// WriteTimeout bounds each event write. Zero disables the deadline.
	WriteTimeout time.Duration
	// MaxDuration ends the stream after this long (0 = unlimited).
	MaxDuration time.Duration
	// Retry, if set, is sent to the client as the reconnect delay.
	Retry time.Duration
}

// DefaultConfig returns a 10 second write timeout, no maximum duration and
// a 3 second reconnect hint.
func DefaultConfig() Config {
	return Config{
		WriteTimeout: 10 * time.Second,
		MaxDuration:  0,
		Retry:        3 * time.Second,
	}
}

// EventWriter writes server-sent events to an HTTP response. Each write is
// flushed immediately and bounded by a write deadline.
type EventWriter struct {
	w       http.ResponseWriter
	rc      *http.ResponseController
	flusher http.Flusher
	ctx     context.Context
	cancel  context.CancelFunc
	config  Config

	mu           sync.Mutex
	closed       bool
	startTime    time.Time
	bytesWritten int64
	events       int64
}

// NewEventWriter sets the event-stream headers, writes the status line and
// returns a writer bound to ctx, normally the request context.
func NewEventWriter(ctx context.Context, w http.ResponseWriter, config Config) (*EventWriter, error) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		return nil, ErrUnsupported
	}

	var writerCtx context.Context
	var cancel context.CancelFunc
	if config.MaxDuration > 0 {
		writerCtx, cancel = context.WithTimeout(ctx, config.MaxDuration)
	} else {
		writerCtx, cancel = context.WithCancel(ctx)
	}

	ew := &EventWriter{
		w:         w,
		rc:        http.NewResponseController(w),
		flusher:   flusher,
		ctx:       writerCtx,
		cancel:    cancel,
		config:    config,
		startTime: time.Now(),
	}

	h := w.Header()
	h.Set("Content-Type", "text/event-stream")
	h.Set("Cache-Control", "no-cache")
	h.Set("Connection", "keep-alive")
	h.Set("X-Accel-Buffering", "no")
	w.WriteHeader(http.StatusOK)

	preamble := ": connected\n\n"
	if config.Retry > 0 {
		preamble = fmt.Sprintf("retry: %d\n%s", config.Retry.Milliseconds(), preamble)
	}
	if err := ew.write(preamble); err != nil {
		cancel()
		return nil, err
	}
	return ew, nil
}

// Done is closed when the client goes away, the stream is closed or it
// reaches its maximum duration.
func (ew *EventWriter) Done() <-chan struct{} {
	return ew.ctx.Done()
}

// Send writes one event. Multi-line data is split into several data lines.
func (ew *EventWriter) Send(id, event string, data []byte) error {
	var b strings.Builder
	if id != "" {
		fmt.Fprintf(&b, "id: %s\n", oneLine(id))
	}
	if event != "" {
		fmt.Fprintf(&b, "event: %s\n", oneLine(event))
	}
	for _, line := range strings.Split(string(data), "\n") {
		fmt.Fprintf(&b, "data: %s\n", line)
	}
	b.WriteString("\n")

	if err := ew.write(b.String()); err != nil {
		return err
	}
	ew.mu.Lock()
	ew.events++
	ew.mu.Unlock()
	return nil
}

// Comment writes a comment line, used as a keep-alive.
func (ew *EventWriter) Comment(text string) error {
	return ew.write(": " + oneLine(text) + "\n\n")
}

func (ew *EventWriter) write(s string) error {
	ew.mu.Lock()
	closed := ew.closed
	ew.mu.Unlock()
	if closed {
		return ErrStreamCanceled
	}

	select {
	case <-ew.ctx.Done():
		return ew.contextError()
	default:
	}

	if ew.config.WriteTimeout > 0 {
		// Not every writer in a middleware chain supports deadlines; the
		// stream still works without one.
		_ = ew.rc.SetWriteDeadline(time.Now().Add(ew.config.WriteTimeout))
	}

	n, err := ew.w.Write([]byte(s))
	if err != nil {
		ew.cancel()
		if isTimeout(err) {
			return ErrWriteTimeout
		}
		return fmt.Errorf("%w: %v", ErrClientGone, err)
	}
	ew.flusher.Flush()

	ew.mu.Lock()
	ew.bytesWritten += int64(n)
	ew.mu.Unlock()
	return nil
}

// contextError returns an appropriate error based on context state
func (ew *EventWriter) contextError() error {
	ew.mu.Lock()
	closed := ew.closed
	ew.mu.Unlock()
	if !closed && errors.Is(ew.ctx.Err(), context.Canceled) {
		return ErrClientGone
	}
	return ErrStreamCanceled
}

// Close marks the writer as closed. Later writes return ErrStreamCanceled.
func (ew *EventWriter) Close() error {
	ew.mu.Lock()
	defer ew.mu.Unlock()

	if ew.closed {
		return nil
	}
	ew.closed = true
	ew.cancel()
	return nil
}

// Stats returns streaming statistics
func (ew *EventWriter) Stats() (events, bytesWritten int64, duration time.Duration) {
	ew.mu.Lock()
	defer ew.mu.Unlock()
	return ew.events, ew.bytesWritten, time.Since(ew.startTime)
}

func oneLine(s string) string {
	return strings.NewReplacer("\r", " ", "\n", " ").Replace(s)
}

func isTimeout(err error) bool {
	var te interface{ Timeout() bool }
	return errors.As(err, &te) && te.Timeout()
}
