package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"video-mosaic/internal/batch"
	"video-mosaic/internal/logging"
	"video-mosaic/internal/metrics"
	"video-mosaic/internal/streaming"
)

// eventKeepAlive is how often a comment line is sent on an idle stream so
// proxies do not close it.
var eventKeepAlive = 15 * time.Second

// StreamEvents sends batch events as server-sent events until the client
// disconnects. ?job=<id> limits the stream to one job.
func (h *Handlers) StreamEvents(w http.ResponseWriter, r *http.Request) {
	jobFilter := r.URL.Query().Get("job")

	events, unsubscribe := h.batches.Subscribe()
	defer unsubscribe()

	ew, err := streaming.NewEventWriter(r.Context(), w, streaming.DefaultConfig())
	if err != nil {
		if errors.Is(err, streaming.ErrUnsupported) {
			writeJSONError(w, "Streaming not supported", http.StatusInternalServerError)
		}
		return
	}
	defer func() {
		n, bytes, d := ew.Stats()
		logging.Debug("Event stream closed after %v: %d events, %d bytes", d.Round(time.Millisecond), n, bytes)
		_ = ew.Close()
	}()

	metrics.EventStreamsOpen.Inc()
	defer metrics.EventStreamsOpen.Dec()

	keepAlive := time.NewTicker(eventKeepAlive)
	defer keepAlive.Stop()

	for {
		select {
		case <-ew.Done():
			return
		case <-keepAlive.C:
			if err := ew.Comment("ping"); err != nil {
				return
			}
		case ev, ok := <-events:
			if !ok {
				return
			}
			if jobFilter != "" && ev.JobID != jobFilter {
				continue
			}
			if err := writeEvent(ew, ev); err != nil {
				if !errors.Is(err, streaming.ErrClientGone) {
					logging.Debug("event stream write failed: %v", err)
				}
				return
			}
		}
	}
}

func writeEvent(ew *streaming.EventWriter, ev batch.Event) error {
	if ev.Err != nil && ev.Error == "" {
		ev.Error = ev.Err.Error()
	}
	data, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return ew.Send(ev.JobID, string(ev.Kind), data)
}
