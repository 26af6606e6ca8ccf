/*
Package streaming writes server-sent events to HTTP clients with timeout
protection.

# Overview

Event streams stay open for as long as a client watches a batch, so the
server runs with no global write timeout. EventWriter puts a deadline on
each write instead, so a client that stops reading is detected and the
handler returns rather than blocking the subscriber forever.

# Usage

	func (h *Handlers) StreamEvents(w http.ResponseWriter, r *http.Request) {
		ew, err := streaming.NewEventWriter(r.Context(), w, streaming.DefaultConfig())
		if err != nil {
			return
		}
		defer ew.Close()

		for {
			select {
			case <-ew.Done():
				return
			case ev := <-events:
				if err := ew.Send(ev.ID, ev.Kind, ev.Data); err != nil {
					return
				}
			}
		}
	}

# Wire Format

NewEventWriter sets the event-stream headers and writes an optional retry
hint followed by a ": connected" comment. Send writes id, event and data
fields followed by a blank line; data containing newlines is split across
several data lines. Newlines in id and event are replaced with spaces.
Comment writes a comment line, which clients ignore, for keep-alives.

# Deadlines

Write deadlines are set through http.ResponseController, so every wrapper
between the server and the handler must implement Unwrap. Wrappers that
do not simply leave the stream without a deadline.

# Errors

  - ErrClientGone: the request context ended or a write failed
  - ErrWriteTimeout: a write exceeded WriteTimeout
  - ErrStreamCanceled: Close was called or MaxDuration elapsed
  - ErrUnsupported: the ResponseWriter cannot flush
*/
package streaming
