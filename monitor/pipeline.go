// Package monitor wires the protocol core's raw event stream into the
// observability surfaces: normalizing payload text and running the
// chatter detector before events reach the dashboard/TUI broker, the way
// cmd/sql-tapd's run() normalized and N+1-detected each event inline
// before publishing it.
package monitor

import (
	"fmt"
	"time"

	"github.com/ksugimoto/hislipd/chatter"
	"github.com/ksugimoto/hislipd/event"
	"github.com/ksugimoto/hislipd/textnorm"
)

// Pipeline decorates a downstream sink with normalization and chatter
// detection. It implements event.Sink itself, so it can be handed to
// server.New in place of the raw broker.
type Pipeline struct {
	next     event.Sink
	detector *chatter.Detector
	now      func() time.Time
}

// NewPipeline wraps next. detector may be nil to disable chatter detection.
func NewPipeline(next event.Sink, detector *chatter.Detector) *Pipeline {
	return &Pipeline{next: next, detector: detector, now: time.Now}
}

// Emit implements event.Sink.
func (p *Pipeline) Emit(ev event.Event) {
	if ev.Kind == event.DataIn || ev.Kind == event.DataOut {
		ev.Normalized = textnorm.Normalize(ev.Detail)
	}

	if p.detector != nil && ev.Kind == event.DataIn && ev.Normalized != "" {
		res := p.detector.Record(ev.SessionID, ev.Normalized, p.now())
		ev.Chatter = res.Matched
		if res.Alert != nil && p.next != nil {
			p.next.Emit(event.Event{
				Kind:       event.ChatterAlert,
				SessionID:  res.Alert.SessionID,
				SubAddress: ev.SubAddress,
				Detail:     fmt.Sprintf("%q repeated %d times", res.Alert.Payload, res.Alert.Count),
			})
		}
	}

	if p.next != nil {
		p.next.Emit(ev)
	}
}
