package events

import (
	"sync"

	"github.com/ridgeline-io/ridgeline/pkg/log"
)

// defaultCapacity bounds the recorder when no capacity is given
const defaultCapacity = 256

// Recorder retains the most recent lifecycle events for listing through the
// API. It subscribes to the broker on construction and keeps a bounded
// buffer, evicting the oldest events past capacity.
type Recorder struct {
	broker *Broker
	sub    Subscriber

	mu  sync.Mutex
	buf []*Event
	max int
}

// NewRecorder subscribes to the broker and starts recording
func NewRecorder(broker *Broker, capacity int) *Recorder {
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	r := &Recorder{
		broker: broker,
		sub:    broker.Subscribe(),
		max:    capacity,
	}
	go r.run()
	return r
}

func (r *Recorder) run() {
	for event := range r.sub {
		r.Record(event)
	}
}

// Record appends one event, evicting the oldest past capacity
func (r *Recorder) Record(event *Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.buf = append(r.buf, event)
	if len(r.buf) > r.max {
		r.buf = r.buf[len(r.buf)-r.max:]
	}
}

// Events returns recorded events newest first, optionally filtered by cluster
// name. A limit of 0 returns everything retained.
func (r *Recorder) Events(cluster string, limit int) []*Event {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*Event, 0, len(r.buf))
	for i := len(r.buf) - 1; i >= 0; i-- {
		event := r.buf[i]
		if cluster != "" && event.Cluster != cluster {
			continue
		}
		out = append(out, event)
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out
}

// Stop unsubscribes from the broker and ends the recording loop
func (r *Recorder) Stop() {
	r.broker.Unsubscribe(r.sub)
}

// LogSink writes every published event to the cluster-scoped logger, so
// lifecycle transitions show up in the daemon log alongside the operations
// that caused them.
type LogSink struct {
	broker *Broker
	sub    Subscriber
}

// NewLogSink subscribes to the broker and starts logging events
func NewLogSink(broker *Broker) *LogSink {
	s := &LogSink{
		broker: broker,
		sub:    broker.Subscribe(),
	}
	go s.run()
	return s
}

func (s *LogSink) run() {
	for event := range s.sub {
		logger := log.WithCluster(event.Cluster)
		logger.Info().
			Str("event", string(event.Type)).
			Str("message", event.Message).
			Msg("Lifecycle event")
	}
}

// Stop unsubscribes from the broker and ends the logging loop
func (s *LogSink) Stop() {
	s.broker.Unsubscribe(s.sub)
}
