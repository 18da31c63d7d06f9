package progress

import (
	"log"
	"sync"
	"time"

	domain "github.com/bryanwahyu/repolens/internal/domain/progress"
)

// subscriber channel buffer; a subscriber that falls this far behind is
// dropped instead of blocking the pipeline.
const subscriberBuffer = 16

// Hub is an in-memory per-analysis publish/subscribe broadcaster.
// One writer (the pipeline) per topic, any number of readers.
type Hub struct {
	mu     sync.Mutex
	topics map[string]*topic
	grace  time.Duration
}

type topic struct {
	subs   map[int]chan domain.Event
	nextID int
	status string
	closed bool
}

// Snapshot is the point-in-time state handed to a joining subscriber.
type Snapshot struct {
	AnalysisID string `json:"analysis_id"`
	Status     string `json:"status"`
}

func NewHub(grace time.Duration) *Hub {
	if grace <= 0 {
		grace = 30 * time.Second
	}
	return &Hub{
		topics: make(map[string]*topic),
		grace:  grace,
	}
}

// Open creates the topic for an analysis. Opening an existing topic only
// refreshes its status.
func (h *Hub) Open(analysisID, status string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, ok := h.topics[analysisID]
	if !ok {
		t = &topic{subs: make(map[int]chan domain.Event)}
		h.topics[analysisID] = t
	}
	t.status = status
}

// SetStatus updates the snapshot status for late subscribers.
func (h *Hub) SetStatus(analysisID, status string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if t, ok := h.topics[analysisID]; ok {
		t.status = status
	}
}

// Publish fans ev out to all current subscribers in emission order.
// Publishing to a missing or empty topic is a no-op. A subscriber whose
// buffer is full is dropped rather than blocking the pipeline.
func (h *Hub) Publish(ev domain.Event) {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, ok := h.topics[ev.AnalysisID]
	if !ok || t.closed {
		return
	}
	for id, ch := range t.subs {
		select {
		case ch <- ev:
		default:
			log.Printf("warn: dropping slow progress subscriber analysis=%s sub=%d", ev.AnalysisID, id)
			delete(t.subs, id)
			close(ch)
		}
	}
}

// Subscribe attaches a reader to the topic and returns its event channel,
// a snapshot of current status, and a cancel function. ok is false when no
// topic exists (the analysis is unknown or already torn down).
func (h *Hub) Subscribe(analysisID string) (<-chan domain.Event, Snapshot, func(), bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	t, ok := h.topics[analysisID]
	if !ok || t.closed {
		return nil, Snapshot{}, nil, false
	}

	id := t.nextID
	t.nextID++
	ch := make(chan domain.Event, subscriberBuffer)
	t.subs[id] = ch

	cancel := func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		if cur, ok := h.topics[analysisID]; ok {
			if sub, ok := cur.subs[id]; ok {
				delete(cur.subs, id)
				close(sub)
			}
		}
	}

	return ch, Snapshot{AnalysisID: analysisID, Status: t.status}, cancel, true
}

// Close tears the topic down after the grace period so late subscribers can
// still read the terminal event.
func (h *Hub) Close(analysisID string) {
	time.AfterFunc(h.grace, func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		t, ok := h.topics[analysisID]
		if !ok {
			return
		}
		t.closed = true
		for id, ch := range t.subs {
			delete(t.subs, id)
			close(ch)
		}
		delete(h.topics, analysisID)
	})
}
