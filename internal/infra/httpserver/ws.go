package httpserver

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	domain "github.com/bryanwahyu/repolens/internal/domain/analyses"
	"github.com/bryanwahyu/repolens/internal/domain/progress"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// cross-origin subscribers are allowed; auth already ran upstream
	CheckOrigin: func(r *http.Request) bool { return true },
}

const writeTimeout = 10 * time.Second

// wsConn serializes writes; the hub pump and the client reader both send.
type wsConn struct {
	mu   sync.Mutex
	conn *websocket.Conn
}

func (c *wsConn) send(ev progress.Event) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return c.conn.WriteJSON(ev)
}

// GET /v1/{owner}/analyses/{id}/progress
//
// The subscriber connection walks unsubscribed -> subscribed -> (receiving |
// closed): the first server frame is always the `subscribed` snapshot, then
// events arrive in emission order until the topic is torn down.
func (r *Router) handleProgress(w http.ResponseWriter, req *http.Request) {
	owner := chi.URLParam(req, "owner")
	id := chi.URLParam(req, "id")

	raw, err := upgrader.Upgrade(w, req, nil)
	if err != nil {
		return
	}
	conn := &wsConn{conn: raw}
	defer raw.Close()

	// topics are keyed by id alone, so the record lookup must authorize the
	// subscriber before any event is handed out; a foreign record looks the
	// same as a missing one
	a, err := r.svc.Get(req.Context(), owner, domain.AnalysisID(id))
	if err != nil {
		conn.send(progress.Event{
			AnalysisID: id,
			Type:       progress.EventError,
			Payload:    "unknown analysis",
			Timestamp:  time.Now(),
		})
		return
	}

	events, snap, cancel, live := r.hub.Subscribe(id)
	if live {
		defer cancel()
		conn.send(progress.Event{
			AnalysisID: id,
			Type:       progress.EventSubscribed,
			Payload:    snap,
			Timestamp:  time.Now(),
		})
	} else {
		// no live topic: answer with the persisted record's state
		conn.send(progress.Event{
			AnalysisID: id,
			Type:       progress.EventSubscribed,
			Payload:    map[string]any{"analysis_id": id, "status": a.Status},
			Timestamp:  time.Now(),
		})
		if a.Status.Terminal() {
			terminal := progress.EventCompleted
			if a.Status == domain.StatusFailed {
				terminal = progress.EventFailed
			}
			conn.send(progress.Event{
				AnalysisID: id,
				Type:       terminal,
				Payload:    map[string]any{"status": a.Status},
				Timestamp:  time.Now(),
			})
			return
		}
	}

	done := make(chan struct{})
	go r.readClientFrames(conn, id, done)

	if !live {
		// non-terminal record without a topic: hold the connection until
		// the client goes away
		<-done
		return
	}

	// stream until the topic is torn down or the client stops reading;
	// the deferred Close unblocks the reader goroutine
	for ev := range events {
		if err := conn.send(ev); err != nil {
			return
		}
	}
	conn.mu.Lock()
	raw.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, "stream ended"),
		time.Now().Add(writeTimeout))
	conn.mu.Unlock()
}

// readClientFrames consumes client messages. Only `ping` is a known message
// kind; anything else is rejected with an error event instead of being
// silently dropped.
func (r *Router) readClientFrames(conn *wsConn, id string, done chan<- struct{}) {
	defer close(done)
	for {
		_, data, err := conn.conn.ReadMessage()
		if err != nil {
			return
		}
		var msg struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(data, &msg); err != nil || msg.Type == "" {
			r.rejectFrame(conn, id, "malformed message")
			continue
		}
		switch msg.Type {
		case "ping":
			conn.send(progress.Event{
				AnalysisID: id,
				Type:       progress.EventProgress,
				Payload:    "pong",
				Timestamp:  time.Now(),
			})
		default:
			r.rejectFrame(conn, id, "unknown message type: "+msg.Type)
		}
	}
}

func (r *Router) rejectFrame(conn *wsConn, id, reason string) {
	if err := conn.send(progress.Event{
		AnalysisID: id,
		Type:       progress.EventError,
		Payload:    reason,
		Timestamp:  time.Now(),
	}); err != nil {
		log.Printf("warn: progress stream write failed analysis=%s: %v", id, err)
	}
}
