package handlers

import (
	"net/http"
	"strings"
	"time"

	"street_trees/internal/models"
	"street_trees/internal/pipeline"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

// Send/receive timing configuration and message size limits.
const (
	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = (pongWait * 9) / 10
	maxMsgSize = 1 << 12 // 4 KB
	sendBuffer = 64
)

// Envelope types written to clients.
const (
	msgSnapshot   = "snapshot"
	msgSummary    = "summary"
	msgHistogram  = "histogram"
	msgAnimation  = "animation"
	msgQueryError = "query-error"
	msgView       = "view"
)

// streamTopics maps relayed bus topics to envelope types, in relay order.
var streamTopics = []struct {
	topic string
	kind  string
}{
	{pipeline.TopicSummary, msgSummary},
	{pipeline.TopicHistogram, msgHistogram},
	{pipeline.TopicAnimationState, msgAnimation},
	{pipeline.TopicQueryError, msgQueryError},
	{pipeline.TopicView, msgView},
}

// Envelope used for WebSocket messages.
type wsEnvelope struct {
	Type  string      `json:"type"`
	Data  interface{} `json:"data,omitempty"`
	Error string      `json:"error,omitempty"`
}

// wsSnapshot is the first message on every connection.
type wsSnapshot struct {
	Filters   models.FilterSnapshot `json:"filters"`
	Summary   SummaryResponse       `json:"summary"`
	Histogram []models.HistogramBin `json:"histogram"`
	Animation models.AnimationState `json:"animation"`
	View      models.ViewState      `json:"view"`
}

// Upgrader for HTTP -> WebSocket. Consider tightening CheckOrigin in production.
var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func (h *Handler) wsConnect(c *gin.Context) {
	kinds := parseTopics(c)

	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		if h.log != nil {
			h.log.Errorw("ws_upgrade_failed", "err", err)
		}
		return
	}
	defer func() { _ = conn.Close() }()

	// Configure read limits and pong handler to extend read deadline.
	conn.SetReadLimit(maxMsgSize)
	_ = conn.SetReadDeadline(time.Now().Add(pongWait))
	conn.SetPongHandler(func(string) error {
		return conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	// Reader goroutine to handle control frames and detect disconnects.
	done := make(chan struct{})
	go h.startReader(conn, done)

	// Subscribe before the snapshot so nothing published in between is lost.
	out := make(chan wsEnvelope, sendBuffer)
	unsubscribe := h.subscribe(kinds, out)
	defer unsubscribe()

	ping := time.NewTicker(pingPeriod)
	defer ping.Stop()

	if err := h.writeEnvelope(conn, wsEnvelope{Type: msgSnapshot, Data: h.snapshot()}); err != nil {
		if h.log != nil {
			h.log.Infow("ws_write_failed_initial", "err", err)
		}
		return
	}

	// Single writer: bus handlers only enqueue.
	for {
		select {
		case <-done:
			return
		case <-c.Request.Context().Done():
			return
		case <-ping.C:
			_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				if h.log != nil {
					h.log.Infow("ws_ping_failed", "err", err)
				}
				return
			}
		case env := <-out:
			if err := h.writeEnvelope(conn, env); err != nil {
				if h.log != nil {
					h.log.Infow("ws_write_failed", "err", err, "type", env.Type)
				}
				return
			}
		}
	}
}

// parseTopics reads ?topics=summary,histogram. Unknown names are ignored;
// an empty selection means every topic.
func parseTopics(c *gin.Context) map[string]bool {
	known := make(map[string]bool, len(streamTopics))
	for _, st := range streamTopics {
		known[st.kind] = true
	}
	selected := make(map[string]bool)
	for _, name := range strings.Split(c.Query("topics"), ",") {
		name = strings.ToLower(strings.TrimSpace(name))
		if known[name] {
			selected[name] = true
		}
	}
	if len(selected) == 0 {
		return known
	}
	return selected
}

// subscribe relays the selected bus topics into out. A full buffer drops
// the message instead of blocking the publisher.
func (h *Handler) subscribe(kinds map[string]bool, out chan<- wsEnvelope) func() {
	var unsubs []func()
	for _, st := range streamTopics {
		if !kinds[st.kind] {
			continue
		}
		kind := st.kind
		unsubs = append(unsubs, h.services.Subscribe(st.topic, func(payload any) {
			env := toEnvelope(kind, payload)
			select {
			case out <- env:
			default:
				if h.log != nil {
					h.log.Warnw("ws_client_slow", "type", kind)
				}
			}
		}))
	}
	return func() {
		for _, u := range unsubs {
			u()
		}
	}
}

func toEnvelope(kind string, payload any) wsEnvelope {
	switch p := payload.(type) {
	case models.SummaryRecord:
		return wsEnvelope{Type: kind, Data: newSummaryResponse(p)}
	case models.QueryFailure:
		return wsEnvelope{Type: kind, Data: p, Error: p.Message}
	}
	return wsEnvelope{Type: kind, Data: payload}
}

func (h *Handler) snapshot() wsSnapshot {
	return wsSnapshot{
		Filters:   h.services.Filters(),
		Summary:   newSummaryResponse(h.services.Summary()),
		Histogram: h.services.Histogram(),
		Animation: h.services.Animation(),
		View:      h.services.Current(),
	}
}

// Helper: startReader drains incoming messages to handle control frames and detect closure.
func (h *Handler) startReader(conn *websocket.Conn, done chan<- struct{}) {
	defer close(done)
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if h.log != nil {
				h.log.Infow("ws_read_closed", "err", err)
			}
			return
		}
	}
}

// writeEnvelope writes one message with a write deadline.
func (h *Handler) writeEnvelope(conn *websocket.Conn, env wsEnvelope) error {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	return conn.WriteJSON(env)
}
