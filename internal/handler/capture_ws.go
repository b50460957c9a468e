package handler

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/oapi-codegen/runtime"

	"github.com/cmd-f-hackthon/MapMe/internal/capture"
	"github.com/cmd-f-hackthon/MapMe/internal/domain"
	"github.com/cmd-f-hackthon/MapMe/internal/metrics"
)

const (
	wsReadLimit  = 64 * 1024
	wsPongWait   = 90 * time.Second
	wsPingPeriod = 30 * time.Second
	wsWriteWait  = 10 * time.Second
)

// Client message types accepted on /captures/ws.
const (
	msgSelect        = "select"
	msgRecord        = "record"
	msgDraw          = "draw"
	msgPosition      = "position"
	msgPositionError = "position_error"
	msgClick         = "click"
	msgStop          = "stop"
	msgSave          = "save"
	msgCancel        = "cancel"
)

// CaptureClientMessage is a message sent by the client over the capture
// websocket. Only the fields relevant to Type are read. Text, when present,
// becomes the marker notes or the route title of the capture being saved.
type CaptureClientMessage struct {
	Type       string             `json:"type"`
	Coordinate *domain.Coordinate `json:"coordinate,omitempty"`
	Timestamp  *time.Time         `json:"timestamp,omitempty"`
	Accuracy   *float64           `json:"accuracy,omitempty"`
	Message    string             `json:"message,omitempty"`
	Text       string             `json:"text,omitempty"`
}

// CaptureServerMessage is a message sent to the client: "state", "point",
// "saved", "discarded" or "error".
type CaptureServerMessage struct {
	Type    string            `json:"type"`
	State   string            `json:"state,omitempty"`
	Point   *domain.PathPoint `json:"point,omitempty"`
	Entry   *domain.Entry     `json:"entry,omitempty"`
	Reason  string            `json:"reason,omitempty"`
	Message string            `json:"message,omitempty"`
}

// CaptureSocket handles GET /captures/ws.
// Each connection owns exactly one capture. The optional owner and ownerName
// query parameters identify who the saved entries belong to.
func (s *Server) CaptureSocket(w http.ResponseWriter, r *http.Request) {
	var ownerID, ownerName *string
	if err := runtime.BindQueryParameter("form", true, false, "owner", r.URL.Query(), &ownerID); err != nil {
		requestError(w, "invalid owner parameter")
		return
	}
	if err := runtime.BindQueryParameter("form", true, false, "ownerName", r.URL.Query(), &ownerName); err != nil {
		requestError(w, "invalid ownerName parameter")
		return
	}

	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgrade has already written the HTTP error.
		s.log.WarnContext(r.Context(), "websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	metrics.CaptureSessions.Inc()
	defer metrics.CaptureSessions.Dec()

	sess := &captureSession{
		ctx:     r.Context(),
		conn:    conn,
		entries: s.entries,
		log:     s.log,
		feed:    capture.NewFeed(),
	}
	if ownerID != nil {
		sess.owner.ID = *ownerID
	}
	if ownerName != nil {
		sess.owner.Name = *ownerName
	}
	sess.capture = capture.New(sess.feed, sess.feed, capture.Events{
		StateChanged:  sess.onState,
		PointAdded:    sess.onPoint,
		PointRejected: sess.onRejected,
		Finalized:     sess.onFinalized,
		Discarded:     sess.onDiscarded,
		Failed:        sess.onFailed,
	})

	done := make(chan struct{})
	defer close(done)
	go sess.keepAlive(done)

	sess.readLoop()
	sess.capture.Cancel()
}

// captureSession binds one websocket connection to one capture. Capture
// events fire synchronously on the read loop goroutine, so every data frame
// is written from that goroutine; only pings come from keepAlive.
type captureSession struct {
	ctx     context.Context
	conn    *websocket.Conn
	entries EntryServicer
	log     *slog.Logger
	feed    *capture.Feed
	capture *capture.Capture
	owner   domain.Owner

	mu     sync.Mutex
	text   string
	closed bool
}

func (cs *captureSession) readLoop() {
	cs.conn.SetReadLimit(wsReadLimit)
	_ = cs.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	cs.conn.SetPongHandler(func(string) error {
		return cs.conn.SetReadDeadline(time.Now().Add(wsPongWait))
	})

	for {
		_, data, err := cs.conn.ReadMessage()
		if err != nil {
			cs.mu.Lock()
			cs.closed = true
			cs.mu.Unlock()
			return
		}

		var msg CaptureClientMessage
		if err := json.Unmarshal(data, &msg); err != nil {
			cs.send(CaptureServerMessage{Type: "error", Message: "message must be valid JSON"})
			continue
		}
		cs.handle(msg)
	}
}

func (cs *captureSession) handle(msg CaptureClientMessage) {
	if msg.Text != "" {
		cs.mu.Lock()
		cs.text = msg.Text
		cs.mu.Unlock()
	}

	var err error
	switch msg.Type {
	case msgSelect:
		err = cs.capture.StartSelecting()
	case msgRecord:
		err = cs.capture.StartRecording()
	case msgDraw:
		err = cs.capture.StartDrawing()
	case msgPosition:
		if msg.Coordinate == nil {
			err = errors.New("position needs a coordinate")
			break
		}
		p := domain.PathPoint{Coordinate: *msg.Coordinate, Accuracy: msg.Accuracy, Timestamp: time.Now().UTC()}
		if msg.Timestamp != nil {
			p.Timestamp = msg.Timestamp.UTC()
		}
		cs.feed.PublishPosition(p)
	case msgPositionError:
		reason := msg.Message
		if reason == "" {
			reason = "position unavailable"
		}
		cs.feed.PublishPositionError(errors.New(reason))
	case msgClick:
		if msg.Coordinate == nil {
			err = errors.New("click needs a coordinate")
			break
		}
		cs.feed.PublishClick(*msg.Coordinate)
	case msgStop:
		err = cs.capture.Stop()
		// A short recording is reported through the discarded event.
		if errors.Is(err, capture.ErrTooFewPoints) {
			err = nil
		}
	case msgSave:
		err = cs.capture.Save()
	case msgCancel:
		cs.capture.Cancel()
	default:
		err = errors.New("unknown message type " + msg.Type)
	}
	if err != nil {
		cs.send(CaptureServerMessage{Type: "error", Message: err.Error()})
	}
}

func (cs *captureSession) onState(st capture.State) {
	cs.send(CaptureServerMessage{Type: "state", State: st.String()})
}

func (cs *captureSession) onPoint(p domain.PathPoint) {
	cs.send(CaptureServerMessage{Type: "point", Point: &p})
}

func (cs *captureSession) onRejected(err error) {
	cs.send(CaptureServerMessage{Type: "error", Message: "point rejected: " + unwrapMessage(err)})
}

func (cs *captureSession) onDiscarded(reason string) {
	cs.send(CaptureServerMessage{Type: "discarded", Reason: reason})
}

func (cs *captureSession) onFailed(err error) {
	cs.send(CaptureServerMessage{Type: "error", Message: err.Error()})
}

// onFinalized persists the finished capture and reports the stored entry.
func (cs *captureSession) onFinalized(res capture.Result) {
	metrics.CapturesFinalized.WithLabelValues(string(res.Kind)).Inc()

	cs.mu.Lock()
	text := cs.text
	cs.text = ""
	cs.mu.Unlock()

	entry, err := cs.entries.CreateFromCapture(cs.ctx, res.Points, cs.owner, text)
	if err != nil {
		cs.log.ErrorContext(cs.ctx, "saving capture failed",
			"kind", res.Kind,
			"points", len(res.Points),
			"error", err,
		)
		msg := "capture could not be saved"
		if errors.Is(err, domain.ErrValidation) {
			msg = unwrapMessage(err)
		}
		cs.send(CaptureServerMessage{Type: "error", Message: msg})
		return
	}
	cs.send(CaptureServerMessage{Type: "saved", Entry: &entry})
}

// send writes one message. Failures end the session via the read loop, so
// they are only logged at debug.
func (cs *captureSession) send(msg CaptureServerMessage) {
	cs.mu.Lock()
	closed := cs.closed
	cs.mu.Unlock()
	if closed {
		return
	}

	data, err := json.Marshal(msg)
	if err != nil {
		cs.log.ErrorContext(cs.ctx, "encoding capture message failed", "type", msg.Type, "error", err)
		return
	}
	_ = cs.conn.SetWriteDeadline(time.Now().Add(wsWriteWait))
	if err := cs.conn.WriteMessage(websocket.TextMessage, data); err != nil {
		cs.log.DebugContext(cs.ctx, "capture message not delivered", "type", msg.Type, "error", err)
	}
}

// keepAlive pings the client until done is closed. WriteControl may run
// concurrently with the read loop's writes.
func (cs *captureSession) keepAlive(done <-chan struct{}) {
	ticker := time.NewTicker(wsPingPeriod)
	defer ticker.Stop()
	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			if err := cs.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait)); err != nil {
				return
			}
		}
	}
}
