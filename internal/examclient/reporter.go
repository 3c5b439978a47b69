package examclient

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/campushire/skillcheck/internal/model"
	ws "github.com/campushire/skillcheck/internal/websocket"
	"github.com/gorilla/websocket"
)

// ErrReporterClosed is returned by Report after End, and by a Begin that End
// overtook.
var ErrReporterClosed = errors.New("proctor reporter closed")

// ProctorReporter streams a session's proctoring signals over the proctor
// WebSocket. The connection is opened by Begin and closed by End.
type ProctorReporter struct {
	baseURL string
	token   string
	dialer  *websocket.Dialer

	mu       sync.Mutex
	conn     *websocket.Conn
	deadline time.Time
	closed   bool
	ends     uint64 // bumped by End
}

// NewProctorReporter creates a reporter for the API at baseURL (http or https).
func NewProctorReporter(baseURL, token string) *ProctorReporter {
	return &ProctorReporter{
		baseURL: strings.TrimRight(baseURL, "/"),
		token:   token,
		dialer:  &websocket.Dialer{HandshakeTimeout: 10 * time.Second},
	}
}

// Reporter returns a ProctorReporter sharing the client's endpoint and token.
func (c *Client) Reporter() *ProctorReporter {
	return NewProctorReporter(c.baseURL, c.token)
}

// Deadline is the server-side deadline acknowledged by Begin.
func (r *ProctorReporter) Deadline() time.Time {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.deadline
}

// Begin connects and registers the session for examID.
func (r *ProctorReporter) Begin(ctx context.Context, examID string) error {
	if r.token == "" {
		return ErrMissingToken
	}
	target, err := r.streamURL(examID)
	if err != nil {
		return err
	}

	r.mu.Lock()
	ends := r.ends
	r.mu.Unlock()

	conn, _, err := r.dialer.DialContext(ctx, target, nil)
	if err != nil {
		return fmt.Errorf("dial proctor stream: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if r.ends != ends {
		conn.Close()
		return ErrReporterClosed
	}
	if r.conn != nil {
		r.conn.Close()
	}
	r.conn = conn
	r.closed = false

	reply, err := r.roundTrip(ws.RequestPayload{Action: ws.ActionBegin})
	if err != nil {
		return err
	}
	if reply.Deadline != nil {
		r.deadline = *reply.Deadline
	}
	return nil
}

// Report sends one proctoring event and waits for the acknowledgement.
func (r *ProctorReporter) Report(ctx context.Context, ev model.ProctorEvent) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed || r.conn == nil {
		return ErrReporterClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := ws.RequestPayload{Action: ws.ActionEvent, Kind: string(ev.Kind), Detail: ev.Detail}
	if !ev.RecordedAt.IsZero() {
		at := ev.RecordedAt
		msg.At = &at
	}
	_, err := r.roundTrip(msg)
	return err
}

// End closes the stream. It is safe to call more than once.
func (r *ProctorReporter) End() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.closed = true
	r.ends++
	if r.conn == nil {
		return nil
	}
	conn := r.conn
	r.conn = nil
	conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(time.Second))
	return conn.Close()
}

// roundTrip must be called with r.mu held.
func (r *ProctorReporter) roundTrip(msg ws.RequestPayload) (*ws.ResponsePayload, error) {
	if err := ws.WriteTyped(r.conn, msg); err != nil {
		return nil, fmt.Errorf("write %s: %w", msg.Action, err)
	}
	var reply ws.ResponsePayload
	if err := ws.ReadJSON(r.conn, &reply); err != nil {
		return nil, fmt.Errorf("read %s reply: %w", msg.Action, err)
	}
	if reply.Event == ws.EventError {
		return nil, fmt.Errorf("proctor stream: %s", reply.Error)
	}
	return &reply, nil
}

func (r *ProctorReporter) streamURL(examID string) (string, error) {
	u, err := url.Parse(r.baseURL)
	if err != nil {
		return "", fmt.Errorf("parse base url: %w", err)
	}
	switch u.Scheme {
	case "https":
		u.Scheme = "wss"
	case "http", "":
		u.Scheme = "ws"
	}
	u.Path = strings.TrimRight(u.Path, "/") + "/ws/exam/" + url.PathEscape(examID) + "/proctor"
	u.RawQuery = url.Values{"token": {r.token}}.Encode()
	return u.String(), nil
}
