package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/campushire/skillcheck/internal/middleware"
	"github.com/campushire/skillcheck/internal/model"
	"github.com/campushire/skillcheck/internal/response"
	"github.com/campushire/skillcheck/internal/service"
	ws "github.com/campushire/skillcheck/internal/websocket"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// ProctorRecorder accepts proctoring signals from live sessions.
type ProctorRecorder interface {
	Begin(ctx context.Context, examID, userEmail string) (time.Time, error)
	Record(ctx context.Context, ev *model.ProctorEvent) error
}

// WSHandler serves the proctor event stream.
type WSHandler struct {
	proctor  ProctorRecorder
	log      zerolog.Logger
	upgrader websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(proctor ProctorRecorder, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		proctor:  proctor,
		log:      log.With().Str("component", "ws_handler").Logger(),
		upgrader: buildUpgrader(allowedOrigins),
	}
}

// ProctorStream godoc
// WS /ws/exam/:exam_id/proctor?token=
// Receives session start and integrity events for one candidate's exam session.
func (h *WSHandler) ProctorStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	email := claims.Email
	if email == "" {
		email = c.Query("userEmail")
	}
	if email == "" {
		response.Fail(c, http.StatusBadRequest, response.ErrValidation)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().
		Str("user", email).
		Str("exam_id", examID.String()).
		Logger()

	wsLog.Info().Msg("Proctor stream connected")

	ctx := c.Request.Context()
	for {
		var msg ws.RequestPayload
		if err := ws.ReadJSON(conn, &msg); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Connection closed")
			}
			return
		}

		switch msg.Action {
		case ws.ActionBegin:
			h.handleBegin(ctx, conn, wsLog, examID.String(), email)
		case ws.ActionEvent:
			h.handleEvent(ctx, conn, wsLog, examID.String(), email, &msg)
		case ws.ActionPing:
			ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			ws.WriteError(conn, "unknown action: "+string(msg.Action))
		}
	}
}

// handleBegin registers the session so it is recorded as abandoned if no
// submission arrives before its deadline.
func (h *WSHandler) handleBegin(ctx context.Context, conn *websocket.Conn, log zerolog.Logger, examID, email string) {
	deadline, err := h.proctor.Begin(ctx, examID, email)
	if err != nil {
		if errors.Is(err, service.ErrExamNotFound) || errors.Is(err, service.ErrInvalidExamID) {
			ws.WriteError(conn, "exam not found")
			return
		}
		log.Error().Err(err).Msg("Register session failed")
		ws.WriteError(conn, "register failed")
		return
	}
	ws.WriteSuccess(conn, ws.StatusRegistered, &deadline)
}

func (h *WSHandler) handleEvent(ctx context.Context, conn *websocket.Conn, log zerolog.Logger, examID, email string, msg *ws.RequestPayload) {
	ev := &model.ProctorEvent{
		ExamID:    examID,
		UserEmail: email,
		Kind:      model.ProctorEventKind(msg.Kind),
		Detail:    msg.Detail,
	}
	if msg.At != nil {
		ev.RecordedAt = *msg.At
	}

	if err := h.proctor.Record(ctx, ev); err != nil {
		if errors.Is(err, service.ErrUnknownEventKind) {
			ws.WriteError(conn, "unknown event kind: "+msg.Kind)
			return
		}
		log.Error().Err(err).Msg("Record proctor event failed")
		ws.WriteError(conn, "record failed")
		return
	}
	ws.WriteSuccess(conn, ws.StatusRecorded, nil)
}
