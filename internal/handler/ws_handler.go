package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/testhub-backend/internal/middleware"
	"github.com/stemsi/testhub-backend/internal/model"
	"github.com/stemsi/testhub-backend/internal/response"
	"github.com/stemsi/testhub-backend/internal/service"
	ws "github.com/stemsi/testhub-backend/internal/websocket"
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

// WSHandler streams a timed attempt over a WebSocket.
type WSHandler struct {
	testService    *service.TestService
	attemptService *service.AttemptService
	resultService  *service.ResultService
	log            zerolog.Logger
	upgrader       websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(
	testService *service.TestService,
	attemptService *service.AttemptService,
	resultService *service.ResultService,
	log zerolog.Logger,
	allowedOrigins []string,
) *WSHandler {
	return &WSHandler{
		testService:    testService,
		attemptService: attemptService,
		resultService:  resultService,
		log:            log.With().Str("component", "ws_handler").Logger(),
		upgrader:       buildUpgrader(allowedOrigins),
	}
}

// TestStream godoc
// WS /ws/v1/tests/:id/stream?token=
// Starts (or resumes) the caller's attempt, then accepts autosave, submit
// and ping messages until the test is submitted or the client leaves.
func (h *WSHandler) TestStream(c *gin.Context) {
	claims := middleware.GetClaims(c)
	if claims == nil {
		response.Fail(c, http.StatusUnauthorized, response.ErrTokenRequired)
		return
	}

	testID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	// Resolved before the upgrade so a missing test is a plain HTTP 404.
	test, err := h.testService.Load(c.Request.Context(), testID)
	if err != nil {
		fail(c, err)
		return
	}
	if len(test.Questions) == 0 {
		fail(c, service.ErrNoQuestions)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()
	conn.SetReadLimit(ws.MaxMessageBytes)

	who := claims.Caller()
	wsLog := h.log.With().
		Int("user_id", who.UserID).
		Str("test_id", testID.String()).
		Logger()

	ctx := context.Background()

	attempt, err := h.attemptService.Start(ctx, who.UserID, test)
	if err != nil {
		wsLog.Error().Err(err).Msg("Start attempt failed")
		h.writeServiceError(conn, err)
		return
	}
	ws.WriteTyped(conn, ws.StateResponse{Event: ws.EventState, Attempt: attempt})

	wsLog.Info().Int("remaining_seconds", attempt.RemainingSeconds).Msg("User connected")

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
		case ws.ActionAutosave:
			h.handleAutosave(ctx, conn, who, testID, &msg)
		case ws.ActionSubmit:
			if h.handleSubmit(ctx, conn, wsLog, who, testID, &msg) {
				_ = conn.WriteControl(websocket.CloseMessage,
					websocket.FormatCloseMessage(websocket.CloseNormalClosure, "submitted"),
					ws.CloseDeadline())
				return
			}
		case ws.ActionPing:
			ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong})
		default:
			wsLog.Warn().Str("action", string(msg.Action)).Msg("Unknown action")
			ws.WriteError(conn, string(response.ErrInvalidPayload), "unknown action: "+string(msg.Action))
		}
	}
}

// handleAutosave stores a single answer on the running attempt.
func (h *WSHandler) handleAutosave(ctx context.Context, conn *websocket.Conn, who service.Caller, testID uuid.UUID, msg *ws.RequestPayload) {
	if msg.QID == "" || msg.Answer == "" {
		ws.WriteError(conn, string(response.ErrValidation), "q_id and ans are required")
		return
	}

	questionID, err := uuid.Parse(msg.QID)
	if err != nil {
		ws.WriteError(conn, string(response.ErrInvalidID), "invalid q_id format")
		return
	}

	if err := h.attemptService.Autosave(ctx, who.UserID, testID, questionID, msg.Answer); err != nil {
		h.writeServiceError(conn, err)
		return
	}

	remaining := 0
	if state, err := h.attemptService.State(ctx, who.UserID, testID); err == nil {
		remaining = state.RemainingSeconds
	}
	ws.WriteTyped(conn, ws.SavedResponse{Event: ws.EventSaved, QID: msg.QID, RemainingSeconds: remaining})
}

// handleSubmit grades the attempt through the same path as the REST submit.
// It reports whether a result was stored.
func (h *WSHandler) handleSubmit(ctx context.Context, conn *websocket.Conn, wsLog zerolog.Logger, who service.Caller, testID uuid.UUID, msg *ws.RequestPayload) bool {
	answers := msg.Answers
	if answers == nil {
		answers = map[string]string{}
	}

	result, err := h.resultService.Submit(ctx, who, model.SubmitTestRequest{
		TestID:  testID.String(),
		Answers: answers,
	})
	if err != nil {
		wsLog.Warn().Err(err).Msg("Submit over WebSocket failed")
		h.writeServiceError(conn, err)
		return false
	}

	ws.WriteTyped(conn, ws.GradedResponse{Event: ws.EventGraded, Result: result})
	return true
}

// writeServiceError sends the same error code the REST API would use.
func (h *WSHandler) writeServiceError(conn *websocket.Conn, err error) {
	for _, m := range serviceErrors {
		if errors.Is(err, m.err) {
			ws.WriteError(conn, string(m.code), response.GetMessage(m.code))
			return
		}
	}
	h.log.Error().Err(err).Msg("WebSocket request failed")
	ws.WriteError(conn, string(response.ErrInternal), response.GetMessage(response.ErrInternal))
}
