package handlers

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/prepwise/prepwise/internal/models"
	"github.com/prepwise/prepwise/internal/realtime"
	"github.com/prepwise/prepwise/internal/services"
	"github.com/prepwise/prepwise/internal/utils"
)

const (
	wsWriteWait = 10 * time.Second
	// wsPongWait bounds how long a connection may stay silent. The server
	// pings ahead of the deadline; browser clients answer protocol pings
	// automatically, so an idle but healthy tab keeps the channel open.
	wsPongWait = 60 * time.Second
)

// WSHandler exposes SaveAnswer and CompleteAndEvaluate over a persistent
// authenticated channel. Identity is verified once at the HTTP handshake and
// bound to the connection; every message reuses it. Requests and responses
// are correlated by a client-chosen request_id echoed back verbatim.
type WSHandler struct {
	interviews services.InterviewService
	redis      *redis.Client
	upgrader   websocket.Upgrader

	pongWait time.Duration
}

func NewWSHandler(interviews services.InterviewService, rdb *redis.Client) *WSHandler {
	return &WSHandler{
		interviews: interviews,
		redis:      rdb,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true }, // TODO: restrict origin in prod
		},
		pongWait: wsPongWait,
	}
}

type wsClientMsg struct {
	Type      string `json:"type"` // save_answer|complete_session|ping
	RequestID string `json:"request_id"`

	// save_answer fields
	QuestionID       string `json:"question_id,omitempty"`
	UserAnswer       string `json:"user_answer,omitempty"`
	MediaBase64      string `json:"media_base64,omitempty"`
	MediaContentType string `json:"media_content_type,omitempty"`
}

type wsServerMsg struct {
	Type      string `json:"type"`
	RequestID string `json:"request_id,omitempty"`

	Question *models.Question         `json:"question,omitempty"`
	Session  *models.InterviewSession `json:"session,omitempty"`

	Code    utils.Code `json:"code,omitempty"`
	Message string     `json:"message,omitempty"`
}

type wsConn struct {
	c  *websocket.Conn
	mu sync.Mutex
}

func (w *wsConn) writeJSON(v any) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.c.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return w.c.WriteJSON(v)
}

func (w *wsConn) writeText(b []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.c.SetWriteDeadline(time.Now().Add(wsWriteWait))
	return w.c.WriteMessage(websocket.TextMessage, b)
}

func (w *wsConn) ping() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.c.WriteControl(websocket.PingMessage, nil, time.Now().Add(wsWriteWait))
}

func (h *WSHandler) SessionWS(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	sessionID := c.Param("session_id")
	if sessionID == "" {
		writeError(c, utils.E(utils.CodeInvalidArgument, "WSHandler.SessionWS", "missing session_id", nil))
		return
	}

	// ownership check before the upgrade; a refused connection never gets to
	// invoke an operation
	if _, err := h.interviews.GetSession(c.Request.Context(), sessionID, userID); err != nil {
		writeError(c, err)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		// upgrade already wrote response in most cases
		return
	}
	defer conn.Close()

	wc := &wsConn{c: conn}
	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	// evaluation progress events flow Redis -> WS
	pubsub := h.redis.Subscribe(ctx, realtime.Channel(sessionID))
	defer pubsub.Close()

	readDone := make(chan struct{})
	go func() {
		defer close(readDone)
		_ = conn.SetReadDeadline(time.Now().Add(h.pongWait))
		conn.SetPongHandler(func(string) error {
			return conn.SetReadDeadline(time.Now().Add(h.pongWait))
		})

		for {
			_, data, rerr := conn.ReadMessage()
			if rerr != nil {
				return
			}
			// any client traffic proves liveness, not just pong frames
			_ = conn.SetReadDeadline(time.Now().Add(h.pongWait))

			var msg wsClientMsg
			if err := json.Unmarshal(data, &msg); err != nil {
				_ = wc.writeJSON(wsServerMsg{Type: "error", Code: utils.CodeInvalidArgument, Message: "invalid json"})
				continue
			}

			switch msg.Type {
			case "save_answer":
				h.handleSaveAnswer(ctx, wc, sessionID, userID, msg)

			case "complete_session":
				// evaluation runs to completion even if the client goes away
				session, cerr := h.interviews.CompleteAndEvaluate(context.WithoutCancel(ctx), sessionID, userID)
				if cerr != nil {
					wc.writeAppError(msg.RequestID, cerr)
					continue
				}
				_ = wc.writeJSON(wsServerMsg{Type: "session_evaluated", RequestID: msg.RequestID, Session: session})

			case "ping":
				_ = wc.writeJSON(wsServerMsg{Type: "pong", RequestID: msg.RequestID})

			default:
				_ = wc.writeJSON(wsServerMsg{Type: "error", RequestID: msg.RequestID, Code: utils.CodeInvalidArgument, Message: "unknown message type"})
			}
		}
	}()

	// forwarder: Redis Pub/Sub -> WS, in its own goroutine so a quiet channel
	// can never block teardown; the deferred cancel unblocks ReceiveMessage
	// when the handler returns
	go func() {
		for {
			m, err := pubsub.ReceiveMessage(ctx)
			if err != nil {
				return
			}
			// forward as-is (payload is JSON from the evaluation loop)
			if werr := wc.writeText([]byte(m.Payload)); werr != nil {
				return
			}
		}
	}()

	// keepalive pings until the reader exits
	ticker := time.NewTicker(h.pongWait * 9 / 10)
	defer ticker.Stop()
	for {
		select {
		case <-readDone:
			return
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := wc.ping(); err != nil {
				return
			}
		}
	}
}

func (h *WSHandler) handleSaveAnswer(ctx context.Context, wc *wsConn, sessionID, userID string, msg wsClientMsg) {
	if msg.QuestionID == "" {
		_ = wc.writeJSON(wsServerMsg{Type: "error", RequestID: msg.RequestID, Code: utils.CodeInvalidArgument, Message: "question_id is required"})
		return
	}

	in := services.SaveAnswerInput{
		SessionID:        sessionID,
		QuestionID:       msg.QuestionID,
		RequesterID:      userID,
		UserAnswer:       msg.UserAnswer,
		MediaContentType: msg.MediaContentType,
	}

	if msg.MediaBase64 != "" {
		raw := msg.MediaBase64
		if i := strings.Index(raw, ","); i >= 0 {
			raw = raw[i+1:] // strip data:...;base64,
		}
		blob, derr := base64.StdEncoding.DecodeString(raw)
		if derr != nil {
			_ = wc.writeJSON(wsServerMsg{Type: "error", RequestID: msg.RequestID, Code: utils.CodeInvalidArgument, Message: "invalid media_base64"})
			return
		}
		if len(blob) > maxMediaBytes {
			_ = wc.writeJSON(wsServerMsg{Type: "error", RequestID: msg.RequestID, Code: utils.CodeInvalidArgument, Message: "recording too large"})
			return
		}
		in.Media = blob
	}

	question, err := h.interviews.SaveAnswer(ctx, in)
	if err != nil {
		wc.writeAppError(msg.RequestID, err)
		return
	}
	_ = wc.writeJSON(wsServerMsg{Type: "answer_saved", RequestID: msg.RequestID, Question: question})
}

func (w *wsConn) writeAppError(requestID string, err error) {
	code := utils.CodeInternal
	msgText := "internal error"

	var ae *utils.AppError
	if errors.As(err, &ae) {
		code = ae.Code
		msgText = ae.Message
	}
	_ = w.writeJSON(wsServerMsg{Type: "error", RequestID: requestID, Code: code, Message: msgText})
}
