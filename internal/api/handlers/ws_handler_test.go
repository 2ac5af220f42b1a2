package handlers

import (
	"context"
	"strings"
	"testing"
	"time"

	"net/http/httptest"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prepwise/prepwise/internal/models"
	"github.com/prepwise/prepwise/internal/services"
)

// stubInterviews satisfies the service interface with canned results; the WS
// tests here exercise connection lifetime, not operation semantics.
type stubInterviews struct{}

func (stubInterviews) CreateSession(ctx context.Context, ownerID string, jobIDs, skillIDs []string, resumeText string) (*models.InterviewSession, error) {
	return nil, nil
}

func (stubInterviews) GetSession(ctx context.Context, sessionID, requesterID string) (*models.InterviewSession, error) {
	return &models.InterviewSession{SessionID: sessionID, OwnerID: requesterID, Status: models.SessionInProgress}, nil
}

func (stubInterviews) ListSessions(ctx context.Context, ownerID string) ([]models.InterviewSession, error) {
	return nil, nil
}

func (stubInterviews) SaveAnswer(ctx context.Context, in services.SaveAnswerInput) (*models.Question, error) {
	return &models.Question{QuestionID: in.QuestionID}, nil
}

func (stubInterviews) AdvanceQuestion(ctx context.Context, sessionID, requesterID, direction string) (int, error) {
	return 0, nil
}

func (stubInterviews) CompleteAndEvaluate(ctx context.Context, sessionID, requesterID string) (*models.InterviewSession, error) {
	return &models.InterviewSession{SessionID: sessionID, Status: models.SessionEvaluated}, nil
}

// unreachableRedis gives the handler a client whose subscription fails fast;
// none of these tests need evaluation events.
func unreachableRedis() *redis.Client {
	return redis.NewClient(&redis.Options{Addr: "127.0.0.1:1"})
}

// newWSTestServer mounts SessionWS behind a middleware that injects the
// authenticated user, and reports when the handler goroutine returns.
func newWSTestServer(t *testing.T, h *WSHandler) (*httptest.Server, chan struct{}) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	handlerDone := make(chan struct{})
	r := gin.New()
	r.GET("/ws/:session_id", func(c *gin.Context) {
		c.Set("user_id", "owner-1")
		h.SessionWS(c)
		close(handlerDone)
	})

	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv, handlerDone
}

func dialWS(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/sess-1"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	return conn
}

func TestSessionWS_ConnectionSurvivesIdlePeriod(t *testing.T) {
	h := NewWSHandler(stubInterviews{}, unreachableRedis())
	h.pongWait = 250 * time.Millisecond

	srv, _ := newWSTestServer(t, h)
	conn := dialWS(t, srv)
	defer conn.Close()

	type reply struct {
		Type      string `json:"type"`
		RequestID string `json:"request_id"`
	}
	msgs := make(chan reply, 8)
	go func() {
		// read pump; the client library answers server pings from here
		for {
			var r reply
			if err := conn.ReadJSON(&r); err != nil {
				close(msgs)
				return
			}
			msgs <- r
		}
	}()

	sendPing := func(id string) {
		require.NoError(t, conn.WriteJSON(map[string]string{"type": "ping", "request_id": id}))
	}
	expectPong := func(id string) {
		select {
		case m, ok := <-msgs:
			require.True(t, ok, "connection closed before %s got its pong", id)
			assert.Equal(t, "pong", m.Type)
			assert.Equal(t, id, m.RequestID)
		case <-time.After(time.Second):
			t.Fatalf("no pong for %s", id)
		}
	}

	sendPing("r1")
	expectPong("r1")

	// stay silent well past the read deadline; server pings and client pongs
	// must keep the channel open
	time.Sleep(3 * h.pongWait)

	sendPing("r2")
	expectPong("r2")
}

func TestSessionWS_HandlerReturnsOnClientDisconnect(t *testing.T) {
	h := NewWSHandler(stubInterviews{}, unreachableRedis())

	srv, handlerDone := newWSTestServer(t, h)
	conn := dialWS(t, srv)

	require.NoError(t, conn.Close())

	select {
	case <-handlerDone:
	case <-time.After(2 * time.Second):
		t.Fatal("handler did not return after client disconnect")
	}
}
