package realtime

import (
	"context"
	"encoding/json"

	"github.com/redis/go-redis/v9"
)

// Event is what the evaluation loop publishes and the WS gateway forwards.
type Event struct {
	Type       string `json:"type"` // evaluation_progress | evaluation_complete
	SessionID  string `json:"session_id"`
	QuestionID string `json:"question_id,omitempty"`
	Evaluated  int    `json:"evaluated,omitempty"`
	Total      int    `json:"total,omitempty"`
	Failed     bool   `json:"failed,omitempty"`

	OverallScore float64 `json:"overall_score,omitempty"`
}

// Channel names the per-session pub/sub channel.
func Channel(sessionID string) string {
	return "interview:" + sessionID + ":events"
}

type Publisher interface {
	Publish(ctx context.Context, e Event) error
}

type RedisPublisher struct {
	rdb *redis.Client
}

func NewRedisPublisher(rdb *redis.Client) *RedisPublisher {
	return &RedisPublisher{rdb: rdb}
}

func (p *RedisPublisher) Publish(ctx context.Context, e Event) error {
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return p.rdb.Publish(ctx, Channel(e.SessionID), string(b)).Err()
}
