package services

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prepwise/prepwise/internal/utils"
)

func TestParseEvaluation(t *testing.T) {
	t.Run("plain json", func(t *testing.T) {
		ev, err := ParseEvaluation(`{"score": 7.5, "category_scores": {"clarity": 8}, "summary": "Solid answer.", "strengths": ["direct"], "areas_for_improvement": ["examples"]}`)
		require.NoError(t, err)
		assert.Equal(t, 7.5, ev.Score)
		assert.Equal(t, 8.0, ev.CategoryScores["clarity"])
		assert.Equal(t, "Solid answer.", ev.Summary)
	})

	t.Run("json wrapped in fences", func(t *testing.T) {
		ev, err := ParseEvaluation("```json\n{\"score\": 6, \"summary\": \"ok\"}\n```")
		require.NoError(t, err)
		assert.Equal(t, 6.0, ev.Score)
	})

	t.Run("scores clamped into range", func(t *testing.T) {
		ev, err := ParseEvaluation(`{"score": 14, "category_scores": {"depth": -3}}`)
		require.NoError(t, err)
		assert.Equal(t, 10.0, ev.Score)
		assert.Equal(t, 0.0, ev.CategoryScores["depth"])
	})

	t.Run("not json", func(t *testing.T) {
		_, err := ParseEvaluation("I'd grade this a seven out of ten.")
		assert.Error(t, err)
	})
}

func TestAnswerEvaluator_Evaluate(t *testing.T) {
	t.Run("happy path", func(t *testing.T) {
		e := NewAnswerEvaluator(&fakeLLM{reply: `{"score": 9, "summary": "Excellent."}`})

		ev, err := e.Evaluate(context.Background(), "Why Go?", "Because of goroutines.")
		require.NoError(t, err)
		assert.Equal(t, 9.0, ev.Score)
	})

	t.Run("call failure", func(t *testing.T) {
		e := NewAnswerEvaluator(&fakeLLM{err: errors.New("unavailable")})

		_, err := e.Evaluate(context.Background(), "Why Go?", "...")
		assert.True(t, utils.IsCode(err, utils.CodeGenerationFailed))
	})

	t.Run("unparseable reply", func(t *testing.T) {
		e := NewAnswerEvaluator(&fakeLLM{reply: "seven out of ten"})

		_, err := e.Evaluate(context.Background(), "Why Go?", "...")
		assert.True(t, utils.IsCode(err, utils.CodeGenerationFailed))
	})
}
