package llm

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedProvider struct {
	chunks []string
	err    error
}

func (s *scriptedProvider) StreamAnswer(ctx context.Context, prompt string) (<-chan string, <-chan error) {
	out := make(chan string, len(s.chunks))
	errs := make(chan error, 1)
	for _, c := range s.chunks {
		out <- c
	}
	if s.err != nil {
		errs <- s.err
	}
	close(out)
	close(errs)
	return out, errs
}

func (s *scriptedProvider) Close() error { return nil }

func TestCollect(t *testing.T) {
	t.Run("joins chunks in order", func(t *testing.T) {
		got, err := Collect(context.Background(), &scriptedProvider{chunks: []string{"Hello, ", "world", "!"}}, "p")
		require.NoError(t, err)
		assert.Equal(t, "Hello, world!", got)
	})

	t.Run("stream error surfaces", func(t *testing.T) {
		_, err := Collect(context.Background(), &scriptedProvider{chunks: []string{"partial"}, err: errors.New("boom")}, "p")
		assert.Error(t, err)
	})

	t.Run("empty stream is empty text", func(t *testing.T) {
		got, err := Collect(context.Background(), &scriptedProvider{}, "p")
		require.NoError(t, err)
		assert.Equal(t, "", got)
	})
}
