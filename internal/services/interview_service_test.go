package services

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sync"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/prepwise/prepwise/internal/models"
	"github.com/prepwise/prepwise/internal/realtime"
	mongorepo "github.com/prepwise/prepwise/internal/repositories/mongo"
	"github.com/prepwise/prepwise/internal/utils"
)

// memSessionRepo mimics the Mongo repo's conditional-update semantics in
// memory, including the status guards and per-question targeting.
type memSessionRepo struct {
	mu       sync.Mutex
	sessions map[string]*models.InterviewSession
}

func newMemSessionRepo() *memSessionRepo {
	return &memSessionRepo{sessions: map[string]*models.InterviewSession{}}
}

func copySession(s *models.InterviewSession) *models.InterviewSession {
	cp := *s
	cp.Questions = make([]models.Question, len(s.Questions))
	copy(cp.Questions, s.Questions)
	return &cp
}

func (r *memSessionRepo) Create(ctx context.Context, s *models.InterviewSession) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.SessionID] = copySession(s)
	return nil
}

func (r *memSessionRepo) GetBySessionID(ctx context.Context, sessionID string) (*models.InterviewSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return nil, utils.ErrNotFound
	}
	return copySession(s), nil
}

func (r *memSessionRepo) ListByOwner(ctx context.Context, ownerID string, limit int64) ([]models.InterviewSession, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []models.InterviewSession
	for _, s := range r.sessions {
		if s.OwnerID == ownerID {
			out = append(out, *copySession(s))
		}
	}
	return out, nil
}

func (r *memSessionRepo) UpdateQuestionAnswer(ctx context.Context, sessionID, questionID string, upd mongorepo.AnswerUpdate) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok {
		return utils.ErrNotFound
	}
	for i := range s.Questions {
		q := &s.Questions[i]
		if q.QuestionID != questionID {
			continue
		}
		q.UserAnswer = upd.UserAnswer
		q.Transcription = upd.Transcription
		q.IsAnswered = upd.IsAnswered
		if upd.MediaURL != nil {
			u := *upd.MediaURL
			q.MediaURL = &u
		}
		return nil
	}
	return utils.ErrNotFound
}

func (r *memSessionRepo) ShiftIndex(ctx context.Context, sessionID string, delta, lo, hi int) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok || s.Status != models.SessionInProgress || s.CurrentIndex < lo || s.CurrentIndex > hi {
		return 0, utils.ErrNotFound
	}
	s.CurrentIndex += delta
	return s.CurrentIndex, nil
}

func (r *memSessionRepo) Complete(ctx context.Context, sessionID string, endTime time.Time) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok || s.Status != models.SessionInProgress {
		return utils.ErrNotFound
	}
	s.Status = models.SessionCompleted
	et := endTime.UTC()
	s.EndTime = &et
	return nil
}

func (r *memSessionRepo) FinalizeEvaluation(ctx context.Context, sessionID string, questions []models.Question, overallScore float64) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	s, ok := r.sessions[sessionID]
	if !ok || s.Status != models.SessionCompleted {
		return utils.ErrNotFound
	}
	s.Questions = make([]models.Question, len(questions))
	copy(s.Questions, questions)
	s.OverallScore = overallScore
	s.Status = models.SessionEvaluated
	return nil
}

type memCatalog struct{}

func (memCatalog) ListJobs(ctx context.Context) ([]models.Job, error)     { return nil, nil }
func (memCatalog) ListSkills(ctx context.Context) ([]models.Skill, error) { return nil, nil }

func (memCatalog) JobsByIDs(ctx context.Context, ids []string) ([]models.Job, error) {
	out := make([]models.Job, len(ids))
	for i, id := range ids {
		out[i] = models.Job{ID: id, Title: "Job " + id}
	}
	return out, nil
}

func (memCatalog) SkillsByIDs(ctx context.Context, ids []string) ([]models.Skill, error) {
	out := make([]models.Skill, len(ids))
	for i, id := range ids {
		out[i] = models.Skill{ID: id, Name: "Skill " + id}
	}
	return out, nil
}

type fakeGenerator struct {
	n   int
	err error
}

func (g *fakeGenerator) Generate(ctx context.Context, jobs []models.Job, skills []models.Skill, resumeText string) ([]models.Question, error) {
	if g.err != nil {
		return nil, g.err
	}
	out := make([]models.Question, g.n)
	for i := range out {
		out[i] = models.Question{
			QuestionID: fmt.Sprintf("q%d", i+1),
			Text:       fmt.Sprintf("Question %d?", i+1),
			Type:       models.QuestionTypeGeneral,
		}
	}
	return out, nil
}

type fakeEvaluator struct {
	mu      sync.Mutex
	calls   int
	scores  map[string]float64 // keyed by answer text
	failFor map[string]bool
}

func (e *fakeEvaluator) Evaluate(ctx context.Context, questionText, answerText string) (*Evaluation, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.calls++
	if e.failFor[answerText] {
		return nil, errors.New("model unavailable")
	}
	score := 5.0
	if s, ok := e.scores[answerText]; ok {
		score = s
	}
	return &Evaluation{Score: score, Summary: "fine"}, nil
}

func (e *fakeEvaluator) callCount() int {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.calls
}

type fakeSTT struct {
	text string
	err  error
}

func (f *fakeSTT) Transcribe(ctx context.Context, media []byte, contentType string) (string, float64, error) {
	if f.err != nil {
		return "", 0, f.err
	}
	return f.text, 0.9, nil
}

func (f *fakeSTT) Close() error { return nil }

type fakeUploader struct {
	mu      sync.Mutex
	objects []string
}

func (f *fakeUploader) Upload(ctx context.Context, objectName, contentType string, r io.Reader) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.objects = append(f.objects, objectName)
	return objectName, nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []realtime.Event
}

func (f *fakePublisher) Publish(ctx context.Context, e realtime.Event) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, e)
	return nil
}

type testEnv struct {
	repo      *memSessionRepo
	evaluator *fakeEvaluator
	stt       *fakeSTT
	uploader  *fakeUploader
	events    *fakePublisher
	svc       InterviewService
}

func newTestEnv(t *testing.T, gen QuestionGenerator) *testEnv {
	t.Helper()
	log := logrus.New()
	log.SetOutput(io.Discard)

	env := &testEnv{
		repo:      newMemSessionRepo(),
		evaluator: &fakeEvaluator{},
		stt:       &fakeSTT{text: "transcribed answer"},
		uploader:  &fakeUploader{},
		events:    &fakePublisher{},
	}
	env.svc = NewInterviewService(InterviewServiceDeps{
		Sessions:  env.repo,
		Catalog:   memCatalog{},
		Generator: gen,
		Evaluator: env.evaluator,
		STT:       env.stt,
		Uploader:  env.uploader,
		Events:    env.events,
		Logger:    log,
	})
	return env
}

// seedSession drops a ready-made in-progress session into the store.
func (env *testEnv) seedSession(t *testing.T, owner string, numQuestions int) *models.InterviewSession {
	t.Helper()
	s := &models.InterviewSession{
		SessionID:       "sess-1",
		OwnerID:         owner,
		SelectedJobs:    []string{"j1"},
		SelectedSkills:  []string{"s1"},
		Status:          models.SessionInProgress,
		QuestionSeconds: 60,
		StartTime:       time.Now().UTC(),
	}
	for i := 0; i < numQuestions; i++ {
		s.Questions = append(s.Questions, models.Question{
			QuestionID: fmt.Sprintf("q%d", i+1),
			Text:       fmt.Sprintf("Question %d?", i+1),
			Type:       models.QuestionTypeGeneral,
		})
	}
	require.NoError(t, env.repo.Create(context.Background(), s))
	return s
}

func TestCreateSession(t *testing.T) {
	ctx := context.Background()

	t.Run("five generated questions start an in-progress session", func(t *testing.T) {
		env := newTestEnv(t, &fakeGenerator{n: 5})

		s, err := env.svc.CreateSession(ctx, "owner-1", []string{"j1"}, []string{"s1"}, "")
		require.NoError(t, err)
		assert.Equal(t, models.SessionInProgress, s.Status)
		assert.Len(t, s.Questions, 5)
		assert.Equal(t, 0, s.CurrentIndex)
		assert.Equal(t, 60, s.QuestionSeconds)
		assert.False(t, s.StartTime.IsZero())

		stored, err := env.repo.GetBySessionID(ctx, s.SessionID)
		require.NoError(t, err)
		assert.Len(t, stored.Questions, 5)
	})

	t.Run("empty selections rejected before any external call", func(t *testing.T) {
		env := newTestEnv(t, &fakeGenerator{n: 5})

		_, err := env.svc.CreateSession(ctx, "owner-1", nil, []string{"s1"}, "")
		assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))

		_, err = env.svc.CreateSession(ctx, "owner-1", []string{"j1"}, nil, "")
		assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))
	})

	t.Run("generator failure persists nothing", func(t *testing.T) {
		env := newTestEnv(t, &fakeGenerator{err: utils.E(utils.CodeGenerationFailed, "gen", "no questions", nil)})

		_, err := env.svc.CreateSession(ctx, "owner-1", []string{"j1"}, []string{"s1"}, "resume")
		assert.True(t, utils.IsCode(err, utils.CodeGenerationFailed))
		assert.Empty(t, env.repo.sessions)
	})
}

func TestSaveAnswer(t *testing.T) {
	ctx := context.Background()

	t.Run("text only", func(t *testing.T) {
		env := newTestEnv(t, &fakeGenerator{n: 5})
		s := env.seedSession(t, "owner-1", 5)

		q, err := env.svc.SaveAnswer(ctx, SaveAnswerInput{
			SessionID:   s.SessionID,
			QuestionID:  "q2",
			RequesterID: "owner-1",
			UserAnswer:  "Hello",
		})
		require.NoError(t, err)
		assert.True(t, q.IsAnswered)
		assert.Equal(t, "", q.Transcription)
		assert.Nil(t, q.MediaURL)

		stored, _ := env.repo.GetBySessionID(ctx, s.SessionID)
		assert.Equal(t, "Hello", stored.Questions[1].UserAnswer)
		assert.True(t, stored.Questions[1].IsAnswered)
	})

	t.Run("whitespace-only answer stays unanswered", func(t *testing.T) {
		env := newTestEnv(t, &fakeGenerator{n: 5})
		s := env.seedSession(t, "owner-1", 5)

		q, err := env.svc.SaveAnswer(ctx, SaveAnswerInput{
			SessionID:   s.SessionID,
			QuestionID:  "q1",
			RequesterID: "owner-1",
			UserAnswer:  "   \t",
		})
		require.NoError(t, err)
		assert.False(t, q.IsAnswered)
	})

	t.Run("media with working transcription", func(t *testing.T) {
		env := newTestEnv(t, &fakeGenerator{n: 5})
		s := env.seedSession(t, "owner-1", 5)

		q, err := env.svc.SaveAnswer(ctx, SaveAnswerInput{
			SessionID:        s.SessionID,
			QuestionID:       "q1",
			RequesterID:      "owner-1",
			Media:            []byte("webm-bytes"),
			MediaContentType: "audio/webm",
		})
		require.NoError(t, err)
		assert.True(t, q.IsAnswered)
		assert.Equal(t, "transcribed answer", q.Transcription)
		require.NotNil(t, q.MediaURL)
		assert.Contains(t, *q.MediaURL, "answers/"+s.SessionID+"/q1/")
	})

	t.Run("transcription failure does not fail the save", func(t *testing.T) {
		env := newTestEnv(t, &fakeGenerator{n: 5})
		env.stt.err = errors.New("speech backend down")
		s := env.seedSession(t, "owner-1", 5)

		q, err := env.svc.SaveAnswer(ctx, SaveAnswerInput{
			SessionID:        s.SessionID,
			QuestionID:       "q3",
			RequesterID:      "owner-1",
			UserAnswer:       "Hello",
			Media:            []byte("webm-bytes"),
			MediaContentType: "audio/webm",
		})
		require.NoError(t, err)
		assert.Equal(t, "Hello", q.UserAnswer)
		assert.Equal(t, TranscriptionFailedMarker, q.Transcription)
		assert.NotNil(t, q.MediaURL)
		assert.True(t, q.IsAnswered)
	})

	t.Run("only the owner may save", func(t *testing.T) {
		env := newTestEnv(t, &fakeGenerator{n: 5})
		s := env.seedSession(t, "owner-1", 5)

		_, err := env.svc.SaveAnswer(ctx, SaveAnswerInput{
			SessionID:   s.SessionID,
			QuestionID:  "q1",
			RequesterID: "intruder",
			UserAnswer:  "Hello",
		})
		assert.True(t, utils.IsCode(err, utils.CodeForbidden))
	})

	t.Run("unknown session and question ids", func(t *testing.T) {
		env := newTestEnv(t, &fakeGenerator{n: 5})
		s := env.seedSession(t, "owner-1", 5)

		_, err := env.svc.SaveAnswer(ctx, SaveAnswerInput{
			SessionID:   "missing",
			QuestionID:  "q1",
			RequesterID: "owner-1",
		})
		assert.True(t, utils.IsCode(err, utils.CodeNotFound))

		_, err = env.svc.SaveAnswer(ctx, SaveAnswerInput{
			SessionID:   s.SessionID,
			QuestionID:  "q99",
			RequesterID: "owner-1",
		})
		assert.True(t, utils.IsCode(err, utils.CodeNotFound))
	})

	t.Run("concurrent saves to distinct questions both persist", func(t *testing.T) {
		env := newTestEnv(t, &fakeGenerator{n: 5})
		s := env.seedSession(t, "owner-1", 5)

		var wg sync.WaitGroup
		wg.Add(2)
		go func() {
			defer wg.Done()
			_, err := env.svc.SaveAnswer(ctx, SaveAnswerInput{
				SessionID: s.SessionID, QuestionID: "q1", RequesterID: "owner-1", UserAnswer: "answer one",
			})
			assert.NoError(t, err)
		}()
		go func() {
			defer wg.Done()
			_, err := env.svc.SaveAnswer(ctx, SaveAnswerInput{
				SessionID: s.SessionID, QuestionID: "q2", RequesterID: "owner-1", UserAnswer: "answer two",
			})
			assert.NoError(t, err)
		}()
		wg.Wait()

		stored, _ := env.repo.GetBySessionID(ctx, s.SessionID)
		assert.Equal(t, "answer one", stored.Questions[0].UserAnswer)
		assert.Equal(t, "answer two", stored.Questions[1].UserAnswer)
		assert.True(t, stored.Questions[0].IsAnswered)
		assert.True(t, stored.Questions[1].IsAnswered)
	})
}

func TestAdvanceQuestion(t *testing.T) {
	ctx := context.Background()

	t.Run("next and prev move the cursor within bounds", func(t *testing.T) {
		env := newTestEnv(t, &fakeGenerator{n: 3})
		s := env.seedSession(t, "owner-1", 3)

		idx, err := env.svc.AdvanceQuestion(ctx, s.SessionID, "owner-1", DirectionNext)
		require.NoError(t, err)
		assert.Equal(t, 1, idx)

		idx, err = env.svc.AdvanceQuestion(ctx, s.SessionID, "owner-1", DirectionPrev)
		require.NoError(t, err)
		assert.Equal(t, 0, idx)
	})

	t.Run("prev at the first question is rejected", func(t *testing.T) {
		env := newTestEnv(t, &fakeGenerator{n: 3})
		s := env.seedSession(t, "owner-1", 3)

		_, err := env.svc.AdvanceQuestion(ctx, s.SessionID, "owner-1", DirectionPrev)
		assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))
	})

	t.Run("next past the last question is rejected", func(t *testing.T) {
		env := newTestEnv(t, &fakeGenerator{n: 2})
		s := env.seedSession(t, "owner-1", 2)

		_, err := env.svc.AdvanceQuestion(ctx, s.SessionID, "owner-1", DirectionNext)
		require.NoError(t, err)

		_, err = env.svc.AdvanceQuestion(ctx, s.SessionID, "owner-1", DirectionNext)
		assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))
	})

	t.Run("moving a completed session is rejected", func(t *testing.T) {
		env := newTestEnv(t, &fakeGenerator{n: 3})
		s := env.seedSession(t, "owner-1", 3)
		require.NoError(t, env.repo.Complete(ctx, s.SessionID, time.Now()))

		_, err := env.svc.AdvanceQuestion(ctx, s.SessionID, "owner-1", DirectionNext)
		assert.True(t, utils.IsCode(err, utils.CodeInvalidArgument))
	})

	t.Run("concurrent advances each report their own landing index", func(t *testing.T) {
		env := newTestEnv(t, &fakeGenerator{n: 5})
		s := env.seedSession(t, "owner-1", 5)

		results := make(chan int, 2)
		var wg sync.WaitGroup
		for i := 0; i < 2; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				idx, err := env.svc.AdvanceQuestion(ctx, s.SessionID, "owner-1", DirectionNext)
				if assert.NoError(t, err) {
					results <- idx
				}
			}()
		}
		wg.Wait()
		close(results)

		seen := map[int]bool{}
		for idx := range results {
			seen[idx] = true
		}
		// each call returns the index its own increment produced, never a
		// stale pre-update snapshot
		assert.Equal(t, map[int]bool{1: true, 2: true}, seen)
	})
}

func TestCompleteAndEvaluate(t *testing.T) {
	ctx := context.Background()

	answer := func(env *testEnv, sessionID, questionID, text string) {
		_, err := env.svc.SaveAnswer(ctx, SaveAnswerInput{
			SessionID: sessionID, QuestionID: questionID, RequesterID: "owner-1", UserAnswer: text,
		})
		if err != nil {
			panic(err)
		}
	}

	t.Run("overall score averages answered questions only", func(t *testing.T) {
		env := newTestEnv(t, &fakeGenerator{n: 5})
		env.evaluator.scores = map[string]float64{"a1": 6, "a2": 8, "a3": 10}
		s := env.seedSession(t, "owner-1", 5)

		answer(env, s.SessionID, "q1", "a1")
		answer(env, s.SessionID, "q2", "a2")
		answer(env, s.SessionID, "q4", "a3")

		out, err := env.svc.CompleteAndEvaluate(ctx, s.SessionID, "owner-1")
		require.NoError(t, err)
		assert.Equal(t, models.SessionEvaluated, out.Status)
		assert.InDelta(t, 8.0, out.OverallScore, 1e-9)
		assert.Equal(t, 3, env.evaluator.callCount())
		require.NotNil(t, out.EndTime)

		// unanswered questions keep zero evaluation state
		assert.Equal(t, 0.0, out.Questions[2].AIScore)
		assert.Empty(t, out.Questions[2].AIFeedbackSummary)
		assert.Equal(t, 0.0, out.Questions[4].AIScore)

		stored, _ := env.repo.GetBySessionID(ctx, s.SessionID)
		assert.Equal(t, models.SessionEvaluated, stored.Status)
		assert.InDelta(t, 8.0, stored.OverallScore, 1e-9)
	})

	t.Run("second call is an idempotent no-op", func(t *testing.T) {
		env := newTestEnv(t, &fakeGenerator{n: 3})
		env.evaluator.scores = map[string]float64{"a1": 4}
		s := env.seedSession(t, "owner-1", 3)
		answer(env, s.SessionID, "q1", "a1")

		first, err := env.svc.CompleteAndEvaluate(ctx, s.SessionID, "owner-1")
		require.NoError(t, err)
		callsAfterFirst := env.evaluator.callCount()

		second, err := env.svc.CompleteAndEvaluate(ctx, s.SessionID, "owner-1")
		require.NoError(t, err)
		assert.Equal(t, first.OverallScore, second.OverallScore)
		assert.Equal(t, callsAfterFirst, env.evaluator.callCount())
	})

	t.Run("no answered questions evaluates to zero", func(t *testing.T) {
		env := newTestEnv(t, &fakeGenerator{n: 4})
		s := env.seedSession(t, "owner-1", 4)

		out, err := env.svc.CompleteAndEvaluate(ctx, s.SessionID, "owner-1")
		require.NoError(t, err)
		assert.Equal(t, models.SessionEvaluated, out.Status)
		assert.Equal(t, 0.0, out.OverallScore)
		assert.Equal(t, 0, env.evaluator.callCount())
	})

	t.Run("one failing evaluation degrades that question only", func(t *testing.T) {
		env := newTestEnv(t, &fakeGenerator{n: 3})
		env.evaluator.scores = map[string]float64{"good": 9}
		env.evaluator.failFor = map[string]bool{"bad": true}
		s := env.seedSession(t, "owner-1", 3)

		answer(env, s.SessionID, "q1", "good")
		answer(env, s.SessionID, "q2", "bad")

		out, err := env.svc.CompleteAndEvaluate(ctx, s.SessionID, "owner-1")
		require.NoError(t, err)
		assert.Equal(t, 9.0, out.Questions[0].AIScore)
		assert.Equal(t, 0.0, out.Questions[1].AIScore)
		assert.Equal(t, EvalFailedSummary, out.Questions[1].AIFeedbackSummary)
		assert.InDelta(t, 4.5, out.OverallScore, 1e-9)
	})

	t.Run("progress events reach the publisher", func(t *testing.T) {
		env := newTestEnv(t, &fakeGenerator{n: 2})
		s := env.seedSession(t, "owner-1", 2)
		answer(env, s.SessionID, "q1", "a1")

		_, err := env.svc.CompleteAndEvaluate(ctx, s.SessionID, "owner-1")
		require.NoError(t, err)

		require.NotEmpty(t, env.events.events)
		last := env.events.events[len(env.events.events)-1]
		assert.Equal(t, "evaluation_complete", last.Type)
		assert.Equal(t, s.SessionID, last.SessionID)
	})

	t.Run("only the owner may complete", func(t *testing.T) {
		env := newTestEnv(t, &fakeGenerator{n: 2})
		s := env.seedSession(t, "owner-1", 2)

		_, err := env.svc.CompleteAndEvaluate(ctx, s.SessionID, "intruder")
		assert.True(t, utils.IsCode(err, utils.CodeForbidden))
	})
}
