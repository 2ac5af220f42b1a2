package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"github.com/prepwise/prepwise/internal/models"
	"github.com/prepwise/prepwise/internal/providers/stt"
	"github.com/prepwise/prepwise/internal/realtime"
	mongorepo "github.com/prepwise/prepwise/internal/repositories/mongo"
	pgrepo "github.com/prepwise/prepwise/internal/repositories/postgres"
	"github.com/prepwise/prepwise/internal/storage"
	"github.com/prepwise/prepwise/internal/utils"
)

// TranscriptionFailedMarker lands in a question's transcription field when the
// speech call fails; the save itself still succeeds.
const TranscriptionFailedMarker = "[transcription unavailable]"

const (
	DirectionNext = "next"
	DirectionPrev = "prev"

	defaultQuestionSeconds = 60
	signedURLTTL           = 15 * time.Minute
)

type SaveAnswerInput struct {
	SessionID   string
	QuestionID  string
	RequesterID string

	UserAnswer string

	// Optional recorded answer. MediaContentType selects the recognizer
	// encoding and the stored object's content type.
	Media            []byte
	MediaContentType string
}

type InterviewService interface {
	CreateSession(ctx context.Context, ownerID string, jobIDs, skillIDs []string, resumeText string) (*models.InterviewSession, error)
	GetSession(ctx context.Context, sessionID, requesterID string) (*models.InterviewSession, error)
	ListSessions(ctx context.Context, ownerID string) ([]models.InterviewSession, error)
	SaveAnswer(ctx context.Context, in SaveAnswerInput) (*models.Question, error)
	AdvanceQuestion(ctx context.Context, sessionID, requesterID, direction string) (int, error)
	CompleteAndEvaluate(ctx context.Context, sessionID, requesterID string) (*models.InterviewSession, error)
}

type interviewService struct {
	sessions  mongorepo.SessionRepository
	catalog   pgrepo.CatalogRepository
	generator QuestionGenerator
	evaluator AnswerEvaluator
	stt       stt.Provider
	uploader  storage.Uploader
	signer    storage.Signer
	events    realtime.Publisher
	log       *logrus.Logger

	questionSeconds int
}

type InterviewServiceDeps struct {
	Sessions  mongorepo.SessionRepository
	Catalog   pgrepo.CatalogRepository
	Generator QuestionGenerator
	Evaluator AnswerEvaluator
	STT       stt.Provider
	Uploader  storage.Uploader
	Signer    storage.Signer
	Events    realtime.Publisher
	Logger    *logrus.Logger

	QuestionSeconds int
}

func NewInterviewService(d InterviewServiceDeps) InterviewService {
	if d.QuestionSeconds <= 0 {
		d.QuestionSeconds = defaultQuestionSeconds
	}
	if d.Logger == nil {
		d.Logger = logrus.New()
	}
	return &interviewService{
		sessions:        d.Sessions,
		catalog:         d.Catalog,
		generator:       d.Generator,
		evaluator:       d.Evaluator,
		stt:             d.STT,
		uploader:        d.Uploader,
		signer:          d.Signer,
		events:          d.Events,
		log:             d.Logger,
		questionSeconds: d.QuestionSeconds,
	}
}

// CreateSession validates the selection, generates questions, and persists the
// session already in-progress. Nothing is persisted when generation fails.
func (s *interviewService) CreateSession(ctx context.Context, ownerID string, jobIDs, skillIDs []string, resumeText string) (*models.InterviewSession, error) {
	const op = "InterviewService.CreateSession"

	if ownerID == "" {
		return nil, utils.E(utils.CodeUnauthorized, op, "owner is required", nil)
	}
	if len(jobIDs) == 0 || len(skillIDs) == 0 {
		return nil, utils.E(utils.CodeInvalidArgument, op, "at least one job and one skill must be selected", nil)
	}

	jobs, err := s.catalog.JobsByIDs(ctx, jobIDs)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to resolve jobs", err)
	}
	skills, err := s.catalog.SkillsByIDs(ctx, skillIDs)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to resolve skills", err)
	}
	if len(jobs) != len(jobIDs) || len(skills) != len(skillIDs) {
		return nil, utils.E(utils.CodeInvalidArgument, op, "unknown job or skill id in selection", nil)
	}

	questions, err := s.generator.Generate(ctx, jobs, skills, resumeText)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	session := &models.InterviewSession{
		SessionID:       uuid.NewString(),
		OwnerID:         ownerID,
		SelectedJobs:    jobIDs,
		SelectedSkills:  skillIDs,
		ResumeText:      resumeText,
		Questions:       questions,
		CurrentIndex:    0,
		Status:          models.SessionInProgress,
		QuestionSeconds: s.questionSeconds,
		StartTime:       now,
	}

	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to create session", err)
	}

	s.log.WithFields(logrus.Fields{
		"session_id": session.SessionID,
		"owner_id":   ownerID,
		"questions":  len(questions),
	}).Info("interview session created")

	return session, nil
}

func (s *interviewService) GetSession(ctx context.Context, sessionID, requesterID string) (*models.InterviewSession, error) {
	const op = "InterviewService.GetSession"

	session, err := s.load(ctx, op, sessionID, requesterID)
	if err != nil {
		return nil, err
	}

	// Replace stored object names with short-lived playback URLs. The signed
	// URL never goes back into the document.
	if s.signer != nil {
		for i := range session.Questions {
			q := &session.Questions[i]
			if q.MediaURL == nil || *q.MediaURL == "" {
				continue
			}
			if url, serr := s.signer.SignedGetURL(ctx, *q.MediaURL, signedURLTTL); serr == nil {
				signed := url
				q.MediaURL = &signed
			}
		}
	}
	return session, nil
}

func (s *interviewService) ListSessions(ctx context.Context, ownerID string) ([]models.InterviewSession, error) {
	const op = "InterviewService.ListSessions"

	if ownerID == "" {
		return nil, utils.E(utils.CodeUnauthorized, op, "owner is required", nil)
	}
	out, err := s.sessions.ListByOwner(ctx, ownerID, 0)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to list sessions", err)
	}
	return out, nil
}

// SaveAnswer persists one question's answer. Media upload and transcription
// run synchronously; a transcription failure degrades to a marker string and
// the save still succeeds. The write is a single conditional update keyed by
// (session_id, question_id), so saves against different questions of the same
// session never clobber each other.
func (s *interviewService) SaveAnswer(ctx context.Context, in SaveAnswerInput) (*models.Question, error) {
	const op = "InterviewService.SaveAnswer"

	session, err := s.load(ctx, op, in.SessionID, in.RequesterID)
	if err != nil {
		return nil, err
	}

	var current *models.Question
	for i := range session.Questions {
		if session.Questions[i].QuestionID == in.QuestionID {
			current = &session.Questions[i]
			break
		}
	}
	if current == nil {
		return nil, utils.E(utils.CodeNotFound, op, "question not found in session", nil)
	}

	upd := mongorepo.AnswerUpdate{
		UserAnswer: in.UserAnswer,
		// Re-saving text only keeps whatever a previous recording produced.
		Transcription: current.Transcription,
	}

	if len(in.Media) > 0 {
		objectName := mediaObjectName(in.SessionID, in.QuestionID, in.MediaContentType)
		stored, uerr := s.uploader.Upload(ctx, objectName, in.MediaContentType, bytes.NewReader(in.Media))
		if uerr != nil {
			return nil, utils.E(utils.CodeUnavailable, op, "failed to store recording", uerr)
		}
		upd.MediaURL = &stored

		text, _, terr := s.stt.Transcribe(ctx, in.Media, in.MediaContentType)
		if terr != nil {
			s.log.WithError(terr).WithFields(logrus.Fields{
				"session_id":  in.SessionID,
				"question_id": in.QuestionID,
			}).Warn("transcription failed, saving answer without it")
			upd.Transcription = TranscriptionFailedMarker
		} else {
			upd.Transcription = text
		}
	}

	upd.IsAnswered = models.DeriveAnswered(upd.UserAnswer, upd.Transcription)

	if err := s.sessions.UpdateQuestionAnswer(ctx, in.SessionID, in.QuestionID, upd); err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "question not found in session", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to save answer", err)
	}

	saved := *current
	saved.UserAnswer = upd.UserAnswer
	saved.Transcription = upd.Transcription
	saved.IsAnswered = upd.IsAnswered
	if upd.MediaURL != nil {
		saved.MediaURL = upd.MediaURL
	}
	return &saved, nil
}

// AdvanceQuestion moves the session cursor one step. Bounds and the
// in-progress guard are enforced inside a single conditional update, so a
// timer firing against a session that just completed is a clean rejection, not
// a backward transition.
func (s *interviewService) AdvanceQuestion(ctx context.Context, sessionID, requesterID, direction string) (int, error) {
	const op = "InterviewService.AdvanceQuestion"

	session, err := s.load(ctx, op, sessionID, requesterID)
	if err != nil {
		return 0, err
	}

	last := len(session.Questions) - 1
	var delta, lo, hi int
	switch direction {
	case DirectionNext:
		delta, lo, hi = 1, 0, last-1
	case DirectionPrev:
		delta, lo, hi = -1, 1, last
	default:
		return 0, utils.E(utils.CodeInvalidArgument, op, "direction must be next or prev", nil)
	}
	if hi < lo {
		return 0, utils.E(utils.CodeInvalidArgument, op, "no question to move to", nil)
	}

	idx, err := s.sessions.ShiftIndex(ctx, sessionID, delta, lo, hi)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return 0, utils.E(utils.CodeInvalidArgument, op, "index out of bounds or session is not in progress", err)
		}
		return 0, utils.E(utils.CodeInternal, op, "failed to advance question", err)
	}
	return idx, nil
}

// CompleteAndEvaluate marks the session completed, evaluates every answered
// question, and finalizes status and overall score in one update. Calling it
// on an already-evaluated session returns the stored result without touching
// the evaluator. One question's evaluation failure degrades that question only.
func (s *interviewService) CompleteAndEvaluate(ctx context.Context, sessionID, requesterID string) (*models.InterviewSession, error) {
	const op = "InterviewService.CompleteAndEvaluate"

	session, err := s.load(ctx, op, sessionID, requesterID)
	if err != nil {
		return nil, err
	}

	// evaluated is terminal: nothing moves forward from it, so a repeat call
	// returns the stored result untouched
	if !models.CanTransition(session.Status, models.SessionEvaluated) {
		return session, nil
	}

	now := time.Now().UTC()
	if session.Status == models.SessionInProgress {
		if err := s.sessions.Complete(ctx, sessionID, now); err != nil && !errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeInternal, op, "failed to complete session", err)
		}
		session.Status = models.SessionCompleted
		session.EndTime = &now
	}

	total := len(session.Questions)
	answered := 0
	var sum float64

	for i := range session.Questions {
		q := &session.Questions[i]
		if !q.IsAnswered {
			continue
		}
		answered++

		answerText := q.UserAnswer
		if answerText == "" {
			answerText = q.Transcription
		}

		ev, eerr := s.evaluator.Evaluate(ctx, q.Text, answerText)
		if eerr != nil {
			s.log.WithError(eerr).WithFields(logrus.Fields{
				"session_id":  sessionID,
				"question_id": q.QuestionID,
			}).Error("answer evaluation failed")
			q.AIScore = 0
			q.AIFeedbackSummary = EvalFailedSummary
		} else {
			q.AIScore = ev.Score
			q.AICategoryScores = ev.CategoryScores
			q.AIFeedbackSummary = ev.Summary
			q.AIStrengths = ev.Strengths
			q.AIAreasForImprovement = ev.AreasForImprovement
		}
		sum += q.AIScore

		s.publish(ctx, realtime.Event{
			Type:       "evaluation_progress",
			SessionID:  sessionID,
			QuestionID: q.QuestionID,
			Evaluated:  answered,
			Total:      total,
			Failed:     eerr != nil,
		})
	}

	overall := 0.0
	if answered > 0 {
		overall = sum / float64(answered)
	}

	if err := s.sessions.FinalizeEvaluation(ctx, sessionID, session.Questions, overall); err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			// Another caller finalized first; their result stands.
			return s.load(ctx, op, sessionID, requesterID)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to finalize evaluation", err)
	}

	session.Status = models.SessionEvaluated
	session.OverallScore = overall

	s.publish(ctx, realtime.Event{
		Type:         "evaluation_complete",
		SessionID:    sessionID,
		Total:        total,
		Evaluated:    answered,
		OverallScore: overall,
	})

	s.log.WithFields(logrus.Fields{
		"session_id":    sessionID,
		"answered":      answered,
		"overall_score": overall,
	}).Info("interview session evaluated")

	return session, nil
}

func (s *interviewService) publish(ctx context.Context, e realtime.Event) {
	if s.events == nil {
		return
	}
	if err := s.events.Publish(ctx, e); err != nil {
		s.log.WithError(err).Warn("failed to publish session event")
	}
}

// load fetches a session and enforces ownership.
func (s *interviewService) load(ctx context.Context, op, sessionID, requesterID string) (*models.InterviewSession, error) {
	if sessionID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}

	session, err := s.sessions.GetBySessionID(ctx, sessionID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "session not found", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to get session", err)
	}
	if session.OwnerID != requesterID {
		return nil, utils.E(utils.CodeForbidden, op, "forbidden", nil)
	}
	return session, nil
}

func mediaObjectName(sessionID, questionID, contentType string) string {
	return fmt.Sprintf("answers/%s/%s/%d%s",
		sessionID, questionID, time.Now().UTC().UnixNano(), extFor(contentType))
}

func extFor(contentType string) string {
	switch {
	case contentType == "video/mp4":
		return ".mp4"
	case contentType == "audio/ogg" || contentType == "application/ogg":
		return ".ogg"
	case contentType == "audio/wav" || contentType == "audio/x-wav":
		return ".wav"
	case contentType == "" || contentType == "audio/webm" || contentType == "video/webm":
		return ".webm"
	default:
		return ".bin"
	}
}
