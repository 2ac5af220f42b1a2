package models

import (
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type SessionStatus string

const (
	SessionPending    SessionStatus = "pending"
	SessionInProgress SessionStatus = "in-progress"
	SessionCompleted  SessionStatus = "completed"
	SessionEvaluated  SessionStatus = "evaluated"
)

var statusRank = map[SessionStatus]int{
	SessionPending:    0,
	SessionInProgress: 1,
	SessionCompleted:  2,
	SessionEvaluated:  3,
}

// CanTransition reports whether moving from -> to respects the forward-only
// machine pending -> in-progress -> completed -> evaluated.
func CanTransition(from, to SessionStatus) bool {
	fr, ok1 := statusRank[from]
	tr, ok2 := statusRank[to]
	return ok1 && ok2 && tr > fr
}

type InterviewSession struct {
	ID        primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	SessionID string             `bson:"session_id" json:"session_id"` // uuid v4
	OwnerID   string             `bson:"owner_id" json:"owner_id"`

	SelectedJobs   []string `bson:"selected_jobs" json:"selected_jobs"`     // catalog job ids
	SelectedSkills []string `bson:"selected_skills" json:"selected_skills"` // catalog skill ids
	ResumeText     string   `bson:"resume_text,omitempty" json:"resume_text,omitempty"`

	Questions    []Question    `bson:"questions" json:"questions"` // order fixed at generation
	CurrentIndex int           `bson:"current_index" json:"current_index"`
	OverallScore float64       `bson:"overall_score" json:"overall_score"` // [0,10], set at finalization only
	Status       SessionStatus `bson:"status" json:"status"`

	QuestionSeconds int `bson:"question_seconds" json:"question_seconds"` // per-question countdown, client-enforced

	StartTime time.Time  `bson:"start_time" json:"start_time"`
	EndTime   *time.Time `bson:"end_time,omitempty" json:"end_time,omitempty"`
}

type Question struct {
	QuestionID string `bson:"question_id" json:"question_id"` // uuid v4
	Text       string `bson:"text" json:"text"`
	Type       string `bson:"type" json:"type"` // general|technical|behavioral|...

	UserAnswer    string  `bson:"user_answer" json:"user_answer"`
	MediaURL      *string `bson:"media_url,omitempty" json:"media_url,omitempty"`
	Transcription string  `bson:"transcription" json:"transcription"`
	IsAnswered    bool    `bson:"is_answered" json:"is_answered"`

	AIScore               float64            `bson:"ai_score" json:"ai_score"` // [0,10]
	AICategoryScores      map[string]float64 `bson:"ai_category_scores,omitempty" json:"ai_category_scores,omitempty"`
	AIFeedbackSummary     string             `bson:"ai_feedback_summary" json:"ai_feedback_summary"`
	AIStrengths           []string           `bson:"ai_strengths,omitempty" json:"ai_strengths,omitempty"`
	AIAreasForImprovement []string           `bson:"ai_areas_for_improvement,omitempty" json:"ai_areas_for_improvement,omitempty"`
}

const QuestionTypeGeneral = "general"

// DeriveAnswered is the single source of truth for is_answered: a question
// counts as answered iff its answer text or transcription is non-blank.
// Callers never supply the flag themselves.
func DeriveAnswered(userAnswer, transcription string) bool {
	return strings.TrimSpace(userAnswer) != "" || strings.TrimSpace(transcription) != ""
}
