package services

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/prepwise/prepwise/internal/providers/llm"
	"github.com/prepwise/prepwise/internal/utils"
)

// EvalFailedSummary is the fixed feedback a question receives when its
// evaluation call fails; the rest of the batch carries on.
const EvalFailedSummary = "Evaluation failed for this answer."

// Evaluation is the parsed rubric for one answered question.
type Evaluation struct {
	Score               float64            `json:"score"`
	CategoryScores      map[string]float64 `json:"category_scores"`
	Summary             string             `json:"summary"`
	Strengths           []string           `json:"strengths"`
	AreasForImprovement []string           `json:"areas_for_improvement"`
}

type AnswerEvaluator interface {
	Evaluate(ctx context.Context, questionText, answerText string) (*Evaluation, error)
}

type answerEvaluator struct {
	llm llm.Provider
}

func NewAnswerEvaluator(p llm.Provider) AnswerEvaluator {
	return &answerEvaluator{llm: p}
}

func (e *answerEvaluator) Evaluate(ctx context.Context, questionText, answerText string) (*Evaluation, error) {
	const op = "AnswerEvaluator.Evaluate"

	prompt := buildEvalPrompt(questionText, answerText)

	raw, err := llm.Collect(ctx, e.llm, prompt)
	if err != nil {
		return nil, utils.E(utils.CodeGenerationFailed, op, "evaluation call failed", err)
	}

	ev, err := ParseEvaluation(raw)
	if err != nil {
		return nil, utils.E(utils.CodeGenerationFailed, op, "model returned unparseable evaluation", err)
	}
	return ev, nil
}

func buildEvalPrompt(questionText, answerText string) string {
	return fmt.Sprintf(`You are grading one mock-interview answer.

Question: %s

Candidate answer: %s

Reply with ONLY a JSON object, no markdown fences, shaped exactly like:
{
  "score": 0-10,
  "category_scores": {"relevance": 0-10, "clarity": 0-10, "depth": 0-10, "structure": 0-10},
  "summary": "two or three sentences of feedback",
  "strengths": ["..."],
  "areas_for_improvement": ["..."]
}`, questionText, answerText)
}

// ParseEvaluation decodes the rubric JSON, tolerating code fences around the
// object, and clamps every score into [0,10].
func ParseEvaluation(raw string) (*Evaluation, error) {
	s := strings.TrimSpace(raw)
	if i := strings.Index(s, "{"); i >= 0 {
		if j := strings.LastIndex(s, "}"); j > i {
			s = s[i : j+1]
		}
	}

	var ev Evaluation
	if err := json.Unmarshal([]byte(s), &ev); err != nil {
		return nil, err
	}

	ev.Score = clampScore(ev.Score)
	for k, v := range ev.CategoryScores {
		ev.CategoryScores[k] = clampScore(v)
	}
	return &ev, nil
}

func clampScore(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 10 {
		return 10
	}
	return v
}
