package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"github.com/prepwise/prepwise/internal/models"
	"github.com/prepwise/prepwise/internal/providers/llm"
	"github.com/prepwise/prepwise/internal/utils"
)

const (
	// resumeExcerptLimit bounds how much resume text goes into the prompt.
	resumeExcerptLimit = 2000

	minQuestionLen = 12
	minQuestions   = 5
	maxQuestions   = 7
)

type QuestionGenerator interface {
	Generate(ctx context.Context, jobs []models.Job, skills []models.Skill, resumeText string) ([]models.Question, error)
}

type questionGenerator struct {
	llm llm.Provider
}

func NewQuestionGenerator(p llm.Provider) QuestionGenerator {
	return &questionGenerator{llm: p}
}

func (g *questionGenerator) Generate(ctx context.Context, jobs []models.Job, skills []models.Skill, resumeText string) ([]models.Question, error) {
	const op = "QuestionGenerator.Generate"

	prompt := buildQuestionPrompt(jobs, skills, resumeText)

	raw, err := llm.Collect(ctx, g.llm, prompt)
	if err != nil {
		return nil, utils.E(utils.CodeGenerationFailed, op, "question generation call failed", err)
	}

	// a session needs the full minQuestions..maxQuestions list; a thin reply
	// is as unusable as an empty one
	texts := ParseQuestionList(raw)
	if len(texts) < minQuestions {
		return nil, utils.E(utils.CodeGenerationFailed, op, "model returned too few usable questions", nil)
	}

	out := make([]models.Question, 0, len(texts))
	for _, t := range texts {
		out = append(out, models.Question{
			QuestionID: uuid.NewString(),
			Text:       t,
			Type:       models.QuestionTypeGeneral,
		})
	}
	return out, nil
}

func buildQuestionPrompt(jobs []models.Job, skills []models.Skill, resumeText string) string {
	titles := make([]string, 0, len(jobs))
	for _, j := range jobs {
		titles = append(titles, j.Title)
	}
	names := make([]string, 0, len(skills))
	for _, s := range skills {
		names = append(names, s.Name)
	}

	var b strings.Builder
	b.WriteString("You are an experienced technical interviewer.\n")
	b.WriteString(fmt.Sprintf("Write %d interview questions for a candidate applying for: %s.\n",
		maxQuestions-1, strings.Join(titles, ", ")))
	b.WriteString(fmt.Sprintf("Focus on these skills: %s.\n", strings.Join(names, ", ")))

	if excerpt := strings.TrimSpace(resumeText); excerpt != "" {
		if len(excerpt) > resumeExcerptLimit {
			excerpt = excerpt[:resumeExcerptLimit]
		}
		b.WriteString("Tailor some questions to this resume excerpt:\n")
		b.WriteString(excerpt)
		b.WriteString("\n")
	}

	b.WriteString("\nRules:\n")
	b.WriteString("- Output ONLY a numbered list, one question per line, like \"1. ...?\"\n")
	b.WriteString("- Every line must be a complete question ending with a question mark.\n")
	b.WriteString("- No headings, no commentary, no markdown.\n")
	return b.String()
}

var questionLineRe = regexp.MustCompile(`^\s*\d+[.)]\s*(.+)$`)

// ParseQuestionList extracts question texts from a numbered-list model reply.
// Lines that do not match the "number. text?" shape, or are too short to be a
// real question, are dropped. At most maxQuestions survive.
func ParseQuestionList(raw string) []string {
	var out []string
	for _, line := range strings.Split(raw, "\n") {
		m := questionLineRe.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		q := strings.TrimSpace(m[1])
		if len(q) < minQuestionLen || !strings.HasSuffix(q, "?") {
			continue
		}
		out = append(out, q)
		if len(out) == maxQuestions {
			break
		}
	}
	return out
}
