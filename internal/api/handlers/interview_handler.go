package handlers

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prepwise/prepwise/internal/services"
	"github.com/prepwise/prepwise/internal/utils"
)

// maxMediaBytes caps one recorded answer (60s webm is well under this).
const maxMediaBytes = 15 << 20

type InterviewHandler struct {
	svc services.InterviewService
}

func NewInterviewHandler(svc services.InterviewService) *InterviewHandler {
	return &InterviewHandler{svc: svc}
}

type CreateSessionRequest struct {
	JobIDs     []string `json:"job_ids" binding:"required"`
	SkillIDs   []string `json:"skill_ids" binding:"required"`
	ResumeText string   `json:"resume_text"`
}

func (h *InterviewHandler) Create(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req CreateSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "InterviewHandler.Create", "invalid request body", err))
		return
	}

	session, err := h.svc.CreateSession(c.Request.Context(), userID, req.JobIDs, req.SkillIDs, req.ResumeText)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, session)
}

func (h *InterviewHandler) Get(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	session, err := h.svc.GetSession(c.Request.Context(), c.Param("session_id"), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}

func (h *InterviewHandler) List(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	sessions, err := h.svc.ListSessions(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": sessions})
}

// SaveAnswer accepts multipart form data: "user_answer" text plus an optional
// "media" file part holding the recording.
func (h *InterviewHandler) SaveAnswer(c *gin.Context) {
	const op = "InterviewHandler.SaveAnswer"

	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	in := services.SaveAnswerInput{
		SessionID:   c.Param("session_id"),
		QuestionID:  c.Param("question_id"),
		RequesterID: userID,
		UserAnswer:  c.PostForm("user_answer"),
	}

	if fh, err := c.FormFile("media"); err == nil && fh != nil {
		if fh.Size > maxMediaBytes {
			writeError(c, utils.E(utils.CodeInvalidArgument, op, "recording too large", nil))
			return
		}
		f, err := fh.Open()
		if err != nil {
			writeError(c, utils.E(utils.CodeInternal, op, "failed to read recording", err))
			return
		}
		defer f.Close()

		blob, err := io.ReadAll(io.LimitReader(f, maxMediaBytes))
		if err != nil {
			writeError(c, utils.E(utils.CodeInternal, op, "failed to read recording", err))
			return
		}
		in.Media = blob
		in.MediaContentType = fh.Header.Get("Content-Type")
	}

	question, err := h.svc.SaveAnswer(c.Request.Context(), in)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, question)
}

type AdvanceRequest struct {
	Direction string `json:"direction" binding:"required"` // next|prev
}

func (h *InterviewHandler) Advance(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	var req AdvanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, "InterviewHandler.Advance", "invalid request body", err))
		return
	}

	idx, err := h.svc.AdvanceQuestion(c.Request.Context(), c.Param("session_id"), userID, req.Direction)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"current_index": idx})
}

func (h *InterviewHandler) Complete(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	session, err := h.svc.CompleteAndEvaluate(c.Request.Context(), c.Param("session_id"), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, session)
}
