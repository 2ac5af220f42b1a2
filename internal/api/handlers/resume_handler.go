package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/prepwise/prepwise/internal/services"
	"github.com/prepwise/prepwise/internal/utils"
)

const maxResumeBytes = 5 << 20

type ResumeHandler struct {
	svc services.ResumeService
}

func NewResumeHandler(svc services.ResumeService) *ResumeHandler {
	return &ResumeHandler{svc: svc}
}

// Upload accepts multipart form data: a "file" part plus an optional
// "extracted_text" field with the client-side parse of the document.
func (h *ResumeHandler) Upload(c *gin.Context) {
	const op = "ResumeHandler.Upload"

	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	fh, err := c.FormFile("file")
	if err != nil {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "file is required", err))
		return
	}
	if fh.Size > maxResumeBytes {
		writeError(c, utils.E(utils.CodeInvalidArgument, op, "file too large", nil))
		return
	}

	f, err := fh.Open()
	if err != nil {
		writeError(c, utils.E(utils.CodeInternal, op, "failed to read file", err))
		return
	}
	defer f.Close()

	row, err := h.svc.Upload(c.Request.Context(),
		userID,
		fh.Filename,
		fh.Header.Get("Content-Type"),
		int(fh.Size),
		c.PostForm("extracted_text"),
		f,
	)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, row)
}

func (h *ResumeHandler) Latest(c *gin.Context) {
	userID, ok := requireUserID(c)
	if !ok {
		return
	}

	row, err := h.svc.Latest(c.Request.Context(), userID)
	if err != nil {
		writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, row)
}
