package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"
	"gorm.io/datatypes"

	"github.com/prepwise/prepwise/internal/models"
	pgrepo "github.com/prepwise/prepwise/internal/repositories/postgres"
	"github.com/prepwise/prepwise/internal/storage"
	"github.com/prepwise/prepwise/internal/utils"
)

type ResumeService interface {
	Upload(ctx context.Context, userID, fileName, mimeType string, fileSize int, extractedText string, r io.Reader) (*models.ResumeFile, error)
	Latest(ctx context.Context, userID string) (*models.ResumeFile, error)
}

type resumeService struct {
	repo     pgrepo.ResumeRepository
	uploader storage.Uploader
}

func NewResumeService(repo pgrepo.ResumeRepository, uploader storage.Uploader) ResumeService {
	return &resumeService{repo: repo, uploader: uploader}
}

// Upload stores the resume bytes and its metadata row. Text extraction happens
// on the client; the service only records what it is given.
func (s *resumeService) Upload(ctx context.Context, userID, fileName, mimeType string, fileSize int, extractedText string, r io.Reader) (*models.ResumeFile, error) {
	const op = "ResumeService.Upload"

	if userID == "" || fileName == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id and file_name are required", nil)
	}

	objectName := fmt.Sprintf("resumes/%s/%d_%s", userID, time.Now().UTC().UnixNano(), fileName)
	storedPath, err := s.uploader.Upload(ctx, objectName, mimeType, r)
	if err != nil {
		return nil, utils.E(utils.CodeUnavailable, op, "failed to upload resume", err)
	}

	meta, _ := json.Marshal(map[string]any{
		"original_name": fileName,
		"content_type":  mimeType,
	})

	row := &models.ResumeFile{
		ID:            uuid.NewString(),
		UserID:        userID,
		FileName:      fileName,
		FilePath:      storedPath,
		FileSize:      fileSize,
		MimeType:      mimeType,
		ExtractedText: extractedText,
		Metadata:      datatypes.JSON(meta),
		UploadAt:      time.Now().UTC(),
	}

	if err := s.repo.Insert(ctx, row); err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to persist resume metadata", err)
	}
	return row, nil
}

func (s *resumeService) Latest(ctx context.Context, userID string) (*models.ResumeFile, error) {
	const op = "ResumeService.Latest"

	if userID == "" {
		return nil, utils.E(utils.CodeInvalidArgument, op, "user_id is required", nil)
	}
	row, err := s.repo.LatestByUser(ctx, userID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, utils.E(utils.CodeNotFound, op, "no resume uploaded", err)
		}
		return nil, utils.E(utils.CodeInternal, op, "failed to fetch resume", err)
	}
	return row, nil
}
