package document

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/shopdesk/shopdesk-core/internal/activity"
	"github.com/shopdesk/shopdesk-core/internal/infrastructure/storage"
)

// ObjectStore is the slice of the object store the document service needs.
// *storage.Client satisfies it.
type ObjectStore interface {
	ObjectLister
	ObjectKey(submissionID, category, filename string) string
	Upload(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	Stat(ctx context.Context, key string) (storage.ObjectInfo, error)
	Delete(ctx context.Context, key string) error
	PresignedGet(ctx context.Context, key string, expiry time.Duration) (string, error)
}

// WSHub is the interface for broadcasting WebSocket events.
type WSHub interface {
	Broadcast(channel string, payload any)
}

// ActivityLog records feed entries for document events.
type ActivityLog interface {
	Log(ctx context.Context, a *activity.Activity) error
}

// Logger is the minimal logging interface the service requires.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger is a logger that does nothing.
type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Info(string, ...any)  {}
func (noopLogger) Warn(string, ...any)  {}
func (noopLogger) Error(string, ...any) {}

// Service exposes the API-facing document operations: upload, download,
// delete and listing. It pairs the object store with the sync layer so
// the database view always reflects bucket reality.
type Service struct {
	repo       Repository
	store      ObjectStore
	sync       *SyncService
	hub        WSHub       // optional
	activities ActivityLog // optional
	log        Logger
}

// NewService creates a document service. hub and activities may be nil.
func NewService(repo Repository, store ObjectStore, sync *SyncService, hub WSHub, activities ActivityLog, log Logger) *Service {
	if log == nil {
		log = noopLogger{}
	}
	return &Service{repo: repo, store: store, sync: sync, hub: hub, activities: activities, log: log}
}

// UploadResult describes a completed upload.
type UploadResult struct {
	SubmissionID string `json:"submission_id"`
	Category     string `json:"category"`
	OriginalName string `json:"original_name"`
	StoredName   string `json:"stored_name"`
	ObjectKey    string `json:"object_key"`
	Size         int64  `json:"size"`
	Action       string `json:"action"`
}

// Upload stores a file in the bucket and records it against the
// submission. The stored object name is prefixed with a fresh uuid so
// repeated uploads of the same filename never collide in the bucket;
// the link record keeps the original name.
func (s *Service) Upload(ctx context.Context, submissionID, category, filename string, r io.Reader, size int64, contentType string) (*UploadResult, error) {
	sub, err := s.repo.GetBySubmissionID(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(filename) == "" {
		return nil, fmt.Errorf("%w: filename is required", ErrInvalidSubmission)
	}
	if category == "" {
		category = DefaultCategory
	}

	storedName := strings.ReplaceAll(uuid.NewString(), "-", "") + "_" + filename
	key := s.store.ObjectKey(submissionID, category, storedName)
	if err := s.store.Upload(ctx, key, r, size, contentType); err != nil {
		return nil, fmt.Errorf("uploading %s: %w", filename, err)
	}

	action, err := s.sync.SyncFileChange(ctx, submissionID, FileChange{
		Category:     category,
		OriginalName: filename,
		ObjectKey:    key,
		Size:         size,
		ContentType:  contentType,
	})
	if err != nil {
		return nil, err
	}

	s.recordActivity(ctx, activity.TypeDocumentUploaded,
		fmt.Sprintf("Document %s uploaded for %s", filename, submissionID), sub.CustomerID)
	if s.hub != nil {
		s.hub.Broadcast("document.uploaded", map[string]any{
			"submission_id": submissionID,
			"category":      category,
			"filename":      filename,
			"action":        action,
		})
	}
	s.log.Info("document uploaded",
		"submission_id", submissionID, "file", filename,
		"category", category, "size", size, "action", action)

	return &UploadResult{
		SubmissionID: submissionID,
		Category:     category,
		OriginalName: filename,
		StoredName:   storedName,
		ObjectKey:    key,
		Size:         size,
		Action:       action,
	}, nil
}

// Download describes how to fetch a stored document.
type Download struct {
	OriginalName string `json:"original_name"`
	ContentType  string `json:"content_type,omitempty"`
	Size         int64  `json:"size"`
	URL          string `json:"url"`
}

// Get resolves a file link, confirms the object still exists and returns
// a presigned download URL.
func (s *Service) Get(ctx context.Context, submissionID, filename, category string) (*Download, error) {
	link, err := s.findLink(ctx, submissionID, filename, category)
	if err != nil {
		return nil, err
	}

	info, err := s.store.Stat(ctx, link.ObjectKey)
	if err != nil {
		return nil, fmt.Errorf("checking object %s: %w", link.ObjectKey, err)
	}
	url, err := s.store.PresignedGet(ctx, link.ObjectKey, storage.DefaultPresignExpiry)
	if err != nil {
		return nil, fmt.Errorf("presigning %s: %w", link.ObjectKey, err)
	}
	return &Download{
		OriginalName: link.OriginalName,
		ContentType:  info.ContentType,
		Size:         info.Size,
		URL:          url,
	}, nil
}

// Delete removes the object from the bucket, then the link record. Order
// matters: a dangling record is recoverable via ScanAndSync, a dangling
// object is not.
func (s *Service) Delete(ctx context.Context, submissionID, filename, category string) error {
	sub, err := s.repo.GetBySubmissionID(ctx, submissionID)
	if err != nil {
		return err
	}
	link, err := s.findLink(ctx, submissionID, filename, category)
	if err != nil {
		return err
	}

	if err := s.store.Delete(ctx, link.ObjectKey); err != nil {
		return fmt.Errorf("deleting object %s: %w", link.ObjectKey, err)
	}
	if err := s.sync.RemoveFile(ctx, submissionID, filename, category); err != nil {
		return err
	}

	s.recordActivity(ctx, activity.TypeDocumentDeleted,
		fmt.Sprintf("Document %s deleted from %s", filename, submissionID), sub.CustomerID)
	s.log.Info("document deleted",
		"submission_id", submissionID, "file", filename, "category", category)
	return nil
}

// CreateSubmission registers a new submission envelope.
func (s *Service) CreateSubmission(ctx context.Context, sub *Submission) error {
	if sub.DocumentNames == nil {
		sub.DocumentNames = []string{}
	}
	if sub.FileLinks == nil {
		sub.FileLinks = map[string][]FileLink{}
	}
	return s.repo.Create(ctx, sub)
}

// GetSubmission fetches a submission by its external identifier.
func (s *Service) GetSubmission(ctx context.Context, submissionID string) (*Submission, error) {
	return s.repo.GetBySubmissionID(ctx, submissionID)
}

// List returns submissions newest-first.
func (s *Service) List(ctx context.Context, limit, offset int) ([]Submission, error) {
	return s.repo.List(ctx, limit, offset)
}

// ListForCustomer returns every submission linked to a customer.
func (s *Service) ListForCustomer(ctx context.Context, customerID string) ([]Submission, error) {
	return s.repo.ListForCustomer(ctx, customerID)
}

// Search matches submissions by company name, phone or submission ID.
func (s *Service) Search(ctx context.Context, term string) ([]Submission, error) {
	return s.repo.Search(ctx, term)
}

// FileVersions returns the version trail for a file, current first.
func (s *Service) FileVersions(ctx context.Context, submissionID, filename, category string) ([]FileLink, error) {
	return s.sync.FileVersions(ctx, submissionID, filename, category)
}

// ScanAndSync rebuilds a submission's links from the bucket.
func (s *Service) ScanAndSync(ctx context.Context, submissionID string) (*Submission, error) {
	return s.sync.ScanAndSync(ctx, submissionID)
}

func (s *Service) findLink(ctx context.Context, submissionID, filename, category string) (*FileLink, error) {
	sub, err := s.repo.GetBySubmissionID(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if category == "" {
		category = DefaultCategory
	}
	for i := range sub.FileLinks[category] {
		if sub.FileLinks[category][i].OriginalName == filename {
			return &sub.FileLinks[category][i], nil
		}
	}
	return nil, fmt.Errorf("%w: %s/%s", ErrFileNotFound, category, filename)
}

func (s *Service) recordActivity(ctx context.Context, actType, message string, customerID *string) {
	if s.activities == nil {
		return
	}
	entry := &activity.Activity{Type: actType, Message: message, CustomerID: customerID}
	if err := s.activities.Log(ctx, entry); err != nil {
		s.log.Warn("failed to record activity", "type", actType, "error", err)
	}
}
