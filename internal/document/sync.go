package document

import (
	"context"
	"fmt"
	"path"
	"strconv"
	"strings"
	"time"

	"github.com/shopdesk/shopdesk-core/internal/infrastructure/storage"
)

// SyncService keeps a submission's file links in step with the object
// store. It owns the versioning rules: an overwrite archives the previous
// record, a scan rebuilds links from the bucket without inventing history.
type SyncService struct {
	repo  Repository
	store ObjectLister
	log   Logger
}

// ObjectLister is the slice of the object store the sync layer needs.
type ObjectLister interface {
	BasePath() string
	List(ctx context.Context, prefix string) ([]storage.ObjectInfo, error)
}

// NewSyncService creates a sync service. store may be nil when only
// SyncFileChange / RemoveFile are used.
func NewSyncService(repo Repository, store ObjectLister, log Logger) *SyncService {
	if log == nil {
		log = noopLogger{}
	}
	return &SyncService{repo: repo, store: store, log: log}
}

// SyncFileChange records one file add or overwrite against a submission
// and returns the action taken (ActionAdded or ActionUpdated).
//
// On update the previous record, stripped of its own Versions slice, is
// appended to the new record's Versions so history accumulates flat. On
// add the document name list gains the original filename.
func (s *SyncService) SyncFileChange(ctx context.Context, submissionID string, change FileChange) (string, error) {
	sub, err := s.repo.GetBySubmissionID(ctx, submissionID)
	if err != nil {
		return "", err
	}

	category := change.Category
	if category == "" {
		category = DefaultCategory
	}
	now := time.Now().UTC().Format(time.RFC3339)
	link := FileLink{
		OriginalName: change.OriginalName,
		ObjectKey:    change.ObjectKey,
		URL:          change.URL,
		Size:         change.Size,
		ContentType:  change.ContentType,
		Version:      change.Version,
		UpdatedAt:    now,
	}
	if link.Version == "" {
		link.Version = "v" + strconv.FormatInt(time.Now().Unix(), 10)
	}

	files := sub.FileLinks[category]
	action := ActionAdded
	for i, existing := range files {
		if existing.OriginalName != change.OriginalName {
			continue
		}
		action = ActionUpdated
		previous := existing
		previous.Versions = nil
		link.CreatedAt = existing.CreatedAt
		link.Versions = append(existing.Versions, previous)
		files[i] = link
		break
	}
	if action == ActionAdded {
		link.CreatedAt = now
		link.Versions = []FileLink{}
		files = append(files, link)
		if !containsName(sub.DocumentNames, change.OriginalName) {
			sub.DocumentNames = append(sub.DocumentNames, change.OriginalName)
		}
	}
	sub.FileLinks[category] = files

	if err := s.repo.UpdateFiles(ctx, submissionID, sub.DocumentNames, sub.FileLinks); err != nil {
		return "", err
	}
	s.log.Debug("file change synced",
		"submission_id", submissionID, "file", change.OriginalName,
		"category", category, "action", action)
	return action, nil
}

// FileVersions returns the full version trail for a file, current record
// first followed by archived history.
func (s *SyncService) FileVersions(ctx context.Context, submissionID, filename, category string) ([]FileLink, error) {
	sub, err := s.repo.GetBySubmissionID(ctx, submissionID)
	if err != nil {
		return nil, err
	}
	if category == "" {
		category = DefaultCategory
	}
	for _, link := range sub.FileLinks[category] {
		if link.OriginalName != filename {
			continue
		}
		current := link
		current.Versions = nil
		versions := append([]FileLink{current}, link.Versions...)
		return versions, nil
	}
	return nil, fmt.Errorf("%w: %s/%s", ErrFileNotFound, category, filename)
}

// RemoveFile drops a file's link record and its document-name entry.
func (s *SyncService) RemoveFile(ctx context.Context, submissionID, filename, category string) error {
	sub, err := s.repo.GetBySubmissionID(ctx, submissionID)
	if err != nil {
		return err
	}
	if category == "" {
		category = DefaultCategory
	}

	files := sub.FileLinks[category]
	found := false
	for i, link := range files {
		if link.OriginalName == filename {
			sub.FileLinks[category] = append(files[:i:i], files[i+1:]...)
			found = true
			break
		}
	}
	if !found {
		return fmt.Errorf("%w: %s/%s", ErrFileNotFound, category, filename)
	}
	if len(sub.FileLinks[category]) == 0 {
		delete(sub.FileLinks, category)
	}
	for i, name := range sub.DocumentNames {
		if name == filename {
			sub.DocumentNames = append(sub.DocumentNames[:i:i], sub.DocumentNames[i+1:]...)
			break
		}
	}

	if err := s.repo.UpdateFiles(ctx, submissionID, sub.DocumentNames, sub.FileLinks); err != nil {
		return err
	}
	s.log.Debug("file removed from submission",
		"submission_id", submissionID, "file", filename, "category", category)
	return nil
}

// ScanAndSync rebuilds a submission's file links from what the bucket
// actually holds under the submission prefix. Objects are grouped by the
// first path segment after the prefix; objects with no category directory
// fall into DefaultCategory. Rebuilt entries carry no version history.
func (s *SyncService) ScanAndSync(ctx context.Context, submissionID string) (*Submission, error) {
	if s.store == nil {
		return nil, fmt.Errorf("scan and sync: no object store configured")
	}
	sub, err := s.repo.GetBySubmissionID(ctx, submissionID)
	if err != nil {
		return nil, err
	}

	prefix := s.store.BasePath() + submissionID + "/"
	objects, err := s.store.List(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("listing objects for %s: %w", submissionID, err)
	}

	links := map[string][]FileLink{}
	names := []string{}
	for _, obj := range objects {
		rel := strings.TrimPrefix(obj.Key, prefix)
		if rel == "" {
			continue
		}
		category := DefaultCategory
		filename := rel
		if idx := strings.Index(rel, "/"); idx >= 0 {
			category = rel[:idx]
			filename = path.Base(rel)
		}
		links[category] = append(links[category], FileLink{
			OriginalName: originalName(filename),
			ObjectKey:    obj.Key,
			Size:         obj.Size,
			ContentType:  obj.ContentType,
			Version:      "v" + strconv.FormatInt(obj.LastModified.Unix(), 10),
			CreatedAt:    obj.LastModified.UTC().Format(time.RFC3339),
			UpdatedAt:    obj.LastModified.UTC().Format(time.RFC3339),
			Versions:     []FileLink{},
		})
		if name := originalName(filename); !containsName(names, name) {
			names = append(names, name)
		}
	}

	sub.FileLinks = links
	sub.DocumentNames = names
	if err := s.repo.UpdateFiles(ctx, submissionID, names, links); err != nil {
		return nil, err
	}
	s.log.Info("submission rebuilt from bucket",
		"submission_id", submissionID, "objects", len(objects), "categories", len(links))
	return sub, nil
}

// originalName strips the uuid prefix applied at upload time, when present.
// Stored names look like "<32-hex>_<original>"; anything else passes through.
func originalName(stored string) string {
	idx := strings.Index(stored, "_")
	if idx != 32 {
		return stored
	}
	for _, c := range stored[:idx] {
		if (c < '0' || c > '9') && (c < 'a' || c > 'f') {
			return stored
		}
	}
	return stored[idx+1:]
}

func containsName(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
