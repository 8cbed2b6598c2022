package document

import (
	"context"
	"errors"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/shopdesk/shopdesk-core/internal/infrastructure/storage"
)

// mockLister serves a fixed set of bucket objects for ScanAndSync tests.
type mockLister struct {
	basePath string
	objects  []storage.ObjectInfo
}

func (m *mockLister) BasePath() string { return m.basePath }

func (m *mockLister) List(_ context.Context, prefix string) ([]storage.ObjectInfo, error) {
	var out []storage.ObjectInfo
	for _, obj := range m.objects {
		if strings.HasPrefix(obj.Key, prefix) {
			out = append(out, obj)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}

func TestSyncService_SyncFileChange_Add(t *testing.T) {
	repo := NewSQLiteRepository(testDB(t))
	svc := NewSyncService(repo, nil, nil)
	ctx := context.Background()
	seedSubmission(t, repo, "SUB-1001")

	action, err := svc.SyncFileChange(ctx, "SUB-1001", FileChange{
		Category:     "invoices",
		OriginalName: "invoice.pdf",
		ObjectKey:    "uploads/SUB-1001/invoices/abc_invoice.pdf",
		Size:         2048,
		ContentType:  "application/pdf",
	})
	if err != nil {
		t.Fatalf("SyncFileChange: %v", err)
	}
	if action != ActionAdded {
		t.Errorf("action = %q, want %q", action, ActionAdded)
	}

	sub, err := repo.GetBySubmissionID(ctx, "SUB-1001")
	if err != nil {
		t.Fatalf("GetBySubmissionID: %v", err)
	}
	if len(sub.DocumentNames) != 1 || sub.DocumentNames[0] != "invoice.pdf" {
		t.Errorf("document names = %v", sub.DocumentNames)
	}
	files := sub.FileLinks["invoices"]
	if len(files) != 1 {
		t.Fatalf("invoices links = %d, want 1", len(files))
	}
	link := files[0]
	if !strings.HasPrefix(link.Version, "v") {
		t.Errorf("version = %q, want v<timestamp> default", link.Version)
	}
	if link.CreatedAt == "" || link.UpdatedAt == "" {
		t.Errorf("timestamps missing: created=%q updated=%q", link.CreatedAt, link.UpdatedAt)
	}
	if len(link.Versions) != 0 {
		t.Errorf("fresh link has history: %+v", link.Versions)
	}
}

func TestSyncService_SyncFileChange_UpdateArchivesPrevious(t *testing.T) {
	repo := NewSQLiteRepository(testDB(t))
	svc := NewSyncService(repo, nil, nil)
	ctx := context.Background()
	seedSubmission(t, repo, "SUB-1001")

	if _, err := svc.SyncFileChange(ctx, "SUB-1001", FileChange{
		Category: "invoices", OriginalName: "invoice.pdf",
		ObjectKey: "uploads/SUB-1001/invoices/aaa_invoice.pdf",
		Size:      1024, Version: "v100",
	}); err != nil {
		t.Fatalf("first change: %v", err)
	}
	action, err := svc.SyncFileChange(ctx, "SUB-1001", FileChange{
		Category: "invoices", OriginalName: "invoice.pdf",
		ObjectKey: "uploads/SUB-1001/invoices/bbb_invoice.pdf",
		Size:      2048, Version: "v200",
	})
	if err != nil {
		t.Fatalf("second change: %v", err)
	}
	if action != ActionUpdated {
		t.Errorf("action = %q, want %q", action, ActionUpdated)
	}

	sub, err := repo.GetBySubmissionID(ctx, "SUB-1001")
	if err != nil {
		t.Fatalf("GetBySubmissionID: %v", err)
	}
	if len(sub.DocumentNames) != 1 {
		t.Errorf("document names = %v, want single entry", sub.DocumentNames)
	}
	files := sub.FileLinks["invoices"]
	if len(files) != 1 {
		t.Fatalf("invoices links = %d, want 1", len(files))
	}
	link := files[0]
	if link.Version != "v200" || link.Size != 2048 {
		t.Errorf("current link = %+v", link)
	}
	if link.CreatedAt == "" {
		t.Error("created_at lost on update")
	}
	if len(link.Versions) != 1 {
		t.Fatalf("history length = %d, want 1", len(link.Versions))
	}
	prev := link.Versions[0]
	if prev.Version != "v100" || prev.Size != 1024 {
		t.Errorf("archived record = %+v", prev)
	}
	if prev.Versions != nil {
		t.Errorf("history entry carries nested history: %+v", prev.Versions)
	}
}

func TestSyncService_FileVersions(t *testing.T) {
	repo := NewSQLiteRepository(testDB(t))
	svc := NewSyncService(repo, nil, nil)
	ctx := context.Background()
	seedSubmission(t, repo, "SUB-1001")

	for i, version := range []string{"v100", "v200", "v300"} {
		if _, err := svc.SyncFileChange(ctx, "SUB-1001", FileChange{
			Category: "invoices", OriginalName: "invoice.pdf",
			ObjectKey: "uploads/SUB-1001/invoices/invoice.pdf",
			Size:      int64(1000 + i), Version: version,
		}); err != nil {
			t.Fatalf("change %s: %v", version, err)
		}
	}

	versions, err := svc.FileVersions(ctx, "SUB-1001", "invoice.pdf", "invoices")
	if err != nil {
		t.Fatalf("FileVersions: %v", err)
	}
	if len(versions) != 3 {
		t.Fatalf("got %d versions, want 3", len(versions))
	}
	if versions[0].Version != "v300" {
		t.Errorf("current = %q, want v300", versions[0].Version)
	}
	if versions[1].Version != "v100" || versions[2].Version != "v200" {
		t.Errorf("history order = %q, %q", versions[1].Version, versions[2].Version)
	}

	if _, err := svc.FileVersions(ctx, "SUB-1001", "missing.pdf", "invoices"); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("missing file error = %v, want ErrFileNotFound", err)
	}
}

func TestSyncService_RemoveFile(t *testing.T) {
	repo := NewSQLiteRepository(testDB(t))
	svc := NewSyncService(repo, nil, nil)
	ctx := context.Background()
	seedSubmission(t, repo, "SUB-1001")

	for _, name := range []string{"invoice.pdf", "quote.pdf"} {
		if _, err := svc.SyncFileChange(ctx, "SUB-1001", FileChange{
			Category: "invoices", OriginalName: name,
			ObjectKey: "uploads/SUB-1001/invoices/" + name,
		}); err != nil {
			t.Fatalf("adding %s: %v", name, err)
		}
	}

	if err := svc.RemoveFile(ctx, "SUB-1001", "invoice.pdf", "invoices"); err != nil {
		t.Fatalf("RemoveFile: %v", err)
	}
	sub, err := repo.GetBySubmissionID(ctx, "SUB-1001")
	if err != nil {
		t.Fatalf("GetBySubmissionID: %v", err)
	}
	if len(sub.FileLinks["invoices"]) != 1 || sub.FileLinks["invoices"][0].OriginalName != "quote.pdf" {
		t.Errorf("remaining links = %+v", sub.FileLinks["invoices"])
	}
	if len(sub.DocumentNames) != 1 || sub.DocumentNames[0] != "quote.pdf" {
		t.Errorf("document names = %v", sub.DocumentNames)
	}

	// Removing the last file in a category drops the category key.
	if err := svc.RemoveFile(ctx, "SUB-1001", "quote.pdf", "invoices"); err != nil {
		t.Fatalf("RemoveFile last: %v", err)
	}
	sub, _ = repo.GetBySubmissionID(ctx, "SUB-1001")
	if _, ok := sub.FileLinks["invoices"]; ok {
		t.Errorf("empty category retained: %+v", sub.FileLinks)
	}

	if err := svc.RemoveFile(ctx, "SUB-1001", "quote.pdf", "invoices"); !errors.Is(err, ErrFileNotFound) {
		t.Errorf("remove missing error = %v, want ErrFileNotFound", err)
	}
}

func TestSyncService_ScanAndSync(t *testing.T) {
	repo := NewSQLiteRepository(testDB(t))
	ctx := context.Background()
	seedSubmission(t, repo, "SUB-1001")

	modified := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	lister := &mockLister{
		basePath: "uploads/",
		objects: []storage.ObjectInfo{
			{
				Key:          "uploads/SUB-1001/invoices/0123456789abcdef0123456789abcdef_invoice.pdf",
				Size:         2048,
				ContentType:  "application/pdf",
				LastModified: modified,
			},
			{
				Key:          "uploads/SUB-1001/photos/damage.jpg",
				Size:         4096,
				ContentType:  "image/jpeg",
				LastModified: modified,
			},
			{
				Key:          "uploads/SUB-1001/readme.txt",
				Size:         10,
				LastModified: modified,
			},
			{
				// Different submission, must not bleed in.
				Key:          "uploads/SUB-2002/invoices/other.pdf",
				Size:         1,
				LastModified: modified,
			},
		},
	}
	svc := NewSyncService(repo, lister, nil)

	// Pre-existing stale link proves the scan is authoritative.
	if err := repo.UpdateFiles(ctx, "SUB-1001", []string{"stale.pdf"}, map[string][]FileLink{
		"invoices": {{OriginalName: "stale.pdf", ObjectKey: "uploads/SUB-1001/invoices/stale.pdf"}},
	}); err != nil {
		t.Fatalf("seeding stale links: %v", err)
	}

	sub, err := svc.ScanAndSync(ctx, "SUB-1001")
	if err != nil {
		t.Fatalf("ScanAndSync: %v", err)
	}

	invoices := sub.FileLinks["invoices"]
	if len(invoices) != 1 {
		t.Fatalf("invoices = %d links, want 1", len(invoices))
	}
	if invoices[0].OriginalName != "invoice.pdf" {
		t.Errorf("uuid prefix not stripped: %q", invoices[0].OriginalName)
	}
	if invoices[0].Size != 2048 || invoices[0].ContentType != "application/pdf" {
		t.Errorf("invoice link = %+v", invoices[0])
	}
	if len(invoices[0].Versions) != 0 {
		t.Errorf("rebuilt link fabricated history: %+v", invoices[0].Versions)
	}

	photos := sub.FileLinks["photos"]
	if len(photos) != 1 || photos[0].OriginalName != "damage.jpg" {
		t.Errorf("photos = %+v", photos)
	}

	// No category directory falls back to the default bucket.
	loose := sub.FileLinks[DefaultCategory]
	if len(loose) != 1 || loose[0].OriginalName != "readme.txt" {
		t.Errorf("default category = %+v", loose)
	}

	wantNames := map[string]bool{"invoice.pdf": true, "damage.jpg": true, "readme.txt": true}
	if len(sub.DocumentNames) != len(wantNames) {
		t.Fatalf("document names = %v", sub.DocumentNames)
	}
	for _, name := range sub.DocumentNames {
		if !wantNames[name] {
			t.Errorf("unexpected document name %q", name)
		}
	}

	// The rebuilt state is persisted.
	stored, err := repo.GetBySubmissionID(ctx, "SUB-1001")
	if err != nil {
		t.Fatalf("reloading submission: %v", err)
	}
	if len(stored.FileLinks["invoices"]) != 1 || stored.FileLinks["invoices"][0].OriginalName != "invoice.pdf" {
		t.Errorf("persisted links = %+v", stored.FileLinks)
	}
}

func TestOriginalName(t *testing.T) {
	tests := []struct {
		stored string
		want   string
	}{
		{"0123456789abcdef0123456789abcdef_invoice.pdf", "invoice.pdf"},
		{"0123456789abcdef0123456789abcdef_my_report.pdf", "my_report.pdf"},
		{"invoice.pdf", "invoice.pdf"},
		{"short_prefix.pdf", "short_prefix.pdf"},
		{"0123456789ABCDEF0123456789ABCDEF_upper.pdf", "0123456789ABCDEF0123456789ABCDEF_upper.pdf"},
	}
	for _, tt := range tests {
		if got := originalName(tt.stored); got != tt.want {
			t.Errorf("originalName(%q) = %q, want %q", tt.stored, got, tt.want)
		}
	}
}
