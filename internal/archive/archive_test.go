package archive

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
)

func TestArchiveRecordAndPatch(t *testing.T) {
	tempDir := t.TempDir()
	svc := New(tempDir)

	if _, err := svc.Record(7, 1, "Objetivo\n\nLimpar o piso diariamente.\n", "Avery"); err != nil {
		t.Fatalf("Record(v1) error = %v", err)
	}
	if _, err := os.Stat(filepath.Join(tempDir, "doc-7")); err != nil {
		t.Fatalf("repo directory missing: %v", err)
	}
	if _, err := svc.Record(7, 2, "Objetivo\n\nLimpar o piso semanalmente.\n", "Avery"); err != nil {
		t.Fatalf("Record(v2) error = %v", err)
	}

	text, err := svc.Text(7, 1)
	if err != nil {
		t.Fatalf("Text() error = %v", err)
	}
	if !strings.Contains(text, "diariamente") {
		t.Fatalf("expected v1 text, got %q", text)
	}

	patch, err := svc.Patch(7, 1, 2)
	if err != nil {
		t.Fatalf("Patch() error = %v", err)
	}
	if !strings.Contains(patch, "-Limpar o piso diariamente.") || !strings.Contains(patch, "+Limpar o piso semanalmente.") {
		t.Fatalf("unexpected patch:\n%s", patch)
	}
}

func TestArchiveRecordingSameTextTwice(t *testing.T) {
	svc := New(t.TempDir())
	first, err := svc.Record(1, 1, "igual", "Avery")
	if err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	second, err := svc.Record(1, 2, "igual", "Avery")
	if err != nil {
		t.Fatalf("Record() with unchanged text error = %v", err)
	}
	if first == second {
		t.Fatal("expected a distinct commit per version")
	}
	patch, err := svc.Patch(1, 1, 2)
	if err != nil {
		t.Fatalf("Patch() error = %v", err)
	}
	if strings.TrimSpace(patch) != "" {
		t.Fatalf("expected empty patch, got %q", patch)
	}
}

func TestArchiveMissingVersion(t *testing.T) {
	svc := New(t.TempDir())
	if _, err := svc.Patch(99, 1, 2); !errors.Is(err, ErrVersionNotArchived) {
		t.Fatalf("expected ErrVersionNotArchived for unknown document, got %v", err)
	}

	if _, err := svc.Record(3, 1, "texto", "Avery"); err != nil {
		t.Fatalf("Record() error = %v", err)
	}
	if _, err := svc.Text(3, 5); !errors.Is(err, ErrVersionNotArchived) {
		t.Fatalf("expected ErrVersionNotArchived for unknown version, got %v", err)
	}
}

func TestArchiveConcurrentRecordsPerDocument(t *testing.T) {
	svc := New(t.TempDir())
	var wg sync.WaitGroup
	errs := make(chan error, 4)
	for i := 1; i <= 4; i++ {
		wg.Add(1)
		go func(n int) {
			defer wg.Done()
			if _, err := svc.Record(int64(n), 1, "texto", "Avery"); err != nil {
				errs <- err
			}
		}(i)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Fatalf("concurrent Record() error = %v", err)
	}
}

func TestSanitizeEmail(t *testing.T) {
	if got := sanitizeEmail("Ana Souza"); got != "Ana.Souza" {
		t.Fatalf("expected Ana.Souza, got %s", got)
	}
	if got := sanitizeEmail("çãé"); got != "user" {
		t.Fatalf("expected user fallback, got %s", got)
	}
}
