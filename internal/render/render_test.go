package render

import (
	"context"
	"errors"
	"os"
	"strings"
	"testing"
	"time"

	"doccontrol/api/internal/blob"
	"doccontrol/api/internal/logger"
)

type fakeConverter struct {
	docxErr  error
	pdfErr   error
	lastHTML string
}

func (f *fakeConverter) DOCX(_ context.Context, html string) ([]byte, error) {
	f.lastHTML = html
	if f.docxErr != nil {
		return nil, f.docxErr
	}
	return []byte("docx-bytes"), nil
}

func (f *fakeConverter) PDF(_ context.Context, html string) ([]byte, error) {
	if f.pdfErr != nil {
		return nil, f.pdfErr
	}
	return []byte("%PDF-1.4"), nil
}

func newTestRenderer(t *testing.T, conv Converter) *Service {
	t.Helper()
	blobs, err := blob.NewLocalStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewLocalStore() error = %v", err)
	}
	s := NewService(blobs, conv, "ACME Ltda", logger.Nop())
	s.now = func() time.Time { return time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC) }
	return s
}

func sampleInput() Input {
	return Input{
		DocumentID:    3,
		VersionNumber: 2,
		Code:          "IT-001.01",
		Title:         "Limpeza de <Tanques>",
		Revision:      1,
		Sections: []Section{
			{Title: "Objetivo e Abrangência", Content: "Primeiro.\n\nSegundo."},
			{Title: "Definições"},
		},
	}
}

func TestRenderStoresBothFormats(t *testing.T) {
	conv := &fakeConverter{}
	out, err := newTestRenderer(t, conv).Render(context.Background(), sampleInput())
	if err != nil {
		t.Fatalf("Render() error = %v", err)
	}
	if !strings.HasSuffix(out.DocxPath, "IT-001.01.docx") || !strings.HasSuffix(out.PDFPath, "IT-001.01.pdf") {
		t.Fatalf("unexpected paths %+v", out)
	}
	if len(out.Warnings) != 0 {
		t.Fatalf("expected no warnings, got %v", out.Warnings)
	}
	body, err := os.ReadFile(out.PDFPath)
	if err != nil || string(body) != "%PDF-1.4" {
		t.Fatalf("expected stored pdf, got %q err=%v", body, err)
	}

	for _, want := range []string{"ACME Ltda", "Código: IT-001.01", "Revisão: 01", "1. Objetivo e Abrangência", "<p>Segundo.</p>", "2. Definições", "Não aplicável.", "Limpeza de &lt;Tanques&gt;"} {
		if !strings.Contains(conv.lastHTML, want) {
			t.Fatalf("expected html to contain %q", want)
		}
	}
}

func TestRenderToleratesPartialFailure(t *testing.T) {
	conv := &fakeConverter{pdfErr: ErrPDFDependencyMissing}
	out, err := newTestRenderer(t, conv).Render(context.Background(), sampleInput())
	if err != nil {
		t.Fatalf("expected partial success, got %v", err)
	}
	if out.DocxPath == "" || out.PDFPath != "" {
		t.Fatalf("expected docx only, got %+v", out)
	}
	if len(out.Warnings) != 1 || !strings.HasPrefix(out.Warnings[0], "pdf:") {
		t.Fatalf("expected pdf warning, got %v", out.Warnings)
	}
}

func TestRenderFailsWhenNothingRendered(t *testing.T) {
	conv := &fakeConverter{docxErr: errors.New("pandoc failed"), pdfErr: errors.New("chrome failed")}
	if _, err := newTestRenderer(t, conv).Render(context.Background(), sampleInput()); err == nil {
		t.Fatal("expected total failure error")
	}
}

func TestChromiumBinaryPicksFirstOnPath(t *testing.T) {
	lookPath := func(name string) (string, error) {
		if name == "chromium" || name == "google-chrome" {
			return "/usr/bin/" + name, nil
		}
		return "", errors.New("not found")
	}
	if got := chromiumBinary(lookPath); got != "/usr/bin/chromium" {
		t.Fatalf("chromiumBinary = %q", got)
	}
	none := func(string) (string, error) { return "", errors.New("not found") }
	if got := chromiumBinary(none); got != "" {
		t.Fatalf("expected no binary, got %q", got)
	}
}

func TestSanitizeFilename(t *testing.T) {
	if got := sanitizeFilename("PQ-002.00"); got != "PQ-002.00" {
		t.Fatalf("unexpected filename %q", got)
	}
	if got := sanitizeFilename("///"); got != "document" {
		t.Fatalf("expected fallback name, got %q", got)
	}
}
