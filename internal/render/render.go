// Package render turns a restructured document into DOCX and PDF artifacts.
package render

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"doccontrol/api/internal/blob"
	"doccontrol/api/internal/logger"
)

var (
	ErrPDFDependencyMissing  = errors.New("render pdf dependency missing")
	ErrDOCXDependencyMissing = errors.New("render docx dependency missing")
)

const (
	mimeDOCX = "application/vnd.openxmlformats-officedocument.wordprocessingml.document"
	mimePDF  = "application/pdf"
)

type Section struct {
	Title   string
	Content string
}

type Input struct {
	DocumentID    int64
	VersionNumber int
	Code          string
	Title         string
	Revision      int
	EffectiveDate *time.Time
	Sections      []Section
}

// Output carries the stored artifact paths. An empty path means that format
// failed and Warnings says why.
type Output struct {
	DocxPath string   `json:"docx_path"`
	PDFPath  string   `json:"pdf_path"`
	Warnings []string `json:"warnings,omitempty"`
}

// Converter produces the binary formats from rendered HTML.
type Converter interface {
	DOCX(ctx context.Context, html string) ([]byte, error)
	PDF(ctx context.Context, html string) ([]byte, error)
}

// ToolConverter shells out to pandoc and drives headless Chrome.
type ToolConverter struct{}

func (ToolConverter) DOCX(ctx context.Context, html string) ([]byte, error) {
	return htmlToDOCX(ctx, html)
}

func (ToolConverter) PDF(ctx context.Context, html string) ([]byte, error) {
	return htmlToPDF(ctx, html)
}

type Service struct {
	blobs     blob.Store
	converter Converter
	company   string
	timeout   time.Duration
	log       *logger.Logger
	now       func() time.Time
}

func NewService(blobs blob.Store, converter Converter, company string, log *logger.Logger) *Service {
	if converter == nil {
		converter = ToolConverter{}
	}
	if company == "" {
		company = "Empresa"
	}
	return &Service{
		blobs:     blobs,
		converter: converter,
		company:   company,
		timeout:   60 * time.Second,
		log:       log.With("component", "render"),
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Render builds the HTML once and stores each format independently. It fails
// only when neither format could be produced.
func (s *Service) Render(ctx context.Context, in Input) (Output, error) {
	data := TemplateData{
		Company:       s.company,
		Code:          in.Code,
		Title:         in.Title,
		Revision:      in.Revision,
		VersionNumber: in.VersionNumber,
		GeneratedAt:   s.now().Format("02/01/2006 15:04"),
		Sections:      in.Sections,
	}
	if in.EffectiveDate != nil {
		data.EffectiveDate = in.EffectiveDate.Format("02/01/2006")
	}
	html, err := RenderDocumentHTML(data)
	if err != nil {
		return Output{}, fmt.Errorf("render template: %w", err)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	base := fmt.Sprintf("documents/%d/v%d/%s", in.DocumentID, in.VersionNumber, sanitizeFilename(in.Code))
	var out Output

	docx, err := s.converter.DOCX(ctx, html)
	if err == nil {
		out.DocxPath, err = s.blobs.Put(ctx, base+".docx", bytes.NewReader(docx), int64(len(docx)), mimeDOCX)
	}
	if err != nil {
		out.Warnings = append(out.Warnings, "docx: "+err.Error())
	}

	pdf, err := s.converter.PDF(ctx, html)
	if err == nil {
		out.PDFPath, err = s.blobs.Put(ctx, base+".pdf", bytes.NewReader(pdf), int64(len(pdf)), mimePDF)
	}
	if err != nil {
		out.Warnings = append(out.Warnings, "pdf: "+err.Error())
	}

	if out.DocxPath == "" && out.PDFPath == "" {
		return out, fmt.Errorf("render %s: %s", in.Code, strings.Join(out.Warnings, "; "))
	}
	if len(out.Warnings) > 0 {
		s.log.Warn("partial render", "code", in.Code, "version", in.VersionNumber, "warnings", out.Warnings)
	}
	return out, nil
}

// sanitizeFilename keeps letters, digits, dots and dashes.
func sanitizeFilename(name string) string {
	var b strings.Builder
	for _, r := range name {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ':
			b.WriteRune('-')
		case r == '-', r == '_', r == '.':
			b.WriteRune(r)
		}
	}
	result := b.String()
	if len(result) > 50 {
		result = result[:50]
	}
	if result == "" {
		result = "document"
	}
	return result
}
