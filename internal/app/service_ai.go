package app

import (
	"context"
	"database/sql"
	"errors"

	"doccontrol/api/internal/ai"
	"doccontrol/api/internal/lifecycle"
	"doccontrol/api/internal/render"
	"doccontrol/api/internal/store"
)

type FormatResult struct {
	Version   store.Version        `json:"version"`
	Structure ai.RestructureResult `json:"structure"`
	Warnings  []string             `json:"warnings"`
	Error     string               `json:"error,omitempty"`
}

// Format restructures the version text into the standard sections and
// renders it. A total render failure leaves formatting_failed and keeps the
// previous artifacts; partial success keeps whichever format rendered.
func (s *Service) Format(ctx context.Context, versionID int64) (FormatResult, error) {
	version, doc, err := s.ownedVersion(ctx, versionID)
	if err != nil {
		return FormatResult{}, err
	}
	err = s.store.WithinTx(ctx, func(repo store.Repository) error {
		locked, err := repo.LockVersion(ctx, versionID)
		if err != nil {
			return err
		}
		if !lifecycle.Formattable(locked.Status) {
			return invalidState("version cannot be formatted now", map[string]any{"status": locked.Status})
		}
		if err := s.moveVersion(&locked, lifecycle.VersionFormatting); err != nil {
			return err
		}
		_, err = s.saveVersionAndDocument(ctx, repo, locked)
		return err
	})
	if err != nil {
		return FormatResult{}, err
	}

	structure, renderOut, runErr := s.formatVersion(ctx, doc, version)

	// The outcome is stored even when the caller went away during rendering.
	fctx := context.WithoutCancel(ctx)
	var result FormatResult
	err = s.store.WithinTx(fctx, func(repo store.Repository) error {
		locked, err := repo.LockVersion(fctx, versionID)
		if err != nil {
			return err
		}
		if locked.Status != lifecycle.VersionFormatting {
			return invalidState("version left formatting while it rendered", map[string]any{"status": locked.Status})
		}
		next := lifecycle.VersionInReview
		record := store.AIAnalysis{
			VersionID: versionID,
			AgentType: string(ai.AgentFormatting),
			Source:    string(structure.Meta.Source),
			Response:  mustJSON(map[string]any{"structure": structure, "render": renderOut}),
		}
		if runErr != nil {
			next = lifecycle.VersionFormattingFailed
			record.Error = runErr.Error()
		} else {
			if renderOut.DocxPath != "" {
				locked.FormattedDocxPath = renderOut.DocxPath
			}
			if renderOut.PDFPath != "" {
				locked.FormattedPDFPath = renderOut.PDFPath
			}
		}
		if _, err := repo.InsertAnalysis(fctx, record); err != nil {
			return err
		}
		s.recordUsage(fctx, repo, versionID, ai.AgentFormatting, structure.Meta)
		if err := s.moveVersion(&locked, next); err != nil {
			return err
		}
		if _, err := s.saveVersionAndDocument(fctx, repo, locked); err != nil {
			return err
		}
		result = FormatResult{Version: locked, Structure: structure, Warnings: nonNilSlice(renderOut.Warnings)}
		if runErr != nil {
			result.Error = runErr.Error()
		}
		return nil
	})
	if err != nil {
		return FormatResult{}, err
	}
	if runErr != nil {
		s.log.Warn("formatting failed", "code", doc.Code, "version", version.VersionNumber, "error", runErr)
	}
	return result, nil
}

func (s *Service) formatVersion(ctx context.Context, doc store.Document, version store.Version) (ai.RestructureResult, render.Output, error) {
	structure, err := s.ai.Restructure(ctx, ai.RestructureInput{DocumentType: doc.DocumentType, Text: version.ExtractedText})
	if err != nil {
		return structure, render.Output{}, err
	}
	if s.renderer == nil {
		return structure, render.Output{}, errors.New("renderer not configured")
	}
	sections := make([]render.Section, 0, len(structure.Sections))
	for _, sec := range structure.Sections {
		sections = append(sections, render.Section{Title: sec.Title, Content: sec.Content})
	}
	title := doc.Title
	if structure.Title != "" {
		title = structure.Title
	}
	out, err := s.renderer.Render(ctx, render.Input{
		DocumentID:    doc.ID,
		VersionNumber: version.VersionNumber,
		Code:          doc.Code,
		Title:         title,
		Revision:      doc.RevisionNumber,
		EffectiveDate: doc.EffectiveDate,
		Sections:      sections,
	})
	return structure, out, err
}

// GenerateChangelog compares a version with its predecessor and stores the
// result as the latest changelog of the version.
func (s *Service) GenerateChangelog(ctx context.Context, versionID int64) (store.Changelog, error) {
	version, doc, err := s.ownedVersion(ctx, versionID)
	if err != nil {
		return store.Changelog{}, err
	}
	in, previousID := s.changelogInput(ctx, doc, version)
	result, err := s.ai.GenerateChangelog(ctx, in)
	if err != nil {
		return store.Changelog{}, err
	}
	var changelog store.Changelog
	err = s.store.WithinTx(ctx, func(repo store.Repository) error {
		changelog, err = repo.InsertChangelog(ctx, store.Changelog{
			VersionID:         versionID,
			PreviousVersionID: previousID,
			DiffContent:       mustJSON(result.DiffContent),
			Summary:           result.Summary,
		})
		if err != nil {
			return err
		}
		s.recordUsage(ctx, repo, versionID, ai.AgentChangelog, result.Meta)
		return nil
	})
	return changelog, err
}

func (s *Service) GetChangelog(ctx context.Context, versionID int64) (store.Changelog, error) {
	changelog, err := s.store.LatestChangelog(ctx, versionID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.Changelog{}, notFound("no changelog found for this version")
	}
	return changelog, err
}

func (s *Service) ListAnalyses(ctx context.Context, versionID int64) ([]store.AIAnalysis, error) {
	if _, _, err := s.ownedVersion(ctx, versionID); err != nil {
		return nil, err
	}
	return s.store.ListAnalyses(ctx, versionID)
}

type SafetyReport struct {
	Result   ai.SafetyResult  `json:"result"`
	Analysis store.AIAnalysis `json:"analysis"`
}

func (s *Service) DetectSafety(ctx context.Context, versionID int64) (SafetyReport, error) {
	version, _, err := s.ownedVersion(ctx, versionID)
	if err != nil {
		return SafetyReport{}, err
	}
	result, err := s.ai.DetectSafety(ctx, ai.SafetyInput{Text: version.ExtractedText})
	if err != nil {
		return SafetyReport{}, err
	}
	involves := result.InvolvesSafety
	var analysis store.AIAnalysis
	err = s.store.WithinTx(ctx, func(repo store.Repository) error {
		analysis, err = repo.InsertAnalysis(ctx, store.AIAnalysis{
			VersionID: versionID,
			AgentType: string(ai.AgentSafety),
			Source:    string(result.Meta.Source),
			Response:  mustJSON(result),
			Approved:  &involves,
			Error:     result.Meta.FallbackError,
		})
		if err != nil {
			return err
		}
		s.recordUsage(ctx, repo, versionID, ai.AgentSafety, result.Meta)
		return nil
	})
	if err != nil {
		return SafetyReport{}, err
	}
	return SafetyReport{Result: result, Analysis: analysis}, nil
}

type CrossReferenceReport struct {
	Result   ai.ValidateResult `json:"result"`
	Analysis store.AIAnalysis  `json:"analysis"`
}

// maxCitedText bounds the text of each cited document sent for validation.
const maxCitedText = 4000

// ValidateCrossReferences finds the documents a version cites, resolves them
// against the registry and asks the validator whether the citations hold.
func (s *Service) ValidateCrossReferences(ctx context.Context, versionID int64) (CrossReferenceReport, error) {
	version, doc, err := s.ownedVersion(ctx, versionID)
	if err != nil {
		return CrossReferenceReport{}, err
	}
	extracted, err := s.ai.ExtractReferences(ctx, ai.ExtractInput{Text: version.ExtractedText})
	if err != nil {
		return CrossReferenceReport{}, err
	}

	codes := lifecycle.FindCodes(version.ExtractedText)
	seen := make(map[string]struct{}, len(codes))
	for _, code := range codes {
		seen[code] = struct{}{}
	}
	for _, ref := range extracted.References {
		if _, _, _, err := lifecycle.ParseCode(ref.CodeOrTitle); err != nil {
			continue
		}
		if _, ok := seen[ref.CodeOrTitle]; !ok {
			seen[ref.CodeOrTitle] = struct{}{}
			codes = append(codes, ref.CodeOrTitle)
		}
	}

	cited := make([]ai.CitedDocument, 0, len(codes))
	for _, code := range codes {
		if code == doc.Code {
			continue
		}
		entry := ai.CitedDocument{CitedDocument: code}
		target, err := s.store.GetDocumentByCode(ctx, code)
		switch {
		case errors.Is(err, sql.ErrNoRows):
		case err != nil:
			return CrossReferenceReport{}, err
		default:
			entry.FoundInSystem = true
			if v, err := s.store.GetVersionByNumber(ctx, target.ID, target.CurrentVersion); err == nil {
				entry.ExtractedText = truncateRunes(v.ExtractedText, maxCitedText)
			}
		}
		cited = append(cited, entry)
	}

	result, err := s.ai.ValidateReferences(ctx, ai.ValidateInput{Text: version.ExtractedText, References: cited})
	if err != nil {
		return CrossReferenceReport{}, err
	}
	var analysis store.AIAnalysis
	err = s.store.WithinTx(ctx, func(repo store.Repository) error {
		analysis, err = repo.InsertAnalysis(ctx, store.AIAnalysis{
			VersionID: versionID,
			AgentType: string(ai.AgentCrossrefValidate),
			Source:    string(result.Meta.Source),
			Response:  mustJSON(result),
			Error:     result.Meta.FallbackError,
		})
		if err != nil {
			return err
		}
		s.recordUsage(ctx, repo, versionID, ai.AgentCrossrefExtract, extracted.Meta)
		s.recordUsage(ctx, repo, versionID, ai.AgentCrossrefValidate, result.Meta)
		return nil
	})
	if err != nil {
		return CrossReferenceReport{}, err
	}
	return CrossReferenceReport{Result: result, Analysis: analysis}, nil
}

func truncateRunes(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
