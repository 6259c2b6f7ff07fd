package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"golang.org/x/sync/errgroup"

	"doccontrol/api/internal/ai"
	"doccontrol/api/internal/jobs"
	"doccontrol/api/internal/lifecycle"
	"doccontrol/api/internal/store"
)

const analysisJobKind jobs.Kind = "analysis"

// AnalysisOutcome is everything the analysis step produced for a version.
type AnalysisOutcome struct {
	Version   store.Version    `json:"version"`
	Analysis  store.AIAnalysis `json:"analysis"`
	Safety    store.AIAnalysis `json:"safety"`
	Changelog store.Changelog  `json:"changelog"`
	Review    store.TextReview `json:"text_review"`
}

type analysisResults struct {
	analysis  ai.AnalysisResult
	changelog ai.ChangelogResult
	review    ai.ReviewResult
	safety    ai.SafetyResult
}

// RunAnalysis runs the AI analysis of a version and moves it to
// spelling_review or in_review. Any failure leaves the version and its
// document in analysis_failed and is returned to the caller.
func (s *Service) RunAnalysis(ctx context.Context, versionID int64) (AnalysisOutcome, error) {
	outcome, err := s.runAnalysis(ctx, versionID)
	if err != nil {
		var domainErr *DomainError
		if errors.Is(err, errStaleAnalysis) || errors.Is(err, sql.ErrNoRows) ||
			(errors.As(err, &domainErr) && domainErr.Code == "NOT_FOUND") {
			return AnalysisOutcome{}, err
		}
		s.markAnalysisFailed(context.WithoutCancel(ctx), versionID, err)
		return AnalysisOutcome{}, err
	}
	return outcome, nil
}

func (s *Service) runAnalysis(ctx context.Context, versionID int64) (AnalysisOutcome, error) {
	version, doc, err := s.ownedVersion(ctx, versionID)
	if err != nil {
		return AnalysisOutcome{}, err
	}
	if version.Status != lifecycle.VersionAnalyzing {
		if !lifecycle.Retryable(version.Status) {
			return AnalysisOutcome{}, staleAnalysis("version is not awaiting analysis", version.Status)
		}
		if err := s.store.WithinTx(ctx, func(repo store.Repository) error {
			locked, err := repo.LockVersion(ctx, versionID)
			if err != nil {
				return err
			}
			if err := s.moveVersion(&locked, lifecycle.VersionAnalyzing); err != nil {
				return err
			}
			_, err = s.saveVersionAndDocument(ctx, repo, locked)
			return err
		}); err != nil {
			return AnalysisOutcome{}, err
		}
	}

	changelogIn, previousID := s.changelogInput(ctx, doc, version)
	results, err := s.callAgents(ctx, doc.DocumentType, version.ExtractedText, changelogIn)
	if err != nil {
		return AnalysisOutcome{}, err
	}

	var outcome AnalysisOutcome
	err = s.store.WithinTx(ctx, func(repo store.Repository) error {
		locked, err := repo.LockVersion(ctx, versionID)
		if err != nil {
			return err
		}
		if locked.Status != lifecycle.VersionAnalyzing {
			return staleAnalysis("version left analyzing while the analysis ran", locked.Status)
		}

		approved := results.analysis.Approved
		analysis, err := repo.InsertAnalysis(ctx, store.AIAnalysis{
			VersionID:     versionID,
			AgentType:     string(ai.AgentAnalysis),
			Source:        string(results.analysis.Meta.Source),
			Response:      mustJSON(results.analysis),
			FeedbackItems: mustJSON(results.analysis.FeedbackItems),
			Approved:      &approved,
			Error:         results.analysis.Meta.FallbackError,
		})
		if err != nil {
			return err
		}
		involves := results.safety.InvolvesSafety
		safety, err := repo.InsertAnalysis(ctx, store.AIAnalysis{
			VersionID: versionID,
			AgentType: string(ai.AgentSafety),
			Source:    string(results.safety.Meta.Source),
			Response:  mustJSON(results.safety),
			Approved:  &involves,
			Error:     results.safety.Meta.FallbackError,
		})
		if err != nil {
			return err
		}
		changelog, err := repo.InsertChangelog(ctx, store.Changelog{
			VersionID:         versionID,
			PreviousVersionID: previousID,
			DiffContent:       mustJSON(results.changelog.DiffContent),
			Summary:           results.changelog.Summary,
		})
		if err != nil {
			return err
		}
		review, err := repo.InsertTextReview(ctx, s.newReview(versionID, 1, locked.ExtractedText, results.review))
		if err != nil {
			return err
		}
		for agent, meta := range map[ai.Agent]ai.Meta{
			ai.AgentAnalysis:  results.analysis.Meta,
			ai.AgentChangelog: results.changelog.Meta,
			ai.AgentSpelling:  results.review.Meta,
			ai.AgentSafety:    results.safety.Meta,
		} {
			s.recordUsage(ctx, repo, versionID, agent, meta)
		}

		locked.AIApproved = &approved
		if locked.ChangeSummary == "" {
			locked.ChangeSummary = results.changelog.Summary
		}
		next := lifecycle.VersionInReview
		if review.HasSpellingErrors {
			next = lifecycle.VersionSpellingReview
		}
		if err := s.moveVersion(&locked, next); err != nil {
			return err
		}
		if _, err := s.saveVersionAndDocument(ctx, repo, locked); err != nil {
			return err
		}
		outcome = AnalysisOutcome{Version: locked, Analysis: analysis, Safety: safety, Changelog: changelog, Review: review}
		return nil
	})
	if err != nil {
		return AnalysisOutcome{}, err
	}

	s.log.Info("analysis finished", "code", doc.Code, "version", version.VersionNumber,
		"status", outcome.Version.Status, "ai_approved", results.analysis.Approved, "source", results.analysis.Meta.Source)
	if updated, err := s.store.GetDocument(ctx, doc.ID); err == nil {
		s.indexDocument(ctx, updated)
	}
	return outcome, nil
}

// callAgents runs the four analysis agents concurrently.
func (s *Service) callAgents(ctx context.Context, docType lifecycle.DocumentType, text string, changelogIn ai.ChangelogInput) (analysisResults, error) {
	var results analysisResults
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		results.analysis, err = s.ai.Analyze(gctx, ai.AnalysisInput{DocumentType: docType, Text: text})
		if err != nil {
			return fmt.Errorf("analysis agent: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		results.changelog, err = s.ai.GenerateChangelog(gctx, changelogIn)
		if err != nil {
			return fmt.Errorf("changelog agent: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		results.review, err = s.ai.ReviewText(gctx, ai.ReviewInput{Text: text})
		if err != nil {
			return fmt.Errorf("spelling agent: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		var err error
		results.safety, err = s.ai.DetectSafety(gctx, ai.SafetyInput{Text: text})
		if err != nil {
			return fmt.Errorf("safety agent: %w", err)
		}
		return nil
	})
	if err := g.Wait(); err != nil {
		return analysisResults{}, err
	}
	return results, nil
}

// changelogInput compares a version against its predecessor, attaching the
// archived unified diff when both texts were recorded.
func (s *Service) changelogInput(ctx context.Context, doc store.Document, version store.Version) (ai.ChangelogInput, *int64) {
	in := ai.ChangelogInput{NewText: version.ExtractedText}
	if version.VersionNumber <= 1 {
		return in, nil
	}
	previous, err := s.store.GetVersionByNumber(ctx, doc.ID, version.VersionNumber-1)
	if err != nil {
		s.log.Warn("load previous version for changelog", "code", doc.Code, "version", version.VersionNumber, "error", err)
		return in, nil
	}
	oldText := previous.ExtractedText
	in.OldText = &oldText
	if s.archive != nil {
		patch, err := s.archive.Patch(doc.ID, previous.VersionNumber, version.VersionNumber)
		if err != nil {
			s.log.Debug("no archived patch", "code", doc.Code, "error", err)
		} else {
			in.Patch = patch
		}
	}
	return in, &previous.ID
}

// markAnalysisFailed moves a version still in analyzing to analysis_failed in
// its own transaction. Versions that already left analyzing are untouched.
func (s *Service) markAnalysisFailed(ctx context.Context, versionID int64, cause error) {
	err := s.store.WithinTx(ctx, func(repo store.Repository) error {
		version, err := repo.LockVersion(ctx, versionID)
		if err != nil {
			return err
		}
		if version.Status != lifecycle.VersionAnalyzing {
			return nil
		}
		if err := s.moveVersion(&version, lifecycle.VersionAnalysisFailed); err != nil {
			return err
		}
		_, err = s.saveVersionAndDocument(ctx, repo, version)
		return err
	})
	if err != nil {
		s.log.Error("mark analysis failed", "version_id", versionID, "cause", cause, "error", err)
		return
	}
	s.log.Warn("analysis failed", "version_id", versionID, "error", cause)
}

// AnalysisHandler runs queued analysis jobs for the service.
type AnalysisHandler struct {
	service *Service
}

func (s *Service) AnalysisHandler() *AnalysisHandler {
	return &AnalysisHandler{service: s}
}

func (h *AnalysisHandler) Kind() jobs.Kind {
	return analysisJobKind
}

func (h *AnalysisHandler) Run(ctx context.Context, job jobs.Job) error {
	_, err := h.service.RunAnalysis(ctx, job.EntityID)
	if errors.Is(err, errStaleAnalysis) {
		// The version moved on (resubmitted or skipped) before the job ran.
		h.service.log.Info("stale analysis job skipped", "job_id", job.ID, "version_id", job.EntityID, "reason", err.Error())
		return nil
	}
	return err
}

func (h *AnalysisHandler) OnFailure(ctx context.Context, job jobs.Job, err error) {
	h.service.markAnalysisFailed(ctx, job.EntityID, err)
}
