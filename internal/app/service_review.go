package app

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"doccontrol/api/internal/ai"
	"doccontrol/api/internal/lifecycle"
	"doccontrol/api/internal/store"
)

type SubmitTextInput struct {
	UserText    string `json:"user_text"`
	SkipClarity bool   `json:"skip_clarity"`
}

// TextReviewResult is the review iteration together with the version it
// moved.
type TextReviewResult struct {
	Review  store.TextReview `json:"review"`
	Version store.Version    `json:"version"`
}

// newReview builds a review iteration from a spelling check. Iterations with
// spelling errors stay open; the rest are resolved immediately.
func (s *Service) newReview(versionID int64, iteration int, original string, res ai.ReviewResult) store.TextReview {
	corrected := res.CorrectedText
	if corrected == "" {
		corrected = original
	}
	review := store.TextReview{
		VersionID:             versionID,
		Iteration:             iteration,
		OriginalText:          original,
		AICorrectedText:       corrected,
		SpellingErrors:        mustJSON(nonNilSlice(res.SpellingErrors)),
		ClaritySuggestions:    mustJSON(nonNilSlice(res.ClaritySuggestions)),
		HasSpellingErrors:     res.HasSpellingErrors,
		HasClaritySuggestions: res.HasClaritySuggestions,
	}
	now := s.now()
	switch {
	case res.HasSpellingErrors:
		review.Status = lifecycle.ReviewPending
	case res.HasClaritySuggestions:
		review.Status = lifecycle.ReviewReviewed
		review.ResolvedAt = &now
	default:
		review.Status = lifecycle.ReviewClean
		review.ResolvedAt = &now
	}
	return review
}

func nonNilSlice[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}

func (s *Service) GetTextReview(ctx context.Context, versionID int64) (store.TextReview, error) {
	review, err := s.store.LatestTextReview(ctx, versionID)
	if errors.Is(err, sql.ErrNoRows) {
		return store.TextReview{}, notFound("no text review found for this version")
	}
	return review, err
}

func (s *Service) TextReviewHistory(ctx context.Context, versionID int64) ([]store.TextReview, error) {
	if _, _, err := s.ownedVersion(ctx, versionID); err != nil {
		return nil, err
	}
	return s.store.ListTextReviews(ctx, versionID)
}

// SubmitText resolves the open review with the user's text and runs a
// spelling-only check on it as the next iteration. A clean iteration replaces
// the version text and advances it to in_review.
func (s *Service) SubmitText(ctx context.Context, versionID int64, input SubmitTextInput) (TextReviewResult, error) {
	text := strings.TrimSpace(input.UserText)
	if text == "" {
		return TextReviewResult{}, validationError("user_text is required")
	}
	version, doc, err := s.ownedVersion(ctx, versionID)
	if err != nil {
		return TextReviewResult{}, err
	}
	if version.Status != lifecycle.VersionSpellingReview {
		return TextReviewResult{}, invalidState("version is not in spelling review", map[string]any{"status": version.Status})
	}
	previous, err := s.GetTextReview(ctx, versionID)
	if err != nil {
		return TextReviewResult{}, err
	}

	check, err := s.ai.ReviewText(ctx, ai.ReviewInput{Text: text, SpellingOnly: true})
	if err != nil {
		return TextReviewResult{}, err
	}
	check.ClaritySuggestions = nil
	check.HasClaritySuggestions = false

	var result TextReviewResult
	err = s.store.WithinTx(ctx, func(repo store.Repository) error {
		locked, err := repo.LockVersion(ctx, versionID)
		if err != nil {
			return err
		}
		if locked.Status != lifecycle.VersionSpellingReview {
			return invalidState("version is not in spelling review", map[string]any{"status": locked.Status})
		}
		latest, err := repo.LatestTextReview(ctx, versionID)
		if err != nil {
			return err
		}
		if latest.ID != previous.ID {
			return invalidState("text review changed concurrently", map[string]any{"iteration": latest.Iteration})
		}

		if latest.ResolvedAt == nil {
			now := s.now()
			latest.UserText = &text
			latest.UserSkippedClarity = input.SkipClarity
			latest.ResolvedAt = &now
			latest.Status = lifecycle.ReviewUserEdited
			if text == strings.TrimSpace(latest.AICorrectedText) {
				latest.Status = lifecycle.ReviewUserAccepted
			}
			ok, err := repo.ResolveTextReview(ctx, latest)
			if err != nil {
				return err
			}
			if !ok {
				return invalidState("text review already resolved", map[string]any{"iteration": latest.Iteration})
			}
		}

		review, err := repo.InsertTextReview(ctx, s.newReview(versionID, latest.Iteration+1, text, check))
		if err != nil {
			if errors.Is(err, store.ErrConflict) {
				return invalidState("text review changed concurrently", nil)
			}
			return err
		}
		s.recordUsage(ctx, repo, versionID, ai.AgentSpelling, check.Meta)

		if !review.HasSpellingErrors {
			locked.ExtractedText = text
			if err := s.moveVersion(&locked, lifecycle.VersionInReview); err != nil {
				return err
			}
			if _, err := s.saveVersionAndDocument(ctx, repo, locked); err != nil {
				return err
			}
		}
		result = TextReviewResult{Review: review, Version: locked}
		return nil
	})
	if err != nil {
		return TextReviewResult{}, err
	}
	if result.Version.Status == lifecycle.VersionInReview {
		s.archiveText(doc, result.Version, "text-review")
	}
	return result, nil
}

// AcceptText accepts the latest AI-corrected text without edits. It fails
// while the latest iteration still reports spelling errors.
func (s *Service) AcceptText(ctx context.Context, versionID int64) (TextReviewResult, error) {
	_, doc, err := s.ownedVersion(ctx, versionID)
	if err != nil {
		return TextReviewResult{}, err
	}

	var result TextReviewResult
	err = s.store.WithinTx(ctx, func(repo store.Repository) error {
		locked, err := repo.LockVersion(ctx, versionID)
		if err != nil {
			return err
		}
		if locked.Status != lifecycle.VersionSpellingReview && locked.Status != lifecycle.VersionInReview {
			return invalidState("version is not in text review", map[string]any{"status": locked.Status})
		}
		review, err := repo.LatestTextReview(ctx, versionID)
		if errors.Is(err, sql.ErrNoRows) {
			return notFound("no text review found for this version")
		}
		if err != nil {
			return err
		}
		if review.HasSpellingErrors {
			return invalidState("text still has spelling errors", map[string]any{"iteration": review.Iteration})
		}

		text := review.AICorrectedText
		if strings.TrimSpace(text) == "" {
			text = review.OriginalText
		}
		if review.ResolvedAt == nil {
			now := s.now()
			review.UserText = &text
			review.ResolvedAt = &now
			review.Status = lifecycle.ReviewUserAccepted
			ok, err := repo.ResolveTextReview(ctx, review)
			if err != nil {
				return err
			}
			if !ok {
				return invalidState("text review already resolved", map[string]any{"iteration": review.Iteration})
			}
		}

		locked.ExtractedText = text
		if err := s.moveVersion(&locked, lifecycle.VersionInReview); err != nil {
			return err
		}
		if _, err := s.saveVersionAndDocument(ctx, repo, locked); err != nil {
			return err
		}
		result = TextReviewResult{Review: review, Version: locked}
		return nil
	})
	if err != nil {
		return TextReviewResult{}, err
	}
	s.archiveText(doc, result.Version, "text-review")
	return result, nil
}
