package store

import (
	"context"
	"encoding/json"
	"fmt"
)

const textReviewColumns = `id, version_id, iteration, original_text, ai_corrected_text, user_text,
	spelling_errors, clarity_suggestions, has_spelling_errors, has_clarity_suggestions, status,
	user_skipped_clarity, created_at, resolved_at`

func scanTextReview(row rowScanner) (TextReview, error) {
	var r TextReview
	var spelling, clarity []byte
	err := row.Scan(&r.ID, &r.VersionID, &r.Iteration, &r.OriginalText, &r.AICorrectedText, &r.UserText,
		&spelling, &clarity, &r.HasSpellingErrors, &r.HasClaritySuggestions, &r.Status,
		&r.UserSkippedClarity, &r.CreatedAt, &r.ResolvedAt)
	if err != nil {
		return TextReview{}, err
	}
	r.SpellingErrors = json.RawMessage(spelling)
	r.ClaritySuggestions = json.RawMessage(clarity)
	return r, nil
}

func jsonArg(raw json.RawMessage, fallback string) string {
	if len(raw) == 0 {
		return fallback
	}
	return string(raw)
}

func (s *PostgresStore) InsertTextReview(ctx context.Context, review TextReview) (TextReview, error) {
	row := s.q.QueryRowContext(ctx, `
		INSERT INTO text_reviews (version_id, iteration, original_text, ai_corrected_text, user_text,
			spelling_errors, clarity_suggestions, has_spelling_errors, has_clarity_suggestions, status,
			user_skipped_clarity, resolved_at)
		VALUES ($1, $2, $3, $4, $5, $6::jsonb, $7::jsonb, $8, $9, $10, $11, $12)
		RETURNING `+textReviewColumns,
		review.VersionID, review.Iteration, review.OriginalText, review.AICorrectedText, review.UserText,
		jsonArg(review.SpellingErrors, "[]"), jsonArg(review.ClaritySuggestions, "[]"),
		review.HasSpellingErrors, review.HasClaritySuggestions, string(review.Status),
		review.UserSkippedClarity, review.ResolvedAt)
	inserted, err := scanTextReview(row)
	if err != nil {
		return TextReview{}, wrapWrite("insert text review", err)
	}
	return inserted, nil
}

func (s *PostgresStore) LatestTextReview(ctx context.Context, versionID int64) (TextReview, error) {
	return scanTextReview(s.q.QueryRowContext(ctx, `
		SELECT `+textReviewColumns+`
		FROM text_reviews
		WHERE version_id=$1
		ORDER BY iteration DESC
		LIMIT 1
	`, versionID))
}

func (s *PostgresStore) ListTextReviews(ctx context.Context, versionID int64) ([]TextReview, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+textReviewColumns+`
		FROM text_reviews
		WHERE version_id=$1
		ORDER BY iteration ASC
	`, versionID)
	if err != nil {
		return nil, fmt.Errorf("list text reviews: %w", err)
	}
	defer rows.Close()

	items := make([]TextReview, 0)
	for rows.Next() {
		r, err := scanTextReview(rows)
		if err != nil {
			return nil, fmt.Errorf("scan text review: %w", err)
		}
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate text reviews: %w", err)
	}
	return items, nil
}

// ResolveTextReview records the user's decision on an unresolved iteration.
// It reports false when the iteration was already resolved.
func (s *PostgresStore) ResolveTextReview(ctx context.Context, review TextReview) (bool, error) {
	res, err := s.q.ExecContext(ctx, `
		UPDATE text_reviews
		SET user_text=$2, status=$3, user_skipped_clarity=$4, resolved_at=$5
		WHERE id=$1 AND resolved_at IS NULL
	`, review.ID, review.UserText, string(review.Status), review.UserSkippedClarity, review.ResolvedAt)
	if err != nil {
		return false, fmt.Errorf("resolve text review: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("resolve text review rows: %w", err)
	}
	return affected > 0, nil
}
