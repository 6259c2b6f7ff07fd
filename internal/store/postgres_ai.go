package store

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
)

const analysisColumns = `id, version_id, agent_type, source, COALESCE(prompt_used, ''), response, feedback_items,
	approved, COALESCE(error, ''), created_at`

func scanAnalysis(row rowScanner) (AIAnalysis, error) {
	var a AIAnalysis
	var response, feedback []byte
	err := row.Scan(&a.ID, &a.VersionID, &a.AgentType, &a.Source, &a.PromptUsed, &response, &feedback,
		&a.Approved, &a.Error, &a.CreatedAt)
	if err != nil {
		return AIAnalysis{}, err
	}
	a.Response = json.RawMessage(response)
	a.FeedbackItems = json.RawMessage(feedback)
	return a, nil
}

func (s *PostgresStore) InsertAnalysis(ctx context.Context, analysis AIAnalysis) (AIAnalysis, error) {
	row := s.q.QueryRowContext(ctx, `
		INSERT INTO ai_analyses (version_id, agent_type, source, prompt_used, response, feedback_items, approved, error)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5::jsonb, $6::jsonb, $7, NULLIF($8, ''))
		RETURNING `+analysisColumns,
		analysis.VersionID, analysis.AgentType, analysis.Source, analysis.PromptUsed,
		jsonArg(analysis.Response, "{}"), jsonArg(analysis.FeedbackItems, "[]"), analysis.Approved, analysis.Error)
	inserted, err := scanAnalysis(row)
	if err != nil {
		return AIAnalysis{}, wrapWrite("insert ai analysis", err)
	}
	return inserted, nil
}

func (s *PostgresStore) ListAnalyses(ctx context.Context, versionID int64) ([]AIAnalysis, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+analysisColumns+`
		FROM ai_analyses
		WHERE version_id=$1
		ORDER BY created_at ASC, id ASC
	`, versionID)
	if err != nil {
		return nil, fmt.Errorf("list ai analyses: %w", err)
	}
	defer rows.Close()

	items := make([]AIAnalysis, 0)
	for rows.Next() {
		a, err := scanAnalysis(rows)
		if err != nil {
			return nil, fmt.Errorf("scan ai analysis: %w", err)
		}
		items = append(items, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate ai analyses: %w", err)
	}
	return items, nil
}

const changelogColumns = `id, version_id, previous_version_id, diff_content, summary, created_at`

func scanChangelog(row rowScanner) (Changelog, error) {
	var c Changelog
	var diff []byte
	if err := row.Scan(&c.ID, &c.VersionID, &c.PreviousVersionID, &diff, &c.Summary, &c.CreatedAt); err != nil {
		return Changelog{}, err
	}
	c.DiffContent = json.RawMessage(diff)
	return c, nil
}

func (s *PostgresStore) InsertChangelog(ctx context.Context, changelog Changelog) (Changelog, error) {
	row := s.q.QueryRowContext(ctx, `
		INSERT INTO changelogs (version_id, previous_version_id, diff_content, summary)
		VALUES ($1, $2, $3::jsonb, $4)
		RETURNING `+changelogColumns,
		changelog.VersionID, changelog.PreviousVersionID, jsonArg(changelog.DiffContent, "{}"), changelog.Summary)
	inserted, err := scanChangelog(row)
	if err != nil {
		return Changelog{}, wrapWrite("insert changelog", err)
	}
	return inserted, nil
}

func (s *PostgresStore) LatestChangelog(ctx context.Context, versionID int64) (Changelog, error) {
	return scanChangelog(s.q.QueryRowContext(ctx, `
		SELECT `+changelogColumns+`
		FROM changelogs
		WHERE version_id=$1
		ORDER BY created_at DESC, id DESC
		LIMIT 1
	`, versionID))
}

func (s *PostgresStore) InsertAIUsage(ctx context.Context, usage AIUsage) error {
	_, err := s.q.ExecContext(ctx, `
		INSERT INTO ai_usage (version_id, agent_type, model, tokens_in, tokens_out)
		VALUES ($1, $2, $3, $4, $5)
	`, usage.VersionID, usage.AgentType, usage.Model, usage.TokensIn, usage.TokensOut)
	if err != nil {
		return fmt.Errorf("insert ai usage: %w", err)
	}
	return nil
}

const distributionColumns = `id, document_id, recipient_name, COALESCE(recipient_role, ''), COALESCE(recipient_email, ''),
	notified_at, acknowledged_at, created_at`

func scanDistribution(row rowScanner) (Distribution, error) {
	var d Distribution
	err := row.Scan(&d.ID, &d.DocumentID, &d.RecipientName, &d.RecipientRole, &d.RecipientEmail,
		&d.NotifiedAt, &d.AcknowledgedAt, &d.CreatedAt)
	return d, err
}

func (s *PostgresStore) InsertDistribution(ctx context.Context, item Distribution) (Distribution, error) {
	row := s.q.QueryRowContext(ctx, `
		INSERT INTO distributions (document_id, recipient_name, recipient_role, recipient_email)
		VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''))
		RETURNING `+distributionColumns,
		item.DocumentID, item.RecipientName, item.RecipientRole, item.RecipientEmail)
	inserted, err := scanDistribution(row)
	if err != nil {
		return Distribution{}, wrapWrite("insert distribution", err)
	}
	return inserted, nil
}

func (s *PostgresStore) ListDistributions(ctx context.Context, documentID int64) ([]Distribution, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+distributionColumns+`
		FROM distributions
		WHERE document_id=$1
		ORDER BY created_at ASC, id ASC
	`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list distributions: %w", err)
	}
	defer rows.Close()

	items := make([]Distribution, 0)
	for rows.Next() {
		d, err := scanDistribution(rows)
		if err != nil {
			return nil, fmt.Errorf("scan distribution: %w", err)
		}
		items = append(items, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate distributions: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) MarkDistributionsNotified(ctx context.Context, ids []int64, at time.Time) error {
	if len(ids) == 0 {
		return nil
	}
	if _, err := s.q.ExecContext(ctx, `UPDATE distributions SET notified_at=$2 WHERE id = ANY($1)`, ids, at); err != nil {
		return fmt.Errorf("mark distributions notified: %w", err)
	}
	return nil
}

func (s *PostgresStore) AcknowledgeDistribution(ctx context.Context, documentID, id int64, at time.Time) (bool, error) {
	res, err := s.q.ExecContext(ctx, `
		UPDATE distributions
		SET acknowledged_at=$3
		WHERE id=$2 AND document_id=$1 AND acknowledged_at IS NULL
	`, documentID, id, at)
	if err != nil {
		return false, fmt.Errorf("acknowledge distribution: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("acknowledge distribution rows: %w", err)
	}
	return affected > 0, nil
}
