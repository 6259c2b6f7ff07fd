package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"doccontrol/api/internal/lifecycle"
)

const chainColumns = `id, version_id, chain_type, status, requires_training, created_at, completed_at`

const approverColumns = `id, chain_id, approver_name, approver_role, approver_profile, COALESCE(approver_email, ''),
	approver_order, approval_level, is_required, ai_recommended, action, COALESCE(comments, ''), acted_at, deadline`

func scanChain(row rowScanner) (ApprovalChain, error) {
	var c ApprovalChain
	err := row.Scan(&c.ID, &c.VersionID, &c.ChainType, &c.Status, &c.RequiresTraining, &c.CreatedAt, &c.CompletedAt)
	return c, err
}

func scanApprover(row rowScanner) (Approver, error) {
	var a Approver
	err := row.Scan(&a.ID, &a.ChainID, &a.ApproverName, &a.ApproverRole, &a.ApproverProfile, &a.ApproverEmail,
		&a.Order, &a.ApprovalLevel, &a.IsRequired, &a.AIRecommended, &a.Action, &a.Comments, &a.ActedAt, &a.Deadline)
	return a, err
}

// InsertChain stores the chain and its approvers. Callers run it inside
// WithinTx so a half-written chain is never visible.
func (s *PostgresStore) InsertChain(ctx context.Context, chain ApprovalChain) (ApprovalChain, error) {
	row := s.q.QueryRowContext(ctx, `
		INSERT INTO approval_chains (version_id, chain_type, status, requires_training)
		VALUES ($1, $2, $3, $4)
		RETURNING `+chainColumns,
		chain.VersionID, string(chain.ChainType), string(chain.Status), chain.RequiresTraining)
	inserted, err := scanChain(row)
	if err != nil {
		return ApprovalChain{}, wrapWrite("insert approval chain", err)
	}

	inserted.Approvers = make([]Approver, 0, len(chain.Approvers))
	for _, a := range chain.Approvers {
		row := s.q.QueryRowContext(ctx, `
			INSERT INTO chain_approvers (chain_id, approver_name, approver_role, approver_profile, approver_email,
				approver_order, approval_level, is_required, ai_recommended, deadline)
			VALUES ($1, $2, $3, $4, NULLIF($5, ''), $6, $7, $8, $9, $10)
			RETURNING `+approverColumns,
			inserted.ID, a.ApproverName, a.ApproverRole, string(a.ApproverProfile), a.ApproverEmail,
			a.Order, a.ApprovalLevel, a.IsRequired, a.AIRecommended, a.Deadline)
		approver, err := scanApprover(row)
		if err != nil {
			return ApprovalChain{}, wrapWrite("insert chain approver", err)
		}
		inserted.Approvers = append(inserted.Approvers, approver)
	}
	return inserted, nil
}

func (s *PostgresStore) GetChain(ctx context.Context, id int64) (ApprovalChain, error) {
	chain, err := scanChain(s.q.QueryRowContext(ctx, `SELECT `+chainColumns+` FROM approval_chains WHERE id=$1`, id))
	if err != nil {
		return ApprovalChain{}, err
	}
	return s.withApprovers(ctx, chain)
}

func (s *PostgresStore) LockChain(ctx context.Context, id int64) (ApprovalChain, error) {
	chain, err := scanChain(s.q.QueryRowContext(ctx, `SELECT `+chainColumns+` FROM approval_chains WHERE id=$1 FOR UPDATE`, id))
	if err != nil {
		return ApprovalChain{}, err
	}
	return s.withApprovers(ctx, chain)
}

// FindActiveChainForVersion returns the pending chain of a version, falling
// back to its most recent chain. It returns nil when the version has none.
func (s *PostgresStore) FindActiveChainForVersion(ctx context.Context, versionID int64) (*ApprovalChain, error) {
	chain, err := scanChain(s.q.QueryRowContext(ctx, `
		SELECT `+chainColumns+`
		FROM approval_chains
		WHERE version_id=$1
		ORDER BY (status = 'pending') DESC, created_at DESC, id DESC
		LIMIT 1
	`, versionID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("find chain for version: %w", err)
	}
	chain, err = s.withApprovers(ctx, chain)
	if err != nil {
		return nil, err
	}
	return &chain, nil
}

func (s *PostgresStore) withApprovers(ctx context.Context, chain ApprovalChain) (ApprovalChain, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+approverColumns+`
		FROM chain_approvers
		WHERE chain_id=$1
		ORDER BY approver_order ASC, id ASC
	`, chain.ID)
	if err != nil {
		return ApprovalChain{}, fmt.Errorf("list chain approvers: %w", err)
	}
	defer rows.Close()

	chain.Approvers = make([]Approver, 0)
	for rows.Next() {
		a, err := scanApprover(rows)
		if err != nil {
			return ApprovalChain{}, fmt.Errorf("scan chain approver: %w", err)
		}
		chain.Approvers = append(chain.Approvers, a)
	}
	if err := rows.Err(); err != nil {
		return ApprovalChain{}, fmt.Errorf("iterate chain approvers: %w", err)
	}
	return chain, nil
}

func (s *PostgresStore) GetApprover(ctx context.Context, chainID, approverID int64) (Approver, error) {
	return scanApprover(s.q.QueryRowContext(ctx,
		`SELECT `+approverColumns+` FROM chain_approvers WHERE chain_id=$1 AND id=$2`, chainID, approverID))
}

// RecordApproverAction sets an approver's decision once. It reports false when
// the approver had already acted.
func (s *PostgresStore) RecordApproverAction(ctx context.Context, approverID int64, action lifecycle.ApproverAction, comments string, actedAt time.Time) (bool, error) {
	res, err := s.q.ExecContext(ctx, `
		UPDATE chain_approvers
		SET action=$2, comments=NULLIF($3, ''), acted_at=$4
		WHERE id=$1 AND action IS NULL
	`, approverID, string(action), comments, actedAt)
	if err != nil {
		return false, fmt.Errorf("record approver action: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("record approver action rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) UpdateChainStatus(ctx context.Context, chainID int64, status lifecycle.ChainStatus, completedAt *time.Time) error {
	if _, err := s.q.ExecContext(ctx, `UPDATE approval_chains SET status=$2, completed_at=$3 WHERE id=$1`,
		chainID, string(status), completedAt); err != nil {
		return fmt.Errorf("update chain status: %w", err)
	}
	return nil
}

func (s *PostgresStore) UpdateChainTraining(ctx context.Context, chainID int64, requiresTraining *bool) (bool, error) {
	res, err := s.q.ExecContext(ctx, `UPDATE approval_chains SET requires_training=$2 WHERE id=$1`, chainID, requiresTraining)
	if err != nil {
		return false, fmt.Errorf("update chain training: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update chain training rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) ListPendingApprovals(ctx context.Context) ([]PendingApproval, error) {
	rows, err := s.q.QueryContext(ctx, `
		SELECT c.id, v.id, v.version_number, d.id, d.code, d.title, c.chain_type, c.created_at,
			COUNT(a.id) FILTER (WHERE a.action = 'approve'),
			COUNT(a.id) FILTER (WHERE a.action IS NULL),
			COUNT(a.id),
			COUNT(a.id) FILTER (WHERE a.action IS NULL AND a.is_required)
		FROM approval_chains c
		JOIN document_versions v ON v.id = c.version_id
		JOIN documents d ON d.id = v.document_id
		LEFT JOIN chain_approvers a ON a.chain_id = c.id
		WHERE c.status = 'pending'
		GROUP BY c.id, v.id, d.id
		ORDER BY c.created_at ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("list pending approvals: %w", err)
	}
	defer rows.Close()

	items := make([]PendingApproval, 0)
	for rows.Next() {
		var p PendingApproval
		if err := rows.Scan(&p.ChainID, &p.VersionID, &p.VersionNumber, &p.DocumentID, &p.DocumentCode, &p.DocumentTitle,
			&p.ChainType, &p.CreatedAt, &p.ApprovedCount, &p.PendingCount, &p.TotalApprovers, &p.RequiredPending); err != nil {
			return nil, fmt.Errorf("scan pending approval: %w", err)
		}
		items = append(items, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate pending approvals: %w", err)
	}
	return items, nil
}

const defaultApproverColumns = `id, approver_name, approver_role, approver_profile, COALESCE(approver_email, ''),
	document_type, is_default, approver_order`

func scanDefaultApprover(row rowScanner) (DefaultApprover, error) {
	var d DefaultApprover
	err := row.Scan(&d.ID, &d.ApproverName, &d.ApproverRole, &d.ApproverProfile, &d.ApproverEmail,
		&d.DocumentType, &d.IsDefault, &d.Order)
	return d, err
}

// ListDefaultApprovers returns the defaults that apply to docType: those bound
// to it plus those bound to no type. An empty docType lists everything.
func (s *PostgresStore) ListDefaultApprovers(ctx context.Context, docType lifecycle.DocumentType) ([]DefaultApprover, error) {
	query := `SELECT ` + defaultApproverColumns + ` FROM default_approvers`
	var args []any
	if docType != "" {
		query += ` WHERE is_default AND (document_type IS NULL OR document_type = $1)`
		args = append(args, string(docType))
	}
	query += ` ORDER BY approver_order ASC, id ASC`

	rows, err := s.q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list default approvers: %w", err)
	}
	defer rows.Close()

	items := make([]DefaultApprover, 0)
	for rows.Next() {
		d, err := scanDefaultApprover(rows)
		if err != nil {
			return nil, fmt.Errorf("scan default approver: %w", err)
		}
		items = append(items, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate default approvers: %w", err)
	}
	return items, nil
}

func documentTypeArg(t *lifecycle.DocumentType) any {
	if t == nil || *t == "" {
		return nil
	}
	return string(*t)
}

func (s *PostgresStore) InsertDefaultApprover(ctx context.Context, item DefaultApprover) (DefaultApprover, error) {
	row := s.q.QueryRowContext(ctx, `
		INSERT INTO default_approvers (approver_name, approver_role, approver_profile, approver_email,
			document_type, is_default, approver_order)
		VALUES ($1, $2, $3, NULLIF($4, ''), $5, $6, $7)
		RETURNING `+defaultApproverColumns,
		item.ApproverName, item.ApproverRole, string(item.ApproverProfile), item.ApproverEmail,
		documentTypeArg(item.DocumentType), item.IsDefault, item.Order)
	inserted, err := scanDefaultApprover(row)
	if err != nil {
		return DefaultApprover{}, wrapWrite("insert default approver", err)
	}
	return inserted, nil
}

func (s *PostgresStore) UpdateDefaultApprover(ctx context.Context, item DefaultApprover) (bool, error) {
	res, err := s.q.ExecContext(ctx, `
		UPDATE default_approvers
		SET approver_name=$2, approver_role=$3, approver_profile=$4, approver_email=NULLIF($5, ''),
			document_type=$6, is_default=$7, approver_order=$8
		WHERE id=$1
	`, item.ID, item.ApproverName, item.ApproverRole, string(item.ApproverProfile), item.ApproverEmail,
		documentTypeArg(item.DocumentType), item.IsDefault, item.Order)
	if err != nil {
		return false, fmt.Errorf("update default approver: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("update default approver rows: %w", err)
	}
	return affected > 0, nil
}

func (s *PostgresStore) DeleteDefaultApprover(ctx context.Context, id int64) (bool, error) {
	res, err := s.q.ExecContext(ctx, `DELETE FROM default_approvers WHERE id=$1`, id)
	if err != nil {
		return false, fmt.Errorf("delete default approver: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("delete default approver rows: %w", err)
	}
	return affected > 0, nil
}
