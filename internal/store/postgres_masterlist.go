package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"doccontrol/api/internal/lifecycle"
)

// LockMasterList serializes code allocation. Readers are not blocked.
func (s *PostgresStore) LockMasterList(ctx context.Context) error {
	if s.tx == nil {
		return errors.New("lock master list: requires a transaction")
	}
	if _, err := s.q.ExecContext(ctx, `LOCK TABLE master_list IN SHARE ROW EXCLUSIVE MODE`); err != nil {
		return fmt.Errorf("lock master list: %w", err)
	}
	return nil
}

const masterListColumns = `id, document_id, master_list_code, entry_type, added_at, removed_at`

func scanMasterListEntry(row rowScanner) (MasterListEntry, error) {
	var e MasterListEntry
	err := row.Scan(&e.ID, &e.DocumentID, &e.MasterListCode, &e.EntryType, &e.AddedAt, &e.RemovedAt)
	return e, err
}

func (s *PostgresStore) GetMasterListEntryByDocument(ctx context.Context, documentID int64) (*MasterListEntry, error) {
	entry, err := scanMasterListEntry(s.q.QueryRowContext(ctx,
		`SELECT `+masterListColumns+` FROM master_list WHERE document_id=$1`, documentID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get master list entry: %w", err)
	}
	return &entry, nil
}

// CountAllMasterListEntries counts removed entries too, so codes are never
// reissued.
func (s *PostgresStore) CountAllMasterListEntries(ctx context.Context) (int, error) {
	var n int
	if err := s.q.QueryRowContext(ctx, `SELECT count(*) FROM master_list`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count master list: %w", err)
	}
	return n, nil
}

func (s *PostgresStore) InsertMasterListEntry(ctx context.Context, entry MasterListEntry) (MasterListEntry, error) {
	row := s.q.QueryRowContext(ctx, `
		INSERT INTO master_list (document_id, master_list_code, entry_type)
		VALUES ($1, $2, $3)
		RETURNING `+masterListColumns,
		entry.DocumentID, entry.MasterListCode, string(entry.EntryType))
	inserted, err := scanMasterListEntry(row)
	if err != nil {
		return MasterListEntry{}, wrapWrite("insert master list entry", err)
	}
	return inserted, nil
}

func (s *PostgresStore) SetMasterListRemovedAt(ctx context.Context, entryID int64, removedAt *time.Time) error {
	if _, err := s.q.ExecContext(ctx, `UPDATE master_list SET removed_at=$2 WHERE id=$1`, entryID, removedAt); err != nil {
		return fmt.Errorf("update master list entry: %w", err)
	}
	return nil
}

func (s *PostgresStore) ListMasterList(ctx context.Context, filter MasterListFilter) ([]MasterListRow, int, error) {
	var where []string
	var args []any
	if !filter.IncludeAll {
		where = append(where, "m.removed_at IS NULL")
	}
	if filter.DocumentType != "" {
		args = append(args, string(filter.DocumentType))
		where = append(where, fmt.Sprintf("d.document_type = $%d", len(args)))
	}
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("d.status = $%d", len(args)))
	}
	if search := strings.TrimSpace(filter.Search); search != "" {
		args = append(args, "%"+search+"%")
		where = append(where, fmt.Sprintf("(d.code ILIKE $%d OR d.title ILIKE $%d OR m.master_list_code ILIKE $%d)",
			len(args), len(args), len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.q.QueryRowContext(ctx, `SELECT count(*) FROM master_list m JOIN documents d ON d.id = m.document_id`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count master list: %w", err)
	}

	limit, offset := pageBounds(filter.Page, filter.Limit)
	rows, err := s.q.QueryContext(ctx, fmt.Sprintf(`
		SELECT m.id, m.document_id, m.master_list_code, m.entry_type, m.added_at, m.removed_at,
			d.code, d.title, d.document_type, d.status, COALESCE(d.sector, ''), d.current_version, d.effective_date
		FROM master_list m
		JOIN documents d ON d.id = m.document_id%s
		ORDER BY m.master_list_code ASC
		LIMIT %d OFFSET %d
	`, clause, limit, offset), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list master list: %w", err)
	}
	defer rows.Close()

	items := make([]MasterListRow, 0)
	for rows.Next() {
		var r MasterListRow
		if err := rows.Scan(&r.ID, &r.DocumentID, &r.MasterListCode, &r.EntryType, &r.AddedAt, &r.RemovedAt,
			&r.DocumentCode, &r.Title, &r.DocumentType, &r.Status, &r.Sector, &r.CurrentVersion, &r.EffectiveDate); err != nil {
			return nil, 0, fmt.Errorf("scan master list row: %w", err)
		}
		items = append(items, r)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate master list: %w", err)
	}
	return items, total, nil
}

func (s *PostgresStore) MasterListStats(ctx context.Context) (MasterListStats, error) {
	stats := MasterListStats{TotalByType: map[lifecycle.DocumentType]int{}}

	rows, err := s.q.QueryContext(ctx, `
		SELECT d.document_type, count(*)
		FROM master_list m
		JOIN documents d ON d.id = m.document_id
		WHERE m.removed_at IS NULL
		GROUP BY d.document_type
	`)
	if err != nil {
		return MasterListStats{}, fmt.Errorf("master list stats: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var t lifecycle.DocumentType
		var n int
		if err := rows.Scan(&t, &n); err != nil {
			return MasterListStats{}, fmt.Errorf("scan master list stats: %w", err)
		}
		stats.TotalByType[t] = n
		stats.TotalActive += n
	}
	if err := rows.Err(); err != nil {
		return MasterListStats{}, fmt.Errorf("iterate master list stats: %w", err)
	}

	if err := s.q.QueryRowContext(ctx, `
		SELECT MAX(added_at) FROM master_list WHERE removed_at IS NULL
	`).Scan(&stats.LatestUpdate); err != nil {
		return MasterListStats{}, fmt.Errorf("master list latest update: %w", err)
	}
	return stats, nil
}
