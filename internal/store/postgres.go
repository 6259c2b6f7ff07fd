package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5/pgconn"

	"doccontrol/api/internal/lifecycle"
)

// queryer is satisfied by both *sql.DB and *sql.Tx.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type PostgresStore struct {
	db *sql.DB
	q  queryer
	tx *sql.Tx
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db, q: db}
}

func (s *PostgresStore) DB() *sql.DB {
	return s.db
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// WithinTx runs fn against a store bound to a single transaction. The
// transaction commits when fn returns nil and rolls back otherwise. Calls made
// on a store that is already inside a transaction reuse it.
func (s *PostgresStore) WithinTx(ctx context.Context, fn func(Repository) error) error {
	if s.tx != nil {
		return fn(s)
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	bound := &PostgresStore{db: s.db, q: tx, tx: tx}
	if err := fn(bound); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func wrapWrite(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == "23505" {
		return fmt.Errorf("%s: %w (%s)", op, ErrConflict, pgErr.ConstraintName)
	}
	return fmt.Errorf("%s: %w", op, err)
}

const documentColumns = `id, code, title, document_type, sequential_number, revision_number, status,
	current_version, COALESCE(sector, ''), created_by_profile, effective_date, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDocument(row rowScanner) (Document, error) {
	var d Document
	err := row.Scan(&d.ID, &d.Code, &d.Title, &d.DocumentType, &d.SequentialNumber, &d.RevisionNumber, &d.Status,
		&d.CurrentVersion, &d.Sector, &d.CreatedByProfile, &d.EffectiveDate, &d.CreatedAt, &d.UpdatedAt)
	return d, err
}

func (s *PostgresStore) InsertDocument(ctx context.Context, doc Document) (Document, error) {
	row := s.q.QueryRowContext(ctx, `
		INSERT INTO documents (code, title, document_type, sequential_number, revision_number, status,
			current_version, sector, created_by_profile, effective_date)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9, $10)
		RETURNING `+documentColumns,
		doc.Code, doc.Title, string(doc.DocumentType), doc.SequentialNumber, doc.RevisionNumber, string(doc.Status),
		doc.CurrentVersion, doc.Sector, doc.CreatedByProfile, doc.EffectiveDate)
	inserted, err := scanDocument(row)
	if err != nil {
		return Document{}, wrapWrite("insert document", err)
	}
	return inserted, nil
}

func (s *PostgresStore) GetDocument(ctx context.Context, id int64) (Document, error) {
	return scanDocument(s.q.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id=$1`, id))
}

func (s *PostgresStore) GetDocumentByCode(ctx context.Context, code string) (Document, error) {
	return scanDocument(s.q.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE code=$1`, code))
}

func (s *PostgresStore) LockDocument(ctx context.Context, id int64) (Document, error) {
	return scanDocument(s.q.QueryRowContext(ctx, `SELECT `+documentColumns+` FROM documents WHERE id=$1 FOR UPDATE`, id))
}

func (s *PostgresStore) UpdateDocument(ctx context.Context, doc Document) error {
	_, err := s.q.ExecContext(ctx, `
		UPDATE documents
		SET code=$2, title=$3, revision_number=$4, status=$5, current_version=$6,
			sector=NULLIF($7, ''), effective_date=$8, updated_at=$9
		WHERE id=$1
	`, doc.ID, doc.Code, doc.Title, doc.RevisionNumber, string(doc.Status), doc.CurrentVersion,
		doc.Sector, doc.EffectiveDate, doc.UpdatedAt)
	if err != nil {
		return wrapWrite("update document", err)
	}
	return nil
}

func (s *PostgresStore) ListDocuments(ctx context.Context, filter DocumentFilter) ([]Document, int, error) {
	var where []string
	var args []any
	if filter.Status != "" {
		args = append(args, string(filter.Status))
		where = append(where, fmt.Sprintf("status = $%d", len(args)))
	}
	if filter.DocumentType != "" {
		args = append(args, string(filter.DocumentType))
		where = append(where, fmt.Sprintf("document_type = $%d", len(args)))
	}
	if strings.TrimSpace(filter.Code) != "" {
		args = append(args, "%"+strings.TrimSpace(filter.Code)+"%")
		where = append(where, fmt.Sprintf("code ILIKE $%d", len(args)))
	}
	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	if err := s.q.QueryRowContext(ctx, `SELECT count(*) FROM documents`+clause, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count documents: %w", err)
	}

	limit, offset := pageBounds(filter.Page, filter.Limit)
	rows, err := s.q.QueryContext(ctx, fmt.Sprintf(`SELECT %s FROM documents%s ORDER BY updated_at DESC, id DESC LIMIT %d OFFSET %d`,
		documentColumns, clause, limit, offset), args...)
	if err != nil {
		return nil, 0, fmt.Errorf("list documents: %w", err)
	}
	defer rows.Close()

	items := make([]Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("scan document: %w", err)
		}
		items = append(items, doc)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate documents: %w", err)
	}
	return items, total, nil
}

// SearchDocuments is the relational fallback used when the search index is
// unavailable.
func (s *PostgresStore) SearchDocuments(ctx context.Context, query string, limit int) ([]Document, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.q.QueryContext(ctx, `
		SELECT `+documentColumns+`
		FROM documents
		WHERE to_tsvector('simple', code || ' ' || title) @@ plainto_tsquery('simple', $1)
			OR code ILIKE '%' || $1 || '%'
			OR title ILIKE '%' || $1 || '%'
		ORDER BY updated_at DESC
		LIMIT $2
	`, query, limit)
	if err != nil {
		return nil, fmt.Errorf("search documents: %w", err)
	}
	defer rows.Close()

	items := make([]Document, 0)
	for rows.Next() {
		doc, err := scanDocument(rows)
		if err != nil {
			return nil, fmt.Errorf("scan document: %w", err)
		}
		items = append(items, doc)
	}
	return items, rows.Err()
}

func (s *PostgresStore) LockDocumentType(ctx context.Context, docType lifecycle.DocumentType) error {
	if s.tx == nil {
		return errors.New("lock document type: requires a transaction")
	}
	if _, err := s.q.ExecContext(ctx, `SELECT pg_advisory_xact_lock(hashtext('doc-seq:' || $1))`, string(docType)); err != nil {
		return fmt.Errorf("lock document type: %w", err)
	}
	return nil
}

func (s *PostgresStore) MaxSequentialNumber(ctx context.Context, docType lifecycle.DocumentType) (int, error) {
	var max int
	err := s.q.QueryRowContext(ctx, `SELECT COALESCE(MAX(sequential_number), 0) FROM documents WHERE document_type=$1`, string(docType)).Scan(&max)
	if err != nil {
		return 0, fmt.Errorf("max sequential number: %w", err)
	}
	return max, nil
}

const versionColumns = `id, document_id, version_number, status, ai_approved, extracted_text, original_filename,
	original_file_path, COALESCE(formatted_file_path_docx, ''), COALESCE(formatted_file_path_pdf, ''),
	COALESCE(change_summary, ''), created_by_profile, submitted_at, published_at, obsolete_at, archived_at, created_at`

func scanVersion(row rowScanner) (Version, error) {
	var v Version
	err := row.Scan(&v.ID, &v.DocumentID, &v.VersionNumber, &v.Status, &v.AIApproved, &v.ExtractedText, &v.OriginalFilename,
		&v.OriginalFilePath, &v.FormattedDocxPath, &v.FormattedPDFPath,
		&v.ChangeSummary, &v.CreatedByProfile, &v.SubmittedAt, &v.PublishedAt, &v.ObsoleteAt, &v.ArchivedAt, &v.CreatedAt)
	return v, err
}

func (s *PostgresStore) InsertVersion(ctx context.Context, version Version) (Version, error) {
	row := s.q.QueryRowContext(ctx, `
		INSERT INTO document_versions (document_id, version_number, status, ai_approved, extracted_text,
			original_filename, original_file_path, change_summary, created_by_profile, submitted_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NULLIF($8, ''), $9, $10)
		RETURNING `+versionColumns,
		version.DocumentID, version.VersionNumber, string(version.Status), version.AIApproved, version.ExtractedText,
		version.OriginalFilename, version.OriginalFilePath, version.ChangeSummary, version.CreatedByProfile, version.SubmittedAt)
	inserted, err := scanVersion(row)
	if err != nil {
		return Version{}, wrapWrite("insert version", err)
	}
	return inserted, nil
}

func (s *PostgresStore) GetVersion(ctx context.Context, id int64) (Version, error) {
	return scanVersion(s.q.QueryRowContext(ctx, `SELECT `+versionColumns+` FROM document_versions WHERE id=$1`, id))
}

func (s *PostgresStore) LockVersion(ctx context.Context, id int64) (Version, error) {
	return scanVersion(s.q.QueryRowContext(ctx, `SELECT `+versionColumns+` FROM document_versions WHERE id=$1 FOR UPDATE`, id))
}

func (s *PostgresStore) UpdateVersion(ctx context.Context, v Version) error {
	_, err := s.q.ExecContext(ctx, `
		UPDATE document_versions
		SET status=$2, ai_approved=$3, extracted_text=$4,
			formatted_file_path_docx=NULLIF($5, ''), formatted_file_path_pdf=NULLIF($6, ''),
			published_at=$7, obsolete_at=$8, archived_at=$9
		WHERE id=$1
	`, v.ID, string(v.Status), v.AIApproved, v.ExtractedText, v.FormattedDocxPath, v.FormattedPDFPath,
		v.PublishedAt, v.ObsoleteAt, v.ArchivedAt)
	if err != nil {
		return wrapWrite("update version", err)
	}
	return nil
}

func (s *PostgresStore) ListVersions(ctx context.Context, documentID int64) ([]Version, error) {
	rows, err := s.q.QueryContext(ctx, `SELECT `+versionColumns+` FROM document_versions WHERE document_id=$1 ORDER BY version_number ASC`, documentID)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	items := make([]Version, 0)
	for rows.Next() {
		v, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan version: %w", err)
		}
		items = append(items, v)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate versions: %w", err)
	}
	return items, nil
}

func (s *PostgresStore) GetVersionByNumber(ctx context.Context, documentID int64, number int) (Version, error) {
	return scanVersion(s.q.QueryRowContext(ctx,
		`SELECT `+versionColumns+` FROM document_versions WHERE document_id=$1 AND version_number=$2`, documentID, number))
}

func pageBounds(page, limit int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if limit > 200 {
		limit = 200
	}
	if page <= 0 {
		page = 1
	}
	return limit, (page - 1) * limit
}
