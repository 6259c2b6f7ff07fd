package store

import (
	"context"
	"database/sql"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"doccontrol/api/internal/lifecycle"
)

func openIntegrationStore(t *testing.T) (*PostgresStore, context.Context) {
	t.Helper()
	dsn := strings.TrimSpace(os.Getenv("DOCCONTROL_TEST_DATABASE_URL"))
	if dsn == "" {
		t.Skip("DOCCONTROL_TEST_DATABASE_URL is not set")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	t.Cleanup(cancel)

	db, err := Open(ctx, dsn)
	if err != nil {
		t.Fatalf("open postgres: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	if err := resetPublicSchema(ctx, db); err != nil {
		t.Fatalf("reset schema: %v", err)
	}
	if _, err := ApplyMigrations(ctx, db, filepath.Join("..", "..", "db", "migrations")); err != nil {
		t.Fatalf("apply migrations: %v", err)
	}
	return NewPostgresStore(db), ctx
}

func insertTestDocument(t *testing.T, ctx context.Context, s *PostgresStore, docType lifecycle.DocumentType, seq int) Document {
	t.Helper()
	doc, err := s.InsertDocument(ctx, Document{
		Code:             lifecycle.FormatCode(docType, seq, 0),
		Title:            "Procedimento de teste",
		DocumentType:     docType,
		SequentialNumber: seq,
		Status:           lifecycle.DocDraft,
		CurrentVersion:   1,
		CreatedByProfile: "autor",
	})
	if err != nil {
		t.Fatalf("insert document: %v", err)
	}
	return doc
}

func TestPostgresStoreDocumentSequenceIsUnique(t *testing.T) {
	s, ctx := openIntegrationStore(t)

	insertTestDocument(t, ctx, s, lifecycle.TypeIT, 1)
	_, err := s.InsertDocument(ctx, Document{
		Code:             "IT-001.99",
		Title:            "dup",
		DocumentType:     lifecycle.TypeIT,
		SequentialNumber: 1,
		Status:           lifecycle.DocDraft,
		CurrentVersion:   1,
		CreatedByProfile: "autor",
	})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected ErrConflict, got %v", err)
	}

	max, err := s.MaxSequentialNumber(ctx, lifecycle.TypeIT)
	if err != nil {
		t.Fatalf("MaxSequentialNumber() error = %v", err)
	}
	if max != 1 {
		t.Fatalf("expected max sequence 1, got %d", max)
	}
}

func TestPostgresStoreWithinTxRollsBack(t *testing.T) {
	s, ctx := openIntegrationStore(t)

	sentinel := errors.New("abort")
	err := s.WithinTx(ctx, func(repo Repository) error {
		if err := repo.LockDocumentType(ctx, lifecycle.TypePQ); err != nil {
			return err
		}
		if _, err := repo.InsertDocument(ctx, Document{
			Code:             "PQ-001.00",
			Title:            "rolled back",
			DocumentType:     lifecycle.TypePQ,
			SequentialNumber: 1,
			Status:           lifecycle.DocDraft,
			CurrentVersion:   1,
			CreatedByProfile: "autor",
		}); err != nil {
			return err
		}
		return sentinel
	})
	if !errors.Is(err, sentinel) {
		t.Fatalf("expected sentinel error, got %v", err)
	}

	if _, err := s.GetDocumentByCode(ctx, "PQ-001.00"); !errors.Is(err, sql.ErrNoRows) {
		t.Fatalf("expected rolled back insert to be absent, got %v", err)
	}
}

func TestPostgresStoreApproverActsOnce(t *testing.T) {
	s, ctx := openIntegrationStore(t)
	doc := insertTestDocument(t, ctx, s, lifecycle.TypePQ, 1)
	version, err := s.InsertVersion(ctx, Version{
		DocumentID:       doc.ID,
		VersionNumber:    1,
		Status:           lifecycle.VersionInReview,
		CreatedByProfile: "autor",
	})
	if err != nil {
		t.Fatalf("insert version: %v", err)
	}

	var chain ApprovalChain
	err = s.WithinTx(ctx, func(repo Repository) error {
		chain, err = repo.InsertChain(ctx, ApprovalChain{
			VersionID: version.ID,
			ChainType: lifecycle.ChainApproval,
			Status:    lifecycle.ChainPending,
			Approvers: []Approver{
				{ApproverName: "Ana", ApproverProfile: lifecycle.ProfileProcessos, Order: 1, ApprovalLevel: 1, IsRequired: true},
				{ApproverName: "Bruno", ApproverProfile: lifecycle.ProfileProcessos, Order: 2, ApprovalLevel: 1, IsRequired: true},
			},
		})
		return err
	})
	if err != nil {
		t.Fatalf("insert chain: %v", err)
	}
	if len(chain.Approvers) != 2 {
		t.Fatalf("expected 2 approvers, got %d", len(chain.Approvers))
	}

	_, err = s.InsertChain(ctx, ApprovalChain{VersionID: version.ID, ChainType: lifecycle.ChainApproval, Status: lifecycle.ChainPending})
	if !errors.Is(err, ErrConflict) {
		t.Fatalf("expected second pending chain to conflict, got %v", err)
	}

	first := chain.Approvers[0].ID
	ok, err := s.RecordApproverAction(ctx, first, lifecycle.ActionApprove, "ok", time.Now().UTC())
	if err != nil || !ok {
		t.Fatalf("expected first action recorded, got ok=%v err=%v", ok, err)
	}
	ok, err = s.RecordApproverAction(ctx, first, lifecycle.ActionReject, "changed my mind", time.Now().UTC())
	if err != nil {
		t.Fatalf("RecordApproverAction() error = %v", err)
	}
	if ok {
		t.Fatal("expected second action to be refused")
	}

	pending, err := s.ListPendingApprovals(ctx)
	if err != nil {
		t.Fatalf("ListPendingApprovals() error = %v", err)
	}
	if len(pending) != 1 || pending[0].ApprovedCount != 1 || pending[0].RequiredPending != 1 {
		t.Fatalf("unexpected pending approvals %+v", pending)
	}
}

func TestPostgresStoreMasterListCodesAreNeverReissued(t *testing.T) {
	s, ctx := openIntegrationStore(t)
	first := insertTestDocument(t, ctx, s, lifecycle.TypePQ, 1)
	second := insertTestDocument(t, ctx, s, lifecycle.TypeRQ, 1)

	add := func(doc Document) MasterListEntry {
		var entry MasterListEntry
		err := s.WithinTx(ctx, func(repo Repository) error {
			if err := repo.LockMasterList(ctx); err != nil {
				return err
			}
			n, err := repo.CountAllMasterListEntries(ctx)
			if err != nil {
				return err
			}
			entry, err = repo.InsertMasterListEntry(ctx, MasterListEntry{
				DocumentID:     doc.ID,
				MasterListCode: lifecycle.MasterListCode(n + 1),
				EntryType:      lifecycle.EntryTypeFor(doc.DocumentType),
			})
			return err
		})
		if err != nil {
			t.Fatalf("add master list entry: %v", err)
		}
		return entry
	}

	a := add(first)
	now := time.Now().UTC()
	if err := s.SetMasterListRemovedAt(ctx, a.ID, &now); err != nil {
		t.Fatalf("remove entry: %v", err)
	}
	b := add(second)
	if a.MasterListCode != "LM-001" || b.MasterListCode != "LM-002" {
		t.Fatalf("unexpected codes %s %s", a.MasterListCode, b.MasterListCode)
	}
	if b.EntryType != lifecycle.EntryForm {
		t.Fatalf("expected RQ entry to be a form, got %s", b.EntryType)
	}

	rows, total, err := s.ListMasterList(ctx, MasterListFilter{})
	if err != nil {
		t.Fatalf("ListMasterList() error = %v", err)
	}
	if total != 1 || len(rows) != 1 || rows[0].MasterListCode != "LM-002" {
		t.Fatalf("expected only the active entry, got total=%d rows=%+v", total, rows)
	}

	stats, err := s.MasterListStats(ctx)
	if err != nil {
		t.Fatalf("MasterListStats() error = %v", err)
	}
	if stats.TotalActive != 1 || stats.TotalByType[lifecycle.TypeRQ] != 1 {
		t.Fatalf("unexpected stats %+v", stats)
	}
	if stats.LatestUpdate == nil || !stats.LatestUpdate.Equal(b.AddedAt) {
		t.Fatalf("expected latest update from the active entry %s, got %v", b.AddedAt, stats.LatestUpdate)
	}
}
