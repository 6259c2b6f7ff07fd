package app

import (
	"context"
	"errors"
	"strings"

	"doccontrol/api/internal/lifecycle"
	"doccontrol/api/internal/store"
)

type MasterListPage struct {
	Items []store.MasterListRow `json:"items"`
	Total int                   `json:"total"`
	Page  int                   `json:"page"`
	Limit int                   `json:"limit"`
}

// addToMasterList reactivates the document's entry or allocates the next
// ledger code. Codes count every entry ever created so they are never reused.
func (s *Service) addToMasterList(ctx context.Context, repo store.Repository, doc store.Document) (store.MasterListEntry, error) {
	if err := repo.LockMasterList(ctx); err != nil {
		return store.MasterListEntry{}, err
	}
	existing, err := repo.GetMasterListEntryByDocument(ctx, doc.ID)
	if err != nil {
		return store.MasterListEntry{}, err
	}
	if existing != nil {
		if existing.RemovedAt != nil {
			if err := repo.SetMasterListRemovedAt(ctx, existing.ID, nil); err != nil {
				return store.MasterListEntry{}, err
			}
			existing.RemovedAt = nil
		}
		return *existing, nil
	}
	count, err := repo.CountAllMasterListEntries(ctx)
	if err != nil {
		return store.MasterListEntry{}, err
	}
	return repo.InsertMasterListEntry(ctx, store.MasterListEntry{
		DocumentID:     doc.ID,
		MasterListCode: lifecycle.MasterListCode(count + 1),
		EntryType:      lifecycle.EntryTypeFor(doc.DocumentType),
	})
}

func (s *Service) AddToMasterList(ctx context.Context, documentID int64) (store.MasterListEntry, error) {
	var entry store.MasterListEntry
	err := s.store.WithinTx(ctx, func(repo store.Repository) error {
		doc, err := repo.GetDocument(ctx, documentID)
		if err != nil {
			return err
		}
		entry, err = s.addToMasterList(ctx, repo, doc)
		return err
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return store.MasterListEntry{}, invalidState("master list changed concurrently", nil)
		}
		return store.MasterListEntry{}, err
	}
	if doc, err := s.store.GetDocument(ctx, documentID); err == nil {
		s.indexDocument(ctx, doc)
	}
	return entry, nil
}

// RemoveFromMasterList stamps removed_at on the document's entry. A document
// without an entry is left alone.
func (s *Service) RemoveFromMasterList(ctx context.Context, documentID int64) error {
	doc, err := s.store.GetDocument(ctx, documentID)
	if err != nil {
		return err
	}
	err = s.store.WithinTx(ctx, func(repo store.Repository) error {
		entry, err := repo.GetMasterListEntryByDocument(ctx, documentID)
		if err != nil {
			return err
		}
		if entry == nil || entry.RemovedAt != nil {
			return nil
		}
		now := s.now()
		return repo.SetMasterListRemovedAt(ctx, entry.ID, &now)
	})
	if err != nil {
		return err
	}
	s.indexDocument(ctx, doc)
	return nil
}

func (s *Service) ListMasterList(ctx context.Context, filter store.MasterListFilter) (MasterListPage, error) {
	if filter.DocumentType != "" && !filter.DocumentType.Valid() {
		return MasterListPage{}, validationError("invalid document_type filter")
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return MasterListPage{}, validationError("invalid status filter")
	}
	filter.Search = strings.TrimSpace(filter.Search)
	items, total, err := s.store.ListMasterList(ctx, filter)
	if err != nil {
		return MasterListPage{}, err
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	return MasterListPage{Items: items, Total: total, Page: page, Limit: filter.Limit}, nil
}

func (s *Service) MasterListStats(ctx context.Context) (store.MasterListStats, error) {
	return s.store.MasterListStats(ctx)
}
