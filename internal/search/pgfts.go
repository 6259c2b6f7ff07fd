package search

import (
	"context"
	"fmt"
	"strings"

	"doccontrol/api/internal/store"
)

// Source is the slice of the repository the relational fallback reads.
type Source interface {
	SearchDocuments(ctx context.Context, query string, limit int) ([]store.Document, error)
	ListDocuments(ctx context.Context, filter store.DocumentFilter) ([]store.Document, int, error)
	ListMasterList(ctx context.Context, filter store.MasterListFilter) ([]store.MasterListRow, int, error)
}

// PgFTS implements Searcher on top of Postgres full-text search.
type PgFTS struct {
	source Source
}

func NewPgFTS(source Source) *PgFTS {
	return &PgFTS{source: source}
}

// Healthy always returns true. If Postgres is down, the whole app is down.
func (p *PgFTS) Healthy() bool {
	return true
}

func (p *PgFTS) Search(ctx context.Context, q Query) ([]Result, int, error) {
	if strings.TrimSpace(q.Text) == "" {
		return nil, 0, nil
	}
	limit := q.Limit
	if limit <= 0 {
		limit = 20
	}
	offset := q.Offset
	if offset < 0 {
		offset = 0
	}

	docs, err := p.source.SearchDocuments(ctx, q.Text, limit+offset)
	if err != nil {
		return nil, 0, fmt.Errorf("pgfts search: %w", err)
	}

	results := make([]Result, 0, len(docs))
	for _, doc := range docs {
		if q.DocumentType != "" && string(doc.DocumentType) != q.DocumentType {
			continue
		}
		if q.Status != "" && string(doc.Status) != q.Status {
			continue
		}
		results = append(results, Result{
			ID:           doc.ID,
			Code:         doc.Code,
			Title:        doc.Title,
			DocumentType: string(doc.DocumentType),
			Status:       string(doc.Status),
		})
	}
	total := len(results)
	if offset >= len(results) {
		return []Result{}, total, nil
	}
	return results[offset:], total, nil
}

// LoadAllRecords returns every document for a full reindex, tagged with its
// active master-list code when it has one.
func (p *PgFTS) LoadAllRecords(ctx context.Context) ([]DocumentRecord, error) {
	codes := make(map[int64]string)
	for page := 1; ; page++ {
		rows, total, err := p.source.ListMasterList(ctx, store.MasterListFilter{Page: page, Limit: 200})
		if err != nil {
			return nil, fmt.Errorf("load master list: %w", err)
		}
		for _, row := range rows {
			codes[row.DocumentID] = row.MasterListCode
		}
		if len(rows) == 0 || page*200 >= total {
			break
		}
	}

	records := make([]DocumentRecord, 0)
	for page := 1; ; page++ {
		docs, total, err := p.source.ListDocuments(ctx, store.DocumentFilter{Page: page, Limit: 200})
		if err != nil {
			return nil, fmt.Errorf("load documents: %w", err)
		}
		for _, doc := range docs {
			records = append(records, RecordFor(doc, codes[doc.ID]))
		}
		if len(docs) == 0 || page*200 >= total {
			break
		}
	}
	return records, nil
}

// RecordFor builds the index record of a document.
func RecordFor(doc store.Document, masterListCode string) DocumentRecord {
	return DocumentRecord{
		ID:             doc.ID,
		Code:           doc.Code,
		Title:          doc.Title,
		DocumentType:   string(doc.DocumentType),
		Status:         string(doc.Status),
		Sector:         doc.Sector,
		MasterListCode: masterListCode,
	}
}
