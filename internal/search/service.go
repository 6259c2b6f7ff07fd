package search

import (
	"context"

	"doccontrol/api/internal/logger"
)

// Service is the facade that tries Meilisearch first and falls back to PG FTS.
type Service struct {
	meili *Meili
	pgfts *PgFTS
	log   *logger.Logger
}

// NewService creates a search service. meili may be nil if Meilisearch is not configured.
func NewService(meili *Meili, pgfts *PgFTS, log *logger.Logger) *Service {
	return &Service{meili: meili, pgfts: pgfts, log: log.With("component", "search")}
}

// Search tries Meilisearch if healthy, otherwise falls back to PG FTS.
func (s *Service) Search(ctx context.Context, q Query) Response {
	if s.meili != nil && s.meili.Healthy() {
		results, total, err := s.meili.Search(ctx, q)
		if err == nil {
			return Response{Results: nonNil(results), Total: total, Query: q.Text, Source: "meilisearch"}
		}
		s.log.Warn("meilisearch error, falling back to postgres", "error", err)
	}

	results, total, err := s.pgfts.Search(ctx, q)
	if err != nil {
		s.log.Error("postgres search failed", "error", err)
		return Response{Results: []Result{}, Total: 0, Query: q.Text, Source: "postgres"}
	}
	return Response{Results: nonNil(results), Total: total, Query: q.Text, Source: "postgres"}
}

// IndexDocument indexes a document (fire-and-forget to Meilisearch).
func (s *Service) IndexDocument(doc DocumentRecord) {
	if s.meili == nil || !s.meili.Healthy() {
		return
	}
	go func() {
		if err := s.meili.IndexDocuments([]DocumentRecord{doc}); err != nil {
			s.log.Warn("index document", "code", doc.Code, "error", err)
		}
	}()
}

// ReindexAllFromPG pushes every document from Postgres into Meilisearch.
func (s *Service) ReindexAllFromPG(ctx context.Context) {
	if s.meili == nil || !s.meili.Healthy() || s.pgfts == nil {
		return
	}
	records, err := s.pgfts.LoadAllRecords(ctx)
	if err != nil {
		s.log.Error("reindex load failed", "error", err)
		return
	}
	if err := s.meili.IndexDocuments(records); err != nil {
		s.log.Error("reindex documents", "error", err)
		return
	}
	s.log.Info("reindexed documents", "count", len(records))
}

func nonNil(r []Result) []Result {
	if r == nil {
		return []Result{}
	}
	return r
}
