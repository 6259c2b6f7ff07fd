// Package search indexes controlled documents in Meilisearch and falls back
// to Postgres full-text search when the index is unavailable.
package search

import "context"

// Result is a single search hit returned to the caller.
type Result struct {
	ID             int64  `json:"id"`
	Code           string `json:"code"`
	Title          string `json:"title"`
	DocumentType   string `json:"document_type"`
	Status         string `json:"status"`
	MasterListCode string `json:"master_list_code,omitempty"`
	Snippet        string `json:"snippet,omitempty"`
}

// Query describes a search request.
type Query struct {
	Text         string
	DocumentType string // empty = all types
	Status       string
	Limit        int
	Offset       int
}

// Response is the envelope returned by the search endpoint.
type Response struct {
	Results []Result `json:"results"`
	Total   int      `json:"total"`
	Query   string   `json:"query"`
	Source  string   `json:"source"`
}

// Searcher can execute a full-text search.
type Searcher interface {
	Search(ctx context.Context, q Query) ([]Result, int, error)
	Healthy() bool
}

// DocumentRecord is the data we index for a document.
type DocumentRecord struct {
	ID             int64  `json:"id"`
	Code           string `json:"code"`
	Title          string `json:"title"`
	DocumentType   string `json:"documentType"`
	Status         string `json:"status"`
	Sector         string `json:"sector"`
	MasterListCode string `json:"masterListCode"`
}
