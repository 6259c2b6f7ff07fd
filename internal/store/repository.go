package store

import (
	"context"
	"errors"
	"time"

	"doccontrol/api/internal/lifecycle"
)

// ErrConflict is returned when a write loses a uniqueness race.
var ErrConflict = errors.New("store: conflicting write")

// Repository is the persistence contract of the document lifecycle. Lookups
// of a single missing row return sql.ErrNoRows.
type Repository interface {
	InsertDocument(ctx context.Context, doc Document) (Document, error)
	GetDocument(ctx context.Context, id int64) (Document, error)
	GetDocumentByCode(ctx context.Context, code string) (Document, error)
	LockDocument(ctx context.Context, id int64) (Document, error)
	UpdateDocument(ctx context.Context, doc Document) error
	ListDocuments(ctx context.Context, filter DocumentFilter) ([]Document, int, error)
	SearchDocuments(ctx context.Context, query string, limit int) ([]Document, error)
	LockDocumentType(ctx context.Context, docType lifecycle.DocumentType) error
	MaxSequentialNumber(ctx context.Context, docType lifecycle.DocumentType) (int, error)

	InsertVersion(ctx context.Context, version Version) (Version, error)
	GetVersion(ctx context.Context, id int64) (Version, error)
	LockVersion(ctx context.Context, id int64) (Version, error)
	UpdateVersion(ctx context.Context, version Version) error
	ListVersions(ctx context.Context, documentID int64) ([]Version, error)
	GetVersionByNumber(ctx context.Context, documentID int64, number int) (Version, error)

	InsertTextReview(ctx context.Context, review TextReview) (TextReview, error)
	LatestTextReview(ctx context.Context, versionID int64) (TextReview, error)
	ListTextReviews(ctx context.Context, versionID int64) ([]TextReview, error)
	ResolveTextReview(ctx context.Context, review TextReview) (bool, error)

	InsertChain(ctx context.Context, chain ApprovalChain) (ApprovalChain, error)
	GetChain(ctx context.Context, id int64) (ApprovalChain, error)
	LockChain(ctx context.Context, id int64) (ApprovalChain, error)
	FindActiveChainForVersion(ctx context.Context, versionID int64) (*ApprovalChain, error)
	GetApprover(ctx context.Context, chainID, approverID int64) (Approver, error)
	RecordApproverAction(ctx context.Context, approverID int64, action lifecycle.ApproverAction, comments string, actedAt time.Time) (bool, error)
	UpdateChainStatus(ctx context.Context, chainID int64, status lifecycle.ChainStatus, completedAt *time.Time) error
	UpdateChainTraining(ctx context.Context, chainID int64, requiresTraining *bool) (bool, error)
	ListPendingApprovals(ctx context.Context) ([]PendingApproval, error)

	ListDefaultApprovers(ctx context.Context, docType lifecycle.DocumentType) ([]DefaultApprover, error)
	InsertDefaultApprover(ctx context.Context, item DefaultApprover) (DefaultApprover, error)
	UpdateDefaultApprover(ctx context.Context, item DefaultApprover) (bool, error)
	DeleteDefaultApprover(ctx context.Context, id int64) (bool, error)

	LockMasterList(ctx context.Context) error
	GetMasterListEntryByDocument(ctx context.Context, documentID int64) (*MasterListEntry, error)
	CountAllMasterListEntries(ctx context.Context) (int, error)
	InsertMasterListEntry(ctx context.Context, entry MasterListEntry) (MasterListEntry, error)
	SetMasterListRemovedAt(ctx context.Context, entryID int64, removedAt *time.Time) error
	ListMasterList(ctx context.Context, filter MasterListFilter) ([]MasterListRow, int, error)
	MasterListStats(ctx context.Context) (MasterListStats, error)

	InsertAnalysis(ctx context.Context, analysis AIAnalysis) (AIAnalysis, error)
	ListAnalyses(ctx context.Context, versionID int64) ([]AIAnalysis, error)
	InsertChangelog(ctx context.Context, changelog Changelog) (Changelog, error)
	LatestChangelog(ctx context.Context, versionID int64) (Changelog, error)
	InsertAIUsage(ctx context.Context, usage AIUsage) error

	InsertDistribution(ctx context.Context, item Distribution) (Distribution, error)
	ListDistributions(ctx context.Context, documentID int64) ([]Distribution, error)
	MarkDistributionsNotified(ctx context.Context, ids []int64, at time.Time) error
	AcknowledgeDistribution(ctx context.Context, documentID, id int64, at time.Time) (bool, error)
}
