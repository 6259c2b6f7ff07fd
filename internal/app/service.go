package app

import (
	"context"
	"encoding/json"
	"io"
	"time"

	"doccontrol/api/internal/ai"
	"doccontrol/api/internal/blob"
	"doccontrol/api/internal/email"
	"doccontrol/api/internal/jobs"
	"doccontrol/api/internal/lifecycle"
	"doccontrol/api/internal/logger"
	"doccontrol/api/internal/rbac"
	"doccontrol/api/internal/render"
	"doccontrol/api/internal/search"
	"doccontrol/api/internal/store"
)

type dataStore interface {
	store.Repository
	WithinTx(ctx context.Context, fn func(store.Repository) error) error
	Ping(ctx context.Context) error
}

type renderer interface {
	Render(ctx context.Context, in render.Input) (render.Output, error)
}

type archiver interface {
	Record(documentID int64, versionNumber int, text, author string) (string, error)
	Patch(documentID int64, fromVersion, toVersion int) (string, error)
}

type indexer interface {
	IndexDocument(doc search.DocumentRecord)
	Search(ctx context.Context, q search.Query) search.Response
}

type notifier interface {
	SendApprovalRequest(req email.ApprovalRequest) error
	SendPublicationNotice(notice email.PublicationNotice) error
}

type jobQueue interface {
	Enqueue(kind jobs.Kind, entityID int64) (jobs.Job, error)
}

// Deps are the collaborators of the service. Archive, Search and Notifier
// may be nil.
type Deps struct {
	Store    dataStore
	AI       ai.Gateway
	Blobs    blob.Store
	Renderer renderer
	Archive  archiver
	Search   indexer
	Notifier notifier
	Jobs     jobQueue
	Log      *logger.Logger
}

type Service struct {
	store    dataStore
	ai       ai.Gateway
	blobs    blob.Store
	renderer renderer
	archive  archiver
	search   indexer
	notifier notifier
	jobs     jobQueue
	log      *logger.Logger
	now      func() time.Time
}

func New(deps Deps) *Service {
	log := deps.Log
	if log == nil {
		log = logger.Nop()
	}
	return &Service{
		store:    deps.Store,
		ai:       deps.AI,
		blobs:    deps.Blobs,
		renderer: deps.Renderer,
		archive:  deps.Archive,
		search:   deps.Search,
		notifier: deps.Notifier,
		jobs:     deps.Jobs,
		log:      log.With("component", "app"),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetJobs attaches the queue once the runner has been built around the
// service's own analysis handler.
func (s *Service) SetJobs(queue jobQueue) {
	s.jobs = queue
}

func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

func (s *Service) Can(profile lifecycle.Profile, action rbac.Action) bool {
	return rbac.Can(profile, action)
}

// moveVersion validates and applies a version status change, stamping the
// timestamp that belongs to the target status.
func (s *Service) moveVersion(v *store.Version, to lifecycle.VersionStatus) error {
	if err := lifecycle.VersionTransition(v.Status, to); err != nil {
		return transitionError(err)
	}
	now := s.now()
	switch to {
	case lifecycle.VersionPublished:
		v.PublishedAt = &now
	case lifecycle.VersionObsolete:
		v.ObsoleteAt = &now
	case lifecycle.VersionArchived:
		v.ArchivedAt = &now
	}
	v.Status = to
	return nil
}

// mirrorDocument moves the document to the status that mirrors its working
// version. Versions other than the current one never touch the document.
func mirrorDocument(doc *store.Document, v store.Version) error {
	if v.VersionNumber != doc.CurrentVersion {
		return nil
	}
	next := lifecycle.DocumentStatusFor(v.Status)
	if err := lifecycle.DocumentTransition(doc.Status, next); err != nil {
		return transitionError(err)
	}
	doc.Status = next
	return nil
}

// saveVersionAndDocument persists a version change and its mirrored document
// status in the caller's transaction.
func (s *Service) saveVersionAndDocument(ctx context.Context, repo store.Repository, v store.Version) (store.Document, error) {
	if err := repo.UpdateVersion(ctx, v); err != nil {
		return store.Document{}, err
	}
	doc, err := repo.LockDocument(ctx, v.DocumentID)
	if err != nil {
		return store.Document{}, err
	}
	before := doc.Status
	if err := mirrorDocument(&doc, v); err != nil {
		return store.Document{}, err
	}
	if doc.Status != before {
		doc.UpdatedAt = s.now()
		if err := repo.UpdateDocument(ctx, doc); err != nil {
			return store.Document{}, err
		}
	}
	return doc, nil
}

func (s *Service) recordUsage(ctx context.Context, repo store.Repository, versionID int64, agent ai.Agent, meta ai.Meta) {
	if meta.Source != ai.SourceLive {
		return
	}
	usage := store.AIUsage{
		VersionID: &versionID,
		AgentType: string(agent),
		Model:     meta.Model,
		TokensIn:  meta.Usage.PromptTokens,
		TokensOut: meta.Usage.CompletionTokens,
	}
	if err := repo.InsertAIUsage(ctx, usage); err != nil {
		s.log.Warn("record ai usage", "agent", agent, "version_id", versionID, "error", err)
	}
}

// indexDocument pushes the document to the search index with its active
// master-list code.
func (s *Service) indexDocument(ctx context.Context, doc store.Document) {
	if s.search == nil {
		return
	}
	code := ""
	entry, err := s.store.GetMasterListEntryByDocument(ctx, doc.ID)
	if err != nil {
		s.log.Warn("load master list entry for index", "document_id", doc.ID, "error", err)
	} else if entry != nil && entry.RemovedAt == nil {
		code = entry.MasterListCode
	}
	s.search.IndexDocument(search.RecordFor(doc, code))
}

func (s *Service) archiveText(doc store.Document, v store.Version, author string) {
	if s.archive == nil {
		return
	}
	if _, err := s.archive.Record(doc.ID, v.VersionNumber, v.ExtractedText, author); err != nil {
		s.log.Warn("archive version text", "code", doc.Code, "version", v.VersionNumber, "error", err)
	}
}

func (s *Service) putBlob(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error) {
	if s.blobs == nil {
		return "", nil
	}
	return s.blobs.Put(ctx, key, r, size, contentType)
}

func mustJSON(v any) json.RawMessage {
	raw, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("null")
	}
	return raw
}
