package app

import (
	"context"
	"database/sql"
	"sort"
	"strings"
	"sync"
	"time"

	"doccontrol/api/internal/lifecycle"
	"doccontrol/api/internal/store"
)

type fakeData struct {
	nextID        int64
	documents     map[int64]store.Document
	versions      map[int64]store.Version
	reviews       map[int64]store.TextReview
	chains        map[int64]store.ApprovalChain
	approvers     map[int64]store.Approver
	defaults      map[int64]store.DefaultApprover
	masterList    map[int64]store.MasterListEntry
	analyses      []store.AIAnalysis
	changelogs    []store.Changelog
	usage         []store.AIUsage
	distributions map[int64]store.Distribution
}

func newFakeData() fakeData {
	return fakeData{
		documents:     map[int64]store.Document{},
		versions:      map[int64]store.Version{},
		reviews:       map[int64]store.TextReview{},
		chains:        map[int64]store.ApprovalChain{},
		approvers:     map[int64]store.Approver{},
		defaults:      map[int64]store.DefaultApprover{},
		masterList:    map[int64]store.MasterListEntry{},
		distributions: map[int64]store.Distribution{},
	}
}

func cloneMap[K comparable, V any](m map[K]V) map[K]V {
	out := make(map[K]V, len(m))
	for k, v := range m {
		out[k] = v
	}
	return out
}

func (d fakeData) clone() fakeData {
	return fakeData{
		nextID:        d.nextID,
		documents:     cloneMap(d.documents),
		versions:      cloneMap(d.versions),
		reviews:       cloneMap(d.reviews),
		chains:        cloneMap(d.chains),
		approvers:     cloneMap(d.approvers),
		defaults:      cloneMap(d.defaults),
		masterList:    cloneMap(d.masterList),
		analyses:      append([]store.AIAnalysis(nil), d.analyses...),
		changelogs:    append([]store.Changelog(nil), d.changelogs...),
		usage:         append([]store.AIUsage(nil), d.usage...),
		distributions: cloneMap(d.distributions),
	}
}

// fakeStore is an in-memory Repository. WithinTx restores the previous state
// when fn fails.
type fakeStore struct {
	mu   sync.Mutex
	data fakeData
	now  func() time.Time

	pingFn                  func(context.Context) error
	updateVersionFn         func(context.Context, store.Version) error
	lockVersionFn           func(context.Context, int64) error
	insertMasterListEntryFn func(context.Context, store.MasterListEntry) error
	insertChainFn           func(context.Context, store.ApprovalChain) error
	txCount                 int
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		data: newFakeData(),
		now:  func() time.Time { return time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC) },
	}
}

func (f *fakeStore) id() int64 {
	f.data.nextID++
	return f.data.nextID
}

func (f *fakeStore) WithinTx(ctx context.Context, fn func(store.Repository) error) error {
	f.mu.Lock()
	snapshot := f.data.clone()
	f.txCount++
	f.mu.Unlock()

	if err := fn(f); err != nil {
		f.mu.Lock()
		f.data = snapshot
		f.mu.Unlock()
		return err
	}
	return nil
}

func (f *fakeStore) Ping(ctx context.Context) error {
	if f.pingFn != nil {
		return f.pingFn(ctx)
	}
	return nil
}

func (f *fakeStore) InsertDocument(_ context.Context, doc store.Document) (store.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.data.documents {
		if existing.Code == doc.Code {
			return store.Document{}, store.ErrConflict
		}
	}
	doc.ID = f.id()
	doc.CreatedAt = f.now()
	doc.UpdatedAt = doc.CreatedAt
	f.data.documents[doc.ID] = doc
	return doc, nil
}

func (f *fakeStore) GetDocument(_ context.Context, id int64) (store.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.data.documents[id]
	if !ok {
		return store.Document{}, sql.ErrNoRows
	}
	return doc, nil
}

func (f *fakeStore) GetDocumentByCode(_ context.Context, code string) (store.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, doc := range f.data.documents {
		if doc.Code == code {
			return doc, nil
		}
	}
	return store.Document{}, sql.ErrNoRows
}

func (f *fakeStore) LockDocument(ctx context.Context, id int64) (store.Document, error) {
	return f.GetDocument(ctx, id)
}

func (f *fakeStore) UpdateDocument(_ context.Context, doc store.Document) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.data.documents[doc.ID]; !ok {
		return sql.ErrNoRows
	}
	for _, existing := range f.data.documents {
		if existing.ID != doc.ID && existing.Code == doc.Code {
			return store.ErrConflict
		}
	}
	f.data.documents[doc.ID] = doc
	return nil
}

func (f *fakeStore) sortedDocuments() []store.Document {
	docs := make([]store.Document, 0, len(f.data.documents))
	for _, doc := range f.data.documents {
		docs = append(docs, doc)
	}
	sort.Slice(docs, func(i, j int) bool { return docs[i].ID > docs[j].ID })
	return docs
}

func fakePage(page, limit int) (int, int) {
	if limit <= 0 {
		limit = 20
	}
	if page <= 0 {
		page = 1
	}
	return limit, (page - 1) * limit
}

func paginate[T any](items []T, page, limit int) []T {
	limit, offset := fakePage(page, limit)
	if offset >= len(items) {
		return []T{}
	}
	end := offset + limit
	if end > len(items) {
		end = len(items)
	}
	return items[offset:end]
}

func (f *fakeStore) ListDocuments(_ context.Context, filter store.DocumentFilter) ([]store.Document, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var matched []store.Document
	for _, doc := range f.sortedDocuments() {
		if filter.Status != "" && doc.Status != filter.Status {
			continue
		}
		if filter.DocumentType != "" && doc.DocumentType != filter.DocumentType {
			continue
		}
		if filter.Code != "" && !strings.Contains(doc.Code, filter.Code) {
			continue
		}
		matched = append(matched, doc)
	}
	return paginate(matched, filter.Page, filter.Limit), len(matched), nil
}

func (f *fakeStore) SearchDocuments(_ context.Context, query string, limit int) ([]store.Document, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	q := strings.ToLower(query)
	matched := make([]store.Document, 0)
	for _, doc := range f.sortedDocuments() {
		if strings.Contains(strings.ToLower(doc.Code), q) || strings.Contains(strings.ToLower(doc.Title), q) {
			matched = append(matched, doc)
		}
	}
	if limit > 0 && len(matched) > limit {
		matched = matched[:limit]
	}
	return matched, nil
}

func (f *fakeStore) LockDocumentType(context.Context, lifecycle.DocumentType) error { return nil }

func (f *fakeStore) MaxSequentialNumber(_ context.Context, docType lifecycle.DocumentType) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	maxSeq := 0
	for _, doc := range f.data.documents {
		if doc.DocumentType == docType && doc.SequentialNumber > maxSeq {
			maxSeq = doc.SequentialNumber
		}
	}
	return maxSeq, nil
}

func (f *fakeStore) InsertVersion(_ context.Context, v store.Version) (store.Version, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.data.versions {
		if existing.DocumentID == v.DocumentID && existing.VersionNumber == v.VersionNumber {
			return store.Version{}, store.ErrConflict
		}
	}
	v.ID = f.id()
	v.CreatedAt = f.now()
	f.data.versions[v.ID] = v
	return v, nil
}

func (f *fakeStore) GetVersion(_ context.Context, id int64) (store.Version, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.data.versions[id]
	if !ok {
		return store.Version{}, sql.ErrNoRows
	}
	return v, nil
}

func (f *fakeStore) LockVersion(ctx context.Context, id int64) (store.Version, error) {
	if f.lockVersionFn != nil {
		if err := f.lockVersionFn(ctx, id); err != nil {
			return store.Version{}, err
		}
	}
	return f.GetVersion(ctx, id)
}

func (f *fakeStore) UpdateVersion(ctx context.Context, v store.Version) error {
	if f.updateVersionFn != nil {
		if err := f.updateVersionFn(ctx, v); err != nil {
			return err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.data.versions[v.ID]; !ok {
		return sql.ErrNoRows
	}
	f.data.versions[v.ID] = v
	return nil
}

func (f *fakeStore) ListVersions(_ context.Context, documentID int64) ([]store.Version, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := make([]store.Version, 0)
	for _, v := range f.data.versions {
		if v.DocumentID == documentID {
			items = append(items, v)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].VersionNumber < items[j].VersionNumber })
	return items, nil
}

func (f *fakeStore) GetVersionByNumber(_ context.Context, documentID int64, number int) (store.Version, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, v := range f.data.versions {
		if v.DocumentID == documentID && v.VersionNumber == number {
			return v, nil
		}
	}
	return store.Version{}, sql.ErrNoRows
}

func (f *fakeStore) InsertTextReview(_ context.Context, review store.TextReview) (store.TextReview, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.data.reviews {
		if existing.VersionID == review.VersionID && existing.Iteration == review.Iteration {
			return store.TextReview{}, store.ErrConflict
		}
	}
	review.ID = f.id()
	review.CreatedAt = f.now()
	f.data.reviews[review.ID] = review
	return review, nil
}

func (f *fakeStore) reviewsFor(versionID int64) []store.TextReview {
	items := make([]store.TextReview, 0)
	for _, r := range f.data.reviews {
		if r.VersionID == versionID {
			items = append(items, r)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].Iteration < items[j].Iteration })
	return items
}

func (f *fakeStore) LatestTextReview(_ context.Context, versionID int64) (store.TextReview, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := f.reviewsFor(versionID)
	if len(items) == 0 {
		return store.TextReview{}, sql.ErrNoRows
	}
	return items[len(items)-1], nil
}

func (f *fakeStore) ListTextReviews(_ context.Context, versionID int64) ([]store.TextReview, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reviewsFor(versionID), nil
}

func (f *fakeStore) ResolveTextReview(_ context.Context, review store.TextReview) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stored, ok := f.data.reviews[review.ID]
	if !ok || stored.ResolvedAt != nil {
		return false, nil
	}
	stored.UserText = review.UserText
	stored.Status = review.Status
	stored.UserSkippedClarity = review.UserSkippedClarity
	stored.ResolvedAt = review.ResolvedAt
	f.data.reviews[review.ID] = stored
	return true, nil
}

func (f *fakeStore) InsertChain(ctx context.Context, chain store.ApprovalChain) (store.ApprovalChain, error) {
	if f.insertChainFn != nil {
		if err := f.insertChainFn(ctx, chain); err != nil {
			return store.ApprovalChain{}, err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	approvers := chain.Approvers
	chain.ID = f.id()
	chain.CreatedAt = f.now()
	chain.Approvers = nil
	f.data.chains[chain.ID] = chain
	for _, a := range approvers {
		a.ID = f.id()
		a.ChainID = chain.ID
		f.data.approvers[a.ID] = a
	}
	return f.chainWithApprovers(chain), nil
}

func (f *fakeStore) chainWithApprovers(chain store.ApprovalChain) store.ApprovalChain {
	chain.Approvers = make([]store.Approver, 0)
	for _, a := range f.data.approvers {
		if a.ChainID == chain.ID {
			chain.Approvers = append(chain.Approvers, a)
		}
	}
	sort.Slice(chain.Approvers, func(i, j int) bool {
		if chain.Approvers[i].Order != chain.Approvers[j].Order {
			return chain.Approvers[i].Order < chain.Approvers[j].Order
		}
		return chain.Approvers[i].ID < chain.Approvers[j].ID
	})
	return chain
}

func (f *fakeStore) GetChain(_ context.Context, id int64) (store.ApprovalChain, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	chain, ok := f.data.chains[id]
	if !ok {
		return store.ApprovalChain{}, sql.ErrNoRows
	}
	return f.chainWithApprovers(chain), nil
}

func (f *fakeStore) LockChain(ctx context.Context, id int64) (store.ApprovalChain, error) {
	return f.GetChain(ctx, id)
}

func (f *fakeStore) FindActiveChainForVersion(_ context.Context, versionID int64) (*store.ApprovalChain, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var best *store.ApprovalChain
	for _, c := range f.data.chains {
		if c.VersionID != versionID {
			continue
		}
		c := c
		switch {
		case best == nil:
			best = &c
		case (c.Status == lifecycle.ChainPending) != (best.Status == lifecycle.ChainPending):
			if c.Status == lifecycle.ChainPending {
				best = &c
			}
		case c.ID > best.ID:
			best = &c
		}
	}
	if best == nil {
		return nil, nil
	}
	chain := f.chainWithApprovers(*best)
	return &chain, nil
}

func (f *fakeStore) GetApprover(_ context.Context, chainID, approverID int64) (store.Approver, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.data.approvers[approverID]
	if !ok || a.ChainID != chainID {
		return store.Approver{}, sql.ErrNoRows
	}
	return a, nil
}

func (f *fakeStore) RecordApproverAction(_ context.Context, approverID int64, action lifecycle.ApproverAction, comments string, actedAt time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.data.approvers[approverID]
	if !ok || a.Action != nil {
		return false, nil
	}
	a.Action = &action
	a.Comments = comments
	a.ActedAt = &actedAt
	f.data.approvers[approverID] = a
	return true, nil
}

func (f *fakeStore) UpdateChainStatus(_ context.Context, chainID int64, status lifecycle.ChainStatus, completedAt *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	chain, ok := f.data.chains[chainID]
	if !ok {
		return sql.ErrNoRows
	}
	chain.Status = status
	chain.CompletedAt = completedAt
	f.data.chains[chainID] = chain
	return nil
}

func (f *fakeStore) UpdateChainTraining(_ context.Context, chainID int64, requiresTraining *bool) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	chain, ok := f.data.chains[chainID]
	if !ok {
		return false, nil
	}
	chain.RequiresTraining = requiresTraining
	f.data.chains[chainID] = chain
	return true, nil
}

func (f *fakeStore) ListPendingApprovals(context.Context) ([]store.PendingApproval, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := make([]store.PendingApproval, 0)
	for _, c := range f.data.chains {
		if c.Status != lifecycle.ChainPending {
			continue
		}
		v := f.data.versions[c.VersionID]
		doc := f.data.documents[v.DocumentID]
		p := store.PendingApproval{
			ChainID:       c.ID,
			VersionID:     v.ID,
			VersionNumber: v.VersionNumber,
			DocumentID:    doc.ID,
			DocumentCode:  doc.Code,
			DocumentTitle: doc.Title,
			ChainType:     c.ChainType,
			CreatedAt:     c.CreatedAt,
		}
		for _, a := range f.chainWithApprovers(c).Approvers {
			p.TotalApprovers++
			switch {
			case a.Action == nil:
				p.PendingCount++
				if a.IsRequired {
					p.RequiredPending++
				}
			case *a.Action == lifecycle.ActionApprove:
				p.ApprovedCount++
			}
		}
		items = append(items, p)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ChainID < items[j].ChainID })
	return items, nil
}

func (f *fakeStore) ListDefaultApprovers(_ context.Context, docType lifecycle.DocumentType) ([]store.DefaultApprover, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := make([]store.DefaultApprover, 0)
	for _, d := range f.data.defaults {
		if docType != "" && (!d.IsDefault || (d.DocumentType != nil && *d.DocumentType != docType)) {
			continue
		}
		items = append(items, d)
	}
	sort.Slice(items, func(i, j int) bool {
		if items[i].Order != items[j].Order {
			return items[i].Order < items[j].Order
		}
		return items[i].ID < items[j].ID
	})
	return items, nil
}

func (f *fakeStore) InsertDefaultApprover(_ context.Context, item store.DefaultApprover) (store.DefaultApprover, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item.ID = f.id()
	f.data.defaults[item.ID] = item
	return item, nil
}

func (f *fakeStore) UpdateDefaultApprover(_ context.Context, item store.DefaultApprover) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.data.defaults[item.ID]; !ok {
		return false, nil
	}
	f.data.defaults[item.ID] = item
	return true, nil
}

func (f *fakeStore) DeleteDefaultApprover(_ context.Context, id int64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.data.defaults[id]; !ok {
		return false, nil
	}
	delete(f.data.defaults, id)
	return true, nil
}

func (f *fakeStore) LockMasterList(context.Context) error { return nil }

func (f *fakeStore) GetMasterListEntryByDocument(_ context.Context, documentID int64) (*store.MasterListEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.data.masterList {
		if e.DocumentID == documentID {
			e := e
			return &e, nil
		}
	}
	return nil, nil
}

func (f *fakeStore) CountAllMasterListEntries(context.Context) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.data.masterList), nil
}

func (f *fakeStore) InsertMasterListEntry(ctx context.Context, entry store.MasterListEntry) (store.MasterListEntry, error) {
	if f.insertMasterListEntryFn != nil {
		if err := f.insertMasterListEntryFn(ctx, entry); err != nil {
			return store.MasterListEntry{}, err
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, e := range f.data.masterList {
		if e.DocumentID == entry.DocumentID || e.MasterListCode == entry.MasterListCode {
			return store.MasterListEntry{}, store.ErrConflict
		}
	}
	entry.ID = f.id()
	entry.AddedAt = f.now()
	f.data.masterList[entry.ID] = entry
	return entry, nil
}

func (f *fakeStore) SetMasterListRemovedAt(_ context.Context, entryID int64, removedAt *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.data.masterList[entryID]
	if !ok {
		return sql.ErrNoRows
	}
	e.RemovedAt = removedAt
	f.data.masterList[entryID] = e
	return nil
}

func (f *fakeStore) ListMasterList(_ context.Context, filter store.MasterListFilter) ([]store.MasterListRow, int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	search := strings.ToLower(filter.Search)
	rows := make([]store.MasterListRow, 0)
	for _, e := range f.data.masterList {
		if !filter.IncludeAll && e.RemovedAt != nil {
			continue
		}
		doc := f.data.documents[e.DocumentID]
		if filter.DocumentType != "" && doc.DocumentType != filter.DocumentType {
			continue
		}
		if filter.Status != "" && doc.Status != filter.Status {
			continue
		}
		if search != "" && !strings.Contains(strings.ToLower(doc.Code+" "+doc.Title+" "+e.MasterListCode), search) {
			continue
		}
		rows = append(rows, store.MasterListRow{
			MasterListEntry: e,
			DocumentCode:    doc.Code,
			Title:           doc.Title,
			DocumentType:    doc.DocumentType,
			Status:          doc.Status,
			Sector:          doc.Sector,
			CurrentVersion:  doc.CurrentVersion,
			EffectiveDate:   doc.EffectiveDate,
		})
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].MasterListCode < rows[j].MasterListCode })
	return paginate(rows, filter.Page, filter.Limit), len(rows), nil
}

func (f *fakeStore) MasterListStats(context.Context) (store.MasterListStats, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	stats := store.MasterListStats{TotalByType: map[lifecycle.DocumentType]int{}}
	for _, e := range f.data.masterList {
		if e.RemovedAt != nil {
			continue
		}
		if stats.LatestUpdate == nil || e.AddedAt.After(*stats.LatestUpdate) {
			added := e.AddedAt
			stats.LatestUpdate = &added
		}
		stats.TotalActive++
		stats.TotalByType[f.data.documents[e.DocumentID].DocumentType]++
	}
	return stats, nil
}

func (f *fakeStore) InsertAnalysis(_ context.Context, analysis store.AIAnalysis) (store.AIAnalysis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	analysis.ID = f.id()
	analysis.CreatedAt = f.now()
	f.data.analyses = append(f.data.analyses, analysis)
	return analysis, nil
}

func (f *fakeStore) ListAnalyses(_ context.Context, versionID int64) ([]store.AIAnalysis, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := make([]store.AIAnalysis, 0)
	for _, a := range f.data.analyses {
		if a.VersionID == versionID {
			items = append(items, a)
		}
	}
	return items, nil
}

func (f *fakeStore) InsertChangelog(_ context.Context, changelog store.Changelog) (store.Changelog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	changelog.ID = f.id()
	changelog.CreatedAt = f.now()
	f.data.changelogs = append(f.data.changelogs, changelog)
	return changelog, nil
}

func (f *fakeStore) LatestChangelog(_ context.Context, versionID int64) (store.Changelog, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i := len(f.data.changelogs) - 1; i >= 0; i-- {
		if f.data.changelogs[i].VersionID == versionID {
			return f.data.changelogs[i], nil
		}
	}
	return store.Changelog{}, sql.ErrNoRows
}

func (f *fakeStore) InsertAIUsage(_ context.Context, usage store.AIUsage) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	usage.ID = f.id()
	f.data.usage = append(f.data.usage, usage)
	return nil
}

func (f *fakeStore) InsertDistribution(_ context.Context, item store.Distribution) (store.Distribution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	item.ID = f.id()
	item.CreatedAt = f.now()
	f.data.distributions[item.ID] = item
	return item, nil
}

func (f *fakeStore) ListDistributions(_ context.Context, documentID int64) ([]store.Distribution, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	items := make([]store.Distribution, 0)
	for _, d := range f.data.distributions {
		if d.DocumentID == documentID {
			items = append(items, d)
		}
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })
	return items, nil
}

func (f *fakeStore) MarkDistributionsNotified(_ context.Context, ids []int64, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, id := range ids {
		if d, ok := f.data.distributions[id]; ok {
			d.NotifiedAt = &at
			f.data.distributions[id] = d
		}
	}
	return nil
}

func (f *fakeStore) AcknowledgeDistribution(_ context.Context, documentID, id int64, at time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	d, ok := f.data.distributions[id]
	if !ok || d.DocumentID != documentID || d.AcknowledgedAt != nil {
		return false, nil
	}
	d.AcknowledgedAt = &at
	f.data.distributions[id] = d
	return true, nil
}

// versionsOf returns the versions of a document ordered by number.
func (f *fakeStore) versionsOf(documentID int64) []store.Version {
	items, _ := f.ListVersions(context.Background(), documentID)
	return items
}
