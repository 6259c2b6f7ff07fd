package app

import (
	"bytes"
	"context"
	"database/sql"
	"errors"
	"mime"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"doccontrol/api/internal/blob"
	"doccontrol/api/internal/email"
	"doccontrol/api/internal/lifecycle"
	"doccontrol/api/internal/search"
	"doccontrol/api/internal/store"
)

// UploadInput is a new controlled document with its original file.
type UploadInput struct {
	DocumentType  string            `json:"document_type"`
	Title         string            `json:"title"`
	Sector        string            `json:"sector"`
	ExtractedText *string           `json:"extracted_text"`
	Filename      string            `json:"-"`
	ContentType   string            `json:"-"`
	Content       []byte            `json:"-"`
	Profile       lifecycle.Profile `json:"-"`
}

// ResubmitInput is a new revision of an existing document.
type ResubmitInput struct {
	ChangeSummary string            `json:"change_summary"`
	ExtractedText *string           `json:"extracted_text"`
	Filename      string            `json:"-"`
	ContentType   string            `json:"-"`
	Content       []byte            `json:"-"`
	Profile       lifecycle.Profile `json:"-"`
}

type SubmissionResult struct {
	Document store.Document `json:"document"`
	Version  store.Version  `json:"version"`
	JobID    string         `json:"job_id,omitempty"`
}

type DocumentDetail struct {
	Document   store.Document         `json:"document"`
	Versions   []store.Version        `json:"versions"`
	MasterList *store.MasterListEntry `json:"master_list,omitempty"`
}

type DocumentPage struct {
	Items []store.Document `json:"items"`
	Total int              `json:"total"`
	Page  int              `json:"page"`
	Limit int              `json:"limit"`
}

func parseDocumentType(raw string) (lifecycle.DocumentType, error) {
	t := lifecycle.DocumentType(strings.ToUpper(strings.TrimSpace(raw)))
	if !t.Valid() {
		return "", validationError("document_type must be one of PQ, IT, RQ")
	}
	return t, nil
}

// extractText returns the text supplied with the upload or, for plain-text
// files, the file body. Binary formats yield no text.
func extractText(explicit *string, filename, contentType string, content []byte) string {
	if explicit != nil {
		return strings.TrimSpace(*explicit)
	}
	ext := strings.ToLower(filepath.Ext(filename))
	mediaType, _, _ := mime.ParseMediaType(contentType)
	if strings.HasPrefix(mediaType, "text/") || ext == ".txt" || ext == ".md" {
		return strings.TrimSpace(string(content))
	}
	return ""
}

func (s *Service) storeOriginal(ctx context.Context, filename, contentType string, content []byte) (string, error) {
	key := blob.Key("uploads", uuid.NewString(), filepath.Base(filename))
	return s.putBlob(ctx, key, bytes.NewReader(content), int64(len(content)), contentType)
}

// NextCode previews the code the next upload of the given type would get.
func (s *Service) NextCode(ctx context.Context, rawType string) (map[string]any, error) {
	docType, err := parseDocumentType(rawType)
	if err != nil {
		return nil, err
	}
	maxSeq, err := s.store.MaxSequentialNumber(ctx, docType)
	if err != nil {
		return nil, err
	}
	return map[string]any{
		"document_type":     docType,
		"sequential_number": maxSeq + 1,
		"code":              lifecycle.FormatCode(docType, maxSeq+1, 0),
	}, nil
}

func (s *Service) Upload(ctx context.Context, input UploadInput) (SubmissionResult, error) {
	docType, err := parseDocumentType(input.DocumentType)
	if err != nil {
		return SubmissionResult{}, err
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return SubmissionResult{}, validationError("title is required")
	}
	if strings.TrimSpace(input.Filename) == "" {
		return SubmissionResult{}, validationError("file is required")
	}

	path, err := s.storeOriginal(ctx, input.Filename, input.ContentType, input.Content)
	if err != nil {
		return SubmissionResult{}, err
	}
	text := extractText(input.ExtractedText, input.Filename, input.ContentType, input.Content)

	var result SubmissionResult
	err = s.store.WithinTx(ctx, func(repo store.Repository) error {
		if err := repo.LockDocumentType(ctx, docType); err != nil {
			return err
		}
		maxSeq, err := repo.MaxSequentialNumber(ctx, docType)
		if err != nil {
			return err
		}
		now := s.now()
		doc, err := repo.InsertDocument(ctx, store.Document{
			Code:             lifecycle.FormatCode(docType, maxSeq+1, 0),
			Title:            title,
			DocumentType:     docType,
			SequentialNumber: maxSeq + 1,
			Status:           lifecycle.DocDraft,
			CurrentVersion:   1,
			Sector:           strings.TrimSpace(input.Sector),
			CreatedByProfile: string(input.Profile),
		})
		if err != nil {
			return err
		}
		version, err := repo.InsertVersion(ctx, store.Version{
			DocumentID:       doc.ID,
			VersionNumber:    1,
			Status:           lifecycle.VersionDraft,
			ExtractedText:    text,
			OriginalFilename: filepath.Base(input.Filename),
			OriginalFilePath: path,
			CreatedByProfile: string(input.Profile),
			SubmittedAt:      &now,
		})
		if err != nil {
			return err
		}
		if err := s.moveVersion(&version, lifecycle.VersionAnalyzing); err != nil {
			return err
		}
		doc, err = s.saveVersionAndDocument(ctx, repo, version)
		if err != nil {
			return err
		}
		result = SubmissionResult{Document: doc, Version: version}
		return nil
	})
	if err != nil {
		return SubmissionResult{}, err
	}

	s.log.Info("document uploaded", "code", result.Document.Code, "version_id", result.Version.ID)
	s.archiveText(result.Document, result.Version, string(input.Profile))
	result.JobID = s.enqueueAnalysis(ctx, result.Version.ID)
	s.indexDocument(ctx, result.Document)
	return result, nil
}

func (s *Service) Resubmit(ctx context.Context, code string, input ResubmitInput) (SubmissionResult, error) {
	if strings.TrimSpace(input.Filename) == "" {
		return SubmissionResult{}, validationError("file is required")
	}
	current, err := s.store.GetDocumentByCode(ctx, code)
	if err != nil {
		return SubmissionResult{}, err
	}

	path, err := s.storeOriginal(ctx, input.Filename, input.ContentType, input.Content)
	if err != nil {
		return SubmissionResult{}, err
	}
	text := extractText(input.ExtractedText, input.Filename, input.ContentType, input.Content)

	var result SubmissionResult
	err = s.store.WithinTx(ctx, func(repo store.Repository) error {
		doc, err := repo.LockDocument(ctx, current.ID)
		if err != nil {
			return err
		}
		latest, err := repo.GetVersionByNumber(ctx, doc.ID, doc.CurrentVersion)
		if err != nil {
			return err
		}
		now := s.now()
		if lifecycle.Archivable(latest.Status) {
			if err := s.moveVersion(&latest, lifecycle.VersionArchived); err != nil {
				return err
			}
			if err := repo.UpdateVersion(ctx, latest); err != nil {
				return err
			}
			// A pending chain of the archived version can never resolve.
			chain, err := repo.FindActiveChainForVersion(ctx, latest.ID)
			if err != nil {
				return err
			}
			if chain != nil && chain.Status == lifecycle.ChainPending {
				if err := repo.UpdateChainStatus(ctx, chain.ID, lifecycle.ChainRejected, &now); err != nil {
					return err
				}
				s.log.Info("pending chain closed by resubmission", "chain_id", chain.ID, "version_id", latest.ID)
			}
		}

		doc.RevisionNumber++
		doc.Code = lifecycle.FormatCode(doc.DocumentType, doc.SequentialNumber, doc.RevisionNumber)
		doc.CurrentVersion = latest.VersionNumber + 1
		if err := lifecycle.DocumentTransition(doc.Status, lifecycle.DocAnalyzing); err != nil {
			return transitionError(err)
		}
		doc.Status = lifecycle.DocAnalyzing
		doc.UpdatedAt = now

		version, err := repo.InsertVersion(ctx, store.Version{
			DocumentID:       doc.ID,
			VersionNumber:    doc.CurrentVersion,
			Status:           lifecycle.VersionDraft,
			ExtractedText:    text,
			OriginalFilename: filepath.Base(input.Filename),
			OriginalFilePath: path,
			ChangeSummary:    strings.TrimSpace(input.ChangeSummary),
			CreatedByProfile: string(input.Profile),
			SubmittedAt:      &now,
		})
		if err != nil {
			return err
		}
		if err := s.moveVersion(&version, lifecycle.VersionAnalyzing); err != nil {
			return err
		}
		if err := repo.UpdateVersion(ctx, version); err != nil {
			return err
		}
		if err := repo.UpdateDocument(ctx, doc); err != nil {
			return err
		}
		result = SubmissionResult{Document: doc, Version: version}
		return nil
	})
	if err != nil {
		return SubmissionResult{}, err
	}

	s.log.Info("document resubmitted", "code", result.Document.Code, "version", result.Version.VersionNumber)
	s.archiveText(result.Document, result.Version, string(input.Profile))
	result.JobID = s.enqueueAnalysis(ctx, result.Version.ID)
	s.indexDocument(ctx, result.Document)
	return result, nil
}

// enqueueAnalysis schedules the analysis job. A job that cannot be queued
// leaves the version in analysis_failed so it can be retried.
func (s *Service) enqueueAnalysis(ctx context.Context, versionID int64) string {
	if s.jobs == nil {
		return ""
	}
	job, err := s.jobs.Enqueue(analysisJobKind, versionID)
	if err != nil {
		s.log.Error("enqueue analysis", "version_id", versionID, "error", err)
		s.markAnalysisFailed(context.WithoutCancel(ctx), versionID, err)
		return ""
	}
	return job.ID
}

func (s *Service) RetryAnalysis(ctx context.Context, code string) (SubmissionResult, error) {
	current, err := s.store.GetDocumentByCode(ctx, code)
	if err != nil {
		return SubmissionResult{}, err
	}
	var result SubmissionResult
	err = s.store.WithinTx(ctx, func(repo store.Repository) error {
		version, err := repo.GetVersionByNumber(ctx, current.ID, current.CurrentVersion)
		if err != nil {
			return err
		}
		version, err = repo.LockVersion(ctx, version.ID)
		if err != nil {
			return err
		}
		if !lifecycle.Retryable(version.Status) {
			return invalidState("analysis can only be retried from analysis_failed, draft or analyzing", map[string]any{"status": version.Status})
		}
		if err := s.moveVersion(&version, lifecycle.VersionAnalyzing); err != nil {
			return err
		}
		doc, err := s.saveVersionAndDocument(ctx, repo, version)
		if err != nil {
			return err
		}
		result = SubmissionResult{Document: doc, Version: version}
		return nil
	})
	if err != nil {
		return SubmissionResult{}, err
	}
	result.JobID = s.enqueueAnalysis(ctx, result.Version.ID)
	return result, nil
}

// SkipAI moves a version whose analysis failed straight to review. The AI
// verdict stays unknown.
func (s *Service) SkipAI(ctx context.Context, code string) (SubmissionResult, error) {
	current, err := s.store.GetDocumentByCode(ctx, code)
	if err != nil {
		return SubmissionResult{}, err
	}
	var result SubmissionResult
	err = s.store.WithinTx(ctx, func(repo store.Repository) error {
		version, err := repo.GetVersionByNumber(ctx, current.ID, current.CurrentVersion)
		if err != nil {
			return err
		}
		version, err = repo.LockVersion(ctx, version.ID)
		if err != nil {
			return err
		}
		if version.Status != lifecycle.VersionAnalysisFailed {
			return invalidState("AI review can only be skipped after a failed analysis", map[string]any{"status": version.Status})
		}
		if err := s.moveVersion(&version, lifecycle.VersionInReview); err != nil {
			return err
		}
		version.AIApproved = nil
		doc, err := s.saveVersionAndDocument(ctx, repo, version)
		if err != nil {
			return err
		}
		result = SubmissionResult{Document: doc, Version: version}
		return nil
	})
	if err != nil {
		return SubmissionResult{}, err
	}
	s.log.Warn("ai review skipped", "code", result.Document.Code, "version", result.Version.VersionNumber)
	s.indexDocument(ctx, result.Document)
	return result, nil
}

func (s *Service) ListDocuments(ctx context.Context, filter store.DocumentFilter) (DocumentPage, error) {
	if filter.DocumentType != "" && !filter.DocumentType.Valid() {
		return DocumentPage{}, validationError("invalid document_type filter")
	}
	if filter.Status != "" && !filter.Status.Valid() {
		return DocumentPage{}, validationError("invalid status filter")
	}
	items, total, err := s.store.ListDocuments(ctx, filter)
	if err != nil {
		return DocumentPage{}, err
	}
	page := filter.Page
	if page <= 0 {
		page = 1
	}
	return DocumentPage{Items: items, Total: total, Page: page, Limit: filter.Limit}, nil
}

func (s *Service) SearchDocuments(ctx context.Context, q search.Query) (search.Response, error) {
	if strings.TrimSpace(q.Text) == "" {
		return search.Response{}, validationError("q is required")
	}
	if s.search != nil {
		return s.search.Search(ctx, q), nil
	}
	docs, err := s.store.SearchDocuments(ctx, q.Text, q.Limit)
	if err != nil {
		return search.Response{}, err
	}
	results := make([]search.Result, 0, len(docs))
	for _, doc := range docs {
		results = append(results, search.Result{
			ID:           doc.ID,
			Code:         doc.Code,
			Title:        doc.Title,
			DocumentType: string(doc.DocumentType),
			Status:       string(doc.Status),
		})
	}
	return search.Response{Results: results, Total: len(results), Query: q.Text, Source: "postgres"}, nil
}

func (s *Service) GetDocument(ctx context.Context, code string) (DocumentDetail, error) {
	doc, err := s.store.GetDocumentByCode(ctx, code)
	if err != nil {
		return DocumentDetail{}, err
	}
	versions, err := s.store.ListVersions(ctx, doc.ID)
	if err != nil {
		return DocumentDetail{}, err
	}
	entry, err := s.store.GetMasterListEntryByDocument(ctx, doc.ID)
	if err != nil {
		return DocumentDetail{}, err
	}
	return DocumentDetail{Document: doc, Versions: versions, MasterList: entry}, nil
}

func (s *Service) GetVersion(ctx context.Context, code string, number int) (store.Version, error) {
	doc, err := s.store.GetDocumentByCode(ctx, code)
	if err != nil {
		return store.Version{}, err
	}
	return s.store.GetVersionByNumber(ctx, doc.ID, number)
}

type DistributionInput struct {
	RecipientName  string `json:"recipient_name"`
	RecipientRole  string `json:"recipient_role"`
	RecipientEmail string `json:"recipient_email"`
}

func (s *Service) AddDistribution(ctx context.Context, code string, input DistributionInput) (store.Distribution, error) {
	name := strings.TrimSpace(input.RecipientName)
	if name == "" {
		return store.Distribution{}, validationError("recipient_name is required")
	}
	doc, err := s.store.GetDocumentByCode(ctx, code)
	if err != nil {
		return store.Distribution{}, err
	}
	return s.store.InsertDistribution(ctx, store.Distribution{
		DocumentID:     doc.ID,
		RecipientName:  name,
		RecipientRole:  strings.TrimSpace(input.RecipientRole),
		RecipientEmail: strings.TrimSpace(input.RecipientEmail),
	})
}

func (s *Service) ListDistribution(ctx context.Context, code string) ([]store.Distribution, error) {
	doc, err := s.store.GetDocumentByCode(ctx, code)
	if err != nil {
		return nil, err
	}
	return s.store.ListDistributions(ctx, doc.ID)
}

func (s *Service) AcknowledgeDistribution(ctx context.Context, code string, id int64) error {
	doc, err := s.store.GetDocumentByCode(ctx, code)
	if err != nil {
		return err
	}
	ok, err := s.store.AcknowledgeDistribution(ctx, doc.ID, id, s.now())
	if err != nil {
		return err
	}
	if !ok {
		return notFound("distribution not found or already acknowledged")
	}
	return nil
}

// PublishResult reports the version put in force and the versions it
// superseded.
type PublishResult struct {
	Document   store.Document        `json:"document"`
	Version    store.Version         `json:"version"`
	Obsoleted  []int64               `json:"obsoleted_version_ids"`
	MasterList store.MasterListEntry `json:"master_list"`
}

// Publish puts a version in force. Without an explicit id the latest approved
// version is used. Any previously published version becomes obsolete in the
// same transaction.
func (s *Service) Publish(ctx context.Context, code string, versionID *int64) (PublishResult, error) {
	current, err := s.store.GetDocumentByCode(ctx, code)
	if err != nil {
		return PublishResult{}, err
	}

	var result PublishResult
	err = s.store.WithinTx(ctx, func(repo store.Repository) error {
		doc, err := repo.LockDocument(ctx, current.ID)
		if err != nil {
			return err
		}
		versions, err := repo.ListVersions(ctx, doc.ID)
		if err != nil {
			return err
		}

		var target store.Version
		if versionID != nil {
			target, err = repo.LockVersion(ctx, *versionID)
			if err != nil {
				return err
			}
			if target.DocumentID != doc.ID {
				return notFound("version does not belong to document")
			}
			if target.Status == lifecycle.VersionPublished {
				return invalidState("version is already published", map[string]any{"version_id": target.ID})
			}
			if target.Status != lifecycle.VersionApproved {
				s.log.Warn("publishing version that is not approved", "code", doc.Code, "version_id", target.ID, "status", target.Status)
			}
		} else {
			found := false
			for _, v := range versions {
				if v.Status == lifecycle.VersionApproved && (!found || v.VersionNumber > target.VersionNumber) {
					target, found = v, true
				}
			}
			if !found {
				return invalidState("no approved version to publish", nil)
			}
			if target, err = repo.LockVersion(ctx, target.ID); err != nil {
				return err
			}
		}

		now := s.now()
		var obsoleted []int64
		for _, v := range versions {
			if v.ID == target.ID || v.Status != lifecycle.VersionPublished {
				continue
			}
			if err := s.moveVersion(&v, lifecycle.VersionObsolete); err != nil {
				return err
			}
			if err := repo.UpdateVersion(ctx, v); err != nil {
				return err
			}
			obsoleted = append(obsoleted, v.ID)
		}

		target.Status = lifecycle.VersionPublished
		target.PublishedAt = &now
		if err := repo.UpdateVersion(ctx, target); err != nil {
			return err
		}

		doc.Status = lifecycle.DocActive
		doc.EffectiveDate = &now
		doc.UpdatedAt = now
		if err := repo.UpdateDocument(ctx, doc); err != nil {
			return err
		}

		entry, err := s.addToMasterList(ctx, repo, doc)
		if err != nil {
			return err
		}
		result = PublishResult{Document: doc, Version: target, Obsoleted: obsoleted, MasterList: entry}
		return nil
	})
	if err != nil {
		if errors.Is(err, store.ErrConflict) {
			return PublishResult{}, invalidState("document was published concurrently", nil)
		}
		return PublishResult{}, err
	}
	if result.Obsoleted == nil {
		result.Obsoleted = []int64{}
	}

	s.log.Info("document published", "code", result.Document.Code, "version", result.Version.VersionNumber, "obsoleted", len(result.Obsoleted))
	s.notifyDistribution(context.WithoutCancel(ctx), result.Document, result.Version)
	s.indexDocument(ctx, result.Document)
	return result, nil
}

func (s *Service) notifyDistribution(ctx context.Context, doc store.Document, v store.Version) {
	if s.notifier == nil {
		return
	}
	recipients, err := s.store.ListDistributions(ctx, doc.ID)
	if err != nil {
		s.log.Warn("load distribution list", "code", doc.Code, "error", err)
		return
	}
	effective := ""
	if doc.EffectiveDate != nil {
		effective = doc.EffectiveDate.Format("02/01/2006")
	}
	var notified []int64
	for _, r := range recipients {
		if r.RecipientEmail == "" {
			continue
		}
		err := s.notifier.SendPublicationNotice(emailPublicationNotice(r, doc, v, effective))
		if err != nil {
			s.log.Warn("publication notice not sent", "code", doc.Code, "recipient", r.RecipientEmail, "error", err)
			continue
		}
		notified = append(notified, r.ID)
	}
	if len(notified) == 0 {
		return
	}
	if err := s.store.MarkDistributionsNotified(ctx, notified, s.now()); err != nil {
		s.log.Warn("mark distribution notified", "code", doc.Code, "error", err)
	}
}

// ownedVersion loads a version by id and its document.
func (s *Service) ownedVersion(ctx context.Context, versionID int64) (store.Version, store.Document, error) {
	version, err := s.store.GetVersion(ctx, versionID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return store.Version{}, store.Document{}, notFound("version not found")
		}
		return store.Version{}, store.Document{}, err
	}
	doc, err := s.store.GetDocument(ctx, version.DocumentID)
	if err != nil {
		return store.Version{}, store.Document{}, err
	}
	return version, doc, nil
}

func emailPublicationNotice(r store.Distribution, doc store.Document, v store.Version, effective string) email.PublicationNotice {
	return email.PublicationNotice{
		To:            r.RecipientEmail,
		RecipientName: r.RecipientName,
		DocumentCode:  doc.Code,
		DocumentTitle: doc.Title,
		VersionNumber: v.VersionNumber,
		EffectiveDate: effective,
	}
}
