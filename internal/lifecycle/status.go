// Package lifecycle holds the typed statuses of controlled documents and the
// transition table that governs them.
package lifecycle

type DocumentType string

const (
	TypePQ DocumentType = "PQ" // procedimento da qualidade
	TypeIT DocumentType = "IT" // instrução de trabalho
	TypeRQ DocumentType = "RQ" // registro da qualidade
)

func (t DocumentType) Valid() bool {
	switch t {
	case TypePQ, TypeIT, TypeRQ:
		return true
	}
	return false
}

type DocumentStatus string

const (
	DocDraft          DocumentStatus = "draft"
	DocAnalyzing      DocumentStatus = "analyzing"
	DocAnalysisFailed DocumentStatus = "analysis_failed"
	DocSpellingReview DocumentStatus = "spelling_review"
	DocInReview       DocumentStatus = "in_review"
	DocActive         DocumentStatus = "active"
	DocRejected       DocumentStatus = "rejected"
)

func (s DocumentStatus) Valid() bool {
	switch s {
	case DocDraft, DocAnalyzing, DocAnalysisFailed, DocSpellingReview, DocInReview, DocActive, DocRejected:
		return true
	}
	return false
}

type VersionStatus string

const (
	VersionDraft            VersionStatus = "draft"
	VersionAnalyzing        VersionStatus = "analyzing"
	VersionAnalysisFailed   VersionStatus = "analysis_failed"
	VersionSpellingReview   VersionStatus = "spelling_review"
	VersionInReview         VersionStatus = "in_review"
	VersionFormatting       VersionStatus = "formatting"
	VersionFormattingFailed VersionStatus = "formatting_failed"
	VersionApproved         VersionStatus = "approved"
	VersionRejected         VersionStatus = "rejected"
	VersionPublished        VersionStatus = "published"
	VersionObsolete         VersionStatus = "obsolete"
	VersionArchived         VersionStatus = "archived"
)

func (s VersionStatus) Valid() bool {
	_, ok := versionTransitions[s]
	return ok
}

// Terminal reports whether no further transition can leave s.
func (s VersionStatus) Terminal() bool {
	return len(versionTransitions[s]) == 0
}

type ReviewStatus string

const (
	ReviewPending      ReviewStatus = "pending"
	ReviewReviewed     ReviewStatus = "reviewed"
	ReviewUserAccepted ReviewStatus = "user_accepted"
	ReviewUserEdited   ReviewStatus = "user_edited"
	ReviewClean        ReviewStatus = "clean"
)

type ChainType string

const (
	ChainApproval     ChainType = "A"
	ChainReapproval   ChainType = "Ra"
	ChainCancellation ChainType = "C"
)

func (t ChainType) Valid() bool {
	switch t {
	case ChainApproval, ChainReapproval, ChainCancellation:
		return true
	}
	return false
}

type ChainStatus string

const (
	ChainPending  ChainStatus = "pending"
	ChainApproved ChainStatus = "approved"
	ChainRejected ChainStatus = "rejected"
)

type ApproverAction string

const (
	ActionApprove ApproverAction = "approve"
	ActionReject  ApproverAction = "reject"
)

func (a ApproverAction) Valid() bool {
	return a == ActionApprove || a == ActionReject
}

type Profile string

const (
	ProfileAutor     Profile = "autor"
	ProfileProcessos Profile = "processos"
	ProfileAdmin     Profile = "admin"
)

type EntryType string

const (
	EntryDocument EntryType = "document"
	EntryForm     EntryType = "form"
)

// EntryTypeFor classifies a master-list entry; quality records are forms.
func EntryTypeFor(t DocumentType) EntryType {
	if t == TypeRQ {
		return EntryForm
	}
	return EntryDocument
}
