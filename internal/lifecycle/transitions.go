package lifecycle

import "fmt"

// TransitionError reports a status change that the table does not allow.
type TransitionError struct {
	Entity string
	From   string
	To     string
}

func (e *TransitionError) Error() string {
	return fmt.Sprintf("%s cannot move from %q to %q", e.Entity, e.From, e.To)
}

var versionTransitions = map[VersionStatus][]VersionStatus{
	VersionDraft:            {VersionAnalyzing, VersionArchived},
	VersionAnalyzing:        {VersionAnalyzing, VersionAnalysisFailed, VersionSpellingReview, VersionInReview, VersionArchived},
	VersionAnalysisFailed:   {VersionAnalyzing, VersionInReview, VersionArchived},
	VersionSpellingReview:   {VersionSpellingReview, VersionInReview, VersionArchived},
	VersionInReview:         {VersionInReview, VersionFormatting, VersionApproved, VersionRejected, VersionArchived},
	VersionFormatting:       {VersionInReview, VersionFormattingFailed, VersionArchived},
	VersionFormattingFailed: {VersionFormatting, VersionInReview, VersionArchived},
	VersionApproved:         {VersionPublished, VersionArchived},
	VersionPublished:        {VersionObsolete},
	VersionRejected:         nil,
	VersionObsolete:         nil,
	VersionArchived:         nil,
}

var documentTransitions = map[DocumentStatus][]DocumentStatus{
	DocDraft:          {DocAnalyzing},
	DocAnalyzing:      {DocAnalyzing, DocAnalysisFailed, DocSpellingReview, DocInReview},
	DocAnalysisFailed: {DocAnalyzing, DocInReview},
	DocSpellingReview: {DocSpellingReview, DocInReview, DocAnalyzing},
	DocInReview:       {DocInReview, DocAnalyzing, DocRejected, DocActive},
	DocActive:         {DocActive, DocAnalyzing, DocAnalysisFailed},
	DocRejected:       {DocAnalyzing},
}

// VersionTransition validates a version status change.
func VersionTransition(from, to VersionStatus) error {
	for _, next := range versionTransitions[from] {
		if next == to {
			return nil
		}
	}
	return &TransitionError{Entity: "version", From: string(from), To: string(to)}
}

// DocumentTransition validates a document status change. Re-entering the
// current status is always allowed.
func DocumentTransition(from, to DocumentStatus) error {
	if from == to {
		return nil
	}
	for _, next := range documentTransitions[from] {
		if next == to {
			return nil
		}
	}
	return &TransitionError{Entity: "document", From: string(from), To: string(to)}
}

// DocumentStatusFor is the document status mirrored from the status of its
// working version.
func DocumentStatusFor(v VersionStatus) DocumentStatus {
	switch v {
	case VersionDraft:
		return DocDraft
	case VersionAnalyzing:
		return DocAnalyzing
	case VersionAnalysisFailed:
		return DocAnalysisFailed
	case VersionSpellingReview:
		return DocSpellingReview
	case VersionPublished:
		return DocActive
	case VersionRejected:
		return DocRejected
	default:
		return DocInReview
	}
}

// Retryable reports whether analysis may be restarted from s.
func Retryable(s VersionStatus) bool {
	return s == VersionAnalysisFailed || s == VersionDraft || s == VersionAnalyzing
}

// Archivable reports whether a resubmission should archive a version in s.
// Published versions stay in force until the next publication demotes them.
func Archivable(s VersionStatus) bool {
	switch s {
	case VersionArchived, VersionRejected, VersionPublished, VersionObsolete:
		return false
	}
	return true
}

// ChainOpenable reports whether an approval chain may be started for a
// version in s.
func ChainOpenable(s VersionStatus) bool {
	return s == VersionInReview || s == VersionFormattingFailed
}

// Formattable reports whether the formatting run may start from s.
func Formattable(s VersionStatus) bool {
	return s == VersionInReview || s == VersionFormattingFailed
}
