package store

import (
	"encoding/json"
	"time"

	"doccontrol/api/internal/lifecycle"
)

type Document struct {
	ID               int64                    `json:"id"`
	Code             string                   `json:"code"`
	Title            string                   `json:"title"`
	DocumentType     lifecycle.DocumentType   `json:"document_type"`
	SequentialNumber int                      `json:"sequential_number"`
	RevisionNumber   int                      `json:"revision_number"`
	Status           lifecycle.DocumentStatus `json:"status"`
	CurrentVersion   int                      `json:"current_version"`
	Sector           string                   `json:"sector,omitempty"`
	CreatedByProfile string                   `json:"created_by_profile"`
	EffectiveDate    *time.Time               `json:"effective_date,omitempty"`
	CreatedAt        time.Time                `json:"created_at"`
	UpdatedAt        time.Time                `json:"updated_at"`
}

type Version struct {
	ID                int64                   `json:"id"`
	DocumentID        int64                   `json:"document_id"`
	VersionNumber     int                     `json:"version_number"`
	Status            lifecycle.VersionStatus `json:"status"`
	AIApproved        *bool                   `json:"ai_approved"`
	ExtractedText     string                  `json:"extracted_text"`
	OriginalFilename  string                  `json:"original_filename"`
	OriginalFilePath  string                  `json:"original_file_path"`
	FormattedDocxPath string                  `json:"formatted_file_path_docx,omitempty"`
	FormattedPDFPath  string                  `json:"formatted_file_path_pdf,omitempty"`
	ChangeSummary     string                  `json:"change_summary,omitempty"`
	CreatedByProfile  string                  `json:"created_by_profile"`
	SubmittedAt       *time.Time              `json:"submitted_at,omitempty"`
	PublishedAt       *time.Time              `json:"published_at,omitempty"`
	ObsoleteAt        *time.Time              `json:"obsolete_at,omitempty"`
	ArchivedAt        *time.Time              `json:"archived_at,omitempty"`
	CreatedAt         time.Time               `json:"created_at"`
}

type TextReview struct {
	ID                    int64                  `json:"id"`
	VersionID             int64                  `json:"version_id"`
	Iteration             int                    `json:"iteration"`
	OriginalText          string                 `json:"original_text"`
	AICorrectedText       string                 `json:"ai_corrected_text"`
	UserText              *string                `json:"user_text"`
	SpellingErrors        json.RawMessage        `json:"spelling_errors"`
	ClaritySuggestions    json.RawMessage        `json:"clarity_suggestions"`
	HasSpellingErrors     bool                   `json:"has_spelling_errors"`
	HasClaritySuggestions bool                   `json:"has_clarity_suggestions"`
	Status                lifecycle.ReviewStatus `json:"status"`
	UserSkippedClarity    bool                   `json:"user_skipped_clarity"`
	CreatedAt             time.Time              `json:"created_at"`
	ResolvedAt            *time.Time             `json:"resolved_at"`
}

type ApprovalChain struct {
	ID               int64                 `json:"id"`
	VersionID        int64                 `json:"version_id"`
	ChainType        lifecycle.ChainType   `json:"chain_type"`
	Status           lifecycle.ChainStatus `json:"status"`
	RequiresTraining *bool                 `json:"requires_training"`
	CreatedAt        time.Time             `json:"created_at"`
	CompletedAt      *time.Time            `json:"completed_at"`
	Approvers        []Approver            `json:"approvers"`
}

type Approver struct {
	ID              int64                     `json:"id"`
	ChainID         int64                     `json:"chain_id"`
	ApproverName    string                    `json:"approver_name"`
	ApproverRole    string                    `json:"approver_role"`
	ApproverProfile lifecycle.Profile         `json:"approver_profile"`
	ApproverEmail   string                    `json:"approver_email,omitempty"`
	Order           int                       `json:"order"`
	ApprovalLevel   int                       `json:"approval_level"`
	IsRequired      bool                      `json:"is_required"`
	AIRecommended   bool                      `json:"ai_recommended"`
	Action          *lifecycle.ApproverAction `json:"action"`
	Comments        string                    `json:"comments,omitempty"`
	ActedAt         *time.Time                `json:"acted_at"`
	Deadline        *time.Time                `json:"deadline,omitempty"`
}

type DefaultApprover struct {
	ID              int64                   `json:"id"`
	ApproverName    string                  `json:"approver_name"`
	ApproverRole    string                  `json:"approver_role"`
	ApproverProfile lifecycle.Profile       `json:"approver_profile"`
	ApproverEmail   string                  `json:"approver_email,omitempty"`
	DocumentType    *lifecycle.DocumentType `json:"document_type"`
	IsDefault       bool                    `json:"is_default"`
	Order           int                     `json:"order"`
}

// PendingApproval is one row of the approvals dashboard.
type PendingApproval struct {
	ChainID         int64               `json:"chain_id"`
	VersionID       int64               `json:"version_id"`
	VersionNumber   int                 `json:"version_number"`
	DocumentID      int64               `json:"document_id"`
	DocumentCode    string              `json:"document_code"`
	DocumentTitle   string              `json:"document_title"`
	ChainType       lifecycle.ChainType `json:"chain_type"`
	CreatedAt       time.Time           `json:"created_at"`
	ApprovedCount   int                 `json:"approved_count"`
	PendingCount    int                 `json:"pending_count"`
	TotalApprovers  int                 `json:"total_approvers"`
	RequiredPending int                 `json:"required_pending"`
}

type MasterListEntry struct {
	ID             int64               `json:"id"`
	DocumentID     int64               `json:"document_id"`
	MasterListCode string              `json:"master_list_code"`
	EntryType      lifecycle.EntryType `json:"entry_type"`
	AddedAt        time.Time           `json:"added_at"`
	RemovedAt      *time.Time          `json:"removed_at"`
}

// MasterListRow is a ledger entry joined with its document for listing.
type MasterListRow struct {
	MasterListEntry
	DocumentCode   string                   `json:"document_code"`
	Title          string                   `json:"title"`
	DocumentType   lifecycle.DocumentType   `json:"document_type"`
	Status         lifecycle.DocumentStatus `json:"status"`
	Sector         string                   `json:"sector,omitempty"`
	CurrentVersion int                      `json:"current_version"`
	EffectiveDate  *time.Time               `json:"effective_date,omitempty"`
}

type MasterListStats struct {
	TotalActive  int                            `json:"total_active"`
	TotalByType  map[lifecycle.DocumentType]int `json:"total_by_type"`
	LatestUpdate *time.Time                     `json:"latest_update"`
}

type Changelog struct {
	ID                int64           `json:"id"`
	VersionID         int64           `json:"version_id"`
	PreviousVersionID *int64          `json:"previous_version_id"`
	DiffContent       json.RawMessage `json:"diff_content"`
	Summary           string          `json:"summary"`
	CreatedAt         time.Time       `json:"created_at"`
}

type AIAnalysis struct {
	ID            int64           `json:"id"`
	VersionID     int64           `json:"version_id"`
	AgentType     string          `json:"agent_type"`
	Source        string          `json:"source"`
	PromptUsed    string          `json:"prompt_used,omitempty"`
	Response      json.RawMessage `json:"response"`
	FeedbackItems json.RawMessage `json:"feedback_items"`
	Approved      *bool           `json:"approved"`
	Error         string          `json:"error,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`
}

type AIUsage struct {
	ID        int64     `json:"id"`
	VersionID *int64    `json:"version_id"`
	AgentType string    `json:"agent_type"`
	Model     string    `json:"model"`
	TokensIn  int       `json:"tokens_in"`
	TokensOut int       `json:"tokens_out"`
	CreatedAt time.Time `json:"created_at"`
}

type Distribution struct {
	ID             int64      `json:"id"`
	DocumentID     int64      `json:"document_id"`
	RecipientName  string     `json:"recipient_name"`
	RecipientRole  string     `json:"recipient_role,omitempty"`
	RecipientEmail string     `json:"recipient_email,omitempty"`
	NotifiedAt     *time.Time `json:"notified_at"`
	AcknowledgedAt *time.Time `json:"acknowledged_at"`
	CreatedAt      time.Time  `json:"created_at"`
}

type DocumentFilter struct {
	Status       lifecycle.DocumentStatus
	DocumentType lifecycle.DocumentType
	Code         string
	Page         int
	Limit        int
}

type MasterListFilter struct {
	DocumentType lifecycle.DocumentType
	Status       lifecycle.DocumentStatus
	Search       string
	IncludeAll   bool
	Page         int
	Limit        int
}
