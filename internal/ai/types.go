package ai

import (
	"context"

	"doccontrol/api/internal/lifecycle"
)

// Agent names one AI operation. It is persisted as ai_analyses.agent_type.
type Agent string

const (
	AgentAnalysis         Agent = "analysis"
	AgentFormatting       Agent = "formatting"
	AgentSpelling         Agent = "spelling"
	AgentChangelog        Agent = "changelog"
	AgentSafety           Agent = "safety"
	AgentCrossrefExtract  Agent = "crossref_extract"
	AgentCrossrefValidate Agent = "crossref_validate"
)

type Source string

const (
	SourceLive  Source = "live"
	SourceMock  Source = "mock"
	SourceCache Source = "cache"
)

type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
}

// Meta describes how a result was produced. It is never cached.
type Meta struct {
	Source        Source `json:"source"`
	Model         string `json:"model,omitempty"`
	Usage         Usage  `json:"usage"`
	FallbackError string `json:"fallback_error,omitempty"`
}

// Gateway is the set of AI agents the lifecycle consumes. Every agent is a
// pure function of its input.
type Gateway interface {
	Analyze(ctx context.Context, in AnalysisInput) (AnalysisResult, error)
	Restructure(ctx context.Context, in RestructureInput) (RestructureResult, error)
	ReviewText(ctx context.Context, in ReviewInput) (ReviewResult, error)
	GenerateChangelog(ctx context.Context, in ChangelogInput) (ChangelogResult, error)
	DetectSafety(ctx context.Context, in SafetyInput) (SafetyResult, error)
	ExtractReferences(ctx context.Context, in ExtractInput) (ExtractResult, error)
	ValidateReferences(ctx context.Context, in ValidateInput) (ValidateResult, error)
}

type AnalysisInput struct {
	DocumentType lifecycle.DocumentType `json:"document_type"`
	Text         string                 `json:"text"`
}

type FeedbackItem struct {
	Item       string  `json:"item"`
	Status     string  `json:"status"`
	Suggestion *string `json:"suggestion"`
}

type AnalysisResult struct {
	FeedbackItems []FeedbackItem `json:"feedback_items"`
	Approved      bool           `json:"approved"`
	Meta          Meta           `json:"-"`
}

type RestructureInput struct {
	DocumentType lifecycle.DocumentType `json:"document_type"`
	Text         string                 `json:"text"`
}

type Section struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

type DocumentMetadata struct {
	Author string `json:"author"`
	Date   string `json:"date"`
}

type RestructureResult struct {
	Title    string           `json:"title"`
	Sections []Section        `json:"sections"`
	Metadata DocumentMetadata `json:"metadata"`
	Meta     Meta             `json:"-"`
}

type ReviewInput struct {
	Text string `json:"text"`
	// SpellingOnly suppresses clarity suggestions.
	SpellingOnly bool `json:"spelling_only"`
}

type SpellingError struct {
	Original  string `json:"original"`
	Corrected string `json:"corrected"`
	Position  int    `json:"position"`
	Context   string `json:"context"`
}

type ClaritySuggestion struct {
	Original  string `json:"original"`
	Suggested string `json:"suggested"`
	Reason    string `json:"reason"`
	Position  int    `json:"position"`
}

type ReviewResult struct {
	CorrectedText         string              `json:"corrected_text"`
	SpellingErrors        []SpellingError     `json:"spelling_errors"`
	ClaritySuggestions    []ClaritySuggestion `json:"clarity_suggestions"`
	HasSpellingErrors     bool                `json:"has_spelling_errors"`
	HasClaritySuggestions bool                `json:"has_clarity_suggestions"`
	Meta                  Meta                `json:"-"`
}

type ChangelogInput struct {
	NewText string `json:"new_text"`
	// OldText is nil for a first version.
	OldText *string `json:"old_text"`
	Patch   string  `json:"patch,omitempty"`
}

type ChangeSection struct {
	Section           string `json:"section"`
	ChangeType        string `json:"change_type"`
	Description       string `json:"description"`
	OldContentSnippet string `json:"old_content_snippet,omitempty"`
	NewContentSnippet string `json:"new_content_snippet,omitempty"`
}

type DiffContent struct {
	Sections []ChangeSection `json:"sections"`
	Patch    string          `json:"patch,omitempty"`
}

type ChangelogResult struct {
	DiffContent DiffContent `json:"diff_content"`
	Summary     string      `json:"summary"`
	Meta        Meta        `json:"-"`
}

type SafetyInput struct {
	Text string `json:"text"`
}

type SafetyResult struct {
	InvolvesSafety bool     `json:"involves_safety"`
	Confidence     float64  `json:"confidence"`
	SafetyTopics   []string `json:"safety_topics"`
	Recommendation string   `json:"recommendation"`
	Meta           Meta     `json:"-"`
}

type ExtractInput struct {
	Text string `json:"text"`
}

type Reference struct {
	CodeOrTitle string `json:"code_or_title"`
	Description string `json:"description"`
}

type ExtractResult struct {
	References []Reference `json:"references"`
	Meta       Meta        `json:"-"`
}

// CitedDocument is a reference resolved against the document registry.
type CitedDocument struct {
	CitedDocument string `json:"cited_document"`
	FoundInSystem bool   `json:"found_in_system"`
	ExtractedText string `json:"extracted_text,omitempty"`
}

type ValidateInput struct {
	Text       string          `json:"text"`
	References []CitedDocument `json:"references"`
}

type CrossReference struct {
	CitedDocument     string  `json:"cited_document"`
	FoundInSystem     bool    `json:"found_in_system"`
	MentionedInText   bool    `json:"mentioned_in_text"`
	ContentConsistent *bool   `json:"content_consistent"`
	Issues            *string `json:"issues"`
}

type ValidateResult struct {
	CrossReferences []CrossReference `json:"cross_references"`
	Summary         string           `json:"summary"`
	Meta            Meta             `json:"-"`
}
