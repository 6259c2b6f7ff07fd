package ai

import (
	"context"
	"fmt"
	"strings"

	"doccontrol/api/internal/lifecycle"
)

// Mock is a deterministic Gateway used when no live model is configured and
// as the fallback when the live model fails.
type Mock struct{}

func NewMock() *Mock {
	return &Mock{}
}

func mockMeta() Meta {
	return Meta{Source: SourceMock, Model: "mock"}
}

func (Mock) Analyze(_ context.Context, in AnalysisInput) (AnalysisResult, error) {
	hasContent := len([]rune(strings.TrimSpace(in.Text))) > 100
	contentItem := FeedbackItem{Item: "Document has content", Status: "approved"}
	if !hasContent {
		suggestion := "Document appears to be empty or too short."
		contentItem = FeedbackItem{Item: "Document has content", Status: "rejected", Suggestion: &suggestion}
	}
	items := []FeedbackItem{
		contentItem,
		{Item: "Document structure", Status: "approved"},
		{Item: "Language clarity", Status: "approved"},
	}
	return AnalysisResult{FeedbackItems: items, Approved: allApproved(items), Meta: mockMeta()}, nil
}

func allApproved(items []FeedbackItem) bool {
	for _, item := range items {
		if item.Status != "approved" {
			return false
		}
	}
	return true
}

var sectionsByType = map[lifecycle.DocumentType][]string{
	lifecycle.TypePQ: {
		"Objetivo e Abrangência",
		"Documentos Complementares",
		"Definições",
		"Descrição das Atividades",
		"Responsabilidades",
	},
	lifecycle.TypeIT: {
		"Objetivo e Abrangência",
		"Documentos Complementares",
		"Definições",
		"Condições de Segurança",
		"Características",
		"Condições de Armazenamento",
	},
}

// SectionNames returns the standard section titles of a document type.
func SectionNames(t lifecycle.DocumentType) []string {
	if names, ok := sectionsByType[t]; ok {
		return names
	}
	return sectionsByType[lifecycle.TypePQ]
}

func (Mock) Restructure(_ context.Context, in RestructureInput) (RestructureResult, error) {
	var paragraphs []string
	for _, p := range strings.Split(in.Text, "\n\n") {
		if p = strings.TrimSpace(p); p != "" {
			paragraphs = append(paragraphs, p)
		}
	}

	title := "Documento"
	if len(paragraphs) > 0 {
		first := strings.TrimSpace(strings.SplitN(paragraphs[0], "\n", 2)[0])
		if first != "" && len([]rune(first)) < 80 {
			title = first
		}
	}

	names := SectionNames(in.DocumentType)
	buckets := make([][]string, len(names))
	for i, p := range paragraphs {
		idx := i * len(names) / len(paragraphs)
		buckets[idx] = append(buckets[idx], p)
	}

	sections := make([]Section, len(names))
	for i, name := range names {
		sections[i] = Section{Title: name, Content: strings.Join(buckets[i], "\n\n")}
	}

	return RestructureResult{
		Title:    title,
		Sections: sections,
		Metadata: DocumentMetadata{Author: "Unknown", Date: "Unknown"},
		Meta:     mockMeta(),
	}, nil
}

func (Mock) ReviewText(_ context.Context, in ReviewInput) (ReviewResult, error) {
	return ReviewResult{
		CorrectedText:      in.Text,
		SpellingErrors:     []SpellingError{},
		ClaritySuggestions: []ClaritySuggestion{},
		Meta:               mockMeta(),
	}, nil
}

func (Mock) GenerateChangelog(_ context.Context, in ChangelogInput) (ChangelogResult, error) {
	if in.OldText == nil {
		return ChangelogResult{
			DiffContent: DiffContent{Sections: []ChangeSection{{
				Section:     "Full Document",
				ChangeType:  "added",
				Description: "Initial document version created.",
			}}},
			Summary: "Initial document version. All content is new.",
			Meta:    mockMeta(),
		}, nil
	}
	return ChangelogResult{
		DiffContent: DiffContent{
			Sections: []ChangeSection{{
				Section:           "Content",
				ChangeType:        "modified",
				Description:       "Document content has been updated.",
				OldContentSnippet: truncate(*in.OldText, 200),
				NewContentSnippet: truncate(in.NewText, 200),
			}},
			Patch: in.Patch,
		},
		Summary: "Document has been updated with new content.",
		Meta:    mockMeta(),
	}, nil
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}

var safetyKeywords = []string{
	"epi", "equipamento de proteção", "segurança do trabalho",
	"nr-", "norma regulamentadora", "risco", "perigo",
	"incêndio", "emergência", "acidente", "insalubre",
	"cipa", "sesmt", "ppra", "pcmso", "proteção",
	"químico", "tóxico", "espaço confinado", "altura",
}

func (Mock) DetectSafety(_ context.Context, in SafetyInput) (SafetyResult, error) {
	lower := strings.ToLower(in.Text)
	found := make([]string, 0)
	for _, kw := range safetyKeywords {
		if strings.Contains(lower, kw) {
			found = append(found, kw)
		}
	}
	involves := len(found) >= 2
	if len(found) > 5 {
		found = found[:5]
	}

	result := SafetyResult{
		InvolvesSafety: involves,
		Confidence:     0.2,
		SafetyTopics:   found,
		Recommendation: "Não foram identificados temas significativos de segurança do trabalho.",
		Meta:           mockMeta(),
	}
	if involves {
		result.Confidence = 0.8
		result.Recommendation = "Recomenda-se incluir o Técnico de Segurança do Trabalho na cadeia de aprovação."
	}
	return result, nil
}

func (Mock) ExtractReferences(_ context.Context, in ExtractInput) (ExtractResult, error) {
	codes := lifecycle.FindCodes(in.Text)
	refs := make([]Reference, 0, len(codes))
	for _, code := range codes {
		refs = append(refs, Reference{CodeOrTitle: code})
	}
	return ExtractResult{References: refs, Meta: mockMeta()}, nil
}

func (Mock) ValidateReferences(_ context.Context, in ValidateInput) (ValidateResult, error) {
	refs := make([]CrossReference, 0, len(in.References))
	found := 0
	for _, ref := range in.References {
		cr := CrossReference{
			CitedDocument:   ref.CitedDocument,
			FoundInSystem:   ref.FoundInSystem,
			MentionedInText: strings.Contains(in.Text, ref.CitedDocument),
		}
		if ref.FoundInSystem {
			found++
		} else {
			issue := "Documento não encontrado na plataforma."
			cr.Issues = &issue
		}
		refs = append(refs, cr)
	}
	return ValidateResult{
		CrossReferences: refs,
		Summary:         fmt.Sprintf("%d de %d documentos encontrados no sistema (validação de conteúdo indisponível no modo mock)", found, len(refs)),
		Meta:            mockMeta(),
	}, nil
}
