package ai

import (
	"fmt"
	"strings"
)

const languageRules = `
Rules:
- Always answer in Brazilian Portuguese (pt-BR); keep JSON keys in English.
- Corporate acronyms such as PQ, IT, RQ, EPI and NR are correct terminology.
- Return only the JSON object, no surrounding text.`

const analysisPrompt = `You review controlled corporate documents for compliance.
Check completeness, clarity, compliance with corporate standards and formatting.
Respond with JSON:
{"feedback_items":[{"item":"what was checked","status":"approved|rejected","suggestion":"improvement or null"}],"approved":true}` + languageRules

const restructurePrompt = `You reorganize a controlled document into the standard sections of its type without inventing content.
Respond with JSON:
{"title":"document title","sections":[{"title":"section title","content":"section text"}],"metadata":{"author":"","date":""}}` + languageRules

const reviewPrompt = `You proofread controlled corporate documents.
Find spelling and grammar errors and, unless told otherwise, clarity improvements.
Respond with JSON:
{"corrected_text":"full corrected text","spelling_errors":[{"original":"","corrected":"","position":0,"context":""}],"clarity_suggestions":[{"original":"","suggested":"","reason":"","position":0}],"has_spelling_errors":false,"has_clarity_suggestions":false}` + languageRules

const changelogPrompt = `You compare two versions of a controlled document and describe what changed, section by section.
Respond with JSON:
{"diff_content":{"sections":[{"section":"","change_type":"added|removed|modified","description":"","old_content_snippet":"","new_content_snippet":""}]},"summary":"one paragraph"}` + languageRules

const safetyPrompt = `You decide whether a document involves occupational safety topics (PPE, regulatory norms, hazards, emergencies, chemicals, confined spaces, work at height).
Respond with JSON:
{"involves_safety":false,"confidence":0.0,"safety_topics":[],"recommendation":""}` + languageRules

const extractPrompt = `You list every document cited in the "Documentos Complementares" section (or equivalent) of a quality procedure.
Use the code (for example IT-003.00) when present, otherwise the full title. Never invent references.
Respond with JSON:
{"references":[{"code_or_title":"","description":""}]}` + languageRules

const validatePrompt = `You audit cross references of a quality procedure against the real content of the cited documents.
For each cited document decide whether it is mentioned in the body of the procedure and whether what the procedure says is consistent with it (null when the document is not in the system).
Respond with JSON:
{"cross_references":[{"cited_document":"","found_in_system":true,"mentioned_in_text":true,"content_consistent":true,"issues":null}],"summary":""}` + languageRules

func analysisUserPrompt(in AnalysisInput) string {
	return fmt.Sprintf("Document type: %s\n\nAnalyze this document:\n\n%s", in.DocumentType, in.Text)
}

func restructureUserPrompt(in RestructureInput) string {
	return fmt.Sprintf("Standard sections for type %s: %s\n\nDocument:\n\n%s",
		in.DocumentType, strings.Join(SectionNames(in.DocumentType), "; "), in.Text)
}

func reviewUserPrompt(in ReviewInput) string {
	if in.SpellingOnly {
		return "Check spelling only. Return an empty clarity_suggestions list.\n\n" + in.Text
	}
	return in.Text
}

func changelogUserPrompt(in ChangelogInput) string {
	if in.OldText == nil {
		return "This is the first version of the document.\n\nNEW VERSION:\n\n" + in.NewText
	}
	var b strings.Builder
	fmt.Fprintf(&b, "PREVIOUS VERSION:\n\n%s\n\nNEW VERSION:\n\n%s", *in.OldText, in.NewText)
	if in.Patch != "" {
		fmt.Fprintf(&b, "\n\nUNIFIED DIFF:\n\n%s", in.Patch)
	}
	return b.String()
}

func safetyUserPrompt(in SafetyInput) string {
	return "Analyze the following document:\n\n" + truncate(in.Text, 8000)
}

func validateUserPrompt(in ValidateInput) string {
	var b strings.Builder
	fmt.Fprintf(&b, "PROCEDURE TEXT:\n\n%s\n\n===== CITED DOCUMENTS =====\n", in.Text)
	for _, ref := range in.References {
		fmt.Fprintf(&b, "\n--- DOCUMENT: %s ---\n", ref.CitedDocument)
		if ref.FoundInSystem && ref.ExtractedText != "" {
			b.WriteString(truncate(ref.ExtractedText, 3000))
		} else {
			b.WriteString("[NOT FOUND IN THE PLATFORM]")
		}
		b.WriteString("\n--- END ---\n")
	}
	return b.String()
}
