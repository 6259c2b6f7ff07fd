package lifecycle

import (
	"fmt"
	"regexp"
	"strconv"
)

var codePattern = regexp.MustCompile(`^(PQ|IT|RQ)-(\d{3})\.(\d{2})$`)

// FormatCode renders the standardized code TT-NNN.RR.
func FormatCode(t DocumentType, sequential, revision int) string {
	return fmt.Sprintf("%s-%03d.%02d", t, sequential, revision)
}

// ParseCode splits a standardized code into its parts.
func ParseCode(code string) (DocumentType, int, int, error) {
	match := codePattern.FindStringSubmatch(code)
	if match == nil {
		return "", 0, 0, fmt.Errorf("invalid document code %q", code)
	}
	seq, _ := strconv.Atoi(match[2])
	rev, _ := strconv.Atoi(match[3])
	return DocumentType(match[1]), seq, rev, nil
}

// FindCodes returns every standardized code cited in text, in order of first
// appearance.
func FindCodes(text string) []string {
	matches := citedCodePattern.FindAllString(text, -1)
	seen := make(map[string]struct{}, len(matches))
	codes := make([]string, 0, len(matches))
	for _, m := range matches {
		if _, ok := seen[m]; ok {
			continue
		}
		seen[m] = struct{}{}
		codes = append(codes, m)
	}
	return codes
}

var citedCodePattern = regexp.MustCompile(`\b(?:PQ|IT|RQ)-\d{3}\.\d{2}\b`)

// MasterListCode renders the ledger code LM-NNN.
func MasterListCode(n int) string {
	return fmt.Sprintf("LM-%03d", n)
}
