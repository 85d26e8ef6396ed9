package pipeline

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"evalgen/internal/contract"
)

// Document is the input requirements document with physical lines numbered
// 1-based for evidence references.
type Document struct {
	Path  string
	Lines []string
}

// ReadDocument loads the markdown document and splits it into physical lines
// with line endings stripped.
func ReadDocument(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read input document: %w", err)
	}
	text := strings.ReplaceAll(string(data), "\r\n", "\n")
	lines := strings.Split(text, "\n")
	// A trailing newline produces one empty phantom line; drop it.
	if n := len(lines); n > 0 && lines[n-1] == "" {
		lines = lines[:n-1]
	}
	// Evidence line numbers need at least one line to clamp to.
	if len(lines) == 0 {
		lines = []string{""}
	}
	return &Document{Path: path, Lines: lines}, nil
}

// Name returns the document's base file name, used in evidence records.
func (d *Document) Name() string {
	return filepath.Base(d.Path)
}

// Numbered renders the document with 1-based line numbers for the prompt.
func (d *Document) Numbered() string {
	var b strings.Builder
	for i, line := range d.Lines {
		fmt.Fprintf(&b, "%4d | %s\n", i+1, line)
	}
	return strings.TrimSuffix(b.String(), "\n")
}

// Range returns the literal text of the inclusive 1-based line range. Bounds
// must already be clamped.
func (d *Document) Range(start, end int) string {
	return strings.Join(d.Lines[start-1:end], "\n")
}

// Signal vocabularies for document classification. Scores are keyword hits
// against the lowercased document; support_bot wins ties.
var (
	supportSignals = []string{"faq", "тикет", "обращени", "заказ", "доставк", "возврат", "корзин"}
	qualitySignals = []string{"качеств", "оператор", "проверк", "ошибк", "пунктуац", "медицин", "клиник"}
)

// DetectCase classifies the document into exactly one case type.
func DetectCase(content string) contract.CaseType {
	lower := strings.ToLower(content)
	supportScore := 0
	for _, s := range supportSignals {
		if strings.Contains(lower, s) {
			supportScore++
		}
	}
	qualityScore := 0
	for _, s := range qualitySignals {
		if strings.Contains(lower, s) {
			qualityScore++
		}
	}
	if supportScore >= qualityScore {
		return contract.CaseSupportBot
	}
	return contract.CaseOperatorQuality
}
