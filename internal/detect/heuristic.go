// Package detect decides when a statically fetched page likely needs
// JavaScript rendering to produce its real content.
package detect

import (
	"bytes"
	"strings"

	"github.com/fetchkit/fetchkit/internal/fetch"
)

// Heuristic scores a static fetch result against a handful of rule-based
// indicators. A score at or above the threshold suggests promotion to the
// JS rendering tier.
type Heuristic struct {
	// MinBodyBytes below which a document is suspicious on its own.
	MinBodyBytes int
	// Threshold is the indicator score required to promote.
	Threshold int
}

// NewHeuristic creates a detector with sane defaults.
func NewHeuristic() *Heuristic {
	return &Heuristic{
		MinBodyBytes: 300,
		Threshold:    2,
	}
}

// Strong SPA markers weigh double: a framework mount point almost always
// means the static payload is an empty shell.
var strongMarkers = [][]byte{
	[]byte("__next_data__"),
	[]byte("window.__nuxt__"),
	[]byte("data-reactroot"),
	[]byte(`id="root"></div>`),
	[]byte(`id="app"></div>`),
	[]byte("ng-app"),
}

var weakMarkers = [][]byte{
	[]byte("please enable javascript"),
	[]byte("javascript is required"),
	[]byte("this page requires javascript"),
	[]byte("loading..."),
}

// ShouldPromote reports whether the static result looks JS-rendered.
func (h *Heuristic) ShouldPromote(result fetch.Result) bool {
	if result.StatusCode != 0 && result.StatusCode != 200 {
		return false
	}
	body := bytes.ToLower(result.Body)
	if len(bytes.TrimSpace(body)) < h.MinBodyBytes {
		return true
	}

	score := 0
	for _, marker := range strongMarkers {
		if bytes.Contains(body, marker) {
			score += 2
		}
	}
	for _, marker := range weakMarkers {
		if bytes.Contains(body, marker) {
			score++
		}
	}
	score += textRatioScore(body)
	if scriptCoverage(string(body)) >= 25 {
		score++
	}

	return score >= h.Threshold
}

// textRatioScore penalizes documents whose visible text is a sliver of the
// markup. The crude tag-stripping is fine here; this is a promotion hint,
// not extraction.
func textRatioScore(body []byte) int {
	total := len(body)
	if total == 0 {
		return 2
	}
	visible := 0
	inTag := false
	for _, b := range body {
		switch {
		case b == '<':
			inTag = true
		case b == '>':
			inTag = false
		case !inTag && b != ' ' && b != '\n' && b != '\t' && b != '\r':
			visible++
		}
	}
	ratio := visible * 100 / total
	switch {
	case ratio < 5:
		return 2
	case ratio < 10:
		return 1
	default:
		return 0
	}
}

// scriptCoverage returns the percentage of the document occupied by script
// elements, counting malformed unterminated scripts to the end.
func scriptCoverage(lower string) int {
	const (
		openTag  = "<script"
		closeTag = "</script>"
	)
	total := len(lower)
	if total == 0 {
		return 0
	}

	covered := 0
	pos := 0
	for {
		rel := strings.Index(lower[pos:], openTag)
		if rel == -1 {
			break
		}
		start := pos + rel

		tagClose := strings.IndexByte(lower[start:], '>')
		if tagClose == -1 {
			covered += total - start
			break
		}
		contentStart := start + tagClose + 1

		relEnd := strings.Index(lower[contentStart:], closeTag)
		var next int
		if relEnd == -1 {
			next = total
		} else {
			next = contentStart + relEnd + len(closeTag)
		}
		covered += next - start
		pos = next
	}

	return covered * 100 / total
}
