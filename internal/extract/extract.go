// Package extract turns raw fetched bytes into normalized structured
// content. The pipeline is pure and total: any byte sequence produces a
// well-formed Content, with malformed input degrading to best-effort
// output plus warnings, never an error.
package extract

import (
	"bytes"
	"encoding/json"
	"io"
	"mime"
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/saintfish/chardet"
	"golang.org/x/net/html/charset"
	"golang.org/x/text/transform"
)

// Content is the final output entity, owned by the caller after return.
type Content struct {
	Title       string   `json:"title,omitempty"`
	Description string   `json:"description,omitempty"`
	Text        string   `json:"text"`
	Links       []string `json:"links"`
	Encoding    string   `json:"encoding"`
	Warnings    []string `json:"warnings,omitempty"`
	WordCount   int      `json:"word_count"`
}

// Options bound extraction output.
type Options struct {
	MaxTextChars int
	MaxLinks     int
}

const (
	defaultMaxTextChars = 2_000_000
	defaultMaxLinks     = 300
)

// Pipeline extracts content according to its options. The zero value is
// usable with defaults via New.
type Pipeline struct {
	opts Options
}

// New builds a Pipeline, filling in default bounds.
func New(opts Options) *Pipeline {
	if opts.MaxTextChars <= 0 {
		opts.MaxTextChars = defaultMaxTextChars
	}
	if opts.MaxLinks <= 0 {
		opts.MaxLinks = defaultMaxLinks
	}
	return &Pipeline{opts: opts}
}

// Elements stripped from the text representation: non-content by
// definition, plus page chrome that drowns the main copy.
const strippedElements = "script, style, noscript, template, nav, header, footer, aside, iframe, svg, canvas, form, button, input, select"

// Selectors tried in order when locating the main content region.
var mainSelectors = []string{
	"main", "article", "[role=main]",
	".content", ".post-content", ".entry-content", ".article-content",
	"#content", ".main-content",
}

var whitespaceRe = regexp.MustCompile(`\s+`)

// Extract parses rawBody into normalized content, resolving relative links
// against finalURL. contentType is the response Content-Type header and
// may be empty.
func (p *Pipeline) Extract(rawBody []byte, finalURL, contentType string) Content {
	mediaType := parseMediaType(contentType)

	switch {
	case strings.Contains(mediaType, "json"):
		return p.extractJSON(rawBody, finalURL)
	case mediaType == "" || strings.Contains(mediaType, "html") || strings.Contains(mediaType, "xml"):
		return p.extractHTML(rawBody, finalURL, contentType)
	case strings.HasPrefix(mediaType, "text/"):
		return p.extractPlain(rawBody, finalURL, contentType)
	default:
		// Unknown types get the HTML path; goquery degrades gracefully and
		// a plain-text payload comes back as its own text.
		return p.extractHTML(rawBody, finalURL, contentType)
	}
}

func (p *Pipeline) extractHTML(rawBody []byte, finalURL, contentType string) Content {
	text, encoding, warnings := decode(rawBody, contentType)

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(text))
	if err != nil {
		warnings = append(warnings, "html parse failed, returning raw text")
		return p.finish(Content{
			Text:     text,
			Links:    []string{},
			Encoding: encoding,
			Warnings: warnings,
		})
	}

	content := Content{
		Title:       extractTitle(doc),
		Description: extractDescription(doc),
		Encoding:    encoding,
		Warnings:    warnings,
	}

	// Links come off the full document so removal of page chrome below
	// cannot disturb document order or drop navigation links.
	content.Links, content.Warnings = p.extractLinks(doc, finalURL, content.Warnings)

	doc.Find(strippedElements).Remove()
	content.Text = mainText(doc)

	return p.finish(content)
}

func (p *Pipeline) extractJSON(rawBody []byte, finalURL string) Content {
	var buf bytes.Buffer
	if err := json.Indent(&buf, rawBody, "", "  "); err != nil {
		return p.finish(Content{
			Title:    "JSON content from " + hostOf(finalURL),
			Text:     strings.ToValidUTF8(string(rawBody), "�"),
			Links:    []string{},
			Encoding: "utf-8",
			Warnings: []string{"invalid JSON payload, returning raw text"},
		})
	}
	return p.finish(Content{
		Title:    "JSON content from " + hostOf(finalURL),
		Text:     buf.String(),
		Links:    []string{},
		Encoding: "utf-8",
	})
}

func (p *Pipeline) extractPlain(rawBody []byte, finalURL, contentType string) Content {
	text, encoding, warnings := decode(rawBody, contentType)
	return p.finish(Content{
		Title:    "Text content from " + hostOf(finalURL),
		Text:     text,
		Links:    []string{},
		Encoding: encoding,
		Warnings: warnings,
	})
}

// finish applies output bounds and derived fields shared by all branches.
func (p *Pipeline) finish(c Content) Content {
	c.Text = strings.TrimSpace(c.Text)
	if len(c.Text) > p.opts.MaxTextChars {
		c.Text = c.Text[:p.opts.MaxTextChars]
		c.Warnings = append(c.Warnings, "text truncated at configured limit")
	}
	if c.Links == nil {
		c.Links = []string{}
	}
	c.WordCount = len(strings.Fields(c.Text))
	return c
}

func (p *Pipeline) extractLinks(doc *goquery.Document, finalURL string, warnings []string) ([]string, []string) {
	base, err := url.Parse(finalURL)
	if err != nil || base.Scheme == "" {
		warnings = append(warnings, "final URL unusable as link base, links omitted")
		return []string{}, warnings
	}

	links := make([]string, 0)
	doc.Find("a[href]").EachWithBreak(func(_ int, sel *goquery.Selection) bool {
		if len(links) >= p.opts.MaxLinks {
			return false
		}
		href, _ := sel.Attr("href")
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") {
			return true
		}
		ref, err := url.Parse(href)
		if err != nil {
			return true
		}
		abs := base.ResolveReference(ref)
		if abs.Scheme != "http" && abs.Scheme != "https" {
			return true
		}
		links = append(links, abs.String())
		return true
	})
	return links, warnings
}

func extractTitle(doc *goquery.Document) string {
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	return strings.TrimSpace(doc.Find("h1").First().Text())
}

func extractDescription(doc *goquery.Document) string {
	if desc, ok := doc.Find(`meta[name="description"]`).First().Attr("content"); ok {
		return strings.TrimSpace(desc)
	}
	if desc, ok := doc.Find(`meta[property="og:description"]`).First().Attr("content"); ok {
		return strings.TrimSpace(desc)
	}
	return ""
}

// mainText prefers a recognizable main-content region and falls back to
// the whole body.
func mainText(doc *goquery.Document) string {
	var region *goquery.Selection
	for _, sel := range mainSelectors {
		if found := doc.Find(sel).First(); found.Length() > 0 {
			region = found
			break
		}
	}
	if region == nil {
		region = doc.Find("body").First()
	}
	if region.Length() == 0 {
		region = doc.Selection
	}
	return whitespaceRe.ReplaceAllString(strings.TrimSpace(region.Text()), " ")
}

// decode converts rawBody to UTF-8 text, reporting the encoding that was
// actually used to decode and any degradation warnings. It never fails:
// undetectable or undecodable input falls back to sanitized UTF-8.
func decode(rawBody []byte, contentType string) (string, string, []string) {
	if len(rawBody) == 0 {
		return "", "utf-8", nil
	}

	var warnings []string
	enc, name, certain := charset.DetermineEncoding(rawBody, contentType)
	if !certain {
		// Nothing declared and no BOM: let chardet vote, but only adopt a
		// charset the decoder side actually knows, so the reported name
		// always matches the decode.
		if best, err := chardet.NewTextDetector().DetectBest(rawBody); err == nil {
			if sniffed, sniffedName := charset.Lookup(best.Charset); sniffed != nil {
				enc, name = sniffed, sniffedName
			}
		} else {
			warnings = append(warnings, "charset undetectable, assuming "+name)
		}
	}

	decoded, err := io.ReadAll(transform.NewReader(bytes.NewReader(rawBody), enc.NewDecoder()))
	if err != nil {
		return strings.ToValidUTF8(string(rawBody), "�"), name,
			append(warnings, "charset decode failed, bytes sanitized as utf-8")
	}
	text := strings.TrimPrefix(string(decoded), "\ufeff")
	return strings.ToValidUTF8(text, "�"), name, warnings
}

func parseMediaType(contentType string) string {
	if contentType == "" {
		return ""
	}
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err != nil {
		return strings.ToLower(strings.TrimSpace(strings.Split(contentType, ";")[0]))
	}
	return mediaType
}

func hostOf(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Host == "" {
		return "unknown host"
	}
	return u.Host
}
