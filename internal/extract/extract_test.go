package extract

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestExtractHTMLBasicFields(t *testing.T) {
	t.Parallel()

	p := New(Options{})
	body := []byte(`<html><head>
		<title>Quarterly Report</title>
		<meta name="description" content="Numbers for Q3">
	</head><body>
		<nav><a href="/ignored-nav">Nav</a></nav>
		<main><p>Revenue grew twelve percent.</p></main>
	</body></html>`)

	content := p.Extract(body, "https://example.com/report", "text/html; charset=utf-8")

	require.Equal(t, "Quarterly Report", content.Title)
	require.Equal(t, "Numbers for Q3", content.Description)
	require.Contains(t, content.Text, "Revenue grew twelve percent.")
	require.Equal(t, "utf-8", content.Encoding)
	require.Equal(t, 4, content.WordCount)
}

func TestExtractResolvesRelativeLinks(t *testing.T) {
	t.Parallel()

	p := New(Options{})
	body := []byte(`<html><body>
		<a href="../c">up</a>
		<a href="/abs">abs</a>
		<a href="https://other.example/x">ext</a>
		<a href="#frag">skip</a>
		<a href="mailto:a@b.c">skip</a>
	</body></html>`)

	content := p.Extract(body, "https://example.com/a/b", "text/html")

	require.Equal(t, []string{
		"https://example.com/c",
		"https://example.com/abs",
		"https://other.example/x",
	}, content.Links)
}

func TestExtractLinksPreserveDocumentOrder(t *testing.T) {
	t.Parallel()

	p := New(Options{})
	// Links inside stripped chrome elements must still appear, in order.
	body := []byte(`<html><body>
		<header><a href="/first">one</a></header>
		<main><a href="/second">two</a></main>
		<footer><a href="/third">three</a></footer>
	</body></html>`)

	content := p.Extract(body, "https://example.com/", "text/html")

	require.Equal(t, []string{
		"https://example.com/first",
		"https://example.com/second",
		"https://example.com/third",
	}, content.Links)
	require.NotContains(t, content.Text, "one")
	require.NotContains(t, content.Text, "three")
}

func TestExtractCapsLinkCount(t *testing.T) {
	t.Parallel()

	p := New(Options{MaxLinks: 3})
	var sb strings.Builder
	sb.WriteString("<html><body>")
	for i := 0; i < 10; i++ {
		sb.WriteString(`<a href="/p">link</a>`)
	}
	sb.WriteString("</body></html>")

	content := p.Extract([]byte(sb.String()), "https://example.com/", "text/html")
	require.Len(t, content.Links, 3)
}

func TestExtractStripsScriptsAndStyles(t *testing.T) {
	t.Parallel()

	p := New(Options{})
	body := []byte(`<html><body>
		<script>var secret = 42;</script>
		<style>.x{color:red}</style>
		<p>Visible copy.</p>
	</body></html>`)

	content := p.Extract(body, "https://example.com/", "text/html")

	require.Contains(t, content.Text, "Visible copy.")
	require.NotContains(t, content.Text, "secret")
	require.NotContains(t, content.Text, "color:red")
}

func TestExtractPrefersMainRegion(t *testing.T) {
	t.Parallel()

	p := New(Options{})
	body := []byte(`<html><body>
		<div>sidebar cruft</div>
		<article>the actual story</article>
	</body></html>`)

	content := p.Extract(body, "https://example.com/", "text/html")

	require.Equal(t, "the actual story", content.Text)
}

func TestExtractEmptyBody(t *testing.T) {
	t.Parallel()

	p := New(Options{})
	content := p.Extract(nil, "https://example.com/", "text/html")

	require.Equal(t, "", content.Text)
	require.Equal(t, []string{}, content.Links)
	require.Equal(t, "utf-8", content.Encoding)
	require.Zero(t, content.WordCount)
}

func TestExtractDeclaredLatin1Charset(t *testing.T) {
	t.Parallel()

	p := New(Options{})
	// "café" with the é encoded as ISO-8859-1 0xE9. The WHATWG tables decode
	// latin-1 as windows-1252, and the reported name follows the decoder.
	body := []byte("<html><body><p>caf\xe9</p></body></html>")

	content := p.Extract(body, "https://example.com/", "text/html; charset=iso-8859-1")

	require.Equal(t, "windows-1252", content.Encoding)
	require.Contains(t, content.Text, "café")
}

func TestExtractSniffedEncodingMatchesDecode(t *testing.T) {
	t.Parallel()

	p := New(Options{})
	// Multibyte UTF-8 with no declared charset and no BOM: the sniffer has
	// to pick the encoding, and the reported name must be the one the bytes
	// were decoded with.
	body := []byte("<html><body><p>こんにちは世界、こんにちは世界</p></body></html>")

	content := p.Extract(body, "https://example.com/", "text/html")

	require.Equal(t, "utf-8", content.Encoding)
	require.Contains(t, content.Text, "こんにちは世界")
}

func TestExtractUTF8BOM(t *testing.T) {
	t.Parallel()

	p := New(Options{})
	body := append([]byte{0xef, 0xbb, 0xbf}, []byte("<html><body><p>bom text</p></body></html>")...)

	content := p.Extract(body, "https://example.com/", "text/html")

	require.Equal(t, "utf-8", content.Encoding)
	require.Contains(t, content.Text, "bom text")
}

func TestExtractInvalidUTF8NeverFails(t *testing.T) {
	t.Parallel()

	p := New(Options{})
	body := []byte{0xff, 0xfe, 0xfd, '<', 'p', '>', 'x', '<', '/', 'p', '>'}

	content := p.Extract(body, "https://example.com/", "")

	require.True(t, strings.ToValidUTF8(content.Text, "") == content.Text,
		"output must be valid UTF-8, got %q", content.Text)
}

func TestExtractTruncatesAtTextLimit(t *testing.T) {
	t.Parallel()

	p := New(Options{MaxTextChars: 10})
	body := []byte("<html><body><p>" + strings.Repeat("a", 100) + "</p></body></html>")

	content := p.Extract(body, "https://example.com/", "text/html")

	require.Len(t, content.Text, 10)
	require.Contains(t, content.Warnings, "text truncated at configured limit")
}

func TestExtractJSONPrettyPrints(t *testing.T) {
	t.Parallel()

	p := New(Options{})
	content := p.Extract([]byte(`{"a":1,"b":[2,3]}`), "https://api.example.com/v1", "application/json")

	require.Equal(t, "JSON content from api.example.com", content.Title)
	require.Contains(t, content.Text, "\"a\": 1")
	require.Empty(t, content.Warnings)
	require.Equal(t, []string{}, content.Links)
}

func TestExtractInvalidJSONDegradesToRaw(t *testing.T) {
	t.Parallel()

	p := New(Options{})
	content := p.Extract([]byte(`{"a":`), "https://api.example.com/v1", "application/json")

	require.Equal(t, `{"a":`, content.Text)
	require.Contains(t, content.Warnings, "invalid JSON payload, returning raw text")
}

func TestExtractPlainText(t *testing.T) {
	t.Parallel()

	p := New(Options{})
	content := p.Extract([]byte("plain words here"), "https://example.com/robots.txt", "text/plain")

	require.Equal(t, "Text content from example.com", content.Title)
	require.Equal(t, "plain words here", content.Text)
	require.Equal(t, 3, content.WordCount)
}

func TestExtractUnusableBaseOmitsLinks(t *testing.T) {
	t.Parallel()

	p := New(Options{})
	body := []byte(`<html><body><a href="/x">x</a></body></html>`)

	content := p.Extract(body, "not a url", "text/html")

	require.Empty(t, content.Links)
	require.Contains(t, content.Warnings, "final URL unusable as link base, links omitted")
}

func TestExtractTitleFallsBackToH1(t *testing.T) {
	t.Parallel()

	p := New(Options{})
	body := []byte(`<html><body><h1>Heading Title</h1><p>body</p></body></html>`)

	content := p.Extract(body, "https://example.com/", "text/html")
	require.Equal(t, "Heading Title", content.Title)
}
