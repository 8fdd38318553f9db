package cleaner

import (
	"reflect"
	"strings"
	"testing"
)

const articlePage = `<!DOCTYPE html>
<html>
<head><title>Field notes</title><style>body{color:red}</style></head>
<body>
<nav><a href="/">Home</a> <a href="/about">About</a></nav>
<article>
<h1>Field notes</h1>
<p>The river rose three feet overnight and the lower meadow flooded before dawn.
Volunteers moved the sandbags twice, first to the footbridge and then to the barn.</p>
<p>By noon the water had receded enough to walk the fence line and count the damage.
Two posts were gone and the gate hung from a single hinge.</p>
</article>
<script>console.log("tracking")</script>
<iframe src="https://ads.example.com/frame"></iframe>
<noscript>Enable JavaScript</noscript>
</body>
</html>`

func TestSanitize_RemovesNoise(t *testing.T) {
	out, err := Sanitize(articlePage)
	if err != nil {
		t.Fatalf("Sanitize: %v", err)
	}
	for _, tag := range []string{"<script", "<style", "<iframe", "<noscript"} {
		if strings.Contains(out, tag) {
			t.Errorf("sanitized output still contains %s", tag)
		}
	}
	if !strings.Contains(out, "lower meadow flooded") {
		t.Error("sanitized output lost article text")
	}
}

func TestMarkdown_Detailed(t *testing.T) {
	c := NewCleaner()
	md, err := c.Markdown(articlePage, "https://example.com/notes", true)
	if err != nil {
		t.Fatalf("Markdown: %v", err)
	}
	if !strings.Contains(md, "# Field notes") {
		t.Errorf("expected heading, got:\n%s", md)
	}
	if !strings.Contains(md, "[About](https://example.com/about)") {
		t.Errorf("detailed mode should keep navigation with absolute links, got:\n%s", md)
	}
	if strings.Contains(md, "tracking") || strings.Contains(md, "Enable JavaScript") {
		t.Errorf("detailed mode leaked script/noscript text:\n%s", md)
	}
}

func TestMarkdown_Article(t *testing.T) {
	c := NewCleaner()
	md, err := c.Markdown(articlePage, "https://example.com/notes", false)
	if err != nil {
		t.Fatalf("Markdown: %v", err)
	}
	if !strings.Contains(md, "sandbags twice") {
		t.Errorf("article text missing, got:\n%s", md)
	}
	if strings.Contains(md, "tracking") {
		t.Errorf("article mode leaked script text:\n%s", md)
	}
}

func TestMarkdown_EmptyDocument(t *testing.T) {
	c := NewCleaner()
	md, err := c.Markdown("", "https://example.com/", false)
	if err != nil {
		t.Fatalf("empty document should not be a hard error: %v", err)
	}
	if strings.TrimSpace(md) != "" {
		t.Errorf("expected empty markdown, got %q", md)
	}
}

func TestLinks_PrefixFilterAndOrder(t *testing.T) {
	page := `<html><body>
<a href="/docs/b">B</a>
<a href="https://example.com/docs/a">A</a>
<a href="/docs/b">B again</a>
<a href="https://other.com/docs/c">C</a>
<a href="/blog/d">D</a>
<a href="mailto:x@example.com">mail</a>
<a href="docs/e">E</a>
</body></html>`

	got := Links(page, "https://example.com/", "https://example.com/docs")
	want := []string{
		"https://example.com/docs/b",
		"https://example.com/docs/a",
		"https://example.com/docs/b",
		"https://example.com/docs/e",
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Links:\n got  %v\n want %v", got, want)
	}
}

func TestLinks_BaseHref(t *testing.T) {
	page := `<html><head><base href="https://cdn.example.com/site/"></head><body>
<a href="page1">one</a>
<a href="/root">root</a>
</body></html>`

	got := Links(page, "https://example.com/", "https://cdn.example.com/site")
	want := []string{"https://cdn.example.com/site/page1"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Links with base:\n got  %v\n want %v", got, want)
	}
}

func TestLinks_BadURL(t *testing.T) {
	if got := Links("<a href='/x'>x</a>", "::bad", "https://"); got != nil {
		t.Errorf("expected nil for unparseable page URL, got %v", got)
	}
}
