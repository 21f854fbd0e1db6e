package article_test

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"unicode/utf8"

	"newspulse/internal/article"
)

const articlePage = `<!doctype html>
<html>
<head><title>Story</title><script>var x = "<p>not text</p>";</script></head>
<body>
<nav><p>Home | World | Politics</p></nav>
<p>Sidebar teaser outside the article.</p>
<article>
<h1>Headline</h1>
<p>First paragraph with <a href="/x">a link</a> &amp; an entity.</p>
<p>Second line one<br>second line two</p>
<p>https://example.com/share?id=1 | https://example.com/print</p>
<p>   </p>
</article>
<footer><p>Copyright</p></footer>
</body>
</html>`

const plainPage = `<html><body><div><p>Only plain paragraphs.</p><p>Another one.</p></div></body></html>`

func serve(t *testing.T, status int, body string) *httptest.Server {
	t.Helper()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		w.WriteHeader(status)
		fmt.Fprint(w, body)
	}))
	t.Cleanup(server.Close)

	return server
}

func TestExtractPrefersArticleParagraphs(t *testing.T) {
	server := serve(t, http.StatusOK, articlePage)

	e := article.NewExtractor(nil, 0, slog.Default())

	got, err := e.Extract(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	want := "First paragraph with a link & an entity.\n\nSecond line one\nsecond line two"
	if got != want {
		t.Fatalf("unexpected text:\ngot  %q\nwant %q", got, want)
	}
}

func TestExtractFallsBackToAnyParagraph(t *testing.T) {
	server := serve(t, http.StatusOK, plainPage)

	got, err := article.NewExtractor(nil, 0, slog.Default()).Extract(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if got != "Only plain paragraphs.\n\nAnother one." {
		t.Fatalf("unexpected text: %q", got)
	}
}

func TestExtractTruncatesByCharacters(t *testing.T) {
	body := "<html><body><article><p>" + strings.Repeat("ž", 50) + "</p></article></body></html>"
	server := serve(t, http.StatusOK, body)

	got, err := article.NewExtractor(nil, 10, slog.Default()).Extract(context.Background(), server.URL)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if n := utf8.RuneCountInString(got); n != 10 {
		t.Fatalf("expected 10 characters, got %d (%q)", n, got)
	}
}

func TestExtractUnexpectedStatus(t *testing.T) {
	server := serve(t, http.StatusForbidden, articlePage)

	_, err := article.NewExtractor(nil, 0, slog.Default()).Extract(context.Background(), server.URL)
	if err == nil || !strings.Contains(err.Error(), "unexpected status: 403") {
		t.Fatalf("expected status error, got %v", err)
	}
}

func TestExtractNoText(t *testing.T) {
	server := serve(t, http.StatusOK, "<html><body><div>no paragraphs</div></body></html>")

	_, err := article.NewExtractor(nil, 0, slog.Default()).Extract(context.Background(), server.URL)
	if err == nil {
		t.Fatalf("expected error for page without paragraphs")
	}
}

func TestExtractEmptyURL(t *testing.T) {
	if _, err := article.NewExtractor(nil, 0, slog.Default()).Extract(context.Background(), " "); err == nil {
		t.Fatalf("expected error for empty URL")
	}
}

func TestFailureText(t *testing.T) {
	got := article.FailureText(errors.New("boom"))
	if got != "Failed to extract: boom" {
		t.Fatalf("unexpected failure text: %q", got)
	}
}
