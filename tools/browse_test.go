package tools

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
)

const samplePage = `<html>
<head><title>Sample Page</title><script>var x = 1;</script></head>
<body>
<nav>Home | About</nav>
<main><h1>Welcome</h1><p>This is the main article content of the page.</p></main>
<footer>Copyright</footer>
</body>
</html>`

func TestBrowseExtractsReadableText(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(samplePage))
	}))
	defer srv.Close()

	tool := NewBrowseTool()
	out, err := tool.Execute(context.Background(), map[string]interface{}{"url": srv.URL})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}

	if !strings.Contains(out, "main article content") {
		t.Errorf("extracted text missing article body:\n%s", out)
	}
	if !strings.Contains(out, "Sample Page") {
		t.Errorf("output should include the page title:\n%s", out)
	}
	if strings.Contains(out, "var x = 1") {
		t.Errorf("script content should be stripped:\n%s", out)
	}
	if strings.Contains(out, "Copyright") {
		t.Errorf("footer content should be stripped:\n%s", out)
	}
}

func TestBrowseRetriesTransientFailures(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Header().Set("Content-Type", "text/plain")
		w.Write([]byte("finally reachable content with enough text to pass the length check"))
	}))
	defer srv.Close()

	tool := NewBrowseTool()
	out, err := tool.Execute(context.Background(), map[string]interface{}{"url": srv.URL})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out, "finally reachable") {
		t.Errorf("expected retried fetch to succeed, got:\n%s", out)
	}
	if got := atomic.LoadInt32(&calls); got != 3 {
		t.Errorf("expected 3 attempts, got %d", got)
	}
}

func TestBrowseNonTextContent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/pdf")
		w.Write([]byte{0x25, 0x50, 0x44, 0x46})
	}))
	defer srv.Close()

	tool := NewBrowseTool()
	out, err := tool.Execute(context.Background(), map[string]interface{}{"url": srv.URL})
	if err != nil {
		t.Fatalf("Execute: %v", err)
	}
	if !strings.Contains(out, "non-text content") {
		t.Errorf("binary responses should produce an explanatory message, got:\n%s", out)
	}
}

func TestBrowseInvalidURL(t *testing.T) {
	tool := NewBrowseTool()
	if _, err := tool.Execute(context.Background(), map[string]interface{}{"url": "not a url"}); err == nil {
		t.Fatal("expected error for invalid URL")
	}
}

func TestNormalizeURL(t *testing.T) {
	cases := []struct {
		in, want string
	}{
		{"example.com", "https://example.com"},
		{"http://example.com", "http://example.com"},
		{"  example.com/path  ", "https://example.com/path"},
		{"not a url", "not a url"},
	}
	for _, c := range cases {
		if got := normalizeURL(c.in); got != c.want {
			t.Errorf("normalizeURL(%q) = %q, want %q", c.in, got, c.want)
		}
	}
}

func TestTruncateUTF8(t *testing.T) {
	s := "héllo wörld"
	out := truncateUTF8(s, 3)
	if len(out) > 3 {
		t.Errorf("truncated length %d exceeds limit", len(out))
	}
	for _, r := range out {
		if r == '�' {
			t.Error("truncation produced an invalid rune")
		}
	}
}
