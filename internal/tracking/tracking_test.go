package tracking

import (
	"io"
	"log/slog"
	"path/filepath"
	"strings"
	"testing"
)

func setupTracker(t *testing.T) *Tracker {
	t.Helper()

	store, err := NewStore(filepath.Join(t.TempDir(), "tracking.db"))
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return New(store, "https://track.example.com/", logger)
}

func TestDecorateAppendsPixel(t *testing.T) {
	tr := setupTracker(t)

	out := tr.Decorate("camp-1", "a@x.com", "<p>Hello</p>")

	if !strings.Contains(out, `https://track.example.com/t/o/`) {
		t.Errorf("decorated body missing open pixel: %s", out)
	}
	if !strings.HasPrefix(out, "<p>Hello</p>") {
		t.Errorf("original body altered: %s", out)
	}
}

func TestDecorateWrapsLinks(t *testing.T) {
	tr := setupTracker(t)

	out := tr.Decorate("camp-1", "a@x.com", `<a href="https://shop.example.com/sale">Sale</a>`)

	if strings.Contains(out, `href="https://shop.example.com/sale"`) {
		t.Errorf("original link not wrapped: %s", out)
	}
	if !strings.Contains(out, `href="https://track.example.com/t/c/`) {
		t.Errorf("decorated body missing click link: %s", out)
	}
}

func TestOpenAndClickEvents(t *testing.T) {
	tr := setupTracker(t)

	out := tr.Decorate("camp-1", "a@x.com", `<a href="https://shop.example.com">Go</a>`)

	clickID := extractToken(t, out, "/t/c/", `"`)
	openID := extractToken(t, out, "/t/o/", ".png")

	token, err := tr.RecordClick(clickID)
	if err != nil {
		t.Fatalf("RecordClick() error = %v", err)
	}
	if token == nil || token.TargetURL != "https://shop.example.com" {
		t.Fatalf("RecordClick() token = %+v, want target https://shop.example.com", token)
	}

	if _, err := tr.RecordOpen(openID); err != nil {
		t.Fatalf("RecordOpen() error = %v", err)
	}

	events, err := tr.store.EventsByCampaign("camp-1")
	if err != nil {
		t.Fatalf("EventsByCampaign() error = %v", err)
	}
	if len(events) != 2 {
		t.Fatalf("events = %d, want 2", len(events))
	}

	kinds := map[string]bool{}
	for _, e := range events {
		kinds[e.Kind] = true
		if e.Recipient != "a@x.com" {
			t.Errorf("event recipient = %q, want a@x.com", e.Recipient)
		}
	}
	if !kinds["open"] || !kinds["click"] {
		t.Errorf("event kinds = %v, want open and click", kinds)
	}
}

func TestRecordUnknownToken(t *testing.T) {
	tr := setupTracker(t)

	if token, err := tr.RecordOpen("nope"); err != nil || token != nil {
		t.Errorf("RecordOpen(unknown) = %v, %v; want nil, nil", token, err)
	}
	if token, err := tr.RecordClick("nope"); err != nil || token != nil {
		t.Errorf("RecordClick(unknown) = %v, %v; want nil, nil", token, err)
	}
}

func extractToken(t *testing.T, body, prefix, suffix string) string {
	t.Helper()

	i := strings.Index(body, prefix)
	if i < 0 {
		t.Fatalf("body missing %q: %s", prefix, body)
	}
	rest := body[i+len(prefix):]
	j := strings.Index(rest, suffix)
	if j < 0 {
		t.Fatalf("body missing token terminator %q: %s", suffix, body)
	}
	return rest[:j]
}
