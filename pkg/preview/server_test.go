package preview

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/otherjamesbrown/speech-bubbles/pkg/cache"
	pferrors "github.com/otherjamesbrown/speech-bubbles/pkg/errors"
	"github.com/otherjamesbrown/speech-bubbles/pkg/logging"
	"github.com/otherjamesbrown/speech-bubbles/pkg/observability"
	"github.com/otherjamesbrown/speech-bubbles/pkg/settings"
)

const taggedNote = `---
tags: [transcript]
---
[[Alice]] [10:00]: Morning
[[me]]: Hi Alice
`

const untaggedNote = `[[Bob]]: not a transcript note
`

type testServer struct {
	srv   *Server
	root  string
	reg   *prometheus.Registry
	cache *cache.Memory
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	root := t.TempDir()
	writeNote(t, root, "standup.md", taggedNote)
	writeNote(t, root, "scratch.md", untaggedNote)
	writeNote(t, root, "team/retro.md", taggedNote)
	writeNote(t, root, ".obsidian/hidden.md", taggedNote)

	reg := prometheus.NewRegistry()
	mem := cache.NewMemory(time.Minute)
	srv := NewServer(Options{
		Root:     root,
		Cache:    mem,
		Metrics:  observability.NewRenderMetrics(reg),
		Gatherer: reg,
		Logger:   logging.NewNopLogger(),
	})
	return &testServer{srv: srv, root: root, reg: reg, cache: mem}
}

func writeNote(t *testing.T, root, rel, content string) {
	t.Helper()
	path := filepath.Join(root, filepath.FromSlash(rel))
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func (ts *testServer) get(t *testing.T, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	ts.srv.Handler().ServeHTTP(w, req)
	return w
}

func decodeError(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var body ErrorResponse
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	return body
}

func TestHealthEndpoint(t *testing.T) {
	ts := newTestServer(t)
	w := ts.get(t, "/healthz")

	require.Equal(t, http.StatusOK, w.Code)
	var body map[string]any
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "ok", body["status"])
	assert.Equal(t, "memory", body["cache"])
}

func TestVersionEndpoint(t *testing.T) {
	ts := newTestServer(t)
	w := ts.get(t, "/version")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), `"service_name":"speech-bubbles"`)
}

func TestListNotes(t *testing.T) {
	ts := newTestServer(t)
	w := ts.get(t, "/notes")

	require.Equal(t, http.StatusOK, w.Code)
	var entries []NoteEntry
	require.NoError(t, json.NewDecoder(w.Body).Decode(&entries))
	assert.Equal(t, []NoteEntry{
		{Path: "scratch.md", URL: "/notes/scratch.md"},
		{Path: "standup.md", URL: "/notes/standup.md"},
		{Path: "team/retro.md", URL: "/notes/team/retro.md"},
	}, entries)
}

func TestRootRedirects(t *testing.T) {
	ts := newTestServer(t)
	w := ts.get(t, "/")
	assert.Equal(t, http.StatusFound, w.Code)
	assert.Equal(t, "/notes", w.Header().Get("Location"))
}

func TestRenderNote_Page(t *testing.T) {
	ts := newTestServer(t)
	w := ts.get(t, "/notes/standup.md")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/html; charset=utf-8", w.Header().Get("Content-Type"))
	body := w.Body.String()
	assert.True(t, strings.HasPrefix(body, "<!DOCTYPE html>"))
	assert.Contains(t, body, "speech-bubbles-owner")
	assert.Contains(t, body, "Morning")
	assert.Contains(t, body, `"/ws"`)
}

func TestRenderNote_ExtensionlessPath(t *testing.T) {
	ts := newTestServer(t)
	w := ts.get(t, "/notes/team/retro?format=json")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/json", w.Header().Get("Content-Type"))

	var body struct {
		Path  string `json:"path"`
		Stats struct {
			Bubbles int `json:"bubbles"`
		} `json:"stats"`
	}
	require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
	assert.Equal(t, "team/retro.md", body.Path)
	assert.Equal(t, 2, body.Stats.Bubbles)
}

func TestRenderNote_Formats(t *testing.T) {
	ts := newTestServer(t)

	w := ts.get(t, "/notes/standup.md?format=html")
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(w.Body.String(), `<div class="speech-bubbles-document"`))

	w = ts.get(t, "/notes/standup.md?format=terminal")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Hi Alice")

	w = ts.get(t, "/notes/standup.md?format=yaml")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "path: standup.md")
}

func TestRenderNote_Errors(t *testing.T) {
	ts := newTestServer(t)

	tests := []struct {
		name   string
		target string
		status int
		code   pferrors.ErrorCode
	}{
		{"missing note", "/notes/nope.md", http.StatusNotFound, pferrors.ErrCodeNoteNotFound},
		{"not a note", "/notes/image.png", http.StatusNotFound, pferrors.ErrCodeNoteNotFound},
		{"traversal", "/notes/../../etc/passwd.md", http.StatusNotFound, pferrors.ErrCodeNoteNotFound},
		{"untagged", "/notes/scratch.md", http.StatusForbidden, pferrors.ErrCodeNoteDisabled},
		{"bad format", "/notes/standup.md?format=pdf", http.StatusUnsupportedMediaType, pferrors.ErrCodeUnsupportedFormat},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			w := ts.get(t, tc.target)
			require.Equal(t, tc.status, w.Code)
			body := decodeError(t, w)
			assert.Equal(t, tc.code, body.Code)
			assert.NotEmpty(t, body.Message)
		})
	}
}

func TestRenderNote_Force(t *testing.T) {
	ts := newTestServer(t)
	w := ts.get(t, "/notes/scratch.md?force=1&format=html")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "not a transcript note")
}

func TestRenderNote_InvalidSettings(t *testing.T) {
	ts := newTestServer(t)
	ts.srv.opts.Settings = func() (settings.Settings, error) {
		return settings.Settings{}, assert.AnError
	}

	w := ts.get(t, "/notes/standup.md")
	require.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Equal(t, pferrors.ErrCodeSettingsInvalid, decodeError(t, w).Code)
}

func TestRenderNote_Cached(t *testing.T) {
	ts := newTestServer(t)

	first := ts.get(t, "/notes/standup.md")
	require.Equal(t, http.StatusOK, first.Code)
	assert.Equal(t, 1, ts.cache.Len())

	second := ts.get(t, "/notes/standup.md")
	require.Equal(t, http.StatusOK, second.Code)
	assert.Equal(t, first.Body.String(), second.Body.String())

	// Editing the note changes the key.
	writeNote(t, ts.root, "standup.md", taggedNote+"[[Alice]]: Bye\n")
	third := ts.get(t, "/notes/standup.md")
	require.Equal(t, http.StatusOK, third.Code)
	assert.Contains(t, third.Body.String(), "Bye")
	assert.Equal(t, 2, ts.cache.Len())

	metrics := ts.get(t, "/metrics").Body.String()
	assert.Contains(t, metrics, `speech_bubbles_cache_lookups_total{backend="memory",result="hit"} 1`)
	assert.Contains(t, metrics, `speech_bubbles_cache_lookups_total{backend="memory",result="miss"} 2`)
	assert.Contains(t, metrics, `speech_bubbles_http_requests_total{code="200",route="/notes/*"} 3`)
	assert.Contains(t, metrics, `speech_bubbles_render_passes_total{status="success",trigger="serve"} 2`)
}

func TestRenderNote_CachedPerPath(t *testing.T) {
	ts := newTestServer(t)

	// standup.md and team/retro.md hold identical bytes.
	paths := map[string]string{
		"/notes/standup.md?format=json":    "standup.md",
		"/notes/team/retro.md?format=json": "team/retro.md",
	}
	for target, want := range paths {
		for i := 0; i < 2; i++ {
			w := ts.get(t, target)
			require.Equal(t, http.StatusOK, w.Code)

			var body struct {
				Path string `json:"path"`
			}
			require.NoError(t, json.NewDecoder(w.Body).Decode(&body))
			assert.Equal(t, want, body.Path, target)
		}
	}
	assert.Equal(t, 2, ts.cache.Len())
}

func TestStylesheet(t *testing.T) {
	ts := newTestServer(t)
	w := ts.get(t, StylePath)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "text/css; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), ".speech-bubbles-bubble")
}

func TestLiveReload(t *testing.T) {
	ts := newTestServer(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go ts.srv.Hub().Run(ctx)

	httpServer := httptest.NewServer(ts.srv.Handler())
	defer httpServer.Close()

	url := "ws" + strings.TrimPrefix(httpServer.URL, "http") + WSPath
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return ts.srv.Hub().ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	ts.srv.Hub().Broadcast(ReloadEvent{Path: "standup.md"})

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var event ReloadEvent
	require.NoError(t, conn.ReadJSON(&event))
	assert.Equal(t, ReloadEvent{Type: "reload", Path: "standup.md"}, event)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return ts.srv.Hub().ClientCount() == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestWatchNotes(t *testing.T) {
	root := t.TempDir()
	writeNote(t, root, "a.md", "one")
	require.NoError(t, os.MkdirAll(filepath.Join(root, "sub"), 0755))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	changes := make(chan string, 10)
	done := make(chan error, 1)
	go func() {
		done <- WatchNotes(ctx, root, func(rel string) { changes <- rel }, logging.NewNopLogger())
	}()

	// Give the watcher time to register.
	time.Sleep(100 * time.Millisecond)

	writeNote(t, root, "a.md", "two")
	writeNote(t, root, "sub/b.md", "three")
	writeNote(t, root, "ignored.txt", "x")

	seen := map[string]bool{}
	timeout := time.After(3 * time.Second)
	for len(seen) < 2 {
		select {
		case rel := <-changes:
			seen[rel] = true
		case <-timeout:
			t.Fatalf("timed out waiting for changes, saw %v", seen)
		}
	}
	assert.True(t, seen["a.md"])
	assert.True(t, seen["sub/b.md"])
	assert.False(t, seen["ignored.txt"])

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("WatchNotes did not stop")
	}
}

func TestResolve(t *testing.T) {
	srv := NewServer(Options{Root: "/vault", Logger: logging.NewNopLogger(), Gatherer: prometheus.NewRegistry()})

	rel, file, err := srv.resolve("team/retro")
	require.NoError(t, err)
	assert.Equal(t, "team/retro.md", rel)
	assert.Equal(t, filepath.Join("/vault", "team", "retro.md"), file)

	rel, _, err = srv.resolve("../../secret.md")
	require.NoError(t, err)
	assert.Equal(t, "secret.md", rel)

	_, _, err = srv.resolve("")
	assert.ErrorIs(t, err, pferrors.ErrNotFound)
}

func TestRun_Shutdown(t *testing.T) {
	srv := NewServer(Options{
		Root:     t.TempDir(),
		Addr:     "127.0.0.1:0",
		Logger:   logging.NewNopLogger(),
		Gatherer: prometheus.NewRegistry(),
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx) }()

	time.Sleep(100 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
