package buildinfo_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"runtime"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/otherjamesbrown/speech-bubbles/pkg/buildinfo"
)

// versionServer mounts the handler the way the preview server does.
func versionServer(t *testing.T) *httptest.Server {
	t.Helper()
	r := chi.NewRouter()
	r.Get("/version", buildinfo.Handler("speech-bubbles"))
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)
	return srv
}

func fetchVersion(t *testing.T, url string) buildinfo.Info {
	t.Helper()
	resp, err := http.Get(url + "/version")
	if err != nil {
		t.Fatalf("GET /version: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}

	var info buildinfo.Info
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return info
}

func TestHandler_ReportsReleaseStamp(t *testing.T) {
	origVersion, origCommit, origBuildTime := buildinfo.Version, buildinfo.Commit, buildinfo.BuildTime
	defer func() {
		buildinfo.Version, buildinfo.Commit, buildinfo.BuildTime = origVersion, origCommit, origBuildTime
	}()

	buildinfo.Version = "v0.4.1"
	buildinfo.Commit = "9f3c2aa"
	buildinfo.BuildTime = "2026-10-01T08:00:00Z"

	info := fetchVersion(t, versionServer(t).URL)

	if info.ServiceName != "speech-bubbles" {
		t.Errorf("service_name = %q", info.ServiceName)
	}
	if info.Version != "v0.4.1" || info.Commit != "9f3c2aa" || info.BuildTime != "2026-10-01T08:00:00Z" {
		t.Errorf("release stamp not reported: %+v", info)
	}
	if want := runtime.GOOS + "/" + runtime.GOARCH; info.Platform != want {
		t.Errorf("platform = %q, want %q", info.Platform, want)
	}
}

func TestHandler_ReadsStampPerRequest(t *testing.T) {
	origVersion := buildinfo.Version
	defer func() { buildinfo.Version = origVersion }()

	srv := versionServer(t)

	buildinfo.Version = "v0.4.1"
	if got := fetchVersion(t, srv.URL).Version; got != "v0.4.1" {
		t.Fatalf("version = %q, want v0.4.1", got)
	}

	buildinfo.Version = "v0.5.0"
	if got := fetchVersion(t, srv.URL).Version; got != "v0.5.0" {
		t.Errorf("version = %q, want v0.5.0 after restamp", got)
	}
}

func TestHandler_RejectsOtherMethods(t *testing.T) {
	srv := versionServer(t)

	resp, err := http.Post(srv.URL+"/version", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /version: %v", err)
	}
	resp.Body.Close()

	if resp.StatusCode != http.StatusMethodNotAllowed {
		t.Errorf("status = %d, want 405", resp.StatusCode)
	}
}
