package dl

import (
	"bytes"
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
)

var jarBytes = []byte("PK fake client jar")

type launcher struct {
	srv       *httptest.Server
	jarHits   atomic.Int32
	badDigest atomic.Bool
}

func newLauncher(t *testing.T) *launcher {
	l := &launcher{}
	mux := http.NewServeMux()
	mux.HandleFunc("/manifest.json", func(rw http.ResponseWriter, r *http.Request) {
		var m VersionManifest
		m.Latest.Release = "1.20.4"
		m.Versions = []Version{
			{Id: "1.20.4", Type: "release", URL: l.srv.URL + "/v/1.20.4.json"},
			{Id: "1.19.2", Type: "release", URL: l.srv.URL + "/v/1.19.2.json"},
		}
		_ = json.NewEncoder(rw).Encode(m)
	})
	mux.HandleFunc("/v/", func(rw http.ResponseWriter, r *http.Request) {
		sum := sha1.Sum(jarBytes)
		digest := hex.EncodeToString(sum[:])
		if l.badDigest.Load() {
			digest = strings.Repeat("0", 40)
		}
		meta := VersionMetadata{Downloads: map[string]*DownloadMetadata{
			"client": {SHA1: digest, Size: int64(len(jarBytes)), URL: l.srv.URL + "/client.jar"},
		}}
		_ = json.NewEncoder(rw).Encode(meta)
	})
	mux.HandleFunc("/client.jar", func(rw http.ResponseWriter, r *http.Request) {
		l.jarHits.Add(1)
		_, _ = rw.Write(jarBytes)
	})
	l.srv = httptest.NewServer(mux)
	t.Cleanup(l.srv.Close)
	return l
}

func (l *launcher) client() *Client {
	c := NewClient()
	c.HTTP = l.srv.Client()
	c.ManifestURL = l.srv.URL + "/manifest.json"
	return c
}

func TestVersionManifest(t *testing.T) {
	l := newLauncher(t)
	m, err := l.client().GetVersionManifest(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if v := m.GetLatestRelease(); v == nil || v.Id != "1.20.4" {
		t.Fatalf("latest = %+v", v)
	}
	if m.GetRelease("1.19.2") == nil || m.GetRelease("b1.7.3") != nil {
		t.Fatalf("release lookup broken")
	}
}

func TestFetchClientJAR(t *testing.T) {
	l := newLauncher(t)
	dir := filepath.Join(t.TempDir(), "jars")
	c := l.client()

	path, err := c.FetchClientJAR(context.Background(), "", dir)
	if err != nil {
		t.Fatal(err)
	}
	if filepath.Base(path) != "1.20.4.jar" {
		t.Fatalf("path = %s", path)
	}
	b, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(b, jarBytes) {
		t.Fatalf("jar contents differ")
	}

	again, err := c.FetchClientJAR(context.Background(), "1.20.4", dir)
	if err != nil || again != path {
		t.Fatalf("cached fetch = %s, %v", again, err)
	}
	if l.jarHits.Load() != 1 {
		t.Fatalf("jar downloaded %d times", l.jarHits.Load())
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 1 {
		t.Fatalf("temp files left behind: %d entries", len(entries))
	}
}

func TestFetchClientJARUnknownVersion(t *testing.T) {
	l := newLauncher(t)
	_, err := l.client().FetchClientJAR(context.Background(), "0.0.1", t.TempDir())
	if !errors.Is(err, ErrUnknownVersion) {
		t.Fatalf("err = %v", err)
	}
}

func TestFetchClientJARChecksum(t *testing.T) {
	l := newLauncher(t)
	l.badDigest.Store(true)
	dir := t.TempDir()

	if _, err := l.client().FetchClientJAR(context.Background(), "1.19.2", dir); err == nil || !strings.Contains(err.Error(), "sha1 mismatch") {
		t.Fatalf("err = %v", err)
	}
	if _, err := os.Stat(filepath.Join(dir, "1.19.2.jar")); !os.IsNotExist(err) {
		t.Fatalf("corrupt jar was kept")
	}
}
