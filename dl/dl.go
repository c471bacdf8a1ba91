// Package dl fetches game client JARs from the launcher metadata service, so meshing assets can
// be built without a local installation.
package dl

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"path/filepath"
	"time"
)

const VersionManifestURL = "https://launchermeta.mojang.com/mc/game/version_manifest.json"

var ErrUnknownVersion = errors.New("unknown version")

type DownloadMetadata struct {
	SHA1 string `json:"sha1"`
	Size int64  `json:"size"`
	URL  string `json:"url"`
}

type VersionMetadata struct {
	Downloads map[string]*DownloadMetadata `json:"downloads"`
}

type Version struct {
	Id          string `json:"id"`
	Type        string `json:"type"`
	Time        string `json:"time"`
	ReleaseTime string `json:"releaseTime"`
	URL         string `json:"url"`
}

type VersionManifest struct {
	Latest struct {
		Release  string `json:"release"`
		Snapshot string `json:"snapshot"`
	} `json:"latest"`
	Versions []Version `json:"versions"`
}

func (v *VersionManifest) GetLatestRelease() *Version {
	return v.GetRelease(v.Latest.Release)
}

func (v *VersionManifest) GetRelease(id string) *Version {
	for i := range v.Versions {
		if v.Versions[i].Id == id {
			return &v.Versions[i]
		}
	}
	return nil
}

type Client struct {
	HTTP        *http.Client
	ManifestURL string
}

func NewClient() *Client {
	return &Client{
		HTTP:        &http.Client{Timeout: 30 * time.Second},
		ManifestURL: VersionManifestURL,
	}
}

func (c *Client) getJSON(ctx context.Context, url string, v any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: %s", url, resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(v)
}

func (c *Client) GetVersionManifest(ctx context.Context) (*VersionManifest, error) {
	var manifest VersionManifest
	if err := c.getJSON(ctx, c.ManifestURL, &manifest); err != nil {
		return nil, err
	}
	return &manifest, nil
}

func (c *Client) GetMetadata(ctx context.Context, v *Version) (*VersionMetadata, error) {
	var meta VersionMetadata
	if err := c.getJSON(ctx, v.URL, &meta); err != nil {
		return nil, err
	}
	return &meta, nil
}

// Get streams the download into dst and checks its SHA1 when the metadata carries one.
func (c *Client) Get(ctx context.Context, d *DownloadMetadata, dst io.Writer) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, d.URL, nil)
	if err != nil {
		return err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("GET %s: %s", d.URL, resp.Status)
	}

	hash := sha1.New()
	if _, err := io.Copy(io.MultiWriter(dst, hash), resp.Body); err != nil {
		return err
	}
	if d.SHA1 != "" {
		if sum := hex.EncodeToString(hash.Sum(nil)); sum != d.SHA1 {
			return fmt.Errorf("sha1 mismatch for %s: got %s, want %s", d.URL, sum, d.SHA1)
		}
	}
	return nil
}

// FetchClientJAR downloads the client JAR for version ("" for the latest release) into dir and
// returns its path. A JAR already present in dir is reused.
func (c *Client) FetchClientJAR(ctx context.Context, version, dir string) (string, error) {
	if version != "" {
		path := filepath.Join(dir, version+".jar")
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}

	manifest, err := c.GetVersionManifest(ctx)
	if err != nil {
		return "", err
	}
	var v *Version
	if version == "" {
		v = manifest.GetLatestRelease()
	} else {
		v = manifest.GetRelease(version)
	}
	if v == nil {
		return "", fmt.Errorf("%w: %q", ErrUnknownVersion, version)
	}

	path := filepath.Join(dir, v.Id+".jar")
	if _, err := os.Stat(path); err == nil {
		return path, nil
	}

	meta, err := c.GetMetadata(ctx, v)
	if err != nil {
		return "", err
	}
	client, ok := meta.Downloads["client"]
	if !ok {
		return "", fmt.Errorf("version %s has no client download", v.Id)
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	tmp, err := os.CreateTemp(dir, v.Id+".*.part")
	if err != nil {
		return "", err
	}
	defer os.Remove(tmp.Name())

	if err := c.Get(ctx, client, tmp); err != nil {
		tmp.Close()
		return "", err
	}
	if err := tmp.Close(); err != nil {
		return "", err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return "", err
	}
	return path, nil
}
