package catalog

import (
	"compress/gzip"
	"context"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/HK-Bus-ETA/HK-Bus-ETA-sub000/engine/util"
)

// Defaults for the published catalog snapshot.
const (
	DefaultDataURL     = "https://data.hkbuseta.com/data.json.gz"
	DefaultChecksumURL = "https://data.hkbuseta.com/checksum.md5"

	// How long the checksum probe may take before the loader falls
	// back to whatever catalog is cached.
	checksumBudget = 8 * time.Second
)

// Remote is the published catalog snapshot: a gzipped data document
// gated by a checksum file. Check is cheap and bounded; Fetch streams
// the full document.
type Remote struct {
	Client      *http.Client
	DataURL     string
	ChecksumURL string
}

// NewRemote builds a Remote against the default publication URLs.
func NewRemote(client *http.Client) *Remote {
	return &Remote{Client: client, DataURL: DefaultDataURL, ChecksumURL: DefaultChecksumURL}
}

// Check downloads the remote checksum and compares it against the
// persisted one. The request gets its own 8 second budget regardless
// of the caller's deadline.
func (r *Remote) Check(ctx context.Context, persisted string) (changed bool, remote string, err error) {
	ctx, cancel := context.WithTimeout(ctx, checksumBudget)
	defer cancel()

	raw, err := util.Download(ctx, r.Client, r.ChecksumURL)
	if err != nil {
		return false, "", err
	}
	remote = strings.TrimSpace(string(raw))
	return remote != persisted || persisted == "", remote, nil
}

// Fetch downloads and decompresses the catalog document, reporting
// download progress in the range 0.0 to 1.0 when the server announces
// a content length.
func (r *Remote) Fetch(ctx context.Context, progress func(float64)) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, r.DataURL, nil)
	if err != nil {
		return nil, err
	}
	resp, err := r.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode <= 199 || resp.StatusCode >= 300 {
		return nil, util.RequestError{URL: r.DataURL, Status: resp.Status, StatusCode: resp.StatusCode}
	}

	var body io.Reader = resp.Body
	if progress != nil && resp.ContentLength > 0 {
		body = &progressReader{r: resp.Body, total: resp.ContentLength, report: progress}
	}

	gz, err := gzip.NewReader(body)
	if err != nil {
		return nil, util.ShapeMismatchError{URL: r.DataURL, Reason: "not a gzip document: " + err.Error()}
	}
	defer gz.Close()

	return io.ReadAll(gz)
}

// progressReader reports the fraction of the compressed body consumed.
type progressReader struct {
	r      io.Reader
	total  int64
	done   int64
	report func(float64)
}

func (p *progressReader) Read(buf []byte) (int, error) {
	n, err := p.r.Read(buf)
	if n > 0 {
		p.done += int64(n)
		p.report(float64(p.done) / float64(p.total))
	}
	return n, err
}
