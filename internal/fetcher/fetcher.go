package fetcher

import (
	"context"
	"errors"
	"io"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Fetcher downloads one remote file.
type Fetcher interface {
	// Download fetches the URL and returns the response body.
	Download(ctx context.Context, url string) (io.ReadCloser, error)

	// DownloadToFile fetches the URL into path. Returns bytes written.
	DownloadToFile(ctx context.Context, url string, path string) (int64, error)
}

// Source is one archive to download.
type Source struct {
	Name    string
	URL     string
	Extract bool     // unzip next to the archive, into a directory named Name
	Include []string // base-name patterns to extract; all entries when empty
}

// Result reports what happened to one Source.
type Result struct {
	Source   Source
	Path     string
	Bytes    int64
	Skipped  bool // the server answered 304 for the stored ETag
	Files    []string
	Duration time.Duration
	Err      error
}

// Options configures a Client.
type Options struct {
	HTTP        HTTPOptions
	FTP         FTPOptions
	Concurrency int // default 2
}

// Client fetches Sources over http, https and ftp.
type Client struct {
	http        *HTTPFetcher
	ftp         *FTPFetcher
	concurrency int
}

// New creates a Client.
func New(opts Options) *Client {
	if opts.Concurrency < 1 {
		opts.Concurrency = 2
	}
	return &Client{
		http:        NewHTTPFetcher(opts.HTTP),
		ftp:         NewFTPFetcher(opts.FTP),
		concurrency: opts.Concurrency,
	}
}

// For returns the fetcher serving the scheme of rawURL.
func (c *Client) For(rawURL string) (Fetcher, error) {
	u, err := url.Parse(rawURL)
	if err != nil {
		return nil, eris.Wrapf(err, "fetch: parse %s", rawURL)
	}
	switch u.Scheme {
	case "http", "https":
		return c.http, nil
	case "ftp":
		return c.ftp, nil
	default:
		return nil, eris.Errorf("fetch: unsupported scheme %q in %s", u.Scheme, rawURL)
	}
}

// FileName is the local name of the archive of src: the last URL path
// segment, or src.Name.
func FileName(src Source) string {
	if u, err := url.Parse(src.URL); err == nil {
		if base := path.Base(u.Path); base != "" && base != "." && base != "/" {
			return base
		}
	}
	return src.Name
}

// etagPath is the sidecar that stores the ETag of a downloaded archive.
func etagPath(p string) string { return p + ".etag" }

// Fetch downloads src into destDir and, when src.Extract is set and the
// archive is a zip, extracts it into destDir/src.Name. An archive already on
// disk whose stored ETag the server confirms is not downloaded again.
func (c *Client) Fetch(ctx context.Context, src Source, destDir string) Result {
	start := time.Now()
	res := Result{Source: src, Path: filepath.Join(destDir, FileName(src))}
	log := zap.L().With(zap.String("component", "fetch"), zap.String("source", src.Name))

	res.Err = func() error {
		f, err := c.For(src.URL)
		if err != nil {
			return err
		}
		if err := os.MkdirAll(destDir, 0o755); err != nil {
			return eris.Wrapf(err, "fetch: create %s", destDir)
		}

		if f == c.http {
			res.Bytes, res.Skipped, err = c.fetchHTTP(ctx, src.URL, res.Path)
		} else {
			res.Bytes, err = f.DownloadToFile(ctx, src.URL, res.Path)
		}
		if err != nil {
			return eris.Wrapf(err, "fetch: %s", src.Name)
		}

		if src.Extract && strings.EqualFold(filepath.Ext(res.Path), ".zip") {
			dir := filepath.Join(destDir, src.Name)
			if len(src.Include) > 0 {
				res.Files, err = ExtractZIPMatching(res.Path, dir, src.Include...)
			} else {
				res.Files, err = ExtractZIP(res.Path, dir)
			}
			if err != nil {
				return eris.Wrapf(err, "fetch: extract %s", src.Name)
			}
		}
		return nil
	}()
	res.Duration = time.Since(start)

	if res.Err != nil {
		log.Error("fetch failed", zap.String("url", src.URL), zap.Error(res.Err))
		return res
	}
	log.Info("fetched",
		zap.String("path", res.Path),
		zap.Int64("bytes", res.Bytes),
		zap.Bool("skipped", res.Skipped),
		zap.Int("files", len(res.Files)),
		zap.Duration("duration", res.Duration),
	)
	return res
}

func (c *Client) fetchHTTP(ctx context.Context, rawURL, dest string) (int64, bool, error) {
	var etag string
	if _, err := os.Stat(dest); err == nil {
		if raw, err := os.ReadFile(etagPath(dest)); err == nil {
			etag = strings.TrimSpace(string(raw))
		}
	}

	body, newETag, changed, err := c.http.DownloadIfChanged(ctx, rawURL, etag)
	if err != nil {
		return 0, false, err
	}
	if !changed {
		return 0, true, nil
	}
	defer body.Close() //nolint:errcheck

	n, err := writeFile(dest, body)
	if err != nil {
		return n, false, err
	}
	if newETag != "" {
		if err := os.WriteFile(etagPath(dest), []byte(newETag), 0o644); err != nil {
			zap.L().Warn("fetch: could not store etag", zap.String("path", dest), zap.Error(err))
		}
	} else {
		_ = os.Remove(etagPath(dest))
	}
	return n, false, nil
}

// FetchAll fetches every source with bounded concurrency. One failure does
// not stop the others; the failures are joined in the returned error.
func (c *Client) FetchAll(ctx context.Context, sources []Source, destDir string) ([]Result, error) {
	results := make([]Result, len(sources))

	var (
		mu   sync.Mutex
		errs []error
	)
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(c.concurrency)
	for i, src := range sources {
		g.Go(func() error {
			res := c.Fetch(gctx, src, destDir)
			results[i] = res
			if res.Err != nil {
				mu.Lock()
				errs = append(errs, res.Err)
				mu.Unlock()
			}
			return nil // don't abort the batch on an individual failure
		})
	}
	_ = g.Wait()

	return results, errors.Join(errs...)
}

// writeFile copies r into path through a temporary file renamed on
// success.
func writeFile(path string, r io.Reader) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), "."+filepath.Base(path)+".*.part")
	if err != nil {
		return 0, eris.Wrap(err, "create file")
	}
	n, err := io.Copy(tmp, r)
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		_ = os.Remove(tmp.Name())
		return n, eris.Wrap(err, "write file")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return n, eris.Wrap(err, "rename file")
	}
	return n, nil
}
