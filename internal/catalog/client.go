// Package catalog is a client for the OpenDataSoft explore v2.1 API that
// publishes the rent-control dataset.
package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/Hitoyu22/TP3-datamining/internal/resilience"
)

// Defaults for the public catalog.
const (
	DefaultBaseURL   = "https://data.opendatasoft.com"
	DefaultDatasetID = "logement-encadrement-des-loyers@parisdata"
	DefaultFormat    = "csv"

	apiPrefix = "/api/explore/v2.1/catalog/datasets"
)

// Options configures a Client.
type Options struct {
	BaseURL           string
	DownloadDir       string
	UserAgent         string
	Timeout           time.Duration
	RequestsPerSecond float64
	Retry             resilience.RetryConfig
}

// Client downloads exports and reads metadata from the catalog.
type Client struct {
	base    *url.URL
	dir     string
	agent   string
	http    *http.Client
	limiter *rate.Limiter
	retry   resilience.RetryConfig
}

// New returns a client. Zero options fall back to the public catalog, a
// "data" download directory, a 60s timeout and 5 requests per second.
func New(opts Options) (*Client, error) {
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.DownloadDir == "" {
		opts.DownloadDir = "data"
	}
	if opts.UserAgent == "" {
		opts.UserAgent = "loyers/1.0"
	}
	if opts.Timeout <= 0 {
		opts.Timeout = 60 * time.Second
	}
	if opts.RequestsPerSecond <= 0 {
		opts.RequestsPerSecond = 5
	}
	if opts.Retry.MaxAttempts == 0 {
		opts.Retry = resilience.DefaultRetryConfig()
	}
	if opts.Retry.OnRetry == nil {
		opts.Retry.OnRetry = resilience.RetryLogger("catalog")
	}

	base, err := url.Parse(opts.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, eris.Errorf("catalog: invalid base url %q", opts.BaseURL)
	}

	burst := max(int(opts.RequestsPerSecond), 1)
	return &Client{
		base:    base,
		dir:     opts.DownloadDir,
		agent:   opts.UserAgent,
		http:    &http.Client{Timeout: opts.Timeout},
		limiter: rate.NewLimiter(rate.Limit(opts.RequestsPerSecond), burst),
		retry:   opts.Retry,
	}, nil
}

// ExportPath is where Download stores the export of id in format.
func (c *Client) ExportPath(id, format string) string {
	return filepath.Join(c.dir, id+"."+format)
}

func (c *Client) endpoint(query url.Values, segments ...string) string {
	u := *c.base
	p := apiPrefix
	for _, s := range segments {
		p += "/" + url.PathEscape(s)
	}
	u.Path = p
	u.RawQuery = query.Encode()
	return u.String()
}

// Download fetches the export of dataset id in format into the download
// directory and returns its path. An existing file is reused unless force is
// set. The file is written to a temporary name and renamed when complete.
func (c *Client) Download(ctx context.Context, id, format string, force bool) (string, error) {
	if format == "" {
		format = DefaultFormat
	}
	path := c.ExportPath(id, format)
	log := zap.L().With(zap.String("dataset", id), zap.String("path", path))

	if _, err := os.Stat(path); err == nil {
		if !force {
			log.Info("catalog: export already downloaded")
			return path, nil
		}
		log.Info("catalog: replacing existing export")
	}

	if err := os.MkdirAll(c.dir, 0o755); err != nil {
		return "", eris.Wrapf(err, "catalog: create download dir %s", c.dir)
	}

	target := c.endpoint(nil, id, "exports", format)
	n, err := resilience.DoVal(ctx, c.retry, func(ctx context.Context) (int64, error) {
		body, err := c.get(ctx, target, "")
		if err != nil {
			return 0, err
		}
		defer body.Close()
		return writeAtomic(path, body)
	})
	if err != nil {
		return "", eris.Wrapf(err, "catalog: download %s", id)
	}

	log.Info("catalog: export downloaded", zap.Int64("bytes", n))
	return path, nil
}

// getJSON fetches a metadata document.
func (c *Client) getJSON(ctx context.Context, target string) ([]byte, error) {
	return resilience.DoVal(ctx, c.retry, func(ctx context.Context) ([]byte, error) {
		body, err := c.get(ctx, target, "application/json; charset=utf-8")
		if err != nil {
			return nil, err
		}
		defer body.Close()
		data, err := io.ReadAll(body)
		if err != nil {
			return nil, resilience.NewTransientError(eris.Wrap(err, "read body"), 0)
		}
		return data, nil
	})
}

// get performs one rate-limited GET. Retryable statuses come back as
// resilience.TransientError.
func (c *Client) get(ctx context.Context, target, accept string) (io.ReadCloser, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, eris.Wrap(err, "rate limiter wait")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, eris.Wrap(err, "create request")
	}
	req.Header.Set("User-Agent", c.agent)
	if accept != "" {
		req.Header.Set("Accept", accept)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, eris.Wrapf(err, "GET %s", target)
	}
	if resp.StatusCode != http.StatusOK {
		_ = resp.Body.Close()
		statusErr := &StatusError{URL: target, StatusCode: resp.StatusCode}
		if resilience.IsTransientStatus(resp.StatusCode) {
			return nil, resilience.NewTransientError(statusErr, resp.StatusCode)
		}
		return nil, statusErr
	}
	return resp.Body, nil
}

// StatusError is a non-200 catalog response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("catalog: unexpected status %d from %s", e.StatusCode, e.URL)
}

func writeAtomic(path string, r io.Reader) (int64, error) {
	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".*.part")
	if err != nil {
		return 0, eris.Wrap(err, "create temp file")
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	n, err := io.Copy(tmp, r)
	if err != nil {
		_ = tmp.Close()
		return n, resilience.NewTransientError(eris.Wrap(err, "write export"), 0)
	}
	if err := tmp.Close(); err != nil {
		return n, eris.Wrap(err, "close temp file")
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		return n, eris.Wrap(err, "rename export")
	}
	return n, nil
}

func pageQuery(offset, limit int) url.Values {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	q.Set("timezone", "Europe/Paris")
	q.Set("include_links", "false")
	q.Set("include_app_metas", "false")
	return q
}
