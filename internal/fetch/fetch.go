package fetch

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/dnscache"
)

// How often cached DNS entries are refreshed.
const dnsRefreshInterval = 5 * time.Minute

// Downloads versioned tool archives over HTTP.
//
// Every download is a single attempt: an unavailable upstream fails the
// build immediately, with no retry and no fallback mirror. Responses are
// streamed to disk through a SHA-256 digest so corrupt or tampered archives
// never reach the pipeline.
type Fetcher struct {
	client    *http.Client
	userAgent string
	stop      chan struct{} // Terminates the DNS refresh goroutine.
	stopOnce  sync.Once
}

// Configures a Fetcher.
type Option func(*Fetcher)

// Sets a custom HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(f *Fetcher) {
		f.client = c
	}
}

// Sets the User-Agent header.
func WithUserAgent(ua string) Option {
	return func(f *Fetcher) {
		f.userAgent = ua
	}
}

// Creates a new Fetcher.
//
// The default client caches DNS lookups, since tool downloads and base
// image pulls often hit the same hosts repeatedly within one bake. The
// cache refresh goroutine runs until [Fetcher.Close] is called.
func New(opts ...Option) *Fetcher {
	stop := make(chan struct{})

	resolver := &dnscache.Resolver{}
	go func() {
		ticker := time.NewTicker(dnsRefreshInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				resolver.Refresh(true)
			case <-stop:
				return
			}
		}
	}()

	dialer := &net.Dialer{
		Timeout:   30 * time.Second,
		KeepAlive: 30 * time.Second,
	}

	f := &Fetcher{
		client: &http.Client{
			Timeout: 15 * time.Minute, // Tool archives can run to hundreds of megabytes.
			Transport: &http.Transport{
				DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
					host, port, err := net.SplitHostPort(addr)
					if err != nil {
						return nil, err
					}
					ips, err := resolver.LookupHost(ctx, host)
					if err != nil {
						return nil, err
					}
					for _, ip := range ips {
						conn, err := dialer.DialContext(ctx, network, net.JoinHostPort(ip, port))
						if err == nil {
							return conn, nil
						}
					}
					return nil, fmt.Errorf("failed to dial any resolved IP for %s", host)
				},
				MaxIdleConns:        10,
				IdleConnTimeout:     90 * time.Second,
				TLSHandshakeTimeout: 10 * time.Second,
			},
		},
		userAgent: "kilnd/1.0",
		stop:      stop,
	}
	for _, opt := range opts {
		opt(f)
	}
	return f
}

// Releases the fetcher's background resources. Safe to call more than once.
func (f *Fetcher) Close() {
	f.stopOnce.Do(func() { close(f.stop) })
}

// Downloads url to dest, verifying the SHA-256 digest.
//
// The body is streamed to a temporary file next to dest and renamed into
// place only after the digest matches, so a partial or corrupt download
// never appears at dest. An existing file at dest with a matching digest
// short-circuits the download.
func (f *Fetcher) Download(ctx context.Context, url, dest, sha256hex string) error {
	want := strings.ToLower(strings.TrimSpace(sha256hex))

	if ok, err := verifyFile(dest, want); err == nil && ok {
		slog.Debug("download cache hit", "dest", dest)
		return nil
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0755); err != nil {
		return fmt.Errorf("%w: %w", ErrFetch, err)
	}

	body, err := f.open(ctx, url)
	if err != nil {
		return err
	}
	defer body.Close()

	tmp, err := os.CreateTemp(filepath.Dir(dest), filepath.Base(dest)+".partial-*")
	if err != nil {
		return fmt.Errorf("%w: %w", ErrFetch, err)
	}
	defer os.Remove(tmp.Name())

	h := sha256.New()
	if _, err := io.Copy(io.MultiWriter(tmp, h), body); err != nil {
		tmp.Close()
		return fmt.Errorf("%w: %w", ErrFetch, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("%w: %w", ErrFetch, err)
	}

	got := hex.EncodeToString(h.Sum(nil))
	if got != want {
		return fmt.Errorf("%w: %s: got sha256 %s, want %s", ErrIntegrity, url, got, want)
	}

	if err := os.Rename(tmp.Name(), dest); err != nil {
		return fmt.Errorf("%w: %w", ErrFetch, err)
	}

	slog.Info("downloaded", "url", url, "dest", dest)
	return nil
}

// Performs the HTTP GET and maps status codes to sentinel errors.
func (f *Fetcher) open(ctx context.Context, url string) (io.ReadCloser, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}

	req.Header.Set("User-Agent", f.userAgent)
	req.Header.Set("Accept", "*/*")

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrFetch, err)
	}

	switch {
	case resp.StatusCode == http.StatusOK:
		return resp.Body, nil

	case resp.StatusCode == http.StatusNotFound:
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s", ErrNotFound, url)

	case resp.StatusCode == http.StatusTooManyRequests:
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s", ErrRateLimited, url)

	case resp.StatusCode >= 500:
		resp.Body.Close()
		return nil, fmt.Errorf("%w: %s returned %d", ErrUpstreamDown, url, resp.StatusCode)

	default:
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		resp.Body.Close()
		return nil, fmt.Errorf("%w: unexpected status %d from %s: %s", ErrFetch, resp.StatusCode, url, string(body))
	}
}

// Reports whether the file at path exists and matches the given digest.
func verifyFile(path, sha256hex string) (bool, error) {
	fh, err := os.Open(path)
	if err != nil {
		return false, err
	}
	defer fh.Close()

	h := sha256.New()
	if _, err := io.Copy(h, fh); err != nil {
		return false, err
	}

	return hex.EncodeToString(h.Sum(nil)) == sha256hex, nil
}
