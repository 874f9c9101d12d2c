// Package fetch downloads university pages and reduces them to readable text.
package fetch

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	commonhttp "unipal-workers/internal/common/http"
	"unipal-workers/internal/common/logger"
)

// UserAgent is sent with every page request; some university sites refuse
// clients that do not look like a browser.
const UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

var (
	ErrPageFetchFailed = errors.New("PAGE_FETCH_FAILED")
	ErrNotHTML         = errors.New("PAGE_NOT_HTML")
	ErrBodyTooLarge    = errors.New("PAGE_TOO_LARGE")
)

var blankLines = regexp.MustCompile(`\n\s*\n+`)

// Cache stores extracted page text between runs.
type Cache interface {
	GetString(ctx context.Context, key string) (string, bool, error)
	SetString(ctx context.Context, key, value string, ttl time.Duration) error
}

type Config struct {
	Timeout      time.Duration
	MaxBodyBytes int64
	CacheTTL     time.Duration
}

func DefaultConfig() Config {
	return Config{
		Timeout:      30 * time.Second,
		MaxBodyBytes: 5 << 20,
		CacheTTL:     24 * time.Hour,
	}
}

type Fetcher struct {
	config Config
	client *commonhttp.Client
	cache  Cache
	logger logger.Logger
}

func NewFetcher(config Config, log logger.Logger) *Fetcher {
	if config.Timeout <= 0 {
		config.Timeout = 30 * time.Second
	}
	if config.MaxBodyBytes <= 0 {
		config.MaxBodyBytes = 5 << 20
	}
	return &Fetcher{
		config: config,
		client: commonhttp.NewClient(config.Timeout, commonhttp.WithUserAgent(UserAgent)),
		logger: logger.OrNop(log).WithFields(map[string]interface{}{"component": "fetcher"}),
	}
}

// WithCache enables caching of extracted text.
func (f *Fetcher) WithCache(c Cache) *Fetcher {
	f.cache = c
	return f
}

func cacheKey(url string) string {
	sum := sha1.Sum([]byte(strings.TrimSpace(url)))
	return "unipal:page:" + hex.EncodeToString(sum[:])
}

// Fetch returns the main text of the page at url.
func (f *Fetcher) Fetch(ctx context.Context, url string) (string, error) {
	key := cacheKey(url)
	if f.cache != nil {
		if text, ok, err := f.cache.GetString(ctx, key); err != nil {
			f.logger.Warn("page cache read failed", map[string]interface{}{"error": err})
		} else if ok {
			return text, nil
		}
	}

	text, err := f.download(ctx, url)
	if err != nil {
		return "", err
	}

	if f.cache != nil && text != "" {
		if err := f.cache.SetString(ctx, key, text, f.config.CacheTTL); err != nil {
			f.logger.Warn("page cache write failed", map[string]interface{}{"error": err})
		}
	}
	return text, nil
}

func (f *Fetcher) download(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPageFetchFailed, err)
	}
	req.Header.Set("Accept", "text/html,application/xhtml+xml")

	resp, err := f.client.DoWithContext(ctx, req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPageFetchFailed, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: status %d", ErrPageFetchFailed, resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "" && !strings.Contains(ct, "html") {
		return "", fmt.Errorf("%w: content type %s", ErrNotHTML, ct)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, f.config.MaxBodyBytes+1))
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrPageFetchFailed, err)
	}
	if int64(len(body)) > f.config.MaxBodyBytes {
		return "", fmt.Errorf("%w: more than %d bytes", ErrBodyTooLarge, f.config.MaxBodyBytes)
	}

	return ExtractText(string(body))
}

// ExtractText drops scripts, styles, frames and site chrome, then returns
// the text of <main>, else <article>, else <body>, with blank lines collapsed.
func ExtractText(html string) (string, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("%w: parse html: %v", ErrPageFetchFailed, err)
	}
	doc.Find("script, style, iframe, nav, footer, noscript").Remove()

	var sel *goquery.Selection
	for _, tag := range []string{"main", "article", "body"} {
		if s := doc.Find(tag).First(); s.Length() > 0 {
			sel = s
			break
		}
	}
	if sel == nil {
		sel = doc.Selection
	}

	lines := strings.Split(sel.Text(), "\n")
	for i, l := range lines {
		lines[i] = strings.TrimSpace(l)
	}
	text := blankLines.ReplaceAllString(strings.Join(lines, "\n"), "\n")
	return strings.TrimSpace(text), nil
}
