// Package scrape turns a job description input into the text sent for analysis.
// Plain text passes through; URLs are fetched and reduced to title and body text.
package scrape

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/netip"
	"strings"
	"syscall"
	"time"

	"github.com/kiranshivaraju/resumatch/internal/cache"
)

// ErrScrape wraps every failure to fetch or parse a job posting URL.
var ErrScrape = errors.New("scrape failed")

// ErrBlockedAddress is returned when a URL resolves to a loopback, private,
// link-local or otherwise non-public address.
var ErrBlockedAddress = errors.New("address not allowed")

// UserAgent is sent on every fetch; many job boards reject default Go clients.
const UserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/91.0.4472.124 Safari/537.36"

// Options configures a Resolver.
type Options struct {
	Timeout      time.Duration
	MaxBodyBytes int64
	CacheTTL     time.Duration

	// AllowPrivateNetworks permits fetching loopback and private addresses.
	AllowPrivateNetworks bool
}

// Resolver fetches job posting URLs. Results are cached when a cache is given.
type Resolver struct {
	client   *http.Client
	cache    cache.Cache
	cacheTTL time.Duration
	maxBody  int64
	logger   *slog.Logger
}

// NewResolver creates a Resolver. c may be nil to disable caching.
func NewResolver(opts Options, c cache.Cache, logger *slog.Logger) *Resolver {
	dialer := &net.Dialer{Timeout: opts.Timeout}
	if !opts.AllowPrivateNetworks {
		dialer.Control = publicOnly
	}
	transport := http.DefaultTransport.(*http.Transport).Clone()
	transport.Proxy = nil
	transport.DialContext = dialer.DialContext

	return &Resolver{
		client:   &http.Client{Timeout: opts.Timeout, Transport: transport},
		cache:    c,
		cacheTTL: opts.CacheTTL,
		maxBody:  opts.MaxBodyBytes,
		logger:   logger,
	}
}

// LooksLikeURL reports whether input starts with an http or https scheme.
func LooksLikeURL(input string) bool {
	s := strings.ToLower(strings.TrimSpace(input))
	return strings.HasPrefix(s, "http://") || strings.HasPrefix(s, "https://")
}

// Resolve returns input unchanged unless it looks like a URL, in which case
// it returns "Title: <title>\n\nBody: <body text>" for the fetched page.
func (r *Resolver) Resolve(ctx context.Context, input string) (string, error) {
	if !LooksLikeURL(input) {
		return input, nil
	}
	target := strings.TrimSpace(input)
	key := cache.ScrapeKey(target)

	if r.cache != nil {
		if cached, found, err := r.cache.Get(ctx, key); err == nil && found {
			return string(cached), nil
		} else if err != nil {
			r.logger.Debug("scrape cache read failed", "error", err)
		}
	}

	text, err := r.fetch(ctx, target)
	if err != nil {
		return "", err
	}

	if r.cache != nil && r.cacheTTL > 0 {
		if err := r.cache.Set(ctx, key, []byte(text), r.cacheTTL); err != nil {
			r.logger.Debug("scrape cache write failed", "error", err)
		}
	}
	return text, nil
}

func (r *Resolver) fetch(ctx context.Context, target string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("%w: building request: %v", ErrScrape, err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml;q=0.9,*/*;q=0.8")

	resp, err := r.client.Do(req)
	if err != nil {
		return "", classifyError(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: status %d", ErrScrape, resp.StatusCode)
	}

	var body io.Reader = resp.Body
	if r.maxBody > 0 {
		body = io.LimitReader(resp.Body, r.maxBody)
	}

	title, text, err := ExtractText(body)
	if err != nil {
		return "", fmt.Errorf("%w: parsing page: %v", ErrScrape, err)
	}
	return "Title: " + title + "\n\nBody: " + text, nil
}

// publicOnly rejects a connection before it is made unless the resolved
// address is a public unicast address. It runs for every dial, so redirects
// and DNS answers are checked too.
func publicOnly(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, address)
	}
	ip, err := netip.ParseAddr(host)
	if err != nil {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, address)
	}
	ip = ip.Unmap()
	if ip.IsLoopback() || ip.IsPrivate() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsInterfaceLocalMulticast() || ip.IsMulticast() || ip.IsUnspecified() || cgnat.Contains(ip) {
		return fmt.Errorf("%w: %s", ErrBlockedAddress, ip)
	}
	return nil
}

// cgnat is the shared address space of RFC 6598.
var cgnat = netip.MustParsePrefix("100.64.0.0/10")

// classifyError maps transport-level errors to ErrScrape with a short cause.
func classifyError(err error) error {
	if errors.Is(err, ErrBlockedAddress) {
		return fmt.Errorf("%w: %w", ErrScrape, err)
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: timeout: %v", ErrScrape, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return fmt.Errorf("%w: timeout: %v", ErrScrape, err)
	}

	return fmt.Errorf("%w: unreachable: %v", ErrScrape, err)
}
