package security

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/doyensec/safeurl"
)

// MaxCoverSize bounds the body read for one cover image.
const MaxCoverSize = 5 * 1024 * 1024

var (
	ErrBlockedURL    = errors.New("blocked url")
	ErrNotAnImage    = errors.New("response is not an image")
	ErrCoverTooLarge = errors.New("cover image is too large")
)

var allowedSchemes = []string{"http", "https"}

var blockedNetworks = mustParseCIDRs(
	"10.0.0.0/8",
	"172.16.0.0/12",
	"192.168.0.0/16",
	"127.0.0.0/8",
	"169.254.0.0/16",
	"0.0.0.0/8",
	"::1/128",
	"fe80::/10",
	"fc00::/7",
)

func mustParseCIDRs(cidrs ...string) []net.IPNet {
	networks := make([]net.IPNet, 0, len(cidrs))
	for _, cidr := range cidrs {
		_, network, err := net.ParseCIDR(cidr)
		if err != nil {
			panic(fmt.Sprintf("invalid CIDR %s: %v", cidr, err))
		}
		networks = append(networks, *network)
	}
	return networks
}

// Cover is a fetched cover image.
type Cover struct {
	Data        []byte
	ContentType string
}

// CoverFetcher downloads book covers for clients. Its HTTP client rejects
// private, loopback and link-local addresses after DNS resolution.
type CoverFetcher struct {
	client   *http.Client
	validate func(rawURL string) error
}

func NewCoverFetcher(timeout time.Duration) *CoverFetcher {
	cfg := safeurl.GetConfigBuilder().
		SetTimeout(timeout).
		SetAllowedSchemes(allowedSchemes...).
		SetAllowedPorts(80, 443).
		Build()

	return &CoverFetcher{
		client:   safeurl.Client(cfg).Client,
		validate: ValidateURL,
	}
}

// Fetch downloads the image at rawURL.
func (f *CoverFetcher) Fetch(ctx context.Context, rawURL string) (Cover, error) {
	if err := f.validate(rawURL); err != nil {
		return Cover{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return Cover{}, fmt.Errorf("http.NewRequest > %w", err)
	}
	resp, err := f.client.Do(req)
	if err != nil {
		return Cover{}, fmt.Errorf("fetch cover: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		return Cover{}, fmt.Errorf("fetch cover: status %d", resp.StatusCode)
	}
	contentType := resp.Header.Get("Content-Type")
	if !strings.HasPrefix(contentType, "image/") {
		return Cover{}, fmt.Errorf("%w: %s", ErrNotAnImage, contentType)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, MaxCoverSize+1))
	if err != nil {
		return Cover{}, fmt.Errorf("read cover: %w", err)
	}
	if len(data) > MaxCoverSize {
		return Cover{}, ErrCoverTooLarge
	}
	return Cover{Data: data, ContentType: contentType}, nil
}

// ValidateURL rejects URLs that are not http(s), have no host, or point at a
// private address or localhost. It does not resolve DNS.
func ValidateURL(rawURL string) error {
	if rawURL == "" {
		return fmt.Errorf("%w: empty URL", ErrBlockedURL)
	}
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrBlockedURL, err)
	}

	scheme := strings.ToLower(parsed.Scheme)
	if scheme != "http" && scheme != "https" {
		return fmt.Errorf("%w: disallowed scheme %q", ErrBlockedURL, scheme)
	}
	host := parsed.Hostname()
	if host == "" {
		return fmt.Errorf("%w: empty host", ErrBlockedURL)
	}
	if strings.EqualFold(host, "localhost") {
		return fmt.Errorf("%w: blocked host %s", ErrBlockedURL, host)
	}
	if ip := net.ParseIP(host); ip != nil {
		for _, network := range blockedNetworks {
			if network.Contains(ip) {
				return fmt.Errorf("%w: blocked IP address %s", ErrBlockedURL, ip)
			}
		}
	}
	return nil
}
