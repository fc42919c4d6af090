package services

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"strings"
	"syscall"
	"time"

	"github.com/gocolly/colly/v2"
)

// ErrPrivateHost is returned for URLs that resolve to loopback, private or
// link-local addresses, or that use a scheme other than http(s).
var ErrPrivateHost = errors.New("url does not point to a public web host")

// PageService fetches the readable text of a job posting page.
type PageService struct {
	UserAgent string
	Timeout   time.Duration
	// AllowPrivate lifts the public-address restriction.
	AllowPrivate bool
}

func NewPageService() *PageService {
	return &PageService{
		UserAgent: "Mozilla/5.0 (compatible; ats-job-tracker/1.0)",
		Timeout:   20 * time.Second,
	}
}

// FetchText downloads rawURL and returns the text of its body with scripts,
// styles and page chrome removed. The fetch stops when ctx is cancelled.
func (s *PageService) FetchText(ctx context.Context, rawURL string) (string, error) {
	u, err := url.Parse(rawURL)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
		return "", fmt.Errorf("%w: %s", ErrPrivateHost, rawURL)
	}

	ctx, cancel := context.WithTimeout(ctx, s.Timeout)
	defer cancel()

	c := colly.NewCollector(
		colly.UserAgent(s.UserAgent),
		colly.MaxDepth(1),
	)
	c.SetRequestTimeout(s.Timeout)
	c.WithTransport(s.transport(ctx))

	var text string
	var fetchErr error
	c.OnHTML("body", func(e *colly.HTMLElement) {
		e.DOM.Find("script, style, noscript, nav, footer, header, svg").Remove()
		text = strings.Join(strings.Fields(e.DOM.Text()), " ")
	})
	c.OnError(func(r *colly.Response, err error) {
		fetchErr = fmt.Errorf("fetch %s: status %d: %w", rawURL, r.StatusCode, err)
	})

	if err := c.Visit(rawURL); err != nil && fetchErr == nil {
		fetchErr = fmt.Errorf("fetch %s: %w", rawURL, err)
	}
	c.Wait()

	if fetchErr != nil {
		return "", fetchErr
	}
	if text == "" {
		return "", fmt.Errorf("fetch %s: page has no readable text", rawURL)
	}
	return text, nil
}

// transport checks every dialled address, redirects included, and binds the
// requests to ctx, which also carries the request timeout.
func (s *PageService) transport(ctx context.Context) http.RoundTripper {
	dialer := &net.Dialer{Timeout: 10 * time.Second}
	if !s.AllowPrivate {
		dialer.Control = publicOnly
	}
	base := http.DefaultTransport.(*http.Transport).Clone()
	base.DialContext = dialer.DialContext
	base.Proxy = nil
	return contextTransport{ctx: ctx, base: base}
}

type contextTransport struct {
	ctx  context.Context
	base http.RoundTripper
}

func (t contextTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	return t.base.RoundTrip(req.WithContext(t.ctx))
}

func publicOnly(_, address string, _ syscall.RawConn) error {
	host, _, err := net.SplitHostPort(address)
	if err != nil {
		return err
	}
	ip := net.ParseIP(host)
	if ip == nil || !isPublicIP(ip) {
		return fmt.Errorf("%w: %s", ErrPrivateHost, host)
	}
	return nil
}

func isPublicIP(ip net.IP) bool {
	return !(ip.IsLoopback() || ip.IsPrivate() || ip.IsUnspecified() ||
		ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsInterfaceLocalMulticast() || ip.IsMulticast())
}
