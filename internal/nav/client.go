// Package nav is a read-only client for the NAV ERP OData feed.
package nav

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/Azure/go-ntlmssp"
	"github.com/sirupsen/logrus"
)

const maxResponseBytes = 10 << 20

var fieldPattern = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// Options configures a Client.
type Options struct {
	BaseURL  string
	Username string
	Password string
	Domain   string
	Timeout  time.Duration

	// Cache is optional; CacheTTL <= 0 disables it.
	Cache    Cache
	CacheTTL time.Duration

	// Transport overrides the NTLM round-tripper, mainly for tests.
	Transport http.RoundTripper
	Logger    *logrus.Logger
	Observer  Observer
}

// Observer is told about every upstream request and every cache hit.
type Observer interface {
	ObserveNAV(entitySet string, start time.Time, err error)
	ObserveNAVCacheHit(entitySet string)
}

// Client performs NTLM-authenticated OData lookups.
type Client struct {
	baseURL  string
	username string
	password string
	timeout  time.Duration
	cache    Cache
	cacheTTL time.Duration
	http     *http.Client
	log      *logrus.Logger
	observer Observer
}

func NewClient(opts Options) *Client {
	transport := opts.Transport
	if transport == nil {
		transport = ntlmssp.Negotiator{
			RoundTripper: http.DefaultTransport.(*http.Transport).Clone(),
		}
	}

	username := opts.Username
	if opts.Domain != "" && username != "" {
		username = opts.Domain + `\` + username
	}

	logger := opts.Logger
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Client{
		baseURL:  strings.TrimRight(opts.BaseURL, "/"),
		username: username,
		password: opts.Password,
		timeout:  opts.Timeout,
		cache:    opts.Cache,
		cacheTTL: opts.CacheTTL,
		http:     &http.Client{Transport: transport},
		log:      logger,
		observer: opts.Observer,
	}
}

// SetObserver replaces the observer. It must be called before the first Lookup.
func (c *Client) SetObserver(o Observer) {
	c.observer = o
}

// BuildFilter renders an OData equality filter. The field must be a plain
// identifier; single quotes in the value are doubled.
func BuildFilter(field, value string) (string, error) {
	if !fieldPattern.MatchString(field) {
		return "", fmt.Errorf("invalid filter field %q", field)
	}
	return fmt.Sprintf("%s eq '%s'", field, strings.ReplaceAll(value, "'", "''")), nil
}

// LookupURL returns the request URL for a filtered entity set query.
func (c *Client) LookupURL(entitySet, field, value string) (string, error) {
	filter, err := BuildFilter(field, value)
	if err != nil {
		return "", err
	}
	q := strings.ReplaceAll(url.QueryEscape(filter), "+", "%20")
	return c.baseURL + "/" + url.PathEscape(entitySet) + "?$filter=" + q, nil
}

// Lookup fetches the entities of entitySet whose field equals value.
// Every failure is a *Error.
func (c *Client) Lookup(ctx context.Context, entitySet, field, value string) ([]Record, error) {
	if c.baseURL == "" {
		return nil, &Error{Status: http.StatusServiceUnavailable, Message: "NAV is not configured"}
	}
	target, err := c.LookupURL(entitySet, field, value)
	if err != nil {
		return nil, badRequest(err.Error())
	}

	cacheKey := entitySet + ":" + field + ":" + value
	if c.cache != nil && c.cacheTTL > 0 {
		records, ok, err := c.cache.Get(ctx, cacheKey)
		if err != nil {
			c.log.WithError(err).WithField("key", cacheKey).Warn("nav cache read failed")
		} else if ok {
			if c.observer != nil {
				c.observer.ObserveNAVCacheHit(entitySet)
			}
			return records, nil
		}
	}

	start := time.Now()
	records, err := c.fetch(ctx, target)
	if c.observer != nil {
		c.observer.ObserveNAV(entitySet, start, err)
	}
	if err != nil {
		return nil, err
	}

	if c.cache != nil && c.cacheTTL > 0 {
		if err := c.cache.Set(ctx, cacheKey, records, c.cacheTTL); err != nil {
			c.log.WithError(err).WithField("key", cacheKey).Warn("nav cache write failed")
		}
	}
	return records, nil
}

// fetch performs one upstream request and parses the feed.
func (c *Client) fetch(ctx context.Context, target string) ([]Record, error) {
	if c.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, transportError(err)
	}
	req.Header.Set("Accept", "application/atom+xml,application/xml")
	if c.username != "" {
		req.SetBasicAuth(c.username, c.password)
	}

	res, err := c.http.Do(req)
	if err != nil {
		return nil, transportError(err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		excerpt, _ := io.ReadAll(io.LimitReader(res.Body, 512))
		return nil, upstreamError(res.StatusCode, strings.TrimSpace(string(excerpt)))
	}

	records, err := ParseFeed(io.LimitReader(res.Body, maxResponseBytes))
	if err != nil {
		var ue *url.Error
		if errors.As(err, &ue) || errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
			return nil, transportError(err)
		}
		return nil, parseError(err)
	}
	return records, nil
}
