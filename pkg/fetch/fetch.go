// Package fetch downloads remote images.
package fetch

import (
	"context"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
	"golang.org/x/time/rate"
)

const (
	defaultTimeout        = 45 * time.Second
	defaultMaxBytes       = 32 << 20
	defaultRetries        = 3
	defaultRate           = 10.0
	defaultBurst          = 5
	defaultInitialBackoff = 500 * time.Millisecond
	defaultUserAgent      = "galleryimport/1.0"
)

type Fetcher interface {
	Fetch(ctx context.Context, url string) (*Download, error)
}

type Download struct {
	URL         string
	Filename    string
	ContentType string
	Data        []byte
}

type Options struct {
	// Timeout for a single request
	Timeout time.Duration

	// MaxBytes is the largest body we'll accept
	MaxBytes int64

	// Retries for transient failures (5xx, connection errors)
	Retries uint64

	// InitialBackoff between retries, it grows exponentially
	InitialBackoff time.Duration

	// Rate & Burst limit requests per second across all callers
	Rate  float64
	Burst int

	UserAgent string
}

func (o *Options) setDefaults() {
	if o.Timeout <= 0 {
		o.Timeout = defaultTimeout
	}
	if o.MaxBytes <= 0 {
		o.MaxBytes = defaultMaxBytes
	}
	if o.Retries == 0 {
		o.Retries = defaultRetries
	}
	if o.InitialBackoff <= 0 {
		o.InitialBackoff = defaultInitialBackoff
	}
	if o.Rate <= 0 {
		o.Rate = defaultRate
	}
	if o.Burst <= 0 {
		o.Burst = defaultBurst
	}
	if o.UserAgent == "" {
		o.UserAgent = defaultUserAgent
	}
}

// HTTP fetches over http(s) with retries & a shared rate limit.
type HTTP struct {
	opts    *Options
	client  *http.Client
	limiter *rate.Limiter
	now     func() time.Time
}

func NewHTTP(opts *Options) *HTTP {
	if opts == nil {
		opts = &Options{}
	}
	opts.setDefaults()
	return &HTTP{
		opts:    opts,
		client:  &http.Client{Timeout: opts.Timeout},
		limiter: rate.NewLimiter(rate.Limit(opts.Rate), opts.Burst),
		now:     time.Now,
	}
}

func (h *HTTP) Fetch(ctx context.Context, target string) (*Download, error) {
	u, err := url.Parse(target)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return nil, fmt.Errorf("invalid image url %q", target)
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = h.opts.InitialBackoff
	policy := backoff.WithContext(backoff.WithMaxRetries(bo, h.opts.Retries), ctx)

	var dl *Download
	err = backoff.Retry(func() error {
		err := h.limiter.Wait(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}
		dl, err = h.get(ctx, u)
		return err
	}, policy)
	return dl, err
}

func (h *HTTP) get(ctx context.Context, u *url.URL) (*Download, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, backoff.Permanent(err)
	}
	req.Header.Set("User-Agent", h.opts.UserAgent)

	resp, err := h.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 500 || resp.StatusCode == http.StatusTooManyRequests {
		return nil, fmt.Errorf("fetching %s: status %d", u, resp.StatusCode)
	} else if resp.StatusCode != http.StatusOK {
		return nil, backoff.Permanent(fmt.Errorf("fetching %s: status %d", u, resp.StatusCode))
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, h.opts.MaxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > h.opts.MaxBytes {
		return nil, backoff.Permanent(fmt.Errorf("fetching %s: body exceeds %d bytes", u, h.opts.MaxBytes))
	}

	ctype := resp.Header.Get("Content-Type")
	return &Download{
		URL:         u.String(),
		Filename:    filename(u, ctype, h.now()),
		ContentType: ctype,
		Data:        data,
	}, nil
}

// Resolve joins an image path onto the payload's source URL. Absolute
// URLs are returned untouched.
func Resolve(base, ref string) string {
	if strings.HasPrefix(ref, "http://") || strings.HasPrefix(ref, "https://") {
		return ref
	}
	if base == "" {
		return ref
	}
	return strings.TrimRight(base, "/") + "/" + strings.TrimLeft(ref, "/")
}

func filename(u *url.URL, ctype string, now time.Time) string {
	name := path.Base(u.Path)
	if name != "" && name != "." && name != "/" {
		return name
	}
	ext := ".jpg"
	if exts, _ := mime.ExtensionsByType(ctype); len(exts) > 0 {
		ext = exts[0]
	}
	return fmt.Sprintf("image-%d%s", now.Unix(), ext)
}
