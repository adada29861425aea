// Package common holds what the HTTP client & server must agree on.
package common

import (
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	ie "github.com/voidshard/galleryimport/pkg/errors"
	"github.com/voidshard/galleryimport/pkg/structs"
)

const (
	optSkipExisting   = "skip_existing"
	optDownloadImages = "download_images"
	optDeleteImages   = "delete_images"
	optDeleteTerms    = "delete_terms"
	optSourceURL      = "source_url"
)

// Path fills in a route's {placeholders}, in order.
func Path(route string, args ...string) string {
	for _, a := range args {
		start := strings.Index(route, "{")
		end := strings.Index(route, "}")
		if start < 0 || end < start {
			break
		}
		route = route[:start] + url.PathEscape(a) + route[end+1:]
	}
	return route
}

// SetCaller sets the identity headers for a caller.
func SetCaller(h http.Header, c *structs.Caller) {
	if c == nil {
		return
	}
	if c.ID != "" {
		h.Set(HEADER_USER, c.ID)
	}
	if c.Admin {
		h.Set(HEADER_ROLE, ROLE_ADMIN)
	}
}

// Caller reads the identity headers, nil if there are none.
func Caller(r *http.Request) *structs.Caller {
	id := strings.TrimSpace(r.Header.Get(HEADER_USER))
	if id == "" {
		return nil
	}
	return &structs.Caller{
		ID:    id,
		Admin: strings.EqualFold(r.Header.Get(HEADER_ROLE), ROLE_ADMIN),
	}
}

// EncodeOptions writes job options as query values; false & empty are left out.
func EncodeOptions(v url.Values, o structs.JobOptions) {
	for k, set := range map[string]bool{
		optSkipExisting:   o.SkipExisting,
		optDownloadImages: o.DownloadImages,
		optDeleteImages:   o.DeleteImages,
		optDeleteTerms:    o.DeleteTerms,
	} {
		if set {
			v.Set(k, "1")
		}
	}
	if o.SourceURL != "" {
		v.Set(optSourceURL, o.SourceURL)
	}
}

// DecodeOptions reads job options from query values.
func DecodeOptions(v url.Values) (structs.JobOptions, error) {
	o := structs.JobOptions{SourceURL: v.Get(optSourceURL)}
	for k, dst := range map[string]*bool{
		optSkipExisting:   &o.SkipExisting,
		optDownloadImages: &o.DownloadImages,
		optDeleteImages:   &o.DeleteImages,
		optDeleteTerms:    &o.DeleteTerms,
	} {
		if !v.Has(k) {
			continue
		}
		b, err := strconv.ParseBool(v.Get(k))
		if err != nil {
			return o, fmt.Errorf("%w: %s=%q", ie.ErrInvalidArg, k, v.Get(k))
		}
		*dst = b
	}
	if o.SourceURL != "" {
		u, err := url.Parse(o.SourceURL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
			return o, fmt.Errorf("%w: %s must be an http(s) url", ie.ErrInvalidArg, optSourceURL)
		}
	}
	return o, nil
}

// EncodeQuery writes a registry query as query values.
func EncodeQuery(v url.Values, q *structs.Query) {
	if q == nil {
		return
	}
	if q.Limit > 0 {
		v.Set("limit", strconv.Itoa(q.Limit))
	}
	if q.Offset > 0 {
		v.Set("offset", strconv.Itoa(q.Offset))
	}
	if q.Owner != "" {
		v.Set("owner", q.Owner)
	}
	if q.Kinds != nil {
		v["kinds"] = q.Kinds
	}
	if q.Statuses != nil {
		ss := []string{}
		for _, s := range q.Statuses {
			ss = append(ss, string(s))
		}
		v["statuses"] = ss
	}
}

// StatusError maps an HTTP status code back to the error it stands for.
func StatusError(code int) error {
	switch code {
	case http.StatusNotFound:
		return ie.ErrNotFound
	case http.StatusForbidden:
		return ie.ErrForbidden
	case http.StatusBadRequest:
		return ie.ErrInvalidArg
	}
	return fmt.Errorf("bad status code %d", code)
}
