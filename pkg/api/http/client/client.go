package client

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"

	"github.com/voidshard/galleryimport/pkg/api/http/common"
	ie "github.com/voidshard/galleryimport/pkg/errors"
	"github.com/voidshard/galleryimport/pkg/structs"
)

// Client talks to a galleryimport HTTP server. It implements api.API.
type Client struct {
	url  *url.URL
	http *http.Client
}

func New(address string) (*Client, error) {
	u, err := url.Parse(address)
	return &Client{url: u, http: &http.Client{}}, err
}

func (c *Client) Import(ctx context.Context, caller *structs.Caller, payload io.Reader, opts structs.JobOptions) (*structs.Job, error) {
	addr := c.addr(common.API_IMPORTS)
	values := addr.Query()
	common.EncodeOptions(values, opts)
	addr.RawQuery = values.Encode()

	var out structs.Job
	return &out, c.do(ctx, http.MethodPost, addr, caller, payload, &out)
}

// Enqueue uploads the request's payload. A Path is read locally, the
// server never sees it.
func (c *Client) Enqueue(ctx context.Context, caller *structs.Caller, req *structs.EnqueueRequest) (*structs.Job, error) {
	if req == nil || req.Source.Empty() {
		return nil, ie.ErrNoPayload
	}
	if len(req.Source.Items) > 0 {
		return c.Import(ctx, caller, bytes.NewReader(req.Source.Items), req.Options)
	}

	f, err := os.Open(req.Source.Path)
	if os.IsNotExist(err) {
		return nil, ie.ErrSourceMissing
	} else if err != nil {
		return nil, fmt.Errorf("%w: %v", ie.ErrSourceNoRead, err)
	}
	defer f.Close()
	return c.Import(ctx, caller, f, req.Options)
}

func (c *Client) Status(ctx context.Context, caller *structs.Caller, jobID string) (*structs.StatusResponse, error) {
	var out structs.StatusResponse
	return &out, c.do(ctx, http.MethodGet, c.addr(common.Path(common.API_IMPORT, jobID)), caller, nil, &out)
}

func (c *Client) Control(ctx context.Context, caller *structs.Caller, req *structs.ControlRequest) (*structs.Job, error) {
	var out structs.Job
	addr := c.addr(common.Path(common.API_CONTROL, req.JobID, string(req.Action)))
	return &out, c.do(ctx, http.MethodPatch, addr, caller, nil, &out)
}

func (c *Client) Poke(ctx context.Context, caller *structs.Caller, jobID string) (*structs.StepReport, error) {
	var out structs.StepReport
	return &out, c.do(ctx, http.MethodPost, c.addr(common.Path(common.API_POKE, jobID)), caller, nil, &out)
}

func (c *Client) Jobs(ctx context.Context, caller *structs.Caller, q *structs.Query) ([]*structs.RegistryEntry, error) {
	addr := c.addr(common.API_IMPORTS)
	values := addr.Query()
	common.EncodeQuery(values, q)
	addr.RawQuery = values.Encode()

	var out []*structs.RegistryEntry
	return out, c.do(ctx, http.MethodGet, addr, caller, nil, &out)
}

func (c *Client) DeleteGallery(ctx context.Context, caller *structs.Caller, galleryID string, opts structs.JobOptions) (*structs.CleanupResult, error) {
	addr := c.addr(common.Path(common.API_GALLERY, galleryID))
	values := addr.Query()
	common.EncodeOptions(values, opts)
	addr.RawQuery = values.Encode()

	var out structs.CleanupResult
	return &out, c.do(ctx, http.MethodDelete, addr, caller, nil, &out)
}

func (c *Client) CheckExternalID(ctx context.Context, caller *structs.Caller, nid int64) (*structs.Gallery, error) {
	var out structs.Gallery
	addr := c.addr(common.Path(common.API_EXTERNAL, strconv.FormatInt(nid, 10)))
	return &out, c.do(ctx, http.MethodGet, addr, caller, nil, &out)
}

func (c *Client) Notifications(ctx context.Context, caller *structs.Caller) ([]*structs.Notification, error) {
	var out []*structs.Notification
	return out, c.do(ctx, http.MethodGet, c.addr(common.API_NOTIFICATIONS), caller, nil, &out)
}

func (c *Client) Health(ctx context.Context) (*structs.Health, error) {
	var out structs.Health
	return &out, c.do(ctx, http.MethodGet, c.addr(common.API_HEALTH), nil, nil, &out)
}

func (c *Client) addr(path string) *url.URL {
	return &url.URL{Scheme: c.url.Scheme, Host: c.url.Host, Path: path}
}
