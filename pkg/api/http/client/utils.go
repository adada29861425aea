package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/voidshard/galleryimport/pkg/api/http/common"
	"github.com/voidshard/galleryimport/pkg/structs"
)

// do sends a request & unmarshals the response into out. Error statuses
// are mapped back to the errors they stand for.
func (c *Client) do(ctx context.Context, method string, addr *url.URL, caller *structs.Caller, body io.Reader, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, addr.String(), body)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	common.SetCaller(req.Header, caller)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	} else if resp.Body == nil {
		if resp.StatusCode >= 400 {
			return fmt.Errorf("%w: status %d", common.StatusError(resp.StatusCode), resp.StatusCode)
		}
		return nil
	}

	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}

	if resp.StatusCode >= 400 { // some error code, assume message is error message
		return fmt.Errorf("%w: %s", common.StatusError(resp.StatusCode), strings.TrimSpace(string(data)))
	}

	return json.Unmarshal(data, out)
}
