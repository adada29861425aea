// Package source stages uploaded payloads & decodes them into items.
package source

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"github.com/voidshard/galleryimport/pkg/errors"
	"github.com/voidshard/galleryimport/pkg/structs"
)

var bom = []byte{0xEF, 0xBB, 0xBF}

// Decode turns a payload into its list of raw items. Accepted shapes are a
// bare JSON array, an object with an "items" array, or a single object
// (one item). A UTF-8 BOM is ignored.
func Decode(raw []byte) ([]json.RawMessage, error) {
	raw = bytes.TrimSpace(bytes.TrimPrefix(raw, bom))
	if len(raw) == 0 {
		return nil, fmt.Errorf("%w: empty payload", errors.ErrSourceBadJSON)
	}

	switch raw[0] {
	case '[':
		items := []json.RawMessage{}
		err := json.Unmarshal(raw, &items)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errors.ErrSourceBadJSON, err)
		}
		return items, nil
	case '{':
		wrapped := map[string]json.RawMessage{}
		err := json.Unmarshal(raw, &wrapped)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", errors.ErrSourceBadJSON, err)
		}
		if inner, ok := wrapped["items"]; ok {
			items := []json.RawMessage{}
			err = json.Unmarshal(inner, &items)
			if err != nil {
				return nil, fmt.Errorf("%w: items: %v", errors.ErrSourceBadJSON, err)
			}
			return items, nil
		}
		return []json.RawMessage{json.RawMessage(raw)}, nil
	}
	return nil, fmt.Errorf("%w: expected an array or object", errors.ErrSourceBadJSON)
}

// Loader reads a job's payload, from disk or inline.
type Loader struct{}

func (Loader) Load(ctx context.Context, src structs.PayloadSource) ([]json.RawMessage, error) {
	if len(src.Items) > 0 {
		return Decode(src.Items)
	}
	if src.Path == "" {
		return nil, errors.ErrSourceMissing
	}

	_, err := os.Stat(src.Path)
	if os.IsNotExist(err) {
		return nil, errors.ErrSourceMissing
	}
	raw, err := os.ReadFile(src.Path)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", errors.ErrSourceNoRead, err)
	}
	return Decode(raw)
}

// Stage copies an uploaded payload into dir under a unique name and returns
// the path. The payload is checked to decode first.
func Stage(dir string, r io.Reader, now time.Time) (string, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return "", fmt.Errorf("%w: %v", errors.ErrSourceNoRead, err)
	}
	_, err = Decode(raw)
	if err != nil {
		return "", err
	}

	err = os.MkdirAll(dir, 0755)
	if err != nil {
		return "", err
	}
	name := fmt.Sprintf("import-%s-%s.json", now.Format("20060102-150405"), uuid.New().String()[:8])
	path := filepath.Join(dir, name)
	return path, os.WriteFile(path, raw, 0644)
}
