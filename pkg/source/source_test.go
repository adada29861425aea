package source

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/voidshard/galleryimport/pkg/errors"
	"github.com/voidshard/galleryimport/pkg/structs"
)

func TestDecode(t *testing.T) {
	cases := []struct {
		Name      string
		Given     string
		Expect    int
		ExpectErr error
	}{
		{"BareArray", `[{"title":"a"},{"title":"b"}]`, 2, nil},
		{"ItemsWrapper", `{"items":[{"title":"a"},{"title":"b"},{"title":"c"}]}`, 3, nil},
		{"SingleObject", `{"title":"a","nid":1}`, 1, nil},
		{"EmptyArray", `[]`, 0, nil},
		{"Bom", "\xEF\xBB\xBF[{\"title\":\"a\"}]", 1, nil},
		{"Whitespace", "\n  [1, 2]  \n", 2, nil},
		{"Truncated", `[{"title":"a"`, 0, errors.ErrSourceBadJSON},
		{"Scalar", `"hello"`, 0, errors.ErrSourceBadJSON},
		{"Empty", ``, 0, errors.ErrSourceBadJSON},
		{"ItemsNotArray", `{"items": 5}`, 0, errors.ErrSourceBadJSON},
	}

	for _, c := range cases {
		t.Run(c.Name, func(t *testing.T) {
			items, err := Decode([]byte(c.Given))
			if c.ExpectErr != nil {
				assert.ErrorIs(t, err, c.ExpectErr)
				return
			}
			assert.Nil(t, err)
			assert.Len(t, items, c.Expect)
		})
	}
}

func TestDecodeErrorMessage(t *testing.T) {
	_, err := Decode([]byte(`[`))
	assert.True(t, strings.HasPrefix(err.Error(), "Invalid JSON: "), err.Error())
}

func TestLoader(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.json")
	assert.Nil(t, os.WriteFile(good, []byte(`[{"title":"a"}]`), 0644))

	cases := []struct {
		Name      string
		Given     structs.PayloadSource
		Expect    int
		ExpectErr error
	}{
		{"File", structs.PayloadSource{Path: good}, 1, nil},
		{"Inline", structs.PayloadSource{Items: []byte(`["a","b"]`)}, 2, nil},
		{"Missing", structs.PayloadSource{Path: filepath.Join(dir, "nope.json")}, 0, errors.ErrSourceMissing},
		{"Nothing", structs.PayloadSource{}, 0, errors.ErrSourceMissing},
		{"Directory", structs.PayloadSource{Path: dir}, 0, errors.ErrSourceNoRead},
	}

	for _, c := range cases {
		t.Run(c.Name, func(t *testing.T) {
			items, err := Loader{}.Load(context.Background(), c.Given)
			if c.ExpectErr != nil {
				assert.ErrorIs(t, err, c.ExpectErr)
				return
			}
			assert.Nil(t, err)
			assert.Len(t, items, c.Expect)
		})
	}
}

func TestStage(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "uploads")
	now := time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

	path, err := Stage(dir, bytes.NewBufferString(`[{"title":"a"}]`), now)
	assert.Nil(t, err)
	assert.True(t, strings.HasPrefix(filepath.Base(path), "import-20240506-070809-"))

	data, err := os.ReadFile(path)
	assert.Nil(t, err)
	assert.Equal(t, `[{"title":"a"}]`, string(data))

	_, err = Stage(dir, bytes.NewBufferString(`nope`), now)
	assert.ErrorIs(t, err, errors.ErrSourceBadJSON)
}
