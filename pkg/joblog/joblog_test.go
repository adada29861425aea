package joblog

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestFileAppend(t *testing.T) {
	dir := t.TempDir()
	f, err := NewFile(dir, "http://example.com/", zerolog.Nop())
	assert.Nil(t, err)
	f.now = func() time.Time { return time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC) }

	f.Append("abc", "Item 1: created", "Item 2: skipped (no title)")
	f.Append("abc")
	f.Append("abc", "done")

	data, err := os.ReadFile(filepath.Join(dir, "abc.log"))
	assert.Nil(t, err)
	assert.Equal(t,
		"[2024-01-02 03:04:05]\nItem 1: created\nItem 2: skipped (no title)\n\n"+
			"[2024-01-02 03:04:05]\ndone\n\n",
		string(data),
	)
}

func TestFileURL(t *testing.T) {
	cases := []struct {
		Name   string
		Base   string
		Expect string
	}{
		{"NoBase", "", "/logs/abc.log"},
		{"Base", "http://example.com/", "http://example.com/logs/abc.log"},
	}

	for _, c := range cases {
		t.Run(c.Name, func(t *testing.T) {
			f, err := NewFile(t.TempDir(), c.Base, zerolog.Nop())
			assert.Nil(t, err)
			assert.Equal(t, c.Expect, f.URL("abc"))
		})
	}
}

func TestFileAppendNeverPanics(t *testing.T) {
	dir := t.TempDir()
	f, err := NewFile(dir, "", zerolog.Nop())
	assert.Nil(t, err)

	// directory vanished under us; append should just log & move on
	assert.Nil(t, os.RemoveAll(dir))
	f.Append("abc", "lost")
}

func TestFileNameStripsPath(t *testing.T) {
	assert.Equal(t, "passwd.log", fileName("../../etc/passwd"))
}

func TestDiscard(t *testing.T) {
	var l Sink = Discard{}

	l.Append("abc", "dropped")
	assert.Equal(t, "", l.Path("abc"))
	assert.Equal(t, "", l.URL("abc"))
}
