// Package media stores downloaded image files.
package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

var unsafeChars = regexp.MustCompile(`[^a-zA-Z0-9._-]+`)

type Store interface {
	// Put writes data under a name derived from the given filename and
	// returns the stored path.
	Put(ctx context.Context, filename string, data []byte) (string, error)

	// Remove deletes a stored file. Removing something that isn't there is
	// not an error.
	Remove(ctx context.Context, path string) error
}

// FS stores files on local disk, sharded by year/month.
type FS struct {
	root string
	now  func() time.Time
}

func NewFS(root string) (*FS, error) {
	err := os.MkdirAll(root, 0755)
	if err != nil {
		return nil, err
	}
	return &FS{root: root, now: time.Now}, nil
}

func (f *FS) Put(ctx context.Context, filename string, data []byte) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	rel := filepath.Join(f.now().Format("2006/01"), storedName(filename))
	full := filepath.Join(f.root, rel)

	err := os.MkdirAll(filepath.Dir(full), 0755)
	if err != nil {
		return "", err
	}
	return rel, os.WriteFile(full, data, 0644)
}

func (f *FS) Remove(ctx context.Context, path string) error {
	if path == "" {
		return nil
	}
	full := filepath.Join(f.root, filepath.Clean("/"+path))
	err := os.Remove(full)
	if os.IsNotExist(err) {
		return nil
	}
	return err
}

// Memory keeps files in a map.
type Memory struct {
	lock  sync.Mutex
	files map[string][]byte
}

func NewMemory() *Memory {
	return &Memory{files: map[string][]byte{}}
}

func (m *Memory) Put(ctx context.Context, filename string, data []byte) (string, error) {
	m.lock.Lock()
	defer m.lock.Unlock()
	name := storedName(filename)
	m.files[name] = append([]byte(nil), data...)
	return name, nil
}

func (m *Memory) Remove(ctx context.Context, path string) error {
	m.lock.Lock()
	defer m.lock.Unlock()
	delete(m.files, path)
	return nil
}

// Has reports if a file is stored under path.
func (m *Memory) Has(path string) bool {
	m.lock.Lock()
	defer m.lock.Unlock()
	_, ok := m.files[path]
	return ok
}

func (m *Memory) Len() int {
	m.lock.Lock()
	defer m.lock.Unlock()
	return len(m.files)
}

func storedName(filename string) string {
	base := strings.Trim(unsafeChars.ReplaceAllString(filepath.Base(filename), "-"), "-.")
	if base == "" {
		base = "image"
	}
	return fmt.Sprintf("%s-%s", uuid.New().String()[:8], base)
}
