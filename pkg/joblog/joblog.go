// Package joblog keeps a human readable, append only log per job.
package joblog

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

const timestampLayout = "2006-01-02 15:04:05"

// Sink takes log lines for a job. Appending never fails the caller; a sink
// that can't write reports it through its own logger and carries on.
type Sink interface {
	Append(jobID string, lines ...string)
	Path(jobID string) string
	URL(jobID string) string
}

// File writes one file per job under a directory.
type File struct {
	dir     string
	baseURL string
	log     zerolog.Logger
	now     func() time.Time

	lock sync.Mutex
}

func NewFile(dir, baseURL string, log zerolog.Logger) (*File, error) {
	err := os.MkdirAll(dir, 0755)
	if err != nil {
		return nil, err
	}
	return &File{dir: dir, baseURL: strings.TrimRight(baseURL, "/"), log: log, now: time.Now}, nil
}

func (f *File) Path(jobID string) string {
	return filepath.Join(f.dir, fileName(jobID))
}

func (f *File) URL(jobID string) string {
	name := url.PathEscape(fileName(jobID))
	if f.baseURL == "" {
		return "/logs/" + name
	}
	return fmt.Sprintf("%s/logs/%s", f.baseURL, name)
}

func (f *File) Append(jobID string, lines ...string) {
	if len(lines) == 0 {
		return
	}

	var b strings.Builder
	b.WriteString("[")
	b.WriteString(f.now().Format(timestampLayout))
	b.WriteString("]\n")
	for _, l := range lines {
		b.WriteString(l)
		b.WriteString("\n")
	}
	b.WriteString("\n")

	f.lock.Lock()
	defer f.lock.Unlock()

	fh, err := os.OpenFile(f.Path(jobID), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		f.log.Warn().Err(err).Str("job", jobID).Msg("opening job log")
		return
	}
	defer fh.Close()

	_, err = fh.WriteString(b.String())
	if err != nil {
		f.log.Warn().Err(err).Str("job", jobID).Msg("writing job log")
	}
}

// Discard drops everything.
type Discard struct{}

func (Discard) Append(jobID string, lines ...string) {}
func (Discard) Path(jobID string) string             { return "" }
func (Discard) URL(jobID string) string              { return "" }

func fileName(jobID string) string {
	return filepath.Base(jobID) + ".log"
}
