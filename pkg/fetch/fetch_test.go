package fetch

import (
	"context"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func testFetcher() *HTTP {
	return NewHTTP(&Options{InitialBackoff: time.Millisecond, Rate: 1000, Burst: 100})
}

func TestFetchOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Write([]byte("png-bytes"))
	}))
	defer srv.Close()

	dl, err := testFetcher().Fetch(context.Background(), srv.URL+"/files/cat.png")

	assert.Nil(t, err)
	assert.Equal(t, "cat.png", dl.Filename)
	assert.Equal(t, "image/png", dl.ContentType)
	assert.Equal(t, []byte("png-bytes"), dl.Data)
}

func TestFetchRetriesServerErrors(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte("ok"))
	}))
	defer srv.Close()

	dl, err := testFetcher().Fetch(context.Background(), srv.URL+"/a.jpg")

	assert.Nil(t, err)
	assert.Equal(t, []byte("ok"), dl.Data)
	assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
}

func TestFetchNotFoundIsPermanent(t *testing.T) {
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := testFetcher().Fetch(context.Background(), srv.URL+"/a.jpg")

	assert.Error(t, err)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestFetchTooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("0123456789"))
	}))
	defer srv.Close()

	f := NewHTTP(&Options{MaxBytes: 5, InitialBackoff: time.Millisecond})
	_, err := f.Fetch(context.Background(), srv.URL+"/a.jpg")

	assert.Error(t, err)
}

func TestFetchRejectsBadURL(t *testing.T) {
	_, err := testFetcher().Fetch(context.Background(), "ftp://example.com/a.jpg")
	assert.Error(t, err)
}

func TestResolve(t *testing.T) {
	cases := []struct {
		Name   string
		Base   string
		Ref    string
		Expect string
	}{
		{"Join", "https://old.example.com/", "/sites/a.jpg", "https://old.example.com/sites/a.jpg"},
		{"JoinNoSlashes", "https://old.example.com", "sites/a.jpg", "https://old.example.com/sites/a.jpg"},
		{"Absolute", "https://old.example.com", "http://cdn.example.com/a.jpg", "http://cdn.example.com/a.jpg"},
		{"NoBase", "", "sites/a.jpg", "sites/a.jpg"},
	}

	for _, c := range cases {
		t.Run(c.Name, func(t *testing.T) {
			assert.Equal(t, c.Expect, Resolve(c.Base, c.Ref))
		})
	}
}

func TestFilenameFallback(t *testing.T) {
	u, _ := url.Parse("https://example.com/")
	now := time.Unix(100, 0)

	assert.Equal(t, "image-100.jpg", filename(u, "", now))
}
