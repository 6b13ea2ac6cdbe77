package fileapi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUpload(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/files/upload", r.URL.Path)
		require.NoError(t, r.ParseMultipartForm(1<<20))

		assert.Equal(t, "alice@x.io", r.FormValue("user_id"))
		assert.Equal(t, "r1", r.FormValue("room_id"))

		file, header, err := r.FormFile("file")
		require.NoError(t, err)
		defer file.Close()
		assert.Equal(t, "plan.pdf", header.Filename)
		content, _ := io.ReadAll(file)
		assert.Equal(t, "pdf bytes", string(content))

		w.WriteHeader(http.StatusCreated)
		fmt.Fprint(w, `{"file_id":"f1","download_url":"https://files.example/f1","filename":"plan.pdf","content_type":"application/pdf","size":9}`)
	}))
	defer srv.Close()

	c := New(srv.URL)
	res, err := c.Upload(context.Background(), "r1", "alice@x.io", "plan.pdf", "application/pdf", strings.NewReader("pdf bytes"))
	require.NoError(t, err)
	assert.Equal(t, "f1", res.FileID)
	assert.Equal(t, "https://files.example/f1", res.DownloadURL)
	assert.EqualValues(t, 9, res.Size)
}

func TestUploadErrorStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":"file too large"}`, http.StatusRequestEntityTooLarge)
	}))
	defer srv.Close()

	_, err := New(srv.URL).Upload(context.Background(), "r1", "u1", "big.bin", "application/octet-stream", strings.NewReader("x"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "status 413")
}

func TestDownloadURLCached(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		assert.Equal(t, "/files/f1/download", r.URL.Path)
		assert.Equal(t, "alice@x.io", r.URL.Query().Get("user_id"))
		fmt.Fprint(w, `{"download_url":"https://signed.example/f1?sig=abc","filename":"plan.pdf","content_type":"application/pdf","expires_in_hours":24}`)
	}))
	defer srv.Close()

	c := New(srv.URL)

	url1, err := c.DownloadURL(context.Background(), "f1", "alice@x.io")
	require.NoError(t, err)
	url2, err := c.DownloadURL(context.Background(), "f1", "alice@x.io")
	require.NoError(t, err)

	assert.Equal(t, url1, url2)
	assert.EqualValues(t, 1, calls.Load(), "second lookup must hit the cache")
}

func TestDownloadURLRefetchedNearExpiry(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n := calls.Add(1)
		fmt.Fprintf(w, `{"download_url":"https://signed.example/f1?v=%d","expires_in_hours":24,"filename":"a","content_type":"text/plain"}`, n)
	}))
	defer srv.Close()

	c := New(srv.URL)
	now := time.Now()
	c.cache.now = func() time.Time { return now }

	_, err := c.DownloadURL(context.Background(), "f1", "u1")
	require.NoError(t, err)

	// Jump to within the five-minute buffer of the cached expiry.
	now = now.Add(23*time.Hour - 2*time.Minute)
	url, err := c.DownloadURL(context.Background(), "f1", "u1")
	require.NoError(t, err)

	assert.Equal(t, "https://signed.example/f1?v=2", url)
	assert.EqualValues(t, 2, calls.Load())
}

func TestPreviewURL(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/files/f2/preview", r.URL.Path)
		fmt.Fprint(w, `{"preview_url":"https://signed.example/f2?preview=1","filename":"pic.png","content_type":"image/png","expires_in_minutes":60}`)
	}))
	defer srv.Close()

	url, err := New(srv.URL).PreviewURL(context.Background(), "f2", "u1")
	require.NoError(t, err)
	assert.Equal(t, "https://signed.example/f2?preview=1", url)
}

func TestMissingURLInResponse(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `{"filename":"plan.pdf","content_type":"application/pdf"}`)
	}))
	defer srv.Close()

	_, err := New(srv.URL).DownloadURL(context.Background(), "f1", "u1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "no download URL")
}

func TestInvalidateForcesRefetch(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, `{"download_url":"https://signed.example/f1","expires_in_hours":24,"filename":"a","content_type":"text/plain"}`)
	}))
	defer srv.Close()

	c := New(srv.URL)
	_, err := c.DownloadURL(context.Background(), "f1", "u1")
	require.NoError(t, err)

	c.Invalidate("f1")

	_, err = c.DownloadURL(context.Background(), "f1", "u1")
	require.NoError(t, err)
	assert.EqualValues(t, 2, calls.Load())
}

func TestSweepDropsExpiredEntries(t *testing.T) {
	c := newURLCache()
	now := time.Now()
	c.now = func() time.Time { return now }

	c.put("download_f1", "https://a", time.Hour)
	c.put("download_f2", "https://b", 10*time.Hour)

	now = now.Add(2 * time.Hour)
	assert.Equal(t, 1, c.sweep())

	_, ok := c.get("download_f2", 0)
	assert.True(t, ok)
}

func TestRefreshExpiredRefetchesStaleOnly(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		fmt.Fprint(w, `{"download_url":"https://fresh.example/f1","expires_in_hours":24,"filename":"a","content_type":"text/plain"}`)
	}))
	defer srv.Close()

	c := New(srv.URL)
	base := time.Now()
	now := base
	c.cache.now = func() time.Time { return now }

	c.cache.put("download_f1", "https://old.example/f1", 2*time.Minute) // inside refresh buffer
	c.cache.put("download_f2", "https://ok.example/f2", 10*time.Hour)

	c.RefreshExpired(context.Background(), "u1")

	assert.EqualValues(t, 1, calls.Load())
	url, ok := c.cache.get("download_f2", 0)
	require.True(t, ok)
	assert.Equal(t, "https://ok.example/f2", url)
}
