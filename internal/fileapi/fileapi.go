// Package fileapi is the HTTP client for file upload and signed URL
// retrieval. Signed URLs are cached until shortly before they expire so
// repeated previews of the same attachment don't hammer the server.
package fileapi

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"strings"
	"time"
)

const (
	downloadBuffer = 5 * time.Minute
	previewBuffer  = 2 * time.Minute

	// Safety margins subtracted from the server-reported lifetime so a
	// cached URL is never handed out right at its expiry edge.
	downloadSafety = time.Hour
	previewSafety  = 10 * time.Minute

	defaultDownloadHours  = 24
	defaultPreviewMinutes = 60
)

// UploadResult is the server's response to a file upload.
type UploadResult struct {
	FileID      string `json:"file_id"`
	DownloadURL string `json:"download_url"`
	Filename    string `json:"filename"`
	ContentType string `json:"content_type"`
	Size        int64  `json:"size"`
}

// signedURL is the server's response to a download/preview URL request.
type signedURL struct {
	DownloadURL      string `json:"download_url,omitempty"`
	PreviewURL       string `json:"preview_url,omitempty"`
	Filename         string `json:"filename"`
	ContentType      string `json:"content_type"`
	ExpiresInHours   int    `json:"expires_in_hours,omitempty"`
	ExpiresInMinutes int    `json:"expires_in_minutes,omitempty"`
}

// Client talks to the file endpoints under the API base URL.
type Client struct {
	baseURL string
	http    *http.Client
	cache   *urlCache
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// New creates a file API client.
func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		cache:   newURLCache(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Upload sends file content as multipart form data and returns the
// stored file's metadata, including a ready-to-share download URL.
func (c *Client) Upload(ctx context.Context, roomID, userID, filename, contentType string, content io.Reader) (*UploadResult, error) {
	pr, pw := io.Pipe()
	mw := multipart.NewWriter(pw)

	go func() {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filename))
		if contentType != "" {
			header.Set("Content-Type", contentType)
		}
		part, err := mw.CreatePart(header)
		if err == nil {
			_, err = io.Copy(part, content)
		}
		if err == nil {
			err = mw.WriteField("user_id", userID)
		}
		if err == nil {
			err = mw.WriteField("room_id", roomID)
		}
		if err == nil {
			err = mw.Close()
		}
		pw.CloseWithError(err)
	}()

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/files/upload", pr)
	if err != nil {
		return nil, fmt.Errorf("build upload request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upload %s: %w", filename, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("upload %s: status %d: %s", filename, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	var result UploadResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("decode upload response: %w", err)
	}
	return &result, nil
}

// DownloadURL returns a signed download URL for the file, serving from
// cache while the cached URL has at least five minutes of life left.
func (c *Client) DownloadURL(ctx context.Context, fileID, userID string) (string, error) {
	key := "download_" + fileID
	if cached, ok := c.cache.get(key, downloadBuffer); ok {
		return cached, nil
	}

	var data signedURL
	if err := c.getJSON(ctx, fmt.Sprintf("/files/%s/download", fileID), userID, &data); err != nil {
		return "", err
	}
	if data.DownloadURL == "" {
		return "", fmt.Errorf("file %s: no download URL in response", fileID)
	}

	hours := data.ExpiresInHours
	if hours == 0 {
		hours = defaultDownloadHours
	}
	c.cache.put(key, data.DownloadURL, time.Duration(hours)*time.Hour-downloadSafety)
	return data.DownloadURL, nil
}

// PreviewURL returns a signed preview URL. Previews expire faster than
// downloads, so the cache margins are tighter.
func (c *Client) PreviewURL(ctx context.Context, fileID, userID string) (string, error) {
	key := "preview_" + fileID
	if cached, ok := c.cache.get(key, previewBuffer); ok {
		return cached, nil
	}

	var data signedURL
	if err := c.getJSON(ctx, fmt.Sprintf("/files/%s/preview", fileID), userID, &data); err != nil {
		return "", err
	}
	if data.PreviewURL == "" {
		return "", fmt.Errorf("file %s: no preview URL in response", fileID)
	}

	minutes := data.ExpiresInMinutes
	if minutes == 0 {
		minutes = defaultPreviewMinutes
	}
	c.cache.put(key, data.PreviewURL, time.Duration(minutes)*time.Minute-previewSafety)
	return data.PreviewURL, nil
}

// Invalidate drops any cached URLs for the file, forcing a refetch.
func (c *Client) Invalidate(fileID string) {
	c.cache.invalidate("download_" + fileID)
	c.cache.invalidate("preview_" + fileID)
}

// ClearCache drops every cached URL.
func (c *Client) ClearCache() {
	c.cache.clear()
}

// RefreshExpired refetches cached URLs that are about to lapse so open
// attachments keep working across long sessions.
func (c *Client) RefreshExpired(ctx context.Context, userID string) {
	for _, key := range c.cache.staleKeys(downloadBuffer) {
		kind, fileID, ok := strings.Cut(key, "_")
		if !ok {
			continue
		}
		c.cache.invalidate(key)

		var err error
		switch kind {
		case "download":
			_, err = c.DownloadURL(ctx, fileID, userID)
		case "preview":
			_, err = c.PreviewURL(ctx, fileID, userID)
		}
		if err != nil {
			log.Printf("[FileAPI] refresh %s failed: %v", key, err)
		}
	}
}

// StartMaintenance runs periodic URL refresh and cache sweeping until
// the context is canceled.
func (c *Client) StartMaintenance(ctx context.Context, userID string, refreshEvery, sweepEvery time.Duration) {
	go func() {
		refresh := time.NewTicker(refreshEvery)
		sweep := time.NewTicker(sweepEvery)
		defer refresh.Stop()
		defer sweep.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-refresh.C:
				c.RefreshExpired(ctx, userID)
			case <-sweep.C:
				if n := c.cache.sweep(); n > 0 {
					log.Printf("[FileAPI] swept %d expired URLs", n)
				}
			}
		}
	}()
}

func (c *Client) getJSON(ctx context.Context, path, userID string, out any) error {
	u := c.baseURL + path
	if userID != "" {
		u += "?user_id=" + url.QueryEscape(userID)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return fmt.Errorf("GET %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(data)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
