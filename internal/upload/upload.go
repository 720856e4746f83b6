// Package upload archives photos to the remote gallery service and turns
// the returned URL into a QR code. Every failure degrades to "no QR": the
// print cycle is never blocked beyond Config.Timeout nor aborted.
package upload

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"image"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"path/filepath"
	"time"

	qrcode "github.com/skip2/go-qrcode"

	"github.com/cjeanneret/BoothGo/internal/debug"
	"github.com/cjeanneret/BoothGo/internal/hw/camera"
)

var (
	// ErrUpload covers network errors, non-2xx replies and malformed bodies.
	ErrUpload = errors.New("upload failed")
	// ErrQR means the returned URL could not be encoded.
	ErrQR = errors.New("qr encoding failed")
)

const (
	DefaultTimeout = 10 * time.Second
	DefaultQRSize  = 256

	maxResponseBytes = 1 << 20
)

// Config for the gallery endpoint.
type Config struct {
	URL     string
	Token   string
	EventID string
	Timeout time.Duration
	QRSize  int // pixels; the pipeline rescales it to the QR slot anyway
}

// QRCode is the retrieval code for an archived photo.
type QRCode struct {
	URL   string
	Image image.Image
}

// Client posts photos to the gallery endpoint.
type Client struct {
	cfg  Config
	http *http.Client
}

// New creates a client. Zero Timeout and QRSize take the defaults.
func New(cfg Config) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.QRSize <= 0 {
		cfg.QRSize = DefaultQRSize
	}
	return &Client{cfg: cfg, http: &http.Client{Timeout: cfg.Timeout}}
}

// ArchiveAndGetQR uploads the photo and encodes the returned URL. It
// returns nil on any failure.
func (c *Client) ArchiveAndGetQR(ctx context.Context, photo *camera.Photo) *QRCode {
	url, err := c.Archive(ctx, photo)
	if err != nil {
		debug.Warn("Upload skipped, printing without QR: %v", err)
		return nil
	}
	img, err := Encode(url, c.cfg.QRSize)
	if err != nil {
		debug.Warn("Printing without QR: %v", err)
		return nil
	}
	debug.Live("Upload: photo archived at %s", url)
	return &QRCode{URL: url, Image: img}
}

// Archive posts the photo and returns the gallery URL.
func (c *Client) Archive(ctx context.Context, photo *camera.Photo) (string, error) {
	body, contentType, err := multipartBody(photo, c.cfg.EventID)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpload, err)
	}

	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.URL, body)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpload, err)
	}
	req.Header.Set("Content-Type", contentType)
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrUpload, err)
	}
	defer resp.Body.Close()
	debug.Verbose("Upload: %s in %v", resp.Status, time.Since(start))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return "", fmt.Errorf("%w: server replied %s", ErrUpload, resp.Status)
	}
	var reply struct {
		URL string `json:"url"`
	}
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&reply); err != nil {
		return "", fmt.Errorf("%w: decode reply: %v", ErrUpload, err)
	}
	if reply.URL == "" {
		return "", fmt.Errorf("%w: reply has no url", ErrUpload)
	}
	return reply.URL, nil
}

func multipartBody(photo *camera.Photo, eventID string) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="file"; filename=%q`, filepath.Base(photo.Path)))
	h.Set("Content-Type", "image/jpeg")
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(photo.JPEG); err != nil {
		return nil, "", err
	}
	if err := w.WriteField("event_id", eventID); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

// Encode renders url as a square QR code of size pixels.
func Encode(url string, size int) (image.Image, error) {
	if url == "" {
		return nil, fmt.Errorf("%w: empty url", ErrQR)
	}
	q, err := qrcode.New(url, qrcode.Medium)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrQR, err)
	}
	return q.Image(size), nil
}
