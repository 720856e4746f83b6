package upload

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/cjeanneret/BoothGo/internal/hw/camera"
)

func testPhoto() *camera.Photo {
	return &camera.Photo{Path: "/photos/photo_20240601_140309.jpg", JPEG: []byte("\xff\xd8jpegdata\xff\xd9")}
}

func TestArchiveAndGetQR_Success(t *testing.T) {
	var gotAuth, gotEvent, gotName, gotType string
	var gotFile []byte
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		gotEvent = r.FormValue("event_id")
		f, hdr, err := r.FormFile("file")
		if err != nil {
			t.Errorf("file field: %v", err)
		} else {
			gotName = hdr.Filename
			gotType = hdr.Header.Get("Content-Type")
			gotFile, _ = io.ReadAll(f)
		}
		w.Header().Set("Content-Type", "application/json")
		io.WriteString(w, `{"url":"https://gallery.example/p/42"}`)
	}))
	defer srv.Close()

	c := New(Config{URL: srv.URL, Token: "s3cret", EventID: "wedding-01", QRSize: 128})
	qr := c.ArchiveAndGetQR(context.Background(), testPhoto())
	if qr == nil {
		t.Fatal("expected a QR code")
	}
	if qr.URL != "https://gallery.example/p/42" {
		t.Errorf("URL = %q", qr.URL)
	}
	if b := qr.Image.Bounds(); b.Dx() != 128 || b.Dy() != 128 {
		t.Errorf("QR image = %v, want 128x128", b)
	}
	if gotAuth != "Bearer s3cret" {
		t.Errorf("Authorization = %q", gotAuth)
	}
	if gotEvent != "wedding-01" {
		t.Errorf("event_id = %q", gotEvent)
	}
	if gotName != "photo_20240601_140309.jpg" || gotType != "image/jpeg" {
		t.Errorf("file part = %q (%s)", gotName, gotType)
	}
	if string(gotFile) != string(testPhoto().JPEG) {
		t.Errorf("file body = %q", gotFile)
	}
}

func TestArchive_Failures(t *testing.T) {
	cases := []struct {
		name    string
		handler http.HandlerFunc
	}{
		{"server error", func(w http.ResponseWriter, r *http.Request) {
			http.Error(w, "boom", http.StatusInternalServerError)
		}},
		{"unauthorized", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusUnauthorized)
		}},
		{"not json", func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, "<html>ok</html>")
		}},
		{"no url", func(w http.ResponseWriter, r *http.Request) {
			io.WriteString(w, `{"id":42}`)
		}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			srv := httptest.NewServer(tc.handler)
			defer srv.Close()

			c := New(Config{URL: srv.URL})
			if _, err := c.Archive(context.Background(), testPhoto()); !errors.Is(err, ErrUpload) {
				t.Errorf("err = %v, want ErrUpload", err)
			}
			if qr := c.ArchiveAndGetQR(context.Background(), testPhoto()); qr != nil {
				t.Errorf("expected no QR, got %+v", qr)
			}
		})
	}
}

func TestArchive_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := New(Config{URL: url})
	if qr := c.ArchiveAndGetQR(context.Background(), testPhoto()); qr != nil {
		t.Error("unreachable endpoint must yield no QR")
	}
}

func TestArchive_TimeoutIsBounded(t *testing.T) {
	release := make(chan struct{})
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer srv.Close()
	defer close(release)

	c := New(Config{URL: srv.URL, Timeout: 100 * time.Millisecond})
	start := time.Now()
	qr := c.ArchiveAndGetQR(context.Background(), testPhoto())
	if qr != nil {
		t.Error("timed out upload must yield no QR")
	}
	if el := time.Since(start); el > 2*time.Second {
		t.Errorf("upload blocked for %v", el)
	}
}

func TestEncode(t *testing.T) {
	if _, err := Encode("", 64); !errors.Is(err, ErrQR) {
		t.Errorf("empty url: err = %v, want ErrQR", err)
	}
	img, err := Encode("https://gallery.example/p/1", 64)
	if err != nil {
		t.Fatal(err)
	}
	if b := img.Bounds(); b.Dx() != 64 {
		t.Errorf("width = %d, want 64", b.Dx())
	}
}
