//go:build unix

package camera

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"testing"
	"time"
)

// fakeStill mimics rpicam-still in signal mode: every SIGUSR1 copies
// $FAKE_STILL to the -o path.
const fakeStill = `#!/bin/sh
out=""
while [ $# -gt 0 ]; do
  if [ "$1" = "-o" ]; then out="$2"; shift; fi
  shift
done
trap 'cp "$FAKE_STILL" "$out"' USR1
touch "$FAKE_READY"
while :; do sleep 0.02; done
`

func TestRPiCam_SignalProtocol(t *testing.T) {
	if _, err := exec.LookPath("sh"); err != nil {
		t.Skip("no shell available")
	}
	dir := t.TempDir()
	bin := filepath.Join(dir, "rpicam-still")
	if err := os.WriteFile(bin, []byte(fakeStill), 0o755); err != nil {
		t.Fatal(err)
	}
	jpegData, err := NewMockSource(32, 24).Frame()
	if err != nil {
		t.Fatal(err)
	}
	still := filepath.Join(dir, "still.jpg")
	if err := os.WriteFile(still, jpegData, 0o644); err != nil {
		t.Fatal(err)
	}
	ready := filepath.Join(dir, "ready")
	t.Setenv("FAKE_STILL", still)
	t.Setenv("FAKE_READY", ready)

	src, err := StartRPiCam(RPiCamConfig{Binary: bin, Width: 32, Height: 24, WorkDir: filepath.Join(dir, "work")})
	if err != nil {
		t.Fatalf("StartRPiCam: %v", err)
	}
	defer src.Close()

	deadline := time.Now().Add(5 * time.Second)
	for {
		if _, err := os.Stat(ready); err == nil {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("fake camera never became ready")
		}
		time.Sleep(10 * time.Millisecond)
	}

	for i := 0; i < 2; i++ {
		got, err := src.Frame()
		if err != nil {
			t.Fatalf("Frame %d: %v", i, err)
		}
		if !bytes.Equal(got, jpegData) {
			t.Fatalf("Frame %d returned %d bytes, want %d", i, len(got), len(jpegData))
		}
	}
}

func TestRPiCam_MissingBinary(t *testing.T) {
	_, err := StartRPiCam(RPiCamConfig{Binary: filepath.Join(t.TempDir(), "nope"), WorkDir: t.TempDir()})
	if err == nil {
		t.Fatal("expected error for missing binary")
	}
}
