package android

import (
	"bytes"
	"context"
	"fmt"
	"image"
	"image/jpeg"
	_ "image/png"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/spance/dermascan-go/pipeline/capture"
	"github.com/spance/dermascan-go/pipeline/definitions"
)

const (
	stillImageAction = "android.media.action.STILL_IMAGE_CAMERA"
	remoteShotPath   = "/sdcard/dermascan_preview.png"
	jpegQuality      = 92
	// the camera app needs a moment to open its preview
	previewSettle = 1500 * time.Millisecond
)

var focusPattern = regexp.MustCompile(`(?:mCurrentFocus|mFocusedApp)=.*?\s([A-Za-z0-9_.]+)/`)

// Open launches the still-image camera with the requested facing.
func (r *ADBDevice) Open(ctx context.Context, lens definitions.LensFacing, flash definitions.FlashMode) (capture.Stream, error) {
	facing := "0"
	useFront := "false"
	if lens == definitions.LensFront {
		facing, useFront = "1", "true"
	}
	output, err := r.adb(ctx, "Open",
		"shell", "am", "start",
		"-a", stillImageAction,
		"--ei", "android.intent.extras.CAMERA_FACING", facing,
		"--ez", "android.intent.extras.LENS_FACING_FRONT", useFront,
		"--ez", "android.intent.extra.USE_FRONT_CAMERA", useFront,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to start camera: %w", err)
	}
	if strings.Contains(output, "Error") {
		return nil, fmt.Errorf("failed to start camera: %s", strings.TrimSpace(output))
	}

	select {
	case <-time.After(r.settle):
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	focus, err := r.adb(ctx, "Open", "shell", "dumpsys", "window")
	if err != nil {
		log.Warn().Err(err).Msg("cannot resolve camera package")
	}
	pkg := parseFocusedPackage(focus)

	surface := "adb"
	if r.deviceID != "" {
		surface = "adb:" + r.deviceID
	}
	return &adbStream{
		device: r,
		pkg:    pkg,
		binding: definitions.CameraBinding{
			DeviceID: r.deviceID,
			Lens:     lens,
			Flash:    flash,
			Surface:  surface,
			BoundAt:  time.Now(),
		},
	}, nil
}

// parseFocusedPackage extracts the package of the focused window from
// `dumpsys window` output.
func parseFocusedPackage(output string) string {
	for _, line := range strings.Split(output, "\n") {
		if m := focusPattern.FindStringSubmatch(strings.TrimSpace(line)); m != nil {
			return m[1]
		}
	}
	return ""
}

type adbStream struct {
	device  *ADBDevice
	pkg     string
	binding definitions.CameraBinding
}

func (s *adbStream) Binding() definitions.CameraBinding {
	return s.binding
}

// Capture grabs the preview frame and stores it as a JPEG at dst.
func (s *adbStream) Capture(ctx context.Context, dst string) error {
	tempPath := filepath.Join(os.TempDir(), fmt.Sprintf("preview_%s.png", uuid.New().String()))
	defer func() {
		_ = os.Remove(tempPath)
	}()

	output, err := s.device.adb(ctx, "Capture", "shell", "screencap", "-p", remoteShotPath)
	if err != nil {
		return fmt.Errorf("screencap failed: %w", err)
	}
	if strings.Contains(output, "Status: -1") || strings.Contains(output, "Failed") {
		return fmt.Errorf("screencap failed: %s", strings.TrimSpace(output))
	}

	if _, err := s.device.adb(ctx, "Capture", "pull", remoteShotPath, tempPath); err != nil {
		return fmt.Errorf("pull failed: %w", err)
	}
	_, _ = s.device.adb(ctx, "Capture", "shell", "rm", "-f", remoteShotPath)

	data, err := os.ReadFile(tempPath)
	if err != nil {
		return err
	}
	img, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("cannot decode preview: %w", err)
	}

	f, err := os.Create(dst)
	if err != nil {
		return err
	}
	if err := jpeg.Encode(f, img, &jpeg.Options{Quality: jpegQuality}); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Close stops the camera app; without a known package it backs out of it.
func (s *adbStream) Close() error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if s.pkg != "" {
		_, err := s.device.adb(ctx, "Close", "shell", "am", "force-stop", s.pkg)
		return err
	}
	_, err := s.device.adb(ctx, "Close", "shell", "input", "keyevent", "4")
	return err
}
