package definitions

import (
	"fmt"
	"strings"
	"time"
)

// Origin is where a capture request got its image from.
type Origin string

const (
	LiveCapture      Origin = "live_capture"
	GallerySelection Origin = "gallery_selection"
)

type LensFacing string

const (
	LensFront LensFacing = "front"
	LensBack  LensFacing = "back"
)

// Toggle returns the opposite facing.
func (l LensFacing) Toggle() LensFacing {
	if l == LensFront {
		return LensBack
	}
	return LensFront
}

func ParseLensFacing(s string) (LensFacing, error) {
	switch LensFacing(strings.ToLower(strings.TrimSpace(s))) {
	case LensFront:
		return LensFront, nil
	case LensBack:
		return LensBack, nil
	default:
		return "", fmt.Errorf("invalid lens facing: %q", s)
	}
}

type FlashMode string

const (
	FlashOff  FlashMode = "off"
	FlashOn   FlashMode = "on"
	FlashAuto FlashMode = "auto"
)

func ParseFlashMode(s string) (FlashMode, error) {
	switch FlashMode(strings.ToLower(strings.TrimSpace(s))) {
	case FlashOff, "":
		return FlashOff, nil
	case FlashOn:
		return FlashOn, nil
	case FlashAuto:
		return FlashAuto, nil
	default:
		return "", fmt.Errorf("invalid flash mode: %q", s)
	}
}

// CameraBinding is a claim on the camera hardware.
type CameraBinding struct {
	DeviceID string     `json:"device_id,omitempty"`
	Lens     LensFacing `json:"lens"`
	Flash    FlashMode  `json:"flash"`
	Surface  string     `json:"surface"`
	BoundAt  time.Time  `json:"bound_at"`
}

// PhotoFile is a photo the camera has just written to disk.
type PhotoFile struct {
	Path       string     `json:"path"`
	Lens       LensFacing `json:"lens"`
	CapturedAt time.Time  `json:"captured_at"`
}

// CaptureRequest identifies the image a pipeline run works on. Fields are
// unexported so a request cannot change once built.
type CaptureRequest struct {
	origin    Origin
	path      string
	createdAt time.Time
}

func NewLiveCapture(photo PhotoFile) CaptureRequest {
	return CaptureRequest{origin: LiveCapture, path: photo.Path, createdAt: time.Now()}
}

func NewGallerySelection(path string) CaptureRequest {
	return CaptureRequest{origin: GallerySelection, path: path, createdAt: time.Now()}
}

func (r CaptureRequest) Origin() Origin       { return r.origin }
func (r CaptureRequest) Path() string         { return r.path }
func (r CaptureRequest) CreatedAt() time.Time { return r.createdAt }

func (r CaptureRequest) String() string {
	return fmt.Sprintf("%s(%s)", r.origin, r.path)
}
