package still

import (
	"context"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"os"
	"path/filepath"
	"time"

	_ "image/png"

	_ "golang.org/x/image/webp"

	"github.com/rs/zerolog/log"

	"github.com/spance/dermascan-go/pipeline/capture"
	"github.com/spance/dermascan-go/pipeline/definitions"
)

const deviceID = "still"

// Device is a camera backed by image files, one per lens. It stands in for
// real hardware on desktops and in tests.
type Device struct {
	images     map[definitions.LensFacing]string
	denyAccess bool
}

// NewDevice serves front and back from the given files. When only one is set
// both lenses use it.
func NewDevice(frontImage, backImage string, denyAccess bool) (*Device, error) {
	if frontImage == "" && backImage == "" {
		return nil, errors.New("still device needs --front-image or --back-image")
	}
	if frontImage == "" {
		frontImage = backImage
	}
	if backImage == "" {
		backImage = frontImage
	}
	for _, path := range []string{frontImage, backImage} {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("still image unavailable: %w", err)
		}
	}
	return &Device{
		images: map[definitions.LensFacing]string{
			definitions.LensFront: frontImage,
			definitions.LensBack:  backImage,
		},
		denyAccess: denyAccess,
	}, nil
}

func (d *Device) Status(ctx context.Context) (definitions.AuthStatus, error) {
	if d.denyAccess {
		return definitions.AuthPermanentlyDenied, nil
	}
	return definitions.AuthGranted, nil
}

func (d *Device) Request(ctx context.Context) (definitions.AuthStatus, error) {
	return d.Status(ctx)
}

func (d *Device) ListDevices(ctx context.Context) ([]definitions.DeviceInfo, error) {
	return []definitions.DeviceInfo{{
		DeviceID:       deviceID,
		Status:         "device",
		ConnectionType: definitions.Local,
		Model:          filepath.Base(d.images[definitions.LensFront]),
	}}, nil
}

func (d *Device) Open(ctx context.Context, lens definitions.LensFacing, flash definitions.FlashMode) (capture.Stream, error) {
	path, ok := d.images[lens]
	if !ok {
		return nil, fmt.Errorf("unknown lens %q", lens)
	}
	log.Debug().Str("lens", string(lens)).Str("image", path).Msg("still camera opened")
	return &stream{
		path: path,
		binding: definitions.CameraBinding{
			DeviceID: deviceID,
			Lens:     lens,
			Flash:    flash,
			Surface:  "file:" + path,
			BoundAt:  time.Now(),
		},
	}, nil
}

type stream struct {
	path    string
	binding definitions.CameraBinding
	closed  bool
}

func (s *stream) Binding() definitions.CameraBinding {
	return s.binding
}

// Capture re-encodes the lens image as a JPEG at dst.
func (s *stream) Capture(ctx context.Context, dst string) error {
	if s.closed {
		return errors.New("stream closed")
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	f, err := os.Open(s.path)
	if err != nil {
		return err
	}
	defer f.Close()

	img, _, err := image.Decode(f)
	if err != nil {
		return fmt.Errorf("cannot decode %s: %w", s.path, err)
	}

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if err := jpeg.Encode(out, img, &jpeg.Options{Quality: 92}); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}

func (s *stream) Close() error {
	s.closed = true
	return nil
}
