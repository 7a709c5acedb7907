package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spance/dermascan-go/constants"
	"github.com/spance/dermascan-go/pipeline/definitions"
)

// Camera opens hardware streams. Implementations do not need to be safe for
// concurrent use; the Session serializes every call.
type Camera interface {
	Open(ctx context.Context, lens definitions.LensFacing, flash definitions.FlashMode) (Stream, error)
}

// Stream is one open hardware binding.
type Stream interface {
	Binding() definitions.CameraBinding
	// Capture writes a JPEG photo to dst.
	Capture(ctx context.Context, dst string) error
	Close() error
}

var errSessionClosed = errors.New("capture session closed")

// Session owns the camera. All state lives on a single actor goroutine, so at
// most one Stream is ever open.
type Session struct {
	camera   Camera
	photoDir string

	cmds      chan func()
	done      chan struct{}
	closeOnce sync.Once

	// owned by the actor goroutine
	closed bool
	stream Stream
	lens   definitions.LensFacing
	flash  definitions.FlashMode
}

func NewSession(camera Camera, photoDir string, lens definitions.LensFacing, flash definitions.FlashMode) *Session {
	if photoDir == "" {
		photoDir = os.TempDir()
	}
	if lens == "" {
		lens = definitions.LensFront
	}
	if flash == "" {
		flash = definitions.FlashOff
	}
	s := &Session{
		camera:   camera,
		photoDir: photoDir,
		cmds:     make(chan func()),
		done:     make(chan struct{}),
		lens:     lens,
		flash:    flash,
	}
	go s.loop()
	return s
}

func (s *Session) loop() {
	for {
		select {
		case fn := <-s.cmds:
			fn()
		case <-s.done:
			return
		}
	}
}

// do runs fn on the actor and waits for it.
func (s *Session) do(ctx context.Context, fn func()) error {
	finished := make(chan struct{})
	select {
	case s.cmds <- func() { fn(); close(finished) }:
	case <-s.done:
		return errSessionClosed
	case <-ctx.Done():
		return ctx.Err()
	}
	<-finished
	return nil
}

// Bind releases the current binding, if any, and opens a new one.
func (s *Session) Bind(ctx context.Context, lens definitions.LensFacing, flash definitions.FlashMode) (definitions.CameraBinding, error) {
	var (
		binding definitions.CameraBinding
		err     error
	)
	if doErr := s.do(ctx, func() {
		if s.closed {
			err = definitions.NewCameraError("capture.bind", "session unavailable", errSessionClosed)
			return
		}
		s.lens, s.flash = lens, flash
		binding, err = s.rebind(ctx)
	}); doErr != nil {
		return binding, definitions.NewCameraError("capture.bind", "session unavailable", doErr)
	}
	return binding, err
}

// SwitchLens flips the facing. A bound session is rebound; an unbound one only
// remembers the new preference.
func (s *Session) SwitchLens(ctx context.Context) (definitions.CameraBinding, error) {
	var (
		binding definitions.CameraBinding
		err     error
	)
	if doErr := s.do(ctx, func() {
		if s.closed {
			err = definitions.NewCameraError("capture.switch_lens", "session unavailable", errSessionClosed)
			return
		}
		s.lens = s.lens.Toggle()
		if s.stream == nil {
			binding = definitions.CameraBinding{Lens: s.lens, Flash: s.flash}
			return
		}
		binding, err = s.rebind(ctx)
	}); doErr != nil {
		return binding, definitions.NewCameraError("capture.switch_lens", "session unavailable", doErr)
	}
	return binding, err
}

// rebind must run on the actor.
func (s *Session) rebind(ctx context.Context) (definitions.CameraBinding, error) {
	s.release()

	stream, err := s.camera.Open(ctx, s.lens, s.flash)
	if err != nil {
		log.Error().Err(err).Str("lens", string(s.lens)).Msg("camera bind failed")
		return definitions.CameraBinding{}, definitions.NewCameraError("capture.bind", "cannot open camera", err)
	}
	s.stream = stream
	binding := stream.Binding()
	log.Debug().Str("lens", string(binding.Lens)).Str("surface", binding.Surface).Msg("camera bound")
	return binding, nil
}

// release must run on the actor.
func (s *Session) release() {
	if s.stream == nil {
		return
	}
	if err := s.stream.Close(); err != nil {
		log.Warn().Err(err).Msg("camera release failed")
	}
	s.stream = nil
	log.Debug().Msg("camera released")
}

// CapturePhoto takes a photo with the active binding. It fails immediately
// when nothing is bound.
func (s *Session) CapturePhoto(ctx context.Context) (definitions.PhotoFile, error) {
	var (
		photo definitions.PhotoFile
		err   error
	)
	if doErr := s.do(ctx, func() {
		if s.stream == nil {
			err = definitions.NewCameraError("capture.photo", definitions.ErrCameraNotReady.Error(), definitions.ErrCameraNotReady)
			return
		}
		photo, err = s.capture(ctx)
	}); doErr != nil {
		return photo, definitions.NewCameraError("capture.photo", "session unavailable", doErr)
	}
	return photo, err
}

func (s *Session) capture(ctx context.Context) (definitions.PhotoFile, error) {
	if err := os.MkdirAll(s.photoDir, 0o755); err != nil {
		return definitions.PhotoFile{}, definitions.NewCameraError("capture.photo", "cannot create photo directory", err)
	}
	now := time.Now()
	name := fmt.Sprintf("%s-%03d.jpg", now.Format(constants.PhotoFileLayout), now.Nanosecond()/int(time.Millisecond))
	dst := filepath.Join(s.photoDir, name)

	if err := s.stream.Capture(ctx, dst); err != nil {
		_ = os.Remove(dst)
		log.Error().Err(err).Msg("capture failed")
		return definitions.PhotoFile{}, definitions.NewCameraError("capture.photo", "capture failed", err)
	}
	log.Debug().Str("path", dst).Msg("photo captured")
	return definitions.PhotoFile{Path: dst, Lens: s.lens, CapturedAt: now}, nil
}

// Release drops the binding but keeps the lens preference.
func (s *Session) Release() {
	_ = s.do(context.Background(), s.release)
}

// Binding returns the active binding, if any.
func (s *Session) Binding() (definitions.CameraBinding, bool) {
	var (
		binding definitions.CameraBinding
		ok      bool
	)
	_ = s.do(context.Background(), func() {
		if s.stream != nil {
			binding, ok = s.stream.Binding(), true
		}
	})
	return binding, ok
}

// Lens returns the preferred facing.
func (s *Session) Lens() definitions.LensFacing {
	lens := definitions.LensFront
	_ = s.do(context.Background(), func() { lens = s.lens })
	return lens
}

// Flash returns the configured flash mode.
func (s *Session) Flash() definitions.FlashMode {
	flash := definitions.FlashOff
	_ = s.do(context.Background(), func() { flash = s.flash })
	return flash
}

// Close releases the camera and stops the session. Commands queued behind
// the release see a closed session and never open a stream.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		_ = s.do(context.Background(), func() {
			s.release()
			s.closed = true
		})
		close(s.done)
	})
}
