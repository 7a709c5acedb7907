package capture

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spance/dermascan-go/pipeline/definitions"
)

type fakeCamera struct {
	mu      sync.Mutex
	open    int
	maxOpen int
	opens   int
	failOn  int // fail the n-th Open (1-based), 0 = never
	capErr  error

	closeDelay time.Duration
}

func (c *fakeCamera) Open(ctx context.Context, lens definitions.LensFacing, flash definitions.FlashMode) (Stream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.opens++
	if c.failOn == c.opens {
		return nil, errors.New("hardware busy")
	}
	c.open++
	if c.open > c.maxOpen {
		c.maxOpen = c.open
	}
	return &fakeStream{cam: c, binding: definitions.CameraBinding{
		Lens:    lens,
		Flash:   flash,
		Surface: fmt.Sprintf("surface-%d", c.opens),
		BoundAt: time.Now(),
	}}, nil
}

func (c *fakeCamera) openCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.open
}

type fakeStream struct {
	cam     *fakeCamera
	binding definitions.CameraBinding
	closed  bool
}

func (s *fakeStream) Binding() definitions.CameraBinding { return s.binding }

func (s *fakeStream) Capture(ctx context.Context, dst string) error {
	if s.cam.capErr != nil {
		return s.cam.capErr
	}
	return os.WriteFile(dst, []byte("jpeg"), 0o644)
}

func (s *fakeStream) Close() error {
	if s.closed {
		return errors.New("double close")
	}
	s.closed = true
	time.Sleep(s.cam.closeDelay)
	s.cam.mu.Lock()
	s.cam.open--
	s.cam.mu.Unlock()
	return nil
}

func newTestSession(t *testing.T, cam *fakeCamera) *Session {
	t.Helper()
	s := NewSession(cam, t.TempDir(), definitions.LensFront, definitions.FlashOff)
	t.Cleanup(s.Close)
	return s
}

func TestSession_BindSwitchKeepsSingleStream(t *testing.T) {
	cam := &fakeCamera{}
	s := newTestSession(t, cam)
	ctx := context.Background()

	_, err := s.Bind(ctx, definitions.LensFront, definitions.FlashOff)
	require.NoError(t, err)

	for i := 0; i < 5; i++ {
		_, err = s.SwitchLens(ctx)
		require.NoError(t, err)
		_, err = s.Bind(ctx, s.Lens(), definitions.FlashOn)
		require.NoError(t, err)
	}

	assert.Equal(t, 1, cam.openCount())
	assert.Equal(t, 1, cam.maxOpen)
}

func TestSession_ConcurrentCallsNeverOpenTwoStreams(t *testing.T) {
	cam := &fakeCamera{}
	s := newTestSession(t, cam)
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%2 == 0 {
				_, _ = s.SwitchLens(ctx)
			} else {
				_, _ = s.Bind(ctx, definitions.LensBack, definitions.FlashOff)
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 1, cam.openCount())
	assert.Equal(t, 1, cam.maxOpen)
}

func TestSession_SwitchLensTogglesFacing(t *testing.T) {
	cam := &fakeCamera{}
	s := newTestSession(t, cam)
	ctx := context.Background()

	binding, err := s.Bind(ctx, definitions.LensFront, definitions.FlashOff)
	require.NoError(t, err)
	assert.Equal(t, definitions.LensFront, binding.Lens)

	binding, err = s.SwitchLens(ctx)
	require.NoError(t, err)
	assert.Equal(t, definitions.LensBack, binding.Lens)

	current, ok := s.Binding()
	require.True(t, ok)
	assert.Equal(t, definitions.LensBack, current.Lens)
}

func TestSession_SwitchLensWhileUnboundOnlyFlipsPreference(t *testing.T) {
	cam := &fakeCamera{}
	s := newTestSession(t, cam)

	_, err := s.SwitchLens(context.Background())
	require.NoError(t, err)
	assert.Equal(t, definitions.LensBack, s.Lens())
	assert.Zero(t, cam.opens)

	_, ok := s.Binding()
	assert.False(t, ok)
}

func TestSession_CaptureWithoutBindingFailsFast(t *testing.T) {
	s := newTestSession(t, &fakeCamera{})

	start := time.Now()
	_, err := s.CapturePhoto(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, definitions.ErrCameraNotReady)
	kind, _ := definitions.KindOf(err)
	assert.Equal(t, definitions.KindCamera, kind)
	assert.Less(t, time.Since(start), time.Second)
}

func TestSession_CapturePhotoWritesFile(t *testing.T) {
	s := newTestSession(t, &fakeCamera{})
	ctx := context.Background()
	_, err := s.Bind(ctx, definitions.LensBack, definitions.FlashOff)
	require.NoError(t, err)

	photo, err := s.CapturePhoto(ctx)
	require.NoError(t, err)
	assert.Equal(t, definitions.LensBack, photo.Lens)
	assert.FileExists(t, photo.Path)
	assert.Regexp(t, `\d{4}-\d{2}-\d{2}-\d{2}-\d{2}-\d{2}-\d{3}\.jpg$`, photo.Path)
}

func TestSession_CaptureErrorRemovesPartialFile(t *testing.T) {
	cam := &fakeCamera{capErr: errors.New("shutter jammed")}
	s := newTestSession(t, cam)
	ctx := context.Background()
	_, err := s.Bind(ctx, definitions.LensFront, definitions.FlashOff)
	require.NoError(t, err)

	_, err = s.CapturePhoto(ctx)
	kind, ok := definitions.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, definitions.KindCamera, kind)
}

func TestSession_BindFailureLeavesUnboundAndRetryable(t *testing.T) {
	cam := &fakeCamera{failOn: 2}
	s := newTestSession(t, cam)
	ctx := context.Background()

	_, err := s.Bind(ctx, definitions.LensFront, definitions.FlashOff)
	require.NoError(t, err)

	_, err = s.SwitchLens(ctx)
	require.Error(t, err)
	_, ok := s.Binding()
	assert.False(t, ok)
	assert.Zero(t, cam.openCount())

	_, err = s.Bind(ctx, s.Lens(), definitions.FlashOff)
	require.NoError(t, err)
	assert.Equal(t, 1, cam.openCount())
}

func TestSession_ReleaseAndClose(t *testing.T) {
	cam := &fakeCamera{}
	s := NewSession(cam, t.TempDir(), "", "")
	ctx := context.Background()

	_, err := s.Bind(ctx, definitions.LensFront, definitions.FlashOff)
	require.NoError(t, err)
	s.Release()
	assert.Zero(t, cam.openCount())
	s.Release()

	_, err = s.Bind(ctx, definitions.LensFront, definitions.FlashOff)
	require.NoError(t, err)
	s.Close()
	s.Close()
	assert.Zero(t, cam.openCount())

	_, err = s.Bind(ctx, definitions.LensFront, definitions.FlashOff)
	assert.Error(t, err)
}

func TestSession_BindQueuedBehindCloseNeverOpens(t *testing.T) {
	for i := 0; i < 10; i++ {
		cam := &fakeCamera{closeDelay: 50 * time.Millisecond}
		s := NewSession(cam, t.TempDir(), "", "")
		ctx := context.Background()

		_, err := s.Bind(ctx, definitions.LensFront, definitions.FlashOff)
		require.NoError(t, err)

		closed := make(chan struct{})
		go func() {
			s.Close()
			close(closed)
		}()
		time.Sleep(10 * time.Millisecond)
		_, err = s.Bind(ctx, definitions.LensBack, definitions.FlashOff)
		assert.Error(t, err)
		<-closed

		assert.Zero(t, cam.openCount(), "trial %d", i)
	}
}

func TestSession_SwitchLensAfterCloseFails(t *testing.T) {
	cam := &fakeCamera{}
	s := NewSession(cam, t.TempDir(), "", "")
	_, err := s.Bind(context.Background(), definitions.LensFront, definitions.FlashOff)
	require.NoError(t, err)
	s.Close()

	_, err = s.SwitchLens(context.Background())
	assert.Error(t, err)
	assert.Zero(t, cam.openCount())
}
