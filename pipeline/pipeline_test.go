package pipeline

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"image/color"
	"image/jpeg"
	"image/png"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/spance/dermascan-go/pipeline/capture"
	"github.com/spance/dermascan-go/pipeline/client"
	"github.com/spance/dermascan-go/pipeline/definitions"
	"github.com/spance/dermascan-go/pipeline/permission"
	"github.com/spance/dermascan-go/pipeline/source"
)

func jpegBytes() []byte {
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	img.Set(2, 2, color.RGBA{R: 180, G: 120, B: 100, A: 255})
	var buf bytes.Buffer
	_ = jpeg.Encode(&buf, img, nil)
	return buf.Bytes()
}

func writePick(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "pick.jpg")
	require.NoError(t, os.WriteFile(path, jpegBytes(), 0o644))
	return path
}

type fakeCamera struct {
	mu         sync.Mutex
	open       int
	opens      int
	capErr     error
	closeDelay time.Duration
}

func (c *fakeCamera) Open(ctx context.Context, lens definitions.LensFacing, flash definitions.FlashMode) (capture.Stream, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.open++
	c.opens++
	return &fakeStream{cam: c, binding: definitions.CameraBinding{
		DeviceID: "fake", Lens: lens, Flash: flash, Surface: "preview", BoundAt: time.Now(),
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
}

func (s *fakeStream) Binding() definitions.CameraBinding { return s.binding }

func (s *fakeStream) Capture(ctx context.Context, dst string) error {
	s.cam.mu.Lock()
	capErr := s.cam.capErr
	s.cam.mu.Unlock()
	if capErr != nil {
		return capErr
	}
	return os.WriteFile(dst, jpegBytes(), 0o644)
}

func (s *fakeStream) Close() error {
	s.cam.mu.Lock()
	delay := s.cam.closeDelay
	s.cam.mu.Unlock()
	time.Sleep(delay)

	s.cam.mu.Lock()
	defer s.cam.mu.Unlock()
	s.cam.open--
	return nil
}

type fakeAuthorizer struct {
	mu     sync.Mutex
	status definitions.AuthStatus
}

func (a *fakeAuthorizer) set(status definitions.AuthStatus) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.status = status
}

func (a *fakeAuthorizer) Status(ctx context.Context) (definitions.AuthStatus, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.status, nil
}

func (a *fakeAuthorizer) Request(ctx context.Context) (definitions.AuthStatus, error) {
	return a.Status(ctx)
}

type fakeDiagnoser struct {
	mu        sync.Mutex
	submits   int
	fetches   int
	lastEnv   definitions.UploadEnvelope
	release   chan struct{}
	submitErr error
	fetchErr  error
}

func (d *fakeDiagnoser) Submit(ctx context.Context, env definitions.UploadEnvelope) (*definitions.DiagnosisResult, error) {
	d.mu.Lock()
	d.submits++
	d.lastEnv = env
	release, submitErr := d.release, d.submitErr
	d.mu.Unlock()

	if release != nil {
		<-release
	}
	if submitErr != nil {
		return nil, submitErr
	}
	return &definitions.DiagnosisResult{Status: definitions.DiagnosisSuccess, ProcessedImageURL: "http://x/y.jpg"}, nil
}

func (d *fakeDiagnoser) Fetch(ctx context.Context, url string) (*definitions.Bitmap, error) {
	d.mu.Lock()
	d.fetches++
	fetchErr := d.fetchErr
	d.mu.Unlock()
	if fetchErr != nil {
		return nil, fetchErr
	}
	return definitions.NewBitmap(image.NewRGBA(image.Rect(0, 0, 4, 4)), "jpeg", url), nil
}

func (d *fakeDiagnoser) counts() (int, int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.submits, d.fetches
}

type harness struct {
	p      *Pipeline
	cam    *fakeCamera
	auth   *fakeAuthorizer
	diag   *fakeDiagnoser
	window time.Duration
}

func newHarness(t *testing.T, diag Diagnoser) *harness {
	t.Helper()
	return newHarnessWithWindow(t, diag, 150*time.Millisecond)
}

func newHarnessWithWindow(t *testing.T, diag Diagnoser, window time.Duration) *harness {
	t.Helper()
	h := &harness{
		cam:    &fakeCamera{},
		auth:   &fakeAuthorizer{status: definitions.AuthGranted},
		window: window,
	}
	if diag == nil {
		h.diag = &fakeDiagnoser{}
		diag = h.diag
	}
	session := capture.NewSession(h.cam, t.TempDir(), definitions.LensFront, definitions.FlashOff)
	h.p = New(&definitions.PipelineConfig{CallerID: "default_user", FailureWindow: h.window},
		permission.NewGate(h.auth, time.Second), session, source.NewResolver(), diag)
	t.Cleanup(h.p.Exit)
	return h
}

func waitForKind(t *testing.T, p *Pipeline, kind definitions.PhaseKind) definitions.Phase {
	t.Helper()
	require.Eventually(t, func() bool { return p.Phase().Kind == kind }, 3*time.Second, 5*time.Millisecond,
		"never reached %s, last phase %s", kind, p.Phase().Kind)
	return p.Phase()
}

// collectUntil reads snapshots until one of the given kind arrives.
func collectUntil(t *testing.T, ch <-chan definitions.Phase, kind definitions.PhaseKind) []definitions.Phase {
	t.Helper()
	var seen []definitions.Phase
	timeout := time.After(3 * time.Second)
	for {
		select {
		case ph, ok := <-ch:
			require.True(t, ok, "subscription closed before %s", kind)
			seen = append(seen, ph)
			if ph.Kind == kind {
				return seen
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s", kind)
		}
	}
}

func kinds(phases []definitions.Phase) []definitions.PhaseKind {
	out := make([]definitions.PhaseKind, 0, len(phases))
	for _, ph := range phases {
		out = append(out, ph.Kind)
	}
	return out
}

func TestGalleryPickReachesResult(t *testing.T) {
	processed := func() []byte {
		var buf bytes.Buffer
		_ = png.Encode(&buf, image.NewRGBA(image.Rect(0, 0, 5, 3)))
		return buf.Bytes()
	}()
	mux := http.NewServeMux()
	var base string
	mux.HandleFunc("/api/upload/", func(w http.ResponseWriter, r *http.Request) {
		if r.FormValue("user_id") != "default_user" {
			w.WriteHeader(http.StatusBadRequest)
			return
		}
		fmt.Fprintf(w, `{"data":{"processed_image":"%s/y.png"}}`, base)
	})
	mux.HandleFunc("/y.png", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write(processed) })
	srv := httptest.NewServer(mux)
	defer srv.Close()
	base = srv.URL

	h := newHarness(t, client.NewClient(&definitions.ClientConfig{BaseURL: srv.URL, ReadTimeout: time.Second, WriteTimeout: time.Second}))
	updates, stop := h.p.Subscribe()
	defer stop()

	require.NoError(t, h.p.TriggerGallery(writePick(t)))
	seen := collectUntil(t, updates, definitions.PhaseResultReady)

	assert.Equal(t, []definitions.PhaseKind{
		definitions.PhaseCapturing,
		definitions.PhaseUploading,
		definitions.PhaseProcessing,
		definitions.PhaseResultReady,
	}, kinds(seen))

	result := seen[len(seen)-1]
	require.NotNil(t, result.Bitmap)
	assert.Equal(t, base+"/y.png", result.Bitmap.SourceURL)
	assert.Equal(t, definitions.GallerySelection, result.Origin)
	assert.True(t, result.View().ShowResult)
}

func TestUploadTimeoutFailsThenClears(t *testing.T) {
	diag := &fakeDiagnoser{submitErr: definitions.NewTimeout("client.submit", context.DeadlineExceeded)}
	h := newHarness(t, diag)
	require.NoError(t, h.p.OnVisible(context.Background()))

	updates, stop := h.p.Subscribe()
	defer stop()

	require.NoError(t, h.p.TriggerCapture())
	seen := collectUntil(t, updates, definitions.PhaseFailed)
	failed := seen[len(seen)-1]
	require.NotNil(t, failed.Err)
	assert.Equal(t, definitions.KindTimeout, failed.Err.Kind)
	assert.Equal(t, definitions.LiveCapture, failed.Origin)
	assert.NotEmpty(t, failed.View().Banner)
	assert.True(t, failed.View().ShowFailure)

	seen = collectUntil(t, updates, definitions.PhaseIdle)
	idle := seen[len(seen)-1]
	assert.GreaterOrEqual(t, idle.Since.Sub(failed.Since), h.window)
	assert.Less(t, idle.Since.Sub(failed.Since), h.window+time.Second)
	assert.Empty(t, idle.RunID)
}

func TestEveryFailureKindClearsAfterWindow(t *testing.T) {
	tests := []struct {
		name    string
		diag    *fakeDiagnoser
		prepare func(t *testing.T, h *harness)
		trigger func(t *testing.T, h *harness) error
		kind    definitions.ErrorKind
	}{
		{
			name:    "source",
			diag:    &fakeDiagnoser{},
			trigger: func(t *testing.T, h *harness) error { return h.p.TriggerGallery(filepath.Join(t.TempDir(), "missing.jpg")) },
			kind:    definitions.KindSource,
		},
		{
			name: "camera",
			diag: &fakeDiagnoser{},
			prepare: func(t *testing.T, h *harness) {
				h.cam.mu.Lock()
				h.cam.capErr = errors.New("shutter jammed")
				h.cam.mu.Unlock()
				require.NoError(t, h.p.OnVisible(context.Background()))
			},
			trigger: func(t *testing.T, h *harness) error { return h.p.TriggerCapture() },
			kind:    definitions.KindCamera,
		},
		{
			name:    "server",
			diag:    &fakeDiagnoser{submitErr: definitions.NewServerError("client.submit", "status 500", nil)},
			trigger: func(t *testing.T, h *harness) error { return h.p.TriggerGallery(writePick(t)) },
			kind:    definitions.KindServer,
		},
		{
			name:    "network",
			diag:    &fakeDiagnoser{submitErr: errors.New("connection refused")},
			trigger: func(t *testing.T, h *harness) error { return h.p.TriggerGallery(writePick(t)) },
			kind:    definitions.KindNetwork,
		},
		{
			name:    "decode",
			diag:    &fakeDiagnoser{fetchErr: definitions.NewDecodeError("client.fetch", errors.New("bad magic"))},
			trigger: func(t *testing.T, h *harness) error { return h.p.TriggerGallery(writePick(t)) },
			kind:    definitions.KindDecode,
		},
		{
			name: "permission denied",
			diag: &fakeDiagnoser{},
			prepare: func(t *testing.T, h *harness) {
				h.auth.set(definitions.AuthPermanentlyDenied)
				require.Error(t, h.p.OnVisible(context.Background()))
			},
			trigger: func(t *testing.T, h *harness) error { return h.p.TriggerCapture() },
			kind:    definitions.KindPermissionDenied,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t, tt.diag)
			if tt.prepare != nil {
				tt.prepare(t, h)
			}
			updates, stop := h.p.Subscribe()
			defer stop()

			require.NoError(t, tt.trigger(t, h))
			seen := collectUntil(t, updates, definitions.PhaseFailed)
			failed := seen[len(seen)-1]
			require.NotNil(t, failed.Err)
			assert.Equal(t, tt.kind, failed.Err.Kind)

			seen = collectUntil(t, updates, definitions.PhaseIdle)
			idle := seen[len(seen)-1]
			assert.GreaterOrEqual(t, idle.Since.Sub(failed.Since), h.window)
			assert.Nil(t, idle.Err)
		})
	}
}

func TestCaptureWhileDeniedNeverTouchesCamera(t *testing.T) {
	h := newHarness(t, nil)
	h.auth.set(definitions.AuthPermanentlyDenied)
	require.Error(t, h.p.OnVisible(context.Background()))

	require.NoError(t, h.p.TriggerCapture())
	failed := waitForKind(t, h.p, definitions.PhaseFailed)
	assert.Equal(t, definitions.KindPermissionDenied, failed.Err.Kind)
	assert.Equal(t, 0, h.cam.openCount())
	submits, _ := h.diag.counts()
	assert.Equal(t, 0, submits)
}

// An earlier failure's timer is not cancelled by Dismiss, so it clears the
// next failure before that failure's own window runs out.
func TestEarlierFailureTimerClearsLaterFailure(t *testing.T) {
	h := newHarnessWithWindow(t, nil, 400*time.Millisecond)
	updates, stop := h.p.Subscribe()
	defer stop()
	missing := filepath.Join(t.TempDir(), "missing.jpg")

	require.NoError(t, h.p.TriggerGallery(missing))
	seen := collectUntil(t, updates, definitions.PhaseFailed)
	first := seen[len(seen)-1]
	require.NoError(t, h.p.Dismiss())

	time.Sleep(150 * time.Millisecond)
	require.NoError(t, h.p.TriggerGallery(missing))
	seen = collectUntil(t, updates, definitions.PhaseFailed)
	second := seen[len(seen)-1]
	require.NotEqual(t, first.RunID, second.RunID)

	seen = collectUntil(t, updates, definitions.PhaseIdle)
	idle := seen[len(seen)-1]
	assert.GreaterOrEqual(t, idle.Since.Sub(first.Since), h.window)
	assert.Less(t, idle.Since.Sub(second.Since), h.window)
}

func TestVisibleRacingExitLeavesCameraReleased(t *testing.T) {
	for i := 0; i < 5; i++ {
		h := newHarness(t, nil)
		require.NoError(t, h.p.OnVisible(context.Background()))
		h.cam.mu.Lock()
		h.cam.closeDelay = 50 * time.Millisecond
		h.cam.mu.Unlock()

		exited := make(chan struct{})
		go func() {
			h.p.Exit()
			close(exited)
		}()
		time.Sleep(10 * time.Millisecond)
		assert.Error(t, h.p.OnVisible(context.Background()))
		<-exited

		assert.Zero(t, h.cam.openCount(), "trial %d", i)
	}
}

func TestTriggerWhileBusyIsRejected(t *testing.T) {
	diag := &fakeDiagnoser{release: make(chan struct{})}
	h := newHarness(t, diag)
	require.NoError(t, h.p.OnVisible(context.Background()))

	require.NoError(t, h.p.TriggerGallery(writePick(t)))
	uploading := waitForKind(t, h.p, definitions.PhaseUploading)

	assert.ErrorIs(t, h.p.TriggerCapture(), definitions.ErrPipelineBusy)
	assert.ErrorIs(t, h.p.TriggerGallery(writePick(t)), definitions.ErrPipelineBusy)
	assert.Equal(t, uploading.RunID, h.p.Phase().RunID)

	close(diag.release)
	waitForKind(t, h.p, definitions.PhaseResultReady)
	submits, fetches := diag.counts()
	assert.Equal(t, 1, submits)
	assert.Equal(t, 1, fetches)
}

func TestConcurrentTriggersStartOneRun(t *testing.T) {
	diag := &fakeDiagnoser{release: make(chan struct{})}
	h := newHarness(t, diag)
	path := writePick(t)

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
		busy     int
	)
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			err := h.p.TriggerGallery(path)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				accepted++
			case errors.Is(err, definitions.ErrPipelineBusy):
				busy++
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, accepted)
	assert.Equal(t, 19, busy)

	close(diag.release)
	waitForKind(t, h.p, definitions.PhaseResultReady)
	submits, _ := diag.counts()
	assert.Equal(t, 1, submits)
}

func TestExitDuringUploadDropsLateResult(t *testing.T) {
	diag := &fakeDiagnoser{release: make(chan struct{})}
	h := newHarness(t, diag)
	require.NoError(t, h.p.OnVisible(context.Background()))
	require.Equal(t, 1, h.cam.openCount())

	updates, _ := h.p.Subscribe()
	require.NoError(t, h.p.TriggerGallery(writePick(t)))
	collectUntil(t, updates, definitions.PhaseUploading)

	h.p.Exit()
	assert.Equal(t, 0, h.cam.openCount())

	close(diag.release)
	time.Sleep(100 * time.Millisecond)

	assert.Equal(t, definitions.PhaseUploading, h.p.Phase().Kind)
	_, fetches := diag.counts()
	assert.Equal(t, 0, fetches)
	for range updates {
		// drained until closed by Exit
	}

	assert.ErrorIs(t, h.p.TriggerCapture(), definitions.ErrExited)
	_, err := h.p.Proceed()
	assert.True(t, IsExited(err))
	h.p.Exit()
}

func TestSwitchLensDuringUploadKeepsRun(t *testing.T) {
	diag := &fakeDiagnoser{release: make(chan struct{})}
	h := newHarness(t, diag)
	require.NoError(t, h.p.OnVisible(context.Background()))

	require.NoError(t, h.p.TriggerGallery(writePick(t)))
	uploading := waitForKind(t, h.p, definitions.PhaseUploading)

	require.NoError(t, h.p.SwitchLens(context.Background()))
	require.Eventually(t, func() bool { return h.p.Phase().Lens == definitions.LensBack }, time.Second, 5*time.Millisecond)
	assert.Equal(t, definitions.PhaseUploading, h.p.Phase().Kind)
	assert.Equal(t, uploading.RunID, h.p.Phase().RunID)
	assert.Equal(t, 1, h.cam.openCount())

	close(diag.release)
	result := waitForKind(t, h.p, definitions.PhaseResultReady)
	assert.Equal(t, definitions.LensBack, result.Lens)
	assert.Equal(t, definitions.CameraBound, result.Camera)
}

func TestCaptureWithoutCameraFails(t *testing.T) {
	h := newHarness(t, nil)

	require.NoError(t, h.p.TriggerCapture())
	failed := waitForKind(t, h.p, definitions.PhaseFailed)
	assert.Equal(t, definitions.KindCamera, failed.Err.Kind)
	assert.ErrorIs(t, failed.Err, definitions.ErrCameraNotReady)
	submits, _ := h.diag.counts()
	assert.Equal(t, 0, submits)
}

func TestCameraFailureDuringCapture(t *testing.T) {
	h := newHarness(t, nil)
	h.cam.capErr = errors.New("shutter jammed")
	require.NoError(t, h.p.OnVisible(context.Background()))

	require.NoError(t, h.p.TriggerCapture())
	failed := waitForKind(t, h.p, definitions.PhaseFailed)
	assert.Equal(t, definitions.KindCamera, failed.Err.Kind)
}

func TestSourceFailure(t *testing.T) {
	h := newHarness(t, nil)

	require.NoError(t, h.p.TriggerGallery(filepath.Join(t.TempDir(), "missing.jpg")))
	failed := waitForKind(t, h.p, definitions.PhaseFailed)
	assert.Equal(t, definitions.KindSource, failed.Err.Kind)
}

func TestPermissionDeniedBlocksCamera(t *testing.T) {
	h := newHarness(t, nil)
	h.auth.set(definitions.AuthPermanentlyDenied)

	err := h.p.OnVisible(context.Background())
	kind, ok := definitions.KindOf(err)
	require.True(t, ok)
	assert.Equal(t, definitions.KindPermissionDenied, kind)

	require.Eventually(t, func() bool { return h.p.Phase().View().Blocked }, time.Second, 5*time.Millisecond)
	view := h.p.Phase().View()
	assert.False(t, view.CaptureEnabled)
	assert.False(t, view.SwitchEnabled)
	assert.True(t, view.GalleryEnabled)
	assert.Equal(t, 0, h.cam.openCount())

	// gallery picks still run
	require.NoError(t, h.p.TriggerGallery(writePick(t)))
	waitForKind(t, h.p, definitions.PhaseResultReady)
	require.NoError(t, h.p.Retake())

	// denial sticks until rechecked
	h.auth.set(definitions.AuthGranted)
	require.Error(t, h.p.OnVisible(context.Background()))
	require.NoError(t, h.p.Recheck(context.Background()))
	require.Eventually(t, func() bool { return h.p.Phase().Camera == definitions.CameraBound }, time.Second, 5*time.Millisecond)
	assert.True(t, h.p.Phase().View().CaptureEnabled)
	assert.Equal(t, 1, h.cam.openCount())
}

func TestHiddenReleasesCamera(t *testing.T) {
	h := newHarness(t, nil)
	require.NoError(t, h.p.OnVisible(context.Background()))
	require.Equal(t, 1, h.cam.openCount())

	require.NoError(t, h.p.OnHidden())
	assert.Equal(t, 0, h.cam.openCount())
	require.Eventually(t, func() bool { return h.p.Phase().Camera == definitions.CameraUnbound }, time.Second, 5*time.Millisecond)

	require.NoError(t, h.p.OnVisible(context.Background()))
	assert.Equal(t, 1, h.cam.openCount())
}

func TestAcknowledgements(t *testing.T) {
	h := newHarness(t, nil)

	assert.ErrorIs(t, h.p.Dismiss(), definitions.ErrNotFailed)
	assert.ErrorIs(t, h.p.Retake(), definitions.ErrNoResult)
	_, err := h.p.Proceed()
	assert.ErrorIs(t, err, definitions.ErrNoResult)

	require.NoError(t, h.p.TriggerGallery(writePick(t)))
	waitForKind(t, h.p, definitions.PhaseResultReady)
	bitmap, err := h.p.Proceed()
	require.NoError(t, err)
	require.NotNil(t, bitmap)
	assert.Equal(t, "http://x/y.jpg", bitmap.SourceURL)
	assert.Equal(t, definitions.PhaseIdle, h.p.Phase().Kind)
	assert.Nil(t, h.p.Phase().Bitmap)

	submits, _ := h.diag.counts()
	assert.Equal(t, 1, submits)
	h.diag.mu.Lock()
	assert.Equal(t, "default_user", h.diag.lastEnv.CallerID)
	assert.Equal(t, jpegBytes(), h.diag.lastEnv.Image)
	h.diag.mu.Unlock()

	require.NoError(t, h.p.TriggerGallery(filepath.Join(t.TempDir(), "missing.jpg")))
	waitForKind(t, h.p, definitions.PhaseFailed)
	require.NoError(t, h.p.Dismiss())
	assert.Equal(t, definitions.PhaseIdle, h.p.Phase().Kind)
}

func ExamplePipeline() {
	mux := http.NewServeMux()
	var base string
	mux.HandleFunc("/api/upload/", func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprintf(w, `{"data":{"processed_image":"%s/y.jpg"}}`, base)
	})
	mux.HandleFunc("/y.jpg", func(w http.ResponseWriter, r *http.Request) { _, _ = w.Write(jpegBytes()) })
	srv := httptest.NewServer(mux)
	defer srv.Close()
	base = srv.URL

	dir, _ := os.MkdirTemp("", "dermascan")
	defer os.RemoveAll(dir)
	pick := filepath.Join(dir, "pick.jpg")
	_ = os.WriteFile(pick, jpegBytes(), 0o644)

	p := New(nil,
		permission.NewGate(&fakeAuthorizer{status: definitions.AuthGranted}, time.Second),
		capture.NewSession(&fakeCamera{}, dir, definitions.LensFront, definitions.FlashOff),
		source.NewResolver(),
		client.NewClient(&definitions.ClientConfig{BaseURL: srv.URL}),
	)
	defer p.Exit()

	updates, stop := p.Subscribe()
	defer stop()
	_ = p.TriggerGallery(pick)
	for phase := range updates {
		fmt.Println(phase.Kind)
		if phase.Kind.Terminal() {
			break
		}
	}
	bitmap, _ := p.Proceed()
	fmt.Println(bitmap.Width, bitmap.Height)
	// Output:
	// capturing
	// uploading
	// processing
	// result_ready
	// 8 8
}
