package pipeline

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/spance/dermascan-go/pipeline/capture"
	"github.com/spance/dermascan-go/pipeline/client"
	"github.com/spance/dermascan-go/pipeline/definitions"
	"github.com/spance/dermascan-go/pipeline/permission"
	"github.com/spance/dermascan-go/pipeline/source"
)

// Pipeline drives one capture screen: Idle, Capturing, Uploading, Processing,
// then ResultReady or Failed. A single loop goroutine owns the phase; workers
// report back through events tagged with their run id, so results from an
// abandoned run never reach the screen.
type Pipeline struct {
	config    *definitions.PipelineConfig
	gate      *permission.Gate
	session   *capture.Session
	resolver  SourceResolver
	diagnoser Diagnoser

	events   chan event
	done     chan struct{}
	exitOnce sync.Once

	// cancels capture and resolve work on Exit; uploads are bounded by the
	// client timeouts instead
	lifeCtx    context.Context
	lifeCancel context.CancelFunc

	phase atomic.Pointer[definitions.Phase]

	subsMu  sync.Mutex
	subs    map[int]chan definitions.Phase
	nextSub int

	// owned by the loop goroutine
	current definitions.Phase
}

func New(cfg *definitions.PipelineConfig, gate *permission.Gate, session *capture.Session, resolver SourceResolver, diagnoser Diagnoser) *Pipeline {
	cfg = cfg.WithDefaults()
	lifeCtx, lifeCancel := context.WithCancel(context.Background())
	p := &Pipeline{
		config:     cfg,
		gate:       gate,
		session:    session,
		resolver:   resolver,
		diagnoser:  diagnoser,
		events:     make(chan event),
		done:       make(chan struct{}),
		lifeCtx:    lifeCtx,
		lifeCancel: lifeCancel,
		subs:       make(map[int]chan definitions.Phase),
	}
	p.current = definitions.Phase{
		Kind:   definitions.PhaseIdle,
		Camera: definitions.CameraUnbound,
		Lens:   session.Lens(),
		Since:  time.Now(),
	}
	initial := p.current
	p.phase.Store(&initial)
	go p.loop()
	return p
}

// NewFromDevice wires a pipeline around a device and an HTTP diagnosis client.
func NewFromDevice(device Device, cfg *definitions.PipelineConfig, clientCfg *definitions.ClientConfig, photoDir string) *Pipeline {
	cfg = cfg.WithDefaults()
	resolver := source.NewResolver()
	resolver.RemoveLivePhotos = true
	return New(
		cfg,
		permission.NewGate(device, 0),
		capture.NewSession(device, photoDir, cfg.Lens, cfg.Flash),
		resolver,
		client.NewClient(clientCfg),
	)
}

type event interface{}

type (
	triggerEvent struct {
		origin definitions.Origin
		path   string
		reply  chan error
	}
	resolvedEvent struct {
		runID string
		image []byte
	}
	submittedEvent struct {
		runID  string
		result *definitions.DiagnosisResult
	}
	decodedEvent struct {
		runID  string
		bitmap *definitions.Bitmap
	}
	failedEvent struct {
		runID string
		err   *definitions.PipelineError
	}
	clearFailureEvent struct{}
	cameraEvent       struct {
		status definitions.CameraStatus
		lens   definitions.LensFacing
	}
	acknowledgeEvent struct {
		from  definitions.PhaseKind
		reply chan acknowledgement
	}
)

type acknowledgement struct {
	bitmap *definitions.Bitmap
	err    error
}

func (p *Pipeline) loop() {
	defer p.closeSubscribers()
	for {
		select {
		case ev := <-p.events:
			select {
			case <-p.done:
				p.reject(ev)
				return
			default:
			}
			p.handle(ev)
		case <-p.done:
			return
		}
	}
}

// reject answers a caller still waiting on an event the loop will not handle.
func (p *Pipeline) reject(ev event) {
	switch ev := ev.(type) {
	case triggerEvent:
		ev.reply <- definitions.ErrExited
	case acknowledgeEvent:
		ev.reply <- acknowledgement{err: definitions.ErrExited}
	default:
		log.Debug().Msgf("pipeline exited, dropping %T", ev)
	}
}

func (p *Pipeline) handle(ev event) {
	switch ev := ev.(type) {
	case triggerEvent:
		ev.reply <- p.startRun(ev.origin, ev.path)
	case resolvedEvent:
		if !p.isCurrent(ev.runID, definitions.PhaseCapturing) {
			return
		}
		p.transition(p.current.With(definitions.PhaseUploading))
		go p.submit(ev.runID, definitions.NewUploadEnvelope(ev.image, p.config.CallerID))
	case submittedEvent:
		if !p.isCurrent(ev.runID, definitions.PhaseUploading) {
			return
		}
		p.transition(p.current.With(definitions.PhaseProcessing))
		go p.fetch(ev.runID, ev.result.ProcessedImageURL)
	case decodedEvent:
		if !p.isCurrent(ev.runID, definitions.PhaseProcessing) {
			return
		}
		next := p.current.With(definitions.PhaseResultReady)
		next.Bitmap = ev.bitmap
		p.transition(next)
	case failedEvent:
		if ev.runID != p.current.RunID || !p.current.Kind.Busy() {
			log.Debug().Str("run", ev.runID).Msg("dropping stale failure")
			return
		}
		p.fail(ev.err)
	case clearFailureEvent:
		// a timer left over from an earlier failure clears whatever failure
		// is showing when it fires
		if p.current.Kind == definitions.PhaseFailed {
			p.transition(p.current.With(definitions.PhaseIdle))
		}
	case cameraEvent:
		next := p.current
		next.Camera = ev.status
		next.Lens = ev.lens
		p.transition(next)
	case acknowledgeEvent:
		ev.reply <- p.acknowledge(ev.from)
	}
}

func (p *Pipeline) isCurrent(runID string, kind definitions.PhaseKind) bool {
	if p.current.RunID != runID || p.current.Kind != kind {
		log.Debug().Str("run", runID).Str("phase", string(p.current.Kind)).Msg("dropping stale result")
		return false
	}
	return true
}

func (p *Pipeline) startRun(origin definitions.Origin, path string) error {
	if p.current.Kind != definitions.PhaseIdle {
		log.Info().Str("phase", string(p.current.Kind)).Str("origin", string(origin)).Msg("trigger rejected, pipeline busy")
		return definitions.ErrPipelineBusy
	}
	runID := uuid.NewString()
	next := p.current.With(definitions.PhaseCapturing)
	next.RunID = runID
	next.Origin = origin
	p.transition(next)
	go p.acquire(runID, origin, path)
	return nil
}

func (p *Pipeline) fail(err *definitions.PipelineError) {
	next := p.current.With(definitions.PhaseFailed)
	next.Err = err
	p.transition(next)
	time.AfterFunc(p.config.FailureWindow, func() {
		p.post(clearFailureEvent{})
	})
}

func (p *Pipeline) acknowledge(from definitions.PhaseKind) acknowledgement {
	if p.current.Kind != from {
		if from == definitions.PhaseFailed {
			return acknowledgement{err: definitions.ErrNotFailed}
		}
		return acknowledgement{err: definitions.ErrNoResult}
	}
	bitmap := p.current.Bitmap
	p.transition(p.current.With(definitions.PhaseIdle))
	return acknowledgement{bitmap: bitmap}
}

// transition must run on the loop.
func (p *Pipeline) transition(next definitions.Phase) {
	prev := p.current.Kind
	p.current = next
	snapshot := next
	p.phase.Store(&snapshot)

	if prev != next.Kind {
		level := zerolog.DebugLevel
		if next.Err != nil {
			level = zerolog.WarnLevel
		}
		logEvent := log.WithLevel(level).Str("from", string(prev)).Str("to", string(next.Kind)).Str("run", next.RunID)
		if next.Err != nil {
			logEvent = logEvent.Err(next.Err)
		}
		logEvent.Msg("phase changed")
	}

	p.subsMu.Lock()
	defer p.subsMu.Unlock()
	for id, ch := range p.subs {
		select {
		case ch <- snapshot:
		default:
			log.Warn().Int("subscriber", id).Msg("subscriber is slow, dropping phase update")
		}
	}
}

// post delivers a worker event unless the pipeline has exited.
func (p *Pipeline) post(ev event) {
	select {
	case p.events <- ev:
	case <-p.done:
		log.Debug().Msgf("pipeline exited, dropping %T", ev)
	}
}

func (p *Pipeline) acquire(runID string, origin definitions.Origin, path string) {
	var req definitions.CaptureRequest
	if origin == definitions.LiveCapture {
		if p.gate.Denied() {
			p.post(failedEvent{runID: runID, err: definitions.NewPermissionDenied("pipeline.capture")})
			return
		}
		photo, err := p.session.CapturePhoto(p.lifeCtx)
		if err != nil {
			p.post(failedEvent{runID: runID, err: definitions.AsPipelineError(err, definitions.KindCamera, "pipeline.capture")})
			return
		}
		req = definitions.NewLiveCapture(photo)
	} else {
		req = definitions.NewGallerySelection(path)
	}
	log.Debug().Str("run", runID).Str("request", req.String()).Msg("capture request created")

	image, err := p.resolver.Resolve(p.lifeCtx, req)
	if err != nil {
		p.post(failedEvent{runID: runID, err: definitions.AsPipelineError(err, definitions.KindSource, "pipeline.resolve")})
		return
	}
	p.post(resolvedEvent{runID: runID, image: image})
}

func (p *Pipeline) submit(runID string, env definitions.UploadEnvelope) {
	result, err := p.diagnoser.Submit(context.Background(), env)
	if err != nil {
		p.post(failedEvent{runID: runID, err: definitions.AsPipelineError(err, definitions.KindNetwork, "pipeline.upload")})
		return
	}
	p.post(submittedEvent{runID: runID, result: result})
}

func (p *Pipeline) fetch(runID string, url string) {
	bitmap, err := p.diagnoser.Fetch(context.Background(), url)
	if err != nil {
		p.post(failedEvent{runID: runID, err: definitions.AsPipelineError(err, definitions.KindDecode, "pipeline.fetch")})
		return
	}
	p.post(decodedEvent{runID: runID, bitmap: bitmap})
}

// request sends a caller event to the loop.
func (p *Pipeline) request(ev event) error {
	select {
	case p.events <- ev:
		return nil
	case <-p.done:
		return definitions.ErrExited
	}
}

// TriggerCapture starts a run from the live camera. It returns
// ErrPipelineBusy unless the pipeline is Idle.
func (p *Pipeline) TriggerCapture() error {
	reply := make(chan error, 1)
	if err := p.request(triggerEvent{origin: definitions.LiveCapture, reply: reply}); err != nil {
		return err
	}
	return <-reply
}

// TriggerGallery starts a run from a picked image file.
func (p *Pipeline) TriggerGallery(path string) error {
	reply := make(chan error, 1)
	if err := p.request(triggerEvent{origin: definitions.GallerySelection, path: path, reply: reply}); err != nil {
		return err
	}
	return <-reply
}

// SwitchLens flips the camera facing. A run in flight is not affected.
func (p *Pipeline) SwitchLens(ctx context.Context) error {
	_, err := p.session.SwitchLens(ctx)
	if reqErr := p.request(cameraEvent{status: p.cameraStatus(err), lens: p.session.Lens()}); reqErr != nil {
		return reqErr
	}
	return err
}

func (p *Pipeline) cameraStatus(err error) definitions.CameraStatus {
	switch {
	case p.gate.Denied():
		return definitions.CameraPermissionDenied
	case err != nil:
		return definitions.CameraFailed
	}
	if _, bound := p.session.Binding(); bound {
		return definitions.CameraBound
	}
	return definitions.CameraUnbound
}

// Dismiss clears a failure before the window runs out.
func (p *Pipeline) Dismiss() error {
	_, err := p.ack(definitions.PhaseFailed)
	return err
}

// Retake discards the result and returns to Idle.
func (p *Pipeline) Retake() error {
	_, err := p.ack(definitions.PhaseResultReady)
	return err
}

// Proceed hands the result over to the caller and returns to Idle.
func (p *Pipeline) Proceed() (*definitions.Bitmap, error) {
	return p.ack(definitions.PhaseResultReady)
}

func (p *Pipeline) ack(from definitions.PhaseKind) (*definitions.Bitmap, error) {
	reply := make(chan acknowledgement, 1)
	if err := p.request(acknowledgeEvent{from: from, reply: reply}); err != nil {
		return nil, err
	}
	a := <-reply
	return a.bitmap, a.err
}

// OnVisible runs the permission gate and binds the camera. A denial leaves
// the screen blocked; gallery picks still work.
func (p *Pipeline) OnVisible(ctx context.Context) error {
	decision, err := p.gate.EnsureCaptureAuthorized(ctx)
	if decision != permission.Authorized {
		if reqErr := p.request(cameraEvent{status: definitions.CameraPermissionDenied, lens: p.session.Lens()}); reqErr != nil {
			return reqErr
		}
		return err
	}

	_, err = p.session.Bind(ctx, p.session.Lens(), p.session.Flash())
	if reqErr := p.request(cameraEvent{status: p.cameraStatus(err), lens: p.session.Lens()}); reqErr != nil {
		return reqErr
	}
	return err
}

// OnHidden releases the camera. A run in flight keeps going.
func (p *Pipeline) OnHidden() error {
	p.session.Release()
	return p.request(cameraEvent{status: definitions.CameraUnbound, lens: p.session.Lens()})
}

// Recheck clears a sticky denial and asks again.
func (p *Pipeline) Recheck(ctx context.Context) error {
	p.gate.Reset()
	return p.OnVisible(ctx)
}

// Exit leaves the screen: the camera is released at once and results still
// in flight are dropped. Exit is idempotent.
func (p *Pipeline) Exit() {
	p.exitOnce.Do(func() {
		p.lifeCancel()
		p.session.Close()
		close(p.done)
		log.Debug().Msg("pipeline exited")
	})
}

// Phase returns the latest published snapshot.
func (p *Pipeline) Phase() definitions.Phase {
	return *p.phase.Load()
}

// Subscribe returns a channel receiving every published snapshot and a
// function to stop receiving. The channel is closed after Exit.
func (p *Pipeline) Subscribe() (<-chan definitions.Phase, func()) {
	p.subsMu.Lock()
	defer p.subsMu.Unlock()

	ch := make(chan definitions.Phase, 32)
	select {
	case <-p.done:
		close(ch)
		return ch, func() {}
	default:
	}
	id := p.nextSub
	p.nextSub++
	p.subs[id] = ch
	return ch, func() {
		p.subsMu.Lock()
		defer p.subsMu.Unlock()
		if c, ok := p.subs[id]; ok {
			delete(p.subs, id)
			close(c)
		}
	}
}

func (p *Pipeline) closeSubscribers() {
	p.subsMu.Lock()
	defer p.subsMu.Unlock()
	for id, ch := range p.subs {
		delete(p.subs, id)
		close(ch)
	}
}

// IsExited reports whether err comes from a call made after Exit.
func IsExited(err error) bool {
	return errors.Is(err, definitions.ErrExited)
}
