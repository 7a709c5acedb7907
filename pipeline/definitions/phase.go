package definitions

import (
	"time"
)

// PhaseKind is the state of a pipeline run.
type PhaseKind string

const (
	PhaseIdle        PhaseKind = "idle"
	PhaseCapturing   PhaseKind = "capturing"
	PhaseUploading   PhaseKind = "uploading"
	PhaseProcessing  PhaseKind = "processing"
	PhaseResultReady PhaseKind = "result_ready"
	PhaseFailed      PhaseKind = "failed"
)

// Terminal reports whether the run stops here until the user acts.
func (k PhaseKind) Terminal() bool {
	return k == PhaseResultReady || k == PhaseFailed
}

// Busy reports whether a run is in flight.
func (k PhaseKind) Busy() bool {
	return k == PhaseCapturing || k == PhaseUploading || k == PhaseProcessing
}

// CameraStatus is the state of the capture surface, independent of runs.
type CameraStatus string

const (
	CameraUnbound          CameraStatus = "unbound"
	CameraBound            CameraStatus = "bound"
	CameraPermissionDenied CameraStatus = "permission_denied"
	CameraFailed           CameraStatus = "error"
)

// Phase is an immutable snapshot published to observers. Transitions build a
// new Phase; nothing mutates one after it has been published.
type Phase struct {
	Kind   PhaseKind
	RunID  string
	Origin Origin
	Camera CameraStatus
	Lens   LensFacing
	Bitmap *Bitmap
	Err    *PipelineError
	Since  time.Time
}

func (p Phase) With(kind PhaseKind) Phase {
	next := p
	next.Kind = kind
	next.Since = time.Now()
	if kind != PhaseResultReady {
		next.Bitmap = nil
	}
	if kind != PhaseFailed {
		next.Err = nil
	}
	if kind == PhaseIdle {
		next.RunID = ""
		next.Origin = ""
	}
	return next
}

// View is what the capture screen shows for a phase.
type View struct {
	ShowProcessing bool   `json:"show_processing"`
	ShowFailure    bool   `json:"show_failure"`
	ShowResult     bool   `json:"show_result"`
	CaptureEnabled bool   `json:"capture_enabled"`
	GalleryEnabled bool   `json:"gallery_enabled"`
	SwitchEnabled  bool   `json:"switch_enabled"`
	Blocked        bool   `json:"blocked"`
	Banner         string `json:"banner,omitempty"`
}

func (p Phase) View() View {
	v := View{
		ShowProcessing: p.Kind.Busy(),
		ShowFailure:    p.Kind == PhaseFailed,
		ShowResult:     p.Kind == PhaseResultReady && p.Bitmap != nil,
		GalleryEnabled: p.Kind == PhaseIdle,
		CaptureEnabled: p.Kind == PhaseIdle && p.Camera == CameraBound,
		SwitchEnabled:  p.Camera != CameraPermissionDenied,
		Blocked:        p.Camera == CameraPermissionDenied,
	}
	if p.Kind == PhaseFailed && p.Err != nil {
		v.Banner = p.Err.UserMessage()
	}
	return v
}
