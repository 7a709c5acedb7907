package definitions

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spance/dermascan-go/constants"
)

// ErrorKind classifies a failed pipeline run.
type ErrorKind string

const (
	KindPermissionDenied ErrorKind = "PERMISSION_DENIED"
	KindCamera           ErrorKind = "CAMERA_ERROR"
	KindSource           ErrorKind = "SOURCE_ERROR"
	KindTimeout          ErrorKind = "TIMEOUT"
	KindNetwork          ErrorKind = "NETWORK_ERROR"
	KindServer           ErrorKind = "SERVER_ERROR"
	KindDecode           ErrorKind = "DECODE_ERROR"
)

var (
	ErrPipelineBusy   = errors.New("pipeline busy: a run is already in progress")
	ErrNoResult       = errors.New("no diagnosis result available")
	ErrNotFailed      = errors.New("pipeline is not in failed state")
	ErrExited         = errors.New("capture screen has exited")
	ErrCameraNotReady = errors.New("camera not ready")
)

// PipelineError is an error that ends a pipeline run.
type PipelineError struct {
	Kind    ErrorKind
	Op      string
	Message string
	Err     error
}

func (e *PipelineError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %s: %v", e.Kind, e.Op, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s: %s", e.Kind, e.Op, e.Message)
}

func (e *PipelineError) Unwrap() error {
	return e.Err
}

// MessageKey is the message-map key of the failure banner.
func (e *PipelineError) MessageKey() string {
	return "error_" + strings.ToLower(string(e.Kind))
}

// Banner renders the failure banner from the text found under MessageKey.
// Camera, source and server failures carry their detail.
func (e *PipelineError) Banner(text string) string {
	if text == "" {
		return e.Message
	}
	switch e.Kind {
	case KindCamera, KindSource, KindServer:
		return text + ": " + e.Message
	}
	return text
}

// UserMessage is the English failure banner.
func (e *PipelineError) UserMessage() string {
	return e.Banner(constants.MESSAGES_EN_MAP[e.MessageKey()])
}

func NewPermissionDenied(op string) *PipelineError {
	return &PipelineError{Kind: KindPermissionDenied, Op: op, Message: "camera access not authorized"}
}

func NewCameraError(op, msg string, err error) *PipelineError {
	return &PipelineError{Kind: KindCamera, Op: op, Message: msg, Err: err}
}

func NewSourceError(op, msg string, err error) *PipelineError {
	return &PipelineError{Kind: KindSource, Op: op, Message: msg, Err: err}
}

func NewTimeout(op string, err error) *PipelineError {
	return &PipelineError{Kind: KindTimeout, Op: op, Message: "request timed out", Err: err}
}

func NewNetworkError(op string, err error) *PipelineError {
	return &PipelineError{Kind: KindNetwork, Op: op, Message: "connection failed", Err: err}
}

func NewServerError(op, msg string, err error) *PipelineError {
	return &PipelineError{Kind: KindServer, Op: op, Message: msg, Err: err}
}

func NewDecodeError(op string, err error) *PipelineError {
	return &PipelineError{Kind: KindDecode, Op: op, Message: "image decode failed", Err: err}
}

// KindOf returns the kind of the first PipelineError in err's chain.
func KindOf(err error) (ErrorKind, bool) {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe.Kind, true
	}
	return "", false
}

// AsPipelineError wraps anything that is not already a PipelineError into one
// of the given kind.
func AsPipelineError(err error, kind ErrorKind, op string) *PipelineError {
	var pe *PipelineError
	if errors.As(err, &pe) {
		return pe
	}
	return &PipelineError{Kind: kind, Op: op, Message: err.Error(), Err: err}
}
