package pipeline

import (
	"context"
	"fmt"

	"github.com/spance/dermascan-go/constants"
	"github.com/spance/dermascan-go/pipeline/android"
	"github.com/spance/dermascan-go/pipeline/capture"
	"github.com/spance/dermascan-go/pipeline/definitions"
	"github.com/spance/dermascan-go/pipeline/permission"
	"github.com/spance/dermascan-go/pipeline/still"
)

// SourceResolver turns a capture request into complete image bytes.
type SourceResolver interface {
	Resolve(ctx context.Context, req definitions.CaptureRequest) ([]byte, error)
}

// Diagnoser is the two-leg diagnosis service client.
type Diagnoser interface {
	Submit(ctx context.Context, env definitions.UploadEnvelope) (*definitions.DiagnosisResult, error)
	Fetch(ctx context.Context, url string) (*definitions.Bitmap, error)
}

// Device is a camera host: it opens camera streams, answers authorization
// requests and can list what is attached.
type Device interface {
	capture.Camera
	permission.Authorizer
	ListDevices(ctx context.Context) ([]definitions.DeviceInfo, error)
}

// DeviceOptions carries the settings of every device type; each type reads
// the fields it needs.
type DeviceOptions struct {
	DeviceID   string
	FrontImage string
	BackImage  string
	DenyAccess bool
}

func CreateDevice(deviceType string, opts DeviceOptions) (Device, error) {
	switch deviceType {
	case constants.ADB:
		return android.NewADBDevice(opts.DeviceID), nil
	case constants.STILL:
		return still.NewDevice(opts.FrontImage, opts.BackImage, opts.DenyAccess)
	default:
		return nil, fmt.Errorf("unknown device type: %v", deviceType)
	}
}
