package definitions

import (
	"image"
)

// UploadEnvelope is one upload attempt. Build a new one per attempt.
type UploadEnvelope struct {
	Image    []byte
	CallerID string
}

func NewUploadEnvelope(image []byte, callerID string) UploadEnvelope {
	buf := make([]byte, len(image))
	copy(buf, image)
	return UploadEnvelope{Image: buf, CallerID: callerID}
}

type DiagnosisStatus string

const (
	DiagnosisSuccess DiagnosisStatus = "success"
	DiagnosisError   DiagnosisStatus = "error"
)

// DiagnosisResult is the decoded response of the upload endpoint.
type DiagnosisResult struct {
	Status            DiagnosisStatus `json:"status"`
	ProcessedImageURL string          `json:"processed_image,omitempty"`
	Message           string          `json:"message,omitempty"`
	HTTPStatus        int             `json:"http_status"`
}

// Bitmap is a decoded processed image ready for display.
type Bitmap struct {
	Image     image.Image
	Format    string
	Width     int
	Height    int
	SourceURL string
}

func NewBitmap(img image.Image, format, sourceURL string) *Bitmap {
	b := img.Bounds()
	return &Bitmap{
		Image:     img,
		Format:    format,
		Width:     b.Dx(),
		Height:    b.Dy(),
		SourceURL: sourceURL,
	}
}
