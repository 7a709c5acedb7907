package definitions

import (
	"strings"
	"time"

	"github.com/spance/dermascan-go/constants"
)

// PipelineConfig configures the state machine.
type PipelineConfig struct {
	CallerID      string
	Lens          LensFacing
	Flash         FlashMode
	FailureWindow time.Duration
	Lang          string
}

func DefaultPipelineConfig() *PipelineConfig {
	return &PipelineConfig{
		CallerID:      constants.DefaultCallerID,
		Lens:          LensFront,
		Flash:         FlashOff,
		FailureWindow: constants.DefaultFailureWindow,
		Lang:          "en",
	}
}

// WithDefaults fills zero fields from DefaultPipelineConfig.
func (c *PipelineConfig) WithDefaults() *PipelineConfig {
	d := DefaultPipelineConfig()
	if c == nil {
		return d
	}
	out := *c
	if out.CallerID == "" {
		out.CallerID = d.CallerID
	}
	if out.Lens == "" {
		out.Lens = d.Lens
	}
	if out.Flash == "" {
		out.Flash = d.Flash
	}
	if out.FailureWindow <= 0 {
		out.FailureWindow = d.FailureWindow
	}
	if out.Lang == "" {
		out.Lang = d.Lang
	}
	return &out
}

// ClientConfig configures the upload & decode client.
type ClientConfig struct {
	BaseURL          string
	UploadPath       string
	ConnectTimeout   time.Duration
	ReadTimeout      time.Duration
	WriteTimeout     time.Duration
	MaxResponseBytes int64
}

func DefaultClientConfig() *ClientConfig {
	return &ClientConfig{
		BaseURL:          constants.DefaultBaseURL,
		UploadPath:       constants.UploadPath,
		ConnectTimeout:   constants.DefaultConnectTimeout,
		ReadTimeout:      constants.DefaultReadTimeout,
		WriteTimeout:     constants.DefaultWriteTimeout,
		MaxResponseBytes: constants.DefaultMaxResponseBytes,
	}
}

func (c *ClientConfig) WithDefaults() *ClientConfig {
	d := DefaultClientConfig()
	if c == nil {
		return d
	}
	out := *c
	if out.BaseURL == "" {
		out.BaseURL = d.BaseURL
	}
	out.BaseURL = strings.TrimRight(out.BaseURL, "/")
	if out.UploadPath == "" {
		out.UploadPath = d.UploadPath
	}
	if out.ConnectTimeout <= 0 {
		out.ConnectTimeout = d.ConnectTimeout
	}
	if out.ReadTimeout <= 0 {
		out.ReadTimeout = d.ReadTimeout
	}
	if out.WriteTimeout <= 0 {
		out.WriteTimeout = d.WriteTimeout
	}
	if out.MaxResponseBytes <= 0 {
		out.MaxResponseBytes = d.MaxResponseBytes
	}
	return &out
}

// UploadURL is the full diagnosis endpoint.
func (c *ClientConfig) UploadURL() string {
	return strings.TrimRight(c.BaseURL, "/") + "/" + strings.TrimLeft(c.UploadPath, "/")
}

// AdvisorConfig configures the optional care-note model.
type AdvisorConfig struct {
	BaseURL     string
	ModelName   string
	APIKey      string
	Lang        string
	MaxTokens   int
	Temperature float32
}

func (c *AdvisorConfig) Enabled() bool {
	return c != nil && c.BaseURL != ""
}
