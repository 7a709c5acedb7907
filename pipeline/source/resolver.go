package source

import (
	"bytes"
	"context"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"net/url"
	"os"
	"strings"

	"github.com/rs/zerolog/log"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"

	"github.com/spance/dermascan-go/constants"
	"github.com/spance/dermascan-go/pipeline/definitions"
)

// Resolver turns a capture request into the complete image bytes.
type Resolver struct {
	MaxImageBytes int64
	// RemoveLivePhotos deletes a camera photo once it has been read.
	RemoveLivePhotos bool
}

func NewResolver() *Resolver {
	return &Resolver{MaxImageBytes: constants.DefaultMaxImageBytes}
}

// Resolve returns the full image or a SourceError, never a partial buffer.
func (r *Resolver) Resolve(ctx context.Context, req definitions.CaptureRequest) ([]byte, error) {
	const op = "source.resolve"

	if err := ctx.Err(); err != nil {
		return nil, definitions.NewSourceError(op, "resolve cancelled", err)
	}

	path, err := localPath(req.Path())
	if err != nil {
		return nil, definitions.NewSourceError(op, "unsupported image location", err)
	}

	data, err := r.readAll(path)
	if err != nil {
		return nil, err
	}

	_, format, err := image.DecodeConfig(bytes.NewReader(data))
	if err != nil {
		return nil, definitions.NewSourceError(op, "not a readable image", err)
	}
	log.Debug().Str("origin", string(req.Origin())).Str("format", format).Int("bytes", len(data)).Msg("image resolved")

	if req.Origin() == definitions.LiveCapture && r.RemoveLivePhotos {
		if err := os.Remove(path); err != nil {
			log.Warn().Err(err).Str("path", path).Msg("failed to remove live photo")
		}
	}
	return data, nil
}

func (r *Resolver) readAll(path string) ([]byte, error) {
	const op = "source.resolve"

	f, err := os.Open(path)
	if err != nil {
		return nil, definitions.NewSourceError(op, "cannot open image", err)
	}
	defer f.Close()

	limit := r.MaxImageBytes
	if limit <= 0 {
		limit = constants.DefaultMaxImageBytes
	}
	data, err := io.ReadAll(io.LimitReader(f, limit+1))
	if err != nil {
		return nil, definitions.NewSourceError(op, "cannot read image", err)
	}
	if len(data) == 0 {
		return nil, definitions.NewSourceError(op, "image is empty", nil)
	}
	if int64(len(data)) > limit {
		return nil, definitions.NewSourceError(op, fmt.Sprintf("image larger than %d bytes", limit), nil)
	}
	return data, nil
}

// localPath accepts plain paths and file:// URIs.
func localPath(raw string) (string, error) {
	if raw == "" {
		return "", fmt.Errorf("empty path")
	}
	if !strings.Contains(raw, "://") {
		return raw, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", err
	}
	if u.Scheme != "file" {
		return "", fmt.Errorf("scheme %q is not supported", u.Scheme)
	}
	return u.Path, nil
}
