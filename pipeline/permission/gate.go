package permission

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spance/dermascan-go/constants"
	"github.com/spance/dermascan-go/pipeline/definitions"
)

// Authorizer is the host's camera-authorization primitive.
type Authorizer interface {
	Status(ctx context.Context) (definitions.AuthStatus, error)
	// Request asks the host for access and blocks until it answers.
	Request(ctx context.Context) (definitions.AuthStatus, error)
}

type Decision string

const (
	Authorized Decision = "authorized"
	Denied     Decision = "denied"
)

// Gate decides whether the capture session may start. A denial sticks until
// Reset, so a screen visit asks the host at most once.
type Gate struct {
	authorizer     Authorizer
	requestTimeout time.Duration

	mu     sync.Mutex
	denied bool
}

func NewGate(authorizer Authorizer, requestTimeout time.Duration) *Gate {
	if requestTimeout <= 0 {
		requestTimeout = constants.DefaultRequestTimeout
	}
	return &Gate{authorizer: authorizer, requestTimeout: requestTimeout}
}

// EnsureCaptureAuthorized returns Authorized, or Denied together with a
// PermissionDenied error.
func (g *Gate) EnsureCaptureAuthorized(ctx context.Context) (Decision, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.denied {
		return Denied, definitions.NewPermissionDenied("permission.ensure")
	}

	status, err := g.authorizer.Status(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("camera authorization status unavailable")
		status = definitions.AuthNotDetermined
	}

	switch status {
	case definitions.AuthGranted:
		return Authorized, nil
	case definitions.AuthPermanentlyDenied:
		return g.deny()
	}

	log.Info().Dur("timeout", g.requestTimeout).Msg("requesting camera authorization")
	reqCtx, cancel := context.WithTimeout(ctx, g.requestTimeout)
	defer cancel()

	status, err = g.authorizer.Request(reqCtx)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			log.Warn().Msg("camera authorization request timed out")
		} else {
			log.Warn().Err(err).Msg("camera authorization request failed")
		}
		return g.deny()
	}
	if status != definitions.AuthGranted {
		return g.deny()
	}
	return Authorized, nil
}

func (g *Gate) deny() (Decision, error) {
	g.denied = true
	return Denied, definitions.NewPermissionDenied("permission.ensure")
}

// Denied reports whether the current visit has been denied.
func (g *Gate) Denied() bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.denied
}

// Reset forgets a previous denial. Call it after the host grants access out of band.
func (g *Gate) Reset() {
	g.mu.Lock()
	g.denied = false
	g.mu.Unlock()
}
