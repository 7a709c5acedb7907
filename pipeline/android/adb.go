package android

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	adbPath = "adb"
)

// Runner executes one adb invocation and returns its combined output.
type Runner func(ctx context.Context, args ...string) ([]byte, error)

func execRunner(ctx context.Context, args ...string) ([]byte, error) {
	return exec.CommandContext(ctx, adbPath, args...).CombinedOutput()
}

// ADBDevice drives the stock camera app of an Android device over adb.
type ADBDevice struct {
	deviceID string
	run      Runner
	settle   time.Duration
}

func NewADBDevice(deviceID string) *ADBDevice {
	return &ADBDevice{deviceID: deviceID, run: execRunner, settle: previewSettle}
}

// WithRunner replaces the adb executor.
func (r *ADBDevice) WithRunner(run Runner) *ADBDevice {
	r.run = run
	return r
}

func (r *ADBDevice) DeviceID() string {
	return r.deviceID
}

func (r *ADBDevice) GetADBPrefix() []string {
	if r.deviceID != "" {
		return []string{"-s", r.deviceID}
	}
	return nil
}

// adb runs a device-scoped command, logging it the same way for every caller.
func (r *ADBDevice) adb(ctx context.Context, tag string, args ...string) (string, error) {
	cmdArgs := append(r.GetADBPrefix(), args...)
	log.Debug().Str("cmd", fmt.Sprintf("[%s] run cmd: %s %s", tag, adbPath, strings.Join(cmdArgs, " "))).Msg("")

	output, err := r.run(ctx, cmdArgs...)
	if err != nil {
		log.Error().Err(err).Str("output", strings.TrimSpace(string(output))).Msgf("[%s] run cmd failed", tag)
		return string(output), err
	}
	log.Trace().Str("output", string(output)).Msgf("[%s] raw output", tag)
	return string(output), nil
}
