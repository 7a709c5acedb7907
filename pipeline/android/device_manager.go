package android

import (
	"bufio"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/samber/lo"

	"github.com/spance/dermascan-go/pipeline/definitions"
)

const (
	stateDevice       = "device"
	stateUnauthorized = "unauthorized"
	cameraFeature     = "feature:android.hardware.camera"
)

// Connect attaches a device over TCP/IP, e.g. "192.168.1.20:5555".
func (r *ADBDevice) Connect(ctx context.Context, address string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cmdArgs := []string{"connect", address}
	log.Debug().Str("cmd", fmt.Sprintf("[Connect] run cmd: %s %s", adbPath, strings.Join(cmdArgs, " "))).Msg("")

	rawOutput, err := r.run(ctx, cmdArgs...)
	if err != nil {
		log.Error().Err(err).Msg("[Connect] run cmd failed")
		return fmt.Sprintf("Connect error: %v", err), err
	}
	output := strings.TrimSpace(string(rawOutput))
	lowerOutput := strings.ToLower(output)

	if strings.Contains(lowerOutput, "already connected") {
		return fmt.Sprintf("Already connected to %s", address), nil
	}
	if strings.Contains(lowerOutput, " connected") {
		return fmt.Sprintf("Connected to %s", address), nil
	}
	return "", fmt.Errorf("connection error: %s", output)
}

func (r *ADBDevice) ListDevices(ctx context.Context) ([]definitions.DeviceInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	cmdArgs := []string{"devices", "-l"}
	log.Debug().Str("cmd", fmt.Sprintf("[ListDevices] run cmd: %s %s", adbPath, strings.Join(cmdArgs, " "))).Msg("")

	rawOutput, err := r.run(ctx, cmdArgs...)
	if err != nil {
		log.Error().Err(err).Msg("[ListDevices] run cmd failed")
		return nil, err
	}
	return parseDevices(string(rawOutput)), nil
}

// parseDevices reads the output of `adb devices -l`.
func parseDevices(output string) []definitions.DeviceInfo {
	var devices []definitions.DeviceInfo
	scanner := bufio.NewScanner(strings.NewReader(output))

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "List of devices") || strings.HasPrefix(line, "*") {
			continue
		}
		parts := strings.Fields(line)
		if len(parts) < 2 {
			continue
		}

		deviceID := parts[0]
		connType := definitions.USB
		if strings.Contains(deviceID, ":") {
			connType = definitions.Remote
		}

		model, _ := lo.Find(parts[2:], func(part string) bool {
			return strings.HasPrefix(part, "model:")
		})

		devices = append(devices, definitions.DeviceInfo{
			DeviceID:       deviceID,
			Status:         parts[1],
			ConnectionType: connType,
			Model:          strings.TrimPrefix(model, "model:"),
		})
	}
	return devices
}

// Status maps the adb connection state onto camera authorization: an
// unauthorized device still has to accept the debugging prompt, and a device
// without a camera can never grant access.
func (r *ADBDevice) Status(ctx context.Context) (definitions.AuthStatus, error) {
	output, err := r.adb(ctx, "Status", "get-state")
	if err != nil {
		if strings.Contains(output, stateUnauthorized) {
			return definitions.AuthNotDetermined, nil
		}
		return definitions.AuthNotDetermined, err
	}

	if strings.TrimSpace(output) != stateDevice {
		return definitions.AuthNotDetermined, nil
	}

	features, err := r.adb(ctx, "Status", "shell", "pm", "list", "features")
	if err != nil {
		return definitions.AuthNotDetermined, err
	}
	if !hasFeature(features, cameraFeature) {
		log.Warn().Str("device", r.deviceID).Msg("device reports no camera")
		return definitions.AuthPermanentlyDenied, nil
	}
	return definitions.AuthGranted, nil
}

// Request waits for the device to come online, which happens once the user
// accepts the debugging prompt, then reports the resulting status.
func (r *ADBDevice) Request(ctx context.Context) (definitions.AuthStatus, error) {
	if _, err := r.adb(ctx, "Request", "wait-for-device"); err != nil {
		if ctx.Err() != nil {
			return definitions.AuthNotDetermined, ctx.Err()
		}
		return definitions.AuthNotDetermined, err
	}
	return r.Status(ctx)
}

func hasFeature(output, feature string) bool {
	lines := strings.Split(output, "\n")
	return lo.ContainsBy(lines, func(line string) bool {
		return strings.TrimSpace(line) == feature
	})
}
