package definitions

type ConnectionType string

const (
	USB    ConnectionType = "usb"
	WiFi   ConnectionType = "wifi"
	Remote ConnectionType = "remote"
	Local  ConnectionType = "local"
)

// DeviceInfo describes a host that can provide a camera.
type DeviceInfo struct {
	DeviceID       string         `json:"device_id"`
	Status         string         `json:"status"`
	ConnectionType ConnectionType `json:"connection_type"`
	Model          string         `json:"model,omitempty"`
}

// Ready reports whether the device accepted this host.
func (d DeviceInfo) Ready() bool {
	return d.Status == "device"
}

// AuthStatus is the host's answer about camera access.
type AuthStatus string

const (
	AuthGranted           AuthStatus = "granted"
	AuthNotDetermined     AuthStatus = "not_determined"
	AuthPermanentlyDenied AuthStatus = "permanently_denied"
)
