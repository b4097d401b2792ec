package domain

import (
	"net"
	"strconv"
	"time"

	"github.com/google/uuid"
)

// DeviceKind classifies a peer device.
type DeviceKind string

// Device kinds.
const (
	DeviceKindServer  DeviceKind = "server"
	DeviceKindDesktop DeviceKind = "desktop"
	DeviceKindMobile  DeviceKind = "mobile"
)

// Valid reports whether k is a known device kind.
func (k DeviceKind) Valid() bool {
	switch k {
	case DeviceKindServer, DeviceKindDesktop, DeviceKindMobile:
		return true
	}
	return false
}

// DeviceStatus is the derived presence state of a device. It is never
// stored; it is always computed from the last-seen timestamp.
type DeviceStatus string

// Device statuses.
const (
	DeviceOnline  DeviceStatus = "online"
	DeviceOffline DeviceStatus = "offline"
)

// DeviceRecord describes one device on the LAN as learned from its
// announcements. The JSON shape is the announcement wire format.
type DeviceRecord struct {
	// ID is the stable device identifier.
	ID string `json:"id"`

	// Name is the human-readable device name.
	Name string `json:"name"`

	// Kind is the device class.
	Kind DeviceKind `json:"type"`

	// Platform is the operating system label.
	Platform string `json:"platform"`

	// IPAddress is the address peers reach this device at. For received
	// announcements the datagram's source address is authoritative and
	// overrides whatever the payload claims.
	IPAddress string `json:"ip_address"`

	// Port is the device's API port.
	Port int `json:"port"`

	// Version is the advertised software version.
	Version string `json:"version,omitempty"`

	// Capabilities advertised by the device.
	Capabilities []string `json:"capabilities,omitempty"`

	// LastSeen is when the last announcement from this device arrived.
	LastSeen time.Time `json:"last_seen"`

	// Local marks the record describing this process itself. Local
	// records are always online and never expire.
	Local bool `json:"-"`
}

// NewDeviceRecord creates the local device record with a fresh ID.
func NewDeviceRecord(name string, kind DeviceKind, platform string, port int) (*DeviceRecord, error) {
	d := &DeviceRecord{
		ID:       uuid.NewString(),
		Name:     name,
		Kind:     kind,
		Platform: platform,
		Port:     port,
		LastSeen: time.Now(),
		Local:    true,
	}
	if err := d.Validate(); err != nil {
		return nil, err
	}
	return d, nil
}

// Validate checks the structural validity of the record.
func (d *DeviceRecord) Validate() error {
	if d.ID == "" {
		return ErrInvalidArgument.WithDetails("device id is required")
	}
	if d.Name == "" {
		return ErrInvalidArgument.WithDetails("device name is required")
	}
	if !d.Kind.Valid() {
		return ErrInvalidArgument.WithDetails("unknown device kind: " + string(d.Kind))
	}
	if d.Port < 0 || d.Port > 65535 {
		return ErrInvalidArgument.WithDetails("port out of range: " + strconv.Itoa(d.Port))
	}
	return nil
}

// Address returns the host:port the device API listens on.
func (d *DeviceRecord) Address() string {
	return net.JoinHostPort(d.IPAddress, strconv.Itoa(d.Port))
}

// Status derives the presence state at the given instant. A device is
// online while strictly less than timeout has passed since it was last
// seen. The local device is always online.
func (d *DeviceRecord) Status(now time.Time, timeout time.Duration) DeviceStatus {
	if d.Local {
		return DeviceOnline
	}
	if now.Sub(d.LastSeen) < timeout {
		return DeviceOnline
	}
	return DeviceOffline
}

// Expired reports whether the device has been silent past the removal
// grace period. Local records never expire.
func (d *DeviceRecord) Expired(now time.Time, grace time.Duration) bool {
	if d.Local {
		return false
	}
	return now.Sub(d.LastSeen) >= grace
}

// Clone returns a deep copy of the record.
func (d *DeviceRecord) Clone() *DeviceRecord {
	clone := *d
	if d.Capabilities != nil {
		clone.Capabilities = make([]string, len(d.Capabilities))
		copy(clone.Capabilities, d.Capabilities)
	}
	return &clone
}
