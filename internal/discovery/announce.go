package discovery

import (
	"encoding/json"

	"github.com/yndnr/docmesh-go/internal/core/domain"
)

// MsgTypeAnnouncement is the only message type on the discovery port.
const MsgTypeAnnouncement = "device_announcement"

// MaxDatagramSize is the largest announcement accepted. Larger
// datagrams are dropped without parsing.
const MaxDatagramSize = 4096

// announcement is the wire envelope for one discovery datagram.
type announcement struct {
	Type   string           `json:"type"`
	Device *announcedDevice `json:"device"`
}

// announcedDevice stamps the constant status field onto the device
// payload. A device announcing itself is online by definition;
// receivers derive status from last_seen and ignore the field.
type announcedDevice struct {
	*domain.DeviceRecord
	Status domain.DeviceStatus `json:"status"`
}

// encodeAnnouncement serializes the device record for broadcast.
func encodeAnnouncement(rec *domain.DeviceRecord) ([]byte, error) {
	return json.Marshal(announcement{
		Type:   MsgTypeAnnouncement,
		Device: &announcedDevice{DeviceRecord: rec, Status: domain.DeviceOnline},
	})
}

// decodeAnnouncement parses a received datagram. Datagrams with an
// unrecognized message type are skipped: both return values are nil so
// future message types can coexist on the same port. Oversized or
// unparseable data returns ErrMalformedAnnouncement.
func decodeAnnouncement(data []byte) (*domain.DeviceRecord, error) {
	if len(data) > MaxDatagramSize {
		return nil, domain.ErrMalformedAnnouncement.WithDetails("datagram exceeds 4096 bytes")
	}

	var msg announcement
	if err := json.Unmarshal(data, &msg); err != nil {
		return nil, domain.ErrMalformedAnnouncement.WithCause(err)
	}
	if msg.Type != MsgTypeAnnouncement {
		return nil, nil
	}
	if msg.Device == nil || msg.Device.DeviceRecord == nil {
		return nil, domain.ErrMalformedAnnouncement.WithDetails("missing device payload")
	}
	if err := msg.Device.Validate(); err != nil {
		return nil, domain.ErrDeviceValidation.WithCause(err)
	}
	return msg.Device.DeviceRecord, nil
}
