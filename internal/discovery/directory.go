package discovery

import (
	"sort"
	"sync"
	"time"

	"github.com/yndnr/docmesh-go/internal/core/domain"
)

// Directory is the in-memory presence directory. Device status is never
// stored; it is derived from the last-seen timestamp at read time, so a
// device flips to offline the moment enough time has passed with no
// reader having to run first.
type Directory struct {
	mu      sync.RWMutex
	devices map[string]*domain.DeviceRecord

	timeout time.Duration
	grace   time.Duration
}

// NewDirectory creates a presence directory. timeout is how long a
// device stays online after its last announcement; grace is how long an
// offline device stays listed before removal.
func NewDirectory(timeout, grace time.Duration) *Directory {
	return &Directory{
		devices: make(map[string]*domain.DeviceRecord),
		timeout: timeout,
		grace:   grace,
	}
}

// Upsert inserts or refreshes a device record and reports whether the
// device was previously unknown. Re-announcing is idempotent: repeated
// upserts of the same device only advance its last-seen time.
func (d *Directory) Upsert(rec *domain.DeviceRecord) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	_, known := d.devices[rec.ID]
	d.devices[rec.ID] = rec.Clone()
	return !known
}

// GetByID returns a device by ID.
func (d *Directory) GetByID(id string) (*domain.DeviceRecord, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()

	rec, ok := d.devices[id]
	if !ok {
		return nil, domain.ErrDeviceNotFound.WithDetails(id)
	}
	return rec.Clone(), nil
}

// GetAll returns all known devices sorted by name.
func (d *Directory) GetAll() []*domain.DeviceRecord {
	d.mu.RLock()
	defer d.mu.RUnlock()

	out := make([]*domain.DeviceRecord, 0, len(d.devices))
	for _, rec := range d.devices {
		out = append(out, rec.Clone())
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out
}

// GetOnline returns the devices online at the given instant.
func (d *Directory) GetOnline(now time.Time) []*domain.DeviceRecord {
	all := d.GetAll()
	online := all[:0]
	for _, rec := range all {
		if rec.Status(now, d.timeout) == domain.DeviceOnline {
			online = append(online, rec)
		}
	}
	return online
}

// Status derives the presence state of one device at the given instant.
func (d *Directory) Status(rec *domain.DeviceRecord, now time.Time) domain.DeviceStatus {
	return rec.Status(now, d.timeout)
}

// Remove deletes a device from the directory.
func (d *Directory) Remove(id string) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if _, ok := d.devices[id]; !ok {
		return domain.ErrDeviceNotFound.WithDetails(id)
	}
	delete(d.devices, id)
	return nil
}

// Cleanup removes devices that have been silent past the removal grace
// period and returns their IDs. Devices merely past the online timeout
// are kept; going offline and being forgotten are separate thresholds.
func (d *Directory) Cleanup(now time.Time) []string {
	d.mu.Lock()
	defer d.mu.Unlock()

	var removed []string
	for id, rec := range d.devices {
		if rec.Expired(now, d.grace) {
			delete(d.devices, id)
			removed = append(removed, id)
		}
	}
	return removed
}

// Count returns the number of known devices.
func (d *Directory) Count() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.devices)
}

// CountOnline returns the number of devices online at the given instant.
func (d *Directory) CountOnline(now time.Time) int {
	d.mu.RLock()
	defer d.mu.RUnlock()

	n := 0
	for _, rec := range d.devices {
		if rec.Status(now, d.timeout) == domain.DeviceOnline {
			n++
		}
	}
	return n
}
