package discovery

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"

	sockaddr "github.com/hashicorp/go-sockaddr"

	"github.com/yndnr/docmesh-go/internal/core/domain"
	"github.com/yndnr/docmesh-go/internal/telemetry/logger"
	"github.com/yndnr/docmesh-go/internal/telemetry/metric"
)

const readTimeout = time.Second

// Config configures the discovery service.
type Config struct {
	// Local is the record announced for this device.
	Local *domain.DeviceRecord

	// Port is the UDP port announcements are sent to and received on.
	Port int

	// BroadcastAddr is the IPv4 broadcast destination.
	BroadcastAddr string

	// Interval is the delay between announcements.
	Interval time.Duration

	// Directory receives records learned from announcements.
	Directory *Directory

	Logger  logger.Logger
	Metrics *metric.Registry
}

// Service broadcasts this device's presence and listens for peers.
//
// The broadcaster and listener are independent loops: a listener bind
// failure (port taken, permissions) kills only the listener, the device
// keeps announcing itself.
type Service struct {
	cfg     Config
	dir     *Directory
	logger  logger.Logger
	metrics *metric.Registry

	mu      sync.Mutex
	running bool
	cancel  context.CancelFunc
	wg      sync.WaitGroup
}

// NewService creates a discovery service.
func NewService(cfg Config) (*Service, error) {
	if cfg.Local == nil {
		return nil, fmt.Errorf("discovery: local device record is required")
	}
	if cfg.Directory == nil {
		return nil, fmt.Errorf("discovery: directory is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Default()
	}
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.BroadcastAddr == "" {
		cfg.BroadcastAddr = "255.255.255.255"
	}

	return &Service{
		cfg:     cfg,
		dir:     cfg.Directory,
		logger:  cfg.Logger.With("component", "discovery"),
		metrics: cfg.Metrics,
	}, nil
}

// Start launches the broadcast and listen loops. Calling Start on a
// running service is a no-op.
func (s *Service) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.running {
		return nil
	}

	if s.cfg.Local.IPAddress == "" {
		ip, err := sockaddr.GetPrivateIP()
		if err != nil || ip == "" {
			s.logger.Warn("could not determine private IP, announcing without address", "error", err)
		}
		s.cfg.Local.IPAddress = ip
	}

	// The local device is always present in its own directory.
	s.dir.Upsert(s.cfg.Local)

	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel
	s.running = true

	s.wg.Add(3)
	go s.broadcastLoop(ctx)
	go s.listenLoop(ctx)
	go s.cleanupLoop(ctx)

	s.logger.Info("discovery started",
		"device_id", s.cfg.Local.ID,
		"port", s.cfg.Port,
		"interval", s.cfg.Interval)
	return nil
}

// Stop terminates the loops, waiting up to the given timeout.
func (s *Service) Stop(timeout time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.running {
		return nil
	}
	s.cancel()
	s.running = false

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("discovery stopped")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("discovery: loops did not stop within %v", timeout)
	}
}

// RegisterDevice manually inserts or refreshes a device learned through
// a side channel, e.g. an inbound connection, rather than a broadcast.
func (s *Service) RegisterDevice(rec *domain.DeviceRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	clone := rec.Clone()
	clone.Local = false
	if clone.LastSeen.IsZero() {
		clone.LastSeen = time.Now()
	}
	if s.dir.Upsert(clone) {
		s.logger.Info("device registered",
			"device_id", clone.ID,
			"name", clone.Name,
			"address", clone.Address())
	}
	return nil
}

// GetAllDevices returns every known device sorted by name.
func (s *Service) GetAllDevices() []*domain.DeviceRecord {
	return s.dir.GetAll()
}

// GetOnlineDevices returns the devices currently online.
func (s *Service) GetOnlineDevices() []*domain.DeviceRecord {
	return s.dir.GetOnline(time.Now())
}

// GetDeviceByID returns a device by ID, including the local device.
func (s *Service) GetDeviceByID(id string) (*domain.DeviceRecord, error) {
	return s.dir.GetByID(id)
}

func (s *Service) broadcastLoop(ctx context.Context) {
	defer s.wg.Done()

	dst := &net.UDPAddr{IP: net.ParseIP(s.cfg.BroadcastAddr), Port: s.cfg.Port}
	if dst.IP == nil {
		s.logger.Error("invalid broadcast address, broadcaster not started", "addr", s.cfg.BroadcastAddr)
		return
	}

	var conn net.PacketConn
	defer func() {
		if conn != nil {
			conn.Close()
		}
	}()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	// Announce immediately so peers learn about us without waiting a
	// full interval.
	s.announce(&conn, dst)

	for {
		select {
		case <-ticker.C:
			s.announce(&conn, dst)
		case <-ctx.Done():
			return
		}
	}
}

// announce sends one announcement, (re)creating the socket as needed.
func (s *Service) announce(conn *net.PacketConn, dst *net.UDPAddr) {
	if *conn == nil {
		c, err := net.ListenPacket("udp4", ":0")
		if err != nil {
			s.logger.Error("broadcast socket failed, will retry", "error", err)
			return
		}
		*conn = c
	}

	rec := s.cfg.Local.Clone()
	rec.LastSeen = time.Now()

	data, err := encodeAnnouncement(rec)
	if err != nil {
		s.logger.Error("encode announcement failed", "error", err)
		return
	}

	if _, err := (*conn).WriteTo(data, dst); err != nil {
		s.logger.Warn("broadcast failed, recreating socket", "error", err)
		(*conn).Close()
		*conn = nil
		return
	}

	if s.metrics != nil {
		s.metrics.AnnouncementsSent.Inc()
	}
}

func (s *Service) listenLoop(ctx context.Context) {
	defer s.wg.Done()

	conn, err := net.ListenUDP("udp4", &net.UDPAddr{Port: s.cfg.Port})
	if err != nil {
		s.logger.Error("listener bind failed, peer discovery disabled", "port", s.cfg.Port, "error", err)
		return
	}
	defer conn.Close()

	// One byte over the limit so oversized datagrams are detectable.
	buf := make([]byte, MaxDatagramSize+1)

	for {
		if ctx.Err() != nil {
			return
		}

		if err := conn.SetReadDeadline(time.Now().Add(readTimeout)); err != nil {
			s.logger.Error("set read deadline failed", "error", err)
			return
		}

		n, src, err := conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				continue
			}
			if ctx.Err() != nil {
				return
			}
			s.logger.Warn("listener read failed", "error", err)
			continue
		}

		s.handleDatagram(buf[:n], src)
	}
}

func (s *Service) handleDatagram(data []byte, src *net.UDPAddr) {
	rec, err := decodeAnnouncement(data)
	if err != nil {
		s.logger.Debug("dropped announcement", "source", src.String(), "error", err)
		s.dropped()
		return
	}
	if rec == nil {
		// Unknown message type, not ours to handle.
		return
	}

	// Our own broadcasts loop back; don't track ourselves as a peer.
	if rec.ID == s.cfg.Local.ID {
		return
	}

	// The datagram's source address is authoritative: a NATed or
	// misconfigured peer cannot claim someone else's address.
	rec.IPAddress = src.IP.String()
	rec.LastSeen = time.Now()
	rec.Local = false

	if isNew := s.dir.Upsert(rec); isNew {
		s.logger.Info("device discovered",
			"device_id", rec.ID,
			"name", rec.Name,
			"kind", rec.Kind,
			"address", rec.Address())
	}

	if s.metrics != nil {
		s.metrics.AnnouncementsReceived.Inc()
	}
	s.updateGauges()
}

func (s *Service) cleanupLoop(ctx context.Context) {
	defer s.wg.Done()

	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			removed := s.dir.Cleanup(time.Now())
			for _, id := range removed {
				s.logger.Info("device removed after grace period", "device_id", id)
			}
			s.updateGauges()
		case <-ctx.Done():
			return
		}
	}
}

func (s *Service) dropped() {
	if s.metrics != nil {
		s.metrics.AnnouncementsDropped.Inc()
	}
}

func (s *Service) updateGauges() {
	if s.metrics == nil {
		return
	}
	now := time.Now()
	s.metrics.DevicesKnown.Set(float64(s.dir.Count()))
	s.metrics.DevicesOnline.Set(float64(s.dir.CountOnline(now)))
}
