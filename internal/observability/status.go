package observability

import (
	"sync"
	"time"
)

// DetectorStatus tracks a background detector's lifecycle and in-flight work.
type DetectorStatus struct {
	mu            sync.RWMutex
	running       bool
	processing    int
	detected      int
	lastHeartbeat time.Time
	lastError     string
}

// StatusSnapshot is a point-in-time copy of DetectorStatus.
type StatusSnapshot struct {
	Running       bool      `json:"running"`
	Processing    int       `json:"processing"`
	Detected      int       `json:"detected"`
	LastHeartbeat time.Time `json:"lastHeartbeat"`
	LastError     string    `json:"lastError,omitempty"`
}

func NewDetectorStatus() *DetectorStatus {
	return &DetectorStatus{lastHeartbeat: time.Now()}
}

func (s *DetectorStatus) SetRunning(running bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.running = running
}

// Begin marks one item as in flight and returns the func that ends it.
func (s *DetectorStatus) Begin() func() {
	s.mu.Lock()
	s.processing++
	s.mu.Unlock()
	return func() {
		s.mu.Lock()
		s.processing--
		s.mu.Unlock()
	}
}

func (s *DetectorStatus) Detected() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.detected++
}

func (s *DetectorStatus) Error(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastError = err.Error()
}

// Heartbeat updates the last heartbeat time.
func (s *DetectorStatus) Heartbeat() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.lastHeartbeat = time.Now()
}

func (s *DetectorStatus) Snapshot() StatusSnapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return StatusSnapshot{
		Running:       s.running,
		Processing:    s.processing,
		Detected:      s.detected,
		LastHeartbeat: s.lastHeartbeat,
		LastError:     s.lastError,
	}
}
