package softi2c

import "go.uber.org/atomic"

// Stats counts protocol events of one bus. Counters are written from the edge
// handler and may be read concurrently from anywhere.
type Stats struct {
	Starts            atomic.Uint32
	Stops             atomic.Uint32
	AddressMatches    atomic.Uint32
	AddressMismatches atomic.Uint32
	BytesWritten      atomic.Uint32
	BytesRead         atomic.Uint32
	// ReadNacks counts reads the master ended before the device's last byte.
	ReadNacks atomic.Uint32
	// IgnoredEdges counts events on a masked line or with a level the armed
	// edge cannot produce (glitches, decoder/master disagreement).
	IgnoredEdges atomic.Uint32
}

// StatsSnapshot is a plain copy of Stats.
type StatsSnapshot struct {
	Starts            uint32
	Stops             uint32
	AddressMatches    uint32
	AddressMismatches uint32
	BytesWritten      uint32
	BytesRead         uint32
	ReadNacks         uint32
	IgnoredEdges      uint32
}

// Snapshot copies all counters. Counters are loaded one by one, so a snapshot
// taken while the bus is active is not a consistent cut.
func (s *Stats) Snapshot() StatsSnapshot {
	return StatsSnapshot{
		Starts:            s.Starts.Load(),
		Stops:             s.Stops.Load(),
		AddressMatches:    s.AddressMatches.Load(),
		AddressMismatches: s.AddressMismatches.Load(),
		BytesWritten:      s.BytesWritten.Load(),
		BytesRead:         s.BytesRead.Load(),
		ReadNacks:         s.ReadNacks.Load(),
		IgnoredEdges:      s.IgnoredEdges.Load(),
	}
}
