// Package stats aggregates registry, room-table, and host resource metrics
// into a point-in-time snapshot for the monitoring endpoint.
package stats

import (
	"log"

	"github.com/shirou/gopsutil/v4/cpu"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"

	"peerlink/backend/internal/models"
	"peerlink/backend/internal/registry"
)

// RoomClassifier is the slice of the room manager the collector needs.
type RoomClassifier interface {
	Classify() models.RoomStats
}

// Collector produces SystemStats snapshots. It never mutates anything and is
// safe to call concurrently with the rest of the system.
type Collector struct {
	registry *registry.Registry
	rooms    RoomClassifier
}

// New creates a collector over the given registry and room manager.
func New(reg *registry.Registry, rooms RoomClassifier) *Collector {
	return &Collector{registry: reg, rooms: rooms}
}

// Snapshot reads current counts and host metrics. Host metric failures are
// logged and leave zero values; the connection counts are always accurate.
func (c *Collector) Snapshot() models.SystemStats {
	details := c.rooms.Classify()

	s := models.SystemStats{
		Connections: models.ConnectionStats{
			Clients:     c.registry.Len(),
			Rooms:       details.Total,
			RoomDetails: details,
		},
	}

	if avg, err := load.Avg(); err == nil {
		s.CPU.Loadavg = []float64{avg.Load1, avg.Load5, avg.Load15}
	} else {
		log.Printf("stats: loadavg unavailable: %v", err)
		s.CPU.Loadavg = []float64{0, 0, 0}
	}

	if n, err := cpu.Counts(true); err == nil {
		s.CPU.Cpus = n
	} else {
		log.Printf("stats: cpu count unavailable: %v", err)
	}

	if vm, err := mem.VirtualMemory(); err == nil {
		s.Memory = models.MemoryStats{
			Free:        vm.Free,
			Total:       vm.Total,
			UsedPercent: vm.UsedPercent,
		}
	} else {
		log.Printf("stats: memory unavailable: %v", err)
	}

	return s
}
