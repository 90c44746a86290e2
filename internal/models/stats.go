package models

// RoomStats is the per-kind room breakdown computed by the room manager's
// classification pass.
type RoomStats struct {
	Total          int `json:"total"`
	UserRooms      int `json:"userRooms"`
	ChatRooms      int `json:"chatRooms"`
	AbandonedRooms int `json:"abandonedRooms"`
	OtherRooms     int `json:"otherRooms"`
}

// CPUStats mirrors the host's load averages and logical CPU count.
type CPUStats struct {
	Loadavg []float64 `json:"loadavg"`
	Cpus    int       `json:"cpus"`
}

// MemoryStats is the host memory snapshot.
type MemoryStats struct {
	Free        uint64  `json:"free"`
	Total       uint64  `json:"total"`
	UsedPercent float64 `json:"usedPercent"`
}

// ConnectionStats aggregates registry and room-table counts.
type ConnectionStats struct {
	Clients     int       `json:"clients"`
	Rooms       int       `json:"rooms"`
	RoomDetails RoomStats `json:"roomDetails"`
}

// SystemStats is a derived, purely observational snapshot; it is never
// authoritative state.
type SystemStats struct {
	CPU         CPUStats        `json:"cpu"`
	Memory      MemoryStats     `json:"memory"`
	Connections ConnectionStats `json:"connections"`
}
