package api

import (
	"net/http"
	"runtime"
	"time"
)

// SystemMetrics represents the complete metrics response.
type SystemMetrics struct {
	Timestamp     string         `json:"timestamp"`
	Version       string         `json:"version"`
	UptimeSeconds int64          `json:"uptime_seconds"`
	Runtime       RuntimeMetrics `json:"runtime"`
	WebSocket     WSMetrics      `json:"websocket"`
	Bridge        BridgeMetrics  `json:"bridge"`
	MQTT          *MirrorMetrics `json:"mqtt,omitempty"`
	InfluxDB      *MirrorMetrics `json:"influxdb,omitempty"`
}

// RuntimeMetrics contains Go runtime statistics.
type RuntimeMetrics struct {
	Goroutines    int     `json:"goroutines"`
	MemoryAllocMB float64 `json:"memory_alloc_mb"`
	MemoryTotalMB float64 `json:"memory_total_mb"`
	NumGC         uint32  `json:"num_gc"`
}

// WSMetrics contains WebSocket hub statistics.
type WSMetrics struct {
	ConnectedClients int `json:"connected_clients"`
}

// BridgeMetrics contains poller, router and listener counters.
type BridgeMetrics struct {
	Peripherals   int     `json:"peripherals"`
	RateHz        float64 `json:"rate_hz"`
	Ticks         uint64  `json:"ticks"`
	Published     uint64  `json:"published"`
	ReadErrors    uint64  `json:"read_errors"`
	PublishErrors uint64  `json:"publish_errors"`
	LastBatchSize int     `json:"last_batch_size"`
	LastTick      string  `json:"last_tick,omitempty"`
	Routed        uint64  `json:"commands_routed"`
	Dropped       uint64  `json:"commands_dropped"`
	Packets       uint64  `json:"osc_packets"`
	Messages      uint64  `json:"osc_messages"`
	Malformed     uint64  `json:"osc_malformed"`
}

// MirrorMetrics contains the state of an optional mirror connection.
type MirrorMetrics struct {
	Connected bool `json:"connected"`
}

// handleMetrics returns runtime and bridge counters.
func (s *Server) handleMetrics(w http.ResponseWriter, _ *http.Request) {
	var memStats runtime.MemStats
	runtime.ReadMemStats(&memStats)

	stats := s.bridge.Stats()
	metrics := SystemMetrics{
		Timestamp:     time.Now().UTC().Format(time.RFC3339),
		Version:       s.version,
		UptimeSeconds: int64(time.Since(s.startTime).Seconds()),
		Runtime: RuntimeMetrics{
			Goroutines:    runtime.NumGoroutine(),
			MemoryAllocMB: float64(memStats.Alloc) / 1024 / 1024,
			MemoryTotalMB: float64(memStats.TotalAlloc) / 1024 / 1024,
			NumGC:         memStats.NumGC,
		},
		WebSocket: WSMetrics{
			ConnectedClients: s.Hub().ClientCount(),
		},
		Bridge: BridgeMetrics{
			Peripherals:   stats.Peripherals,
			RateHz:        stats.Poller.RateHz,
			Ticks:         stats.Poller.Ticks,
			Published:     stats.Poller.Published,
			ReadErrors:    stats.Poller.ReadErrors,
			PublishErrors: stats.Poller.PublishErrors,
			LastBatchSize: stats.Poller.LastBatchSize,
			Routed:        stats.Router.Routed,
			Dropped:       stats.Router.Dropped,
			Packets:       stats.Listener.Packets,
			Messages:      stats.Listener.Messages,
			Malformed:     stats.Listener.Malformed,
		},
	}
	if !stats.Poller.LastTick.IsZero() {
		metrics.Bridge.LastTick = stats.Poller.LastTick.UTC().Format(time.RFC3339Nano)
	}

	if s.mqtt != nil {
		metrics.MQTT = &MirrorMetrics{Connected: s.mqtt.IsConnected()}
	}
	if s.influx != nil {
		metrics.InfluxDB = &MirrorMetrics{Connected: s.influx.IsConnected()}
	}

	writeJSON(w, http.StatusOK, metrics)
}
