package handlers

import (
	"context"
	"runtime"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/shirou/gopsutil/v4/load"
	"github.com/shirou/gopsutil/v4/mem"
	"gorm.io/gorm"
)

// HealthHandler handles the health check endpoint.
type HealthHandler struct {
	version   string
	startTime time.Time
	db        *gorm.DB
}

// NewHealthHandler creates a new health handler.
func NewHealthHandler(version string, db *gorm.DB) *HealthHandler {
	return &HealthHandler{
		version:   version,
		startTime: time.Now(),
		db:        db,
	}
}

// CPUInfo reports load relative to core count.
type CPUInfo struct {
	Cores     int     `json:"cores"`
	Load1Min  float64 `json:"load_1min"`
	Load5Min  float64 `json:"load_5min"`
	Load15Min float64 `json:"load_15min"`
}

// MemoryInfo reports system memory usage in MB.
type MemoryInfo struct {
	TotalMB     float64 `json:"total_mb"`
	UsedMB      float64 `json:"used_mb"`
	AvailableMB float64 `json:"available_mb"`
}

// DatabaseHealth reports database reachability and pool pressure.
type DatabaseHealth struct {
	Status         string  `json:"status"`
	ResponseTimeMS float64 `json:"response_time_ms"`
	OpenConns      int     `json:"open_conns"`
	InUse          int     `json:"in_use"`
	Idle           int     `json:"idle"`
}

// HealthResponse is the health check payload.
type HealthResponse struct {
	Status        string         `json:"status"`
	Timestamp     string         `json:"timestamp"`
	Version       string         `json:"version"`
	UptimeSeconds float64        `json:"uptime_seconds"`
	CPU           CPUInfo        `json:"cpu"`
	Memory        MemoryInfo     `json:"memory"`
	Database      DatabaseHealth `json:"database"`
}

// HealthInput is the input for the health check endpoint.
type HealthInput struct{}

// HealthOutput is the output for the health check endpoint.
type HealthOutput struct {
	Body HealthResponse
}

// Register registers the health route with the API.
func (h *HealthHandler) Register(api huma.API) {
	huma.Register(api, huma.Operation{
		OperationID: "getHealth",
		Method:      "GET",
		Path:        "/api/v1/health",
		Summary:     "Health check",
		Description: "Returns service health including database reachability and system load",
		Tags:        []string{"System"},
	}, h.GetHealth)
}

// GetHealth returns the health status of the service.
func (h *HealthHandler) GetHealth(ctx context.Context, _ *HealthInput) (*HealthOutput, error) {
	now := time.Now()
	dbHealth := h.databaseHealth(ctx)

	status := "healthy"
	if dbHealth.Status != "ok" {
		status = "degraded"
	}

	return &HealthOutput{
		Body: HealthResponse{
			Status:        status,
			Timestamp:     now.UTC().Format(time.RFC3339),
			Version:       h.version,
			UptimeSeconds: now.Sub(h.startTime).Seconds(),
			CPU:           cpuInfo(),
			Memory:        memoryInfo(),
			Database:      dbHealth,
		},
	}, nil
}

func cpuInfo() CPUInfo {
	info := CPUInfo{Cores: runtime.NumCPU()}
	if loadAvg, err := load.Avg(); err == nil && loadAvg != nil {
		info.Load1Min = loadAvg.Load1
		info.Load5Min = loadAvg.Load5
		info.Load15Min = loadAvg.Load15
	}
	return info
}

func memoryInfo() MemoryInfo {
	info := MemoryInfo{}
	if vmStat, err := mem.VirtualMemory(); err == nil && vmStat != nil {
		info.TotalMB = float64(vmStat.Total) / 1024 / 1024
		info.UsedMB = float64(vmStat.Used) / 1024 / 1024
		info.AvailableMB = float64(vmStat.Available) / 1024 / 1024
	}
	return info
}

func (h *HealthHandler) databaseHealth(ctx context.Context) DatabaseHealth {
	health := DatabaseHealth{Status: "ok"}

	if h.db == nil {
		health.Status = "unknown"
		return health
	}

	sqlDB, err := h.db.DB()
	if err != nil {
		health.Status = "error"
		return health
	}

	stats := sqlDB.Stats()
	health.OpenConns = stats.OpenConnections
	health.InUse = stats.InUse
	health.Idle = stats.Idle

	start := time.Now()
	err = sqlDB.PingContext(ctx)
	health.ResponseTimeMS = float64(time.Since(start).Microseconds()) / 1000
	if err != nil {
		health.Status = "error"
	}

	return health
}
