package aggregator

import (
	"context"
	"sync"
	"time"

	"github.com/GowthamShanmugam/performance-monitoring/internal/models"
)

// StaticProvider is a StatsProvider fed by an external collector pushing
// readings into it.
type StaticProvider struct {
	mu    sync.RWMutex
	stats *NodeStats
}

// NewStaticProvider returns a provider with no reading yet.
func NewStaticProvider() *StaticProvider {
	return &StaticProvider{}
}

// Set replaces the current reading.
func (p *StaticProvider) Set(stats NodeStats) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stats = &stats
}

// SetUsage replaces the current reading from raw usage numbers, stamped now.
func (p *StaticProvider) SetUsage(cpu, memory, storage models.ResourceUsage) {
	p.Set(NodeStats{
		CPU:         cpu,
		Memory:      memory,
		Storage:     storage,
		CollectedAt: time.Now().UTC(),
	})
}

// NodeStats returns the latest reading, or nil when nothing was pushed yet.
func (p *StaticProvider) NodeStats(_ context.Context) (*NodeStats, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.stats == nil {
		return nil, nil
	}
	stats := *p.stats
	return &stats, nil
}
