package memory

import (
	"fmt"
	"sync"

	"github.com/purplemerit/merit/pkg/resource"
	"github.com/rs/zerolog"
)

// Record store collections backing the durable tiers
const (
	collectionProfiles = "lead_profiles"
	collectionEpisodes = "episodes"
)

// Manager is the facade over the four memory tiers. All tier state lives
// in the resource adapters; the manager only adds per-lead mutual
// exclusion for long-term merges.
type Manager struct {
	cache   *resource.CacheStore
	records *resource.RecordStore
	graph   *resource.GraphStore
	logger  zerolog.Logger

	leadLocks sync.Map // leadID -> *sync.Mutex
}

// ManagerConfig holds memory manager dependencies
type ManagerConfig struct {
	Cache   *resource.CacheStore
	Records *resource.RecordStore
	Graph   *resource.GraphStore
	Logger  zerolog.Logger
}

// NewManager creates the memory facade over existing stores
func NewManager(cfg ManagerConfig) (*Manager, error) {
	if cfg.Cache == nil || cfg.Records == nil || cfg.Graph == nil {
		return nil, fmt.Errorf("memory manager requires cache, record and graph stores")
	}
	return &Manager{
		cache:   cfg.Cache,
		records: cfg.Records,
		graph:   cfg.Graph,
		logger:  cfg.Logger,
	}, nil
}

// lockLead returns the mutex guarding one lead's profile
func (m *Manager) lockLead(leadID string) *sync.Mutex {
	mu, _ := m.leadLocks.LoadOrStore(leadID, &sync.Mutex{})
	return mu.(*sync.Mutex)
}
