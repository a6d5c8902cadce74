package config

import (
	"time"
)

// Config represents the main Merit configuration
type Config struct {
	// Data directory for SQLite stores and logs
	DataDir string `json:"data_dir" mapstructure:"data_dir"`

	// Gateway server configuration
	Gateway GatewayConfig `json:"gateway" mapstructure:"gateway"`

	// Store paths for the resource adapters
	Stores StoresConfig `json:"stores" mapstructure:"stores"`

	// Memory tier tuning
	Memory MemoryConfig `json:"memory" mapstructure:"memory"`

	// Agent descriptors registered at startup
	Agents []AgentConfig `json:"agents" mapstructure:"agents"`

	// Orchestrator behavior
	Orchestrator OrchestratorConfig `json:"orchestrator" mapstructure:"orchestrator"`

	// Logging
	Logging LoggingConfig `json:"logging" mapstructure:"logging"`
}

// GatewayConfig holds protocol server configuration
type GatewayConfig struct {
	Host              string `json:"host" mapstructure:"host"`
	Port              int    `json:"port" mapstructure:"port"`
	SharedSecret      string `json:"shared_secret" mapstructure:"shared_secret"`
	RequestsPerMinute int    `json:"requests_per_minute" mapstructure:"requests_per_minute"`
	MaxConcurrent     int    `json:"max_concurrent" mapstructure:"max_concurrent"`
}

// StoresConfig holds resource adapter store paths
type StoresConfig struct {
	RecordPath    string `json:"record_path" mapstructure:"record_path"`
	GraphPath     string `json:"graph_path" mapstructure:"graph_path"`
	AggregatePath string `json:"aggregate_path" mapstructure:"aggregate_path"`
}

// MemoryConfig holds memory tier tuning
type MemoryConfig struct {
	// Short-term TTL applied when callers do not supply one
	ShortTermTTL time.Duration `json:"short_term_ttl" mapstructure:"short_term_ttl"`
	// Interval of the background expiry sweep over short-term entries
	SweepInterval time.Duration `json:"sweep_interval" mapstructure:"sweep_interval"`
	// Cron expression for the consolidation job
	ConsolidationSchedule string `json:"consolidation_schedule" mapstructure:"consolidation_schedule"`
	// Importance threshold above which a context is consolidated
	ImportanceThreshold float64 `json:"importance_threshold" mapstructure:"importance_threshold"`
	// Cron expression for semantic weight decay
	DecaySchedule string `json:"decay_schedule" mapstructure:"decay_schedule"`
	// Multiplicative decay factor in (0, 1]
	DecayFactor float64 `json:"decay_factor" mapstructure:"decay_factor"`
}

// AgentConfig describes one agent registered with the orchestrator
type AgentConfig struct {
	Type           string   `json:"type" mapstructure:"type"`
	TimeoutSeconds int      `json:"timeout_seconds" mapstructure:"timeout_seconds"`
	Capabilities   []string `json:"capabilities" mapstructure:"capabilities"`
}

// OrchestratorConfig holds orchestrator behavior settings
type OrchestratorConfig struct {
	// HandoffDeadline bounds destination-side handoff delivery
	HandoffDeadline time.Duration `json:"handoff_deadline" mapstructure:"handoff_deadline"`
	// EnforceTransitions enables the lead/campaign state transition guard
	EnforceTransitions bool `json:"enforce_transitions" mapstructure:"enforce_transitions"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level     string `json:"level" mapstructure:"level"`
	File      string `json:"file" mapstructure:"file"`
	Console   bool   `json:"console" mapstructure:"console"`
	Pretty    bool   `json:"pretty" mapstructure:"pretty"`
	Redaction bool   `json:"redaction" mapstructure:"redaction"`
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Gateway: GatewayConfig{
			Host:              "127.0.0.1",
			Port:              8080,
			RequestsPerMinute: 60,
			MaxConcurrent:     10,
		},
		Memory: MemoryConfig{
			ShortTermTTL:          24 * time.Hour,
			SweepInterval:         time.Minute,
			ConsolidationSchedule: "*/15 * * * *",
			ImportanceThreshold:   0.7,
			DecaySchedule:         "0 3 * * *",
			DecayFactor:           0.95,
		},
		Agents: []AgentConfig{
			{Type: "LeadTriage", TimeoutSeconds: 300, Capabilities: []string{"lead_triage"}},
			{Type: "Engagement", TimeoutSeconds: 300, Capabilities: []string{"engagement"}},
			{Type: "Optimizer", TimeoutSeconds: 300, Capabilities: []string{"campaign_optimization"}},
		},
		Orchestrator: OrchestratorConfig{
			HandoffDeadline:    5 * time.Minute,
			EnforceTransitions: false,
		},
		Logging: LoggingConfig{
			Level:     "info",
			Console:   true,
			Pretty:    true,
			Redaction: true,
		},
	}
}
