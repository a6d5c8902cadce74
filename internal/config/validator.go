package config

import (
	"fmt"

	"github.com/robfig/cron/v3"
)

// Validator validates configuration values
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

// Validate checks the whole configuration for consistency
func (v *Validator) Validate(cfg *Config) error {
	if err := v.ValidateGateway(cfg.Gateway); err != nil {
		return err
	}
	if err := v.ValidateMemory(cfg.Memory); err != nil {
		return err
	}
	seen := make(map[string]bool)
	capabilities := make(map[string]string)
	for _, agent := range cfg.Agents {
		if err := v.ValidateAgent(agent); err != nil {
			return err
		}
		if seen[agent.Type] {
			return fmt.Errorf("duplicate agent type: %s", agent.Type)
		}
		seen[agent.Type] = true
		for _, capability := range agent.Capabilities {
			if owner, ok := capabilities[capability]; ok {
				return fmt.Errorf("capability %q claimed by both %s and %s", capability, owner, agent.Type)
			}
			capabilities[capability] = agent.Type
		}
	}
	if cfg.Orchestrator.HandoffDeadline <= 0 {
		return fmt.Errorf("handoff deadline must be positive")
	}
	return nil
}

// ValidateGateway validates gateway server settings
func (v *Validator) ValidateGateway(cfg GatewayConfig) error {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("invalid gateway port: %d", cfg.Port)
	}
	if cfg.SharedSecret == "" {
		return fmt.Errorf("gateway shared secret cannot be empty")
	}
	return nil
}

// ValidateMemory validates memory tier settings
func (v *Validator) ValidateMemory(cfg MemoryConfig) error {
	if cfg.ShortTermTTL <= 0 {
		return fmt.Errorf("short-term TTL must be positive")
	}
	if cfg.ImportanceThreshold < 0 || cfg.ImportanceThreshold > 1 {
		return fmt.Errorf("importance threshold must be in [0, 1], got %v", cfg.ImportanceThreshold)
	}
	if cfg.DecayFactor <= 0 || cfg.DecayFactor > 1 {
		return fmt.Errorf("decay factor must be in (0, 1], got %v", cfg.DecayFactor)
	}
	if err := v.validateCronExpr(cfg.ConsolidationSchedule, "consolidation_schedule"); err != nil {
		return err
	}
	return v.validateCronExpr(cfg.DecaySchedule, "decay_schedule")
}

// ValidateAgent validates a single agent descriptor
func (v *Validator) ValidateAgent(cfg AgentConfig) error {
	if cfg.Type == "" {
		return fmt.Errorf("agent type cannot be empty")
	}
	if cfg.TimeoutSeconds <= 0 {
		return fmt.Errorf("agent %s: timeout must be positive", cfg.Type)
	}
	if len(cfg.Capabilities) == 0 {
		return fmt.Errorf("agent %s: at least one capability is required", cfg.Type)
	}
	return nil
}

func (v *Validator) validateCronExpr(expr, field string) error {
	if expr == "" {
		return fmt.Errorf("%s cannot be empty", field)
	}
	parser := cron.NewParser(cron.Minute | cron.Hour | cron.Dom | cron.Month | cron.Dow)
	if _, err := parser.Parse(expr); err != nil {
		return fmt.Errorf("invalid %s: %w", field, err)
	}
	return nil
}
