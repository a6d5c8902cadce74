package memory

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/purplemerit/merit/internal/observability"
	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// episodeNamespace seeds the stable episode ids derived from a
// conversation id and consolidation window
var episodeNamespace = uuid.MustParse("7a5de2c1-9b14-4b6f-8a14-3f6554c24d3e")

// Consolidator periodically promotes important short-term contexts into
// episodic memory and reinforces semantic triples. Promotion is
// idempotent per (conversation, window): re-running a window changes
// nothing. Short-term entries are never evicted here; TTL alone governs
// their lifetime.
type Consolidator struct {
	manager   *Manager
	threshold float64
	window    time.Duration
	decay     float64
	logger    zerolog.Logger
	cron      *cron.Cron
}

// ConsolidatorConfig holds consolidation tuning
type ConsolidatorConfig struct {
	Manager             *Manager
	ImportanceThreshold float64
	Window              time.Duration
	Schedule            string
	DecaySchedule       string
	DecayFactor         float64
	Logger              zerolog.Logger
}

// NewConsolidator creates a consolidator; Start schedules it
func NewConsolidator(cfg ConsolidatorConfig) (*Consolidator, error) {
	if cfg.Manager == nil {
		return nil, fmt.Errorf("consolidator requires a memory manager")
	}
	if cfg.ImportanceThreshold <= 0 || cfg.ImportanceThreshold > 1 {
		return nil, fmt.Errorf("importance threshold must be in (0, 1], got %v", cfg.ImportanceThreshold)
	}
	window := cfg.Window
	if window <= 0 {
		window = 15 * time.Minute
	}

	c := &Consolidator{
		manager:   cfg.Manager,
		threshold: cfg.ImportanceThreshold,
		window:    window,
		decay:     cfg.DecayFactor,
		logger:    cfg.Logger,
		cron:      cron.New(),
	}

	if cfg.Schedule != "" {
		if _, err := c.cron.AddFunc(cfg.Schedule, func() {
			if _, err := c.Run(context.Background()); err != nil {
				c.logger.Error().Err(err).Msg("Consolidation run failed")
			}
		}); err != nil {
			return nil, fmt.Errorf("invalid consolidation schedule %q: %w", cfg.Schedule, err)
		}
	}
	if cfg.DecaySchedule != "" && cfg.DecayFactor > 0 {
		if _, err := c.cron.AddFunc(cfg.DecaySchedule, func() {
			if err := c.manager.Decay(context.Background(), c.decay); err != nil {
				c.logger.Error().Err(err).Msg("Semantic decay failed")
			}
		}); err != nil {
			return nil, fmt.Errorf("invalid decay schedule %q: %w", cfg.DecaySchedule, err)
		}
	}

	return c, nil
}

// Start begins scheduled consolidation
func (c *Consolidator) Start() {
	c.cron.Start()
	c.logger.Info().Dur("window", c.window).Float64("threshold", c.threshold).Msg("Consolidator started")
}

// Stop halts the schedule, waiting for an in-flight run
func (c *Consolidator) Stop() {
	<-c.cron.Stop().Done()
}

// Run consolidates every live short-term context once and returns the
// number of episodes promoted in this pass
func (c *Consolidator) Run(ctx context.Context) (int, error) {
	snapshot := c.manager.ShortTermSnapshot()
	now := time.Now().UTC()
	promoted := 0

	for conversationID, convCtx := range snapshot {
		score := c.importance(ctx, conversationID, convCtx, now)
		if score < c.threshold {
			continue
		}

		ep := episodeFromContext(conversationID, convCtx, score, now, c.window)
		inserted, err := c.manager.AppendEpisode(ctx, ep)
		if err != nil {
			return promoted, fmt.Errorf("failed to promote conversation %s: %w", conversationID, err)
		}
		if !inserted {
			continue
		}
		promoted++

		if err := c.reinforce(ctx, ep, convCtx); err != nil {
			c.logger.Warn().Err(err).Str("episode", ep.ID).Msg("Triple reinforcement failed")
		}
	}

	observability.RecordConsolidationRun(promoted)
	c.logger.Debug().Int("contexts", len(snapshot)).Int("promoted", promoted).Msg("Consolidation run completed")
	return promoted, nil
}

// importance scores a context in [0, 1] as the weighted sum of recency,
// outcome signal, novelty against existing episodes and repetition
// frequency, each weighted 0.25
func (c *Consolidator) importance(ctx context.Context, conversationID string, convCtx Context, now time.Time) float64 {
	recency := 1.0
	if v, ok := convCtx["lastActivityAt"].(string); ok {
		if t, err := time.Parse(time.RFC3339Nano, v); err == nil {
			age := now.Sub(t)
			if age > 0 {
				recency = 1 - float64(age)/float64(c.window)
				if recency < 0 {
					recency = 0
				}
			}
		}
	}

	outcome := outcomeSignal(stringField(convCtx, "outcome"))

	novelty := 1.0
	scenario := stringField(convCtx, "scenario")
	leadID := stringField(convCtx, "leadId")
	if scenario != "" {
		prior, err := c.manager.QueryEpisodes(ctx, EpisodeFilter{Scenario: scenario, LeadID: leadID, Limit: 1})
		if err == nil && len(prior) > 0 {
			novelty = 0.2
		}
	}

	repetition := 0.0
	if v, ok := convCtx["turns"].(float64); ok {
		repetition = v / 5
		if repetition > 1 {
			repetition = 1
		}
	}

	return 0.25*recency + 0.25*outcome + 0.25*novelty + 0.25*repetition
}

// outcomeSignal weighs how much an outcome is worth remembering.
// Failures score high on purpose: a lost lead teaches as much as a
// converted one.
func outcomeSignal(outcome string) float64 {
	switch strings.ToLower(outcome) {
	case "converted", "won":
		return 1.0
	case "lost", "failed":
		return 0.8
	case "qualified", "engaged":
		return 0.6
	case "":
		return 0.2
	default:
		return 0.4
	}
}

// episodeFromContext builds the promoted episode. The id is a SHA1 uuid
// over conversation id plus the window bucket, so re-running the same
// window reproduces the same id.
func episodeFromContext(conversationID string, convCtx Context, score float64, now time.Time, window time.Duration) Episode {
	bucket := now.Truncate(window).Format(time.RFC3339)
	id := uuid.NewSHA1(episodeNamespace, []byte(conversationID+"|"+bucket)).String()

	details := map[string]interface{}{}
	for k, v := range convCtx {
		details[k] = v
	}

	return Episode{
		ID:             id,
		ConversationID: conversationID,
		LeadID:         stringField(convCtx, "leadId"),
		Scenario:       stringField(convCtx, "scenario"),
		Outcome:        stringField(convCtx, "outcome"),
		Importance:     score,
		Details:        details,
		OccurredAt:     now,
	}
}

// reinforce derives semantic triples from a freshly promoted episode
func (c *Consolidator) reinforce(ctx context.Context, ep Episode, convCtx Context) error {
	if ep.LeadID == "" {
		return nil
	}
	if ep.Scenario != "" {
		if err := c.manager.ReinforceTriple(ctx, ep.LeadID, "experienced", ep.Scenario, 1.0); err != nil {
			return err
		}
	}
	if topics, ok := convCtx["topics"].([]interface{}); ok {
		for _, raw := range topics {
			topic, ok := raw.(string)
			if !ok || topic == "" {
				continue
			}
			if err := c.manager.ReinforceTriple(ctx, ep.LeadID, "interested_in", topic, 1.0); err != nil {
				return err
			}
		}
	}
	return nil
}
