package orchestrator

import "fmt"

// Lead lifecycle states
const (
	LeadNew               = "new"
	LeadQualifying        = "qualifying"
	LeadCampaignQualified = "campaign_qualified"
	LeadColdLead          = "cold_lead"
	LeadGeneralInquiry    = "general_inquiry"
	LeadEngaged           = "engaged"
	LeadConverted         = "converted"
	LeadLost              = "lost"
	LeadNurturing         = "nurturing"
)

// Campaign lifecycle states
const (
	CampaignDraft      = "draft"
	CampaignActive     = "active"
	CampaignOptimizing = "optimizing"
	CampaignPaused     = "paused"
	CampaignCompleted  = "completed"
)

var leadTransitions = map[string][]string{
	LeadNew:               {LeadQualifying},
	LeadQualifying:        {LeadCampaignQualified, LeadColdLead, LeadGeneralInquiry},
	LeadCampaignQualified: {LeadEngaged},
	LeadEngaged:           {LeadConverted, LeadLost},
	LeadColdLead:          {LeadNurturing},
	LeadNurturing:         {LeadQualifying},
}

var campaignTransitions = map[string][]string{
	CampaignDraft:      {CampaignActive},
	CampaignActive:     {CampaignOptimizing, CampaignPaused, CampaignCompleted},
	CampaignOptimizing: {CampaignActive},
	CampaignPaused:     {CampaignActive, CampaignCompleted},
}

// TransitionGuard validates lead and campaign state changes against the
// lifecycle charts. The charts are advisory; the guard only rejects
// writes when enforcement is enabled.
type TransitionGuard struct {
	enforce bool
}

// NewTransitionGuard creates a guard; enforce=false makes every check a
// pass-through
func NewTransitionGuard(enforce bool) *TransitionGuard {
	return &TransitionGuard{enforce: enforce}
}

// Enforcing reports whether the guard rejects invalid transitions
func (g *TransitionGuard) Enforcing() bool { return g != nil && g.enforce }

// CheckLead validates a lead state change
func (g *TransitionGuard) CheckLead(from, to string) error {
	return g.check(leadTransitions, "lead", from, to)
}

// CheckCampaign validates a campaign state change
func (g *TransitionGuard) CheckCampaign(from, to string) error {
	return g.check(campaignTransitions, "campaign", from, to)
}

func (g *TransitionGuard) check(chart map[string][]string, kind, from, to string) error {
	if !g.Enforcing() || from == "" || from == to {
		return nil
	}
	for _, next := range chart[from] {
		if next == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s %s -> %s", ErrInvalidTransition, kind, from, to)
}
