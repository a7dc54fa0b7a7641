// Package policy maps a count of semantically similar past messages to an
// escalation outcome. It is the entire decision surface: a total function
// over non-negative counts with no other inputs.
package policy

import "github.com/xforce-bot/backend/internal/storage/models"

type Tier string

const (
	TierNovel      Tier = "novel"
	TierRepeated   Tier = "repeated"
	TierFrequent   Tier = "frequent"
	TierPersistent Tier = "persistent"
)

const (
	ActionReply           = "reply"
	ActionEscalateLead    = "escalate_lead"
	ActionEscalateManager = "escalate_manager"
)

const (
	SeverityMedium = "medium"
	SeverityHigh   = "high"
)

type Outcome struct {
	Tier         Tier
	Action       string
	ResponseText string
	// Escalate, Severity and IssueType are only set for the frequent and
	// persistent tiers.
	Escalate  bool
	Severity  string
	IssueType string
}

// Classify buckets similarCount into a tier. Boundaries are inclusive:
// 3 is already frequent, 5 is already persistent, and there is no upper
// bound.
func Classify(similarCount int) Outcome {
	switch {
	case similarCount <= 0:
		return Outcome{
			Tier:         TierNovel,
			Action:       ActionReply,
			ResponseText: "Thank you. Your message has been noted.",
		}
	case similarCount < 3:
		return Outcome{
			Tier:         TierRepeated,
			Action:       ActionReply,
			ResponseText: "I noticed you've mentioned this before. Please try to plan ahead to avoid this issue.",
		}
	case similarCount < 5:
		return Outcome{
			Tier:         TierFrequent,
			Action:       ActionEscalateLead,
			ResponseText: "This issue has been escalated to your Team Lead due to repetition.",
			Escalate:     true,
			Severity:     SeverityMedium,
			IssueType:    models.IssueTypeTeamLead,
		}
	default:
		return Outcome{
			Tier:         TierPersistent,
			Action:       ActionEscalateManager,
			ResponseText: "This pattern of attendance issues has been flagged to your Manager.",
			Escalate:     true,
			Severity:     SeverityHigh,
			IssueType:    models.IssueTypeManager,
		}
	}
}
