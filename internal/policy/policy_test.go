package policy

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/xforce-bot/backend/internal/storage/models"
)

func TestClassifyTiers(t *testing.T) {
	tests := []struct {
		count     int
		tier      Tier
		action    string
		escalate  bool
		severity  string
		issueType string
	}{
		{0, TierNovel, ActionReply, false, "", ""},
		{1, TierRepeated, ActionReply, false, "", ""},
		{2, TierRepeated, ActionReply, false, "", ""},
		{3, TierFrequent, ActionEscalateLead, true, SeverityMedium, models.IssueTypeTeamLead},
		{4, TierFrequent, ActionEscalateLead, true, SeverityMedium, models.IssueTypeTeamLead},
		{5, TierPersistent, ActionEscalateManager, true, SeverityHigh, models.IssueTypeManager},
		{6, TierPersistent, ActionEscalateManager, true, SeverityHigh, models.IssueTypeManager},
		{100, TierPersistent, ActionEscalateManager, true, SeverityHigh, models.IssueTypeManager},
	}

	for _, tt := range tests {
		out := Classify(tt.count)
		assert.Equal(t, tt.tier, out.Tier, "count %d", tt.count)
		assert.Equal(t, tt.action, out.Action, "count %d", tt.count)
		assert.Equal(t, tt.escalate, out.Escalate, "count %d", tt.count)
		assert.Equal(t, tt.severity, out.Severity, "count %d", tt.count)
		assert.Equal(t, tt.issueType, out.IssueType, "count %d", tt.count)
		assert.NotEmpty(t, out.ResponseText, "count %d", tt.count)
	}
}

func TestClassifyTotalOverNegativeInput(t *testing.T) {
	out := Classify(-1)
	assert.Equal(t, TierNovel, out.Tier)
	assert.Equal(t, ActionReply, out.Action)
	assert.False(t, out.Escalate)
}
