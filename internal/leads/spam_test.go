package leads

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestScoreSubmissionCleanLead(t *testing.T) {
	sub := &Submission{Name: "Jane Doe", Email: "jane@example.com"}
	meta := RequestMeta{UserAgent: "Mozilla/5.0"}

	verdict := ScoreSubmission(sub, meta)
	assert.False(t, verdict.IsSpam)
	assert.Empty(t, verdict.Reasons)
}

func TestScoreSubmissionSingleSignalTolerated(t *testing.T) {
	// A legitimately named "Test Co." submitter must not be rejected on
	// the name signal alone.
	sub := &Submission{Name: "Test Co.", Email: "owner@testco.example.com"}
	meta := RequestMeta{UserAgent: "Mozilla/5.0"}

	verdict := ScoreSubmission(sub, meta)
	assert.False(t, verdict.IsSpam)
	assert.Len(t, verdict.Reasons, 1)
}

func TestScoreSubmissionMissingUserAgentAloneAccepted(t *testing.T) {
	sub := &Submission{Name: "Jane Doe", Email: "jane@example.com"}

	verdict := ScoreSubmission(sub, RequestMeta{})
	assert.False(t, verdict.IsSpam)
	assert.Equal(t, []string{"missing user agent"}, verdict.Reasons)
}

func TestScoreSubmissionTwoSignalsReject(t *testing.T) {
	custom := make(map[string]string)
	for i := 0; i < 15; i++ {
		custom[fmt.Sprintf("field%d", i)] = "value"
	}
	sub := &Submission{
		Name:         "Jane Doe",
		Email:        "jane@example.com",
		CustomFields: custom,
	}

	verdict := ScoreSubmission(sub, RequestMeta{})
	assert.True(t, verdict.IsSpam)
	assert.Len(t, verdict.Reasons, 2)
}

func TestScoreSubmissionDisposableDomainPlusName(t *testing.T) {
	sub := &Submission{Name: "Test Bot", Email: "x@mailinator.com"}
	meta := RequestMeta{UserAgent: "curl/8.0"}

	verdict := ScoreSubmission(sub, meta)
	assert.True(t, verdict.IsSpam)
	assert.Len(t, verdict.Reasons, 2)
}

func TestScoreSubmissionCustomFieldsAtLimitNotFlagged(t *testing.T) {
	custom := make(map[string]string)
	for i := 0; i < spamCustomFieldLimit; i++ {
		custom[fmt.Sprintf("field%d", i)] = "value"
	}
	sub := &Submission{Name: "Jane Doe", Email: "jane@example.com", CustomFields: custom}

	verdict := ScoreSubmission(sub, RequestMeta{UserAgent: "Mozilla/5.0"})
	assert.False(t, verdict.IsSpam)
	assert.Empty(t, verdict.Reasons)
}
