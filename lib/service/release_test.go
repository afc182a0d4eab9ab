package service

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/uptrace/bun"

	"github.com/propcrowd/fundhub.go/common"
	"github.com/propcrowd/fundhub.go/db/models"
)

var releaseTestNow = time.Date(2026, time.June, 1, 9, 0, 0, 0, time.UTC)

func conditionByName(t *testing.T, conditions []ReleaseCondition, name string) ReleaseCondition {
	t.Helper()
	for _, condition := range conditions {
		if condition.Name == name {
			return condition
		}
	}
	t.Fatalf("condition %s not evaluated", name)
	return ReleaseCondition{}
}

func TestReleaseConditionsAllMet(t *testing.T) {
	project := &models.Project{
		Status:          common.ProjectStatusFundingComplete,
		TargetFunding:   100000,
		CurrentFunding:  100000,
		FundingDeadline: bun.NullTime{Time: releaseTestNow.Add(-24 * time.Hour)},
	}

	conditions := EvaluateReleaseConditions(project, releaseTestNow)
	require.Len(t, conditions, 3)
	assert.Empty(t, unmetConditions(conditions))
}

func TestReleaseConditionsTargetNotReached(t *testing.T) {
	project := &models.Project{
		Status:         common.ProjectStatusOpen,
		TargetFunding:  100000,
		CurrentFunding: 40000,
	}

	conditions := EvaluateReleaseConditions(project, releaseTestNow)
	target := conditionByName(t, conditions, ConditionTargetReached)
	assert.False(t, target.Met)
	assert.Contains(t, target.Detail, "40000")
}

func TestReleaseConditionsOverfundedOpenProjectReachesTarget(t *testing.T) {
	project := &models.Project{
		Status:         common.ProjectStatusOpen,
		TargetFunding:  100000,
		CurrentFunding: 101000,
	}

	conditions := EvaluateReleaseConditions(project, releaseTestNow)
	assert.True(t, conditionByName(t, conditions, ConditionTargetReached).Met)
}

func TestReleaseConditionsWindowStillOpen(t *testing.T) {
	project := &models.Project{
		Status:          common.ProjectStatusFundingComplete,
		TargetFunding:   1,
		CurrentFunding:  1,
		FundingDeadline: bun.NullTime{Time: releaseTestNow.Add(48 * time.Hour)},
	}

	conditions := EvaluateReleaseConditions(project, releaseTestNow)
	window := conditionByName(t, conditions, ConditionWindowClosed)
	assert.False(t, window.Met)
	assert.Contains(t, window.Detail, "not reached")
}

func TestReleaseConditionsOverrideBeatsOpenWindow(t *testing.T) {
	project := &models.Project{
		Status:          common.ProjectStatusFundingComplete,
		TargetFunding:   1,
		CurrentFunding:  1,
		FundingDeadline: bun.NullTime{Time: releaseTestNow.Add(48 * time.Hour)},
		ReleaseOverride: true,
	}

	conditions := EvaluateReleaseConditions(project, releaseTestNow)
	window := conditionByName(t, conditions, ConditionWindowClosed)
	assert.True(t, window.Met)
	assert.Contains(t, window.Detail, "override")
}

func TestReleaseConditionsNoDeadlineCountsAsClosed(t *testing.T) {
	project := &models.Project{
		Status:         common.ProjectStatusFundingComplete,
		TargetFunding:  1,
		CurrentFunding: 1,
	}

	conditions := EvaluateReleaseConditions(project, releaseTestNow)
	assert.True(t, conditionByName(t, conditions, ConditionWindowClosed).Met)
}

func TestReleaseConditionsRegulatoryApprovalRequired(t *testing.T) {
	project := &models.Project{
		Status:             common.ProjectStatusFundingComplete,
		TargetFunding:      1,
		CurrentFunding:     1,
		RequiresRegulatory: true,
	}

	conditions := EvaluateReleaseConditions(project, releaseTestNow)
	regulatory := conditionByName(t, conditions, ConditionRegulatoryApproval)
	assert.False(t, regulatory.Met)

	project.RegulatoryApproved = true
	conditions = EvaluateReleaseConditions(project, releaseTestNow)
	assert.True(t, conditionByName(t, conditions, ConditionRegulatoryApproval).Met)
}

func TestUnmetConditionsReportsEveryFailure(t *testing.T) {
	project := &models.Project{
		Status:             common.ProjectStatusOpen,
		TargetFunding:      100000,
		CurrentFunding:     0,
		FundingDeadline:    bun.NullTime{Time: releaseTestNow.Add(time.Hour)},
		RequiresRegulatory: true,
	}

	unmet := unmetConditions(EvaluateReleaseConditions(project, releaseTestNow))
	assert.Len(t, unmet, 3)
}
