package search

import (
	"testing"

	"trafficslice/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPlanSortAndPage_Defaults(t *testing.T) {
	plan, err := PlanSortAndPage(&core.AlertFilter{}, 0)
	require.NoError(t, err)
	assert.Equal(t, core.FieldSeverity, plan.Column)
	assert.Equal(t, "DESC", plan.Direction)
	assert.Equal(t, 0, plan.Offset)
	assert.Equal(t, core.MaxAlerts, plan.PageSize)
	assert.Equal(t, []string{"severity DESC", "timestamp DESC"}, plan.OrderBy(DialectSQLite))
}

func TestPlanSortAndPage_Explicit(t *testing.T) {
	plan, err := PlanSortAndPage(&core.AlertFilter{OrderBy: "alert_name", Order: "asc", Offset: 10, PageSize: 10}, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"alert_name ASC", "timestamp DESC"}, plan.OrderBy(DialectSQLite))
	assert.Equal(t, 10, plan.Offset)
	assert.Equal(t, 10, plan.PageSize)
}

func TestPlanSortAndPage_TimestampStillTieBreaks(t *testing.T) {
	plan, err := PlanSortAndPage(&core.AlertFilter{OrderBy: "timestamp", Order: "ASC"}, 0)
	require.NoError(t, err)
	assert.Equal(t, []string{"timestamp ASC", "timestamp DESC"}, plan.OrderBy(DialectSQLite))
}

func TestPlanSortAndPage_RejectsUnknownColumn(t *testing.T) {
	for _, col := range []string{"id", "severity; DROP TABLE alerts", "SEVERITY", "1"} {
		_, err := PlanSortAndPage(&core.AlertFilter{OrderBy: col}, 0)
		assert.ErrorIs(t, err, ErrInvalidOrderBy, col)
		assert.True(t, IsCompositionError(err))
	}
}

func TestPlanSortAndPage_RejectsBadOrder(t *testing.T) {
	_, err := PlanSortAndPage(&core.AlertFilter{Order: "sideways"}, 0)
	assert.ErrorIs(t, err, ErrInvalidOrder)
}

func TestPlanSortAndPage_RejectsNegativePagination(t *testing.T) {
	_, err := PlanSortAndPage(&core.AlertFilter{Offset: -1}, 0)
	assert.ErrorIs(t, err, ErrInvalidPagination)

	_, err = PlanSortAndPage(&core.AlertFilter{PageSize: -5}, 0)
	assert.ErrorIs(t, err, ErrInvalidPagination)
}

func TestPlanSortAndPage_ExplicitZeroPageSize(t *testing.T) {
	f := core.NewAlertFilter()
	f.SetPageSize(0)
	plan, err := PlanSortAndPage(f, 1000)
	require.NoError(t, err)
	assert.Equal(t, 0, plan.PageSize)
}

func TestPlanSortAndPage_CapsPageSize(t *testing.T) {
	plan, err := PlanSortAndPage(&core.AlertFilter{PageSize: 5000}, 1000)
	require.NoError(t, err)
	assert.Equal(t, 1000, plan.PageSize)
}
