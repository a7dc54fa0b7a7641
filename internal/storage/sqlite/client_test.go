package sqlite

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xforce-bot/backend/internal/storage/models"
)

func newTestClient(t *testing.T) *Client {
	t.Helper()

	c, err := NewClient(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	require.NoError(t, c.InitSchema())
	t.Cleanup(func() { c.Close() })

	return c
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 10, 30, 0, 0, time.UTC)
}

func TestAppendLogCreatesRecordOnce(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	today := day(2024, 3, 11)

	rec1, err := c.AppendLog(ctx, "emp-1", "acme", today, models.LogEntry{Content: "my train was late"})
	require.NoError(t, err)
	assert.Equal(t, models.StatusAbsent, rec1.Status)
	assert.Len(t, rec1.Logs, 1)

	rec2, err := c.AppendLog(ctx, "emp-1", "acme", today, models.LogEntry{Content: "stuck again"})
	require.NoError(t, err)

	assert.Equal(t, rec1.ID, rec2.ID, "same day must reuse the record")
	assert.Len(t, rec2.Logs, 2)
	assert.Equal(t, "my train was late", rec2.Logs[0].Content)
	assert.Equal(t, "stuck again", rec2.Logs[1].Content)

	history, err := c.GetAttendanceHistory(ctx, "emp-1", "acme", 10)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestAppendLogDoesNotTouchStatus(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()
	today := day(2024, 3, 11)

	_, err := c.SetStatus(ctx, "emp-1", "acme", today, models.StatusLate)
	require.NoError(t, err)

	rec, err := c.AppendLog(ctx, "emp-1", "acme", today, models.LogEntry{Content: "sorry, overslept"})
	require.NoError(t, err)

	assert.Equal(t, models.StatusLate, rec.Status)
}

func TestSetStatusCreatesRecordIfMissing(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	rec, err := c.SetStatus(ctx, "emp-1", "acme", day(2024, 3, 11), models.StatusOnTime)
	require.NoError(t, err)
	assert.Equal(t, models.StatusOnTime, rec.Status)
	assert.Empty(t, rec.Logs)

	_, err = c.SetStatus(ctx, "emp-1", "acme", day(2024, 3, 11), "sleeping")
	assert.Error(t, err)
}

func TestHistoryMostRecentDayFirst(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	for _, d := range []time.Time{day(2024, 3, 9), day(2024, 3, 11), day(2024, 3, 10)} {
		_, err := c.AppendLog(ctx, "emp-1", "acme", d, models.LogEntry{Content: "note"})
		require.NoError(t, err)
	}

	history, err := c.GetAttendanceHistory(ctx, "emp-1", "acme", 2)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, "2024-03-11", history[0].Day.Format("2006-01-02"))
	assert.Equal(t, "2024-03-10", history[1].Day.Format("2006-01-02"))
}

func TestFindAttendanceByRange(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	_, err := c.AppendLog(ctx, "emp-1", "acme", day(2024, 3, 9), models.LogEntry{Content: "a"})
	require.NoError(t, err)
	_, err = c.AppendLog(ctx, "emp-2", "acme", day(2024, 3, 10), models.LogEntry{Content: "b"})
	require.NoError(t, err)
	_, err = c.AppendLog(ctx, "emp-3", "other", day(2024, 3, 10), models.LogEntry{Content: "c"})
	require.NoError(t, err)

	records, err := c.FindAttendanceByRange(ctx, "acme", day(2024, 3, 10), day(2024, 3, 12))
	require.NoError(t, err)
	require.Len(t, records, 1)
	assert.Equal(t, "emp-2", records[0].EmployeeID)
}

func TestEmployeeLifecycle(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	emp := models.Employee{
		EmployeeNumber: 6598000001,
		CompanyID:      "acme",
		Name:           "Mei Lin",
		ShiftStart:     "09:00",
		Timezone:       "Asia/Singapore",
	}
	require.NoError(t, c.UpsertEmployee(ctx, &emp))
	require.NotEmpty(t, emp.ID)

	found, err := c.FindActiveEmployee(ctx, 6598000001, "acme")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, emp.ID, found.ID)
	assert.Equal(t, "09:00", found.ShiftStart)

	missing, err := c.FindActiveEmployee(ctx, 12345, "acme")
	require.NoError(t, err)
	assert.Nil(t, missing)

	require.NoError(t, c.DeactivateEmployee(ctx, 6598000001, "acme"))
	gone, err := c.FindActiveEmployee(ctx, 6598000001, "acme")
	require.NoError(t, err)
	assert.Nil(t, gone)

	// Upserting again reactivates under the same (number, company) pair.
	again := models.Employee{EmployeeNumber: 6598000001, CompanyID: "acme", Name: "Mei Lin"}
	require.NoError(t, c.UpsertEmployee(ctx, &again))
	back, err := c.FindActiveEmployee(ctx, 6598000001, "acme")
	require.NoError(t, err)
	require.NotNil(t, back)
	assert.Equal(t, emp.ID, back.ID)

	active, err := c.ListActiveEmployees(ctx)
	require.NoError(t, err)
	assert.Len(t, active, 1)
}

func TestHasRecordForDay(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	has, err := c.HasRecordForDay(ctx, "emp-1", "acme", day(2024, 3, 11))
	require.NoError(t, err)
	assert.False(t, has)

	_, err = c.AppendLog(ctx, "emp-1", "acme", day(2024, 3, 11), models.LogEntry{Content: "note"})
	require.NoError(t, err)

	has, err = c.HasRecordForDay(ctx, "emp-1", "acme", day(2024, 3, 11))
	require.NoError(t, err)
	assert.True(t, has)
}

func TestTicketLifecycle(t *testing.T) {
	c := newTestClient(t)
	ctx := context.Background()

	number, err := c.OpenTicket(ctx, "emp-1", "acme", models.IssueTypeTeamLead, "Repeated excuse detected.")
	require.NoError(t, err)
	assert.GreaterOrEqual(t, number, 10000)
	assert.LessOrEqual(t, number, 99999)

	active, err := c.ListActiveTickets(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, active, 1)
	assert.Equal(t, number, active[0].TicketNumber)
	assert.Equal(t, models.TicketOpen, active[0].Status)
	assert.Equal(t, models.IssueTypeTeamLead, active[0].IssueType)

	require.NoError(t, c.UpdateTicketStatus(ctx, number, "emp-1", models.TicketHold))
	active, err = c.ListActiveTickets(ctx, "acme")
	require.NoError(t, err)
	assert.Len(t, active, 1, "hold tickets stay active")

	require.NoError(t, c.UpdateTicketStatus(ctx, number, "emp-1", models.TicketResolve))
	active, err = c.ListActiveTickets(ctx, "acme")
	require.NoError(t, err)
	assert.Empty(t, active)

	err = c.UpdateTicketStatus(ctx, 4242, "emp-1", models.TicketClosed)
	assert.Error(t, err, "unknown ticket number must not update silently")

	err = c.UpdateTicketStatus(ctx, number, "emp-1", "lost")
	assert.Error(t, err)
}
