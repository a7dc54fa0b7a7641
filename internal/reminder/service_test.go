package reminder

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xforce-bot/backend/internal/storage/models"
)

type fakeDirectory struct {
	employees []models.Employee
}

func (f *fakeDirectory) ListActiveEmployees(_ context.Context) ([]models.Employee, error) {
	return f.employees, nil
}

type fakeAttendance struct {
	recorded map[string]bool
}

func (f *fakeAttendance) HasRecordForDay(_ context.Context, employeeID, _ string, _ time.Time) (bool, error) {
	return f.recorded[employeeID], nil
}

type fakeNotifier struct {
	prompted []string
}

func (f *fakeNotifier) SendCheckInPrompt(_ context.Context, emp models.Employee) error {
	f.prompted = append(f.prompted, emp.ID)
	return nil
}

func TestRunOncePromptsAtShiftStart(t *testing.T) {
	dir := &fakeDirectory{employees: []models.Employee{
		{ID: "emp-1", CompanyID: "acme", ShiftStart: "09:00", Timezone: "UTC"},
		{ID: "emp-2", CompanyID: "acme", ShiftStart: "10:30", Timezone: "UTC"},
	}}
	att := &fakeAttendance{recorded: map[string]bool{}}
	notifier := &fakeNotifier{}

	svc := NewService(dir, att, notifier, "")
	svc.RunOnce(context.Background(), time.Date(2024, 3, 11, 9, 0, 12, 0, time.UTC))

	require.Len(t, notifier.prompted, 1)
	assert.Equal(t, "emp-1", notifier.prompted[0])
}

func TestRunOnceSkipsCheckedInEmployees(t *testing.T) {
	dir := &fakeDirectory{employees: []models.Employee{
		{ID: "emp-1", CompanyID: "acme", ShiftStart: "09:00", Timezone: "UTC"},
	}}
	att := &fakeAttendance{recorded: map[string]bool{"emp-1": true}}
	notifier := &fakeNotifier{}

	svc := NewService(dir, att, notifier, "")
	svc.RunOnce(context.Background(), time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC))

	assert.Empty(t, notifier.prompted)
}

func TestRunOnceResolvesShiftInEmployeeTimezone(t *testing.T) {
	dir := &fakeDirectory{employees: []models.Employee{
		// 09:00 in Singapore is 01:00 UTC.
		{ID: "emp-sg", CompanyID: "acme", ShiftStart: "09:00", Timezone: "Asia/Singapore"},
	}}
	att := &fakeAttendance{recorded: map[string]bool{}}
	notifier := &fakeNotifier{}

	svc := NewService(dir, att, notifier, "")

	svc.RunOnce(context.Background(), time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC))
	assert.Empty(t, notifier.prompted, "09:00 UTC is not shift start in Singapore")

	svc.RunOnce(context.Background(), time.Date(2024, 3, 11, 1, 0, 0, 0, time.UTC))
	require.Len(t, notifier.prompted, 1)
	assert.Equal(t, "emp-sg", notifier.prompted[0])
}

func TestRunOnceSkipsUnscheduledAndInvalidTimezone(t *testing.T) {
	dir := &fakeDirectory{employees: []models.Employee{
		{ID: "emp-1", CompanyID: "acme"},
		{ID: "emp-2", CompanyID: "acme", ShiftStart: "09:00", Timezone: "Mars/Olympus"},
	}}
	att := &fakeAttendance{recorded: map[string]bool{}}
	notifier := &fakeNotifier{}

	svc := NewService(dir, att, notifier, "")
	svc.RunOnce(context.Background(), time.Date(2024, 3, 11, 9, 0, 0, 0, time.UTC))

	assert.Empty(t, notifier.prompted)
}
