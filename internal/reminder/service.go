// Package reminder runs the scheduled check-in prompt job: employees whose
// shift starts at the current minute and who have no attendance record for
// their local day get a prompt through the Notifier.
package reminder

import (
	"context"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"github.com/xforce-bot/backend/internal/metrics"
	"github.com/xforce-bot/backend/internal/storage/models"
	"github.com/xforce-bot/backend/pkg/logger"
)

type Directory interface {
	ListActiveEmployees(ctx context.Context) ([]models.Employee, error)
}

type AttendanceReader interface {
	HasRecordForDay(ctx context.Context, employeeID, companyID string, day time.Time) (bool, error)
}

// Notifier delivers the prompt. Message delivery itself belongs to the
// transport layer; the default implementation only logs and counts.
type Notifier interface {
	SendCheckInPrompt(ctx context.Context, emp models.Employee) error
}

type LogNotifier struct{}

func (LogNotifier) SendCheckInPrompt(_ context.Context, emp models.Employee) error {
	logger.Info("Check-in prompt due",
		zap.Int64("employee_number", emp.EmployeeNumber),
		zap.String("company_id", emp.CompanyID),
	)
	return nil
}

type Service struct {
	directory  Directory
	attendance AttendanceReader
	notifier   Notifier
	schedule   string
	cron       *cron.Cron
}

func NewService(directory Directory, attendance AttendanceReader, notifier Notifier, schedule string) *Service {
	if notifier == nil {
		notifier = LogNotifier{}
	}
	if schedule == "" {
		schedule = "*/5 * * * *"
	}

	return &Service{
		directory:  directory,
		attendance: attendance,
		notifier:   notifier,
		schedule:   schedule,
	}
}

func (s *Service) Start() error {
	s.cron = cron.New()

	_, err := s.cron.AddFunc(s.schedule, func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
		defer cancel()
		s.RunOnce(ctx, time.Now())
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	logger.Info("Reminder service started", zap.String("schedule", s.schedule))
	return nil
}

func (s *Service) Stop() {
	if s.cron != nil {
		s.cron.Stop()
	}
}

// RunOnce performs a single sweep at the given instant. Exported so the
// sweep can be driven directly with a fixed clock.
func (s *Service) RunOnce(ctx context.Context, now time.Time) {
	employees, err := s.directory.ListActiveEmployees(ctx)
	if err != nil {
		logger.Error("Reminder sweep failed to list employees", zap.Error(err))
		return
	}

	for _, emp := range employees {
		if emp.ShiftStart == "" || emp.Timezone == "" {
			continue
		}

		loc, err := time.LoadLocation(emp.Timezone)
		if err != nil {
			logger.Warn("Employee has invalid timezone",
				zap.Int64("employee_number", emp.EmployeeNumber),
				zap.String("timezone", emp.Timezone),
			)
			continue
		}

		local := now.In(loc)
		if local.Format("15:04") != emp.ShiftStart {
			continue
		}

		has, err := s.attendance.HasRecordForDay(ctx, emp.ID, emp.CompanyID, local)
		if err != nil {
			logger.Error("Reminder sweep failed to check attendance",
				zap.String("employee_id", emp.ID),
				zap.Error(err),
			)
			continue
		}
		if has {
			continue
		}

		if err := s.notifier.SendCheckInPrompt(ctx, emp); err != nil {
			logger.Error("Failed to send check-in prompt",
				zap.String("employee_id", emp.ID),
				zap.Error(err),
			)
			continue
		}
		metrics.RemindersSent.Inc()
	}
}
