// Package engine holds the semantic escalation decision engine: per
// incoming message it appends to the attendance log, embeds the text,
// counts semantically similar past messages for the same employee, and
// drives the tiered escalation policy off that count.
package engine

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/xforce-bot/backend/internal/metrics"
	"github.com/xforce-bot/backend/internal/policy"
	"github.com/xforce-bot/backend/internal/storage/models"
	"github.com/xforce-bot/backend/internal/vector/milvus"
	"github.com/xforce-bot/backend/pkg/logger"
)

type EmployeeDirectory interface {
	// FindActiveEmployee returns (nil, nil) when no active employee
	// matches.
	FindActiveEmployee(ctx context.Context, employeeNumber int64, companyID string) (*models.Employee, error)
}

type AttendanceStore interface {
	AppendLog(ctx context.Context, employeeID, companyID string, day time.Time, entry models.LogEntry) (*models.AttendanceRecord, error)
}

type Embedder interface {
	GenerateEmbedding(ctx context.Context, text string) ([]float32, error)
}

type MemoryStore interface {
	Query(ctx context.Context, vector []float32, employeeID string, topK int) ([]milvus.Match, error)
	Upsert(ctx context.Context, vector []float32, meta milvus.EntryMetadata) (string, error)
}

type TicketStore interface {
	OpenTicket(ctx context.Context, employeeID, companyID, issueType, remark string) (int, error)
}

type Config struct {
	// SimilarityThreshold is the score above which a neighbor counts as
	// the same excuse.
	SimilarityThreshold float32
	TopK                int
}

type Engine struct {
	directory  EmployeeDirectory
	attendance AttendanceStore
	embedder   Embedder
	memory     MemoryStore
	tickets    TicketStore
	cfg        Config
}

type Request struct {
	Message        string
	EmployeeNumber int64
	CompanyID      string
	// Day is the caller-resolved reference day the log entry belongs to.
	Day time.Time
}

type Response struct {
	Action       string
	ResponseText string
	Tier         policy.Tier
	SimilarCount int
	// TicketNumber is zero when no escalation ticket was opened.
	TicketNumber int
}

func New(directory EmployeeDirectory, attendance AttendanceStore, embedder Embedder, memory MemoryStore, tickets TicketStore, cfg Config) *Engine {
	if cfg.SimilarityThreshold == 0 {
		cfg.SimilarityThreshold = 0.82
	}
	if cfg.TopK == 0 {
		cfg.TopK = 10
	}

	return &Engine{
		directory:  directory,
		attendance: attendance,
		embedder:   embedder,
		memory:     memory,
		tickets:    tickets,
		cfg:        cfg,
	}
}

// Decide runs the full decision cycle for one message. The step order is a
// correctness requirement: the log append survives any later failure, and
// the memory upsert happens only after classification so a message can
// never match itself within the same call.
func (e *Engine) Decide(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	if req.Message == "" {
		return nil, ErrEmptyMessage
	}
	if req.Day.IsZero() {
		req.Day = time.Now()
	}

	// 1. Resolve employee.
	emp, err := e.directory.FindActiveEmployee(ctx, req.EmployeeNumber, req.CompanyID)
	if err != nil {
		return nil, fmt.Errorf("employee lookup: %w", err)
	}
	if emp == nil {
		logger.Warn("Employee not found",
			zap.Int64("employee_number", req.EmployeeNumber),
			zap.String("company_id", req.CompanyID),
		)
		return nil, ErrEmployeeNotFound
	}

	// 2. Append the message to today's attendance record. The textual log
	// is the source of truth and stays committed even if semantic recall
	// fails below.
	_, err = e.attendance.AppendLog(ctx, emp.ID, req.CompanyID, req.Day, models.LogEntry{
		Time:    time.Now(),
		Kind:    models.LogKindText,
		Content: req.Message,
	})
	if err != nil {
		return nil, fmt.Errorf("append attendance log: %w", err)
	}

	// 3. Embed the message.
	vector, err := e.embedder.GenerateEmbedding(ctx, req.Message)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrEmbedding, err)
	}

	// 4. Query this employee's semantic memory.
	matches, err := e.memory.Query(ctx, vector, emp.ID, e.cfg.TopK)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVectorQuery, err)
	}

	// 5. Count neighbors above the same-excuse cutoff.
	similarCount := 0
	for _, match := range matches {
		if match.Score > e.cfg.SimilarityThreshold {
			similarCount++
		}
	}
	metrics.SimilarMatches.Observe(float64(similarCount))

	logger.Info("Semantic matches counted",
		zap.String("employee_id", emp.ID),
		zap.Int("neighbors", len(matches)),
		zap.Int("similar", similarCount),
	)

	// 6. Classify and escalate if the tier requires it.
	outcome := policy.Classify(similarCount)

	resp := &Response{
		Action:       outcome.Action,
		ResponseText: outcome.ResponseText,
		Tier:         outcome.Tier,
		SimilarCount: similarCount,
	}

	if outcome.Escalate {
		remark := escalationRemark(outcome.Tier, req.Message, similarCount)
		ticketNumber, err := e.tickets.OpenTicket(ctx, emp.ID, req.CompanyID, outcome.IssueType, remark)
		if err != nil {
			// The caller's response would imply escalation happened with
			// no ticket behind it. Surface the inconsistency.
			return nil, fmt.Errorf("%w: %v", ErrTicketCreate, err)
		}
		resp.TicketNumber = ticketNumber
		metrics.TicketsOpened.WithLabelValues(outcome.IssueType).Inc()
	}

	// 7. Only after the decision, add this message to the memory so it
	// becomes history for the next call.
	_, err = e.memory.Upsert(ctx, vector, milvus.EntryMetadata{
		EmployeeID: emp.ID,
		LoggedAt:   time.Now(),
		RawText:    req.Message,
		EntryType:  milvus.EntryTypeAttendanceLog,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrVectorUpsert, err)
	}

	metrics.DecisionsTotal.WithLabelValues(string(outcome.Tier), outcome.Action).Inc()
	metrics.DecisionDuration.Observe(time.Since(start).Seconds())

	logger.Info("Decision made",
		zap.String("employee_id", emp.ID),
		zap.String("tier", string(outcome.Tier)),
		zap.String("action", outcome.Action),
		zap.Int("similar_count", similarCount),
		zap.Int("ticket_number", resp.TicketNumber),
	)

	return resp, nil
}

func escalationRemark(tier policy.Tier, message string, similarCount int) string {
	if tier == policy.TierPersistent {
		return fmt.Sprintf("Persistent excuse pattern detected. User said: %q. Similar to %d past messages.", message, similarCount)
	}
	return fmt.Sprintf("Repeated excuse detected. User said: %q. Similar to %d past messages.", message, similarCount)
}
