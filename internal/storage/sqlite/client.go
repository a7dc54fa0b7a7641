package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"math/rand"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"
	"go.uber.org/zap"

	"github.com/xforce-bot/backend/internal/storage/models"
	"github.com/xforce-bot/backend/pkg/logger"
)

// dayLayout is the canonical key for the one-record-per-day invariant.
const dayLayout = "2006-01-02"

type Client struct {
	db *sql.DB
}

func NewClient(dbPath string) (*Client, error) {
	db, err := sql.Open("sqlite3", dbPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("failed to enable foreign keys: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
	}

	logger.Info("SQLite client initialized", zap.String("path", dbPath))

	return &Client{db: db}, nil
}

func (c *Client) Close() error {
	return c.db.Close()
}

func (c *Client) InitSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS employees (
		id TEXT PRIMARY KEY,
		employee_number INTEGER NOT NULL,
		company_id TEXT NOT NULL,
		name TEXT NOT NULL DEFAULT '',
		shift_start TEXT NOT NULL DEFAULT '',
		timezone TEXT NOT NULL DEFAULT '',
		is_active INTEGER NOT NULL DEFAULT 1,
		created_at INTEGER NOT NULL,
		UNIQUE(employee_number, company_id)
	);
	CREATE INDEX IF NOT EXISTS idx_employees_company ON employees(company_id);

	CREATE TABLE IF NOT EXISTS attendance (
		id TEXT PRIMARY KEY,
		employee_id TEXT NOT NULL,
		company_id TEXT NOT NULL,
		day TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'absent',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL,
		UNIQUE(employee_id, company_id, day)
	);
	CREATE INDEX IF NOT EXISTS idx_attendance_company_day ON attendance(company_id, day);

	CREATE TABLE IF NOT EXISTS attendance_logs (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		attendance_id TEXT NOT NULL,
		logged_at INTEGER NOT NULL,
		kind TEXT NOT NULL DEFAULT 'text',
		content TEXT NOT NULL,
		FOREIGN KEY (attendance_id) REFERENCES attendance(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_logs_attendance ON attendance_logs(attendance_id);

	CREATE TABLE IF NOT EXISTS tickets (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		ticket_number INTEGER NOT NULL,
		employee_id TEXT NOT NULL,
		company_id TEXT NOT NULL,
		issue_type TEXT NOT NULL,
		remark TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'open',
		opened_at INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_tickets_company_status ON tickets(company_id, status);
	CREATE INDEX IF NOT EXISTS idx_tickets_number ON tickets(ticket_number);
	`

	if _, err := c.db.Exec(schema); err != nil {
		return fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Info("SQLite schema initialized")
	return nil
}

func (c *Client) UpsertEmployee(ctx context.Context, emp *models.Employee) error {
	if emp.ID == "" {
		emp.ID = uuid.New().String()
	}
	if emp.CreatedAt.IsZero() {
		emp.CreatedAt = time.Now()
	}

	query := `
		INSERT INTO employees (id, employee_number, company_id, name, shift_start, timezone, is_active, created_at)
		VALUES (?, ?, ?, ?, ?, ?, 1, ?)
		ON CONFLICT(employee_number, company_id) DO UPDATE SET
			name = excluded.name,
			shift_start = excluded.shift_start,
			timezone = excluded.timezone,
			is_active = 1
	`

	_, err := c.db.ExecContext(ctx, query,
		emp.ID,
		emp.EmployeeNumber,
		emp.CompanyID,
		emp.Name,
		emp.ShiftStart,
		emp.Timezone,
		emp.CreatedAt.Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to upsert employee: %w", err)
	}

	logger.Debug("Employee upserted",
		zap.Int64("employee_number", emp.EmployeeNumber),
		zap.String("company_id", emp.CompanyID),
	)
	return nil
}

// FindActiveEmployee returns (nil, nil) when no active employee matches the
// (number, company) pair.
func (c *Client) FindActiveEmployee(ctx context.Context, employeeNumber int64, companyID string) (*models.Employee, error) {
	query := `
		SELECT id, employee_number, company_id, name, shift_start, timezone, is_active, created_at
		FROM employees
		WHERE employee_number = ? AND company_id = ? AND is_active = 1
	`

	var emp models.Employee
	var isActive int
	var createdAt int64

	err := c.db.QueryRowContext(ctx, query, employeeNumber, companyID).Scan(
		&emp.ID,
		&emp.EmployeeNumber,
		&emp.CompanyID,
		&emp.Name,
		&emp.ShiftStart,
		&emp.Timezone,
		&isActive,
		&createdAt,
	)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find employee: %w", err)
	}

	emp.IsActive = isActive == 1
	emp.CreatedAt = time.Unix(createdAt, 0)
	return &emp, nil
}

func (c *Client) ListActiveEmployees(ctx context.Context) ([]models.Employee, error) {
	query := `
		SELECT id, employee_number, company_id, name, shift_start, timezone, created_at
		FROM employees
		WHERE is_active = 1
	`

	rows, err := c.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list employees: %w", err)
	}
	defer rows.Close()

	var employees []models.Employee
	for rows.Next() {
		var emp models.Employee
		var createdAt int64
		if err := rows.Scan(&emp.ID, &emp.EmployeeNumber, &emp.CompanyID, &emp.Name, &emp.ShiftStart, &emp.Timezone, &createdAt); err != nil {
			return nil, fmt.Errorf("failed to scan employee: %w", err)
		}
		emp.IsActive = true
		emp.CreatedAt = time.Unix(createdAt, 0)
		employees = append(employees, emp)
	}

	return employees, rows.Err()
}

func (c *Client) DeactivateEmployee(ctx context.Context, employeeNumber int64, companyID string) error {
	_, err := c.db.ExecContext(ctx,
		`UPDATE employees SET is_active = 0 WHERE employee_number = ? AND company_id = ?`,
		employeeNumber, companyID,
	)
	if err != nil {
		return fmt.Errorf("failed to deactivate employee: %w", err)
	}
	return nil
}

// AppendLog adds a log entry to the employee's record for the given
// reference day, creating the record with status "absent" if it does not
// exist yet. The record's status is never changed here.
func (c *Client) AppendLog(ctx context.Context, employeeID, companyID string, day time.Time, entry models.LogEntry) (*models.AttendanceRecord, error) {
	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	recordID, err := lookupOrCreateRecord(ctx, tx, employeeID, companyID, day)
	if err != nil {
		return nil, err
	}

	if entry.Time.IsZero() {
		entry.Time = time.Now()
	}
	if entry.Kind == "" {
		entry.Kind = models.LogKindText
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO attendance_logs (attendance_id, logged_at, kind, content) VALUES (?, ?, ?, ?)`,
		recordID, entry.Time.Unix(), string(entry.Kind), entry.Content,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to append log: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE attendance SET updated_at = ? WHERE id = ?`,
		time.Now().Unix(), recordID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to touch attendance record: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	return c.getRecord(ctx, recordID)
}

// SetStatus overwrites the status of the employee's record for the given
// reference day, creating the record first if needed.
func (c *Client) SetStatus(ctx context.Context, employeeID, companyID string, day time.Time, status models.AttendanceStatus) (*models.AttendanceRecord, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("invalid attendance status %q", status)
	}

	tx, err := c.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	recordID, err := lookupOrCreateRecord(ctx, tx, employeeID, companyID, day)
	if err != nil {
		return nil, err
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE attendance SET status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().Unix(), recordID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to set status: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit: %w", err)
	}

	return c.getRecord(ctx, recordID)
}

func lookupOrCreateRecord(ctx context.Context, tx *sql.Tx, employeeID, companyID string, day time.Time) (string, error) {
	dayKey := day.Format(dayLayout)

	var recordID string
	err := tx.QueryRowContext(ctx,
		`SELECT id FROM attendance WHERE employee_id = ? AND company_id = ? AND day = ?`,
		employeeID, companyID, dayKey,
	).Scan(&recordID)

	if err == sql.ErrNoRows {
		recordID = uuid.New().String()
		now := time.Now().Unix()
		_, err = tx.ExecContext(ctx,
			`INSERT INTO attendance (id, employee_id, company_id, day, status, created_at, updated_at)
			 VALUES (?, ?, ?, ?, ?, ?, ?)`,
			recordID, employeeID, companyID, dayKey, string(models.StatusAbsent), now, now,
		)
		if err != nil {
			return "", fmt.Errorf("failed to create attendance record: %w", err)
		}
		return recordID, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to look up attendance record: %w", err)
	}

	return recordID, nil
}

func (c *Client) HasRecordForDay(ctx context.Context, employeeID, companyID string, day time.Time) (bool, error) {
	var one int
	err := c.db.QueryRowContext(ctx,
		`SELECT 1 FROM attendance WHERE employee_id = ? AND company_id = ? AND day = ?`,
		employeeID, companyID, day.Format(dayLayout),
	).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("failed to check attendance record: %w", err)
	}
	return true, nil
}

// GetAttendanceHistory returns up to limit records for the employee,
// most recent day first, with their log entries.
func (c *Client) GetAttendanceHistory(ctx context.Context, employeeID, companyID string, limit int) ([]models.AttendanceRecord, error) {
	if limit <= 0 {
		limit = 5
	}

	rows, err := c.db.QueryContext(ctx,
		`SELECT id, employee_id, company_id, day, status, created_at, updated_at
		 FROM attendance
		 WHERE employee_id = ? AND company_id = ?
		 ORDER BY day DESC
		 LIMIT ?`,
		employeeID, companyID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get attendance history: %w", err)
	}
	defer rows.Close()

	records, err := scanRecords(rows)
	if err != nil {
		return nil, err
	}

	for i := range records {
		logs, err := c.getLogs(ctx, records[i].ID)
		if err != nil {
			return nil, err
		}
		records[i].Logs = logs
	}

	return records, nil
}

// FindAttendanceByRange returns all company records whose day falls in
// [from, to], most recent day first.
func (c *Client) FindAttendanceByRange(ctx context.Context, companyID string, from, to time.Time) ([]models.AttendanceRecord, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT id, employee_id, company_id, day, status, created_at, updated_at
		 FROM attendance
		 WHERE company_id = ? AND day >= ? AND day <= ?
		 ORDER BY day DESC`,
		companyID, from.Format(dayLayout), to.Format(dayLayout),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query attendance range: %w", err)
	}
	defer rows.Close()

	return scanRecords(rows)
}

func (c *Client) getRecord(ctx context.Context, recordID string) (*models.AttendanceRecord, error) {
	var rec models.AttendanceRecord
	var dayKey string
	var createdAt, updatedAt int64
	var status string

	err := c.db.QueryRowContext(ctx,
		`SELECT id, employee_id, company_id, day, status, created_at, updated_at FROM attendance WHERE id = ?`,
		recordID,
	).Scan(&rec.ID, &rec.EmployeeID, &rec.CompanyID, &dayKey, &status, &createdAt, &updatedAt)
	if err != nil {
		return nil, fmt.Errorf("failed to get attendance record: %w", err)
	}

	rec.Day, _ = time.Parse(dayLayout, dayKey)
	rec.Status = models.AttendanceStatus(status)
	rec.CreatedAt = time.Unix(createdAt, 0)
	rec.UpdatedAt = time.Unix(updatedAt, 0)

	logs, err := c.getLogs(ctx, recordID)
	if err != nil {
		return nil, err
	}
	rec.Logs = logs

	return &rec, nil
}

func (c *Client) getLogs(ctx context.Context, recordID string) ([]models.LogEntry, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT logged_at, kind, content FROM attendance_logs WHERE attendance_id = ? ORDER BY logged_at, id`,
		recordID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to get log entries: %w", err)
	}
	defer rows.Close()

	var logs []models.LogEntry
	for rows.Next() {
		var entry models.LogEntry
		var loggedAt int64
		var kind string
		if err := rows.Scan(&loggedAt, &kind, &entry.Content); err != nil {
			return nil, fmt.Errorf("failed to scan log entry: %w", err)
		}
		entry.Time = time.Unix(loggedAt, 0)
		entry.Kind = models.LogKind(kind)
		logs = append(logs, entry)
	}

	return logs, rows.Err()
}

func scanRecords(rows *sql.Rows) ([]models.AttendanceRecord, error) {
	var records []models.AttendanceRecord
	for rows.Next() {
		var rec models.AttendanceRecord
		var dayKey, status string
		var createdAt, updatedAt int64
		if err := rows.Scan(&rec.ID, &rec.EmployeeID, &rec.CompanyID, &dayKey, &status, &createdAt, &updatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan attendance record: %w", err)
		}
		rec.Day, _ = time.Parse(dayLayout, dayKey)
		rec.Status = models.AttendanceStatus(status)
		rec.CreatedAt = time.Unix(createdAt, 0)
		rec.UpdatedAt = time.Unix(updatedAt, 0)
		records = append(records, rec)
	}
	return records, rows.Err()
}

// OpenTicket creates an escalation ticket and returns its number. Numbers
// are drawn from a five-digit range per call and are not checked for
// uniqueness across tickets.
func (c *Client) OpenTicket(ctx context.Context, employeeID, companyID, issueType, remark string) (int, error) {
	ticketNumber := rand.Intn(90000) + 10000

	_, err := c.db.ExecContext(ctx,
		`INSERT INTO tickets (ticket_number, employee_id, company_id, issue_type, remark, status, opened_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ticketNumber, employeeID, companyID, issueType, remark, string(models.TicketOpen), time.Now().Unix(),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to open ticket: %w", err)
	}

	logger.Info("Escalation ticket opened",
		zap.Int("ticket_number", ticketNumber),
		zap.String("employee_id", employeeID),
		zap.String("issue_type", issueType),
	)

	return ticketNumber, nil
}

func (c *Client) UpdateTicketStatus(ctx context.Context, ticketNumber int, employeeID string, status models.TicketStatus) error {
	if !status.Valid() {
		return fmt.Errorf("invalid ticket status %q", status)
	}

	res, err := c.db.ExecContext(ctx,
		`UPDATE tickets SET status = ? WHERE ticket_number = ? AND employee_id = ?`,
		string(status), ticketNumber, employeeID,
	)
	if err != nil {
		return fmt.Errorf("failed to update ticket status: %w", err)
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("no ticket %d for employee %s", ticketNumber, employeeID)
	}

	return nil
}

// ListActiveTickets returns the company's tickets still awaiting action
// (open or on hold), most recent first.
func (c *Client) ListActiveTickets(ctx context.Context, companyID string) ([]models.EscalationTicket, error) {
	rows, err := c.db.QueryContext(ctx,
		`SELECT ticket_number, employee_id, company_id, issue_type, remark, status, opened_at
		 FROM tickets
		 WHERE company_id = ? AND status IN (?, ?)
		 ORDER BY opened_at DESC, id DESC`,
		companyID, string(models.TicketOpen), string(models.TicketHold),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list tickets: %w", err)
	}
	defer rows.Close()

	var tickets []models.EscalationTicket
	for rows.Next() {
		var t models.EscalationTicket
		var status string
		var openedAt int64
		if err := rows.Scan(&t.TicketNumber, &t.EmployeeID, &t.CompanyID, &t.IssueType, &t.Remark, &status, &openedAt); err != nil {
			return nil, fmt.Errorf("failed to scan ticket: %w", err)
		}
		t.Status = models.TicketStatus(status)
		t.OpenedAt = time.Unix(openedAt, 0)
		tickets = append(tickets, t)
	}

	return tickets, rows.Err()
}
