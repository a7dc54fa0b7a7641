package models

import "time"

type AttendanceStatus string

const (
	StatusFullDay AttendanceStatus = "full-day"
	StatusHalfDay AttendanceStatus = "half-day"
	StatusLate    AttendanceStatus = "late"
	StatusOnTime  AttendanceStatus = "on-time"
	StatusAbsent  AttendanceStatus = "absent"
)

func (s AttendanceStatus) Valid() bool {
	switch s {
	case StatusFullDay, StatusHalfDay, StatusLate, StatusOnTime, StatusAbsent:
		return true
	}
	return false
}

// LogKind tags what kind of content a log entry carries.
type LogKind string

const (
	LogKindText     LogKind = "text"
	LogKindImage    LogKind = "image"
	LogKindDocument LogKind = "document"
	LogKindVideo    LogKind = "video"
)

type LogEntry struct {
	Time    time.Time
	Kind    LogKind
	Content string
}

// AttendanceRecord is the single per-employee, per-day attendance row.
// At most one exists per (employee, company, day).
type AttendanceRecord struct {
	ID         string
	EmployeeID string
	CompanyID  string
	Day        time.Time
	Status     AttendanceStatus
	Logs       []LogEntry
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

type Employee struct {
	ID             string
	EmployeeNumber int64
	CompanyID      string
	Name           string
	// ShiftStart is the scheduled check-in time as "15:04" wall clock in
	// the employee's Timezone. Empty means no scheduled reminder.
	ShiftStart string
	Timezone   string
	IsActive   bool
	CreatedAt  time.Time
}

type TicketStatus string

const (
	TicketOpen    TicketStatus = "open"
	TicketClosed  TicketStatus = "closed"
	TicketHold    TicketStatus = "hold"
	TicketReject  TicketStatus = "reject"
	TicketResolve TicketStatus = "resolve"
)

func (s TicketStatus) Valid() bool {
	switch s {
	case TicketOpen, TicketClosed, TicketHold, TicketReject, TicketResolve:
		return true
	}
	return false
}

const (
	IssueTypeTeamLead = "Team Lead Warning"
	IssueTypeManager  = "Manager Escalation"
)

type EscalationTicket struct {
	TicketNumber int
	EmployeeID   string
	CompanyID    string
	IssueType    string
	Remark       string
	Status       TicketStatus
	OpenedAt     time.Time
}
