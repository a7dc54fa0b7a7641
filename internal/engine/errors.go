package engine

import "errors"

var (
	// ErrEmployeeNotFound means no active employee matched the
	// (employeeNumber, companyID) pair. Nothing was mutated.
	ErrEmployeeNotFound = errors.New("employee not found")

	// ErrEmptyMessage means the incoming message had no text to act on.
	ErrEmptyMessage = errors.New("message is empty")

	// ErrEmbedding wraps embedding-provider failures. The attendance log
	// append is already committed when this is returned.
	ErrEmbedding = errors.New("embedding failed")

	// ErrVectorQuery wraps memory-store query failures. It is distinct
	// from an empty result: treating it as zero matches would classify a
	// persistent pattern as novel.
	ErrVectorQuery = errors.New("vector query failed")

	// ErrVectorUpsert wraps memory-store write failures after the
	// decision was made.
	ErrVectorUpsert = errors.New("vector upsert failed")

	// ErrTicketCreate means escalation was decided but no ticket exists.
	ErrTicketCreate = errors.New("ticket creation failed")
)
