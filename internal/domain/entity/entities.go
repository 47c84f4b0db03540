package entity

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/ilramdhan/calc-suite/pkg/formula"
)

// Calculator is a saved user-defined formula
type Calculator struct {
	ID          uuid.UUID       `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description,omitempty"`
	Tokens      []formula.Token `json:"tokens"`
	// Variables is derived from the parsed tree on save
	Variables  []string          `json:"variables"`
	AngleMode  formula.AngleMode `json:"angle_mode"`
	Expression string            `json:"expression"`
	LaTeX      string            `json:"latex"`
	// VersionHash changes whenever the token list changes
	VersionHash string    `json:"version_hash"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// TokensJSON returns tokens as JSON bytes
func (c *Calculator) TokensJSON() ([]byte, error) {
	return json.Marshal(c.Tokens)
}

// CalculationRecord is one evaluation of a calculator, successful or not
type CalculationRecord struct {
	ID           uuid.UUID        `json:"id"`
	CalculatorID uuid.UUID        `json:"calculator_id"`
	JobID        *uuid.UUID       `json:"job_id,omitempty"`
	Bindings     formula.Bindings `json:"bindings"`
	Result       *float64         `json:"result,omitempty"`
	ErrorCode    string           `json:"error_code,omitempty"`
	ErrorMessage string           `json:"error_message,omitempty"`
	CreatedAt    time.Time        `json:"created_at"`
}

// BindingsJSON returns bindings as JSON bytes
func (r *CalculationRecord) BindingsJSON() ([]byte, error) {
	if r.Bindings == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(r.Bindings)
}

// Succeeded reports whether the evaluation produced a result
func (r *CalculationRecord) Succeeded() bool {
	return r.Result != nil
}

// JobStatus represents the status of a batch job
type JobStatus string

const (
	JobStatusPending   JobStatus = "PENDING"
	JobStatusRunning   JobStatus = "RUNNING"
	JobStatusCompleted JobStatus = "COMPLETED"
	JobStatusFailed    JobStatus = "FAILED"
	JobStatusCancelled JobStatus = "CANCELLED"
)

// Finished reports whether the status is terminal
func (s JobStatus) Finished() bool {
	return s == JobStatusCompleted || s == JobStatusFailed || s == JobStatusCancelled
}

// JobType represents the type of batch job
type JobType string

const (
	// JobTypeEvaluateBatch evaluates one calculator over many binding sets
	JobTypeEvaluateBatch JobType = "EVALUATE_BATCH"
)

// BatchJob represents a background evaluation job
type BatchJob struct {
	ID               uuid.UUID          `json:"id"`
	JobType          JobType            `json:"job_type"`
	Status           JobStatus          `json:"status"`
	CalculatorID     uuid.UUID          `json:"calculator_id"`
	Bindings         []formula.Bindings `json:"-"`
	TotalRecords     int64              `json:"total_records"`
	ProcessedRecords int64              `json:"processed_records"`
	FailedRecords    int64              `json:"failed_records"`
	ErrorMessage     string             `json:"error_message,omitempty"`
	StartedAt        *time.Time         `json:"started_at,omitempty"`
	FinishedAt       *time.Time         `json:"finished_at,omitempty"`
	CreatedAt        time.Time          `json:"created_at"`
}

// BindingsJSON returns the job input as JSON bytes
func (b *BatchJob) BindingsJSON() ([]byte, error) {
	if b.Bindings == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(b.Bindings)
}

// Progress returns the progress percentage
func (b *BatchJob) Progress() float64 {
	if b.TotalRecords == 0 {
		return 0
	}
	return float64(b.ProcessedRecords+b.FailedRecords) / float64(b.TotalRecords) * 100
}
