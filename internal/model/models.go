// Package model defines the entity shapes shared by the matching and
// convocation engine. Mutation rules live in the packages that own each
// entity (matching, convocation, settlement) — this package is data only.
package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Location is a pair of WGS84 coordinates. Latitude and longitude are always
// set together; an entity without a known position carries a nil *Location,
// never a half-filled one.
type Location struct {
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}

// Worker is a professional profile as seen by the engine (read-only).
// A worker is matchable only when Available is true and Location is non-nil.
type Worker struct {
	ID             string    `json:"id"`
	Skills         []string  `json:"skills"`
	Certifications []string  `json:"certifications"`
	Location       *Location `json:"location,omitempty"`
	Available      bool      `json:"available"`
}

// HasSkill reports whether the worker lists the given skill.
func (w Worker) HasSkill(skill string) bool {
	for _, s := range w.Skills {
		if s == skill {
			return true
		}
	}
	return false
}

// JobStatus mirrors the job_status enum in PostgreSQL.
type JobStatus string

const (
	JobOpen     JobStatus = "open"
	JobMatching JobStatus = "matching"
	JobClosed   JobStatus = "closed"
)

// JobPosting is a short-term job offer created by a company. Once the job
// enters matching, everything except Status is immutable.
type JobPosting struct {
	ID            string          `json:"id"`
	CompanyID     string          `json:"companyId"`
	RequiredSkill string          `json:"requiredSkill"`
	DurationHours int             `json:"durationHours"` // 1..12
	HourlyRate    decimal.Decimal `json:"hourlyRate"`    // 10.00..100.00
	Location      Location        `json:"location"`
	Status        JobStatus       `json:"status"`
	CreatedAt     time.Time       `json:"createdAt"`
}

// ConvocationStatus mirrors the convocation_status enum in PostgreSQL.
type ConvocationStatus string

const (
	ConvocationPending   ConvocationStatus = "pending"
	ConvocationAccepted  ConvocationStatus = "accepted"
	ConvocationRejected  ConvocationStatus = "rejected"
	ConvocationExpired   ConvocationStatus = "expired"
	ConvocationStarted   ConvocationStatus = "started"
	ConvocationCompleted ConvocationStatus = "completed"
	ConvocationPaid      ConvocationStatus = "paid"
)

// Convocation is a time-bounded offer of a specific job to a specific worker.
// Exactly one convocation exists per (JobID, WorkerID) pair per matching
// round. Timestamps are write-once: they are set by the transition that owns
// them and never backdated.
type Convocation struct {
	ID                 string            `json:"id"`
	JobID              string            `json:"jobId"`
	WorkerID           string            `json:"workerId"`
	CompanyID          string            `json:"companyId"`
	Status             ConvocationStatus `json:"status"`
	OfferedAt          time.Time         `json:"offeredAt"`
	AcceptanceDeadline time.Time         `json:"acceptanceDeadline"` // OfferedAt + 1h, never extended
	StartTime          *time.Time        `json:"startTime,omitempty"`
	EndTime            *time.Time        `json:"endTime,omitempty"`
	TotalPayment       *decimal.Decimal  `json:"totalPayment,omitempty"`
}

// PaymentBreakdown is the statutory decomposition of a convocation payment.
// It is derived: recomputed from (hourlyRate, hoursWorked) and never stored
// independent of its inputs. TotalPayment is always the sum of the four
// components.
type PaymentBreakdown struct {
	BaseSalary       decimal.Decimal `json:"baseSalary"`
	VacationPay      decimal.Decimal `json:"vacationPay"`
	ThirteenthSalary decimal.Decimal `json:"thirteenthSalary"`
	DSR              decimal.Decimal `json:"dsr"` // weekly-rest compensation
	TotalPayment     decimal.Decimal `json:"totalPayment"`
}

// SettlementStep identifies one of the three external settlement actions.
type SettlementStep string

const (
	StepPayrollRegistration SettlementStep = "payroll_registration"
	StepPaymentTransfer     SettlementStep = "payment_transfer"
	StepDocumentGeneration  SettlementStep = "document_generation"
)

// SettlementSteps lists all steps in a fixed order, for deterministic
// iteration and reporting.
var SettlementSteps = []SettlementStep{
	StepPayrollRegistration,
	StepPaymentTransfer,
	StepDocumentGeneration,
}

// StepStatus is the outcome of a single settlement step.
type StepStatus string

const (
	StepPending   StepStatus = "pending"
	StepSucceeded StepStatus = "succeeded"
	StepFailed    StepStatus = "failed"
)

// StepResult records the outcome of one settlement step. Refs holds the
// external identifiers produced on success: the payroll protocol id, the
// transfer transaction id, or the generated document references.
type StepResult struct {
	Status    StepStatus `json:"status"`
	Refs      []string   `json:"refs,omitempty"`
	Error     string     `json:"error,omitempty"`
	UpdatedAt time.Time  `json:"updatedAt"`
}

// SettlementRecord tracks settlement progress for one convocation. It is
// created on the first orchestration run and updated per step; the
// convocation only reaches paid when all three steps have succeeded.
type SettlementRecord struct {
	ConvocationID string                        `json:"convocationId"`
	Steps         map[SettlementStep]StepResult `json:"steps"`
	CreatedAt     time.Time                     `json:"createdAt"`
	UpdatedAt     time.Time                     `json:"updatedAt"`
}

// AllSucceeded reports whether every settlement step has succeeded.
func (r *SettlementRecord) AllSucceeded() bool {
	for _, step := range SettlementSteps {
		if r.Steps[step].Status != StepSucceeded {
			return false
		}
	}
	return true
}

// FailedSteps returns the steps that are not in succeeded state, in the
// canonical step order.
func (r *SettlementRecord) FailedSteps() []SettlementStep {
	var failed []SettlementStep
	for _, step := range SettlementSteps {
		if r.Steps[step].Status != StepSucceeded {
			failed = append(failed, step)
		}
	}
	return failed
}

// DocumentKind enumerates the legal documents generated at settlement.
type DocumentKind string

const (
	DocContract          DocumentKind = "contract"
	DocTermOfConvocation DocumentKind = "term_of_convocation"
	DocPaymentReceipt    DocumentKind = "payment_receipt"
)

// DocumentKinds lists every document generated per settlement, in order.
var DocumentKinds = []DocumentKind{DocContract, DocTermOfConvocation, DocPaymentReceipt}
