package services

import (
	"errors"

	"github.com/MaximeEsteves/backend-lesmidena/models"
)

var (
	// ErrSignatureInvalid is returned when a webhook delivery cannot be authenticated.
	ErrSignatureInvalid = errors.New("webhook signature invalid")
	// ErrMalformedEvent is returned for an authenticated checkout event whose
	// object is not a usable checkout session.
	ErrMalformedEvent = errors.New("malformed checkout event")
)

// Pipeline stage names, used in results, logs and span names.
const (
	StageVerify       = "verify_signature"
	StageDeduplicate  = "deduplicate"
	StageAssemble     = "assemble_order"
	StagePersist      = "persist_order"
	StageInventory    = "adjust_inventory"
	StagePublish      = "publish_order_event"
	StageNotifyClient = "notify_customer"
	StageNotifyAdmin  = "notify_operator"
)

type StageStatus string

const (
	StageOK      StageStatus = "ok"
	StageSkipped StageStatus = "skipped"
	StageFailed  StageStatus = "failed"
)

// StageResult records how one pipeline stage ended. Err is set only for StageFailed.
type StageResult struct {
	Stage  string
	Status StageStatus
	Detail string
	Err    error
}

func stageOK(stage, detail string) StageResult {
	return StageResult{Stage: stage, Status: StageOK, Detail: detail}
}

func stageSkipped(stage, detail string) StageResult {
	return StageResult{Stage: stage, Status: StageSkipped, Detail: detail}
}

func stageFailed(stage string, err error) StageResult {
	return StageResult{Stage: stage, Status: StageFailed, Detail: err.Error(), Err: err}
}

type Outcome string

const (
	OutcomeFulfilled Outcome = "fulfilled"
	OutcomeDuplicate Outcome = "duplicate"
	OutcomeIgnored   Outcome = "ignored"
)

// ProcessResult is what one webhook delivery produced.
type ProcessResult struct {
	Outcome   Outcome
	EventID   string
	EventType string
	SessionID string
	Order     *models.Order
	Warnings  []AssemblyWarning
	Stages    []StageResult
}

// Stage returns the result recorded for the named stage, if any.
func (r *ProcessResult) Stage(name string) (StageResult, bool) {
	for _, s := range r.Stages {
		if s.Stage == name {
			return s, true
		}
	}
	return StageResult{}, false
}
