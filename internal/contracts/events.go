package contracts

import (
	"encoding/json"
	"time"
)

type EventEnvelope struct {
	EventID          string          `json:"event_id"`
	EventType        string          `json:"event_type"`
	EventClass       string          `json:"event_class,omitempty"`
	OccurredAt       time.Time       `json:"occurred_at"`
	PartitionKeyPath string          `json:"partition_key_path"`
	PartitionKey     string          `json:"partition_key"`
	SourceService    string          `json:"source_service"`
	TraceID          string          `json:"trace_id"`
	SchemaVersion    string          `json:"schema_version"`
	Data             json.RawMessage `json:"data"`
}

type ProjectCreatedPayload struct {
	ProjectKey      string `json:"project_key"`
	Client          string `json:"client"`
	Maker           string `json:"maker"`
	Arbiter         string `json:"arbiter"`
	EscrowID        string `json:"escrow_id"`
	MilestonesCount int    `json:"milestones_count"`
	StartedAt       string `json:"started_at"`
}

type ProjectEndedPayload struct {
	ProjectKey string `json:"project_key"`
	EndedBy    string `json:"ended_by"`
	Reason     string `json:"reason,omitempty"`
	EndedAt    string `json:"ended_at"`
}

type MilestonePayload struct {
	ProjectKey    string `json:"project_key"`
	Sequence      int    `json:"sequence"`
	DepositAmount int64  `json:"deposit_amount"`
	Currency      string `json:"currency"`
	OccurredAt    string `json:"occurred_at"`
}

type EscrowMovementPayload struct {
	ProjectKey string `json:"project_key"`
	EscrowID   string `json:"escrow_id"`
	Kind       string `json:"kind"`
	Sender     string `json:"sender"`
	Target     string `json:"target,omitempty"`
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
	OccurredAt string `json:"occurred_at"`
}

type DisputePayload struct {
	ProjectKey      string `json:"project_key"`
	DisputeID       string `json:"dispute_id"`
	Initiator       string `json:"initiator"`
	Respondent      string `json:"respondent"`
	RespondentShare int    `json:"respondent_share,omitempty"`
	InitiatorShare  int    `json:"initiator_share,omitempty"`
	OccurredAt      string `json:"occurred_at"`
}

type PaymentConfirmedPayload struct {
	ProjectKey string `json:"project_key"`
	Payer      string `json:"payer"`
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
}

type DLQRecord struct {
	OriginalEvent EventEnvelope `json:"original_event"`
	ErrorSummary  string        `json:"error_summary"`
	RetryCount    int           `json:"retry_count"`
	FirstSeenAt   time.Time     `json:"first_seen_at"`
	LastErrorAt   time.Time     `json:"last_error_at"`
	SourceTopic   string        `json:"source_topic,omitempty"`
	DLQTopic      string        `json:"dlq_topic,omitempty"`
	TraceID       string        `json:"trace_id,omitempty"`
}
