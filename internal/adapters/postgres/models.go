package postgres

import "time"

type escrowAccountModel struct {
	EscrowID    string    `gorm:"column:escrow_id;primaryKey"`
	ProjectKey  string    `gorm:"column:project_key;uniqueIndex"`
	Owner       string    `gorm:"column:owner"`
	Operator    string    `gorm:"column:operator"`
	Initialized bool      `gorm:"column:initialized"`
	Available   string    `gorm:"column:available;type:jsonb"`
	Blocked     string    `gorm:"column:blocked;type:jsonb"`
	Allowances  string    `gorm:"column:allowances;type:jsonb"`
	CreatedAt   time.Time `gorm:"column:created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
}

func (escrowAccountModel) TableName() string { return "escrow_accounts" }

type movementModel struct {
	MovementID string    `gorm:"column:movement_id;primaryKey"`
	EscrowID   string    `gorm:"column:escrow_id"`
	ProjectKey string    `gorm:"column:project_key"`
	Kind       string    `gorm:"column:kind"`
	Sender     string    `gorm:"column:sender"`
	Target     string    `gorm:"column:target"`
	Amount     int64     `gorm:"column:amount"`
	Currency   string    `gorm:"column:currency"`
	OccurredAt time.Time `gorm:"column:occurred_at"`
}

func (movementModel) TableName() string { return "escrow_movements" }

type projectModel struct {
	ProjectKey           string     `gorm:"column:project_key;primaryKey"`
	Client               string     `gorm:"column:client"`
	Maker                string     `gorm:"column:maker"`
	Arbiter              string     `gorm:"column:arbiter"`
	EscrowID             string     `gorm:"column:escrow_id"`
	StartTime            time.Time  `gorm:"column:start_time"`
	EndTime              *time.Time `gorm:"column:end_time"`
	MilestoneStartWindow int64      `gorm:"column:milestone_start_window_ns"`
	FeedbackWindow       int64      `gorm:"column:feedback_window_ns"`
	MilestonesCount      int        `gorm:"column:milestones_count"`
	ClientRating         int        `gorm:"column:client_rating"`
	MakerRating          int        `gorm:"column:maker_rating"`
	ArbiterFixedFee      int64      `gorm:"column:arbiter_fixed_fee"`
	ArbiterShareFee      int        `gorm:"column:arbiter_share_fee"`
	Encrypted            bool       `gorm:"column:encrypted"`
	CreatedAt            time.Time  `gorm:"column:created_at"`
	UpdatedAt            time.Time  `gorm:"column:updated_at"`
}

func (projectModel) TableName() string { return "projects" }

type milestoneModel struct {
	ProjectKey       string     `gorm:"column:project_key;primaryKey"`
	Sequence         int        `gorm:"column:sequence;primaryKey"`
	DepositAmount    int64      `gorm:"column:deposit_amount"`
	Currency         string     `gorm:"column:currency"`
	Duration         int64      `gorm:"column:duration_ns"`
	AdjustedDuration int64      `gorm:"column:adjusted_duration_ns"`
	StartTime        time.Time  `gorm:"column:start_time"`
	DeliveryTime     *time.Time `gorm:"column:delivery_time"`
	Status           string     `gorm:"column:status"`
	FundsBlocked     bool       `gorm:"column:funds_blocked"`
	UpdatedAt        time.Time  `gorm:"column:updated_at"`
}

func (milestoneModel) TableName() string { return "milestones" }

type disputeModel struct {
	DisputeID               string     `gorm:"column:dispute_id;primaryKey"`
	ProjectKey              string     `gorm:"column:project_key;index"`
	Initiator               string     `gorm:"column:initiator"`
	Respondent              string     `gorm:"column:respondent"`
	RespondentShareProposal int        `gorm:"column:respondent_share_proposal"`
	StartTime               time.Time  `gorm:"column:start_time"`
	ReplyDeadline           time.Time  `gorm:"column:reply_deadline"`
	SettledTime             *time.Time `gorm:"column:settled_time"`
	RespondentShare         int        `gorm:"column:respondent_share"`
	InitiatorShare          int        `gorm:"column:initiator_share"`
	UpdatedAt               time.Time  `gorm:"column:updated_at"`
}

func (disputeModel) TableName() string { return "disputes" }

type ratingAggregateModel struct {
	PartyID   string    `gorm:"column:party_id;primaryKey"`
	Sum       int64     `gorm:"column:rating_sum"`
	Count     int64     `gorm:"column:rating_count"`
	UpdatedAt time.Time `gorm:"column:updated_at"`
}

func (ratingAggregateModel) TableName() string { return "rating_aggregates" }

type feeScheduleModel struct {
	ArbiterID       string    `gorm:"column:arbiter_id;primaryKey"`
	FixedFee        int64     `gorm:"column:fixed_fee"`
	ShareFeePercent int       `gorm:"column:share_fee_percent"`
	UpdatedAt       time.Time `gorm:"column:updated_at"`
}

func (feeScheduleModel) TableName() string { return "fee_schedules" }

type idempotencyModel struct {
	IdempotencyKey string    `gorm:"column:idempotency_key;primaryKey"`
	RequestHash    string    `gorm:"column:request_hash"`
	ResponseCode   int       `gorm:"column:response_code"`
	ResponseBody   []byte    `gorm:"column:response_body"`
	ExpiresAt      time.Time `gorm:"column:expires_at"`
}

func (idempotencyModel) TableName() string { return "idempotency_keys" }

type eventDedupModel struct {
	EventID   string    `gorm:"column:event_id;primaryKey"`
	EventType string    `gorm:"column:event_type"`
	ExpiresAt time.Time `gorm:"column:expires_at"`
}

func (eventDedupModel) TableName() string { return "event_dedup" }

type outboxModel struct {
	RecordID   string     `gorm:"column:record_id;primaryKey"`
	EventClass string     `gorm:"column:event_class"`
	Envelope   string     `gorm:"column:envelope;type:jsonb"`
	CreatedAt  time.Time  `gorm:"column:created_at"`
	SentAt     *time.Time `gorm:"column:sent_at"`
}

func (outboxModel) TableName() string { return "outbox_events" }
