package contracts

type SuccessResponse struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
	Data    any    `json:"data,omitempty"`
}

type ErrorPayload struct {
	Code      string `json:"code"`
	Message   string `json:"message"`
	RequestID string `json:"request_id,omitempty"`
}

type ErrorResponse struct {
	Status string       `json:"status"`
	Error  ErrorPayload `json:"error"`
}

type StartProjectRequest struct {
	AgreementID                 string `json:"agreement_id"`
	Client                      string `json:"client"`
	Maker                       string `json:"maker"`
	Arbiter                     string `json:"arbiter"`
	MakerSignature              string `json:"maker_signature"`
	MilestonesCount             int    `json:"milestones_count"`
	MilestoneStartWindowSeconds int64  `json:"milestone_start_window_seconds"`
	FeedbackWindowSeconds       int64  `json:"feedback_window_seconds"`
	Encrypted                   bool   `json:"encrypted"`
}

type TerminateProjectRequest struct {
	ProjectKey string `json:"project_key"`
}

type RateRequest struct {
	ProjectKey string `json:"project_key"`
	Rating     int    `json:"rating"`
}

type ProjectResponse struct {
	ProjectKey      string `json:"project_key"`
	Client          string `json:"client"`
	Maker           string `json:"maker"`
	Arbiter         string `json:"arbiter"`
	EscrowID        string `json:"escrow_id"`
	MilestonesCount int    `json:"milestones_count"`
	StartTime       string `json:"start_time"`
	EndTime         string `json:"end_time,omitempty"`
	ClientRating    int    `json:"client_rating,omitempty"`
	MakerRating     int    `json:"maker_rating,omitempty"`
	ArbiterFixedFee int64  `json:"arbiter_fixed_fee"`
	ArbiterShareFee int    `json:"arbiter_share_fee"`
	Encrypted       bool   `json:"encrypted"`
}

type DepositRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type WithdrawRequest struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type EscrowBalanceResponse struct {
	ProjectKey string           `json:"project_key"`
	EscrowID   string           `json:"escrow_id"`
	Owner      string           `json:"owner"`
	Operator   string           `json:"operator"`
	Available  map[string]int64 `json:"available"`
	Blocked    map[string]int64 `json:"blocked"`
	Allowance  map[string]int64 `json:"allowance,omitempty"`
}

type MovementResponse struct {
	MovementID string `json:"movement_id"`
	Kind       string `json:"kind"`
	Sender     string `json:"sender"`
	Target     string `json:"target,omitempty"`
	Amount     int64  `json:"amount"`
	Currency   string `json:"currency"`
	OccurredAt string `json:"occurred_at"`
}

type StartMilestoneRequest struct {
	ProjectKey      string `json:"project_key"`
	DepositAmount   int64  `json:"deposit_amount"`
	Currency        string `json:"currency"`
	DurationSeconds int64  `json:"duration_seconds"`
}

type MilestoneKeyRequest struct {
	ProjectKey string `json:"project_key"`
}

type AdjustMilestoneRequest struct {
	ProjectKey      string `json:"project_key"`
	DurationSeconds int64  `json:"duration_seconds"`
}

type MilestoneResponse struct {
	ProjectKey       string `json:"project_key"`
	Sequence         int    `json:"sequence"`
	DepositAmount    int64  `json:"deposit_amount"`
	Currency         string `json:"currency"`
	DurationSeconds  int64  `json:"duration_seconds"`
	AdjustedSeconds  int64  `json:"adjusted_duration_seconds,omitempty"`
	Status           string `json:"status"`
	StartTime        string `json:"start_time"`
	DeliveryTime     string `json:"delivery_time,omitempty"`
	FundsBlocked     bool   `json:"funds_blocked"`
	ProjectCompleted bool   `json:"project_completed,omitempty"`
}

type StartDisputeRequest struct {
	ProjectKey              string `json:"project_key"`
	Respondent              string `json:"respondent"`
	RespondentShareProposal *int   `json:"respondent_share_proposal,omitempty"`
}

type DisputeKeyRequest struct {
	ProjectKey string `json:"project_key"`
}

type SettleDisputeRequest struct {
	ProjectKey      string `json:"project_key"`
	RespondentShare int    `json:"respondent_share"`
	InitiatorShare  int    `json:"initiator_share"`
}

type DisputeResponse struct {
	DisputeID               string `json:"dispute_id"`
	ProjectKey              string `json:"project_key"`
	Initiator               string `json:"initiator"`
	Respondent              string `json:"respondent"`
	RespondentShareProposal *int   `json:"respondent_share_proposal,omitempty"`
	StartTime               string `json:"start_time"`
	ReplyDeadline           string `json:"reply_deadline"`
	SettledTime             string `json:"settled_time,omitempty"`
	RespondentShare         int    `json:"respondent_share,omitempty"`
	InitiatorShare          int    `json:"initiator_share,omitempty"`
}

type UpsertFeeScheduleRequest struct {
	FixedFee        int64 `json:"fixed_fee"`
	ShareFeePercent int   `json:"share_fee_percent"`
}

type FeeScheduleResponse struct {
	ArbiterID       string `json:"arbiter_id"`
	FixedFee        int64  `json:"fixed_fee"`
	ShareFeePercent int    `json:"share_fee_percent"`
}

type PartyRatingResponse struct {
	PartyID string  `json:"party_id"`
	Sum     int64   `json:"sum"`
	Count   int64   `json:"count"`
	Average float64 `json:"average"`
}

type ComponentResolveResponse struct {
	Component string `json:"component"`
	Address   string `json:"address"`
}

type PartyProjectsResponse struct {
	PartyID     string   `json:"party_id"`
	ProjectKeys []string `json:"project_keys"`
}
