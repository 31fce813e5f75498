package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/fairhold/escrow-arbitration-service/internal/domain"
	"github.com/fairhold/escrow-arbitration-service/internal/ports"
)

// Repositories is the in-process store used by the test suite and the
// memory runtime profile. Reads return copies, so callers mutate working
// snapshots and commit via Update.
type Repositories struct {
	Escrows     *EscrowAccountRepository
	Movements   *MovementRepository
	Projects    *ProjectRepository
	Milestones  *MilestoneRepository
	Disputes    *DisputeRepository
	Ratings     *RatingRepository
	Fees        *FeeScheduleRepository
	Idempotency *IdempotencyRepository
	EventDedup  *EventDedupRepository
	Outbox      *OutboxRepository
}

func NewRepositories() *Repositories {
	return &Repositories{
		Escrows:     &EscrowAccountRepository{rows: map[string]domain.EscrowAccount{}, byProject: map[string]string{}},
		Movements:   &MovementRepository{rows: []domain.Movement{}},
		Projects:    &ProjectRepository{rows: map[string]domain.Project{}},
		Milestones:  &MilestoneRepository{rows: map[string][]domain.Milestone{}},
		Disputes:    &DisputeRepository{rows: map[string][]domain.Dispute{}},
		Ratings:     &RatingRepository{rows: map[string]domain.RatingAggregate{}},
		Fees:        &FeeScheduleRepository{rows: map[string]domain.FeeSchedule{}},
		Idempotency: &IdempotencyRepository{rows: map[string]ports.IdempotencyRecord{}},
		EventDedup:  &EventDedupRepository{rows: map[string]eventDedupRow{}},
		Outbox:      &OutboxRepository{rows: map[string]ports.OutboxRecord{}, order: []string{}},
	}
}

type EscrowAccountRepository struct {
	mu        sync.Mutex
	rows      map[string]domain.EscrowAccount
	byProject map[string]string
}

func (r *EscrowAccountRepository) Create(_ context.Context, row domain.EscrowAccount) error {
	r.mu.Lock(); defer r.mu.Unlock()
	if _, ok := r.rows[row.EscrowID]; ok { return domain.ErrConflict }
	if _, ok := r.byProject[row.ProjectKey]; ok { return domain.ErrConflict }
	r.rows[row.EscrowID] = row.Clone(); r.byProject[row.ProjectKey] = row.EscrowID; return nil
}
func (r *EscrowAccountRepository) GetByID(_ context.Context, escrowID string) (domain.EscrowAccount, error) {
	r.mu.Lock(); defer r.mu.Unlock()
	row, ok := r.rows[strings.TrimSpace(escrowID)]; if !ok { return domain.EscrowAccount{}, domain.ErrNotFound }
	return row.Clone(), nil
}
func (r *EscrowAccountRepository) GetByProjectKey(_ context.Context, projectKey string) (domain.EscrowAccount, error) {
	r.mu.Lock(); defer r.mu.Unlock()
	id, ok := r.byProject[strings.TrimSpace(projectKey)]; if !ok { return domain.EscrowAccount{}, domain.ErrNotFound }
	return r.rows[id].Clone(), nil
}
func (r *EscrowAccountRepository) Update(_ context.Context, row domain.EscrowAccount) error {
	r.mu.Lock(); defer r.mu.Unlock()
	if _, ok := r.rows[row.EscrowID]; !ok { return domain.ErrNotFound }
	r.rows[row.EscrowID] = row.Clone(); return nil
}

type MovementRepository struct {
	mu   sync.Mutex
	rows []domain.Movement
}

func (r *MovementRepository) Append(_ context.Context, row domain.Movement) error { r.mu.Lock(); defer r.mu.Unlock(); r.rows = append(r.rows, row); return nil }
func (r *MovementRepository) ListByProjectKey(_ context.Context, projectKey string) ([]domain.Movement, error) {
	r.mu.Lock(); defer r.mu.Unlock(); key := strings.TrimSpace(projectKey); out := make([]domain.Movement, 0)
	for _, row := range r.rows { if row.ProjectKey == key { out = append(out, row) } }
	sort.Slice(out, func(i, j int) bool { return out[i].OccurredAt.Before(out[j].OccurredAt) })
	return out, nil
}

type ProjectRepository struct {
	mu   sync.Mutex
	rows map[string]domain.Project
}

func (r *ProjectRepository) Create(_ context.Context, row domain.Project) error {
	r.mu.Lock(); defer r.mu.Unlock(); if _, ok := r.rows[row.ProjectKey]; ok { return domain.ErrConflict }; r.rows[row.ProjectKey] = row; return nil
}
func (r *ProjectRepository) GetByKey(_ context.Context, projectKey string) (domain.Project, error) {
	r.mu.Lock(); defer r.mu.Unlock(); row, ok := r.rows[strings.TrimSpace(projectKey)]; if !ok { return domain.Project{}, domain.ErrNotFound }; return row, nil
}
func (r *ProjectRepository) Update(_ context.Context, row domain.Project) error {
	r.mu.Lock(); defer r.mu.Unlock(); if _, ok := r.rows[row.ProjectKey]; !ok { return domain.ErrNotFound }; r.rows[row.ProjectKey] = row; return nil
}
func (r *ProjectRepository) ListKeysByParty(_ context.Context, partyID string) ([]string, error) {
	r.mu.Lock(); defer r.mu.Unlock(); id := strings.TrimSpace(partyID); out := make([]string, 0)
	for key, row := range r.rows { if row.Client == id || row.Maker == id || row.Arbiter == id { out = append(out, key) } }
	sort.Strings(out)
	return out, nil
}

type MilestoneRepository struct {
	mu   sync.Mutex
	rows map[string][]domain.Milestone
}

func (r *MilestoneRepository) Create(_ context.Context, row domain.Milestone) error {
	r.mu.Lock(); defer r.mu.Unlock()
	for _, m := range r.rows[row.ProjectKey] { if m.Sequence == row.Sequence { return domain.ErrConflict } }
	r.rows[row.ProjectKey] = append(r.rows[row.ProjectKey], row); return nil
}
func (r *MilestoneRepository) Update(_ context.Context, row domain.Milestone) error {
	r.mu.Lock(); defer r.mu.Unlock()
	list := r.rows[row.ProjectKey]
	for i, m := range list { if m.Sequence == row.Sequence { list[i] = row; return nil } }
	return domain.ErrNotFound
}
func (r *MilestoneRepository) Get(_ context.Context, projectKey string, sequence int) (domain.Milestone, error) {
	r.mu.Lock(); defer r.mu.Unlock()
	for _, m := range r.rows[strings.TrimSpace(projectKey)] { if m.Sequence == sequence { return m, nil } }
	return domain.Milestone{}, domain.ErrNotFound
}
func (r *MilestoneRepository) GetLatest(_ context.Context, projectKey string) (domain.Milestone, error) {
	r.mu.Lock(); defer r.mu.Unlock()
	list := r.rows[strings.TrimSpace(projectKey)]
	if len(list) == 0 { return domain.Milestone{}, domain.ErrNotFound }
	latest := list[0]
	for _, m := range list[1:] { if m.Sequence > latest.Sequence { latest = m } }
	return latest, nil
}
func (r *MilestoneRepository) ListByProjectKey(_ context.Context, projectKey string) ([]domain.Milestone, error) {
	r.mu.Lock(); defer r.mu.Unlock()
	list := r.rows[strings.TrimSpace(projectKey)]
	out := append([]domain.Milestone(nil), list...)
	sort.Slice(out, func(i, j int) bool { return out[i].Sequence < out[j].Sequence })
	return out, nil
}

type DisputeRepository struct {
	mu   sync.Mutex
	rows map[string][]domain.Dispute
}

func (r *DisputeRepository) Create(_ context.Context, row domain.Dispute) error {
	r.mu.Lock(); defer r.mu.Unlock()
	for _, d := range r.rows[row.ProjectKey] { if d.DisputeID == row.DisputeID { return domain.ErrConflict } }
	r.rows[row.ProjectKey] = append(r.rows[row.ProjectKey], row); return nil
}
func (r *DisputeRepository) Update(_ context.Context, row domain.Dispute) error {
	r.mu.Lock(); defer r.mu.Unlock()
	list := r.rows[row.ProjectKey]
	for i, d := range list { if d.DisputeID == row.DisputeID { list[i] = row; return nil } }
	return domain.ErrNotFound
}
func (r *DisputeRepository) GetOpenByProjectKey(_ context.Context, projectKey string) (domain.Dispute, error) {
	r.mu.Lock(); defer r.mu.Unlock()
	for _, d := range r.rows[strings.TrimSpace(projectKey)] { if d.SettledTime == nil { return d, nil } }
	return domain.Dispute{}, domain.ErrNotFound
}
func (r *DisputeRepository) ListByProjectKey(_ context.Context, projectKey string) ([]domain.Dispute, error) {
	r.mu.Lock(); defer r.mu.Unlock()
	out := append([]domain.Dispute(nil), r.rows[strings.TrimSpace(projectKey)]...)
	sort.Slice(out, func(i, j int) bool { return out[i].StartTime.Before(out[j].StartTime) })
	return out, nil
}

type RatingRepository struct {
	mu   sync.Mutex
	rows map[string]domain.RatingAggregate
}

func (r *RatingRepository) Get(_ context.Context, partyID string) (domain.RatingAggregate, error) {
	r.mu.Lock(); defer r.mu.Unlock()
	row, ok := r.rows[strings.TrimSpace(partyID)]; if !ok { return domain.RatingAggregate{}, domain.ErrNotFound }
	return row, nil
}
func (r *RatingRepository) Apply(_ context.Context, partyID string, rating int, at time.Time) (domain.RatingAggregate, error) {
	r.mu.Lock(); defer r.mu.Unlock()
	id := strings.TrimSpace(partyID)
	row := r.rows[id]
	row.PartyID = id; row.Sum += int64(rating); row.Count++; row.UpdatedAt = at
	r.rows[id] = row
	return row, nil
}

type FeeScheduleRepository struct {
	mu   sync.Mutex
	rows map[string]domain.FeeSchedule
}

func (r *FeeScheduleRepository) Get(_ context.Context, arbiterID string) (domain.FeeSchedule, error) {
	r.mu.Lock(); defer r.mu.Unlock()
	row, ok := r.rows[strings.TrimSpace(arbiterID)]; if !ok { return domain.FeeSchedule{}, domain.ErrNotFound }
	return row, nil
}
func (r *FeeScheduleRepository) Upsert(_ context.Context, row domain.FeeSchedule) error {
	r.mu.Lock(); defer r.mu.Unlock(); r.rows[row.ArbiterID] = row; return nil
}

type IdempotencyRepository struct {
	mu   sync.Mutex
	rows map[string]ports.IdempotencyRecord
}

func (r *IdempotencyRepository) Get(_ context.Context, key string, now time.Time) (*ports.IdempotencyRecord, error) {
	r.mu.Lock(); defer r.mu.Unlock()
	row, ok := r.rows[key]; if !ok { return nil, nil }
	if now.After(row.ExpiresAt) { delete(r.rows, key); return nil, nil }
	c := row; c.ResponseBody = append([]byte(nil), row.ResponseBody...); return &c, nil
}
func (r *IdempotencyRepository) Reserve(_ context.Context, key, requestHash string, now, expiresAt time.Time) error {
	r.mu.Lock(); defer r.mu.Unlock()
	if row, ok := r.rows[key]; ok && now.Before(row.ExpiresAt) { return domain.ErrConflict }
	r.rows[key] = ports.IdempotencyRecord{Key: key, RequestHash: requestHash, ExpiresAt: expiresAt}; return nil
}
func (r *IdempotencyRepository) Complete(_ context.Context, key string, responseCode int, responseBody []byte, _ time.Time) error {
	r.mu.Lock(); defer r.mu.Unlock()
	row, ok := r.rows[key]; if !ok { return domain.ErrNotFound }
	row.ResponseCode = responseCode; row.ResponseBody = append([]byte(nil), responseBody...); r.rows[key] = row; return nil
}

type eventDedupRow struct {
	EventID   string
	EventType string
	ExpiresAt time.Time
}

type EventDedupRepository struct {
	mu   sync.Mutex
	rows map[string]eventDedupRow
}

func (r *EventDedupRepository) IsDuplicate(_ context.Context, eventID string, now time.Time) (bool, error) {
	r.mu.Lock(); defer r.mu.Unlock()
	row, ok := r.rows[eventID]; if !ok { return false, nil }
	if now.After(row.ExpiresAt) { delete(r.rows, eventID); return false, nil }
	return true, nil
}
func (r *EventDedupRepository) MarkProcessed(_ context.Context, eventID, eventType string, expiresAt time.Time) error {
	r.mu.Lock(); defer r.mu.Unlock(); r.rows[eventID] = eventDedupRow{EventID: eventID, EventType: eventType, ExpiresAt: expiresAt}; return nil
}

type OutboxRepository struct {
	mu    sync.Mutex
	rows  map[string]ports.OutboxRecord
	order []string
}

func (r *OutboxRepository) Enqueue(_ context.Context, row ports.OutboxRecord) error {
	r.mu.Lock(); defer r.mu.Unlock()
	if _, ok := r.rows[row.RecordID]; ok { return domain.ErrConflict }
	r.rows[row.RecordID] = row; r.order = append(r.order, row.RecordID); return nil
}
func (r *OutboxRepository) ListPending(_ context.Context, limit int) ([]ports.OutboxRecord, error) {
	r.mu.Lock(); defer r.mu.Unlock()
	if limit <= 0 { limit = 100 }
	out := make([]ports.OutboxRecord, 0, limit)
	for _, id := range r.order { row, ok := r.rows[id]; if !ok || row.SentAt != nil { continue }; out = append(out, row); if len(out) >= limit { break } }
	return out, nil
}
func (r *OutboxRepository) MarkSent(_ context.Context, recordID string, at time.Time) error {
	r.mu.Lock(); defer r.mu.Unlock()
	row, ok := r.rows[recordID]; if !ok { return domain.ErrNotFound }
	row.SentAt = &at; r.rows[recordID] = row; return nil
}
