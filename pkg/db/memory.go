package db

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jakechorley/shift-bridge/pkg/core/conflicts"
	"github.com/jakechorley/shift-bridge/pkg/core/model"
)

type memoryState struct {
	shifts        map[string]model.Shift
	claims        map[string]model.Claim
	releaseMarks  map[string]time.Time
	reminderMarks map[string]time.Time
}

func newMemoryState() memoryState {
	return memoryState{
		shifts:        map[string]model.Shift{},
		claims:        map[string]model.Claim{},
		releaseMarks:  map[string]time.Time{},
		reminderMarks: map[string]time.Time{},
	}
}

func (s memoryState) clone() memoryState {
	c := memoryState{
		shifts:        make(map[string]model.Shift, len(s.shifts)),
		claims:        make(map[string]model.Claim, len(s.claims)),
		releaseMarks:  make(map[string]time.Time, len(s.releaseMarks)),
		reminderMarks: make(map[string]time.Time, len(s.reminderMarks)),
	}
	for k, v := range s.shifts {
		c.shifts[k] = cloneShift(v)
	}
	for k, v := range s.claims {
		c.claims[k] = v
	}
	for k, v := range s.releaseMarks {
		c.releaseMarks[k] = v
	}
	for k, v := range s.reminderMarks {
		c.reminderMarks[k] = v
	}
	return c
}

func cloneShift(s model.Shift) model.Shift {
	if s.ReleaseAt != nil {
		r := *s.ReleaseAt
		s.ReleaseAt = &r
	}
	return s
}

// MemoryStore is an in-memory Store. Transactions run one at a time against a copy of the
// state which replaces the live state only when the transaction function succeeds.
type MemoryStore struct {
	mu    sync.RWMutex
	state memoryState
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{state: newMemoryState()}
}

// WithTx runs fn against a private copy of the state and commits it if fn succeeds
func (m *MemoryStore) WithTx(ctx context.Context, fn func(tx Tx) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	working := m.state.clone()
	if err := fn(&memoryTx{state: working}); err != nil {
		return err
	}
	m.state = working
	return nil
}

func (m *MemoryStore) GetShift(ctx context.Context, shiftID string) (model.Shift, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return getShift(m.state, shiftID)
}

func (m *MemoryStore) ListShifts(ctx context.Context, filter ShiftFilter) ([]model.Shift, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	role := strings.ToLower(filter.Role)
	shifts := []model.Shift{}
	for _, s := range m.state.shifts {
		if filter.FacilityID != "" && s.FacilityID != filter.FacilityID {
			continue
		}
		if filter.Status != "" && s.Status != filter.Status {
			continue
		}
		if filter.FromDate != "" && s.Date < filter.FromDate {
			continue
		}
		if filter.ToDate != "" && s.Date > filter.ToDate {
			continue
		}
		if role != "" && !strings.Contains(strings.ToLower(s.Role), role) {
			continue
		}
		shifts = append(shifts, cloneShift(s))
	}
	SortShifts(shifts)
	return shifts, nil
}

func (m *MemoryStore) ListClaimsByShift(ctx context.Context, shiftID string) ([]model.Claim, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return claimsByShift(m.state, shiftID), nil
}

func (m *MemoryStore) ListClaimsByPerson(ctx context.Context, personID string) ([]model.Claim, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	claims := []model.Claim{}
	for _, c := range m.state.claims {
		if c.PersonID == personID {
			claims = append(claims, c)
		}
	}
	sort.SliceStable(claims, func(i, j int) bool {
		if !claims[i].ClaimedAt.Equal(claims[j].ClaimedAt) {
			return claims[i].ClaimedAt.After(claims[j].ClaimedAt)
		}
		return claims[i].ID < claims[j].ID
	})
	return claims, nil
}

// SortShifts orders shifts by date, then start time, then ID
func SortShifts(shifts []model.Shift) {
	sort.SliceStable(shifts, func(i, j int) bool {
		if shifts[i].Date != shifts[j].Date {
			return shifts[i].Date < shifts[j].Date
		}
		if shifts[i].Start != shifts[j].Start {
			return shifts[i].Start < shifts[j].Start
		}
		return shifts[i].ID < shifts[j].ID
	})
}

func getShift(state memoryState, shiftID string) (model.Shift, error) {
	s, ok := state.shifts[shiftID]
	if !ok {
		return model.Shift{}, model.Errorf(model.KindNotFound, "shift %s not found", shiftID)
	}
	return cloneShift(s), nil
}

func claimsByShift(state memoryState, shiftID string) []model.Claim {
	claims := []model.Claim{}
	for _, c := range state.claims {
		if c.ShiftID == shiftID {
			claims = append(claims, c)
		}
	}
	sort.SliceStable(claims, func(i, j int) bool {
		if !claims[i].ClaimedAt.Equal(claims[j].ClaimedAt) {
			return claims[i].ClaimedAt.Before(claims[j].ClaimedAt)
		}
		return claims[i].ID < claims[j].ID
	})
	return claims
}

type memoryTx struct {
	state memoryState
}

func (t *memoryTx) GetShiftForUpdate(ctx context.Context, shiftID string) (model.Shift, error) {
	return getShift(t.state, shiftID)
}

func (t *memoryTx) InsertShift(ctx context.Context, shift model.Shift) error {
	if _, exists := t.state.shifts[shift.ID]; exists {
		return model.Errorf(model.KindConflict, "shift %s already exists", shift.ID)
	}
	t.state.shifts[shift.ID] = cloneShift(shift)
	return nil
}

func (t *memoryTx) UpdateShift(ctx context.Context, shift model.Shift) error {
	if _, exists := t.state.shifts[shift.ID]; !exists {
		return model.Errorf(model.KindNotFound, "shift %s not found", shift.ID)
	}
	t.state.shifts[shift.ID] = cloneShift(shift)
	return nil
}

func (t *memoryTx) GetClaim(ctx context.Context, claimID string) (model.Claim, error) {
	c, ok := t.state.claims[claimID]
	if !ok {
		return model.Claim{}, model.Errorf(model.KindNotFound, "claim %s not found", claimID)
	}
	return c, nil
}

func (t *memoryTx) InsertClaim(ctx context.Context, claim model.Claim) error {
	for _, c := range t.state.claims {
		if c.ShiftID == claim.ShiftID && c.PersonID == claim.PersonID {
			return model.Errorf(model.KindConflict, "person %s already claimed shift %s", claim.PersonID, claim.ShiftID)
		}
	}
	if _, exists := t.state.claims[claim.ID]; exists {
		return model.Errorf(model.KindConflict, "claim %s already exists", claim.ID)
	}
	t.state.claims[claim.ID] = claim
	return nil
}

func (t *memoryTx) UpdateClaim(ctx context.Context, claim model.Claim) error {
	if _, exists := t.state.claims[claim.ID]; !exists {
		return model.Errorf(model.KindNotFound, "claim %s not found", claim.ID)
	}
	if claim.Status == model.ClaimApproved {
		for _, other := range t.state.claims {
			if other.ID != claim.ID && other.ShiftID == claim.ShiftID && other.Status == model.ClaimApproved {
				return model.Errorf(model.KindStaleState, "shift %s already has approved claim %s", claim.ShiftID, other.ID)
			}
		}
	}
	t.state.claims[claim.ID] = claim
	return nil
}

func (t *memoryTx) ListClaimsByShift(ctx context.Context, shiftID string) ([]model.Claim, error) {
	return claimsByShift(t.state, shiftID), nil
}

func (t *memoryTx) ListCommitments(ctx context.Context, personID string, dates []string, statuses []model.ClaimStatus) ([]conflicts.Commitment, error) {
	wantDate := make(map[string]bool, len(dates))
	for _, d := range dates {
		wantDate[d] = true
	}
	wantStatus := make(map[model.ClaimStatus]bool, len(statuses))
	for _, s := range statuses {
		wantStatus[s] = true
	}

	commitments := []conflicts.Commitment{}
	for _, c := range t.state.claims {
		if c.PersonID != personID || !wantStatus[c.Status] {
			continue
		}
		s, ok := t.state.shifts[c.ShiftID]
		if !ok || s.Status == model.ShiftCancelled || !wantDate[s.Date] {
			continue
		}
		commitments = append(commitments, conflicts.Commitment{
			ClaimID:    c.ID,
			ShiftID:    s.ID,
			FacilityID: s.FacilityID,
			Date:       s.Date,
			Start:      s.Start,
			End:        s.End,
		})
	}
	return commitments, nil
}

func (t *memoryTx) ListDueTieredShifts(ctx context.Context, now time.Time) ([]model.Shift, error) {
	due := []model.Shift{}
	for _, s := range t.state.shifts {
		if s.Visibility != model.VisibilityTiered || s.ReleaseAt == nil || s.ReleaseAt.After(now) {
			continue
		}
		if mark, ok := t.state.releaseMarks[s.ID]; ok && !mark.Before(*s.ReleaseAt) {
			continue
		}
		due = append(due, cloneShift(s))
	}
	SortShifts(due)
	return due, nil
}

func (t *memoryTx) MarkReleaseEvaluated(ctx context.Context, shiftID string, at time.Time) error {
	if mark, ok := t.state.releaseMarks[shiftID]; ok && mark.After(at) {
		return nil
	}
	t.state.releaseMarks[shiftID] = at.UTC()
	return nil
}

func (t *memoryTx) ListUnremindedOpenShifts(ctx context.Context, fromDate, toDate string) ([]model.Shift, error) {
	shifts := []model.Shift{}
	for _, s := range t.state.shifts {
		if s.Status != model.ShiftOpen || s.Date < fromDate || s.Date > toDate {
			continue
		}
		if _, reminded := t.state.reminderMarks[s.ID]; reminded {
			continue
		}
		shifts = append(shifts, cloneShift(s))
	}
	SortShifts(shifts)
	return shifts, nil
}

func (t *memoryTx) MarkReminderSent(ctx context.Context, shiftID string, at time.Time) error {
	if _, exists := t.state.reminderMarks[shiftID]; exists {
		return nil
	}
	t.state.reminderMarks[shiftID] = at.UTC()
	return nil
}
