package model

var shiftTransitions = map[ShiftStatus][]ShiftStatus{
	ShiftOpen:      {ShiftPending, ShiftCancelled},
	ShiftPending:   {ShiftApproved, ShiftOpen, ShiftCancelled},
	ShiftApproved:  {ShiftCancelled},
	ShiftCancelled: {},
}

var claimTransitions = map[ClaimStatus][]ClaimStatus{
	ClaimPending:  {ClaimApproved, ClaimDenied},
	ClaimApproved: {},
	ClaimDenied:   {},
}

// CanTransitionShift reports whether the shift transition appears in the transition table.
// A transition to the same status is never allowed.
func CanTransitionShift(from, to ShiftStatus) bool {
	for _, allowed := range shiftTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// CanTransitionClaim reports whether the claim transition appears in the transition table
func CanTransitionClaim(from, to ClaimStatus) bool {
	for _, allowed := range claimTransitions[from] {
		if allowed == to {
			return true
		}
	}
	return false
}

// TransitionShift moves the shift to the target status or returns a StaleState error
func TransitionShift(s *Shift, to ShiftStatus) error {
	if !CanTransitionShift(s.Status, to) {
		return Errorf(KindStaleState, "shift %s cannot move from %s to %s", s.ID, s.Status, to)
	}
	s.Status = to
	return nil
}

// TransitionClaim moves the claim to the target status or returns a StaleState error
func TransitionClaim(c *Claim, to ClaimStatus) error {
	if !CanTransitionClaim(c.Status, to) {
		return Errorf(KindStaleState, "claim %s cannot move from %s to %s", c.ID, c.Status, to)
	}
	c.Status = to
	return nil
}

// IsTerminal reports whether no further transitions are possible from the shift status
func (s ShiftStatus) IsTerminal() bool {
	return len(shiftTransitions[s]) == 0
}

func (s ShiftStatus) String() string { return string(s) }

func (s ClaimStatus) String() string { return string(s) }

func (v Visibility) String() string { return string(v) }
