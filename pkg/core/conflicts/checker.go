package conflicts

import (
	"fmt"
	"sort"
	"time"

	"github.com/jakechorley/shift-bridge/pkg/core/model"
)

// DefaultTurnaround is the minimum gap between two commitments before a warning is raised
const DefaultTurnaround = 60 * time.Minute

// Commitment is an existing obligation of a person, usually an approved claim
type Commitment struct {
	ClaimID    string
	ShiftID    string
	FacilityID string
	Date       string
	Start      model.TimeOfDay
	End        model.TimeOfDay
}

// Window is the candidate assignment being checked
type Window struct {
	Date  string
	Start model.TimeOfDay
	End   model.TimeOfDay
}

// WindowOf returns the window occupied by a shift
func WindowOf(s model.Shift) Window {
	return Window{Date: s.Date, Start: s.Start, End: s.End}
}

// Result splits the conflicting commitments by severity.
// Blocking commitments overlap the window; warnings are within the turnaround gap.
type Result struct {
	Blocking []Commitment
	Warnings []Commitment
}

func (r Result) HasBlocking() bool {
	return len(r.Blocking) > 0
}

// Checker detects overlap and near-overlap between a window and a person's commitments.
//
// Intervals are half-open: [s1,e1) and [s2,e2) overlap iff s1 < e2 && s2 < e1.
// A non-overlapping pair whose gap is below Turnaround is a warning. Gaps are measured
// on absolute time so commitments on neighbouring dates are compared across midnight.
type Checker struct {
	Turnaround time.Duration
}

// NewChecker creates a checker with the given turnaround threshold
func NewChecker(turnaround time.Duration) Checker {
	return Checker{Turnaround: turnaround}
}

// Check compares the window against the commitments, skipping excludeClaimID if set
func (c Checker) Check(window Window, commitments []Commitment, excludeClaimID string) (Result, error) {
	result := Result{Blocking: []Commitment{}, Warnings: []Commitment{}}

	candStart, candEnd, err := bounds(window.Date, window.Start, window.End)
	if err != nil {
		return Result{}, err
	}
	if !candStart.Before(candEnd) {
		return Result{}, model.Errorf(model.KindValidation, "window start %s must be before end %s", window.Start, window.End)
	}

	for _, cm := range commitments {
		if excludeClaimID != "" && cm.ClaimID == excludeClaimID {
			continue
		}

		start, end, err := bounds(cm.Date, cm.Start, cm.End)
		if err != nil {
			return Result{}, fmt.Errorf("failed to read commitment %s: %w", cm.ClaimID, err)
		}

		if Overlaps(candStart, candEnd, start, end) {
			result.Blocking = append(result.Blocking, cm)
			continue
		}

		if gap(candStart, candEnd, start, end) < c.Turnaround {
			result.Warnings = append(result.Warnings, cm)
		}
	}

	sortCommitments(result.Blocking)
	sortCommitments(result.Warnings)
	return result, nil
}

// Overlaps reports whether [s1,e1) and [s2,e2) intersect
func Overlaps(s1, e1, s2, e2 time.Time) bool {
	return s1.Before(e2) && s2.Before(e1)
}

// gap returns the time between two non-overlapping intervals
func gap(s1, e1, s2, e2 time.Time) time.Duration {
	if !e2.After(s1) {
		return s1.Sub(e2)
	}
	return s2.Sub(e1)
}

// Span is the number of days either side of a date whose commitments can fall within the turnaround.
// Shifts never cross midnight, so a commitment k days away is at least (k-1)*24h from the window.
func (c Checker) Span() int {
	days := int((c.Turnaround + 24*time.Hour - 1) / (24 * time.Hour))
	if days < 1 {
		return 1
	}
	return days
}

// NeighbourDates returns the date with span days either side, in ascending order
func NeighbourDates(date string, span int) ([]string, error) {
	d, err := time.Parse(model.DateLayout, date)
	if err != nil {
		return nil, model.Wrap(model.KindValidation, err, "invalid date %q", date)
	}
	dates := make([]string, 0, 2*span+1)
	for offset := -span; offset <= span; offset++ {
		dates = append(dates, d.AddDate(0, 0, offset).Format(model.DateLayout))
	}
	return dates, nil
}

func bounds(date string, start, end model.TimeOfDay) (time.Time, time.Time, error) {
	d, err := time.Parse(model.DateLayout, date)
	if err != nil {
		return time.Time{}, time.Time{}, model.Wrap(model.KindValidation, err, "invalid date %q", date)
	}
	return d.Add(start.Duration()), d.Add(end.Duration()), nil
}

func sortCommitments(cms []Commitment) {
	sort.SliceStable(cms, func(i, j int) bool {
		if cms[i].Date != cms[j].Date {
			return cms[i].Date < cms[j].Date
		}
		return cms[i].Start < cms[j].Start
	})
}
