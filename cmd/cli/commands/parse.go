package commands

import (
	"fmt"
	"time"

	"github.com/jakechorley/shift-bridge/pkg/core/model"
)

func parseDate(s string) (string, error) {
	d, err := time.Parse(model.DateLayout, s)
	if err != nil {
		return "", fmt.Errorf("date must be YYYY-MM-DD, got: %s", s)
	}
	return d.Format(model.DateLayout), nil
}

func parseDay(s string) (time.Time, error) {
	d, err := time.Parse(model.DateLayout, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("date must be YYYY-MM-DD, got: %s", s)
	}
	return d, nil
}

func parseTimeRange(start, end string) (model.TimeOfDay, model.TimeOfDay, error) {
	s, err := model.ParseTimeOfDay(start)
	if err != nil {
		return 0, 0, err
	}
	e, err := model.ParseTimeOfDay(end)
	if err != nil {
		return 0, 0, err
	}
	return s, e, nil
}

// parseInstant accepts RFC3339 or "YYYY-MM-DD HH:MM" in UTC
func parseInstant(s string) (time.Time, error) {
	if t, err := time.Parse(time.RFC3339, s); err == nil {
		return t.UTC(), nil
	}
	if t, err := time.Parse("2006-01-02 15:04", s); err == nil {
		return t, nil
	}
	return time.Time{}, fmt.Errorf("time must be RFC3339 or 'YYYY-MM-DD HH:MM', got: %s", s)
}

func parseVisibility(s string) (model.Visibility, error) {
	v := model.Visibility(s)
	if !v.IsValid() {
		return "", fmt.Errorf("visibility must be internal, agency, all or tiered, got: %s", s)
	}
	return v, nil
}

func parseShiftStatus(s string) (model.ShiftStatus, error) {
	st := model.ShiftStatus(s)
	if !st.IsValid() {
		return "", fmt.Errorf("status must be open, pending, approved or cancelled, got: %s", s)
	}
	return st, nil
}
