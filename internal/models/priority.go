package models

import (
	"encoding/json"
	"strings"
)

type Priority string

const (
	PriorityLow    Priority = "low"
	PriorityMedium Priority = "medium"
	PriorityHigh   Priority = "high"
)

// ParsePriority is lenient: absent or unknown values become medium.
func ParsePriority(s string) Priority {
	p := Priority(strings.ToLower(strings.TrimSpace(s)))
	if p.Valid() {
		return p
	}
	return PriorityMedium
}

func (p Priority) Valid() bool {
	switch p {
	case PriorityLow, PriorityMedium, PriorityHigh:
		return true
	}
	return false
}

// Badge is the display label; values outside the enum render as "unset".
func (p Priority) Badge() string {
	if !p.Valid() {
		return "unset"
	}
	return string(p)
}

func (p *Priority) UnmarshalJSON(b []byte) error {
	var s *string
	if err := json.Unmarshal(b, &s); err != nil {
		return err
	}
	if s == nil {
		*p = PriorityMedium
		return nil
	}
	*p = ParsePriority(*s)
	return nil
}
