package models

import (
	"time"

	"github.com/google/uuid"
)

type AlertPriority string

const (
	PriorityCritical AlertPriority = "critical"
	PriorityHigh     AlertPriority = "high"
	PriorityMedium   AlertPriority = "medium"
	PriorityLow      AlertPriority = "low"
)

// Rank orders priorities for sorting; lower rank fires first.
func (p AlertPriority) Rank() int {
	switch p {
	case PriorityCritical:
		return 0
	case PriorityHigh:
		return 1
	case PriorityMedium:
		return 2
	default:
		return 3
	}
}

type AlertComparator string

const (
	CompareEquals      AlertComparator = "equals"
	CompareGreaterThan AlertComparator = "greater_than"
	CompareLessThan    AlertComparator = "less_than"
	CompareContains    AlertComparator = "contains"
	CompareBetween     AlertComparator = "between"
)

// AlertCondition is one predicate over an attendance event and its
// evaluation context. All conditions on a rule must hold (logical AND).
type AlertCondition struct {
	Field      string          `json:"field"` // time_of_day, recognized, status, quality, expression, face_count, liveness
	Comparator AlertComparator `json:"comparator"`
	Value      string          `json:"value"`
	UpperValue string          `json:"upper_value,omitempty"` // for "between"
}

type AlertAction string

const (
	ActionToast     AlertAction = "toast"
	ActionLog       AlertAction = "log"
	ActionSound     AlertAction = "sound"
	ActionHighlight AlertAction = "highlight"
	ActionEmail     AlertAction = "email"
)

// AlertRule is data, not code: rules are created and toggled at runtime.
type AlertRule struct {
	ID         uuid.UUID        `json:"id" db:"id"`
	Name       string           `json:"name" db:"name"`
	Enabled    bool             `json:"enabled" db:"enabled"`
	Priority   AlertPriority    `json:"priority" db:"priority"`
	Conditions []AlertCondition `json:"conditions" db:"conditions"`
	Actions    []AlertAction    `json:"actions" db:"actions"`
	CreatedAt  time.Time        `json:"created_at" db:"created_at"`
	UpdatedAt  time.Time        `json:"updated_at" db:"updated_at"`
}

// TriggeredAlert is the outcome of evaluating one rule against one event.
type TriggeredAlert struct {
	RuleID   uuid.UUID     `json:"rule_id"`
	RuleName string        `json:"rule_name"`
	Priority AlertPriority `json:"priority"`
	Actions  []AlertAction `json:"actions"`
	EventID  uuid.UUID     `json:"event_id"`
	Message  string        `json:"message"`
}
