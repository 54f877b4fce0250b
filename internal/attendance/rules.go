package attendance

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/your-org/rollcall/internal/models"
	"github.com/your-org/rollcall/internal/observability"
)

// EventContext carries the per-event signals alert conditions can test.
type EventContext struct {
	Recognized bool
	Status     models.AttendanceStatus
	Quality    float32
	Expression float32
	FaceCount  int
	Liveness   bool
	TimeOfDay  string // "15:04", compared as a string
}

// RuleEngine evaluates the configured alert rules against attendance
// events. Evaluation is pure; side effects happen in Dispatch.
type RuleEngine struct {
	mu    sync.RWMutex
	rules []models.AlertRule
}

func NewRuleEngine() *RuleEngine {
	return &RuleEngine{}
}

// SetRules replaces the rule set, e.g. after loading from the store.
func (e *RuleEngine) SetRules(rules []models.AlertRule) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.rules = append(e.rules[:0], rules...)
}

// Upsert adds or replaces one rule at runtime.
func (e *RuleEngine) Upsert(rule models.AlertRule) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.rules {
		if e.rules[i].ID == rule.ID {
			e.rules[i] = rule
			return
		}
	}
	e.rules = append(e.rules, rule)
}

// Delete removes one rule.
func (e *RuleEngine) Delete(id uuid.UUID) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.rules {
		if e.rules[i].ID == id {
			e.rules = append(e.rules[:i], e.rules[i+1:]...)
			return
		}
	}
}

// Toggle flips a rule's enabled flag. Returns false if the rule is unknown.
func (e *RuleEngine) Toggle(id uuid.UUID, enabled bool) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for i := range e.rules {
		if e.rules[i].ID == id {
			e.rules[i].Enabled = enabled
			return true
		}
	}
	return false
}

// Evaluate returns the triggered alerts for one event, sorted by priority
// (critical first). A rule triggers only when every condition holds; a
// rule with no conditions never triggers, so a half-built rule saved
// from the dashboard stays inert until its author adds a condition.
func (e *RuleEngine) Evaluate(event *models.AttendanceEvent, ctx EventContext) []models.TriggeredAlert {
	e.mu.RLock()
	defer e.mu.RUnlock()

	var triggered []models.TriggeredAlert
	for _, rule := range e.rules {
		if !rule.Enabled {
			continue
		}
		if !conditionsHold(rule.Conditions, ctx) {
			continue
		}
		triggered = append(triggered, models.TriggeredAlert{
			RuleID:   rule.ID,
			RuleName: rule.Name,
			Priority: rule.Priority,
			Actions:  rule.Actions,
			EventID:  event.ID,
			Message:  fmt.Sprintf("%s: %s at %s", rule.Name, ctx.Status, ctx.TimeOfDay),
		})
		observability.AlertsTriggered.WithLabelValues(string(rule.Priority)).Inc()
	}

	sort.SliceStable(triggered, func(a, b int) bool {
		return triggered[a].Priority.Rank() < triggered[b].Priority.Rank()
	})
	return triggered
}

func conditionsHold(conditions []models.AlertCondition, ctx EventContext) bool {
	for _, c := range conditions {
		if !conditionHolds(c, ctx) {
			return false
		}
	}
	return len(conditions) > 0
}

func conditionHolds(c models.AlertCondition, ctx EventContext) bool {
	actual, numeric, isNum := fieldValue(c.Field, ctx)

	switch c.Comparator {
	case models.CompareEquals:
		return strings.EqualFold(actual, c.Value)
	case models.CompareContains:
		return strings.Contains(strings.ToLower(actual), strings.ToLower(c.Value))
	case models.CompareGreaterThan:
		if c.Field == "time_of_day" {
			return actual > c.Value
		}
		want, err := strconv.ParseFloat(c.Value, 64)
		return isNum && err == nil && numeric > want
	case models.CompareLessThan:
		if c.Field == "time_of_day" {
			return actual < c.Value
		}
		want, err := strconv.ParseFloat(c.Value, 64)
		return isNum && err == nil && numeric < want
	case models.CompareBetween:
		if c.Field == "time_of_day" {
			return actual >= c.Value && actual <= c.UpperValue
		}
		lo, errLo := strconv.ParseFloat(c.Value, 64)
		hi, errHi := strconv.ParseFloat(c.UpperValue, 64)
		return isNum && errLo == nil && errHi == nil && numeric >= lo && numeric <= hi
	}
	return false
}

// fieldValue resolves a condition field to its string form and, when
// meaningful, a numeric form.
func fieldValue(field string, ctx EventContext) (string, float64, bool) {
	switch field {
	case "time_of_day":
		return ctx.TimeOfDay, 0, false
	case "recognized":
		return strconv.FormatBool(ctx.Recognized), 0, false
	case "status":
		return string(ctx.Status), 0, false
	case "quality":
		return fmt.Sprintf("%.2f", ctx.Quality), float64(ctx.Quality), true
	case "expression":
		return fmt.Sprintf("%.2f", ctx.Expression), float64(ctx.Expression), true
	case "face_count":
		return strconv.Itoa(ctx.FaceCount), float64(ctx.FaceCount), true
	case "liveness":
		return strconv.FormatBool(ctx.Liveness), 0, false
	}
	return "", 0, false
}
