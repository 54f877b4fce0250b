package attendance

import (
	"testing"

	"github.com/google/uuid"

	"github.com/your-org/rollcall/internal/models"
)

func rule(name string, priority models.AlertPriority, conditions ...models.AlertCondition) models.AlertRule {
	return models.AlertRule{
		ID:         uuid.New(),
		Name:       name,
		Enabled:    true,
		Priority:   priority,
		Conditions: conditions,
		Actions:    []models.AlertAction{models.ActionToast},
	}
}

func testEvent() *models.AttendanceEvent {
	return &models.AttendanceEvent{ID: uuid.New(), Status: models.StatusLate}
}

func TestRuleEngineEvaluate(t *testing.T) {
	lateCtx := EventContext{
		Recognized: true,
		Status:     models.StatusLate,
		Quality:    0.8,
		FaceCount:  1,
		Liveness:   true,
		TimeOfDay:  "09:15",
	}

	tests := []struct {
		name string
		rule models.AlertRule
		ctx  EventContext
		want bool
	}{
		{
			"status equals",
			rule("late arrival", models.PriorityMedium,
				models.AlertCondition{Field: "status", Comparator: models.CompareEquals, Value: "late"}),
			lateCtx, true,
		},
		{
			"status equals is case-insensitive",
			rule("late arrival", models.PriorityMedium,
				models.AlertCondition{Field: "status", Comparator: models.CompareEquals, Value: "LATE"}),
			lateCtx, true,
		},
		{
			"time of day after",
			rule("after cutoff", models.PriorityLow,
				models.AlertCondition{Field: "time_of_day", Comparator: models.CompareGreaterThan, Value: "09:00"}),
			lateCtx, true,
		},
		{
			"time of day before does not fire",
			rule("early birds", models.PriorityLow,
				models.AlertCondition{Field: "time_of_day", Comparator: models.CompareLessThan, Value: "09:00"}),
			lateCtx, false,
		},
		{
			"time of day between",
			rule("first period", models.PriorityLow,
				models.AlertCondition{Field: "time_of_day", Comparator: models.CompareBetween, Value: "09:00", UpperValue: "10:00"}),
			lateCtx, true,
		},
		{
			"low quality",
			rule("blurry capture", models.PriorityHigh,
				models.AlertCondition{Field: "quality", Comparator: models.CompareLessThan, Value: "0.5"}),
			EventContext{Quality: 0.3, TimeOfDay: "09:15"}, true,
		},
		{
			"unrecognized face",
			rule("unknown person", models.PriorityCritical,
				models.AlertCondition{Field: "recognized", Comparator: models.CompareEquals, Value: "false"}),
			EventContext{Recognized: false, TimeOfDay: "09:15"}, true,
		},
		{
			"crowded frame",
			rule("crowding", models.PriorityMedium,
				models.AlertCondition{Field: "face_count", Comparator: models.CompareGreaterThan, Value: "30"}),
			EventContext{FaceCount: 42, TimeOfDay: "09:15"}, true,
		},
		{
			"all conditions must hold",
			rule("late and unknown", models.PriorityHigh,
				models.AlertCondition{Field: "status", Comparator: models.CompareEquals, Value: "late"},
				models.AlertCondition{Field: "recognized", Comparator: models.CompareEquals, Value: "false"}),
			lateCtx, false, // recognized, so the second condition fails
		},
		{
			"no conditions never fires",
			rule("vacuous", models.PriorityLow),
			lateCtx, false,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			e := NewRuleEngine()
			e.SetRules([]models.AlertRule{tc.rule})

			triggered := e.Evaluate(testEvent(), tc.ctx)
			if got := len(triggered) == 1; got != tc.want {
				t.Errorf("triggered = %d rules; want fired=%v", len(triggered), tc.want)
			}
		})
	}
}

func TestRuleEngineDisabledRuleSkipped(t *testing.T) {
	r := rule("late arrival", models.PriorityMedium,
		models.AlertCondition{Field: "status", Comparator: models.CompareEquals, Value: "late"})
	r.Enabled = false

	e := NewRuleEngine()
	e.SetRules([]models.AlertRule{r})

	if triggered := e.Evaluate(testEvent(), EventContext{Status: models.StatusLate}); len(triggered) != 0 {
		t.Errorf("disabled rule fired: %+v", triggered)
	}
}

func TestRuleEnginePriorityOrdering(t *testing.T) {
	cond := models.AlertCondition{Field: "status", Comparator: models.CompareEquals, Value: "late"}

	e := NewRuleEngine()
	e.SetRules([]models.AlertRule{
		rule("low", models.PriorityLow, cond),
		rule("critical", models.PriorityCritical, cond),
		rule("medium", models.PriorityMedium, cond),
		rule("high", models.PriorityHigh, cond),
	})

	triggered := e.Evaluate(testEvent(), EventContext{Status: models.StatusLate, TimeOfDay: "09:15"})
	if len(triggered) != 4 {
		t.Fatalf("triggered = %d; want 4", len(triggered))
	}

	wantOrder := []models.AlertPriority{
		models.PriorityCritical, models.PriorityHigh, models.PriorityMedium, models.PriorityLow,
	}
	for i, want := range wantOrder {
		if triggered[i].Priority != want {
			t.Errorf("triggered[%d].Priority = %s; want %s", i, triggered[i].Priority, want)
		}
	}
}

func TestRuleEngineToggle(t *testing.T) {
	r := rule("late arrival", models.PriorityMedium,
		models.AlertCondition{Field: "status", Comparator: models.CompareEquals, Value: "late"})

	e := NewRuleEngine()
	e.SetRules([]models.AlertRule{r})

	if !e.Toggle(r.ID, false) {
		t.Fatal("Toggle returned false for a known rule")
	}
	if triggered := e.Evaluate(testEvent(), EventContext{Status: models.StatusLate}); len(triggered) != 0 {
		t.Error("toggled-off rule still fires")
	}

	if e.Toggle(uuid.New(), true) {
		t.Error("Toggle returned true for an unknown rule")
	}
}

func TestRuleEngineUpsertAndDelete(t *testing.T) {
	r := rule("late arrival", models.PriorityMedium,
		models.AlertCondition{Field: "status", Comparator: models.CompareEquals, Value: "late"})
	ctx := EventContext{Status: models.StatusLate, TimeOfDay: "09:15"}

	e := NewRuleEngine()
	e.Upsert(r)
	if triggered := e.Evaluate(testEvent(), ctx); len(triggered) != 1 {
		t.Fatalf("after Upsert: triggered = %d; want 1", len(triggered))
	}

	// Replacing the same id must not duplicate the rule.
	r.Name = "late arrival v2"
	e.Upsert(r)
	triggered := e.Evaluate(testEvent(), ctx)
	if len(triggered) != 1 {
		t.Fatalf("after second Upsert: triggered = %d; want 1", len(triggered))
	}
	if triggered[0].RuleName != "late arrival v2" {
		t.Errorf("RuleName = %s; want updated name", triggered[0].RuleName)
	}

	e.Delete(r.ID)
	if triggered := e.Evaluate(testEvent(), ctx); len(triggered) != 0 {
		t.Error("deleted rule still fires")
	}
}
