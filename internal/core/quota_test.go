package core

import (
	"testing"
	"time"
)

func TestAggregateQuotas_WorstBucketWins(t *testing.T) {
	buckets := []QuotaBucket{
		{ModelID: "modelX", RemainingFraction: 0.9},
		{ModelID: "modelX", RemainingFraction: 0.3},
		{ModelID: "modelY", RemainingFraction: 0.7},
	}

	quotas, overall, reset := AggregateQuotas(buckets)

	if len(quotas) != 2 {
		t.Fatalf("expected 2 model quotas, got %d", len(quotas))
	}
	if quotas[0].ModelID != "modelX" || quotas[1].ModelID != "modelY" {
		t.Errorf("expected sorted model ids, got %q, %q", quotas[0].ModelID, quotas[1].ModelID)
	}
	if quotas[0].PercentLeft != 30 {
		t.Errorf("modelX percent = %v, want 30", quotas[0].PercentLeft)
	}
	if quotas[1].PercentLeft != 70 {
		t.Errorf("modelY percent = %v, want 70", quotas[1].PercentLeft)
	}
	if overall != 30 {
		t.Errorf("overall percent = %v, want 30", overall)
	}
	if reset != nil {
		t.Errorf("expected nil overall reset, got %v", reset)
	}
}

func TestAggregateQuotas_ResetTravelsWithWorstBucket(t *testing.T) {
	t1 := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(6 * time.Hour)

	// The lower fraction belongs to the later-resetting bucket: the emitted
	// reset must be T2, not the independently minimized T1.
	buckets := []QuotaBucket{
		{ModelID: "modelX", RemainingFraction: 0.8, ResetTime: &t1},
		{ModelID: "modelX", RemainingFraction: 0.2, ResetTime: &t2},
	}

	quotas, _, _ := AggregateQuotas(buckets)

	if len(quotas) != 1 {
		t.Fatalf("expected 1 quota, got %d", len(quotas))
	}
	if quotas[0].ResetTime == nil || !quotas[0].ResetTime.Equal(t2) {
		t.Errorf("modelX reset = %v, want %v", quotas[0].ResetTime, t2)
	}
}

func TestAggregateQuotas_OverallResetIsEarliest(t *testing.T) {
	t1 := time.Date(2026, 8, 28, 10, 0, 0, 0, time.UTC)
	t2 := t1.Add(2 * time.Hour)

	buckets := []QuotaBucket{
		{ModelID: "a", RemainingFraction: 0.5, ResetTime: &t2},
		{ModelID: "b", RemainingFraction: 0.6, ResetTime: &t1},
	}

	_, overall, reset := AggregateQuotas(buckets)

	if overall != 50 {
		t.Errorf("overall = %v, want 50", overall)
	}
	if reset == nil || !reset.Equal(t1) {
		t.Errorf("overall reset = %v, want %v", reset, t1)
	}
}

func TestAggregateQuotas_Empty(t *testing.T) {
	quotas, overall, reset := AggregateQuotas(nil)

	if len(quotas) != 0 {
		t.Errorf("expected no quotas, got %d", len(quotas))
	}
	if overall != 100 {
		t.Errorf("overall = %v, want 100", overall)
	}
	if reset != nil {
		t.Errorf("expected nil reset, got %v", reset)
	}
}
