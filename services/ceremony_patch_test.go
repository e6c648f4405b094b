package services

import (
	"testing"
	"time"
)

func TestCeremonyPatchUpdates(t *testing.T) {
	empty := ceremonyPatch{}
	if got := empty.updates(); len(got) != 0 {
		t.Fatalf("empty patch produced updates: %v", got)
	}

	name := "Annual Film Awards"
	year := 2026
	when := time.Date(2026, 3, 15, 19, 0, 0, 0, time.UTC)
	patch := ceremonyPatch{Name: &name, Year: &year, PublishSchedule: &when}
	updates := patch.updates()

	if len(updates) != 3 {
		t.Fatalf("expected 3 updates, got %d: %v", len(updates), updates)
	}
	if updates["name"] != name {
		t.Errorf("name = %v", updates["name"])
	}
	if updates["year"] != year {
		t.Errorf("year = %v", updates["year"])
	}
	if updates["publish_schedule"] != when {
		t.Errorf("publish_schedule = %v", updates["publish_schedule"])
	}
	if _, present := updates["code"]; present {
		t.Error("absent code must stay untouched")
	}
}
