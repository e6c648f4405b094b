package services

import (
	"strings"
	"testing"

	"award-draft-system/models"
	"award-draft-system/utils"
)

func TestCanChangeStatus(t *testing.T) {
	cases := []struct {
		current models.NominationStatus
		action  string
		want    bool
	}{
		{models.NominationStatusActive, "REVOKE", true},
		{models.NominationStatusActive, "REPLACE", true},
		{models.NominationStatusActive, "RESTORE", false},
		{models.NominationStatusRevoked, "RESTORE", true},
		{models.NominationStatusRevoked, "REVOKE", false},
		{models.NominationStatusRevoked, "REPLACE", false},
		{models.NominationStatusReplaced, "RESTORE", true},
		{models.NominationStatusReplaced, "REPLACE", false},
		{models.NominationStatusActive, "DELETE", false},
	}
	for _, tc := range cases {
		if got := canChangeStatus(tc.current, tc.action); got != tc.want {
			t.Errorf("canChangeStatus(%s, %s) = %t, want %t", tc.current, tc.action, got, tc.want)
		}
	}
}

func TestValidateStatusChange(t *testing.T) {
	replacement := "nom-2"
	valid := statusChangeInput{
		Action: "REVOKE",
		Origin: "EXTERNAL",
		Impact: "CONSEQUENTIAL",
		Reason: "academy ruled the film ineligible",
	}
	if e := validateStatusChange(valid); e != nil {
		t.Fatalf("valid input rejected: %v", e)
	}

	bad := valid
	bad.Action = "OBLITERATE"
	if e := validateStatusChange(bad); e == nil || e.Code != utils.CodeValidationFailed {
		t.Error("unknown action must be rejected")
	}

	bad = valid
	bad.Origin = "somewhere"
	if e := validateStatusChange(bad); e == nil {
		t.Error("unknown origin must be rejected")
	}

	bad = valid
	bad.Impact = "HUGE"
	if e := validateStatusChange(bad); e == nil {
		t.Error("unknown impact must be rejected")
	}

	bad = valid
	bad.Reason = "   short  "
	if e := validateStatusChange(bad); e == nil {
		t.Error("reason below the minimum length must be rejected")
	}

	bad = valid
	bad.Reason = strings.Repeat("x", minStatusChangeReason)
	if e := validateStatusChange(bad); e != nil {
		t.Errorf("reason at exactly the minimum length rejected: %v", e)
	}

	bad = valid
	bad.Action = "REPLACE"
	if e := validateStatusChange(bad); e == nil {
		t.Error("REPLACE without a replacement id must be rejected")
	}
	bad.ReplacementNominationID = &replacement
	if e := validateStatusChange(bad); e != nil {
		t.Errorf("REPLACE with replacement id rejected: %v", e)
	}
}
