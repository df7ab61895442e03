package task

import "testing"

func TestTransitionTable(t *testing.T) {
	legal := []struct{ from, to Status }{
		{StatusPending, StatusStarted},
		{StatusStarted, StatusSuccess},
		{StatusStarted, StatusFailure},
	}
	for _, tc := range legal {
		if err := Transition(tc.from, tc.to); err != nil {
			t.Errorf("expected %s → %s to be legal: %v", tc.from, tc.to, err)
		}
	}

	illegal := []struct{ from, to Status }{
		{StatusPending, StatusSuccess},
		{StatusPending, StatusFailure},
		{StatusStarted, StatusPending},
		{StatusSuccess, StatusFailure},
		{StatusFailure, StatusStarted},
		{StatusSuccess, StatusStarted},
	}
	for _, tc := range illegal {
		if err := Transition(tc.from, tc.to); err == nil {
			t.Errorf("expected %s → %s to be rejected", tc.from, tc.to)
		}
	}
}

func TestStatusTerminal(t *testing.T) {
	if StatusPending.Terminal() || StatusStarted.Terminal() {
		t.Error("pending/started must not be terminal")
	}
	if !StatusSuccess.Terminal() || !StatusFailure.Terminal() {
		t.Error("success/failure must be terminal")
	}
}

func TestParamsValidate(t *testing.T) {
	valid := Params{
		Country:       "India",
		City:          "Pune",
		JobRole:       "Data Scientist",
		IncludeSkills: true,
	}
	if err := valid.Validate(); err != nil {
		t.Errorf("expected valid params, got %v", err)
	}

	missing := Params{Country: "India"}
	err := missing.Validate()
	if err == nil {
		t.Fatal("expected error for missing fields")
	}

	blank := Params{Country: "  ", City: "Pune", JobRole: "Engineer"}
	if err := blank.Validate(); err == nil {
		t.Error("expected whitespace-only country to be rejected")
	}
}
