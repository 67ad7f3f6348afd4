package asset

import (
	"errors"
	"testing"

	"nftmarket/native/common"
)

func TestValidateTransitionTable(t *testing.T) {
	cases := []struct {
		from, to Status
		ok       bool
	}{
		{StatusPending, StatusMinted, true},
		{StatusPending, StatusBurned, true},
		{StatusPending, StatusTransferred, false},
		{StatusPending, StatusLocked, false},
		{StatusMinted, StatusTransferred, true},
		{StatusMinted, StatusLocked, true},
		{StatusMinted, StatusBurned, true},
		{StatusMinted, StatusPending, false},
		{StatusTransferred, StatusLocked, true},
		{StatusTransferred, StatusBurned, true},
		{StatusTransferred, StatusMinted, false},
		{StatusLocked, StatusMinted, true},
		{StatusLocked, StatusBurned, true},
		{StatusLocked, StatusTransferred, false},
		{StatusBurned, StatusMinted, false},
		{StatusBurned, StatusPending, false},
	}
	for _, tc := range cases {
		err := ValidateTransition(tc.from, tc.to)
		if tc.ok && err != nil {
			t.Errorf("%s -> %s: unexpected error %v", tc.from, tc.to, err)
		}
		if !tc.ok && !errors.Is(err, common.ErrInvalidState) {
			t.Errorf("%s -> %s: want invalid state, got %v", tc.from, tc.to, err)
		}
	}
}

func TestValidateTransitionSelf(t *testing.T) {
	if err := ValidateTransition(StatusTransferred, StatusTransferred); err != nil {
		t.Fatalf("resale self-transition should be allowed: %v", err)
	}
	for _, s := range []Status{StatusPending, StatusMinted, StatusLocked, StatusBurned} {
		if err := ValidateTransition(s, s); !errors.Is(err, common.ErrInvalidState) {
			t.Errorf("%s -> %s: want invalid state, got %v", s, s, err)
		}
	}
}

func TestValidateTransitionUnknownStatus(t *testing.T) {
	if err := ValidateTransition(Status("SHINY"), StatusMinted); !errors.Is(err, common.ErrValidation) {
		t.Fatalf("unknown current: want validation error, got %v", err)
	}
	if err := ValidateTransition(StatusMinted, Status("SHINY")); !errors.Is(err, common.ErrValidation) {
		t.Fatalf("unknown target: want validation error, got %v", err)
	}
}
