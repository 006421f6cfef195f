package logfields

import (
	"errors"
	"log/slog"
	"testing"
)

// TestHelperKeyNames verifies string-based helper key/value stability.
func TestHelperKeyNames(t *testing.T) {
	cases := []struct {
		name    string
		attrKey string
		attrVal string
		attr    slog.Attr
	}{
		{"Operation", KeyOperation, "create_task", Operation("create_task")},
		{"Slot", KeySlot, "slot1", Slot("slot1")},
		{"Depositor", KeyDepositor, "dep", Depositor("dep")},
		{"Recipient", KeyRecipient, "rec", Recipient("rec")},
		{"ProgramID", KeyProgramID, "prog", ProgramID("prog")},
		{"Driver", KeyDriver, "sqlite", Driver("sqlite")},
		{"EventType", KeyEventType, "TaskCreated", EventType("TaskCreated")},
		{"EventID", KeyEventID, "e1", EventID("e1")},
		{"Subject", KeySubject, "s", Subject("s")},
		{"RequestID", KeyRequestID, "rid", RequestID("rid")},
		{"Method", KeyMethod, "GET", Method("GET")},
		{"Path", KeyPath, "/v1/tasks", Path("/v1/tasks")},
		{"Addr", KeyAddr, ":8080", Addr(":8080")},
	}

	for _, tc := range cases {
		if tc.attr.Key != tc.attrKey {
			// Key drift would break log ingestion schemas.
			t.Fatalf("%s: expected key %s, got %s", tc.name, tc.attrKey, tc.attr.Key)
		}
		if tc.attr.Value.String() != tc.attrVal {
			t.Fatalf("%s: expected value %s, got %s", tc.name, tc.attrVal, tc.attr.Value.String())
		}
	}
}

func TestNumericHelpers(t *testing.T) {
	if a := Amount(1000); a.Key != KeyAmount || a.Value.Uint64() != 1000 {
		t.Fatalf("unexpected amount attr %v", a)
	}
	if a := Completed(true); a.Key != KeyCompleted || !a.Value.Bool() {
		t.Fatalf("unexpected completed attr %v", a)
	}
	if a := Status(409); a.Value.Int64() != 409 {
		t.Fatalf("unexpected status attr %v", a)
	}
	if a := Attempt(3); a.Key != KeyAttempt || a.Value.Int64() != 3 {
		t.Fatalf("unexpected attempt attr %v", a)
	}
}

func TestErrorHelper(t *testing.T) {
	if a := Error(nil); a.Value.String() != "" {
		t.Fatalf("expected empty error value, got %q", a.Value.String())
	}
	if a := Error(errors.New("boom")); a.Value.String() != "boom" {
		t.Fatalf("expected boom, got %q", a.Value.String())
	}
}
