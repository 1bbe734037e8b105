package app

import (
	"errors"
	"testing"
)

func TestNewOperation(t *testing.T) {
	tests := []struct {
		name       string
		command    string
		parameters string
	}{
		{name: "with parameters", command: "delete", parameters: "id-1"},
		{name: "empty parameters", command: "create", parameters: ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := NewOperation(tt.command, tt.parameters)

			if op.Command != tt.command {
				t.Errorf("Command = %q, want %q", op.Command, tt.command)
			}
			if op.Parameters != tt.parameters {
				t.Errorf("Parameters = %q, want %q", op.Parameters, tt.parameters)
			}
			if op.Err != nil || op.ID != 0 {
				t.Errorf("new operation = %+v", op)
			}
		})
	}
}

func TestOperation_Persisted(t *testing.T) {
	tests := []struct {
		name string
		id   int64
		want bool
	}{
		{name: "not persisted when ID is 0", id: 0, want: false},
		{name: "persisted when ID is positive", id: 1, want: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := &Operation{ID: tt.id}
			if got := op.Persisted(); got != tt.want {
				t.Errorf("Persisted() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestOperation_Record(t *testing.T) {
	op := NewOperation("create", "")
	first := errors.New("first")

	op.Record("id-1", nil)
	op.Record("", first)
	op.Record("", errors.New("second"))

	if op.SnapshotID != "id-1" {
		t.Errorf("SnapshotID = %q, want id-1", op.SnapshotID)
	}
	if op.Err != first {
		t.Errorf("Err = %v, want first failure", op.Err)
	}
}
