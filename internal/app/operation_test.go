package app

import (
	"errors"
	"testing"
)

func TestNewOperation(t *testing.T) {
	tests := []struct {
		name       string
		operation  string
		parameters string
	}{
		{
			name:       "with parameters",
			operation:  "JoinGroup",
			parameters: "group_id=3",
		},
		{
			name:       "empty parameters",
			operation:  "SetUser",
			parameters: "",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			op := NewOperation(tt.operation, tt.parameters)

			if op.Name != tt.operation {
				t.Errorf("Name = %q, want %q", op.Name, tt.operation)
			}
			if op.Parameters != tt.parameters {
				t.Errorf("Parameters = %q, want %q", op.Parameters, tt.parameters)
			}
			if op.Status != StatusSuccess {
				t.Errorf("Status = %q, want %q", op.Status, StatusSuccess)
			}
			if op.ID != 0 {
				t.Errorf("ID = %d, want 0", op.ID)
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
		{name: "persisted when ID is large", id: 99999, want: true},
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

func TestOperation_Fail(t *testing.T) {
	op := NewOperation("LeaveGroup", "")

	op.Fail(nil)
	if op.Status != StatusSuccess {
		t.Errorf("Status after Fail(nil) = %q, want %q", op.Status, StatusSuccess)
	}

	op.Fail(errors.New("leaving group 2: rejected"))
	if op.Status != StatusError || op.Detail != "leaving group 2: rejected" {
		t.Errorf("after Fail() = %+v, want error status with detail", op)
	}
}

func TestParams(t *testing.T) {
	tests := []struct {
		kv   []any
		want string
	}{
		{kv: nil, want: ""},
		{kv: []any{"group_id", int64(3)}, want: "group_id=3"},
		{kv: []any{"name", "Algo Study", "course_code", "CMPUT204"}, want: "name=Algo Study course_code=CMPUT204"},
		{kv: []any{"dangling"}, want: ""},
	}

	for _, tt := range tests {
		if got := Params(tt.kv...); got != tt.want {
			t.Errorf("Params(%v) = %q, want %q", tt.kv, got, tt.want)
		}
	}
}
