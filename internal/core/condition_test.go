package core

import (
	"testing"

	"github.com/goccy/go-yaml"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
)

func TestCondition_UnmarshalYAML(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  Condition
	}{
		{
			name: "Explicit Syntax",
			input: `key: role
operator: equals
value: service_role`,
			want: Condition{Key: "role", Operator: OpEqual, Value: "service_role"},
		},
		{
			name:  "Explicit Without Operator",
			input: `{key: sub, value: user-1}`,
			want:  Condition{Key: "sub", Operator: OpEqual, Value: "user-1"},
		},
		{
			name:  "Shorthand Simple Key-Value",
			input: `role: service_role`,
			want:  Condition{Key: "role", Operator: OpEqual, Value: "service_role"},
		},
		{
			name:  "Shorthand Operator Map",
			input: `email: { contains: "@maramap.app" }`,
			want:  Condition{Key: "email", Operator: OpContains, Value: "@maramap.app"},
		},
		{
			name:  "Expression",
			input: `expr: 'role == "service_role"'`,
			want:  Condition{Expr: `role == "service_role"`},
		},
		{
			name: "Nested Logic (Any)",
			input: `
any:
  - sub: user-1
  - email: { contains: "@maramap.app" }
`,
			want: Condition{
				Any: []Condition{
					{Key: "sub", Operator: OpEqual, Value: "user-1"},
					{Key: "email", Operator: OpContains, Value: "@maramap.app"},
				},
			},
		},
		{
			name:  "Several Shorthand Keys",
			input: `{role: admin, aal: aal2}`,
			want: Condition{
				All: []Condition{
					{Key: "aal", Operator: OpEqual, Value: "aal2"},
					{Key: "role", Operator: OpEqual, Value: "admin"},
				},
			},
		},
	}

	sortChildren := cmpopts.SortSlices(func(a, b Condition) bool { return a.Key < b.Key })
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got Condition
			if err := yaml.Unmarshal([]byte(tt.input), &got); err != nil {
				t.Fatalf("UnmarshalYAML() error = %v", err)
			}
			if diff := cmp.Diff(tt.want, got, sortChildren); diff != "" {
				t.Errorf("UnmarshalYAML() mismatch (-want +got):\n%s", diff)
			}
		})
	}
}

func TestCondition_Validate(t *testing.T) {
	tests := []struct {
		name    string
		cond    *Condition
		wantErr bool
	}{
		{name: "Nil", cond: nil},
		{name: "Leaf", cond: &Condition{Key: "sub", Operator: OpEqual, Value: "x"}},
		{name: "Expr", cond: &Condition{Expr: "true"}},
		{name: "Empty", cond: &Condition{}, wantErr: true},
		{name: "Bad Operator", cond: &Condition{Key: "sub", Operator: "like"}, wantErr: true},
		{name: "Leaf And Expr", cond: &Condition{Key: "sub", Operator: OpEqual, Expr: "true"}, wantErr: true},
		{name: "Nested Invalid", cond: &Condition{Any: []Condition{{Key: "a", Operator: OpIn}, {}}}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.cond.Validate()
			if (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
