package engine

import "testing"

func TestResolvePath(t *testing.T) {
	tree := map[string]any{
		"temperature": 21.5,
		"empty":       nil,
		"outputs":     map[string]any{"OUT1": 1.0, "nested": map[string]any{"deep": "x"}},
		"scalar":      3.0,
	}

	tests := []struct {
		path  string
		want  any
		found bool
	}{
		{"temperature", 21.5, true},
		{"outputs.OUT1", 1.0, true},
		{"outputs.nested.deep", "x", true},
		{"outputs.OUT2", nil, false},
		{"scalar.child", nil, false},
		{"missing", nil, false},
		{"empty", nil, false},
		{"", nil, false},
	}
	for _, tt := range tests {
		tt := tt
		t.Run(tt.path, func(t *testing.T) {
			got, ok := ResolvePath(tree, tt.path)
			if ok != tt.found {
				t.Fatalf("found = %v, want %v", ok, tt.found)
			}
			if ok && got != tt.want {
				t.Fatalf("value = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestLeaf(t *testing.T) {
	if got := leaf("outputs.OUT1"); got != "OUT1" {
		t.Fatalf("leaf = %q", got)
	}
	if got := leaf("battery"); got != "battery" {
		t.Fatalf("leaf = %q", got)
	}
}
