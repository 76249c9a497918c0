package server

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/vango-dev/filterbind/internal/config"
	"github.com/vango-dev/filterbind/internal/errors"
	"github.com/vango-dev/filterbind/pkg/navigation"
)

func mustHistory(t *testing.T, href string) *navigation.History {
	t.Helper()
	h, err := navigation.NewHistory(href)
	if err != nil {
		t.Fatalf("NewHistory(%q) failed: %v", href, err)
	}
	return h
}

func TestNewFieldTypes(t *testing.T) {
	tests := []struct {
		name  string
		fc    config.FilterConfig
		input string
		want  any
		href  string
	}{
		{
			name:  "string",
			fc:    config.FilterConfig{Name: "q", Type: config.TypeString, Delay: "0s"},
			input: `"boots"`,
			want:  "boots",
			href:  "/shop?q=boots",
		},
		{
			name:  "int",
			fc:    config.FilterConfig{Name: "min", Type: config.TypeInt, Delay: "0s"},
			input: `25`,
			want:  int64(25),
			href:  "/shop?min=25",
		},
		{
			name:  "float",
			fc:    config.FilterConfig{Name: "rating", Type: config.TypeFloat, Delay: "0s"},
			input: `4.5`,
			want:  4.5,
			href:  "/shop?rating=4.5",
		},
		{
			name:  "bool",
			fc:    config.FilterConfig{Name: "stock", Type: config.TypeBool, Delay: "0s"},
			input: `true`,
			want:  true,
			href:  "/shop?stock=true",
		},
		{
			name:  "list",
			fc:    config.FilterConfig{Name: "tags", Type: config.TypeList, Delay: "0s"},
			input: `["a","b"]`,
			want:  []string{"a", "b"},
			href:  "/shop?tags=a_b",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := mustHistory(t, "/shop")
			f, err := NewField(tt.fc, h)
			if err != nil {
				t.Fatalf("NewField failed: %v", err)
			}
			defer f.Close()

			if err := f.SetJSON(json.RawMessage(tt.input)); err != nil {
				t.Fatalf("SetJSON(%s) failed: %v", tt.input, err)
			}
			if got := h.Current().Href(); got != tt.href {
				t.Errorf("href = %q, want %q", got, tt.href)
			}

			got, _ := json.Marshal(f.Current())
			want, _ := json.Marshal(tt.want)
			if string(got) != string(want) {
				t.Errorf("Current() = %s, want %s", got, want)
			}
		})
	}
}

func TestNewFieldDefaultAndRemove(t *testing.T) {
	h := mustHistory(t, "/shop?page=2")
	fc := config.FilterConfig{
		Name:    "sort",
		Type:    config.TypeString,
		Delay:   "0s",
		Mode:    config.ModeReplace,
		Default: json.RawMessage(`"popular"`),
		Remove:  json.RawMessage(`"popular"`),
	}
	f, err := NewField(fc, h)
	if err != nil {
		t.Fatalf("NewField failed: %v", err)
	}
	defer f.Close()

	if got := f.Current(); got != "popular" {
		t.Fatalf("Current() = %v, want popular", got)
	}

	f.SetJSON(json.RawMessage(`"newest"`))
	f.SetJSON(json.RawMessage(`"popular"`))

	if got := h.Current().Href(); got != "/shop" {
		t.Errorf("href = %q, want /shop", got)
	}
	if got := h.Len(); got != 1 {
		t.Errorf("history length = %d, want 1 for replace mode", got)
	}
}

func TestNewFieldErrors(t *testing.T) {
	tests := []struct {
		name string
		fc   config.FilterConfig
		code string
	}{
		{"unknown type", config.FilterConfig{Name: "x", Type: "date"}, "F012"},
		{"bad mode", config.FilterConfig{Name: "x", Mode: "teleport"}, "F014"},
		{"bad delay", config.FilterConfig{Name: "x", Delay: "soon"}, "F011"},
		{"bad default", config.FilterConfig{Name: "x", Type: config.TypeInt, Default: json.RawMessage(`"one"`)}, "F011"},
		{"bad remove", config.FilterConfig{Name: "x", Type: config.TypeBool, Remove: json.RawMessage(`[]`)}, "F011"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := NewField(tt.fc, mustHistory(t, "/"))
			if err == nil {
				t.Fatal("expected error")
			}
			if got := errors.CodeOf(err); got != tt.code {
				t.Errorf("code = %q, want %q (%v)", got, tt.code, err)
			}
		})
	}
}

func TestFieldSetJSONRejectsWrongType(t *testing.T) {
	f, err := NewField(config.FilterConfig{Name: "min", Type: config.TypeInt, Delay: "0s"}, mustHistory(t, "/"))
	if err != nil {
		t.Fatalf("NewField failed: %v", err)
	}
	defer f.Close()

	err = f.SetJSON(json.RawMessage(`"ten"`))
	if got := errors.CodeOf(err); got != "F003" {
		t.Errorf("code = %q, want F003", got)
	}
}

func TestFieldCurrentNaN(t *testing.T) {
	h := mustHistory(t, "/shop?rating=abc")
	f, err := NewField(config.FilterConfig{Name: "rating", Type: config.TypeFloat, Delay: "0s"}, h)
	if err != nil {
		t.Fatalf("NewField failed: %v", err)
	}
	defer f.Close()

	if got := f.Current(); got != nil {
		t.Errorf("Current() = %v, want nil for NaN", got)
	}
	if v := f.(typedField[float64]).b.Value(); !math.IsNaN(v) {
		t.Errorf("Value() = %v, want NaN", v)
	}
}
