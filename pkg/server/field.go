package server

import (
	"encoding/json"
	"math"

	"github.com/vango-dev/filterbind/internal/config"
	"github.com/vango-dev/filterbind/internal/errors"
	"github.com/vango-dev/filterbind/pkg/filter"
	"github.com/vango-dev/filterbind/pkg/navigation"
)

// Field erases the type parameter of a filter.Binding so a session can hold
// bindings of different types declared at runtime.
type Field interface {
	Name() string
	SetJSON(raw json.RawMessage) error
	Current() any
	Flush()
	Close()
}

type typedField[T any] struct {
	b *filter.Binding[T]
}

func (f typedField[T]) Name() string {
	return f.b.Name()
}

// SetJSON decodes raw into T and sets it.
func (f typedField[T]) SetJSON(raw json.RawMessage) error {
	var v T
	if err := json.Unmarshal(raw, &v); err != nil {
		return errors.New("F003").WithDetailf("%s: %v", f.b.Name(), err)
	}
	f.b.Set(v)
	return nil
}

// Current returns the local value in a JSON-encodable form. NaN and
// infinities have no JSON representation and are reported as null.
func (f typedField[T]) Current() any {
	v := any(f.b.Value())
	if x, ok := v.(float64); ok && (math.IsNaN(x) || math.IsInf(x, 0)) {
		return nil
	}
	return v
}

func (f typedField[T]) Flush() {
	f.b.Flush()
}

func (f typedField[T]) Close() {
	f.b.Close()
}

// NewField binds the filter declared by fc to router. Delay, mode, default
// and removal sentinel all come from fc.
func NewField(fc config.FilterConfig, router filter.Router, opts ...filter.Option) (Field, error) {
	delay, err := fc.DelayDuration()
	if err != nil {
		return nil, errors.New("F011").WithDetailf("filter %q delay: %v", fc.Name, err)
	}
	mode, err := navigation.ParseMode(fc.Mode)
	if err != nil {
		return nil, err
	}
	opts = append(opts, filter.Delay(delay), filter.WithMode(mode))

	switch fc.Type {
	case config.TypeString, "":
		return bindField[string](fc, router, opts)
	case config.TypeInt:
		return bindField[int64](fc, router, opts)
	case config.TypeFloat:
		return bindField[float64](fc, router, opts)
	case config.TypeBool:
		return bindField[bool](fc, router, opts)
	case config.TypeList:
		return bindField[[]string](fc, router, opts)
	}
	return nil, errors.New("F012").WithDetailf("filter %q has type %q", fc.Name, fc.Type)
}

func bindField[T any](fc config.FilterConfig, router filter.Router, opts []filter.Option) (Field, error) {
	var initial T
	if len(fc.Default) > 0 {
		if err := json.Unmarshal(fc.Default, &initial); err != nil {
			return nil, errors.New("F011").WithDetailf("filter %q default: %v", fc.Name, err)
		}
	}
	if len(fc.Remove) > 0 {
		var sentinel T
		if err := json.Unmarshal(fc.Remove, &sentinel); err != nil {
			return nil, errors.New("F011").WithDetailf("filter %q remove: %v", fc.Name, err)
		}
		opts = append(opts, filter.RemoveWhen(sentinel))
	}
	return typedField[T]{b: filter.New(fc.Name, initial, router, opts...)}, nil
}
