package service

import (
	"encoding/json"
	"errors"
	"reflect"
	"testing"

	"github.com/rudhramentertainment/RBackend/internal/domain"
)

func TestNormalizeReceiversShapes(t *testing.T) {
	want := []string{"a", "b"}
	inputs := []any{
		"a,b,b",
		[]string{"a", "b"},
		`["a","b"]`,
		[]any{"a", "b", "a"},
		json.RawMessage(`["a","b"]`),
		json.RawMessage(`"a, b"`),
		" a , ,b ",
		[]string{"a,b", `["b"]`},
	}
	for _, in := range inputs {
		got, err := NormalizeReceivers(in)
		if err != nil {
			t.Fatalf("%#v: unexpected error %v", in, err)
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("%#v: got %v want %v", in, got, want)
		}
	}
}

func TestNormalizeReceiversEmpty(t *testing.T) {
	for _, in := range []any{nil, "", "  ", "[]", []string{}, json.RawMessage(`null`), ",,"} {
		got, err := NormalizeReceivers(in)
		if err != nil {
			t.Fatalf("%#v: unexpected error %v", in, err)
		}
		if len(got) != 0 {
			t.Errorf("%#v: expected empty, got %v", in, got)
		}
	}
}

func TestNormalizeReceiversRejectsGarbage(t *testing.T) {
	for _, in := range []any{`["a",`, []any{"a", 3}, 42} {
		if _, err := NormalizeReceivers(in); !errors.Is(err, domain.ErrValidation) {
			t.Errorf("%#v: expected validation error, got %v", in, err)
		}
	}
}

func TestParseIDs(t *testing.T) {
	ids, err := ParseIDs([]string{"65f1c0ffee0000000000beef", "65f1c0ffee0000000000beef"})
	if err != nil || len(ids) != 1 {
		t.Fatalf("expected one id, got %v %v", ids, err)
	}
	if _, err := ParseIDs([]string{"nope"}); !errors.Is(err, domain.ErrValidation) {
		t.Fatalf("expected validation error, got %v", err)
	}
}
