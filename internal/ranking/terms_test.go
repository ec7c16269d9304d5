package ranking

import (
	"reflect"
	"testing"
)

func TestTokenizeQueryTerms(t *testing.T) {
	tests := map[string][]string{
		"USB Drive!":       {"drive", "usb"},
		"a bb c":           {"bb"},
		"foo_bar foo-bar":  {"foo-bar", "foo_bar"},
		"":                 nil,
		"   multiple   spaces  ": {"multiple", "spaces"},
	}

	for input, want := range tests {
		got := tokenizeQueryTerms(input)
		if len(got) == 0 {
			got = nil
		}
		if !reflect.DeepEqual(got, want) {
			t.Errorf("tokenizeQueryTerms(%q) = %v, want %v", input, got, want)
		}
	}
}
