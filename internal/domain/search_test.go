package domain

import (
	"encoding/json"
	"testing"
)

func TestSearchResultText(t *testing.T) {
	tests := []struct {
		name string
		raw  string
		want string
	}{
		{"string", `"foo bar baz"`, "foo bar baz"},
		{"escaped string", `"line\nnext \"quoted\""`, "line\nnext \"quoted\""},
		{"empty string", `""`, ""},
		{"array", `[ {"title": "a"}, {"title": "b"} ]`, `[{"title":"a"},{"title":"b"}]`},
		{"object", "{\n  \"k\": 1\n}", `{"k":1}`},
		{"null", `null`, "null"},
		{"number", `42`, "42"},
		{"empty", ``, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := NewSearchResult(json.RawMessage(tt.raw)).Text()
			if got != tt.want {
				t.Errorf("Text() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestSearchResultRawIsUntouched(t *testing.T) {
	raw := json.RawMessage(`[ 1, 2 ]`)
	r := NewSearchResult(raw)
	if string(r.Raw()) != string(raw) {
		t.Errorf("Raw() = %s, want %s", r.Raw(), raw)
	}
}
