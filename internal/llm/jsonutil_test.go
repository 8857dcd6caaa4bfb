package llm

import "testing"

func TestExtractJSONObject(t *testing.T) {
	t.Parallel()
	cases := []struct {
		name string
		in   string
		want string
	}{
		{"bare", `{"a":1}`, `{"a":1}`},
		{"prose around", `Sure, here is the plan: {"a":{"b":2}} hope that helps`, `{"a":{"b":2}}`},
		{"braces in strings", `{"text":"use { and } freely","n":1}`, `{"text":"use { and } freely","n":1}`},
		{"escaped quote", `{"t":"say \"{\" now"}`, `{"t":"say \"{\" now"}`},
		{"fenced", "```json\n{\"a\":1}\n```", `{"a":1}`},
		{"unbalanced", `{"a":1`, ""},
		{"no object", "no json here", ""},
	}
	for _, tc := range cases {
		tc := tc
		t.Run(tc.name, func(t *testing.T) {
			t.Parallel()
			if got := ExtractJSONObject(tc.in); got != tc.want {
				t.Errorf("ExtractJSONObject(%q) = %q, want %q", tc.in, got, tc.want)
			}
		})
	}
}

func TestExtractJSONArray(t *testing.T) {
	t.Parallel()
	got := ExtractJSONArray("Queries:\n```json\n[\"a\", \"b\"]\n```")
	if got != `["a", "b"]` {
		t.Errorf("ExtractJSONArray = %q", got)
	}
	if got := ExtractJSONArray("nothing"); got != "" {
		t.Errorf("ExtractJSONArray(no array) = %q, want empty", got)
	}
}

func TestStripCodeFences(t *testing.T) {
	t.Parallel()
	if got := StripCodeFences("```json\n{\"a\":1}\n```"); got != `{"a":1}` {
		t.Errorf("StripCodeFences = %q", got)
	}
	if got := StripCodeFences("plain"); got != "plain" {
		t.Errorf("StripCodeFences(plain) = %q", got)
	}
}
