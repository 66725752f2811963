package llm

import "testing"

func TestStripFences(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{name: "no fence", in: `{"a":1}`, want: `{"a":1}`},
		{name: "plain fence", in: "```\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "json fence", in: "```json\n{\"a\":1}\n```", want: `{"a":1}`},
		{name: "fence with whitespace", in: "  ```json\n{\"a\":1}\n```  ", want: `{"a":1}`},
		{name: "inline fence content", in: "```{\"a\":1}```", want: `{"a":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := StripFences(tt.in); got != tt.want {
				t.Errorf("StripFences(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestDecodeJSONTolerant(t *testing.T) {
	var out struct {
		Questions []string `json:"questions"`
	}
	raw := "```json\n{\"questions\": [\"What is X?\", \"Why Y?\"]}\n```"
	if err := DecodeJSON(raw, &out); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(out.Questions) != 2 {
		t.Fatalf("questions = %v", out.Questions)
	}
}

func TestDecodeJSONGarbage(t *testing.T) {
	var out map[string]any
	if err := DecodeJSON("the model rambled instead of emitting JSON", &out); err == nil {
		t.Fatal("expected parse error")
	}
}
