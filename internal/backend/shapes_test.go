package backend_test

import (
	"testing"
	"textlens/internal/backend"
)

func TestExtractText(t *testing.T) {
	tests := []struct {
		name string
		body string
		want string
	}{
		{
			"chat completion",
			`{"choices":[{"message":{"role":"assistant","content":"SIMULATED MODEL OUTPUT: Short summary"}}]}`,
			"SIMULATED MODEL OUTPUT: Short summary",
		},
		{
			"generated text object",
			`{"generated_text":"object text"}`,
			"object text",
		},
		{
			"generated text array",
			`[{"generated_text":"array text"}]`,
			"array text",
		},
		{
			"data wrapper",
			`{"data":[{"generated_text":"data text"}]}`,
			"data text",
		},
		{
			"summarization array",
			`[{"summary_text":"summary text"}]`,
			"summary text",
		},
		{
			"chat shape wins over generated text",
			`{"generated_text":"second","choices":[{"message":{"content":"first"}}]}`,
			"first",
		},
		{
			"empty content falls back to raw",
			`{"choices":[{"message":{"content":""}}]}`,
			`{"choices":[{"message":{"content":""}}]}`,
		},
		{
			"unknown shape",
			`{"foo":"bar"}`,
			`{"foo":"bar"}`,
		},
		{
			"unknown shape is compacted",
			"{\n  \"foo\": \"bar\"\n}\n",
			`{"foo":"bar"}`,
		},
		{
			"not json",
			"  plain answer \n",
			"plain answer",
		},
	}

	for _, test := range tests {
		t.Run(test.name, func(t *testing.T) {
			if got := backend.ExtractText([]byte(test.body)); got != test.want {
				t.Fatalf("ExtractText() = %q, want %q", got, test.want)
			}
		})
	}
}
