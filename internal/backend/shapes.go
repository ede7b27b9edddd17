package backend

import (
	"strings"

	"github.com/tidwall/gjson"
	"github.com/tidwall/pretty"
)

// Known response shapes, most specific first.
var textPaths = []string{
	"choices.0.message.content",
	"generated_text",
	"0.generated_text",
	"data.0.generated_text",
	"summary_text",
	"0.summary_text",
}

// ExtractText returns the generated text of a backend response body. When no
// known shape matches, the body itself is returned (compacted if it is JSON) so
// the caller still has something to show.
func ExtractText(body []byte) string {
	if !gjson.ValidBytes(body) {
		return strings.TrimSpace(string(body))
	}

	for _, path := range textPaths {
		res := gjson.GetBytes(body, path)
		if res.Type == gjson.String && res.Str != "" {
			return res.Str
		}
	}

	return string(pretty.Ugly(body))
}
