package cleantxtrelay

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/tj/assert"
)

func TestValidateDocument(t *testing.T) {
	testCases := map[string]struct {
		doc   string
		valid bool
	}{
		"empty doc":      {doc: string(EmptyDocument), valid: true},
		"paragraph":      {doc: string(doc("Hello")), valid: true},
		"null content":   {doc: `{"type":"doc","content":null}`, valid: true},
		"marks":          {doc: `{"type":"doc","content":[{"type":"paragraph","content":[{"type":"text","text":"b","marks":[{"type":"bold"}]}]}]}`, valid: true},
		"attrs":          {doc: `{"type":"doc","content":[{"type":"heading","attrs":{"level":1}}]}`, valid: true},
		"empty":          {doc: ``},
		"array":          {doc: `[]`},
		"bare string":    {doc: `"Hello"`},
		"no type":        {doc: `{"content":[]}`},
		"not doc":        {doc: `{"type":"paragraph"}`},
		"content object": {doc: `{"type":"doc","content":{}}`},
		"child scalar":   {doc: `{"type":"doc","content":["x"]}`},
		"child no type":  {doc: `{"type":"doc","content":[{"text":"x"}]}`},
		"text no text":   {doc: `{"type":"doc","content":[{"type":"paragraph","content":[{"type":"text"}]}]}`},
		"bad marks":      {doc: `{"type":"doc","content":[{"type":"text","text":"x","marks":"bold"}]}`},
		"mark no type":   {doc: `{"type":"doc","content":[{"type":"text","text":"x","marks":[{}]}]}`},
		"bad attrs":      {doc: `{"type":"doc","attrs":[1]}`},
	}

	for label, tc := range testCases {
		t.Run(label, func(t *testing.T) {
			err := ValidateDocument(json.RawMessage(tc.doc), DefaultMaxDocumentBytes)
			if tc.valid {
				assert.Nil(t, err)
			} else {
				assert.NotNil(t, err)
			}
		})
	}

	t.Run("too deep", func(t *testing.T) {
		var sb strings.Builder
		sb.WriteString(`{"type":"doc","content":[`)
		for i := 0; i < maxDocumentDepth+1; i++ {
			sb.WriteString(`{"type":"blockquote","content":[`)
		}
		for i := 0; i < maxDocumentDepth+1; i++ {
			sb.WriteString(`]}`)
		}
		sb.WriteString(`]}`)
		assert.NotNil(t, ValidateDocument(json.RawMessage(sb.String()), 0))
	})

	t.Run("too large", func(t *testing.T) {
		assert.NotNil(t, ValidateDocument(doc(strings.Repeat("a", 100)), 50))
		assert.Nil(t, ValidateDocument(doc(strings.Repeat("a", 100)), 0))
	})
}

func TestDocumentText(t *testing.T) {
	raw := json.RawMessage(`{"type":"doc","content":[
		{"type":"heading","attrs":{"level":1},"content":[{"type":"text","text":"Title"}]},
		{"type":"paragraph","content":[
			{"type":"text","text":"Hello, "},
			{"type":"text","text":"world","marks":[{"type":"bold"}]},
			{"type":"hardBreak"},
			{"type":"text","text":"again"}
		]}
	]}`)

	assert.Equal(t, "Title\nHello, world\nagain", DocumentText(raw))
	assert.Equal(t, "", DocumentText(EmptyDocument))
	assert.Equal(t, "", DocumentText(json.RawMessage(`nope`)))
}
