package cleantxtrelay

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// EmptyDocument is the canonical document of a session nobody has edited yet.
var EmptyDocument = json.RawMessage(`{"type":"doc","content":[]}`)

const (
	DefaultMaxDocumentBytes = 1 << 20
	maxDocumentDepth        = 128
)

// ValidateDocument checks that raw is a ProseMirror document tree as produced
// by the editor: a "doc" root whose nodes all carry a type, with content and
// marks arrays where present. maxBytes <= 0 disables the size check.
func ValidateDocument(raw json.RawMessage, maxBytes int) error {
	if len(raw) == 0 {
		return errors.New("document is empty")
	}
	if maxBytes > 0 && len(raw) > maxBytes {
		return fmt.Errorf("document is %v bytes, limit is %v", len(raw), maxBytes)
	}

	var root interface{}
	if err := json.Unmarshal(raw, &root); err != nil {
		return fmt.Errorf("document is not valid json: %w", err)
	}

	node, ok := root.(map[string]interface{})
	if !ok {
		return errors.New("document root must be an object")
	}
	if nodeType, _ := node["type"].(string); nodeType != "doc" {
		return fmt.Errorf("document root must have type doc, got %q", nodeType)
	}
	return validateNode(node, "/", 0)
}

func validateNode(node map[string]interface{}, path string, depth int) error {
	if depth > maxDocumentDepth {
		return fmt.Errorf("%v: document nested deeper than %v", path, maxDocumentDepth)
	}

	nodeType, ok := node["type"].(string)
	if !ok || nodeType == "" {
		return fmt.Errorf("%v: node type must be a non-empty string", path)
	}

	if nodeType == "text" {
		if _, ok := node["text"].(string); !ok {
			return fmt.Errorf("%v: text node must carry a string text", path)
		}
	}

	if attrs, ok := node["attrs"]; ok && attrs != nil {
		if _, ok := attrs.(map[string]interface{}); !ok {
			return fmt.Errorf("%v: attrs must be an object", path)
		}
	}

	if marks, ok := node["marks"]; ok && marks != nil {
		list, ok := marks.([]interface{})
		if !ok {
			return fmt.Errorf("%v: marks must be an array", path)
		}
		for i, raw := range list {
			mark, ok := raw.(map[string]interface{})
			if !ok {
				return fmt.Errorf("%vmarks/%v: mark must be an object", path, i)
			}
			if markType, _ := mark["type"].(string); markType == "" {
				return fmt.Errorf("%vmarks/%v: mark type must be a non-empty string", path, i)
			}
		}
	}

	content, ok := node["content"]
	if !ok || content == nil {
		return nil
	}
	children, ok := content.([]interface{})
	if !ok {
		return fmt.Errorf("%v: content must be an array", path)
	}
	for i, raw := range children {
		childPath := fmt.Sprintf("%vcontent/%v/", path, i)
		child, ok := raw.(map[string]interface{})
		if !ok {
			return fmt.Errorf("%v: node must be an object", childPath)
		}
		if err := validateNode(child, childPath, depth+1); err != nil {
			return err
		}
	}
	return nil
}

var blockTypes = map[string]struct{}{
	"paragraph":      {},
	"heading":        {},
	"blockquote":     {},
	"codeBlock":      {},
	"listItem":       {},
	"horizontalRule": {},
}

// DocumentText flattens a document to plain text, one line per block. Invalid
// documents flatten to "".
func DocumentText(raw json.RawMessage) string {
	var root map[string]interface{}
	if err := json.Unmarshal(raw, &root); err != nil {
		return ""
	}

	var sb strings.Builder
	writeText(&sb, root)
	return strings.TrimSpace(sb.String())
}

func writeText(sb *strings.Builder, node map[string]interface{}) {
	nodeType, _ := node["type"].(string)
	switch nodeType {
	case "text":
		text, _ := node["text"].(string)
		sb.WriteString(text)
		return
	case "hardBreak":
		sb.WriteString("\n")
		return
	}

	children, _ := node["content"].([]interface{})
	for _, raw := range children {
		if child, ok := raw.(map[string]interface{}); ok {
			writeText(sb, child)
		}
	}

	if _, ok := blockTypes[nodeType]; ok {
		if !strings.HasSuffix(sb.String(), "\n") {
			sb.WriteString("\n")
		}
	}
}
