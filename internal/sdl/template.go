package sdl

import (
	"encoding/json"
	"fmt"
	"os"
	"regexp"
	"sort"
	"strings"

	"storyboard/internal/services"
)

var (
	imageTagPattern = regexp.MustCompile(`\[image\s+(\$[\w]+|\.?[\w/.\-]+)\]`)
	varTagPattern   = regexp.MustCompile(`\{\$(\w+)\}`)
	varPathPattern  = regexp.MustCompile(`\{\$([^}]+)\}`)
)

// ExpandPromptString parses an instruction string with embedded [image ...]
// and {$variable} syntax into an ordered part list. The string is split on
// image tags first, then each text run is split on variable tags; empty
// segments are dropped. Order is preserved exactly as encountered.
func ExpandPromptString(prompt string) ([]TemplatePart, error) {
	prompt = strings.TrimSpace(prompt)

	var parts []TemplatePart
	last := 0
	for _, m := range imageTagPattern.FindAllStringSubmatchIndex(prompt, -1) {
		text := prompt[last:m[0]]
		parts = append(parts, expandTextSegment(text)...)

		reference := strings.TrimSpace(prompt[m[2]:m[3]])
		if strings.HasPrefix(reference, "$") {
			parts = append(parts, TemplatePart{Type: PartImage, Key: reference[1:]})
		} else {
			parts = append(parts, TemplatePart{Type: PartImage, Content: reference})
		}
		last = m[1]
	}
	parts = append(parts, expandTextSegment(prompt[last:])...)

	for _, part := range parts {
		if err := part.Validate(); err != nil {
			return nil, err
		}
	}
	return parts, nil
}

func expandTextSegment(text string) []TemplatePart {
	var parts []TemplatePart
	last := 0
	for _, m := range varTagPattern.FindAllStringSubmatchIndex(text, -1) {
		if literal := text[last:m[0]]; literal != "" {
			parts = append(parts, TemplatePart{Type: PartPrompt, Content: literal})
		}
		parts = append(parts, TemplatePart{Type: PartPrompt, Key: text[m[2]:m[3]]})
		last = m[1]
	}
	if literal := text[last:]; literal != "" {
		parts = append(parts, TemplatePart{Type: PartPrompt, Content: literal})
	}
	return parts
}

// RenderParts substitutes every placeholder part from the context, producing
// a new ordered list of fully literal parts. Image parts must point at files
// that exist on disk once rendered.
func RenderParts(parts []TemplatePart, context map[string]any) ([]TemplatePart, error) {
	rendered := make([]TemplatePart, 0, len(parts))
	for _, part := range parts {
		out := part
		if part.Key != "" {
			value, ok := context[part.Key]
			if !ok || value == nil {
				return nil, missingVariableError(part.Key, context)
			}
			out = TemplatePart{Type: part.Type, Content: stringify(value)}
		}
		if out.Type == PartImage && out.Content != "" {
			if _, err := os.Stat(out.Content); err != nil {
				return nil, services.Wrap(services.ErrGeneration, "render", "",
					fmt.Sprintf("reference image not found: %s", out.Content), nil)
			}
		}
		rendered = append(rendered, out)
	}
	return rendered, nil
}

// JoinPromptParts concatenates the prompt-typed parts into a single
// human-readable string, inserting a space between adjacent parts unless one
// side already carries whitespace, the left ends with an opening bracket or
// quote, or the right starts with closing or sentence punctuation.
func JoinPromptParts(parts []TemplatePart) string {
	var chunks []string
	for _, part := range parts {
		if part.Type == PartPrompt && part.Content != "" {
			chunks = append(chunks, part.Content)
		}
	}
	if len(chunks) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString(chunks[0])
	prev := chunks[0]
	for _, curr := range chunks[1:] {
		if needsSpace(prev, curr) {
			sb.WriteString(" ")
		}
		sb.WriteString(curr)
		prev = curr
	}
	return sb.String()
}

func needsSpace(prev, curr string) bool {
	if prev == "" || curr == "" {
		return false
	}
	prevEnd := prev[len(prev)-1]
	currStart := curr[0]
	switch {
	case prevEnd == ' ' || prevEnd == '\t' || prevEnd == '\n':
		return false
	case currStart == ' ' || currStart == '\t' || currStart == '\n':
		return false
	case strings.ContainsRune(`'"([`, rune(prevEnd)):
		return false
	case strings.ContainsRune(`'")].,;:!?`, rune(currStart)):
		return false
	}
	return true
}

// RenderTemplateString replaces every {$variable} in the template string with
// its context value. Variables support dotted paths into structured values;
// context strings that look like JSON objects (produced by reference
// resolution) are decoded before navigation.
func RenderTemplateString(template string, context map[string]any) (string, error) {
	parsed := make(map[string]any, len(context))
	for key, value := range context {
		if s, ok := value.(string); ok && strings.HasPrefix(s, "{") {
			var decoded any
			if err := json.Unmarshal([]byte(s), &decoded); err == nil {
				parsed[key] = decoded
				continue
			}
		}
		parsed[key] = value
	}

	result := template
	for _, m := range varPathPattern.FindAllStringSubmatch(template, -1) {
		token, varPath := m[0], strings.TrimSpace(m[1])

		var value any = parsed
		for _, part := range strings.Split(varPath, ".") {
			mapped, ok := value.(map[string]any)
			if !ok {
				value = nil
				break
			}
			value = mapped[part]
			if value == nil {
				break
			}
		}
		if value == nil {
			return "", missingVariableError(varPath, parsed)
		}
		result = strings.ReplaceAll(result, token, stringify(value))
	}
	return result, nil
}

func missingVariableError(name string, context map[string]any) error {
	keys := make([]string, 0, len(context))
	for key := range context {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return services.Wrap(services.ErrGeneration, "render", "",
		fmt.Sprintf("missing required template variable: '%s'. Available: %s", name, quoteList(keys)), nil)
}

func quoteList(items []string) string {
	quoted := make([]string, len(items))
	for i, item := range items {
		quoted[i] = "'" + item + "'"
	}
	return "[" + strings.Join(quoted, ", ") + "]"
}

func stringify(value any) string {
	switch v := value.(type) {
	case string:
		return v
	case float64:
		// JSON numbers decode as float64; render whole values without a
		// trailing .0 so hashes stay stable across load paths.
		if v == float64(int64(v)) {
			return fmt.Sprintf("%d", int64(v))
		}
		return fmt.Sprintf("%v", v)
	default:
		return fmt.Sprintf("%v", v)
	}
}
