// ABOUTME: Tagged-union content model for chat messages with structured parts.
// ABOUTME: Handles coercion from wire JSON and flattening to plain text.

package model

import (
	"encoding/json"
	"fmt"
	"strings"
)

// PartKind discriminates the known content part shapes.
type PartKind int

const (
	// KindText is an inline text part ("input_text", "output_text", "text",
	// or an untyped object carrying a "text" field).
	KindText PartKind = iota
	// KindImage is an image part referencing a URL or inline base64 data.
	KindImage
	// KindAudio is an audio part.
	KindAudio
	// KindOther is any recognized-as-structured part the gateway does not
	// model explicitly. It is carried through verbatim, never dropped.
	KindOther
)

// Part is one element of structured message content.
//
// Raw preserves the original wire object so that already-structured input
// round-trips losslessly through the gateway. Parts built programmatically
// (for example by the client library) may leave Raw nil, in which case
// marshaling synthesizes the wire shape from the typed fields.
type Part struct {
	Kind     PartKind
	Type     string // wire "type" tag, e.g. "input_text", "input_image"; may be empty
	Text     string
	ImageURL string
	Raw      map[string]any
}

// TextPart returns an inline text part with the given wire type tag.
func TextPart(typeTag, text string) Part {
	return Part{Kind: KindText, Type: typeTag, Text: text}
}

// ImagePart returns an image part referencing url, typically a base64 data URL.
func ImagePart(typeTag, url string) Part {
	return Part{Kind: KindImage, Type: typeTag, ImageURL: url}
}

// Wire returns the JSON object shape for this part. The original wire object
// wins when present so structured input is passed through untouched.
func (p Part) Wire() map[string]any {
	if p.Raw != nil {
		return p.Raw
	}
	switch p.Kind {
	case KindImage:
		return map[string]any{"type": p.Type, "image_url": p.ImageURL}
	default:
		return map[string]any{"type": p.Type, "text": p.Text}
	}
}

// Flatten reduces the part to its textual projection. Non-text parts degrade
// to placeholder tokens so text-only providers always receive something.
func (p Part) Flatten() string {
	switch p.Kind {
	case KindText:
		return p.Text
	case KindImage:
		if p.ImageURL != "" {
			return p.ImageURL
		}
		return "<image>"
	case KindAudio:
		return "<audio>"
	default:
		if p.Type != "" {
			return "<" + p.Type + ">"
		}
		if p.Raw != nil {
			raw, err := json.Marshal(p.Raw)
			if err == nil {
				return string(raw)
			}
		}
		return p.Text
	}
}

// MarshalJSON emits the part's wire shape.
func (p Part) MarshalJSON() ([]byte, error) {
	return json.Marshal(p.Wire())
}

// Content is either a plain string or an ordered sequence of parts.
// Parts is nil for plain text content.
type Content struct {
	Text  string
	Parts []Part
}

// TextContent returns plain string content.
func TextContent(s string) Content {
	return Content{Text: s}
}

// PartsContent returns structured content from the given parts.
func PartsContent(parts ...Part) Content {
	return Content{Parts: parts}
}

// Structured reports whether the content is a part sequence rather than a
// plain string.
func (c Content) Structured() bool {
	return c.Parts != nil
}

// Flatten reduces the content to a single text string. Structured parts are
// flattened individually and joined with newlines; empty projections are
// skipped.
func (c Content) Flatten() string {
	if !c.Structured() {
		return c.Text
	}
	flat := make([]string, 0, len(c.Parts))
	for _, part := range c.Parts {
		if s := part.Flatten(); s != "" {
			flat = append(flat, s)
		}
	}
	return strings.Join(flat, "\n")
}

// MarshalJSON emits a string for plain content and a part array otherwise.
func (c Content) MarshalJSON() ([]byte, error) {
	if !c.Structured() {
		return json.Marshal(c.Text)
	}
	return json.Marshal(c.Parts)
}

// UnmarshalJSON applies the gateway's coercion rule, see ParseContent.
func (c *Content) UnmarshalJSON(data []byte) error {
	parsed, err := ParseContent(data)
	if err != nil {
		return err
	}
	*c = parsed
	return nil
}

// ParseContent coerces wire JSON into Content. A string stays a string. A
// list is preserved as a structured part sequence when any entry looks
// structured (carries a type tag or an image reference); otherwise the
// text-ish entries collapse into a single newline-joined string. A lone
// structured object becomes a one-part sequence.
func ParseContent(data []byte) (Content, error) {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return Content{}, fmt.Errorf("parsing content: %w", err)
	}
	return coerceContent(raw), nil
}

func coerceContent(raw any) Content {
	switch v := raw.(type) {
	case string:
		return TextContent(v)
	case []any:
		if anyStructured(v) {
			parts := make([]Part, 0, len(v))
			for _, entry := range v {
				parts = append(parts, coercePart(entry))
			}
			return PartsContent(parts...)
		}
		flat := make([]string, 0, len(v))
		for _, entry := range v {
			flat = append(flat, looseText(entry))
		}
		return TextContent(strings.Join(flat, "\n"))
	case map[string]any:
		if isStructured(v) {
			return PartsContent(partFromMap(v))
		}
		if text, ok := v["text"].(string); ok {
			return TextContent(text)
		}
		return TextContent(looseText(v))
	case nil:
		return TextContent("")
	default:
		return TextContent(fmt.Sprint(v))
	}
}

// anyStructured reports whether any list entry carries a structure
// discriminator.
func anyStructured(entries []any) bool {
	for _, entry := range entries {
		if m, ok := entry.(map[string]any); ok && isStructured(m) {
			return true
		}
	}
	return false
}

// isStructured reports whether a JSON object is a structured content part:
// it carries an explicit type tag or an image reference.
func isStructured(m map[string]any) bool {
	if _, ok := m["type"]; ok {
		return true
	}
	for _, key := range []string{"image_url", "image_base64", "image"} {
		if _, ok := m[key]; ok {
			return true
		}
	}
	return false
}

// coercePart converts one list entry to a Part. Bare strings inside a
// structured list become untyped text parts.
func coercePart(entry any) Part {
	switch v := entry.(type) {
	case string:
		return Part{Kind: KindText, Text: v}
	case map[string]any:
		return partFromMap(v)
	default:
		return Part{Kind: KindText, Text: looseText(v)}
	}
}

// partFromMap classifies a wire object into the part union. Classification
// is exhaustive: anything unrecognized lands in KindOther and is carried
// through verbatim.
func partFromMap(m map[string]any) Part {
	typeTag, _ := m["type"].(string)
	p := Part{Type: typeTag, Raw: m}

	if text, ok := m["text"].(string); ok {
		p.Kind = KindText
		p.Text = text
		return p
	}
	if texts, ok := m["text"].([]any); ok {
		p.Kind = KindText
		joined := make([]string, 0, len(texts))
		for _, t := range texts {
			if s := looseText(t); s != "" {
				joined = append(joined, s)
			}
		}
		p.Text = strings.Join(joined, "\n")
		return p
	}
	if url := imageURL(m); url != "" || hasAny(m, "image_base64", "image") {
		p.Kind = KindImage
		p.ImageURL = url
		return p
	}
	if hasAny(m, "audio", "audio_base64") {
		p.Kind = KindAudio
		return p
	}
	p.Kind = KindOther
	return p
}

// imageURL extracts an image URL from either a plain string field or the
// nested {"image_url": {"url": ...}} shape some providers use.
func imageURL(m map[string]any) string {
	switch v := m["image_url"].(type) {
	case string:
		return v
	case map[string]any:
		if url, ok := v["url"].(string); ok {
			return url
		}
	}
	return ""
}

func hasAny(m map[string]any, keys ...string) bool {
	for _, key := range keys {
		if v, ok := m[key]; ok && v != nil {
			return true
		}
	}
	return false
}

// looseText is the best-effort string projection of an arbitrary JSON value.
func looseText(v any) string {
	switch t := v.(type) {
	case string:
		return t
	case map[string]any:
		if text, ok := t["text"].(string); ok {
			return text
		}
		raw, err := json.Marshal(t)
		if err != nil {
			return ""
		}
		return string(raw)
	case nil:
		return ""
	default:
		return fmt.Sprint(t)
	}
}
