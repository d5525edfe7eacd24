package caption

import (
	"encoding/json"
	"strings"

	"github.com/captionstudio/captionstudio/internal/platforms"
)

// Caption is one generated caption for one platform.
type Caption struct {
	Platform platforms.Platform `json:"platform"`
	Text     string             `json:"text"`
}

// PlaceholderText is returned per platform when the model reply cannot be
// parsed (degraded success).
const PlaceholderText = "Unable to generate caption. Please try again."

// platformBlock is one per-platform entry in the model's JSON reply.
type platformBlock struct {
	Caption  string   `json:"caption"`
	Hashtags []string `json:"hashtags"`
}

// StripFences removes a surrounding Markdown code fence (with or without a
// language tag) and trims whitespace. Models sometimes wrap JSON in fences
// even when told not to.
func StripFences(text string) string {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "```") {
		return text
	}
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		text = text[nl+1:]
	} else {
		text = strings.TrimPrefix(text, "```")
	}
	text = strings.TrimSpace(text)
	text = strings.TrimSuffix(text, "```")
	return strings.TrimSpace(text)
}

// ParseResponse parses the cleaned model reply and filters it down to the
// requested platforms. Platforms missing from the reply, or present with an
// empty caption, are simply absent from the result. For Instagram, hashtags
// are appended as a #-prefixed, space-joined paragraph after the caption body.
// Models sometimes answer in a flat list form instead of the keyed object the
// prompt asks for; that shape is accepted too.
func ParseResponse(text string, requested []platforms.Platform) ([]Caption, error) {
	var parsed map[string]platformBlock
	if err := json.Unmarshal([]byte(text), &parsed); err != nil {
		if out, ok := parseListForm(text, requested); ok {
			return out, nil
		}
		return nil, err
	}

	var out []Caption
	for _, p := range requested {
		g := platforms.GuidelineFor(p)
		block, ok := parsed[g.Key]
		if !ok || strings.TrimSpace(block.Caption) == "" {
			continue
		}
		text := block.Caption
		if g.WantsHashtags && len(block.Hashtags) > 0 {
			tags := make([]string, 0, len(block.Hashtags))
			for _, tag := range block.Hashtags {
				tag = strings.TrimSpace(strings.TrimPrefix(tag, "#"))
				if tag == "" {
					continue
				}
				tags = append(tags, "#"+tag)
			}
			if len(tags) > 0 {
				text += "\n\n" + strings.Join(tags, " ")
			}
		}
		out = append(out, Caption{Platform: p, Text: text})
	}
	return out, nil
}

// parseListForm handles the flat reply shape
// {"captions":[{"platform":...,"text":...}]}.
func parseListForm(text string, requested []platforms.Platform) ([]Caption, bool) {
	var parsed struct {
		Captions []struct {
			Platform string `json:"platform"`
			Text     string `json:"text"`
		} `json:"captions"`
	}
	if err := json.Unmarshal([]byte(text), &parsed); err != nil || len(parsed.Captions) == 0 {
		return nil, false
	}

	want := make(map[platforms.Platform]bool, len(requested))
	for _, p := range requested {
		want[p] = true
	}

	var out []Caption
	for _, c := range parsed.Captions {
		p, ok := platforms.Normalize(c.Platform)
		if !ok || !want[p] || strings.TrimSpace(c.Text) == "" {
			continue
		}
		out = append(out, Caption{Platform: p, Text: c.Text})
	}
	return out, true
}

// Placeholders returns one fixed placeholder caption per requested platform.
func Placeholders(requested []platforms.Platform) []Caption {
	out := make([]Caption, 0, len(requested))
	for _, p := range requested {
		out = append(out, Caption{Platform: p, Text: PlaceholderText})
	}
	return out
}
