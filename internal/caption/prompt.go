package caption

import (
	"fmt"
	"strings"

	"github.com/captionstudio/captionstudio/internal/platforms"
)

// SystemInstruction is sent alongside every generation request.
const SystemInstruction = "You are a social media content expert specializing in creating engaging captions."

// BuildPrompt assembles the instruction text for one generation request.
// It is pure: the same context and platform list always produce the same
// prompt, so the builder is unit-testable without touching the model.
func BuildPrompt(context string, requested []platforms.Platform) string {
	var b strings.Builder

	b.WriteString("Analyze the image and the provided context to create platform-specific captions.\n\n")

	if context = strings.TrimSpace(context); context != "" {
		fmt.Fprintf(&b, "Additional context about the image: %s\n\n", context)
	} else {
		b.WriteString("No additional context provided.\n\n")
	}

	keys := make([]string, 0, len(requested))
	for _, p := range requested {
		keys = append(keys, platforms.GuidelineFor(p).Key)
	}
	fmt.Fprintf(&b, "IMPORTANT: Generate captions ONLY for these platforms: %s.\n", strings.Join(keys, ", "))
	b.WriteString("Respond ONLY with a valid JSON object in exactly this format, no other text:\n\n{\n")

	for i, p := range requested {
		g := platforms.GuidelineFor(p)
		fmt.Fprintf(&b, "%q: {\n", g.Key)
		fmt.Fprintf(&b, "  \"caption\": \"Your %s caption here\"", p)
		if g.WantsHashtags {
			b.WriteString(",\n  \"hashtags\": [\"relevant\", \"hashtags\", \"here\"]")
		}
		b.WriteString("\n}")
		if i < len(requested)-1 {
			b.WriteString(",")
		}
		b.WriteString("\n")
	}
	b.WriteString("}\n\nGuidelines for each platform:\n")

	for _, p := range requested {
		g := platforms.GuidelineFor(p)
		fmt.Fprintf(&b, "- %s: %s", p, g.Tone)
		if g.MaxLength > 0 {
			fmt.Fprintf(&b, " (keep under %d characters)", g.MaxLength)
		}
		fmt.Fprintf(&b, "; %s\n", g.Emoji)
	}

	b.WriteString("\nDo not include any markdown, formatting, or additional text outside the JSON structure.")
	return b.String()
}
