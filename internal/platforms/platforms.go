package platforms

import "strings"

// Platform is a supported social network target.
type Platform string

const (
	Instagram Platform = "Instagram"
	Twitter   Platform = "Twitter"
	Facebook  Platform = "Facebook"
	LinkedIn  Platform = "LinkedIn"
)

// All lists every supported platform in display order.
var All = []Platform{Instagram, Twitter, Facebook, LinkedIn}

// Guideline holds the static style metadata used to build the model prompt.
type Guideline struct {
	// Key is the JSON key the model must use for this platform's block.
	Key string
	// Tone is a short style direction line.
	Tone string
	// MaxLength is the caption length ceiling in characters (0 = no ceiling).
	MaxLength int
	// Emoji describes expected emoji density.
	Emoji string
	// WantsHashtags marks platforms whose block must include a hashtags array.
	WantsHashtags bool
}

var guidelines = map[Platform]Guideline{
	Instagram: {
		Key:           "instagram",
		Tone:          "Casual, trendy tone with relevant hashtags",
		MaxLength:     2200,
		Emoji:         "a few emojis are welcome",
		WantsHashtags: true,
	},
	Twitter: {
		Key:       "twitter",
		Tone:      "Concise, within 280 characters",
		MaxLength: 280,
		Emoji:     "at most one emoji",
	},
	Facebook: {
		Key:       "facebook",
		Tone:      "Conversational and engaging, can be longer",
		MaxLength: 0,
		Emoji:     "emojis optional",
	},
	LinkedIn: {
		Key:       "linkedin",
		Tone:      "Professional and business-focused",
		MaxLength: 3000,
		Emoji:     "avoid emojis",
	},
}

// GuidelineFor returns the prompt guideline for p.
func GuidelineFor(p Platform) Guideline {
	return guidelines[p]
}

// Normalize maps a user-supplied platform name to its canonical Platform.
func Normalize(name string) (Platform, bool) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "instagram":
		return Instagram, true
	case "twitter":
		return Twitter, true
	case "facebook":
		return Facebook, true
	case "linkedin":
		return LinkedIn, true
	}
	return "", false
}

// NormalizeAll normalizes a list of names, dropping duplicates and unknown
// entries while preserving first-seen order.
func NormalizeAll(names []string) []Platform {
	seen := make(map[Platform]bool, len(names))
	var out []Platform
	for _, n := range names {
		p, ok := Normalize(n)
		if !ok || seen[p] {
			continue
		}
		seen[p] = true
		out = append(out, p)
	}
	return out
}
