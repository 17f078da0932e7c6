package promptstyle

import "strings"

const marker = "CONTENTAGEN_STYLE_V1"

// ApplySystem prefixes a system prompt with the output discipline every
// pipeline call shares. Applying it twice is a no-op.
func ApplySystem(system string, mode string) string {
	base := strings.TrimSpace(system)
	if base == "" || strings.Contains(base, marker) {
		return base
	}
	mode = strings.ToLower(strings.TrimSpace(mode))

	var b strings.Builder
	b.WriteString(marker)
	b.WriteString("\nYou write on behalf of a brand's content agent.")
	b.WriteString("\nFollow the agent persona and brand rules given below.")
	b.WriteString("\nNever invent product facts, prices or quotes that the inputs do not contain.")
	if mode == "json" {
		b.WriteString("\nRespond with JSON only: no markdown fences and no commentary.")
	} else {
		b.WriteString("\nRespond with the requested text only.")
	}
	b.WriteString("\n---\n")
	b.WriteString(base)
	return b.String()
}
