package llm

import (
	"context"
	"fmt"
	"strings"
)

const ProviderTemplate = "template"

// TemplateGenerator answers without a model. The reply restates the
// specialist's role line and the context block of the prompt, which keeps
// the system usable (and deterministic) when no API key is configured.
type TemplateGenerator struct{}

// Generate implements Generator
func (TemplateGenerator) Generate(ctx context.Context, instruction, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	role := firstLine(instruction)
	if role == "" {
		role = "Customer support"
	}
	return fmt.Sprintf("%s\n\n%s", role, strings.TrimSpace(prompt)), nil
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return strings.TrimSpace(s)
}
