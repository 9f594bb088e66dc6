package agent

import (
	"strings"

	"github.com/jllopis/crewsum/pkg/core"
)

// systemPrompt renders the persona and output contract for one task.
func (a *Agent) systemPrompt(task core.RenderedTask) string {
	var b strings.Builder
	b.WriteString("You are ")
	b.WriteString(strings.TrimSpace(a.spec.Role))
	b.WriteString(".\n")
	writeSection(&b, "Your goal", a.spec.Goal)
	writeSection(&b, "Background", a.spec.Backstory)
	writeSection(&b, "Expected output", task.ExpectedOutput)
	b.WriteString("\nWork on your own; do not hand the task to anyone else.")
	return b.String()
}

func writeSection(b *strings.Builder, title, body string) {
	body = strings.TrimSpace(body)
	if body == "" {
		return
	}
	b.WriteString("\n")
	b.WriteString(title)
	b.WriteString(":\n")
	b.WriteString(body)
	b.WriteString("\n")
}
