package external

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/vcf-dupe/internal/contact"
	"github.com/sells-group/vcf-dupe/internal/merge"
)

// adviceInstructions is the constant system prompt shared by both LLM
// backends.
const adviceInstructions = `You help deduplicate an address book. You are shown two vCard contacts, A and B.
Decide whether they describe the same person and, if so, which side holds the
more complete or accurate value for each field.

Reply with a single JSON object and nothing else:
{
  "duplicate": true or false,
  "confidence": number between 0 and 1 for your decision,
  "preferences": {"FN": "a" or "b", "EMAIL": "a" or "b", ...},
  "reasoning": "one or two sentences"
}
Only list fields in "preferences" where one side is clearly better.`

// promptFields are shown to the model, in this order.
var promptFields = []string{
	contact.FieldFormattedName, contact.FieldName, contact.FieldEmail, contact.FieldTelephone,
	contact.FieldAddress, "ORG", "TITLE", "NOTE",
}

// describe renders the fields of r that matter for identity, one per line.
func describe(r *contact.Record) string {
	var b strings.Builder
	for _, name := range promptFields {
		for _, v := range r.Values(name) {
			if v = strings.TrimSpace(v); v != "" {
				fmt.Fprintf(&b, "%s: %s\n", name, v)
			}
		}
	}
	if b.Len() == 0 {
		return "(no identifying fields)\n"
	}
	return b.String()
}

// pairPrompt is the user message for one pair. A negative score is left out.
func pairPrompt(a, b *contact.Record, score float64) string {
	var sb strings.Builder
	sb.WriteString("Contact A:\n")
	sb.WriteString(describe(a))
	sb.WriteString("\nContact B:\n")
	sb.WriteString(describe(b))
	if score >= 0 {
		fmt.Fprintf(&sb, "\nLocal similarity score: %.2f\n", score)
	}
	return sb.String()
}

type adviceJSON struct {
	Duplicate   bool              `json:"duplicate"`
	Confidence  *float64          `json:"confidence"`
	Preferences map[string]string `json:"preferences"`
	Reasoning   string            `json:"reasoning"`
}

// parseAdvice reads the model's JSON reply. Surrounding prose and code
// fences are ignored.
func parseAdvice(text string) (Advice, error) {
	start, end := strings.Index(text, "{"), strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return Advice{}, eris.Errorf("external: no JSON object in reply %q", truncate(text, 120))
	}

	var raw adviceJSON
	if err := json.Unmarshal([]byte(text[start:end+1]), &raw); err != nil {
		return Advice{}, eris.Wrap(err, "external: decode advice")
	}
	if raw.Confidence == nil {
		return Advice{}, eris.New("external: advice has no confidence")
	}

	adv := Advice{
		Duplicate:  raw.Duplicate,
		Confidence: min(max(*raw.Confidence, 0), 1),
		Reasoning:  strings.TrimSpace(raw.Reasoning),
	}
	for field, side := range raw.Preferences {
		field = strings.ToUpper(strings.TrimSpace(field))
		switch strings.ToLower(strings.TrimSpace(side)) {
		case "a", "vcard1":
			adv.prefer(field, merge.SideA)
		case "b", "vcard2":
			adv.prefer(field, merge.SideB)
		}
	}
	return adv, nil
}

func (a *Advice) prefer(field string, side merge.Side) {
	if a.Preferences == nil {
		a.Preferences = make(merge.Preferences)
	}
	a.Preferences[field] = side
}

func truncate(s string, n int) string {
	if r := []rune(s); len(r) > n {
		return string(r[:n]) + "..."
	}
	return s
}
