package generate

import (
	"encoding/json"
	"fmt"
	"strings"

	"hirebot/portrait-service/internal/feedback"
	"hirebot/portrait-service/internal/portrait"
)

const promptTemplate = `You are an expert technical recruiter maintaining job portraits: structured search profiles used to screen candidates for a position.

The current portrait for job %q is:

%s

Human reviewers filed the following corrections after candidate screenings:

%s

Revise the portrait so the corrections are addressed. Keep everything that was not criticised.

Return your result as a single JSON object with exactly these keys and no others:

{
  "position": string,
  "background": string,
  "requirements": string,
  "keywords": [string],
  "drillQuestions": [string],
  "filterRules": [string],
  "notifyTarget": string,
  "active": boolean
}

Return only valid JSON. Do not include explanations, markdown, or text before or after the JSON.`

// buildPrompt renders the draft prompt from the current fields and the open
// feedback payloads.
func buildPrompt(baseID string, current portrait.Fields, open []feedback.Item) (string, error) {
	currentJSON, err := json.MarshalIndent(current, "", "  ")
	if err != nil {
		return "", fmt.Errorf("marshal current fields: %w", err)
	}

	var notes strings.Builder
	if len(open) == 0 {
		notes.WriteString("(none)")
	}
	for i, it := range open {
		fmt.Fprintf(&notes, "%d. candidate %s: %s\n", i+1, it.CandidateRef, string(it.Payload))
	}

	return fmt.Sprintf(promptTemplate, baseID, currentJSON, notes.String()), nil
}

// CleanJSON strips markdown code fences the model sometimes wraps around its
// JSON output.
func CleanJSON(input string) string {
	clean := strings.TrimSpace(input)

	if strings.HasPrefix(clean, "```json") {
		clean = strings.TrimPrefix(clean, "```json")
	} else if strings.HasPrefix(clean, "```") {
		clean = strings.TrimPrefix(clean, "```")
	}
	clean = strings.TrimLeft(clean, "\r\n")
	clean = strings.TrimSuffix(clean, "```")

	return strings.TrimSpace(clean)
}
