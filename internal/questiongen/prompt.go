package questiongen

import (
	"fmt"
	"strings"
)

// BuildPrompt renders the generation instructions for a skill.
func BuildPrompt(skillName string, count int) string {
	var sb strings.Builder
	sb.WriteString(fmt.Sprintf("Create a technical skill assessment for %q with exactly %d multiple choice questions.\n", skillName, count))
	sb.WriteString("Each question should test practical knowledge and real-world application.\n\n")
	sb.WriteString("Respond ONLY with a JSON object with this exact structure:\n")
	sb.WriteString(`{"questions": [{"question": "<text>", "options": ["<A>", "<B>", "<C>", "<D>"], "correctAnswer": <0-3>, "explanation": "<why the answer is correct>"}]}`)
	sb.WriteString("\n\nRequirements:\n")
	sb.WriteString(fmt.Sprintf("- %d questions total\n", count))
	sb.WriteString("- Each question has exactly 4 options\n")
	sb.WriteString("- correctAnswer is the index (0-3) of the correct option\n")
	sb.WriteString("- Questions should be practical and test real understanding\n")
	sb.WriteString(fmt.Sprintf("- Difficulty should be appropriate for someone claiming experience in %s\n", skillName))
	sb.WriteString("- Include brief explanations\n\n")
	sb.WriteString("Cover core concepts, best practices, problem-solving scenarios, tooling and performance.\n")
	return sb.String()
}
