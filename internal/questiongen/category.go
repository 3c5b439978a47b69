package questiongen

import (
	"strings"

	"github.com/campushire/skillcheck/internal/model"
)

// categoryKeywords is checked in order; the first category with a keyword
// contained in the lowercased skill name wins.
var categoryKeywords = []struct {
	category string
	keywords []string
}{
	{model.CategoryFrontend, []string{"react", "vue", "angular", "javascript", "typescript", "html", "css", "next.js"}},
	{model.CategoryBackend, []string{"node.js", "python", "django", "flask", "java", "spring", "c#", ".net", "php", "ruby"}},
	{model.CategoryDatabase, []string{"mongodb", "postgresql", "mysql", "redis"}},
	{model.CategoryCloud, []string{"aws", "azure", "docker", "kubernetes"}},
}

// Categorize derives the exam category of a skill name.
func Categorize(skillName string) string {
	lower := strings.ToLower(skillName)
	for _, c := range categoryKeywords {
		for _, kw := range c.keywords {
			if strings.Contains(lower, kw) {
				return c.category
			}
		}
	}
	return model.CategoryGeneral
}
