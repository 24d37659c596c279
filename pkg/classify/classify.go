// Package classify provides keyword-based classification of memory text.
//
// Classification is a pluggable strategy: callers hold a Classifier function
// and may swap in their own without touching ingestion logic. A text that
// matches no known keyword falls into the "general" bucket; classification
// never fails and never blocks ingestion.
package classify

import "strings"

// GeneralClass is the bucket for text that matches no known keyword.
const GeneralClass = "general"

// Classifier maps free text to a classification tag.
type Classifier func(text string) string

// Error classification tags.
const (
	ErrorSyntax     = "syntax"
	ErrorImport     = "import"
	ErrorNetwork    = "network"
	ErrorPermission = "permission"
	ErrorMemory     = "memory"
	ErrorType       = "type"
)

// Task classification tags.
const (
	TaskFeature  = "feature"
	TaskBugfix   = "bugfix"
	TaskRefactor = "refactor"
	TaskTest     = "test"
	TaskDocs     = "docs"
)

// errorKeywords maps error classes to their trigger keywords. Order matters:
// more specific classes are checked before broader ones ("type" last, since
// the word appears in many unrelated messages).
var errorKeywords = []struct {
	class    string
	keywords []string
}{
	{ErrorSyntax, []string{"syntax", "parse error", "unexpected token", "unexpected eof", "indentation"}},
	{ErrorImport, []string{"import", "module not found", "cannot find package", "no module named"}},
	{ErrorNetwork, []string{"connection", "timeout", "timed out", "network", "dns", "refused", "unreachable"}},
	{ErrorPermission, []string{"permission", "access denied", "forbidden", "unauthorized", "eacces"}},
	{ErrorMemory, []string{"out of memory", "oom", "memory leak", "allocation failed", "segmentation fault"}},
	{ErrorType, []string{"type error", "typeerror", "cannot convert", "mismatched types", "incompatible type", "nil pointer", "null pointer"}},
}

var taskKeywords = []struct {
	class    string
	keywords []string
}{
	{TaskTest, []string{"test", "coverage", "assertion"}},
	{TaskDocs, []string{"document", "docs", "readme", "changelog"}},
	{TaskRefactor, []string{"refactor", "restructure", "clean up", "cleanup", "rename", "extract"}},
	{TaskBugfix, []string{"fix", "bug", "patch", "resolve", "regression", "hotfix"}},
	{TaskFeature, []string{"implement", "add", "create", "build", "introduce", "support"}},
}

// Error classifies an error message into the error taxonomy.
// Unmatched text gets GeneralClass.
func Error(text string) string {
	return classifyByKeywords(text, errorKeywords)
}

// Task classifies a task description into the task taxonomy.
// Unmatched text gets GeneralClass.
func Task(text string) string {
	return classifyByKeywords(text, taskKeywords)
}

func classifyByKeywords(text string, table []struct {
	class    string
	keywords []string
}) string {
	lowered := strings.ToLower(text)
	for _, entry := range table {
		for _, keyword := range entry.keywords {
			if strings.Contains(lowered, keyword) {
				return entry.class
			}
		}
	}
	return GeneralClass
}
