package generate

import (
	"strings"

	justcopy "github.com/anupsingh-ai/justcopy-ai-ide"
)

// Intent is the coarse category of a chat message.
type Intent string

const (
	IntentCreate  Intent = "create"
	IntentModify  Intent = "modify"
	IntentDelete  Intent = "delete"
	IntentRead    Intent = "read"
	IntentGeneral Intent = "general"
)

// Classifier assigns an Intent to a user message.
type Classifier interface {
	Classify(message string) Intent
}

var (
	createWords = []string{"create", "make", "build", "generate"}
	modifyWords = []string{"modify", "change", "update", "edit", "fix"}
	deleteWords = []string{"delete", "remove"}
	readWords   = []string{"show", "list", "display"}
)

// KeywordClassifier matches case-insensitive substrings. Categories are
// checked in the order create, modify, delete, read; the first hit wins.
type KeywordClassifier struct{}

// Classify implements Classifier.
func (KeywordClassifier) Classify(message string) Intent {
	lower := strings.ToLower(message)
	switch {
	case containsAny(lower, createWords):
		return IntentCreate
	case containsAny(lower, modifyWords):
		return IntentModify
	case containsAny(lower, deleteWords):
		return IntentDelete
	case containsAny(lower, readWords):
		return IntentRead
	default:
		return IntentGeneral
	}
}

func containsAny(s string, words []string) bool {
	for _, w := range words {
		if strings.Contains(s, w) {
			return true
		}
	}
	return false
}

// ExtractFileOperations infers the files to create from the user message
// once the message has been classified as IntentCreate. The model response
// is accepted but not inspected. At most one CREATE operation is produced;
// other intents produce none.
func ExtractFileOperations(intent Intent, aiResponse, userMessage string) []justcopy.InferredFileOperation {
	if intent != IntentCreate {
		return []justcopy.InferredFileOperation{}
	}
	lower := strings.ToLower(userMessage)

	var path, desc string
	switch {
	case strings.Contains(lower, "python"):
		path, desc = "main.py", "Creating Python file based on request"
	case strings.Contains(lower, "react") || strings.Contains(lower, "javascript"):
		path, desc = "App.js", "Creating React/JavaScript file based on request"
	case strings.Contains(lower, "html") || strings.Contains(lower, "web"):
		path, desc = "index.html", "Creating HTML file based on request"
	default:
		path, desc = "new_file.txt", "Creating file based on request"
	}

	return []justcopy.InferredFileOperation{{
		Operation:   justcopy.OperationCreate,
		FilePath:    path,
		Description: desc,
	}}
}
