package batch

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

const QuestionDelimiter = "====="

// LoadQuestions reads a question list. .yaml/.yml files hold a list of
// strings; anything else is split on the ===== delimiter.
func LoadQuestions(path string) ([]string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read questions: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		var questions []string
		if err := yaml.Unmarshal(raw, &questions); err != nil {
			return nil, fmt.Errorf("parse questions %q: %w", path, err)
		}
		return cleanQuestions(questions), nil
	default:
		return SplitQuestions(string(raw)), nil
	}
}

// SplitQuestions splits on the delimiter, removes newlines inside each
// question and drops blanks.
func SplitQuestions(text string) []string {
	return cleanQuestions(strings.Split(text, QuestionDelimiter))
}

func cleanQuestions(parts []string) []string {
	questions := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.NewReplacer("\r", "", "\n", "").Replace(part)
		part = strings.TrimSpace(part)
		if part != "" {
			questions = append(questions, part)
		}
	}
	return questions
}

func ReadTableDescription(path string) (string, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read table description: %w", err)
	}
	return string(raw), nil
}
