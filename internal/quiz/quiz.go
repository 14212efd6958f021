package quiz

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
)

type questionsFile struct {
	Questions map[string]string `json:"questions"`
	Answers   map[string]string `json:"answers"`
}

// LoadQuestionsAndAnswers reads the quiz file. Every question text is
// prefixed with its key, so "q1" -> "Capital of France?" becomes
// "q1: Capital of France?". Answers are returned unchanged.
func LoadQuestionsAndAnswers(path string) (map[string]string, map[string]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, nil, err
	}

	var f questionsFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, nil, fmt.Errorf("failed to parse questions %s: %w", path, err)
	}

	questions := make(map[string]string, len(f.Questions))
	for k, v := range f.Questions {
		questions[k] = k + ": " + v
	}
	answers := f.Answers
	if answers == nil {
		answers = map[string]string{}
	}
	return questions, answers, nil
}

// Keys returns the question keys in sorted order.
func Keys(questions map[string]string) []string {
	keys := make([]string, 0, len(questions))
	for k := range questions {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
