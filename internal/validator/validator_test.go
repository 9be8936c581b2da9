package validator

import (
	"strings"
	"testing"

	"github.com/ai-evaluator/testtaker/internal/model"
)

func TestCheckTestDefinition(t *testing.T) {
	valid := model.Test{
		ID:        "t1",
		Title:     "Biology",
		TimeLimit: 10,
		Questions: []model.Question{
			{Text: "Which organelle makes ATP?", Type: model.QuestionTypeMCQ, Options: []string{"Nucleus", "Mitochondria"}},
			{Text: "Explain osmosis.", Type: model.QuestionTypeParagraph},
		},
	}
	if fields := Check(valid); fields != nil {
		t.Fatalf("valid test rejected: %v", fields)
	}

	tests := []struct {
		name  string
		test  model.Test
		field string
	}{
		{name: "no questions", test: model.Test{ID: "t1", Title: "Empty"}, field: "questions"},
		{name: "negative time limit", test: model.Test{ID: "t1", Title: "Neg", TimeLimit: -1, Questions: valid.Questions}, field: "time_limit"},
		{name: "mcq without options", test: model.Test{ID: "t1", Title: "Bad", Questions: []model.Question{{Text: "Pick"}}}, field: "options"},
		{name: "unknown type", test: model.Test{ID: "t1", Title: "Bad", Questions: []model.Question{{Text: "Pick", Type: "essay", Options: []string{"a"}}}}, field: "type"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			fields := Check(tc.test)
			if fields == nil {
				t.Fatal("expected validation errors")
			}
			found := false
			for k := range fields {
				if strings.HasSuffix(k, tc.field) {
					found = true
				}
			}
			if !found {
				t.Fatalf("no error for %q in %v", tc.field, fields)
			}
		})
	}
}

func TestSummaryIsStable(t *testing.T) {
	got := Summary(map[string]string{"b": "second", "a": "first"})
	if got != "first; second" {
		t.Fatalf("Summary = %q", got)
	}
}
