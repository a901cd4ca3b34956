package services

import (
	"testing"

	"github.com/botlog/backend/internal/models"
)

func TestIsInTrainingData(t *testing.T) {
	ds := NewDataService(newTestDB(t))

	if err := ds.CreateExample("default", &models.TrainingExample{
		Text: "hello there", Intent: "greet",
	}); err != nil {
		t.Fatalf("failed to create example: %v", err)
	}

	tests := []struct {
		name    string
		project string
		text    string
		want    bool
	}{
		{"curated example", "default", "hello there", true},
		{"raw-intent message", "default", "/restart", true},
		{"unknown text", "default", "hello friend", false},
		{"example from another project", "other", "hello there", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ds.IsInTrainingData(tt.project, tt.text, TextHash(tt.text))
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("IsInTrainingData(%q) = %v, want %v", tt.text, got, tt.want)
			}
		})
	}
}

func TestCreateExampleComputesHash(t *testing.T) {
	ds := NewDataService(newTestDB(t))

	example := &models.TrainingExample{Text: "book a table", Intent: "book_table"}
	if err := ds.CreateExample("default", example); err != nil {
		t.Fatalf("failed to create example: %v", err)
	}
	if example.Hash != TextHash("book a table") {
		t.Errorf("example hash %q does not match the text hash", example.Hash)
	}

	got, err := ds.ExampleByHash("default", example.Hash)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.ID != example.ID {
		t.Fatalf("expected the created example back, got %+v", got)
	}
}

func TestDeleteExample(t *testing.T) {
	ds := NewDataService(newTestDB(t))

	deleted, err := ds.DeleteExample("default", 7)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted {
		t.Error("deleting an unknown example should report false")
	}

	example := &models.TrainingExample{Text: "goodbye", Intent: "bye"}
	if err := ds.CreateExample("default", example); err != nil {
		t.Fatalf("failed to create example: %v", err)
	}

	// Project scoping guards the delete.
	deleted, err = ds.DeleteExample("other", example.ID)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted {
		t.Error("an example must not be deletable through another project")
	}

	deleted, err = ds.DeleteExample("default", example.ID)
	if err != nil || !deleted {
		t.Fatalf("failed to delete: deleted=%v err=%v", deleted, err)
	}
}

func TestListExamples(t *testing.T) {
	ds := NewDataService(newTestDB(t))

	for _, text := range []string{"one", "two", "three"} {
		if err := ds.CreateExample("default", &models.TrainingExample{Text: text, Intent: "count"}); err != nil {
			t.Fatalf("failed to create example %q: %v", text, err)
		}
	}

	examples, total, err := ds.ListExamples("default", 2, 0)
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if total != 3 {
		t.Errorf("expected total 3, got %d", total)
	}
	if len(examples) != 2 || examples[0].Text != "three" {
		t.Errorf("expected a newest-first page of 2, got %+v", examples)
	}

	examples, total, err = ds.ListExamples("default", 2, 2)
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if total != 3 || len(examples) != 1 || examples[0].Text != "one" {
		t.Errorf("expected the last page, got %+v (total %d)", examples, total)
	}
}
