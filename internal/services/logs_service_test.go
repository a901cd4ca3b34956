package services

import (
	"errors"
	"testing"

	"github.com/botlog/backend/internal/config"
	"github.com/botlog/backend/internal/models"
)

func ingest(t *testing.T, ls *LogsService, projectID string, event *models.ParseEvent) *models.MessageLog {
	t.Helper()
	saved, err := ls.IngestParseEvent(projectID, event)
	if err != nil {
		t.Fatalf("failed to ingest %q: %v", event.Text, err)
	}
	return saved
}

func TestIngestRejectsInvalidEvent(t *testing.T) {
	ls := newTestLogsService(newTestDB(t))

	tests := []struct {
		name  string
		event models.ParseEvent
	}{
		{"empty text", models.ParseEvent{}},
		{"confidence above one", models.ParseEvent{
			Text:   "hello",
			Intent: models.RankedIntent{Name: "greet", Confidence: 1.5},
		}},
		{"entity without type", models.ParseEvent{
			Text:     "to berlin",
			Entities: []models.ParsedEntity{{Start: 3, End: 9, Value: "berlin"}},
		}},
		{"inverted entity span", models.ParseEvent{
			Text:     "to berlin",
			Entities: []models.ParsedEntity{{Start: 9, End: 3, Value: "berlin", Entity: "city"}},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ls.IngestParseEvent("default", &tt.event)
			if !errors.Is(err, ErrInvalidParseEvent) {
				t.Errorf("expected ErrInvalidParseEvent, got %v", err)
			}
		})
	}
}

func TestIngestDeduplicatesByHash(t *testing.T) {
	ls := newTestLogsService(newTestDB(t))

	first := ingest(t, ls, "default", &models.ParseEvent{
		Text:   "book me a table",
		Intent: models.RankedIntent{Name: "book_table", Confidence: 0.81},
	})

	second := ingest(t, ls, "default", &models.ParseEvent{
		Text:   "book me a table",
		Intent: models.RankedIntent{Name: "book_table", Confidence: 0.95},
		Model:  "20260801-093214",
	})

	if second.ID != first.ID {
		t.Fatalf("duplicate text created a second row: first ID %d, second ID %d", first.ID, second.ID)
	}
	if !second.Time.Equal(first.Time) {
		t.Errorf("merge changed the original ingestion time: %v -> %v", first.Time, second.Time)
	}
	if second.Confidence != 0.95 {
		t.Errorf("merge kept the stale confidence %f", second.Confidence)
	}
	if second.Model != "20260801-093214" {
		t.Errorf("merge kept the stale model %q", second.Model)
	}

	var count int64
	if err := ls.db.Model(&models.MessageLog{}).Where("hash = ?", first.Hash).Count(&count).Error; err != nil {
		t.Fatalf("failed to count rows: %v", err)
	}
	if count != 1 {
		t.Errorf("expected exactly one row for the hash, found %d", count)
	}
}

func TestIngestSameTextDifferentProjects(t *testing.T) {
	ls := newTestLogsService(newTestDB(t))

	first := ingest(t, ls, "support", &models.ParseEvent{Text: "hello"})
	second := ingest(t, ls, "sales", &models.ParseEvent{Text: "hello"})

	if first.ID == second.ID {
		t.Error("logs are scoped per project; same text in two projects must not merge")
	}
}

func TestIngestAfterArchiveCreatesNewRow(t *testing.T) {
	ls := newTestLogsService(newTestDB(t))

	first := ingest(t, ls, "default", &models.ParseEvent{Text: "goodbye"})
	archived, err := ls.Archive(first.ID)
	if err != nil || !archived {
		t.Fatalf("failed to archive log %d: archived=%v err=%v", first.ID, archived, err)
	}

	second := ingest(t, ls, "default", &models.ParseEvent{Text: "goodbye"})
	if second.ID == first.ID {
		t.Error("archived rows are out of the dedup scope; expected a fresh row")
	}
}

func TestModelResolutionFallbackChain(t *testing.T) {
	gdb := newTestDB(t)
	ls := newTestLogsService(gdb)
	ms := ls.modelService

	// Empty registry: the sentinel name closes the chain.
	saved := ingest(t, ls, "default", &models.ParseEvent{Text: "no models yet"})
	if saved.Model != config.UnavailableModelName {
		t.Fatalf("empty registry should attribute to %q, got %q", config.UnavailableModelName, saved.Model)
	}

	// One registered model, nothing tagged: latest-model fallback.
	if err := ms.RegisterModel("default", &models.NLUModel{Name: "m1"}); err != nil {
		t.Fatalf("failed to register m1: %v", err)
	}
	saved = ingest(t, ls, "default", &models.ParseEvent{Text: "latest fallback"})
	if saved.Model != "m1" {
		t.Fatalf("expected latest model m1, got %q", saved.Model)
	}

	// A second, newer model wins the latest-model fallback.
	if err := ms.RegisterModel("default", &models.NLUModel{Name: "m2"}); err != nil {
		t.Fatalf("failed to register m2: %v", err)
	}
	saved = ingest(t, ls, "default", &models.ParseEvent{Text: "newer latest"})
	if saved.Model != "m2" {
		t.Fatalf("expected latest model m2, got %q", saved.Model)
	}

	// Tagging m1 for the default environment outranks the latest model.
	tagged, err := ms.TagModel("default", "m1", config.DefaultEnvironment)
	if err != nil || !tagged {
		t.Fatalf("failed to tag m1: tagged=%v err=%v", tagged, err)
	}
	saved = ingest(t, ls, "default", &models.ParseEvent{Text: "active model"})
	if saved.Model != "m1" {
		t.Fatalf("expected active model m1, got %q", saved.Model)
	}

	// An explicit model in the event outranks everything.
	saved = ingest(t, ls, "default", &models.ParseEvent{Text: "explicit model", Model: "custom"})
	if saved.Model != "custom" {
		t.Fatalf("expected explicit model custom, got %q", saved.Model)
	}
}

func TestIngestComputesTrainingFlag(t *testing.T) {
	ls := newTestLogsService(newTestDB(t))

	if err := ls.dataService.CreateExample("default", &models.TrainingExample{
		Text: "hello there", Intent: "greet",
	}); err != nil {
		t.Fatalf("failed to create example: %v", err)
	}

	tests := []struct {
		text string
		want bool
	}{
		{"hello there", true},  // matches a curated example by hash
		{"/greet", true},       // raw-intent message
		{"hello friend", false},
	}

	for _, tt := range tests {
		saved := ingest(t, ls, "default", &models.ParseEvent{Text: tt.text})
		if saved.InTrainingData != tt.want {
			t.Errorf("InTrainingData for %q = %v, want %v", tt.text, saved.InTrainingData, tt.want)
		}
	}
}

func TestReplaceLog(t *testing.T) {
	ls := newTestLogsService(newTestDB(t))

	original := ingest(t, ls, "default", &models.ParseEvent{
		Text:   "i wanna order pizza",
		Intent: models.RankedIntent{Name: "order_food", Confidence: 0.41},
	})

	replaced, err := ls.ReplaceLog("default", original.ID, &models.ParseEvent{
		Text:   "i want to order pizza",
		Intent: models.RankedIntent{Name: "order_food", Confidence: 0.93},
	})
	if err != nil {
		t.Fatalf("failed to replace log: %v", err)
	}
	if replaced == nil {
		t.Fatal("replace returned nil for an existing log")
	}
	if replaced.ID != original.ID {
		t.Errorf("replace must keep the row ID, got %d want %d", replaced.ID, original.ID)
	}
	if replaced.Hash == original.Hash {
		t.Error("replacing with new text should produce a new hash")
	}
	if !replaced.Time.Equal(original.Time) {
		t.Error("replace must keep the original ingestion time")
	}

	missing, err := ls.ReplaceLog("default", 99999, &models.ParseEvent{Text: "whatever"})
	if err != nil {
		t.Fatalf("unexpected error for a missing log: %v", err)
	}
	if missing != nil {
		t.Error("replace of an unknown ID should return nil")
	}
}

func TestArchive(t *testing.T) {
	ls := newTestLogsService(newTestDB(t))

	found, err := ls.Archive(42)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if found {
		t.Error("archiving an unknown ID should report false")
	}

	saved := ingest(t, ls, "default", &models.ParseEvent{Text: "archive me"})

	found, err = ls.Archive(saved.ID)
	if err != nil || !found {
		t.Fatalf("first archive: found=%v err=%v", found, err)
	}
	// Idempotent: the row still exists.
	found, err = ls.Archive(saved.ID)
	if err != nil || !found {
		t.Fatalf("second archive: found=%v err=%v", found, err)
	}

	logs, total, err := ls.FetchLogs("default", LogQuery{})
	if err != nil {
		t.Fatalf("failed to fetch logs: %v", err)
	}
	if total != 0 || len(logs) != 0 {
		t.Errorf("archived log still visible: total=%d len=%d", total, len(logs))
	}
}

func TestLogByHash(t *testing.T) {
	ls := newTestLogsService(newTestDB(t))

	saved := ingest(t, ls, "default", &models.ParseEvent{Text: "find me"})

	got, err := ls.LogByHash("default", saved.Hash)
	if err != nil {
		t.Fatalf("failed to look up by hash: %v", err)
	}
	if got == nil || got.ID != saved.ID {
		t.Fatalf("expected log %d, got %+v", saved.ID, got)
	}

	got, err = ls.LogByHash("default", TextHash("never ingested"))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Error("expected nil for an unknown hash")
	}
}

func TestFetchLogsFiltersAndPagination(t *testing.T) {
	ls := newTestLogsService(newTestDB(t))

	ingest(t, ls, "default", &models.ParseEvent{Text: "book a table", Intent: models.RankedIntent{Name: "book_table"}})
	ingest(t, ls, "default", &models.ParseEvent{Text: "book a flight", Intent: models.RankedIntent{Name: "book_flight"}})
	ingest(t, ls, "default", &models.ParseEvent{Text: "book a room", Intent: models.RankedIntent{Name: "book_room"}})
	ingest(t, ls, "default", &models.ParseEvent{Text: "hello", Intent: models.RankedIntent{Name: "greet"}})

	// Text filter with pagination: total counts all matches, the page is
	// cut after counting.
	logs, total, err := ls.FetchLogs("default", LogQuery{
		TextQuery: "book",
		SortBy:    "id",
		SortOrder: "asc",
		Limit:     1,
		Offset:    1,
	})
	if err != nil {
		t.Fatalf("failed to fetch logs: %v", err)
	}
	if total != 3 {
		t.Errorf("expected total 3, got %d", total)
	}
	if len(logs) != 1 || logs[0].Text != "book a flight" {
		t.Errorf("expected the second match, got %+v", logs)
	}

	// Intent filter alone.
	logs, total, err = ls.FetchLogs("default", LogQuery{Intents: []string{"greet", "bye"}})
	if err != nil {
		t.Fatalf("failed to fetch logs: %v", err)
	}
	if total != 1 || len(logs) != 1 || logs[0].Intent != "greet" {
		t.Errorf("intent filter returned %d/%d rows: %+v", len(logs), total, logs)
	}

	// Text and intent filters combine with OR, not AND.
	_, total, err = ls.FetchLogs("default", LogQuery{
		TextQuery: "flight",
		Intents:   []string{"greet"},
	})
	if err != nil {
		t.Fatalf("failed to fetch logs: %v", err)
	}
	if total != 2 {
		t.Errorf("expected OR semantics to match 2 rows, got %d", total)
	}
}

func TestFetchLogsExcludesTrainingData(t *testing.T) {
	ls := newTestLogsService(newTestDB(t))

	if err := ls.dataService.CreateExample("default", &models.TrainingExample{Text: "hello", Intent: "greet"}); err != nil {
		t.Fatalf("failed to create example: %v", err)
	}
	ingest(t, ls, "default", &models.ParseEvent{Text: "hello"})
	ingest(t, ls, "default", &models.ParseEvent{Text: "something new"})

	logs, total, err := ls.FetchLogs("default", LogQuery{ExcludeTrainingData: true})
	if err != nil {
		t.Fatalf("failed to fetch logs: %v", err)
	}
	if total != 1 || len(logs) != 1 {
		t.Fatalf("expected one uncovered log, got %d/%d", len(logs), total)
	}
	if logs[0].Text != "something new" {
		t.Errorf("expected the uncovered log, got %q", logs[0].Text)
	}
}

func TestFetchLogsSortValidation(t *testing.T) {
	ls := newTestLogsService(newTestDB(t))

	_, _, err := ls.FetchLogs("default", LogQuery{SortBy: "hash"})
	if !errors.Is(err, ErrInvalidSortColumn) {
		t.Errorf("expected ErrInvalidSortColumn, got %v", err)
	}

	_, _, err = ls.FetchLogs("default", LogQuery{SortOrder: "descending"})
	if !errors.Is(err, ErrInvalidSortOrder) {
		t.Errorf("expected ErrInvalidSortOrder, got %v", err)
	}

	// The zero query is valid and defaults to newest-first by id.
	if _, _, err := ls.FetchLogs("default", LogQuery{}); err != nil {
		t.Errorf("zero query should be valid, got %v", err)
	}
}

func TestFetchLogsSortOrdering(t *testing.T) {
	ls := newTestLogsService(newTestDB(t))

	ingest(t, ls, "default", &models.ParseEvent{Text: "first"})
	ingest(t, ls, "default", &models.ParseEvent{Text: "second"})

	logs, _, err := ls.FetchLogs("default", LogQuery{SortBy: "text", SortOrder: "asc"})
	if err != nil {
		t.Fatalf("failed to fetch logs: %v", err)
	}
	if len(logs) != 2 || logs[0].Text != "first" || logs[1].Text != "second" {
		t.Errorf("ascending text sort wrong: %+v", logs)
	}

	// Default order is descending by id, so the newest row leads.
	logs, _, err = ls.FetchLogs("default", LogQuery{})
	if err != nil {
		t.Fatalf("failed to fetch logs: %v", err)
	}
	if len(logs) != 2 || logs[0].Text != "second" {
		t.Errorf("default sort should be newest-first: %+v", logs)
	}
}

func TestResyncTrainingFlags(t *testing.T) {
	ls := newTestLogsService(newTestDB(t))

	hello := ingest(t, ls, "default", &models.ParseEvent{Text: "hello"})
	raw := ingest(t, ls, "default", &models.ParseEvent{Text: "/greet"})
	other := ingest(t, ls, "default", &models.ParseEvent{Text: "something else"})

	if hello.InTrainingData || other.InTrainingData {
		t.Fatal("no examples exist yet, flags should start false")
	}
	if !raw.InTrainingData {
		t.Fatal("raw-intent message should be flagged at ingest time")
	}

	// The example arrives after the logs. A resync flips the hello flag.
	if err := ls.dataService.CreateExample("default", &models.TrainingExample{Text: "hello", Intent: "greet"}); err != nil {
		t.Fatalf("failed to create example: %v", err)
	}
	if err := ls.ResyncTrainingFlags("default"); err != nil {
		t.Fatalf("failed to resync: %v", err)
	}

	assertFlags := func() {
		t.Helper()
		var logs []models.MessageLog
		if err := ls.db.Order("id ASC").Find(&logs).Error; err != nil {
			t.Fatalf("failed to load logs: %v", err)
		}
		want := map[string]bool{"hello": true, "/greet": true, "something else": false}
		for _, log := range logs {
			if log.InTrainingData != want[log.Text] {
				t.Errorf("flag for %q = %v, want %v", log.Text, log.InTrainingData, want[log.Text])
			}
		}
	}
	assertFlags()

	// Idempotent: a second run changes nothing.
	if err := ls.ResyncTrainingFlags("default"); err != nil {
		t.Fatalf("failed to resync again: %v", err)
	}
	assertFlags()

	// Deleting the example and resyncing flips hello back to false.
	var example models.TrainingExample
	if err := ls.db.Where("text = ?", "hello").First(&example).Error; err != nil {
		t.Fatalf("failed to load example: %v", err)
	}
	deleted, err := ls.dataService.DeleteExample("default", example.ID)
	if err != nil || !deleted {
		t.Fatalf("failed to delete example: deleted=%v err=%v", deleted, err)
	}
	if err := ls.ResyncTrainingFlags("default"); err != nil {
		t.Fatalf("failed to resync after delete: %v", err)
	}

	got, err := ls.LogByHash("default", TextHash("hello"))
	if err != nil || got == nil {
		t.Fatalf("failed to reload hello log: %v", err)
	}
	if got.InTrainingData {
		t.Error("flag should be cleared once the example is gone")
	}
	got, err = ls.LogByHash("default", TextHash("/greet"))
	if err != nil || got == nil {
		t.Fatalf("failed to reload raw-intent log: %v", err)
	}
	if !got.InTrainingData {
		t.Error("raw-intent messages stay flagged regardless of examples")
	}
}

func TestResyncTrainingFlagsScopedToProject(t *testing.T) {
	ls := newTestLogsService(newTestDB(t))

	ingest(t, ls, "alpha", &models.ParseEvent{Text: "hello"})
	ingest(t, ls, "beta", &models.ParseEvent{Text: "hello"})

	if err := ls.dataService.CreateExample("alpha", &models.TrainingExample{Text: "hello", Intent: "greet"}); err != nil {
		t.Fatalf("failed to create example: %v", err)
	}
	if err := ls.ResyncTrainingFlags("alpha"); err != nil {
		t.Fatalf("failed to resync: %v", err)
	}

	alpha, err := ls.LogByHash("alpha", TextHash("hello"))
	if err != nil || alpha == nil {
		t.Fatalf("failed to reload alpha log: %v", err)
	}
	beta, err := ls.LogByHash("beta", TextHash("hello"))
	if err != nil || beta == nil {
		t.Fatalf("failed to reload beta log: %v", err)
	}
	if !alpha.InTrainingData {
		t.Error("alpha log should be flagged, its project has the example")
	}
	if beta.InTrainingData {
		t.Error("beta log must not be flagged by alpha's example")
	}
}
