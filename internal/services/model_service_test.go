package services

import (
	"testing"

	"github.com/botlog/backend/internal/models"
)

func TestModelForTag(t *testing.T) {
	ms := NewModelService(newTestDB(t))

	got, err := ms.ModelForTag("default", "production")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatal("expected nil when nothing is tagged")
	}

	if err := ms.RegisterModel("default", &models.NLUModel{Name: "m1"}); err != nil {
		t.Fatalf("failed to register: %v", err)
	}
	tagged, err := ms.TagModel("default", "m1", "production")
	if err != nil || !tagged {
		t.Fatalf("failed to tag: tagged=%v err=%v", tagged, err)
	}

	got, err = ms.ModelForTag("default", "production")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.Name != "m1" {
		t.Fatalf("expected m1, got %+v", got)
	}

	// Tags are project-scoped.
	got, err = ms.ModelForTag("other", "production")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Error("tag must not leak across projects")
	}
}

func TestTagModelReassignsTag(t *testing.T) {
	ms := NewModelService(newTestDB(t))

	for _, name := range []string{"m1", "m2"} {
		if err := ms.RegisterModel("default", &models.NLUModel{Name: name}); err != nil {
			t.Fatalf("failed to register %s: %v", name, err)
		}
	}

	if tagged, err := ms.TagModel("default", "m1", "production"); err != nil || !tagged {
		t.Fatalf("failed to tag m1: tagged=%v err=%v", tagged, err)
	}
	// Moving the tag replaces the previous assignment instead of violating
	// the (project, tag) uniqueness.
	if tagged, err := ms.TagModel("default", "m2", "production"); err != nil || !tagged {
		t.Fatalf("failed to retag to m2: tagged=%v err=%v", tagged, err)
	}

	got, err := ms.ModelForTag("default", "production")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.Name != "m2" {
		t.Fatalf("expected the tag on m2, got %+v", got)
	}

	var count int64
	if err := ms.db.Model(&models.ModelTag{}).Count(&count).Error; err != nil {
		t.Fatalf("failed to count tags: %v", err)
	}
	if count != 1 {
		t.Errorf("expected one tag row after the move, found %d", count)
	}
}

func TestTagModelUnknownModel(t *testing.T) {
	ms := NewModelService(newTestDB(t))

	tagged, err := ms.TagModel("default", "no-such-model", "production")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if tagged {
		t.Error("tagging an unknown model should report false")
	}
}

func TestLatestModel(t *testing.T) {
	ms := NewModelService(newTestDB(t))

	got, err := ms.LatestModel("default")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got != nil {
		t.Fatal("expected nil for an empty registry")
	}

	for _, name := range []string{"m1", "m2", "m3"} {
		if err := ms.RegisterModel("default", &models.NLUModel{Name: name}); err != nil {
			t.Fatalf("failed to register %s: %v", name, err)
		}
	}

	got, err = ms.LatestModel("default")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got == nil || got.Name != "m3" {
		t.Fatalf("expected m3 as latest, got %+v", got)
	}
}

func TestDeleteModelRemovesTags(t *testing.T) {
	ms := NewModelService(newTestDB(t))

	deleted, err := ms.DeleteModel("default", "missing")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if deleted {
		t.Error("deleting an unknown model should report false")
	}

	if err := ms.RegisterModel("default", &models.NLUModel{Name: "m1"}); err != nil {
		t.Fatalf("failed to register: %v", err)
	}
	if tagged, err := ms.TagModel("default", "m1", "production"); err != nil || !tagged {
		t.Fatalf("failed to tag: tagged=%v err=%v", tagged, err)
	}

	deleted, err = ms.DeleteModel("default", "m1")
	if err != nil || !deleted {
		t.Fatalf("failed to delete: deleted=%v err=%v", deleted, err)
	}

	var count int64
	if err := ms.db.Model(&models.ModelTag{}).Count(&count).Error; err != nil {
		t.Fatalf("failed to count tags: %v", err)
	}
	if count != 0 {
		t.Errorf("expected the tag to be deleted with the model, found %d rows", count)
	}
}

func TestListModelsNewestFirst(t *testing.T) {
	ms := NewModelService(newTestDB(t))

	for _, name := range []string{"m1", "m2"} {
		if err := ms.RegisterModel("default", &models.NLUModel{Name: name}); err != nil {
			t.Fatalf("failed to register %s: %v", name, err)
		}
	}

	listed, err := ms.ListModels("default")
	if err != nil {
		t.Fatalf("failed to list: %v", err)
	}
	if len(listed) != 2 || listed[0].Name != "m2" || listed[1].Name != "m1" {
		t.Errorf("expected newest-first listing, got %+v", listed)
	}
}
