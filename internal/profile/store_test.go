package profile

import (
	"errors"
	"testing"
)

func validCustom(id string) Profile {
	return Profile{
		ID:                 id,
		Name:               "Custom " + id,
		Description:        "custom profile",
		SystemPrompt:       "You are helpful",
		UserPromptTemplate: "Do this: {transcription}",
	}
}

func TestStoreListOrder(t *testing.T) {
	s := NewStore()
	if err := s.Upsert(validCustom("zz_custom")); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := s.Upsert(validCustom("aa_custom")); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	all := s.List()
	if len(all) != 8 {
		t.Fatalf("expected 8 profiles, got %d", len(all))
	}
	for i := 0; i < 6; i++ {
		if !all[i].IsBuiltIn {
			t.Fatalf("expected built-ins first, position %d is %q", i, all[i].ID)
		}
	}
	if all[6].ID != "aa_custom" || all[7].ID != "zz_custom" {
		t.Fatalf("custom profiles not ordered by id: %q, %q", all[6].ID, all[7].ID)
	}
}

func TestStoreGetNotFound(t *testing.T) {
	s := NewStore()
	if _, err := s.Get("nope"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStoreUpsertRejectsBuiltInID(t *testing.T) {
	s := NewStore()
	p := validCustom("professional")
	if err := s.Upsert(p); !errors.Is(err, ErrProtected) {
		t.Fatalf("expected ErrProtected, got %v", err)
	}
}

func TestStoreUpsertSetsTimestamps(t *testing.T) {
	s := NewStore()
	if err := s.Upsert(validCustom("custom_1")); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	created, err := s.Get("custom_1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if created.CreatedAt == nil || created.UpdatedAt == nil {
		t.Fatal("expected timestamps on new custom profile")
	}

	update := validCustom("custom_1")
	update.Name = "Renamed"
	if err := s.Upsert(update); err != nil {
		t.Fatalf("upsert update: %v", err)
	}
	updated, _ := s.Get("custom_1")
	if updated.Name != "Renamed" {
		t.Fatalf("update not applied: %q", updated.Name)
	}
	if updated.CreatedAt == nil || !updated.CreatedAt.Equal(*created.CreatedAt) {
		t.Fatal("CreatedAt must survive updates")
	}
}

func TestStoreUpsertValidates(t *testing.T) {
	s := NewStore()
	p := validCustom("custom_1")
	p.UserPromptTemplate = "no token here"
	err := s.Upsert(p)
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("expected ValidationError, got %v", err)
	}
	if _, err := s.Get("custom_1"); !errors.Is(err, ErrNotFound) {
		t.Fatal("invalid profile must not be stored")
	}
}

func TestStoreDeleteBuiltInProtected(t *testing.T) {
	s := NewStore()
	if err := s.Delete(PassthroughID); !errors.Is(err, ErrProtected) {
		t.Fatalf("expected ErrProtected, got %v", err)
	}
	if err := s.Delete("email"); !errors.Is(err, ErrProtected) {
		t.Fatalf("expected ErrProtected, got %v", err)
	}
}

func TestStoreDelete(t *testing.T) {
	s := NewStore()
	if err := s.Delete("missing"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	if err := s.Upsert(validCustom("custom_1")); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := s.Delete("custom_1"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	if _, err := s.Get("custom_1"); !errors.Is(err, ErrNotFound) {
		t.Fatal("profile still present after delete")
	}
}

func TestReplaceCustomDropsInvalidAndShadowing(t *testing.T) {
	s := NewStore()
	bad := validCustom("bad")
	bad.UserPromptTemplate = "missing token"
	shadow := validCustom("notes")

	s.ReplaceCustom([]Profile{validCustom("ok"), bad, shadow})

	if _, err := s.Get("ok"); err != nil {
		t.Fatalf("valid profile dropped: %v", err)
	}
	if _, err := s.Get("bad"); !errors.Is(err, ErrNotFound) {
		t.Fatal("invalid profile kept")
	}
	got, _ := s.Get("notes")
	if !got.IsBuiltIn {
		t.Fatal("built-in shadowed by custom profile")
	}
}
