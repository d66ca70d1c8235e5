package storage

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"voxpost/internal/profile"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	dsn := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(context.Background(), "sqlite", dsn, true, "")
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestInsertAndRecentTranscriptions(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	base := time.Date(2026, 8, 27, 12, 0, 0, 0, time.UTC)
	processed := "Polished text."
	records := []Transcription{
		{RawText: "first raw", ProfileID: "raw", CreatedAt: base},
		{RawText: "second raw", ProcessedText: &processed, ProfileID: "professional", Model: "llama3.2", CreatedAt: base.Add(time.Minute)},
		{RawText: "third raw", ProfileID: "raw", CreatedAt: base.Add(2 * time.Minute)},
	}
	for _, r := range records {
		if err := s.InsertTranscription(ctx, r); err != nil {
			t.Fatalf("insert: %v", err)
		}
	}

	got, err := s.RecentTranscriptions(ctx, 2)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 2 {
		t.Fatalf("expected 2 records, got %d", len(got))
	}
	if got[0].RawText != "third raw" || got[1].RawText != "second raw" {
		t.Fatalf("unexpected ordering: %q, %q", got[0].RawText, got[1].RawText)
	}
	if got[0].ProcessedText != nil {
		t.Fatal("passthrough record must keep processed_text NULL")
	}
	if got[1].ProcessedText == nil || *got[1].ProcessedText != processed {
		t.Fatalf("processed record lost its text: %v", got[1].ProcessedText)
	}
	if got[1].Model != "llama3.2" {
		t.Fatalf("unexpected model %q", got[1].Model)
	}
}

func TestRecentTranscriptionsDefaultLimit(t *testing.T) {
	s := openTestStore(t)
	got, err := s.RecentTranscriptions(context.Background(), 0)
	if err != nil {
		t.Fatalf("recent: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("expected empty history, got %d", len(got))
	}
}

func TestCustomProfileRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	timeout := 20
	streaming := true
	temp := 0.7
	p := profile.Profile{
		ID:                 "meeting_minutes",
		Name:               "Meeting Minutes",
		Description:        "Structured minutes",
		SystemPrompt:       "You write minutes.",
		UserPromptTemplate: "Minutes:\n\n{transcription}",
		TimeoutSeconds:     &timeout,
		Streaming:          &streaming,
		Temperature:        &temp,
	}
	if err := s.UpsertCustomProfile(ctx, p); err != nil {
		t.Fatalf("upsert: %v", err)
	}

	got, err := s.ListCustomProfiles(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("expected 1 profile, got %d", len(got))
	}
	loaded := got[0]
	if loaded.ID != p.ID || loaded.Name != p.Name || loaded.UserPromptTemplate != p.UserPromptTemplate {
		t.Fatalf("unexpected profile %+v", loaded)
	}
	if loaded.TimeoutSeconds == nil || *loaded.TimeoutSeconds != 20 {
		t.Fatalf("timeout override lost: %v", loaded.TimeoutSeconds)
	}
	if loaded.Streaming == nil || !*loaded.Streaming {
		t.Fatalf("streaming flag lost: %v", loaded.Streaming)
	}
	if loaded.Temperature == nil || *loaded.Temperature != 0.7 {
		t.Fatalf("temperature lost: %v", loaded.Temperature)
	}
	if loaded.TopP != nil {
		t.Fatalf("unset top_p must stay nil, got %v", *loaded.TopP)
	}
	if loaded.CreatedAt == nil || loaded.UpdatedAt == nil {
		t.Fatal("timestamps must be populated on load")
	}
}

func TestUpsertCustomProfileUpdatesInPlace(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	p := profile.Profile{
		ID:                 "terse",
		Name:               "Terse",
		Description:        "Short",
		UserPromptTemplate: "Shorten: {transcription}",
	}
	if err := s.UpsertCustomProfile(ctx, p); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	p.Name = "Terse v2"
	if err := s.UpsertCustomProfile(ctx, p); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	got, err := s.ListCustomProfiles(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("upsert must not duplicate rows, got %d", len(got))
	}
	if got[0].Name != "Terse v2" {
		t.Fatalf("update not applied, name is %q", got[0].Name)
	}
}

func TestDeleteCustomProfile(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if err := s.DeleteCustomProfile(ctx, "absent"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	p := profile.Profile{ID: "temp", Name: "Temp", Description: "d", UserPromptTemplate: "X: {transcription}"}
	if err := s.UpsertCustomProfile(ctx, p); err != nil {
		t.Fatalf("upsert: %v", err)
	}
	if err := s.DeleteCustomProfile(ctx, "temp"); err != nil {
		t.Fatalf("delete: %v", err)
	}
	got, err := s.ListCustomProfiles(ctx)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(got) != 0 {
		t.Fatalf("profile not deleted: %v", got)
	}
}
