package storage

import (
	"context"
	"errors"
	"testing"
)

func TestDocumentRepo_UpsertAndGet(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	c := seedCollection(t, NewCollectionRepo(db), "physics")
	repo := NewDocumentRepo(db)

	doc := &DocumentRecord{
		CollectionID: c.ID,
		SourceID:     "mechanics.pdf",
		Path:         "/uploads/mechanics.pdf",
		Hash:         "h1",
		Pages:        12,
		ChunkCount:   30,
		ParsedBy:     "semantic-percentile",
	}
	if err := repo.Upsert(ctx, doc); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}

	doc.Hash = "h2"
	doc.ChunkCount = 25
	if err := repo.Upsert(ctx, doc); err != nil {
		t.Fatalf("Upsert() update error = %v", err)
	}

	got, err := repo.Get(ctx, c.ID, "mechanics.pdf")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Hash != "h2" || got.ChunkCount != 25 || got.Pages != 12 {
		t.Errorf("Get() = %+v, want updated record", got)
	}
	if got.IngestedAt.IsZero() {
		t.Error("Get() IngestedAt should be set")
	}

	docs, err := repo.ListByCollection(ctx, c.ID)
	if err != nil {
		t.Fatalf("ListByCollection() error = %v", err)
	}
	if len(docs) != 1 {
		t.Errorf("ListByCollection() = %d documents, want 1", len(docs))
	}
}

func TestDocumentRepo_GetNotFound(t *testing.T) {
	db := newTestDB(t)
	c := seedCollection(t, NewCollectionRepo(db), "physics")

	_, err := NewDocumentRepo(db).Get(context.Background(), c.ID, "missing.pdf")
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() error = %v, want ErrNotFound", err)
	}
}

func TestDocumentRepo_Delete(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	c := seedCollection(t, NewCollectionRepo(db), "physics")
	repo := NewDocumentRepo(db)

	if err := repo.Upsert(ctx, &DocumentRecord{CollectionID: c.ID, SourceID: "a.pdf", Path: "a.pdf", Hash: "h", ParsedBy: "p"}); err != nil {
		t.Fatalf("Upsert() error = %v", err)
	}
	if err := repo.Delete(ctx, c.ID, "a.pdf"); err != nil {
		t.Fatalf("Delete() error = %v", err)
	}
	if _, err := repo.Get(ctx, c.ID, "a.pdf"); !errors.Is(err, ErrNotFound) {
		t.Errorf("Get() after delete error = %v, want ErrNotFound", err)
	}
}

func TestDocumentRepo_UnknownCollection(t *testing.T) {
	repo := NewDocumentRepo(newTestDB(t))

	err := repo.Upsert(context.Background(), &DocumentRecord{CollectionID: 999, SourceID: "a.pdf", Path: "a", Hash: "h", ParsedBy: "p"})
	if err == nil {
		t.Error("Upsert() expected foreign key error for unknown collection")
	}
}
