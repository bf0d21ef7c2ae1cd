package content

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/sonet/feed-realtime-service/internal/domain/model"
)

func candidate(id string, age time.Duration) model.Candidate {
	return model.Candidate{
		ID:        id,
		AuthorID:  "author-" + id,
		CreatedAt: time.Now().Add(-age),
	}
}

func ids(candidates []model.Candidate) []string {
	out := make([]string, len(candidates))
	for i, c := range candidates {
		out[i] = c.ID
	}
	return out
}

func TestAdd(t *testing.T) {
	t.Run("NewestFirst", func(t *testing.T) {
		store := NewMemoryStore(10)
		store.Add("home", candidate("n1", 3*time.Minute))
		store.Add("home", candidate("n2", 2*time.Minute))
		store.Add("home", candidate("n3", time.Minute))

		got, err := store.FetchCandidates(context.Background(), "home", "", 0)
		if err != nil {
			t.Fatalf("FetchCandidates: %v", err)
		}
		want := []string{"n3", "n2", "n1"}
		if fmt.Sprint(ids(got)) != fmt.Sprint(want) {
			t.Errorf("order = %v, want %v", ids(got), want)
		}
	})

	t.Run("DuplicateIDDropped", func(t *testing.T) {
		store := NewMemoryStore(10)
		store.Add("home", candidate("n1", time.Minute))
		store.Add("home", candidate("n1", time.Second))
		if got := store.Size("home"); got != 1 {
			t.Errorf("size = %d, want 1", got)
		}
	})

	t.Run("WindowEvictsOldest", func(t *testing.T) {
		store := NewMemoryStore(3)
		for i := 1; i <= 5; i++ {
			store.Add("home", candidate(fmt.Sprintf("n%d", i), time.Duration(10-i)*time.Minute))
		}

		got, _ := store.FetchCandidates(context.Background(), "home", "", 0)
		want := []string{"n5", "n4", "n3"}
		if fmt.Sprint(ids(got)) != fmt.Sprint(want) {
			t.Errorf("window = %v, want %v", ids(got), want)
		}
	})

	t.Run("ScopesAreIndependent", func(t *testing.T) {
		store := NewMemoryStore(10)
		store.Add("home", candidate("n1", time.Minute))
		store.Add("user:alice", candidate("n2", time.Minute))

		if got := store.Size("home"); got != 1 {
			t.Errorf("home size = %d, want 1", got)
		}
		if got := store.Size("user:alice"); got != 1 {
			t.Errorf("user:alice size = %d, want 1", got)
		}
	})
}

func TestFetchCandidates(t *testing.T) {
	store := NewMemoryStore(10)
	for i := 1; i <= 5; i++ {
		store.Add("home", candidate(fmt.Sprintf("n%d", i), time.Duration(10-i)*time.Minute))
	}
	// Window is n5 n4 n3 n2 n1.

	t.Run("LimitTruncates", func(t *testing.T) {
		got, _ := store.FetchCandidates(context.Background(), "home", "", 2)
		want := []string{"n5", "n4"}
		if fmt.Sprint(ids(got)) != fmt.Sprint(want) {
			t.Errorf("page = %v, want %v", ids(got), want)
		}
	})

	t.Run("CursorResumesAfterLastID", func(t *testing.T) {
		got, _ := store.FetchCandidates(context.Background(), "home", "n4", 2)
		want := []string{"n3", "n2"}
		if fmt.Sprint(ids(got)) != fmt.Sprint(want) {
			t.Errorf("page = %v, want %v", ids(got), want)
		}
	})

	t.Run("UnknownCursorRestartsFromTop", func(t *testing.T) {
		got, _ := store.FetchCandidates(context.Background(), "home", "gone", 2)
		want := []string{"n5", "n4"}
		if fmt.Sprint(ids(got)) != fmt.Sprint(want) {
			t.Errorf("page = %v, want %v", ids(got), want)
		}
	})

	t.Run("CursorAtTailReturnsNothing", func(t *testing.T) {
		got, err := store.FetchCandidates(context.Background(), "home", "n1", 2)
		if err != nil {
			t.Fatalf("FetchCandidates: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("expected empty page, got %v", ids(got))
		}
	})

	t.Run("UnknownScopeIsEmpty", func(t *testing.T) {
		got, err := store.FetchCandidates(context.Background(), "nowhere", "", 5)
		if err != nil {
			t.Fatalf("FetchCandidates: %v", err)
		}
		if len(got) != 0 {
			t.Errorf("expected empty result, got %v", ids(got))
		}
	})
}

func TestPrune(t *testing.T) {
	store := NewMemoryStore(10)
	store.Add("home", candidate("fresh", time.Minute))
	store.Add("home", candidate("stale", 48*time.Hour))
	store.Add("user:bob", candidate("ancient", 72*time.Hour))

	removed := store.Prune(24 * time.Hour)
	if removed != 2 {
		t.Errorf("removed = %d, want 2", removed)
	}
	if got := store.Size("home"); got != 1 {
		t.Errorf("home size after prune = %d, want 1", got)
	}
	// Fully drained scopes disappear.
	if got := store.Size("user:bob"); got != 0 {
		t.Errorf("user:bob size after prune = %d, want 0", got)
	}
}
