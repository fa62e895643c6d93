package knowledge_test

import (
	"context"
	"errors"
	"testing"

	"github.com/perchfield/sidequest/internal/knowledge"
	storemock "github.com/perchfield/sidequest/internal/knowledge/mock"
	embedmock "github.com/perchfield/sidequest/pkg/provider/embeddings/mock"
)

func fixtureEntries() []knowledge.Entry {
	return []knowledge.Entry{
		{
			ID: "valdros", Name: "Valdros", Race: "Dragon", Role: "Boss",
			Region: "Boss Arena", Weakness: "fire arrows",
			Embedding: []float32{1, 0, 0},
		},
		{
			ID: "torvel", Name: "Torvel", Race: "Human", Role: "Merchant",
			Region: "Hub Town",
			Embedding: []float32{0, 1, 0},
		},
		{
			ID: "wisp", Name: "Gloom Wisp", Race: "Spirit", Role: "Enemy",
			Region: "Ashen Vale",
			Embedding: []float32{0, 0, 1},
		},
	}
}

func TestSearchRanksBySimilarity(t *testing.T) {
	t.Parallel()

	r := knowledge.NewRetriever(
		&embedmock.Provider{Vector: []float32{1, 0.1, 0}, Dims: 3},
		storemock.NewStore(fixtureEntries()...),
	)

	results, err := r.Search(context.Background(), "how do i beat valdros", knowledge.Filter{}, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("results = %d, want 2", len(results))
	}
	if results[0].Entry.ID != "valdros" {
		t.Errorf("top result = %q, want valdros", results[0].Entry.ID)
	}
	if results[0].Score < results[1].Score {
		t.Error("results not ordered by descending score")
	}
}

func TestSearchFilterIsHardConstraint(t *testing.T) {
	t.Parallel()

	// The query vector points straight at the Boss Arena entry, but the
	// filter excludes it; similarity must not override the filter.
	r := knowledge.NewRetriever(
		&embedmock.Provider{Vector: []float32{1, 0, 0}, Dims: 3},
		storemock.NewStore(fixtureEntries()...),
	)

	results, err := r.Search(context.Background(), "anything", knowledge.Filter{Regions: []string{"Ashen Vale"}}, 10)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	for _, sc := range results {
		if sc.Entry.Region != "Ashen Vale" {
			t.Errorf("entry %q from region %q escaped the filter", sc.Entry.ID, sc.Entry.Region)
		}
	}
	if len(results) != 1 {
		t.Errorf("results = %d, want 1", len(results))
	}
}

func TestSearchFilterModeAllPredicates(t *testing.T) {
	t.Parallel()

	r := knowledge.NewRetriever(
		&embedmock.Provider{Dims: 3},
		storemock.NewStore(fixtureEntries()...),
	)

	entries, err := r.SearchFilter(context.Background(), knowledge.Filter{
		Regions: []string{"Boss Arena"},
		Races:   []string{"Dragon"},
	}, 10)
	if err != nil {
		t.Fatalf("SearchFilter: %v", err)
	}
	if len(entries) != 1 || entries[0].ID != "valdros" {
		t.Errorf("entries = %+v, want only valdros", entries)
	}

	// A predicate nothing satisfies yields an empty, non-error result.
	entries, err = r.SearchFilter(context.Background(), knowledge.Filter{Regions: []string{"Limgrave"}}, 10)
	if err != nil {
		t.Fatalf("SearchFilter: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("entries = %+v, want none", entries)
	}
}

func TestSearchEmptyResultIsNotError(t *testing.T) {
	t.Parallel()

	r := knowledge.NewRetriever(
		&embedmock.Provider{Dims: 3},
		storemock.NewStore(),
	)

	results, err := r.Search(context.Background(), "anything", knowledge.Filter{}, 5)
	if err != nil {
		t.Fatalf("Search on empty store: %v", err)
	}
	if len(results) != 0 {
		t.Errorf("results = %+v, want none", results)
	}
}

func TestSearchUnavailableStore(t *testing.T) {
	t.Parallel()

	store := storemock.NewStore(fixtureEntries()...)
	store.Err = knowledge.ErrUnavailable

	r := knowledge.NewRetriever(&embedmock.Provider{Dims: 3}, store)
	_, err := r.Search(context.Background(), "anything", knowledge.Filter{}, 5)
	if !errors.Is(err, knowledge.ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestSearchUnavailableEmbedder(t *testing.T) {
	t.Parallel()

	r := knowledge.NewRetriever(
		&embedmock.Provider{Err: errors.New("connection refused")},
		storemock.NewStore(fixtureEntries()...),
	)
	_, err := r.Search(context.Background(), "anything", knowledge.Filter{}, 5)
	if !errors.Is(err, knowledge.ErrUnavailable) {
		t.Errorf("err = %v, want ErrUnavailable", err)
	}
}

func TestSearchZeroTopK(t *testing.T) {
	t.Parallel()

	embedder := &embedmock.Provider{Dims: 3}
	r := knowledge.NewRetriever(embedder, storemock.NewStore(fixtureEntries()...))

	results, err := r.Search(context.Background(), "anything", knowledge.Filter{}, 0)
	if err != nil || results != nil {
		t.Errorf("Search(topK=0) = %v, %v; want nil, nil", results, err)
	}
	if len(embedder.Texts()) != 0 {
		t.Error("topK=0 still embedded the query")
	}
}
