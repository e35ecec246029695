package lendingtest

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"github.com/AntonStoeckl/library-lending-go/lending"
)

// CatalogStore is the part of the store the fixtures need.
type CatalogStore interface {
	CreateAuthor(ctx context.Context, author lending.Author) (lending.Author, error)
	CreateBook(ctx context.Context, book lending.Book) (lending.Book, error)
}

// UniqueSuffix returns a short random identifier usable in table and member names.
func UniqueSuffix() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
}

// FixtureTime is the fixed "now" most tests start from.
func FixtureTime() time.Time {
	return time.Date(2026, time.March, 2, 10, 0, 0, 0, time.UTC)
}

// GivenAuthor creates an author.
func GivenAuthor(t testing.TB, store CatalogStore) lending.Author {
	t.Helper()

	author, err := store.CreateAuthor(context.Background(), lending.Author{
		FirstName:   "Ursula",
		LastName:    "Le Guin",
		Description: "Author of Earthsea",
		BirthYear:   1929,
	})
	require.NoError(t, err, "error in arranging test data")

	return author
}

// GivenBook creates a book with the given number of copies, and an author for it.
func GivenBook(t testing.TB, store CatalogStore, totalCopies int) lending.Book {
	t.Helper()

	return GivenBookOf(t, store, GivenAuthor(t, store), "A Wizard of Earthsea", totalCopies)
}

// GivenBookOf creates a book of author.
func GivenBookOf(t testing.TB, store CatalogStore, author lending.Author, title string, totalCopies int) lending.Book {
	t.Helper()

	book, err := store.CreateBook(context.Background(), lending.Book{
		Title:           title,
		ISBN:            "9780547773742",
		PublicationYear: 1968,
		TotalCopies:     totalCopies,
		AuthorID:        author.ID,
	})
	require.NoError(t, err, "error in arranging test data")

	return book
}

// FakeClock is a lending.Clock that only moves when told to.
type FakeClock struct {
	mu  sync.Mutex
	now time.Time
}

// NewFakeClock creates a FakeClock standing at now.
func NewFakeClock(now time.Time) *FakeClock {
	return &FakeClock{now: now}
}

func (c *FakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()

	return c.now
}

// Advance moves the clock forward by d.
func (c *FakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = c.now.Add(d)
}

// Set puts the clock at now.
func (c *FakeClock) Set(now time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.now = now
}

var _ lending.Clock = (*FakeClock)(nil)
