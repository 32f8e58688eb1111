package testutil

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// ItemFixture represents test catalog item data
type ItemFixture struct {
	ID        string
	Name      string
	Code      string
	Unit      string
	Category  string
	IsActive  bool
	CreatedAt time.Time
}

// StoreFixture represents test store data
type StoreFixture struct {
	ID        string
	Name      string
	Code      string
	IsMain    bool
	IsActive  bool
	CreatedAt time.Time
}

// FixtureFactory creates test fixtures with sensible defaults
type FixtureFactory struct {
	sequence int
}

// NewFixtureFactory creates a new fixture factory
func NewFixtureFactory() *FixtureFactory {
	return &FixtureFactory{sequence: 0}
}

// nextSeq returns the next sequence number for unique values
func (f *FixtureFactory) nextSeq() int {
	f.sequence++
	return f.sequence
}

// Item creates a catalog item fixture with defaults
func (f *FixtureFactory) Item(opts ...func(*ItemFixture)) ItemFixture {
	seq := f.nextSeq()

	item := ItemFixture{
		ID:        uuid.New().String(),
		Name:      fmt.Sprintf("Amoxicillin 500mg %d", seq),
		Code:      fmt.Sprintf("MED-%04d", seq),
		Unit:      "tablet",
		Category:  "Antibiotics",
		IsActive:  true,
		CreatedAt: time.Now(),
	}

	for _, opt := range opts {
		opt(&item)
	}

	return item
}

// Store creates a store fixture with defaults
func (f *FixtureFactory) Store(opts ...func(*StoreFixture)) StoreFixture {
	seq := f.nextSeq()

	store := StoreFixture{
		ID:        uuid.New().String(),
		Name:      fmt.Sprintf("Ward Store %d", seq),
		Code:      fmt.Sprintf("ST-%03d", seq),
		IsMain:    false,
		IsActive:  true,
		CreatedAt: time.Now(),
	}

	for _, opt := range opts {
		opt(&store)
	}

	return store
}

// AsMain marks the store as the main pharmacy store
func AsMain() func(*StoreFixture) {
	return func(s *StoreFixture) {
		s.IsMain = true
	}
}
