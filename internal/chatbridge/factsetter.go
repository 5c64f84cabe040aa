package chatbridge

import (
	"fmt"

	"github.com/omnibrain/omnibrain/internal/store"
)

// preferenceFactSetter adapts Store's preference table to
// memory.FactSetter so the conversation extractor (adapted from the
// teacher's fact-extraction pipeline) has somewhere durable to persist
// what it learns about the user, without inventing a separate facts
// table alongside the already-established preferences one.
type preferenceFactSetter struct {
	store *store.Store
}

// NewFactSetter builds the memory.Extractor's persistence target.
func NewFactSetter(s *store.Store) *preferenceFactSetter {
	return &preferenceFactSetter{store: s}
}

func (f *preferenceFactSetter) SetFact(category, key, value, source string, confidence float64) error {
	return f.store.SetPreference(fmt.Sprintf("%s.%s", category, key), value, confidence, source)
}
