package session

import (
	"sync"

	"github.com/docsync/docsync/internal/model"
)

// Reconciler merges inbound partial-state updates into an ordered,
// unique-keyed card collection. Updates apply strictly in arrival
// order; a stale update arriving after a newer one for the same ID
// overwrites it (there is no timestamp-based reordering).
//
// The push channel and the polling fallback feed the same Reconciler
// from interleaved goroutines; each Apply is one atomic step.
type Reconciler struct {
	mu    sync.RWMutex
	cards []model.Card
	index map[string]int // card ID → position in cards
}

// NewReconciler creates an empty Reconciler.
func NewReconciler() *Reconciler {
	return &Reconciler{
		index: make(map[string]int),
	}
}

// Apply upserts a card. A card with a known ID replaces the existing
// one in place, keeping its position; a new ID is appended. Applying
// the same card twice yields the same collection.
func (r *Reconciler) Apply(card model.Card) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if i, ok := r.index[card.ID]; ok {
		r.cards[i] = card
		return
	}

	r.index[card.ID] = len(r.cards)
	r.cards = append(r.cards, card)
}

// Cards returns a copy of the collection in insertion order.
func (r *Reconciler) Cards() []model.Card {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]model.Card, len(r.cards))
	copy(out, r.cards)
	return out
}

// Get returns the card with the given ID.
func (r *Reconciler) Get(id string) (model.Card, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	i, ok := r.index[id]
	if !ok {
		return model.Card{}, false
	}
	return r.cards[i], true
}

// Has reports whether a card with the given ID exists.
func (r *Reconciler) Has(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	_, ok := r.index[id]
	return ok
}

// HasErrors reports whether any card is in the error state.
func (r *Reconciler) HasErrors() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, c := range r.cards {
		if c.Status == model.CardError {
			return true
		}
	}
	return false
}

// Len returns the number of cards.
func (r *Reconciler) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.cards)
}

// Clear removes all cards.
func (r *Reconciler) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.cards = nil
	r.index = make(map[string]int)
}
