// Package cart holds the in-memory, per-session cart: an insertion-ordered
// sequence of line items keyed by menu item id. Carts live only for the
// process lifetime and are never persisted.
package cart

import (
	"sync"

	"github.com/feastly/feastly-web/internal/app/models"
)

// LineItem is one distinct product entry paired with its quantity.
// Quantity is always >= 1; a line that would drop to 0 is removed instead.
type LineItem struct {
	MenuItemID string          `json:"menuItemId"`
	Item       models.MenuItem `json:"item"`
	Quantity   int             `json:"quantity"`
}

// Store keeps one cart per session id. All mutations are applied atomically
// under the store lock.
type Store struct {
	mu    sync.RWMutex
	carts map[string][]LineItem
}

func NewStore() *Store {
	return &Store{carts: make(map[string][]LineItem)}
}

// AddItem increments the quantity of an existing line or appends a new line
// with quantity 1, preserving the order of all other entries.
func (s *Store) AddItem(sid string, item models.MenuItem) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines := s.carts[sid]
	for i := range lines {
		if lines[i].MenuItemID == item.ID {
			lines[i].Quantity++
			return
		}
	}
	s.carts[sid] = append(lines, LineItem{MenuItemID: item.ID, Item: item, Quantity: 1})
}

// IncrementQuantity adds one to an existing line. It never creates a line.
func (s *Store) IncrementQuantity(sid, menuItemID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines := s.carts[sid]
	for i := range lines {
		if lines[i].MenuItemID == menuItemID {
			lines[i].Quantity++
			return
		}
	}
}

// DecrementQuantity removes one from an existing line, dropping the line
// entirely when its quantity reaches 0. No-op when the line is absent.
func (s *Store) DecrementQuantity(sid, menuItemID string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lines := s.carts[sid]
	for i := range lines {
		if lines[i].MenuItemID != menuItemID {
			continue
		}
		if lines[i].Quantity > 1 {
			lines[i].Quantity--
		} else {
			s.carts[sid] = append(lines[:i], lines[i+1:]...)
		}
		return
	}
}

// RemoveItem removes one quantity, same as DecrementQuantity.
func (s *Store) RemoveItem(sid, menuItemID string) {
	s.DecrementQuantity(sid, menuItemID)
}

// Clear empties the cart unconditionally.
func (s *Store) Clear(sid string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.carts, sid)
}

// Items returns a copy of the cart in insertion order.
func (s *Store) Items(sid string) []LineItem {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lines := s.carts[sid]
	out := make([]LineItem, len(lines))
	copy(out, lines)
	return out
}
