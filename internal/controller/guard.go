package controller

import "sync/atomic"

// Token identifies one acquisition of a Guard.
type Token uint64

// Guard is a single-slot in-flight marker. The low bit of the word is the
// busy flag and the rest is a generation counter bumped by every acquire
// and every reset, so a token can only release the acquisition it came from.
type Guard struct {
	word atomic.Uint64
}

// TryAcquire takes the slot. It reports false when the slot is already held.
func (g *Guard) TryAcquire() (Token, bool) {
	for {
		w := g.word.Load()
		if w&1 == 1 {
			return 0, false
		}
		next := (w + 2) | 1
		if g.word.CompareAndSwap(w, next) {
			return Token(next), true
		}
	}
}

// Release frees the slot if t is the current acquisition. Stale tokens are ignored.
func (g *Guard) Release(t Token) bool {
	return g.word.CompareAndSwap(uint64(t), uint64(t)&^1)
}

// Reset frees the slot and invalidates every outstanding token.
func (g *Guard) Reset() {
	for {
		w := g.word.Load()
		if g.word.CompareAndSwap(w, (w&^1)+2) {
			return
		}
	}
}

// Busy reports whether the slot is held.
func (g *Guard) Busy() bool {
	return g.word.Load()&1 == 1
}
