package collectionsync

// Graves is the {cards, notes, decks} tombstone-oid triple exchanged by
// start/applyGraves.
type Graves struct {
	Cards []int64 `json:"cards"`
	Notes []int64 `json:"notes"`
	Decks []int64 `json:"decks"`
}

// Start is §4.4.2. It captures maxUsn/minUsn/lnewer for the rest of the
// session, returns the server-side removed set (tombstones at usn >=
// minUsn), and applies the client's own graves locally.
func (h *Handler) Start(minUsn int, lnewer bool, graves Graves) (Graves, error) {
	h.maxUsn = h.col.USN()
	h.minUsn = minUsn
	h.lnewer = !lnewer // server sees the inverse of the client's flag

	removed, err := h.removed()
	if err != nil {
		return Graves{}, err
	}

	if err := h.applyGravesInternal(graves); err != nil {
		return Graves{}, err
	}

	return removed, nil
}

// removed returns entities whose tombstone usn >= minUsn, using the
// usn >= minUsn predicate throughout (not the upstream library's usn = -1).
func (h *Handler) removed() (Graves, error) {
	cards, notes, decks, err := h.col.Graves().Removed(h.minUsn)
	if err != nil {
		return Graves{}, err
	}
	return Graves{Cards: cards, Notes: notes, Decks: decks}, nil
}

// ApplyGraves is §4.4.3: delete entities named in chunk from the local
// collection. Idempotent.
func (h *Handler) ApplyGraves(chunk Graves) error {
	return h.applyGravesInternal(chunk)
}

func (h *Handler) applyGravesInternal(chunk Graves) error {
	if len(chunk.Cards) == 0 && len(chunk.Notes) == 0 && len(chunk.Decks) == 0 {
		return nil
	}
	// Stamped at maxUsn (the usn this sync round agreed on), not the current
	// wall clock, so the next client syncing with minUsn<=maxUsn observes
	// the removal, matching the upstream library's within-round usn convention.
	return h.col.Graves().Apply(chunk.Cards, chunk.Notes, chunk.Decks, h.maxUsn)
}
