package collectionsync

import "github.com/ankisyncd/ankisyncd-go/internal/syncutil"

// SanityResult is the status/c/s triple returned by sanityCheck2 (spec §4.4.6).
type SanityResult struct {
	Status string `json:"status"`
	Client []int  `json:"c,omitempty"`
	Server []int  `json:"s,omitempty"`
}

// SanityCheck2 compares the client's reported counters against the server's
// own sanityCheck() counts (cards, notes, revlog, graves, models, decks,
// deck-configs). The server list has no selected-deck check, so a client
// list carrying one more entry compares unequal.
func (h *Handler) SanityCheck2(client []int) (SanityResult, error) {
	server, err := h.col.SanityCheck()
	if err != nil {
		return SanityResult{}, err
	}
	if !intSlicesEqual(client, server) {
		return SanityResult{Status: "bad", Client: client, Server: server}, nil
	}
	return SanityResult{Status: "ok"}, nil
}

func intSlicesEqual(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Finish is §4.4.7: bumps collection.mod to now-in-milliseconds,
// collection.usn to maxUsn+1, persists, and returns the new mod.
func (h *Handler) Finish() (int64, error) {
	mod := syncutil.IntTime(1000)
	h.col.SetMod(mod)
	h.col.SetUSN(h.maxUsn + 1)
	if err := h.col.Save(); err != nil {
		return 0, err
	}
	return mod, nil
}
