// Package collection defines the opaque contract the rest of the module
// needs against a user's study collection (spec §1/§4.7). The true schema
// and scheduler internals are out of scope; only the accessors the sync
// protocol touches are exposed here, backed by one concrete implementation
// in the sqlitecol subpackage.
package collection

import "database/sql"

// GraveType enumerates the tombstone kinds recorded in the graves table.
type GraveType int

const (
	GraveCard GraveType = iota
	GraveNote
	GraveDeck
)

// JSONObject is a permissive map used for the model/deck/config/tag payloads
// that travel the wire as opaque JSON; the real per-field schema is out of
// scope (spec §1).
type JSONObject = map[string]any

// MediaRow is one row of the media index.
type MediaRow struct {
	Filename string
	USN      int
	Csum     string // empty csum denotes a tombstone
}

// ModelStore accesses note-type definitions.
type ModelStore interface {
	All() (JSONObject, error)
	Since(usn int) (JSONObject, error)
	Merge(models JSONObject, lnewer bool) error
}

// DeckStore accesses decks and deck configs together, matching the upstream
// library's combined `decks`/`dconf` changeset shape.
type DeckStore interface {
	All() (decks JSONObject, confs JSONObject, err error)
	Since(usn int) (decks JSONObject, confs JSONObject, err error)
	Merge(decks JSONObject, confs JSONObject, lnewer bool) error
}

// TagStore accesses the name->usn tag registry.
type TagStore interface {
	AllItems() (map[string]int, error)
	Since(usn int) (map[string]int, error)
	Merge(tags map[string]int) error
}

// GraveStore accesses and mutates the tombstone table.
type GraveStore interface {
	// Removed returns oids of cards/notes/decks whose tombstone usn >= minUsn.
	Removed(minUsn int) (cards, notes, decks []int64, err error)
	// Apply deletes the given entities locally and stamps fresh tombstones at usn.
	Apply(cards, notes, decks []int64, usn int) error
}

// MediaIndex accesses the media database (filename, usn, csum) rows.
type MediaIndex interface {
	LastUsn() int
	SetLastUsn(usn int)
	MediaCount() (int, error)
	Dir() string
	// Changes returns rows with usn > sinceUsn, ascending by usn.
	Changes(sinceUsn int) ([]MediaRow, error)
	AddOrUpdate(filename string, usn int, csum string) error
	// SyncDelete stamps filename as a tombstone (empty csum) at the next usn.
	SyncDelete(filename string, usn int) error
}

// Collection is the opaque per-user study database. The worker calls Save
// after every job that succeeds and Close when it idles out or stops; the
// entity accessors and Query/Exec give the sync handlers
// everything the protocol needs without leaking schema internals into the
// rest of the module.
type Collection interface {
	Close() error
	Save() error

	USN() int
	SetUSN(int)
	Mod() int64
	SetMod(int64)
	SCM() int64
	SchedVer() int
	Crt() int64

	// Conf is the collection-level config blob (current deck, etc.), distinct
	// from the per-deck dconf returned by Decks(). SetConf replaces it wholesale.
	Conf() (JSONObject, error)
	SetConf(JSONObject) error

	Media() MediaIndex
	SanityCheck() ([]int, error)

	Models() ModelStore
	Decks() DeckStore
	Tags() TagStore
	Graves() GraveStore

	// Query runs a read query directly against the collection database, for
	// the card/note/revlog chunk streaming that has no dedicated accessor.
	Query(query string, args ...any) (*sql.Rows, error)
	// Exec runs a write statement directly, for the same reason.
	Exec(query string, args ...any) (sql.Result, error)
}
