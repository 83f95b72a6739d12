// Package sqlitecol is the one concrete collection.Collection implementation,
// operating directly on a collection.anki2/collection.media.db2 pair via
// database/sql and the pure-Go glebarez/go-sqlite driver. The schema kept
// here is deliberately reduced to the columns the sync protocol reads and
// writes (spec §1 puts the true scheduler/note-type internals out of scope).
package sqlitecol

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	_ "github.com/glebarez/go-sqlite"

	"github.com/ankisyncd/ankisyncd-go/internal/collection"
)

const schema = `
CREATE TABLE IF NOT EXISTS col (
	id INTEGER PRIMARY KEY,
	crt INTEGER NOT NULL,
	mod INTEGER NOT NULL,
	scm INTEGER NOT NULL,
	ver INTEGER NOT NULL,
	usn INTEGER NOT NULL,
	ls INTEGER NOT NULL,
	conf TEXT NOT NULL,
	models TEXT NOT NULL,
	decks TEXT NOT NULL,
	dconf TEXT NOT NULL,
	tags TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS cards (
	id INTEGER PRIMARY KEY,
	nid INTEGER NOT NULL,
	did INTEGER NOT NULL,
	mod INTEGER NOT NULL,
	usn INTEGER NOT NULL,
	data TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS notes (
	id INTEGER PRIMARY KEY,
	mid INTEGER NOT NULL,
	mod INTEGER NOT NULL,
	usn INTEGER NOT NULL,
	data TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS revlog (
	id INTEGER PRIMARY KEY,
	cid INTEGER NOT NULL,
	usn INTEGER NOT NULL,
	data TEXT NOT NULL
);
CREATE TABLE IF NOT EXISTS graves (
	usn INTEGER NOT NULL,
	oid INTEGER NOT NULL,
	type INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS ix_graves_usn ON graves (usn);
CREATE INDEX IF NOT EXISTS ix_cards_usn ON cards (usn);
CREATE INDEX IF NOT EXISTS ix_notes_usn ON notes (usn);
CREATE INDEX IF NOT EXISTS ix_revlog_usn ON revlog (usn);
`

const mediaSchema = `
CREATE TABLE IF NOT EXISTS media (
	fname TEXT PRIMARY KEY,
	usn INTEGER NOT NULL,
	csum TEXT NOT NULL DEFAULT '',
	dirty INTEGER NOT NULL DEFAULT 0
);
CREATE INDEX IF NOT EXISTS ix_media_usn ON media (usn);
CREATE TABLE IF NOT EXISTS meta (
	dir TEXT NOT NULL,
	lastUsn INTEGER NOT NULL
);
`

// Collection backs collection.Collection against a real SQLite pair.
type Collection struct {
	path    string
	db      *sql.DB
	mediaDB *sql.DB
}

// Open opens (creating if absent) the collection.anki2 and
// collection.media.db2 files inside dir.
func Open(dir string) (*Collection, error) {
	colPath := filepath.Join(dir, "collection.anki2")
	mediaPath := filepath.Join(dir, "collection.media.db2")

	db, err := sql.Open("sqlite", colPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, err
	}
	if err := ensureColRow(db); err != nil {
		db.Close()
		return nil, err
	}

	mediaDB, err := sql.Open("sqlite", mediaPath+"?_pragma=busy_timeout(5000)")
	if err != nil {
		db.Close()
		return nil, err
	}
	if _, err := mediaDB.Exec(mediaSchema); err != nil {
		db.Close()
		mediaDB.Close()
		return nil, err
	}
	if err := ensureMediaRow(mediaDB, dir); err != nil {
		db.Close()
		mediaDB.Close()
		return nil, err
	}

	return &Collection{path: colPath, db: db, mediaDB: mediaDB}, nil
}

func ensureColRow(db *sql.DB) error {
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM col").Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	_, err := db.Exec(
		`INSERT INTO col (id, crt, mod, scm, ver, usn, ls, conf, models, decks, dconf, tags)
		 VALUES (1, 0, 0, 0, 11, 0, 0, '{}', '{}', '{}', '{}', '{}')`,
	)
	return err
}

func ensureMediaRow(db *sql.DB, dir string) error {
	var count int
	if err := db.QueryRow("SELECT COUNT(*) FROM meta").Scan(&count); err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	_, err := db.Exec(`INSERT INTO meta (dir, lastUsn) VALUES (?, 0)`, dir)
	return err
}

func (c *Collection) Close() error {
	err1 := c.db.Close()
	err2 := c.mediaDB.Close()
	if err1 != nil {
		return err1
	}
	return err2
}

// Save is a no-op: SetUSN/SetMod write straight to the database and sqlite
// autocommits each statement, matching the upstream library's cheap `save()`.
func (c *Collection) Save() error { return nil }

func (c *Collection) USN() int {
	var usn int
	c.db.QueryRow("SELECT usn FROM col WHERE id = 1").Scan(&usn)
	return usn
}

func (c *Collection) SetUSN(usn int) {
	c.db.Exec("UPDATE col SET usn = ? WHERE id = 1", usn)
}

func (c *Collection) Mod() int64 {
	var mod int64
	c.db.QueryRow("SELECT mod FROM col WHERE id = 1").Scan(&mod)
	return mod
}

func (c *Collection) SetMod(mod int64) {
	c.db.Exec("UPDATE col SET mod = ? WHERE id = 1", mod)
}

func (c *Collection) SCM() int64 {
	var scm int64
	c.db.QueryRow("SELECT scm FROM col WHERE id = 1").Scan(&scm)
	return scm
}

func (c *Collection) SchedVer() int {
	var ver int
	c.db.QueryRow("SELECT ver FROM col WHERE id = 1").Scan(&ver)
	return ver
}

func (c *Collection) Crt() int64 {
	var crt int64
	c.db.QueryRow("SELECT crt FROM col WHERE id = 1").Scan(&crt)
	return crt
}

// Conf returns the collection-level config blob.
func (c *Collection) Conf() (collection.JSONObject, error) {
	return (&jsonColumn{db: c.db, column: "conf"}).All()
}

// SetConf replaces the collection-level config blob wholesale.
func (c *Collection) SetConf(conf collection.JSONObject) error {
	return (&jsonColumn{db: c.db, column: "conf"}).store(conf)
}

func (c *Collection) Media() collection.MediaIndex { return &mediaIndex{db: c.mediaDB} }

// SanityCheck returns entity counts in the order the protocol compares them:
// cards, notes, revlog, graves, models, decks, deck-configs.
func (c *Collection) SanityCheck() ([]int, error) {
	counts := make([]int, 7)
	queries := []string{
		"SELECT COUNT(*) FROM cards",
		"SELECT COUNT(*) FROM notes",
		"SELECT COUNT(*) FROM revlog",
		"SELECT COUNT(*) FROM graves",
	}
	for i, q := range queries {
		if err := c.db.QueryRow(q).Scan(&counts[i]); err != nil {
			return nil, err
		}
	}
	models, err := c.Models().All()
	if err != nil {
		return nil, err
	}
	counts[4] = len(models)
	decks, confs, err := c.Decks().All()
	if err != nil {
		return nil, err
	}
	counts[5] = len(decks)
	counts[6] = len(confs)
	return counts, nil
}

func (c *Collection) Models() collection.ModelStore { return &jsonColumn{db: c.db, column: "models"} }

func (c *Collection) Decks() collection.DeckStore {
	return &deckStore{decks: &jsonColumn{db: c.db, column: "decks"}, confs: &jsonColumn{db: c.db, column: "dconf"}}
}

func (c *Collection) Tags() collection.TagStore { return &tagStore{db: c.db} }

func (c *Collection) Graves() collection.GraveStore { return &graveStore{db: c.db} }

func (c *Collection) Query(query string, args ...any) (*sql.Rows, error) {
	return c.db.Query(query, args...)
}

func (c *Collection) Exec(query string, args ...any) (sql.Result, error) {
	return c.db.Exec(query, args...)
}

var _ collection.Collection = (*Collection)(nil)

// jsonColumn stores a JSON-object-valued column on the singleton col row and
// implements ModelStore; the per-entity usn lives inside each JSON value
// under the "usn" key, matching the upstream library's embedded-usn models.
type jsonColumn struct {
	db     *sql.DB
	column string
}

func (j *jsonColumn) load() (collection.JSONObject, error) {
	var raw string
	query := fmt.Sprintf("SELECT %s FROM col WHERE id = 1", j.column)
	if err := j.db.QueryRow(query).Scan(&raw); err != nil {
		return nil, err
	}
	obj := collection.JSONObject{}
	if strings.TrimSpace(raw) == "" {
		return obj, nil
	}
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		return nil, err
	}
	return obj, nil
}

func (j *jsonColumn) store(obj collection.JSONObject) error {
	raw, err := json.Marshal(obj)
	if err != nil {
		return err
	}
	query := fmt.Sprintf("UPDATE col SET %s = ? WHERE id = 1", j.column)
	_, err = j.db.Exec(query, string(raw))
	return err
}

func (j *jsonColumn) All() (collection.JSONObject, error) { return j.load() }

func (j *jsonColumn) Since(usn int) (collection.JSONObject, error) {
	all, err := j.load()
	if err != nil {
		return nil, err
	}
	return filterByUSN(all, usn), nil
}

func (j *jsonColumn) Merge(incoming collection.JSONObject, lnewer bool) error {
	existing, err := j.load()
	if err != nil {
		return err
	}
	mergeJSONEntities(existing, incoming, lnewer)
	return j.store(existing)
}

func filterByUSN(all collection.JSONObject, minUsn int) collection.JSONObject {
	out := collection.JSONObject{}
	for id, v := range all {
		if entityUSN(v) >= minUsn {
			out[id] = v
		}
	}
	return out
}

func entityUSN(v any) int {
	m, ok := v.(map[string]any)
	if !ok {
		return -1
	}
	switch usn := m["usn"].(type) {
	case float64:
		return int(usn)
	case int:
		return usn
	default:
		return -1
	}
}

func entityMod(v any) int64 {
	m, ok := v.(map[string]any)
	if !ok {
		return 0
	}
	switch mod := m["mod"].(type) {
	case float64:
		return int64(mod)
	case int64:
		return mod
	default:
		return 0
	}
}

// mergeJSONEntities merges incoming into existing in place. Ids only in
// incoming are added. When the same id exists on both sides, the entity with
// the larger "mod" wins; on equal mod, incoming wins when lnewer is true and
// existing is kept otherwise. usn is not compared.
func mergeJSONEntities(existing, incoming collection.JSONObject, lnewer bool) {
	for id, in := range incoming {
		cur, exists := existing[id]
		if !exists {
			existing[id] = in
			continue
		}
		if lnewer {
			if entityMod(in) >= entityMod(cur) {
				existing[id] = in
			}
		} else {
			if entityMod(in) > entityMod(cur) {
				existing[id] = in
			}
		}
	}
}

type deckStore struct {
	decks *jsonColumn
	confs *jsonColumn
}

func (d *deckStore) All() (collection.JSONObject, collection.JSONObject, error) {
	decks, err := d.decks.load()
	if err != nil {
		return nil, nil, err
	}
	confs, err := d.confs.load()
	if err != nil {
		return nil, nil, err
	}
	return decks, confs, nil
}

func (d *deckStore) Since(usn int) (collection.JSONObject, collection.JSONObject, error) {
	decks, confs, err := d.All()
	if err != nil {
		return nil, nil, err
	}
	return filterByUSN(decks, usn), filterByUSN(confs, usn), nil
}

func (d *deckStore) Merge(decks, confs collection.JSONObject, lnewer bool) error {
	if err := d.decks.Merge(decks, lnewer); err != nil {
		return err
	}
	return d.confs.Merge(confs, lnewer)
}

type tagStore struct{ db *sql.DB }

func (t *tagStore) load() (map[string]int, error) {
	var raw string
	if err := t.db.QueryRow("SELECT tags FROM col WHERE id = 1").Scan(&raw); err != nil {
		return nil, err
	}
	out := map[string]int{}
	if strings.TrimSpace(raw) == "" {
		return out, nil
	}
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (t *tagStore) store(tags map[string]int) error {
	raw, err := json.Marshal(tags)
	if err != nil {
		return err
	}
	_, err = t.db.Exec("UPDATE col SET tags = ? WHERE id = 1", string(raw))
	return err
}

func (t *tagStore) AllItems() (map[string]int, error) { return t.load() }

func (t *tagStore) Since(usn int) (map[string]int, error) {
	all, err := t.load()
	if err != nil {
		return nil, err
	}
	out := map[string]int{}
	for name, tagUsn := range all {
		if tagUsn >= usn {
			out[name] = tagUsn
		}
	}
	return out, nil
}

func (t *tagStore) Merge(tags map[string]int) error {
	existing, err := t.load()
	if err != nil {
		return err
	}
	for name, usn := range tags {
		existing[name] = usn
	}
	return t.store(existing)
}

type graveStore struct{ db *sql.DB }

func (g *graveStore) Removed(minUsn int) (cards, notes, decks []int64, err error) {
	rows, err := g.db.Query("SELECT oid, type FROM graves WHERE usn >= ?", minUsn)
	if err != nil {
		return nil, nil, nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var oid int64
		var typ int
		if err := rows.Scan(&oid, &typ); err != nil {
			return nil, nil, nil, err
		}
		switch collection.GraveType(typ) {
		case collection.GraveCard:
			cards = append(cards, oid)
		case collection.GraveNote:
			notes = append(notes, oid)
		case collection.GraveDeck:
			decks = append(decks, oid)
		}
	}
	return cards, notes, decks, rows.Err()
}

func (g *graveStore) Apply(cards, notes, decks []int64, usn int) error {
	tx, err := g.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	stamp := func(id int64, typ collection.GraveType) error {
		_, err := tx.Exec("INSERT INTO graves (usn, oid, type) VALUES (?, ?, ?)", usn, id, int(typ))
		return err
	}

	for _, id := range cards {
		if _, err := tx.Exec("DELETE FROM cards WHERE id = ?", id); err != nil {
			return err
		}
		if err := stamp(id, collection.GraveCard); err != nil {
			return err
		}
	}
	for _, id := range notes {
		if _, err := tx.Exec("DELETE FROM notes WHERE id = ?", id); err != nil {
			return err
		}
		if err := stamp(id, collection.GraveNote); err != nil {
			return err
		}
	}
	// decks live inside the col.decks JSON column rather than a row-per-deck
	// table, so removing them is a read-modify-write of that column instead
	// of a DELETE statement.
	if len(decks) > 0 {
		var raw string
		if err := tx.QueryRow("SELECT decks FROM col WHERE id = 1").Scan(&raw); err != nil {
			return err
		}
		obj := collection.JSONObject{}
		if strings.TrimSpace(raw) != "" {
			if err := json.Unmarshal([]byte(raw), &obj); err != nil {
				return err
			}
		}
		for _, id := range decks {
			delete(obj, strconv.FormatInt(id, 10))
		}
		newRaw, err := json.Marshal(obj)
		if err != nil {
			return err
		}
		if _, err := tx.Exec("UPDATE col SET decks = ? WHERE id = 1", string(newRaw)); err != nil {
			return err
		}
	}
	for _, id := range decks {
		if err := stamp(id, collection.GraveDeck); err != nil {
			return err
		}
	}
	return tx.Commit()
}

type mediaIndex struct{ db *sql.DB }

func (m *mediaIndex) LastUsn() int {
	var usn int
	m.db.QueryRow("SELECT lastUsn FROM meta").Scan(&usn)
	return usn
}

func (m *mediaIndex) SetLastUsn(usn int) {
	m.db.Exec("UPDATE meta SET lastUsn = ?", usn)
}

func (m *mediaIndex) MediaCount() (int, error) {
	var count int
	err := m.db.QueryRow("SELECT COUNT(*) FROM media WHERE csum != ''").Scan(&count)
	return count, err
}

func (m *mediaIndex) Dir() string {
	var dir string
	m.db.QueryRow("SELECT dir FROM meta").Scan(&dir)
	return dir
}

func (m *mediaIndex) Changes(sinceUsn int) ([]collection.MediaRow, error) {
	rows, err := m.db.Query(
		"SELECT fname, usn, csum FROM media WHERE usn > ? ORDER BY usn DESC", sinceUsn,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []collection.MediaRow
	for rows.Next() {
		var r collection.MediaRow
		if err := rows.Scan(&r.Filename, &r.USN, &r.Csum); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	// reverse to ascending usn order, matching the upstream descending-then-reversed query
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, rows.Err()
}

func (m *mediaIndex) AddOrUpdate(filename string, usn int, csum string) error {
	_, err := m.db.Exec(
		`INSERT INTO media (fname, usn, csum) VALUES (?, ?, ?)
		 ON CONFLICT(fname) DO UPDATE SET usn = excluded.usn, csum = excluded.csum`,
		filename, usn, csum,
	)
	return err
}

func (m *mediaIndex) SyncDelete(filename string, usn int) error {
	return m.AddOrUpdate(filename, usn, "")
}

var _ collection.MediaIndex = (*mediaIndex)(nil)
