package collectionsync

// Chunk is one batch of server-side notes/cards/revlog rows (spec §4.4.5).
// Each row is an opaque ordered tuple matching the upstream wire format;
// the per-table column shapes are out of scope, so rows travel as [][]any.
type Chunk struct {
	Cards  [][]any `json:"cards,omitempty"`
	Notes  [][]any `json:"notes,omitempty"`
	Revlog [][]any `json:"revlog,omitempty"`
	Done   bool    `json:"done"`
}

// Chunk streams server-side notes/cards/revlog with usn >= minUsn,
// stamping usn := maxUsn on each emitted row, in bounded batches until
// drained; the final (possibly empty) batch carries done=true.
func (h *Handler) Chunk() (Chunk, error) {
	cards, cardsDone, err := h.chunkTable("cards", "id, nid, did, mod, data", &h.cardCursor)
	if err != nil {
		return Chunk{}, err
	}
	notes, notesDone, err := h.chunkTable("notes", "id, mid, mod, data", &h.noteCursor)
	if err != nil {
		return Chunk{}, err
	}
	revlog, revlogDone, err := h.chunkTable("revlog", "id, cid, data", &h.revlogCursor)
	if err != nil {
		return Chunk{}, err
	}

	for _, row := range cards {
		if err := h.stampRowUSN("cards", row); err != nil {
			return Chunk{}, err
		}
	}
	for _, row := range notes {
		if err := h.stampRowUSN("notes", row); err != nil {
			return Chunk{}, err
		}
	}
	for _, row := range revlog {
		if err := h.stampRowUSN("revlog", row); err != nil {
			return Chunk{}, err
		}
	}

	return Chunk{
		Cards:  cards,
		Notes:  notes,
		Revlog: revlog,
		Done:   cardsDone && notesDone && revlogDone,
	}, nil
}

func (h *Handler) chunkTable(table, columns string, cursor *int) ([][]any, bool, error) {
	rows, err := h.col.Query(
		"SELECT "+columns+" FROM "+table+" WHERE usn >= ? ORDER BY id LIMIT ? OFFSET ?",
		h.minUsn, ChunkSize+1, *cursor,
	)
	if err != nil {
		return nil, false, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, false, err
	}

	var out [][]any
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, false, err
		}
		out = append(out, vals)
	}

	done := len(out) <= ChunkSize
	if !done {
		out = out[:ChunkSize]
	}
	*cursor += len(out)
	return out, done, rows.Err()
}

func (h *Handler) stampRowUSN(table string, row []any) error {
	if len(row) == 0 {
		return nil
	}
	id := row[0]
	_, err := h.col.Exec("UPDATE "+table+" SET usn = ? WHERE id = ?", h.maxUsn, id)
	return err
}

// ApplyChunk merges the client's rows into the server collection. Primary
// key on client wins when present on both; the row's usn becomes maxUsn
// server-side too.
func (h *Handler) ApplyChunk(chunk Chunk) error {
	if err := h.applyRows("cards", "id, nid, did, mod, data", chunk.Cards); err != nil {
		return err
	}
	if err := h.applyRows("notes", "id, mid, mod, data", chunk.Notes); err != nil {
		return err
	}
	if err := h.applyRows("revlog", "id, cid, data", chunk.Revlog); err != nil {
		return err
	}
	return nil
}

func (h *Handler) applyRows(table, columns string, rows [][]any) error {
	if len(rows) == 0 {
		return nil
	}
	cols := splitColumns(columns)
	placeholders := make([]string, len(cols)+1)
	for i := range placeholders {
		placeholders[i] = "?"
	}

	for _, row := range rows {
		args := make([]any, 0, len(row)+1)
		args = append(args, row...)
		args = append(args, h.maxUsn)
		query := "INSERT OR REPLACE INTO " + table + " (" + columns + ", usn) VALUES (" + joinPlaceholders(placeholders) + ")"
		if _, err := h.col.Exec(query, args...); err != nil {
			return err
		}
	}
	return nil
}

func splitColumns(columns string) []string {
	out := []string{}
	start := 0
	for i := 0; i < len(columns); i++ {
		if columns[i] == ',' {
			out = append(out, columns[start:i])
			start = i + 1
		}
	}
	out = append(out, columns[start:])
	return out
}

func joinPlaceholders(placeholders []string) string {
	out := ""
	for i, p := range placeholders {
		if i > 0 {
			out += ", "
		}
		out += p
	}
	return out
}
