package api

import (
	"encoding/json"

	"github.com/ankisyncd/ankisyncd-go/internal/collectionsync"
)

// decodeInto re-marshals a generic JSON value (as produced by
// json.Unmarshal into map[string]any) into a concrete struct. The sync
// protocol's JSON payloads carry no schema info, so every handler method's
// keyword argument arrives this way, mirroring Python's dynamic **kwargs.
func decodeInto(v any, out any) {
	if v == nil {
		return
	}
	raw, err := json.Marshal(v)
	if err != nil {
		return
	}
	_ = json.Unmarshal(raw, out)
}

func decodeGraves(v any) collectionsync.Graves {
	var g collectionsync.Graves
	decodeInto(v, &g)
	return g
}

func decodeChanges(v any) collectionsync.Changes {
	var c collectionsync.Changes
	decodeInto(v, &c)
	return c
}

func decodeChunk(v any) collectionsync.Chunk {
	var c collectionsync.Chunk
	decodeInto(v, &c)
	return c
}

func decodeIntSlice(v any) []int {
	var out []int
	decodeInto(v, &out)
	return out
}

func decodeStringSlice(v any) []string {
	var out []string
	decodeInto(v, &out)
	return out
}
