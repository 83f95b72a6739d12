package api

import (
	"bytes"
	"compress/gzip"
	"encoding/json"
	"io"
	"net/http"

	"github.com/ankisyncd/ankisyncd-go/internal/syncerr"
)

// decodedRequest is the multipart form payload every sync operation
// receives: a numeric `c` (gzip flag), the opaque `data` field, and the
// host-key / session-key carried by `k`/`sk`, grounded on sync_app.py's
// SyncApp.__call__ field handling.
type decodedRequest struct {
	data       map[string]any
	rawPayload []byte // non-JSON data (e.g. a binary collection upload) lands here too
	hostKey    string
	sessionKey string
	sKeyField  string // the `s` field, used only by meta
}

const maxUploadMemory = 32 << 20 // 32 MiB held in memory before spilling to temp files

func decodeRequest(r *http.Request) (*decodedRequest, error) {
	if err := r.ParseMultipartForm(maxUploadMemory); err != nil {
		return nil, syncerr.Wrap(syncerr.BadRequest, "malformed multipart request", err)
	}

	compression := 0
	if c := r.FormValue("c"); c != "" {
		if c == "1" {
			compression = 1
		}
	}

	var raw []byte
	if file, _, err := r.FormFile("data"); err == nil {
		defer file.Close()
		raw, err = io.ReadAll(file)
		if err != nil {
			return nil, syncerr.Wrap(syncerr.BadRequest, "reading data field", err)
		}
	}

	if compression == 1 && len(raw) > 0 {
		gz, err := gzip.NewReader(bytes.NewReader(raw))
		if err != nil {
			return nil, syncerr.Wrap(syncerr.BadRequest, "invalid gzip data field", err)
		}
		defer gz.Close()
		raw, err = io.ReadAll(gz)
		if err != nil {
			return nil, syncerr.Wrap(syncerr.BadRequest, "decompressing data field", err)
		}
	}

	req := &decodedRequest{
		hostKey:    firstNonEmpty(r.FormValue("k"), r.URL.Query().Get("k")),
		sessionKey: r.FormValue("sk"),
		sKeyField:  r.FormValue("s"),
	}

	if len(raw) == 0 {
		req.data = map[string]any{}
		return req, nil
	}

	var parsed map[string]any
	if err := json.Unmarshal(raw, &parsed); err != nil {
		// Not JSON: treat the whole payload as opaque bytes (a full-sync
		// collection upload), matching the original's fallback to {"data": raw}.
		req.data = map[string]any{}
		req.rawPayload = raw
		return req, nil
	}
	req.data = parsed
	return req, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func (d *decodedRequest) str(key string) string {
	v, _ := d.data[key].(string)
	return v
}

func (d *decodedRequest) int(key string) int {
	switch v := d.data[key].(type) {
	case float64:
		return int(v)
	case int:
		return v
	default:
		return 0
	}
}

func (d *decodedRequest) boolField(key string) bool {
	v, _ := d.data[key].(bool)
	return v
}
