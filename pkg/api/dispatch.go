package api

import (
	"encoding/json"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/ankisyncd/ankisyncd-go/internal/collection"
	"github.com/ankisyncd/ankisyncd-go/internal/collectionsync"
	"github.com/ankisyncd/ankisyncd-go/internal/logger"
	"github.com/ankisyncd/ankisyncd-go/internal/mediasync"
	"github.com/ankisyncd/ankisyncd-go/internal/sessionstore"
	"github.com/ankisyncd/ankisyncd-go/internal/syncerr"
)

// collectionOperations is the Collection Sync Handler's valid_urls set.
var collectionOperations = map[string]bool{
	"meta": true, "applyChanges": true, "start": true, "applyGraves": true,
	"chunk": true, "applyChunk": true, "sanityCheck2": true, "finish": true,
}

// mediaOperations is the Media Sync Handler's valid_urls set.
var mediaOperations = map[string]bool{
	"begin": true, "mediaChanges": true, "mediaSanity": true,
	"uploadChanges": true, "downloadFiles": true,
}

// Dispatcher is the Request Dispatcher (spec §4.6): it decodes every sync
// protocol request, resolves its session, and routes it to the Collection
// Sync Handler, the Media Sync Handler, or the Full-Sync Manager, grounded
// directly on ankisyncd/sync_app.py's SyncApp.__call__.
type Dispatcher struct {
	deps      *Deps
	base      string
	mediaBase string
}

func NewDispatcher(deps *Deps) *Dispatcher {
	return &Dispatcher{
		deps:      deps,
		base:      normalizeBasePath(deps.Config.BaseURL),
		mediaBase: normalizeBasePath(deps.Config.BaseMediaURL),
	}
}

// normalizeBasePath matches SyncApp's own normalization ("make sure the
// base_url has a trailing slash"), additionally anchoring it to the URL
// path's leading slash since config stores base_url without one.
func normalizeBasePath(base string) string {
	if !strings.HasPrefix(base, "/") {
		base = "/" + base
	}
	if !strings.HasSuffix(base, "/") {
		base += "/"
	}
	return base
}

func (d *Dispatcher) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch {
	case strings.HasPrefix(r.URL.Path, d.base):
		d.handleCollectionRequest(w, r, strings.TrimPrefix(r.URL.Path, d.base))
	case strings.HasPrefix(r.URL.Path, d.mediaBase):
		d.handleMediaRequest(w, r, strings.TrimPrefix(r.URL.Path, d.mediaBase))
	default:
		w.Write([]byte("ankisyncd"))
	}
}

func (d *Dispatcher) handleCollectionRequest(w http.ResponseWriter, r *http.Request, op string) {
	req, err := decodeRequest(r)
	if err != nil {
		d.writeError(w, err)
		return
	}

	if op == "hostKey" {
		d.handleHostKey(w, r, req)
		return
	}

	session, err := d.resolveSession(r, req)
	if err != nil {
		d.writeError(w, err)
		return
	}

	switch op {
	case "upload":
		d.handleUpload(w, r, req, session)
		return
	case "download":
		d.handleDownload(w, r, session)
		return
	}
	if !collectionOperations[op] {
		d.writeError(w, syncerr.New(syncerr.NotFound, "unknown operation"))
		return
	}

	if op == "meta" {
		if session.SessionKey == "" && req.sKeyField != "" {
			session.SessionKey = req.sKeyField
		}
		if v := req.int("v"); v != 0 {
			session.ProtocolVersion = v
		}
		if cv := req.str("cv"); cv != "" {
			session.ClientVersion = cv
		}
		if err := d.deps.Sessions.Save(r.Context(), session); err != nil {
			d.writeError(w, syncerr.Wrap(syncerr.InternalError, "saving session", err))
			return
		}
	}

	d.runHooks(r, session, d.deps.PreHooks[op])

	start := time.Now()
	result, err := d.deps.Pool.Execute(r.Context(), d.deps.CollectionPath(session.UserDir), true, func(col collection.Collection) (any, error) {
		h := d.collectionHandlerFor(session, col)
		res, err := d.callCollectionOperation(h, op, req)
		if err == nil {
			if saveErr := col.Save(); saveErr != nil {
				return nil, saveErr
			}
		}
		return res, err
	})
	d.deps.Metrics.ObserveRequest(op, time.Since(start), err)
	if err != nil {
		d.writeError(w, err)
		return
	}

	d.runHooks(r, session, d.deps.PostHooks[op])
	d.writeResult(w, result)
}

func (d *Dispatcher) handleMediaRequest(w http.ResponseWriter, r *http.Request, op string) {
	req, err := decodeRequest(r)
	if err != nil {
		d.writeError(w, err)
		return
	}

	session, err := d.resolveSession(r, req)
	if err != nil {
		d.writeError(w, err)
		return
	}
	if !mediaOperations[op] {
		d.writeError(w, syncerr.New(syncerr.NotFound, "unknown operation"))
		return
	}

	start := time.Now()
	result, err := d.deps.Pool.Execute(r.Context(), d.deps.CollectionPath(session.UserDir), true, func(col collection.Collection) (any, error) {
		h := d.mediaHandlerFor(session, col)
		res, err := d.callMediaOperation(h, op, req, session)
		if err == nil {
			if saveErr := col.Save(); saveErr != nil {
				return nil, saveErr
			}
		}
		return res, err
	})
	d.deps.Metrics.ObserveRequest(op, time.Since(start), err)
	if err != nil {
		d.writeError(w, err)
		return
	}
	d.writeResult(w, result)
}

func (d *Dispatcher) handleUpload(w http.ResponseWriter, r *http.Request, req *decodedRequest, session *sessionstore.Session) {
	d.runHooks(r, session, d.deps.PreHooks["upload"])

	collectionPath := filepath.Join(d.deps.CollectionPath(session.UserDir), "collection.anki2")
	result, err := d.deps.Pool.Execute(r.Context(), d.deps.CollectionPath(session.UserDir), true, func(col collection.Collection) (any, error) {
		return d.deps.FullSync.Upload(col, collectionPath, req.rawPayload)
	})
	if err != nil {
		d.writeError(w, err)
		return
	}

	d.runHooks(r, session, d.deps.PostHooks["upload"])
	d.writeResult(w, result)
}

func (d *Dispatcher) handleDownload(w http.ResponseWriter, r *http.Request, session *sessionstore.Session) {
	d.runHooks(r, session, d.deps.PreHooks["download"])

	collectionPath := filepath.Join(d.deps.CollectionPath(session.UserDir), "collection.anki2")
	result, err := d.deps.Pool.Execute(r.Context(), d.deps.CollectionPath(session.UserDir), true, func(col collection.Collection) (any, error) {
		return d.deps.FullSync.Download(collectionPath)
	})
	if err != nil {
		d.writeError(w, err)
		return
	}

	d.runHooks(r, session, d.deps.PostHooks["download"])
	d.writeResult(w, result)
}

func (d *Dispatcher) handleHostKey(w http.ResponseWriter, r *http.Request, req *decodedRequest) {
	username := req.str("u")
	password := req.str("p")

	if !d.deps.Users.Authenticate(r.Context(), username, password) {
		d.writeError(w, syncerr.New(syncerr.AuthFailure, "invalid credentials"))
		return
	}
	dir, ok := d.deps.Users.UserDir(r.Context(), username)
	if !ok {
		d.writeError(w, syncerr.New(syncerr.AuthFailure, "invalid credentials"))
		return
	}

	hkey := sessionstore.GenerateHostKey(username)
	session := sessionstore.NewSession(hkey, username, dir)
	if err := d.deps.Sessions.Save(r.Context(), session); err != nil {
		d.writeError(w, syncerr.Wrap(syncerr.InternalError, "saving session", err))
		return
	}

	d.writeResult(w, map[string]string{"key": hkey})
}

// resolveSession looks the session up by host-key (`k`, form then query)
// and falls back to session-key (`sk`), matching SyncApp.__call__.
func (d *Dispatcher) resolveSession(r *http.Request, req *decodedRequest) (*sessionstore.Session, error) {
	ctx := r.Context()
	if req.hostKey != "" {
		session, err := d.deps.Sessions.Load(ctx, req.hostKey)
		if err == nil {
			return session, nil
		}
	}
	if req.sessionKey != "" {
		session, err := d.deps.Sessions.LoadFromSKey(ctx, req.sessionKey)
		if err == nil {
			return session, nil
		}
	}
	return nil, syncerr.New(syncerr.AuthFailure, "no session for request")
}

func (d *Dispatcher) runHooks(r *http.Request, session *sessionstore.Session, hooks []Hook) {
	for _, hook := range hooks {
		if _, err := d.deps.Pool.Execute(r.Context(), d.deps.CollectionPath(session.UserDir), true, func(collection.Collection) (any, error) {
			return nil, hook(session)
		}); err != nil {
			logger.Errorf("sync hook failed for user %s: %v", session.Username, err)
		}
	}
}

func (d *Dispatcher) collectionHandlerFor(session *sessionstore.Session, col collection.Collection) *collectionsync.Handler {
	session.Lock()
	defer session.Unlock()
	if h, ok := session.CollectionHandler.(*collectionsync.Handler); ok {
		h.Rebind(col)
		return h
	}
	h := collectionsync.New(col)
	session.CollectionHandler = h
	return h
}

func (d *Dispatcher) mediaHandlerFor(session *sessionstore.Session, col collection.Collection) *mediasync.Handler {
	session.Lock()
	defer session.Unlock()
	if h, ok := session.MediaHandler.(*mediasync.Handler); ok {
		h.Rebind(col)
		return h
	}
	mediaDir := filepath.Join(d.deps.CollectionPath(session.UserDir), "collection.media")
	h := mediasync.New(col, mediaDir)
	session.MediaHandler = h
	return h
}

// callCollectionOperation routes a decoded request to the matching
// collectionsync.Handler method, extracting its keyword arguments from the
// client's JSON payload the way run_func(**keyword_args) does in the original.
func (d *Dispatcher) callCollectionOperation(h *collectionsync.Handler, op string, req *decodedRequest) (any, error) {
	switch op {
	case "meta":
		return h.Meta(req.int("v"), req.str("cv"))
	case "start":
		return h.Start(req.int("minUsn"), req.boolField("lnewer"), decodeGraves(req.data["graves"]))
	case "applyGraves":
		return nil, h.ApplyGraves(decodeGraves(req.data["chunk"]))
	case "applyChanges":
		return h.ApplyChanges(decodeChanges(req.data["changes"]))
	case "chunk":
		return h.Chunk()
	case "applyChunk":
		return nil, h.ApplyChunk(decodeChunk(req.data["chunk"]))
	case "sanityCheck2":
		return h.SanityCheck2(decodeIntSlice(req.data["client"]))
	case "finish":
		return h.Finish()
	default:
		return nil, syncerr.New(syncerr.NotFound, "unknown collection operation")
	}
}

func (d *Dispatcher) callMediaOperation(h *mediasync.Handler, op string, req *decodedRequest, session *sessionstore.Session) (any, error) {
	switch op {
	case "begin":
		return h.Begin(session.SessionKey), nil
	case "mediaChanges":
		return h.MediaChanges(req.int("lastUsn"))
	case "mediaSanity":
		return h.MediaSanity(req.int("local"))
	case "uploadChanges":
		return h.UploadChanges(req.rawPayload)
	case "downloadFiles":
		files := decodeStringSlice(req.data["files"])
		return h.DownloadFiles(files)
	default:
		return nil, syncerr.New(syncerr.NotFound, "unknown media operation")
	}
}

func (d *Dispatcher) writeError(w http.ResponseWriter, err error) {
	se, ok := syncerr.As(err)
	if !ok {
		se = syncerr.Wrap(syncerr.InternalError, "internal error", err)
	}
	logger.Errorf("sync request failed: %v", se)
	http.Error(w, se.Message, se.Kind.Status())
}

// writeResult mirrors SyncApp.__call__'s "if it's a complex data type,
// convert to JSON" rule: strings and raw bytes pass through untouched,
// everything else is JSON-encoded.
func (d *Dispatcher) writeResult(w http.ResponseWriter, result any) {
	switch v := result.(type) {
	case string:
		w.Write([]byte(v))
	case []byte:
		w.Write(v)
	default:
		w.Header().Set("Content-Type", "application/json")
		if err := json.NewEncoder(w).Encode(v); err != nil {
			logger.Errorf("encoding sync response: %v", err)
		}
	}
}
