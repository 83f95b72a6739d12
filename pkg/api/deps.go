package api

import (
	"path/filepath"

	"github.com/ankisyncd/ankisyncd-go/internal/config"
	"github.com/ankisyncd/ankisyncd-go/internal/fullsync"
	"github.com/ankisyncd/ankisyncd-go/internal/metrics"
	"github.com/ankisyncd/ankisyncd-go/internal/sessionstore"
	"github.com/ankisyncd/ankisyncd-go/internal/usermanager"
	"github.com/ankisyncd/ankisyncd-go/internal/workerpool"
)

// Hook is a pre/post dispatch extension point, run as its own job on the
// session's worker before or after the dispatched operation (spec §10,
// supplemented from ankisyncd/sync_app.py's prehooks/posthooks).
type Hook func(session *sessionstore.Session) error

// Deps bundles every collaborator the Request Dispatcher needs: the user
// and session stores, the worker pool owning every open collection, and the
// full-sync manager, plus optional pre/post hooks keyed by operation name.
type Deps struct {
	Config   *config.Config
	Users    usermanager.UserManager
	Sessions sessionstore.Store
	Pool     *workerpool.Pool
	FullSync *fullsync.Manager
	Metrics  *metrics.Metrics

	PreHooks  map[string][]Hook
	PostHooks map[string][]Hook
}

// CollectionPath returns the absolute collection directory for a session.
func (d *Deps) CollectionPath(userDir string) string {
	return filepath.Join(d.Config.DataRoot, userDir)
}
