// Package collectionsync implements the Collection Sync Handler (spec §4.4):
// the incremental sync state machine meta -> start -> applyGraves* ->
// applyChanges -> (chunk|applyChunk)* -> sanityCheck2 -> finish, grounded on
// ankisyncd/sync_app.py's SyncCollectionHandler.
package collectionsync

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/ankisyncd/ankisyncd-go/internal/collection"
	"github.com/ankisyncd/ankisyncd-go/internal/syncerr"
	"github.com/ankisyncd/ankisyncd-go/internal/syncutil"
)

// ChunkSize bounds how many notes/cards/revlog rows chunk() emits per batch.
const ChunkSize = 250

// Handler is a per-session incremental-sync state machine; one is created
// lazily per Session and rebound to whichever Collection the owning worker
// currently has open.
type Handler struct {
	col collection.Collection

	minUsn int
	maxUsn int
	lnewer bool
	rchg   Changes

	cardCursor  int
	noteCursor  int
	revlogCursor int
}

// New constructs a Handler bound to col.
func New(col collection.Collection) *Handler { return &Handler{col: col} }

// Rebind re-targets the handler at a freshly (re)opened collection, matching
// the original's handler.col = col reassignment after an idle-close reopen.
func (h *Handler) Rebind(col collection.Collection) { h.col = col }

// Meta is §4.4.1. v is the client's sync protocol version, cv its
// "client,version,platform" string.
func (h *Handler) Meta(v int, cv string) (MetaResponse, error) {
	if isOldClient(cv) {
		return MetaResponse{}, syncerr.New(syncerr.ClientUpgradeRequired, "client needs upgrade")
	}
	if v < 9 && h.col.SchedVer() >= 2 {
		return MetaResponse{
			Cont: false,
			Msg:  "Your client doesn't support the v" + strconv.Itoa(h.col.SchedVer()) + " scheduler.",
		}, nil
	}

	return MetaResponse{
		SCM:      h.col.SCM(),
		TS:       syncutil.Now(),
		Mod:      h.col.Mod(),
		USN:      h.col.USN(),
		MUSN:     h.col.Media().LastUsn(),
		Msg:      "",
		Cont:     true,
		HostNum:  0,
	}, nil
}

// MetaResponse is the wire shape returned by Meta.
type MetaResponse struct {
	SCM     int64  `json:"scm"`
	TS      int64  `json:"ts"`
	Mod     int64  `json:"mod"`
	USN     int    `json:"usn"`
	MUSN    int    `json:"musn"`
	Msg     string `json:"msg"`
	Cont    bool   `json:"cont"`
	HostNum int    `json:"hostNum"`
}

var versionAlphaRE = regexp.MustCompile(`(alpha|beta|rc)(\d*)$`)
var versionSuffixRE = regexp.MustCompile(`[^0-9.].*$`)

// isOldClient mirrors sync_app.py's _old_client: unknown clients are always
// treated as current (spec §4.4, Open Question (c)).
func isOldClient(cv string) bool {
	if cv == "" {
		return false
	}
	parts := strings.SplitN(cv, ",", 3)
	if len(parts) < 2 {
		return false
	}
	client, version := parts[0], parts[1]

	alpha := 0
	if m := versionAlphaRE.FindStringSubmatch(version); m != nil && m[1] == "alpha" {
		alpha, _ = strconv.Atoi(m[2])
		version = version[:len(version)-len(m[0])]
	} else if m != nil {
		version = version[:len(version)-len(m[0])]
	}

	versionNoSuffix := versionSuffixRE.ReplaceAllString(version, "")
	nums := parseVersionInts(versionNoSuffix)

	switch client {
	case "ankidesktop":
		return compareIntSlices(nums, []int{2, 0, 27}) < 0
	case "ankidroid":
		if len(nums) == 2 && nums[0] == 2 && nums[1] == 3 {
			if alpha != 0 {
				return alpha < 4
			}
			return false
		}
		return compareIntSlices(nums, []int{2, 2, 3}) < 0
	default:
		return false
	}
}

func parseVersionInts(s string) []int {
	fields := strings.Split(s, ".")
	out := make([]int, 0, len(fields))
	for _, f := range fields {
		n, err := strconv.Atoi(f)
		if err != nil {
			continue
		}
		out = append(out, n)
	}
	return out
}

func compareIntSlices(a, b []int) int {
	for i := 0; i < len(a) && i < len(b); i++ {
		if a[i] != b[i] {
			return a[i] - b[i]
		}
	}
	return len(a) - len(b)
}
