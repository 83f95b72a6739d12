package collectionsync

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/ankisyncd/ankisyncd-go/internal/collection/sqlitecol"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	col, err := sqlitecol.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { col.Close() })
	return New(col)
}

func TestIsOldClient_AnkidesktopBelowThreshold(t *testing.T) {
	require.True(t, isOldClient("ankidesktop,2.0.26,mac"))
	require.False(t, isOldClient("ankidesktop,2.0.27,mac"))
	require.False(t, isOldClient("ankidesktop,2.1.49,mac"))
}

func TestIsOldClient_AnkidroidAlphaRule(t *testing.T) {
	require.True(t, isOldClient("ankidroid,2.3alpha3,android"))
	require.False(t, isOldClient("ankidroid,2.3alpha4,android"))
	require.True(t, isOldClient("ankidroid,2.2.2,android"))
	require.False(t, isOldClient("ankidroid,2.2.3,android"))
}

func TestIsOldClient_UnknownClientNeverOld(t *testing.T) {
	require.False(t, isOldClient("somefork,0.0.1,linux"))
	require.False(t, isOldClient(""))
}

func TestMeta_EmptyCollection(t *testing.T) {
	h := newTestHandler(t)
	resp, err := h.Meta(11, "ankidesktop,2.1.49,mac")
	require.NoError(t, err)
	require.True(t, resp.Cont)
	require.Equal(t, 0, resp.USN)
}

func TestMeta_RejectsOldClient(t *testing.T) {
	h := newTestHandler(t)
	_, err := h.Meta(11, "ankidesktop,2.0.1,mac")
	require.Error(t, err)
}

func TestStartAndFinish_USNProgression(t *testing.T) {
	h := newTestHandler(t)

	removed, err := h.Start(0, false, Graves{})
	require.NoError(t, err)
	require.Empty(t, removed.Cards)

	mod, err := h.Finish()
	require.NoError(t, err)
	require.Greater(t, mod, int64(0))
	require.Equal(t, 1, h.col.USN())
}

func TestApplyChanges_EmptyRoundtrip(t *testing.T) {
	h := newTestHandler(t)
	_, err := h.Start(0, false, Graves{})
	require.NoError(t, err)

	lchg, err := h.ApplyChanges(Changes{Tags: map[string]int{}})
	require.NoError(t, err)
	require.Empty(t, lchg.Models)
}

func TestSanityCheck2_MatchingCountsOK(t *testing.T) {
	h := newTestHandler(t)
	counts, err := h.col.SanityCheck()
	require.NoError(t, err)

	result, err := h.SanityCheck2(counts)
	require.NoError(t, err)
	require.Equal(t, "ok", result.Status)
}

func TestSanityCheck2_MismatchIsBad(t *testing.T) {
	h := newTestHandler(t)
	result, err := h.SanityCheck2([]int{99, 99, 99, 99, 99, 99, 99})
	require.NoError(t, err)
	require.Equal(t, "bad", result.Status)
}

func TestApplyGraves_ThenRemovedSeesThem(t *testing.T) {
	h := newTestHandler(t)
	_, err := h.Start(0, false, Graves{})
	require.NoError(t, err)

	require.NoError(t, h.ApplyGraves(Graves{Cards: []int64{1, 2}}))

	removed, err := h.removed()
	require.NoError(t, err)
	require.ElementsMatch(t, []int64{1, 2}, removed.Cards)
}
