package collectionsync

import "github.com/ankisyncd/ankisyncd-go/internal/collection"

// Changes is the models/decks/deck-configs/tags/conf/crt bundle exchanged by
// applyChanges (spec §4.4.4/§4.4.8). Decks is the upstream library's
// combined [decks, dconf] two-element changeset, not two separate keys.
type Changes struct {
	Models collection.JSONObject    `json:"models"`
	Decks  [2]collection.JSONObject `json:"decks"`
	Tags   map[string]int           `json:"tags"`
	Conf   collection.JSONObject    `json:"conf"`
	Crt    int64                    `json:"crt"`
}

// ApplyChanges is §4.4.4: stash the client's changes as rchg, compute the
// server-side lchg (entities at usn >= minUsn), merge rchg in, and return
// lchg. The side indicated by h.lnewer wins per entity class on a tie.
func (h *Handler) ApplyChanges(rchg Changes) (Changes, error) {
	h.rchg = rchg

	lchg, err := h.localChanges()
	if err != nil {
		return Changes{}, err
	}

	if err := h.mergeChanges(rchg); err != nil {
		return Changes{}, err
	}

	return lchg, nil
}

func (h *Handler) localChanges() (Changes, error) {
	models, err := h.getModels()
	if err != nil {
		return Changes{}, err
	}
	decks, confs, err := h.getDecks()
	if err != nil {
		return Changes{}, err
	}
	tags, err := h.getTags()
	if err != nil {
		return Changes{}, err
	}
	conf, err := h.col.Conf()
	if err != nil {
		return Changes{}, err
	}
	return Changes{
		Models: models,
		Decks:  [2]collection.JSONObject{decks, confs},
		Tags:   tags,
		Conf:   conf,
		Crt:    h.col.Crt(),
	}, nil
}

func (h *Handler) mergeChanges(rchg Changes) error {
	if len(rchg.Models) > 0 {
		if err := h.col.Models().Merge(rchg.Models, h.lnewer); err != nil {
			return err
		}
	}
	if len(rchg.Decks[0]) > 0 || len(rchg.Decks[1]) > 0 {
		if err := h.col.Decks().Merge(rchg.Decks[0], rchg.Decks[1], h.lnewer); err != nil {
			return err
		}
	}
	if len(rchg.Tags) > 0 {
		if err := h.col.Tags().Merge(rchg.Tags); err != nil {
			return err
		}
	}
	if len(rchg.Conf) > 0 {
		if err := h.mergeConf(rchg.Conf); err != nil {
			return err
		}
	}
	return nil
}

// mergeConf folds the client's config keys into the server's, last-writer
// wins per key (the upstream library's `col.conf.update(changes["conf"])`).
func (h *Handler) mergeConf(incoming collection.JSONObject) error {
	conf, err := h.col.Conf()
	if err != nil {
		return err
	}
	for k, v := range incoming {
		conf[k] = v
	}
	return h.col.SetConf(conf)
}

// getModels is §4.4.8: models with usn >= minUsn.
func (h *Handler) getModels() (collection.JSONObject, error) {
	return h.col.Models().Since(h.minUsn)
}

// getDecks is §4.4.8: decks and deck-configs, each filtered by usn >= minUsn.
func (h *Handler) getDecks() (collection.JSONObject, collection.JSONObject, error) {
	return h.col.Decks().Since(h.minUsn)
}

// getTags is §4.4.8: tag names with usn >= minUsn.
func (h *Handler) getTags() (map[string]int, error) {
	return h.col.Tags().Since(h.minUsn)
}
