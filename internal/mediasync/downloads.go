package mediasync

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"strconv"

	"github.com/ankisyncd/ankisyncd-go/internal/syncerr"
)

// DownloadFiles builds a zip of the requested files, bounded by SyncMaxBytes/
// SyncMaxFiles (spec §4.5: the current file is included *before* the stop
// condition is checked, so the response can exceed the bound by one file).
func (h *Handler) DownloadFiles(files []string) ([]byte, error) {
	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)

	flist := map[string]string{}
	var size int64
	count := 0

	for _, fname := range files {
		fpath := filepath.Join(h.mediaDir, fname)
		data, err := os.ReadFile(fpath)
		if err != nil {
			return nil, syncerr.Wrap(syncerr.InternalError, "reading media file for download", err)
		}

		entryName := strconv.Itoa(count)
		w, err := zw.Create(entryName)
		if err != nil {
			return nil, syncerr.Wrap(syncerr.InternalError, "writing media zip entry", err)
		}
		if _, err := w.Write(data); err != nil {
			return nil, syncerr.Wrap(syncerr.InternalError, "writing media zip entry", err)
		}
		flist[entryName] = fname

		size += int64(len(data))
		if size > SyncMaxBytes || count > SyncMaxFiles {
			break
		}
		count++
	}

	metaBytes, err := json.Marshal(flist)
	if err != nil {
		return nil, err
	}
	if w, err := zw.Create("_meta"); err != nil {
		return nil, err
	} else if _, err := w.Write(metaBytes); err != nil {
		return nil, err
	}

	if err := zw.Close(); err != nil {
		return nil, syncerr.Wrap(syncerr.InternalError, "finalizing media zip", err)
	}
	return buf.Bytes(), nil
}

// MediaChangesResponse is the wire shape of mediaChanges.
type MediaChangesResponse struct {
	Data [][3]any `json:"data"`
	Err  string   `json:"err"`
}

// MediaChanges is §4.5.3-ish: rows since lastUsn, ordered ascending by usn
// (queried descending then reversed, matching the original).
func (h *Handler) MediaChanges(lastUsn int) (MediaChangesResponse, error) {
	serverLastUsn := h.col.Media().LastUsn()
	if lastUsn >= serverLastUsn && lastUsn != 0 {
		return MediaChangesResponse{Data: [][3]any{}, Err: ""}, nil
	}

	rows, err := h.col.Media().Changes(lastUsn)
	if err != nil {
		return MediaChangesResponse{}, err
	}

	data := make([][3]any, len(rows))
	for i, r := range rows {
		data[i] = [3]any{r.Filename, r.USN, r.Csum}
	}
	return MediaChangesResponse{Data: data, Err: ""}, nil
}

// MediaSanityResponse is the wire shape of mediaSanity.
type MediaSanityResponse struct {
	Data string `json:"data"`
	Err  string `json:"err"`
}

// MediaSanity compares the client's reported media count against the
// server's own count.
func (h *Handler) MediaSanity(local int) (MediaSanityResponse, error) {
	count, err := h.col.Media().MediaCount()
	if err != nil {
		return MediaSanityResponse{}, err
	}
	if count == local {
		return MediaSanityResponse{Data: "OK"}, nil
	}
	return MediaSanityResponse{Data: "FAILED"}, nil
}
