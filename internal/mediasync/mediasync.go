// Package mediasync implements the Media Sync Handler (spec §4.5), grounded
// on ankisyncd/sync_app.py's SyncMediaHandler: zip-based upload/download of
// media changesets bounded by size/count limits, USN-stamped media rows.
package mediasync

import (
	"archive/zip"
	"bytes"
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/klauspost/compress/flate"
	"golang.org/x/text/unicode/norm"

	"github.com/ankisyncd/ankisyncd-go/internal/collection"
	"github.com/ankisyncd/ankisyncd-go/internal/syncerr"
	"github.com/ankisyncd/ankisyncd-go/internal/syncutil"
)

// Media zips are high-volume bulk binary transfers, so archive/zip's deflate
// is backed by klauspost/compress rather than the stdlib implementation.
func init() {
	zip.RegisterCompressor(zip.Deflate, func(w io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(w, flate.DefaultCompression)
	})
	zip.RegisterDecompressor(zip.Deflate, func(r io.Reader) io.ReadCloser {
		return flate.NewReader(r)
	})
}

// Zip bounds from spec §4.5/§8, ground-truthed against the original's
// _check_zip_data.
const (
	MaxMetaFileSize = 100_000
	MaxZipSize      = 100 * 1024 * 1024
)

// Per-response download bounds, matching upstream Anki's SYNC_ZIP_SIZE/
// SYNC_ZIP_COUNT (not present in the Python reference's own consts.py, but
// exercised by the same downloadFiles loop it calls into).
const (
	SyncMaxBytes = int64(2.5 * 1024 * 1024)
	SyncMaxFiles = 25
)

// Handler is a per-session media-sync state machine, lazily created per
// Session like the Collection Sync Handler.
type Handler struct {
	col      collection.Collection
	mediaDir string
}

func New(col collection.Collection, mediaDir string) *Handler {
	return &Handler{col: col, mediaDir: mediaDir}
}

func (h *Handler) Rebind(col collection.Collection) { h.col = col }

// BeginResponse is the wire shape of begin(skey).
type BeginResponse struct {
	Data BeginData `json:"data"`
	Err  string    `json:"err"`
}

type BeginData struct {
	SKey string `json:"sk"`
	USN  int    `json:"usn"`
}

// Begin is §4.5.1.
func (h *Handler) Begin(skey string) BeginResponse {
	return BeginResponse{
		Data: BeginData{SKey: skey, USN: h.col.Media().LastUsn()},
		Err:  "",
	}
}

type metaEntry [2]any // [normname, ordinal-or-nil]

// UploadChangesResponse is the wire shape of uploadChanges.
type UploadChangesResponse struct {
	Data [2]int `json:"data"`
	Err  string `json:"err"`
}

// UploadChanges is §4.5.2/uploadChanges: the zip contains files the client
// hasn't synced yet ("dirty") plus deletion markers. Deletions are applied
// before additions.
func (h *Handler) UploadChanges(data []byte) (UploadChangesResponse, error) {
	zr, err := zip.NewReader(bytes.NewReader(data), int64(len(data)))
	if err != nil {
		return UploadChangesResponse{}, syncerr.Wrap(syncerr.BadRequest, "invalid media zip", err)
	}

	if err := h.checkZipData(zr); err != nil {
		return UploadChangesResponse{}, err
	}

	processed, err := h.adoptMediaChangesFromZip(zr)
	if err != nil {
		return UploadChangesResponse{}, err
	}

	return UploadChangesResponse{
		Data: [2]int{processed, h.col.Media().LastUsn()},
		Err:  "",
	}, nil
}

func (h *Handler) checkZipData(zr *zip.Reader) error {
	var metaSize int64
	var total int64
	for _, f := range zr.File {
		total += int64(f.UncompressedSize64)
		if f.Name == "_meta" {
			metaSize = int64(f.UncompressedSize64)
		}
	}
	if metaSize > MaxMetaFileSize {
		return syncerr.New(syncerr.BadRequest, "zip file's metadata file is larger than the allowed size")
	}
	if total > MaxZipSize {
		return syncerr.New(syncerr.BadRequest, "zip file contents are larger than the allowed size")
	}
	return nil
}

func (h *Handler) adoptMediaChangesFromZip(zr *zip.Reader) (int, error) {
	metaFile, err := findZipFile(zr, "_meta")
	if err != nil {
		return 0, syncerr.Wrap(syncerr.BadRequest, "media zip missing _meta entry", err)
	}
	metaBytes, err := readZipFile(metaFile)
	if err != nil {
		return 0, err
	}

	var meta []metaEntry
	if err := json.Unmarshal(metaBytes, &meta); err != nil {
		return 0, syncerr.Wrap(syncerr.BadRequest, "malformed media zip _meta entry", err)
	}

	media := h.col.Media()
	usn := media.LastUsn()

	var toRemove []string
	for _, entry := range meta {
		if isEmptyOrdinal(entry[1]) {
			toRemove = append(toRemove, normalizeFilename(entry[0].(string)))
		}
	}
	for _, fname := range toRemove {
		usn++
		if err := media.SyncDelete(fname, usn); err != nil {
			return 0, err
		}
		if err := os.Remove(filepath.Join(h.mediaDir, fname)); err != nil && !os.IsNotExist(err) {
			return 0, syncerr.Wrap(syncerr.InternalError, "removing deleted media file", err)
		}
	}

	var added int
	for _, f := range zr.File {
		if f.Name == "_meta" {
			continue
		}
		idx, err := zipEntryIndex(f.Name)
		if err != nil {
			return 0, err
		}
		if idx < 0 || idx >= len(meta) {
			return 0, syncerr.New(syncerr.BadRequest, "media zip entry references unknown _meta index")
		}

		fileData, err := readZipFile(f)
		if err != nil {
			return 0, err
		}
		csum := syncutil.Checksum(fileData)
		filename := normalizeFilename(meta[idx][0].(string))
		filePath := filepath.Join(h.mediaDir, filename)
		if err := os.WriteFile(filePath, fileData, 0644); err != nil {
			return 0, syncerr.Wrap(syncerr.InternalError, "writing uploaded media file", err)
		}

		usn++
		if err := media.AddOrUpdate(filename, usn, csum); err != nil {
			return 0, err
		}
		added++
	}

	media.SetLastUsn(usn)
	return len(toRemove) + added, nil
}

func isEmptyOrdinal(ordinal any) bool {
	if ordinal == nil {
		return true
	}
	if s, ok := ordinal.(string); ok {
		return s == ""
	}
	return false
}

func normalizeFilename(filename string) string {
	if syncutil.LocalNormalizationForm() == syncutil.NFD {
		return norm.NFD.String(filename)
	}
	return norm.NFC.String(filename)
}

func findZipFile(zr *zip.Reader, name string) (*zip.File, error) {
	for _, f := range zr.File {
		if f.Name == name {
			return f, nil
		}
	}
	return nil, os.ErrNotExist
}

func zipEntryIndex(name string) (int, error) {
	idx, err := strconv.Atoi(name)
	if err != nil {
		return -1, syncerr.Wrap(syncerr.BadRequest, "media zip entry name is not a valid index", err)
	}
	return idx, nil
}

func readZipFile(f *zip.File) ([]byte, error) {
	rc, err := f.Open()
	if err != nil {
		return nil, syncerr.Wrap(syncerr.InternalError, "reading media zip entry", err)
	}
	defer rc.Close()
	return io.ReadAll(rc)
}
