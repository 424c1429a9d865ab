package export

import (
	"archive/zip"
	"bytes"
	"crypto/sha256"
	"encoding/csv"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strconv"

	"atlas-service/internal/dataset"
	"atlas-service/internal/models"

	"github.com/klauspost/compress/flate"
	"go.uber.org/zap"
)

// Version is the exporter tool version. It participates in the content
// identifier, so bumping it invalidates previously exported artifacts.
const Version = "1.0.0"

// Props maps dataset columns to viewer roles, mirrored into the archive
// metadata.
type Props struct {
	RowID     string `json:"row_id"`
	X         string `json:"x"`
	Y         string `json:"y"`
	Text      string `json:"text"`
	Neighbors string `json:"neighbors"`
}

// DefaultProps returns the column mapping for the projected review
// dataset.
func DefaultProps() Props {
	return Props{
		RowID:     "id",
		X:         "projection_x",
		Y:         "projection_y",
		Text:      "description",
		Neighbors: "neighbors",
	}
}

// Config holds archive export settings.
type Config struct {
	SourcePath string `json:"source_path"`
	StaticDir  string `json:"static_dir,omitempty"`
	Props      Props  `json:"props"`
}

// metadata is serialized into the archive next to the dataset.
type metadata struct {
	Identifier string `json:"identifier"`
	Version    string `json:"version"`
	RowCount   int    `json:"row_count"`
	Props      Props  `json:"props"`
}

// Service packages the dataset into distributable artifacts.
type Service struct {
	logger *zap.Logger
}

// NewService creates an export service.
func NewService(logger *zap.Logger) *Service {
	return &Service{logger: logger}
}

// Identifier computes the deterministic content identifier: a sha256 over
// the ordered concatenation of tool version, source path and the
// serialized config. Identical inputs always yield the same identifier,
// which names and dedupes exported artifacts.
func Identifier(version string, cfg Config) (string, error) {
	cfgJSON, err := json.Marshal(cfg)
	if err != nil {
		return "", fmt.Errorf("failed to serialize export config: %w", err)
	}

	h := sha256.New()
	for _, part := range [][]byte{[]byte(version), []byte(cfg.SourcePath), cfgJSON} {
		// Length-prefixed so adjacent inputs cannot collide.
		h.Write([]byte(strconv.Itoa(len(part))))
		h.Write([]byte(":"))
		h.Write(part)
	}

	return hex.EncodeToString(h.Sum(nil)), nil
}

// Archive serializes the dataset, its metadata and the static viewer
// assets into a single zip. Byte-identical for identical inputs: entries
// are added in a fixed order with zeroed timestamps.
func (s *Service) Archive(store *dataset.Store, cfg Config) ([]byte, error) {
	identifier, err := Identifier(Version, cfg)
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	zw := zip.NewWriter(&buf)
	zw.RegisterCompressor(zip.Deflate, func(out io.Writer) (io.WriteCloser, error) {
		return flate.NewWriter(out, flate.BestCompression)
	})

	datasetCSV, err := DatasetCSV(store)
	if err != nil {
		zw.Close()
		return nil, err
	}
	if err := addFile(zw, "data/reviews.csv", datasetCSV); err != nil {
		zw.Close()
		return nil, err
	}

	meta := metadata{
		Identifier: identifier,
		Version:    Version,
		RowCount:   store.Len(),
		Props:      cfg.Props,
	}
	metaJSON, err := json.MarshalIndent(meta, "", "  ")
	if err != nil {
		zw.Close()
		return nil, fmt.Errorf("failed to serialize metadata: %w", err)
	}
	if err := addFile(zw, "metadata.json", metaJSON); err != nil {
		zw.Close()
		return nil, err
	}

	if cfg.StaticDir != "" {
		if err := addStaticAssets(zw, cfg.StaticDir); err != nil {
			zw.Close()
			return nil, err
		}
	}

	if err := zw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize archive: %w", err)
	}

	s.logger.Info("Archive built",
		zap.String("identifier", identifier),
		zap.Int("rows", store.Len()),
		zap.Int("bytes", buf.Len()))

	return buf.Bytes(), nil
}

// addFile writes one zip entry with a zeroed timestamp.
func addFile(zw *zip.Writer, name string, data []byte) error {
	w, err := zw.CreateHeader(&zip.FileHeader{
		Name:   name,
		Method: zip.Deflate,
	})
	if err != nil {
		return fmt.Errorf("failed to create archive entry %s: %w", name, err)
	}
	if _, err := w.Write(data); err != nil {
		return fmt.Errorf("failed to write archive entry %s: %w", name, err)
	}
	return nil
}

// addStaticAssets copies the viewer asset directory under static/.
// WalkDir visits entries in lexical order, keeping the archive
// deterministic.
func addStaticAssets(zw *zip.Writer, dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return fmt.Errorf("failed to walk static dir: %w", err)
		}
		if d.IsDir() {
			return nil
		}
		rel, err := filepath.Rel(dir, path)
		if err != nil {
			return err
		}
		data, err := os.ReadFile(path)
		if err != nil {
			return fmt.Errorf("failed to read static asset %s: %w", path, err)
		}
		return addFile(zw, "static/"+filepath.ToSlash(rel), data)
	})
}

// DatasetCSV serializes the full dataset in row order.
func DatasetCSV(store *dataset.Store) ([]byte, error) {
	return recordsCSV(store.Records())
}

// SelectionCSV serializes the selection's rows for download.
func SelectionCSV(sel *models.Selection) ([]byte, error) {
	return recordsCSV(sel.Rows)
}

func recordsCSV(records []models.Record) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	writer.Write([]string{"id", "description", "Rating", "projection_x", "projection_y", "neighbors"})

	for _, rec := range records {
		neighborList := rec.Neighbors
		if neighborList == nil {
			neighborList = []int64{}
		}
		neighbors, err := json.Marshal(neighborList)
		if err != nil {
			return nil, fmt.Errorf("failed to serialize neighbors for row %d: %w", rec.ID, err)
		}
		writer.Write([]string{
			strconv.FormatInt(rec.ID, 10),
			rec.Text,
			strconv.FormatFloat(rec.Rating, 'g', -1, 64),
			strconv.FormatFloat(rec.X, 'g', -1, 64),
			strconv.FormatFloat(rec.Y, 'g', -1, 64),
			string(neighbors),
		})
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("failed to write csv: %w", err)
	}

	return buf.Bytes(), nil
}
