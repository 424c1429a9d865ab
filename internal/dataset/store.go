package dataset

import (
	"database/sql"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strconv"

	"atlas-service/internal/models"

	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// Required dataset columns, as produced by the upstream projection step.
const (
	colText      = "description"
	colRating    = "Rating"
	colX         = "projection_x"
	colY         = "projection_y"
	colNeighbors = "neighbors"
)

// Store holds the projected review dataset. It is loaded once at startup
// and read-only afterwards: records live in memory in row order, and a
// mirror table in an in-memory sqlite database serves predicate queries.
type Store struct {
	db      *sql.DB
	records []models.Record
	path    string
	logger  *zap.Logger
}

// Open reads the dataset file and builds the query table. A missing or
// malformed file returns an error matching models.ErrDataUnavailable.
func Open(path string, logger *zap.Logger) (*Store, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open %s: %v", models.ErrDataUnavailable, path, err)
	}
	defer file.Close()

	records, err := readRecords(file)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", models.ErrDataUnavailable, path, err)
	}

	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("%w: failed to open query database: %v", models.ErrDataUnavailable, err)
	}

	// A single connection keeps the in-memory database visible to every
	// query and serializes access to it.
	db.SetMaxOpenConns(1)

	store := &Store{
		db:      db,
		records: records,
		path:    path,
		logger:  logger,
	}

	if err := store.populate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("%w: failed to build query table: %v", models.ErrDataUnavailable, err)
	}

	logger.Info("Dataset loaded",
		zap.String("path", path),
		zap.Int("rows", len(records)))

	return store, nil
}

// readRecords parses the CSV file into ordered records. Row index is the
// stable record id.
func readRecords(r io.Reader) ([]models.Record, error) {
	reader := csv.NewReader(r)

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("failed to read header: %v", err)
	}

	index := make(map[string]int, len(header))
	for i, name := range header {
		index[name] = i
	}
	for _, required := range []string{colText, colRating, colX, colY, colNeighbors} {
		if _, ok := index[required]; !ok {
			return nil, fmt.Errorf("missing required column %q", required)
		}
	}

	var records []models.Record
	for {
		row, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read row %d: %v", len(records)+1, err)
		}

		rating, err := strconv.ParseFloat(row[index[colRating]], 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid rating %q", len(records)+1, row[index[colRating]])
		}
		x, err := strconv.ParseFloat(row[index[colX]], 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid projection_x %q", len(records)+1, row[index[colX]])
		}
		y, err := strconv.ParseFloat(row[index[colY]], 64)
		if err != nil {
			return nil, fmt.Errorf("row %d: invalid projection_y %q", len(records)+1, row[index[colY]])
		}

		var neighbors []int64
		if raw := row[index[colNeighbors]]; raw != "" {
			if err := json.Unmarshal([]byte(raw), &neighbors); err != nil {
				return nil, fmt.Errorf("row %d: invalid neighbors %q", len(records)+1, raw)
			}
		}

		records = append(records, models.Record{
			ID:        int64(len(records)),
			Text:      row[index[colText]],
			Rating:    rating,
			X:         x,
			Y:         y,
			Neighbors: neighbors,
		})
	}

	return records, nil
}

// populate creates the reviews table and inserts every record.
func (s *Store) populate() error {
	schema := `
	CREATE TABLE reviews (
		id INTEGER PRIMARY KEY,
		description TEXT NOT NULL,
		"Rating" REAL NOT NULL,
		projection_x REAL NOT NULL,
		projection_y REAL NOT NULL,
		neighbors TEXT
	);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}

	stmt, err := tx.Prepare(`INSERT INTO reviews (id, description, "Rating", projection_x, projection_y, neighbors) VALUES (?, ?, ?, ?, ?, ?)`)
	if err != nil {
		tx.Rollback()
		return err
	}
	defer stmt.Close()

	for _, rec := range s.records {
		neighborList := rec.Neighbors
		if neighborList == nil {
			neighborList = []int64{}
		}
		neighbors, err := json.Marshal(neighborList)
		if err != nil {
			tx.Rollback()
			return err
		}
		if _, err := stmt.Exec(rec.ID, rec.Text, rec.Rating, rec.X, rec.Y, string(neighbors)); err != nil {
			tx.Rollback()
			return err
		}
	}

	return tx.Commit()
}

// QueryIDs evaluates a boolean predicate against the reviews table and
// returns matching record ids in dataset order. The predicate is opaque
// text from the view layer; it only ever meets a read-only in-memory
// database holding the dataset table. Evaluation failure returns an error
// matching models.ErrInvalidPredicate.
func (s *Store) QueryIDs(predicate string) ([]int64, error) {
	stmt, err := s.db.Prepare("SELECT id FROM reviews WHERE (" + predicate + ") ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidPredicate, err)
	}
	defer stmt.Close()

	rows, err := stmt.Query()
	if err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidPredicate, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("%w: %v", models.ErrInvalidPredicate, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", models.ErrInvalidPredicate, err)
	}

	return ids, nil
}

// Records returns all records in dataset order. Callers must not mutate
// the returned slice.
func (s *Store) Records() []models.Record {
	return s.records
}

// Record returns the record with the given id. Ids are row indexes.
func (s *Store) Record(id int64) models.Record {
	return s.records[id]
}

// Len returns the number of records.
func (s *Store) Len() int {
	return len(s.records)
}

// Path returns the source file path the dataset was loaded from.
func (s *Store) Path() string {
	return s.path
}

// Close releases the query database.
func (s *Store) Close() error {
	return s.db.Close()
}
