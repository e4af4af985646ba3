package storage

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"

	"imageflow/internal/models"
)

// Storage is the Postgres-backed record store for image records.
type Storage struct {
	pool *pgxpool.Pool
	db   *sql.DB // For migrations
}

func NewStorage(dsn string) (*Storage, error) {
	const op = "storage.NewStorage"

	pool, err := pgxpool.New(context.Background(), dsn)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", op, err)
	}

	db := stdlib.OpenDBFromPool(pool)
	if err := runMigrations(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("%s: %v", op, err)
	}

	return &Storage{pool: pool, db: db}, nil
}

func (s *Storage) Close() {
	s.db.Close()
	s.pool.Close()
}

// CreateImage inserts a new record in processing state and returns it.
func (s *Storage) CreateImage(ctx context.Context, originalName, storedPath string) (*models.ImageRecord, error) {
	const op = "storage.CreateImage"

	rec := &models.ImageRecord{
		ID:           uuid.New(),
		OriginalName: originalName,
		StoredPath:   storedPath,
		CreatedAt:    time.Now().UTC(),
		Status:       models.StatusProcessing,
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO images (id, original_name, stored_path, created_at, status)
		 VALUES ($1, $2, $3, $4, $5)`,
		rec.ID, rec.OriginalName, rec.StoredPath, rec.CreatedAt, rec.Status)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", op, err)
	}
	return rec, nil
}

func (s *Storage) GetImage(ctx context.Context, id uuid.UUID) (*models.ImageRecord, error) {
	const op = "storage.GetImage"

	row := s.pool.QueryRow(ctx,
		`SELECT id, original_name, stored_path, created_at, processed_at, metadata, thumbnails, caption, status
		 FROM images WHERE id = $1`, id)

	rec, err := scanRecord(row)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", op, err)
	}
	return rec, nil
}

func (s *Storage) ListImages(ctx context.Context) ([]models.ImageRecord, error) {
	const op = "storage.ListImages"

	rows, err := s.pool.Query(ctx,
		`SELECT id, original_name, stored_path, created_at, processed_at, metadata, thumbnails, caption, status
		 FROM images ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", op, err)
	}
	defer rows.Close()

	var out []models.ImageRecord
	for rows.Next() {
		rec, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %v", op, err)
		}
		out = append(out, *rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %v", op, err)
	}
	return out, nil
}

// UpdateTerminal writes the terminal outcome of a job in one atomic update.
// A record that already reached a terminal status is never overwritten.
func (s *Storage) UpdateTerminal(ctx context.Context, id uuid.UUID, status string, meta *models.Metadata, thumbnails map[string]string, caption *string, processedAt time.Time) error {
	const op = "storage.UpdateTerminal"

	var metaJSON, thumbsJSON []byte
	var err error
	if meta != nil {
		if metaJSON, err = json.Marshal(meta); err != nil {
			return fmt.Errorf("%s: %v", op, err)
		}
	}
	if thumbnails != nil {
		if thumbsJSON, err = json.Marshal(thumbnails); err != nil {
			return fmt.Errorf("%s: %v", op, err)
		}
	}

	tag, err := s.pool.Exec(ctx,
		`UPDATE images
		 SET status = $2, metadata = $3, thumbnails = $4, caption = $5, processed_at = $6
		 WHERE id = $1 AND status = $7`,
		id, status, metaJSON, thumbsJSON, caption, processedAt, models.StatusProcessing)
	if err != nil {
		return fmt.Errorf("%s: %v", op, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("%s: record %s not found or already terminal", op, id)
	}
	return nil
}

// Stats derives aggregate counts and the mean processing duration in seconds
// over records that reached a terminal status.
func (s *Storage) Stats(ctx context.Context) (*models.Stats, error) {
	const op = "storage.Stats"

	var st models.Stats
	var avg float64
	err := s.pool.QueryRow(ctx,
		`SELECT COUNT(*),
		        COUNT(*) FILTER (WHERE status = 'success'),
		        COUNT(*) FILTER (WHERE status = 'failed'),
		        COUNT(*) FILTER (WHERE status = 'processing'),
		        COALESCE(AVG(EXTRACT(EPOCH FROM (processed_at - created_at))) FILTER (WHERE processed_at IS NOT NULL), 0)
		 FROM images`).Scan(&st.Total, &st.Successful, &st.Failed, &st.Processing, &avg)
	if err != nil {
		return nil, fmt.Errorf("%s: %v", op, err)
	}

	st.AvgProcessSecs = round2(avg)
	if st.Total > 0 {
		st.SuccessRate = round2(float64(st.Successful) / float64(st.Total) * 100)
	}
	return &st, nil
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRecord(row rowScanner) (*models.ImageRecord, error) {
	var rec models.ImageRecord
	var metaJSON, thumbsJSON []byte
	if err := row.Scan(&rec.ID, &rec.OriginalName, &rec.StoredPath, &rec.CreatedAt,
		&rec.ProcessedAt, &metaJSON, &thumbsJSON, &rec.Caption, &rec.Status); err != nil {
		return nil, err
	}
	if len(metaJSON) > 0 {
		rec.Metadata = &models.Metadata{}
		if err := json.Unmarshal(metaJSON, rec.Metadata); err != nil {
			return nil, err
		}
	}
	if len(thumbsJSON) > 0 {
		if err := json.Unmarshal(thumbsJSON, &rec.Thumbnails); err != nil {
			return nil, err
		}
	}
	return &rec, nil
}
