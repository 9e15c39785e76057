package database

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/lysyi3m/listing-comb/app/model"
)

// SQLCatalogRepository handles database operations for published catalog records
type SQLCatalogRepository struct {
	db *DB
}

func NewCatalogRepository(db *DB) *SQLCatalogRepository {
	return &SQLCatalogRepository{db: db}
}

const catalogColumns = `id, record_id, source_id, title, description, price, currency, category,
	tags, inventory, images, published_at`

func (r *SQLCatalogRepository) CreateCatalogRecord(record model.CatalogRecord) error {
	tags, err := encodeJSON(record.Tags)
	if err != nil {
		return err
	}
	images, err := encodeJSON(record.Images)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(`
		INSERT INTO catalog (`+catalogColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, record.ID, record.RecordID, record.SourceID, record.Title, record.Description, record.Price,
		record.Currency, record.Category, tags, record.Inventory, images, formatTime(record.PublishedAt))
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: catalog record %s already exists", model.ErrStateConflict, record.ID)
	}
	if err != nil {
		return fmt.Errorf("failed to create catalog record: %w", err)
	}
	return nil
}

func (r *SQLCatalogRepository) GetCatalogRecord(id string) (*model.CatalogRecord, error) {
	record, err := scanCatalogRecord(r.db.QueryRow(`SELECT `+catalogColumns+` FROM catalog WHERE id = ?`, id))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: catalog record %s", model.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get catalog record: %w", err)
	}
	return record, nil
}

func (r *SQLCatalogRepository) ListCatalogRecords(limit int) ([]model.CatalogRecord, error) {
	if limit <= 0 {
		limit = -1
	}

	rows, err := r.db.Query(`SELECT `+catalogColumns+` FROM catalog ORDER BY published_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list catalog records: %w", err)
	}
	defer rows.Close()

	var records []model.CatalogRecord
	for rows.Next() {
		record, err := scanCatalogRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan catalog record: %w", err)
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}

func scanCatalogRecord(row rowScanner) (*model.CatalogRecord, error) {
	var (
		record       model.CatalogRecord
		tags, images string
		publishedAt  string
	)

	err := row.Scan(&record.ID, &record.RecordID, &record.SourceID, &record.Title, &record.Description,
		&record.Price, &record.Currency, &record.Category, &tags, &record.Inventory, &images, &publishedAt)
	if err != nil {
		return nil, err
	}

	if err = decodeJSON(tags, &record.Tags); err != nil {
		return nil, err
	}
	if err = decodeJSON(images, &record.Images); err != nil {
		return nil, err
	}
	if record.PublishedAt, err = parseTime(publishedAt); err != nil {
		return nil, err
	}
	return &record, nil
}
