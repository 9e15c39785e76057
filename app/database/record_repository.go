package database

import (
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/lysyi3m/listing-comb/app/model"
)

// SQLRecordRepository handles database operations for collected records
type SQLRecordRepository struct {
	db *DB
}

func NewRecordRepository(db *DB) *SQLRecordRepository {
	return &SQLRecordRepository{db: db}
}

const recordColumns = `id, task_id, source_id, kind, url, external_id, title, description, price,
	original_price, currency, stock, images, tags, category, variants, shipping, raw, status,
	filter_results, created_at, updated_at`

func (r *SQLRecordRepository) CreateRecord(record model.CollectedRecord) error {
	args, err := recordArgs(record)
	if err != nil {
		return err
	}

	_, err = r.db.Exec(`
		INSERT INTO records (`+recordColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	`, args...)
	if isUniqueViolation(err) {
		return fmt.Errorf("%w: record for %s already exists in task %s", model.ErrStateConflict, record.URL, record.TaskID)
	}
	if err != nil {
		return fmt.Errorf("failed to create record: %w", err)
	}
	return nil
}

func (r *SQLRecordRepository) GetRecord(id string) (*model.CollectedRecord, error) {
	row := r.db.QueryRow(`SELECT `+recordColumns+` FROM records WHERE id = ?`, id)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: record %s", model.ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get record: %w", err)
	}
	return record, nil
}

func (r *SQLRecordRepository) FindRecordByURL(taskID, url string) (*model.CollectedRecord, error) {
	row := r.db.QueryRow(`SELECT `+recordColumns+` FROM records WHERE task_id = ? AND url = ?`, taskID, url)
	record, err := scanRecord(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: record for %s in task %s", model.ErrNotFound, url, taskID)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find record: %w", err)
	}
	return record, nil
}

func (r *SQLRecordRepository) UpdateRecord(record model.CollectedRecord) error {
	args, err := recordArgs(record)
	if err != nil {
		return err
	}

	args = append(args[1:], args[0])
	result, err := r.db.Exec(`
		UPDATE records
		SET task_id = ?, source_id = ?, kind = ?, url = ?, external_id = ?, title = ?, description = ?,
			price = ?, original_price = ?, currency = ?, stock = ?, images = ?, tags = ?, category = ?,
			variants = ?, shipping = ?, raw = ?, status = ?, filter_results = ?, created_at = ?, updated_at = ?
		WHERE id = ?
	`, args...)
	if err != nil {
		return fmt.Errorf("failed to update record: %w", err)
	}
	return expectOneRow(result, "record", record.ID)
}

// DeleteRecord refuses to drop records that already have a catalog entry.
func (r *SQLRecordRepository) DeleteRecord(id string) error {
	var refs int
	if err := r.db.QueryRow(`SELECT COUNT(*) FROM catalog WHERE record_id = ?`, id).Scan(&refs); err != nil {
		return fmt.Errorf("failed to check catalog references: %w", err)
	}
	if refs > 0 {
		return fmt.Errorf("%w: record %s is published", model.ErrStateConflict, id)
	}

	result, err := r.db.Exec(`DELETE FROM records WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("failed to delete record: %w", err)
	}
	return expectOneRow(result, "record", id)
}

func (r *SQLRecordRepository) ListRecords(query RecordQuery) ([]model.CollectedRecord, error) {
	var (
		where []string
		args  []any
	)

	if query.TaskID != "" {
		where = append(where, "task_id = ?")
		args = append(args, query.TaskID)
	}
	if query.Status != "" {
		where = append(where, "status = ?")
		args = append(args, string(query.Status))
	}
	if len(query.IDs) > 0 {
		where = append(where, "id IN (?"+strings.Repeat(", ?", len(query.IDs)-1)+")")
		for _, id := range query.IDs {
			args = append(args, id)
		}
	}

	stmt := `SELECT ` + recordColumns + ` FROM records`
	if len(where) > 0 {
		stmt += ` WHERE ` + strings.Join(where, " AND ")
	}
	stmt += ` ORDER BY created_at, rowid LIMIT ?`

	limit := query.Limit
	if limit <= 0 {
		limit = -1
	}
	args = append(args, limit)

	rows, err := r.db.Query(stmt, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list records: %w", err)
	}
	defer rows.Close()

	var records []model.CollectedRecord
	for rows.Next() {
		record, err := scanRecord(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan record: %w", err)
		}
		records = append(records, *record)
	}
	return records, rows.Err()
}

func recordArgs(record model.CollectedRecord) ([]any, error) {
	images, err := encodeJSON(record.Images)
	if err != nil {
		return nil, err
	}
	tags, err := encodeJSON(record.Tags)
	if err != nil {
		return nil, err
	}
	variants, err := encodeJSON(record.Variants)
	if err != nil {
		return nil, err
	}
	filterResults, err := encodeJSON(record.FilterResults)
	if err != nil {
		return nil, err
	}

	var shipping sql.NullString
	if record.Shipping != nil {
		encoded, err := encodeJSON(record.Shipping)
		if err != nil {
			return nil, err
		}
		shipping = sql.NullString{String: encoded, Valid: true}
	}

	var raw sql.NullString
	if len(record.Raw) > 0 {
		raw = sql.NullString{String: string(record.Raw), Valid: true}
	}

	return []any{
		record.ID, record.TaskID, record.SourceID, string(record.Kind), record.URL, record.ExternalID,
		record.Title, record.Description, record.Price, record.OriginalPrice, record.Currency,
		record.Stock, images, tags, record.Category, variants, shipping, raw, string(record.Status),
		filterResults, formatTime(record.CreatedAt), formatTime(record.UpdatedAt),
	}, nil
}

func scanRecord(row rowScanner) (*model.CollectedRecord, error) {
	var (
		record                 model.CollectedRecord
		kind, status           string
		images, tags, variants string
		filterResults          string
		shipping, raw          sql.NullString
		createdAt, updatedAt   string
	)

	err := row.Scan(&record.ID, &record.TaskID, &record.SourceID, &kind, &record.URL, &record.ExternalID,
		&record.Title, &record.Description, &record.Price, &record.OriginalPrice, &record.Currency,
		&record.Stock, &images, &tags, &record.Category, &variants, &shipping, &raw, &status,
		&filterResults, &createdAt, &updatedAt)
	if err != nil {
		return nil, err
	}

	record.Kind = model.SourceKind(kind)
	record.Status = model.RecordStatus(status)

	if err := decodeJSON(images, &record.Images); err != nil {
		return nil, err
	}
	if err := decodeJSON(tags, &record.Tags); err != nil {
		return nil, err
	}
	if err := decodeJSON(variants, &record.Variants); err != nil {
		return nil, err
	}
	if err := decodeJSON(filterResults, &record.FilterResults); err != nil {
		return nil, err
	}
	if shipping.Valid {
		record.Shipping = &model.Shipping{}
		if err := decodeJSON(shipping.String, record.Shipping); err != nil {
			return nil, err
		}
	}
	if raw.Valid {
		record.Raw = []byte(raw.String)
	}
	if record.CreatedAt, err = parseTime(createdAt); err != nil {
		return nil, err
	}
	if record.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return nil, err
	}

	return &record, nil
}
