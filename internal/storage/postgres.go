package storage

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/xaenox/globalsync/internal/models"
)

//go:embed migrations.sql
var migrations embed.FS

type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN renders the config as a lib/pq connection string.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

type PostgresStorage struct {
	db *sql.DB
}

func NewPostgresStorage(config DatabaseConfig) (*PostgresStorage, error) {
	db, err := sql.Open("postgres", config.DSN())
	if err != nil {
		return nil, fmt.Errorf("error opening database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error connecting to the database: %w", err)
	}

	storage := NewPostgresStorageFromDB(db)
	if err := storage.initializeSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("error initializing database schema: %w", err)
	}

	return storage, nil
}

// NewPostgresStorageFromDB wraps an open handle without running migrations.
func NewPostgresStorageFromDB(db *sql.DB) *PostgresStorage {
	return &PostgresStorage{db: db}
}

func (s *PostgresStorage) initializeSchema() error {
	migrationSQL, err := migrations.ReadFile("migrations.sql")
	if err != nil {
		return fmt.Errorf("error reading migrations file: %w", err)
	}

	if _, err := s.db.Exec(string(migrationSQL)); err != nil {
		return fmt.Errorf("error executing migrations: %w", err)
	}

	return nil
}

const customerColumns = `id, user_id, name, timezone, country_code, preferred_hours, notes, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanCustomer(row rowScanner) (*models.Customer, error) {
	c := &models.Customer{}
	var hours []byte
	if err := row.Scan(&c.ID, &c.UserID, &c.Name, &c.Timezone, &c.CountryCode,
		&hours, &c.Notes, &c.CreatedAt, &c.UpdatedAt); err != nil {
		return nil, err
	}
	if len(hours) > 0 {
		var w models.HourWindow
		if err := json.Unmarshal(hours, &w); err != nil {
			return nil, fmt.Errorf("error decoding preferred hours: %w", err)
		}
		c.PreferredHours = &w
	}
	return c, nil
}

func (s *PostgresStorage) GetCustomer(ctx context.Context, userID int64, customerID string) (*models.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE id = $1 AND user_id = $2`

	c, err := scanCustomer(s.db.QueryRowContext(ctx, query, customerID, userID))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error querying customer: %w", err)
	}
	return c, nil
}

func (s *PostgresStorage) SaveCustomer(ctx context.Context, customer *models.Customer) error {
	if customer.ID == "" {
		customer.ID = uuid.New().String()
	}

	// JSONB parameters go over the wire as text; a []byte would be sent as bytea.
	var hours sql.NullString
	if customer.PreferredHours != nil {
		encoded, err := json.Marshal(customer.PreferredHours)
		if err != nil {
			return fmt.Errorf("error encoding preferred hours: %w", err)
		}
		hours = sql.NullString{String: string(encoded), Valid: true}
	}

	query := `
		INSERT INTO customers (id, user_id, name, timezone, country_code, preferred_hours, notes)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			timezone = EXCLUDED.timezone,
			country_code = EXCLUDED.country_code,
			preferred_hours = EXCLUDED.preferred_hours,
			notes = EXCLUDED.notes,
			updated_at = NOW()
		RETURNING created_at, updated_at`

	err := s.db.QueryRowContext(ctx, query,
		customer.ID,
		customer.UserID,
		customer.Name,
		customer.Timezone,
		customer.CountryCode,
		hours,
		customer.Notes,
	).Scan(&customer.CreatedAt, &customer.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error saving customer: %w", err)
	}
	return nil
}

func (s *PostgresStorage) ListCustomers(ctx context.Context, userID int64) ([]*models.Customer, error) {
	query := `SELECT ` + customerColumns + ` FROM customers WHERE user_id = $1 ORDER BY name`

	rows, err := s.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("error querying customers: %w", err)
	}
	defer rows.Close()

	var customers []*models.Customer
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning customer: %w", err)
		}
		customers = append(customers, c)
	}
	return customers, rows.Err()
}

func (s *PostgresStorage) DeleteCustomer(ctx context.Context, userID int64, customerID string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM customers WHERE id = $1 AND user_id = $2`, customerID, userID)
	if err != nil {
		return fmt.Errorf("error deleting customer: %w", err)
	}
	return expectAffected(result)
}

// Focus items are stored as JSONB documents; status and revision are
// denormalized for querying.
func (s *PostgresStorage) GetFocusItem(ctx context.Context, userID int64, customerID string) (*models.FocusItem, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx,
		`SELECT data FROM focus_items WHERE user_id = $1 AND customer_id = $2`,
		userID, customerID).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error querying focus item: %w", err)
	}
	return decodeFocusItem(data)
}

func (s *PostgresStorage) SaveFocusItem(ctx context.Context, item *models.FocusItem) error {
	now := time.Now().UTC()
	if item.CreatedAt.IsZero() {
		item.CreatedAt = now
	}
	item.UpdatedAt = now

	data, err := json.Marshal(item)
	if err != nil {
		return fmt.Errorf("error encoding focus item: %w", err)
	}

	query := `
		INSERT INTO focus_items (user_id, customer_id, status, revision, data, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (user_id, customer_id) DO UPDATE SET
			status = EXCLUDED.status,
			revision = EXCLUDED.revision,
			data = EXCLUDED.data,
			updated_at = EXCLUDED.updated_at`

	_, err = s.db.ExecContext(ctx, query,
		item.UserID,
		item.CustomerID,
		string(item.Status()),
		item.Revision,
		string(data),
		item.CreatedAt,
		item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("error saving focus item: %w", err)
	}
	return nil
}

func (s *PostgresStorage) DeleteFocusItem(ctx context.Context, userID int64, customerID string) error {
	result, err := s.db.ExecContext(ctx,
		`DELETE FROM focus_items WHERE user_id = $1 AND customer_id = $2`, userID, customerID)
	if err != nil {
		return fmt.Errorf("error deleting focus item: %w", err)
	}
	return expectAffected(result)
}

func (s *PostgresStorage) ListFocusItems(ctx context.Context, userID int64) ([]*models.FocusItem, error) {
	return s.queryFocusItems(ctx,
		`SELECT data FROM focus_items WHERE user_id = $1 ORDER BY created_at`, userID)
}

func (s *PostgresStorage) ListAllFocusItems(ctx context.Context) ([]*models.FocusItem, error) {
	return s.queryFocusItems(ctx,
		`SELECT data FROM focus_items ORDER BY user_id, created_at`)
}

func (s *PostgresStorage) queryFocusItems(ctx context.Context, query string, args ...any) ([]*models.FocusItem, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error querying focus items: %w", err)
	}
	defer rows.Close()

	var items []*models.FocusItem
	for rows.Next() {
		var data []byte
		if err := rows.Scan(&data); err != nil {
			return nil, fmt.Errorf("error scanning focus item: %w", err)
		}
		item, err := decodeFocusItem(data)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

func decodeFocusItem(data []byte) (*models.FocusItem, error) {
	item := &models.FocusItem{}
	if err := json.Unmarshal(data, item); err != nil {
		return nil, fmt.Errorf("error decoding focus item: %w", err)
	}
	return item, nil
}

func (s *PostgresStorage) GetProfile(ctx context.Context, userID int64) (*models.UserProfile, error) {
	p := &models.UserProfile{}
	err := s.db.QueryRowContext(ctx, `
		SELECT user_id, chat_id, timezone, work_start, work_end, updated_at
		FROM user_profiles
		WHERE user_id = $1`, userID,
	).Scan(&p.UserID, &p.ChatID, &p.Timezone, &p.WorkHours.Start, &p.WorkHours.End, &p.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("error querying user profile: %w", err)
	}
	return p, nil
}

func (s *PostgresStorage) SaveProfile(ctx context.Context, profile *models.UserProfile) error {
	query := `
		INSERT INTO user_profiles (user_id, chat_id, timezone, work_start, work_end, updated_at)
		VALUES ($1, $2, $3, $4, $5, NOW())
		ON CONFLICT (user_id) DO UPDATE SET
			chat_id = EXCLUDED.chat_id,
			timezone = EXCLUDED.timezone,
			work_start = EXCLUDED.work_start,
			work_end = EXCLUDED.work_end,
			updated_at = NOW()
		RETURNING updated_at`

	err := s.db.QueryRowContext(ctx, query,
		profile.UserID,
		profile.ChatID,
		profile.Timezone,
		profile.WorkHours.Start,
		profile.WorkHours.End,
	).Scan(&profile.UpdatedAt)
	if err != nil {
		return fmt.Errorf("error saving user profile: %w", err)
	}
	return nil
}

func expectAffected(result sql.Result) error {
	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("error getting rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgresStorage) Close() error {
	return s.db.Close()
}
