package pairing

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Identity is the accessory's long-lived pairing identity. It survives
// restarts so controllers keep recognising the accessory.
type Identity struct {
	DeviceID     string
	SetupID      string
	ConfigNumber int
	CreatedAt    time.Time

	// TokenSecret signs controller tokens. Replacing it revokes them all.
	TokenSecret []byte
}

// Pairing is one paired controller.
type Pairing struct {
	ControllerID string    `json:"controller_id"`
	PublicKey    []byte    `json:"public_key"`
	Admin        bool      `json:"admin"`
	CreatedAt    time.Time `json:"created_at"`
}

// Store persists the identity and pairings.
type Store interface {
	LoadOrCreateIdentity(ctx context.Context) (Identity, error)
	BumpConfigNumber(ctx context.Context) (int, error)
	Pairings(ctx context.Context) ([]Pairing, error)
	SavePairing(ctx context.Context, p Pairing) error
	DeletePairing(ctx context.Context, controllerID string) error
}

// SQLiteStore keeps the identity and pairings in the accessory_identity and
// pairings tables.
type SQLiteStore struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStore returns a store on db. The schema comes from the embedded
// migrations.
func NewSQLiteStore(db *sql.DB) *SQLiteStore {
	return &SQLiteStore{db: db, now: time.Now}
}

// LoadOrCreateIdentity returns the stored identity, creating a random one on
// first use.
func (s *SQLiteStore) LoadOrCreateIdentity(ctx context.Context) (Identity, error) {
	id, err := s.loadIdentity(ctx)
	if err == nil {
		if len(id.TokenSecret) == 0 {
			return s.addTokenSecret(ctx, id)
		}
		return id, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return Identity{}, err
	}

	deviceID, err := GenerateDeviceID()
	if err != nil {
		return Identity{}, err
	}
	setupID, err := GenerateSetupID()
	if err != nil {
		return Identity{}, err
	}
	secret, err := generateTokenSecret()
	if err != nil {
		return Identity{}, err
	}
	id = Identity{DeviceID: deviceID, SetupID: setupID, ConfigNumber: 1, CreatedAt: s.now().UTC(), TokenSecret: secret}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO accessory_identity (id, device_id, setup_id, config_num, created_at, token_secret)
		 VALUES (1, ?, ?, ?, ?, ?)`,
		id.DeviceID, id.SetupID, id.ConfigNumber, id.CreatedAt.Format(time.RFC3339), id.TokenSecret)
	if err != nil {
		return Identity{}, fmt.Errorf("saving identity: %w", err)
	}
	return id, nil
}

// addTokenSecret gives an identity created before tokens existed its key.
func (s *SQLiteStore) addTokenSecret(ctx context.Context, id Identity) (Identity, error) {
	secret, err := generateTokenSecret()
	if err != nil {
		return Identity{}, err
	}
	if _, err := s.db.ExecContext(ctx, "UPDATE accessory_identity SET token_secret = ? WHERE id = 1", secret); err != nil {
		return Identity{}, fmt.Errorf("saving token secret: %w", err)
	}
	id.TokenSecret = secret
	return id, nil
}

func (s *SQLiteStore) loadIdentity(ctx context.Context) (Identity, error) {
	var id Identity
	var created string
	err := s.db.QueryRowContext(ctx,
		"SELECT device_id, setup_id, config_num, created_at, token_secret FROM accessory_identity WHERE id = 1",
	).Scan(&id.DeviceID, &id.SetupID, &id.ConfigNumber, &created, &id.TokenSecret)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return Identity{}, err
		}
		return Identity{}, fmt.Errorf("loading identity: %w", err)
	}
	id.CreatedAt, _ = time.Parse(time.RFC3339, created) //nolint:errcheck // written by us
	return id, nil
}

// BumpConfigNumber increments the configuration number advertised as "c#"
// and returns the new value. It wraps back to 1 after 65535.
func (s *SQLiteStore) BumpConfigNumber(ctx context.Context) (int, error) {
	_, err := s.db.ExecContext(ctx,
		`UPDATE accessory_identity
		 SET config_num = CASE WHEN config_num >= 65535 THEN 1 ELSE config_num + 1 END
		 WHERE id = 1`)
	if err != nil {
		return 0, fmt.Errorf("updating config number: %w", err)
	}
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT config_num FROM accessory_identity WHERE id = 1").Scan(&n); err != nil {
		return 0, fmt.Errorf("reading config number: %w", err)
	}
	return n, nil
}

// Pairings lists paired controllers, oldest first.
func (s *SQLiteStore) Pairings(ctx context.Context) ([]Pairing, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT controller_id, public_key, admin, created_at FROM pairings ORDER BY created_at, controller_id")
	if err != nil {
		return nil, fmt.Errorf("querying pairings: %w", err)
	}
	defer rows.Close()

	var out []Pairing
	for rows.Next() {
		var p Pairing
		var created string
		if err := rows.Scan(&p.ControllerID, &p.PublicKey, &p.Admin, &created); err != nil {
			return nil, fmt.Errorf("scanning pairing: %w", err)
		}
		p.CreatedAt, _ = time.Parse(time.RFC3339, created) //nolint:errcheck // written by us
		out = append(out, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating pairings: %w", err)
	}
	return out, nil
}

// SavePairing inserts or replaces a pairing.
func (s *SQLiteStore) SavePairing(ctx context.Context, p Pairing) error {
	if p.ControllerID == "" || len(p.PublicKey) == 0 {
		return ErrInvalidPairing
	}
	if p.CreatedAt.IsZero() {
		p.CreatedAt = s.now()
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO pairings (controller_id, public_key, admin, created_at) VALUES (?, ?, ?, ?)
		 ON CONFLICT(controller_id) DO UPDATE SET public_key = excluded.public_key, admin = excluded.admin`,
		p.ControllerID, p.PublicKey, p.Admin, p.CreatedAt.UTC().Format(time.RFC3339))
	if err != nil {
		return fmt.Errorf("saving pairing: %w", err)
	}
	return nil
}

// DeletePairing removes a pairing. It returns ErrPairingNotFound if there
// was none.
func (s *SQLiteStore) DeletePairing(ctx context.Context, controllerID string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM pairings WHERE controller_id = ?", controllerID)
	if err != nil {
		return fmt.Errorf("deleting pairing: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrPairingNotFound, controllerID)
	}
	return nil
}
