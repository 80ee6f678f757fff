package state

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/danielpatrickdp/belief-controller/internal/belief"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// #region schema
const schema = `
CREATE TABLE IF NOT EXISTS belief_versions (
	version_id     TEXT PRIMARY KEY,
	parent_id      TEXT,
	particles      BLOB NOT NULL,
	particle_count INTEGER NOT NULL,
	created_at     TEXT NOT NULL,
	metrics_json   TEXT,
	FOREIGN KEY (parent_id) REFERENCES belief_versions(version_id)
);

CREATE TABLE IF NOT EXISTS provenance_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	version_id    TEXT NOT NULL,
	trigger_type  TEXT NOT NULL,
	step_json     TEXT,
	decision      TEXT NOT NULL,
	reason        TEXT,
	created_at    TEXT NOT NULL,
	FOREIGN KEY (version_id) REFERENCES belief_versions(version_id)
);

CREATE TABLE IF NOT EXISTS active_belief (
	id            INTEGER PRIMARY KEY CHECK (id = 1),
	version_id    TEXT NOT NULL,
	prior_id      TEXT NOT NULL,
	FOREIGN KEY (version_id) REFERENCES belief_versions(version_id),
	FOREIGN KEY (prior_id) REFERENCES belief_versions(version_id)
);
`

const versionColumns = `v.version_id, v.parent_id, v.particles, v.created_at, v.metrics_json`

// #endregion schema

// #region store-struct
// Store manages versioned beliefs in SQLite.
type Store struct {
	db *sql.DB
}

// #endregion store-struct

// #region constructor
// NewStore opens a SQLite database and runs migrations.
func NewStore(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("pragma fk: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}
	return &Store{db: db}, nil
}

// #endregion constructor

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// DB returns the underlying *sql.DB for use by other packages (e.g. logging).
func (s *Store) DB() *sql.DB {
	return s.db
}

// #region create-initial
// CreateInitialBelief stores prior as the root version and points both the
// active and the prior pointers at it.
func (s *Store) CreateInitialBelief(prior *belief.ParticleBelief) (BeliefRecord, error) {
	rec := BeliefRecord{
		VersionID: uuid.New().String(),
		Belief:    prior.Copy(),
		CreatedAt: time.Now().UTC(),
	}

	tx, err := s.db.Begin()
	if err != nil {
		return BeliefRecord{}, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := insertVersion(tx, rec); err != nil {
		return BeliefRecord{}, err
	}

	_, err = tx.Exec(
		`INSERT INTO active_belief (id, version_id, prior_id) VALUES (1, ?, ?)
		 ON CONFLICT(id) DO UPDATE SET version_id = excluded.version_id, prior_id = excluded.prior_id`,
		rec.VersionID, rec.VersionID,
	)
	if err != nil {
		return BeliefRecord{}, fmt.Errorf("set active: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return BeliefRecord{}, fmt.Errorf("commit: %w", err)
	}
	return rec, nil
}

// #endregion create-initial

// #region get-current
// GetCurrent reads the active belief version.
func (s *Store) GetCurrent() (BeliefRecord, error) {
	var versionID string
	err := s.db.QueryRow(`SELECT version_id FROM active_belief WHERE id = 1`).Scan(&versionID)
	if err != nil {
		return BeliefRecord{}, fmt.Errorf("get active: %w", err)
	}
	return s.GetVersion(versionID)
}

// GetPrior reads the reference prior the store was initialized with.
func (s *Store) GetPrior() (BeliefRecord, error) {
	var priorID string
	err := s.db.QueryRow(`SELECT prior_id FROM active_belief WHERE id = 1`).Scan(&priorID)
	if err != nil {
		return BeliefRecord{}, fmt.Errorf("get prior: %w", err)
	}
	return s.GetVersion(priorID)
}

// #endregion get-current

// #region get-version
// GetVersion retrieves a specific belief version by ID.
func (s *Store) GetVersion(id string) (BeliefRecord, error) {
	row := s.db.QueryRow(
		`SELECT `+versionColumns+` FROM belief_versions v WHERE v.version_id = ?`, id,
	)
	rec, err := scanVersion(row)
	if err != nil {
		return BeliefRecord{}, fmt.Errorf("get version %s: %w", id, err)
	}
	return rec, nil
}

// #endregion get-version

// #region commit-belief
// CommitBelief inserts a new version and updates the active pointer atomically.
func (s *Store) CommitBelief(rec BeliefRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := insertVersion(tx, rec); err != nil {
		return err
	}

	_, err = tx.Exec(`UPDATE active_belief SET version_id = ? WHERE id = 1`, rec.VersionID)
	if err != nil {
		return fmt.Errorf("update active: %w", err)
	}

	return tx.Commit()
}

// StoreRejected inserts a version without moving the active pointer. It keeps
// proposals that failed post-commit checks available for inspection.
func (s *Store) StoreRejected(rec BeliefRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	if err := insertVersion(tx, rec); err != nil {
		return err
	}
	return tx.Commit()
}

// #endregion commit-belief

// #region rollback
// Rollback sets the active pointer to a previous version.
func (s *Store) Rollback(targetVersionID string) error {
	var exists int
	err := s.db.QueryRow(
		`SELECT COUNT(*) FROM belief_versions WHERE version_id = ?`, targetVersionID,
	).Scan(&exists)
	if err != nil {
		return fmt.Errorf("check version: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("version %s not found", targetVersionID)
	}

	_, err = s.db.Exec(`UPDATE active_belief SET version_id = ? WHERE id = 1`, targetVersionID)
	if err != nil {
		return fmt.Errorf("rollback: %w", err)
	}
	return nil
}

// #endregion rollback

// #region list-versions
// ListVersions returns the most recent belief versions in insertion order,
// newest first.
func (s *Store) ListVersions(limit int) ([]BeliefRecord, error) {
	rows, err := s.db.Query(
		`SELECT `+versionColumns+` FROM belief_versions v
		 ORDER BY v.rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list versions: %w", err)
	}
	defer rows.Close()

	var records []BeliefRecord
	for rows.Next() {
		rec, err := scanVersion(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ListVersionsWithProvenance returns the most recent versions joined with the
// latest provenance row for each, newest first. Versions without provenance
// (the root prior) report an empty decision.
func (s *Store) ListVersionsWithProvenance(limit int) ([]VersionWithProvenance, error) {
	rows, err := s.db.Query(
		`SELECT `+versionColumns+`, p.decision, p.reason, p.step_json
		 FROM belief_versions v
		 LEFT JOIN provenance_log p ON p.id = (
			SELECT MAX(id) FROM provenance_log WHERE version_id = v.version_id
		 )
		 ORDER BY v.rowid DESC LIMIT ?`, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list versions with provenance: %w", err)
	}
	defer rows.Close()

	var out []VersionWithProvenance
	for rows.Next() {
		var vp VersionWithProvenance
		var decision, reason, stepJSON sql.NullString
		rec, err := scanVersion(rows, &decision, &reason, &stepJSON)
		if err != nil {
			return nil, fmt.Errorf("scan row: %w", err)
		}
		vp.BeliefRecord = rec
		vp.Decision = decision.String
		vp.Reason = reason.String
		vp.StepJSON = stepJSON.String
		out = append(out, vp)
	}
	return out, rows.Err()
}

// #endregion list-versions

// #region row-codec
type scanner interface {
	Scan(dest ...any) error
}

func scanVersion(row scanner, extra ...any) (BeliefRecord, error) {
	var rec BeliefRecord
	var parentID sql.NullString
	var blob []byte
	var createdStr string
	var metricsJSON sql.NullString

	dest := append([]any{&rec.VersionID, &parentID, &blob, &createdStr, &metricsJSON}, extra...)
	if err := row.Scan(dest...); err != nil {
		return BeliefRecord{}, err
	}

	rec.ParentID = parentID.String
	rec.Belief = belief.New()
	if err := rec.Belief.UnmarshalBinary(blob); err != nil {
		return BeliefRecord{}, fmt.Errorf("decode particles: %w", err)
	}
	rec.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdStr)
	rec.MetricsJSON = metricsJSON.String
	return rec, nil
}

func insertVersion(tx *sql.Tx, rec BeliefRecord) error {
	blob, err := rec.Belief.MarshalBinary()
	if err != nil {
		return fmt.Errorf("encode particles: %w", err)
	}

	var parentPtr any
	if rec.ParentID != "" {
		parentPtr = rec.ParentID
	}
	var metricsPtr any
	if rec.MetricsJSON != "" {
		metricsPtr = rec.MetricsJSON
	}

	_, err = tx.Exec(
		`INSERT INTO belief_versions (version_id, parent_id, particles, particle_count, created_at, metrics_json)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		rec.VersionID, parentPtr, blob, rec.Belief.Len(),
		rec.CreatedAt.Format(time.RFC3339Nano), metricsPtr,
	)
	if err != nil {
		return fmt.Errorf("insert version: %w", err)
	}
	return nil
}

// #endregion row-codec
