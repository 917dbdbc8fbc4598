// Package store persists dependency records in SQLite.
//
// The store implements the persistence mapper for the dependency model:
// bulk insert that returns full rows, forward and reverse reads, and the
// canonical-name resolution query consumed by the validator. Callers own
// the transaction boundary for validate-then-insert sequences; the store
// only guarantees that a single Replace or Insert call is atomic.
package store

import (
	"context"
	"database/sql"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/cenk/backoff"
	_ "modernc.org/sqlite"

	"github.com/git-pkgs/depstore/internal/core"
)

//go:embed schema/0001_init.sql
var schema string

// ErrNotFound is returned when a package or version does not exist.
var ErrNotFound = errors.New("not found")

const dependencyColumns = "id, version_id, package_id, req, optional, default_features, features, target, kind"

// Store wraps a SQLite database holding packages, versions, and
// dependency records.
type Store struct {
	db        *sql.DB
	busyLimit time.Duration
}

// Option configures a Store.
type Option func(*Store)

// WithBusyRetry sets how long write operations keep retrying when the
// database is locked by another writer. Zero disables retries.
func WithBusyRetry(limit time.Duration) Option {
	return func(s *Store) {
		s.busyLimit = limit
	}
}

// Open opens (creating if necessary) the database at the given DSN and
// runs the schema.
func Open(dsn string, opts ...Option) (*Store, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL: %w", err)
	}
	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}

	s := &Store{db: db, busyLimit: 2 * time.Second}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// Close closes the underlying database.
func (s *Store) Close() error {
	return s.db.Close()
}

// withBusyRetry retries fn with exponential backoff while the database
// reports a busy/locked condition. Any other error aborts immediately.
func (s *Store) withBusyRetry(fn func() error) error {
	if s.busyLimit <= 0 {
		return fn()
	}
	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = 5 * time.Millisecond
	bo.MaxInterval = 250 * time.Millisecond
	bo.MaxElapsedTime = s.busyLimit
	return backoff.Retry(func() error {
		err := fn()
		if err == nil {
			return nil
		}
		if !isBusy(err) {
			return backoff.Permanent(err)
		}
		return err
	}, bo)
}

func isBusy(err error) bool {
	msg := err.Error()
	return strings.Contains(msg, "database is locked") || strings.Contains(msg, "SQLITE_BUSY")
}

// ----- Packages and versions -----

// Package is one row of the package lookup table.
type Package struct {
	ID        int64
	Name      string
	Downloads int64
}

// CreatePackage registers a package name. The canonical form is stored
// alongside the exact name to serve canonical lookups.
func (s *Store) CreatePackage(ctx context.Context, name string) (*Package, error) {
	var id int64
	err := s.withBusyRetry(func() error {
		res, err := s.db.ExecContext(ctx,
			"INSERT INTO packages (name, canon_name) VALUES (?, ?)",
			name, core.CanonicalName(name),
		)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("creating package %q: %w", name, err)
	}
	return &Package{ID: id, Name: name}, nil
}

// GetPackage retrieves a package by its exact name.
func (s *Store) GetPackage(ctx context.Context, name string) (*Package, error) {
	var p Package
	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, downloads FROM packages WHERE name = ?", name,
	).Scan(&p.ID, &p.Name, &p.Downloads)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// AddDownloads increments a package's aggregate download counter.
func (s *Store) AddDownloads(ctx context.Context, packageID, n int64) error {
	return s.withBusyRetry(func() error {
		_, err := s.db.ExecContext(ctx,
			"UPDATE packages SET downloads = downloads + ? WHERE id = ?", n, packageID)
		return err
	})
}

// CreateVersion registers a published version of a package and returns its id.
func (s *Store) CreateVersion(ctx context.Context, packageID int64, num string) (int64, error) {
	var id int64
	err := s.withBusyRetry(func() error {
		res, err := s.db.ExecContext(ctx,
			"INSERT INTO versions (package_id, num) VALUES (?, ?)", packageID, num)
		if err != nil {
			return err
		}
		id, err = res.LastInsertId()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("creating version %q: %w", num, err)
	}
	return id, nil
}

// ----- Name resolution -----

// ResolveNames returns the (id, stored name) pairs of all packages whose
// canonical name matches any of the candidates. It implements
// core.NameResolver as a single query.
func (s *Store) ResolveNames(ctx context.Context, names []string) ([]core.ResolvedPackage, error) {
	if len(names) == 0 {
		return nil, nil
	}

	seen := make(map[string]struct{}, len(names))
	args := make([]any, 0, len(names))
	for _, name := range names {
		canon := core.CanonicalName(name)
		if _, dup := seen[canon]; dup {
			continue
		}
		seen[canon] = struct{}{}
		args = append(args, canon)
	}

	query := "SELECT id, name FROM packages WHERE canon_name IN (?" +
		strings.Repeat(", ?", len(args)-1) + ")"
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var resolved []core.ResolvedPackage
	for rows.Next() {
		var p core.ResolvedPackage
		if err := rows.Scan(&p.ID, &p.Name); err != nil {
			return nil, err
		}
		resolved = append(resolved, p)
	}
	return resolved, rows.Err()
}

// ----- Dependency records -----

type querier interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// InsertDependencies bulk-inserts validated records in a single statement
// and returns the stored rows, ids assigned. The insert is atomic: either
// every record is stored or none is.
func (s *Store) InsertDependencies(ctx context.Context, deps []core.NewDependency) ([]core.Dependency, error) {
	var records []core.Dependency
	err := s.withBusyRetry(func() error {
		var err error
		records, err = insertDependencies(ctx, s.db, deps)
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("inserting dependencies: %w", err)
	}
	return records, nil
}

// ReplaceDependencies replaces a version's dependency set wholesale: the
// existing records are deleted and the new set inserted in one transaction.
func (s *Store) ReplaceDependencies(ctx context.Context, versionID int64, deps []core.NewDependency) ([]core.Dependency, error) {
	var records []core.Dependency
	err := s.withBusyRetry(func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer tx.Rollback()

		if _, err := tx.ExecContext(ctx,
			"DELETE FROM dependencies WHERE version_id = ?", versionID); err != nil {
			return err
		}
		records, err = insertDependencies(ctx, tx, deps)
		if err != nil {
			return err
		}
		return tx.Commit()
	})
	if err != nil {
		return nil, fmt.Errorf("replacing dependencies: %w", err)
	}
	return records, nil
}

func insertDependencies(ctx context.Context, q querier, deps []core.NewDependency) ([]core.Dependency, error) {
	if len(deps) == 0 {
		return nil, nil
	}

	var sb strings.Builder
	sb.WriteString("INSERT INTO dependencies (version_id, package_id, req, optional, default_features, features, target, kind) VALUES ")
	args := make([]any, 0, len(deps)*8)
	for i, d := range deps {
		if i > 0 {
			sb.WriteString(", ")
		}
		sb.WriteString("(?, ?, ?, ?, ?, ?, ?, ?)")

		features := d.Features
		if features == nil {
			features = []string{}
		}
		featuresJSON, err := json.Marshal(features)
		if err != nil {
			return nil, fmt.Errorf("encoding features: %w", err)
		}

		args = append(args, d.VersionID, d.PackageID, d.Req, d.Optional,
			d.DefaultFeatures, string(featuresJSON), nullString(d.Target), d.Kind.Code())
	}
	sb.WriteString(" RETURNING ")
	sb.WriteString(dependencyColumns)

	rows, err := q.QueryContext(ctx, sb.String(), args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	records := make([]core.Dependency, 0, len(deps))
	for rows.Next() {
		rec, err := scanDependency(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ListDependencies returns a version's stored dependency records.
func (s *Store) ListDependencies(ctx context.Context, versionID int64) ([]core.Dependency, error) {
	rows, err := s.db.QueryContext(ctx,
		"SELECT "+dependencyColumns+" FROM dependencies WHERE version_id = ? ORDER BY id",
		versionID,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []core.Dependency
	for rows.Next() {
		rec, err := scanDependency(rows)
		if err != nil {
			return nil, err
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// ReverseDependencies returns the dependencies other packages declare on
// the given package, most-downloaded dependent first, along with the total
// number of matching records.
func (s *Store) ReverseDependencies(ctx context.Context, packageID int64, limit, offset int) ([]core.ReverseDependency, int64, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT d.id, d.version_id, d.package_id, d.req, d.optional, d.default_features,
		       d.features, d.target, d.kind, p.name, p.downloads, COUNT(*) OVER ()
		FROM dependencies d
		JOIN versions v ON v.id = d.version_id
		JOIN packages p ON p.id = v.package_id
		WHERE d.package_id = ?
		ORDER BY p.downloads DESC, d.id
		LIMIT ? OFFSET ?
	`, packageID, limit, offset)
	if err != nil {
		return nil, 0, err
	}
	defer rows.Close()

	var (
		records []core.ReverseDependency
		total   int64
	)
	for rows.Next() {
		var (
			id, versionID, pkgID, kindCode int64
			req, featuresJSON              string
			optional, defaultFeatures      bool
			target                         sql.NullString
			ownerName                      string
			ownerDownloads                 int64
		)
		if err := rows.Scan(&id, &versionID, &pkgID, &req, &optional, &defaultFeatures,
			&featuresJSON, &target, &kindCode, &ownerName, &ownerDownloads, &total); err != nil {
			return nil, 0, err
		}
		records = append(records, core.ReverseDependency{
			Dependency:  buildDependency(id, versionID, pkgID, req, optional, defaultFeatures, featuresJSON, target, kindCode),
			PackageName: ownerName,
			Downloads:   ownerDownloads,
		})
	}
	return records, total, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanDependency(row rowScanner) (core.Dependency, error) {
	var (
		id, versionID, packageID, kindCode int64
		req, featuresJSON                  string
		optional, defaultFeatures          bool
		target                             sql.NullString
	)
	if err := row.Scan(&id, &versionID, &packageID, &req, &optional, &defaultFeatures,
		&featuresJSON, &target, &kindCode); err != nil {
		return core.Dependency{}, err
	}
	return buildDependency(id, versionID, packageID, req, optional, defaultFeatures, featuresJSON, target, kindCode), nil
}

// buildDependency maps scanned scalars to a record. A features column that
// is not valid JSON is corruption, same as a bad requirement or kind code
// inside core.DependencyFromRow.
func buildDependency(id, versionID, packageID int64, req string, optional, defaultFeatures bool, featuresJSON string, target sql.NullString, kindCode int64) core.Dependency {
	var features []string
	if err := json.Unmarshal([]byte(featuresJSON), &features); err != nil {
		panic(&core.CorruptRecordError{ID: id, Field: "features", Detail: err.Error()})
	}
	return core.DependencyFromRow(id, versionID, packageID, req, optional, defaultFeatures, features, target.String, kindCode)
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
