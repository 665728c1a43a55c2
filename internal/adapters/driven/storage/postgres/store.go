// Package postgres provides the server-backed record store on PostgreSQL
// through github.com/lib/pq. It shares the schema shape and semantics of
// the embedded SQLite store, using native DATE, TIMESTAMPTZ and BOOLEAN
// columns.
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"

	"github.com/custodia-labs/afrisam/internal/adapters/driven/storage/postgres/migrations"
	"github.com/custodia-labs/afrisam/internal/core/domain"
	"github.com/custodia-labs/afrisam/internal/core/ports/driven"
	"github.com/custodia-labs/afrisam/internal/logger"
)

const (
	// operationTimeout bounds set-up statements run without a caller context.
	operationTimeout = 30 * time.Second

	// migrationLockKey serialises migrations across processes.
	migrationLockKey = 0x61667269 // "afri"
)

type sqlOpenFunc func(driverName, dsn string) (*sql.DB, error)

// Store is the PostgreSQL record store.
type Store struct {
	db *sql.DB
}

var _ driven.RecordStore = (*Store)(nil)

// NewStore connects to dsn and applies pending migrations.
func NewStore(dsn string) (*Store, error) {
	return newStore(dsn, sql.Open)
}

func newStore(dsn string, open sqlOpenFunc) (*Store, error) {
	dsn = strings.TrimSpace(dsn)
	if dsn == "" {
		return nil, domain.ErrInvalidInput
	}

	db, err := open("postgres", dsn)
	if err != nil {
		return nil, &domain.StorageError{Op: "open", Err: err}
	}

	ctx, cancel := context.WithTimeout(context.Background(), operationTimeout)
	defer cancel()
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()
		return nil, &domain.StorageError{Op: "connect", Err: err}
	}

	s := &Store{db: db}
	if err := s.migrate(ctx, migrations.FS); err != nil {
		_ = db.Close()
		return nil, &domain.StorageError{Op: "migrate", Err: err}
	}
	return s, nil
}

// Close closes the connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

// SchedulerStore returns a SchedulerStore interface backed by this store.
func (s *Store) SchedulerStore() driven.SchedulerStore {
	return &schedulerStore{store: s}
}

// migrate runs pending migrations inside one transaction holding an
// advisory lock, so concurrent starts apply each migration once.
func (s *Store) migrate(ctx context.Context, fsys fs.FS) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock($1)", migrationLockKey); err != nil {
		return fmt.Errorf("locking migrations: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`); err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var current int
	if err := tx.QueryRowContext(ctx, "SELECT COALESCE(MAX(version), 0) FROM schema_migrations").Scan(&current); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	names, err := fs.Glob(fsys, "*.up.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)

	for _, name := range names {
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil || version <= current {
			continue
		}
		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		logger.Debug("applied migration %s", name)
	}
	return tx.Commit()
}

// ==================== Record Store ====================

const recordColumns = `id, title, solicitation_number, agency, sub_tier, office, posted_date,
	country_code, country_name, raw_country, pop_city, type, base_type, archive_type,
	archive_date, response_deadline, active, award_number, award_date, award_amount, awardee,
	naics_code, set_aside, contact_name, contact_email, link, additional_info_link,
	description, source, first_seen_at, updated_at`

// Upsert merges a batch in a single transaction.
func (s *Store) Upsert(ctx context.Context, records []domain.Opportunity) (domain.UpsertResult, error) {
	var result domain.UpsertResult
	if len(records) == 0 {
		return result, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return result, &domain.StorageError{Op: "upsert", Err: err}
	}
	defer tx.Rollback() //nolint:errcheck // no-op after commit

	lookup, err := tx.PrepareContext(ctx, `
		SELECT posted_date, type, base_type, archive_type, archive_date, response_deadline, active,
			award_number, award_date, award_amount, awardee
		FROM opportunities WHERE id = $1 FOR UPDATE`)
	if err != nil {
		return result, &domain.StorageError{Op: "upsert", Err: err}
	}
	defer lookup.Close()

	insert, err := tx.PrepareContext(ctx, `INSERT INTO opportunities (`+recordColumns+`, agency_key)
		VALUES (`+placeholders(1, 32)+`)`)
	if err != nil {
		return result, &domain.StorageError{Op: "upsert", Err: err}
	}
	defer insert.Close()

	update, err := tx.PrepareContext(ctx, `
		UPDATE opportunities SET
			posted_date = $1::DATE, type = $2, base_type = $3, archive_type = $4, archive_date = $5,
			response_deadline = $6, active = $7, award_number = $8, award_date = $9, award_amount = $10,
			awardee = $11, updated_at = $12
		WHERE id = $13`)
	if err != nil {
		return result, &domain.StorageError{Op: "upsert", Err: err}
	}
	defer update.Close()

	now := time.Now().UTC()
	for i := range records {
		rec := &records[i]

		existing, err := scanStatus(lookup.QueryRowContext(ctx, rec.ID))
		switch {
		case errors.Is(err, sql.ErrNoRows):
			if _, err := insert.ExecContext(ctx, insertArgs(rec, now)...); err != nil {
				return domain.UpsertResult{}, &domain.StorageError{Op: "insert " + rec.ID, Err: err}
			}
			result.Inserted++
			result.InsertedIDs = append(result.InsertedIDs, rec.ID)
		case err != nil:
			return domain.UpsertResult{}, &domain.StorageError{Op: "lookup " + rec.ID, Err: err}
		case !rec.Supersedes(existing), existing.SameStatus(rec):
			result.Unchanged++
		default:
			if _, err := update.ExecContext(ctx,
				rec.PostedDate.UTC().Format(time.DateOnly), nullString(rec.Type), nullString(rec.BaseType), nullString(rec.ArchiveType),
				nullTime(rec.ArchiveDate), nullTime(rec.ResponseDeadline), rec.Active,
				nullString(rec.AwardNumber), nullTime(rec.AwardDate), nullString(rec.AwardAmount),
				nullString(rec.Awardee), now, rec.ID,
			); err != nil {
				return domain.UpsertResult{}, &domain.StorageError{Op: "update " + rec.ID, Err: err}
			}
			result.Updated++
		}
	}

	if err := tx.Commit(); err != nil {
		return domain.UpsertResult{}, &domain.StorageError{Op: "commit", Err: err}
	}
	return result, nil
}

// Query yields matching records ordered by posted date descending.
func (s *Store) Query(ctx context.Context, filter domain.Filter) iter.Seq2[domain.Opportunity, error] {
	return func(yield func(domain.Opportunity, error) bool) {
		if err := filter.Validate(); err != nil {
			yield(domain.Opportunity{}, err)
			return
		}

		query, args := queryStatement(filter)
		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			yield(domain.Opportunity{}, &domain.StorageError{Op: "query", Err: err})
			return
		}
		defer rows.Close()

		for rows.Next() {
			opp, err := scanRecord(rows)
			if err != nil {
				logger.Warn("skipping unreadable record: %v", err)
				continue
			}
			if !yield(*opp, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(domain.Opportunity{}, &domain.StorageError{Op: "query", Err: err})
		}
	}
}

// Get retrieves a single record by ID.
func (s *Store) Get(ctx context.Context, id string) (*domain.Opportunity, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+recordColumns+" FROM opportunities WHERE id = $1", id)
	if err != nil {
		return nil, &domain.StorageError{Op: "get", Err: err}
	}
	defer rows.Close()

	if !rows.Next() {
		if err := rows.Err(); err != nil {
			return nil, &domain.StorageError{Op: "get", Err: err}
		}
		return nil, domain.ErrNotFound
	}
	opp, err := scanRecord(rows)
	if err != nil {
		return nil, &domain.StorageError{Op: "get", Err: err}
	}
	return opp, nil
}

// Count returns the total number of records.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM opportunities").Scan(&n); err != nil {
		return 0, &domain.StorageError{Op: "count", Err: err}
	}
	return n, nil
}

// Statistics computes aggregate counts with recency windows ending at now.
func (s *Store) Statistics(ctx context.Context, now time.Time) (domain.Statistics, error) {
	stats := domain.Statistics{GeneratedAt: now}
	day := func(days int) string {
		return now.UTC().AddDate(0, 0, -days).Format(time.DateOnly)
	}

	var latest sql.NullTime
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COUNT(*) FILTER (WHERE active),
			COUNT(*) FILTER (WHERE posted_date >= $1::DATE),
			COUNT(*) FILTER (WHERE posted_date >= $2::DATE),
			COUNT(*) FILTER (WHERE posted_date >= $3::DATE),
			MAX(posted_date)
		FROM opportunities`, day(7), day(30), day(365),
	).Scan(&stats.Total, &stats.Active, &stats.Last7Days, &stats.RecentCount, &stats.Last365Days, &latest)
	if err != nil {
		return stats, &domain.StorageError{Op: "statistics", Err: err}
	}
	if latest.Valid {
		stats.LatestPosted = latest.Time.UTC()
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT country_code, MAX(country_name), COUNT(*) AS n
		FROM opportunities
		GROUP BY country_code
		ORDER BY n DESC, country_code`)
	if err != nil {
		return stats, &domain.StorageError{Op: "statistics", Err: err}
	}
	for rows.Next() {
		var c domain.CountryCount
		if err := rows.Scan(&c.Code, &c.Name, &c.Count); err != nil {
			rows.Close()
			return stats, &domain.StorageError{Op: "statistics", Err: err}
		}
		stats.ByCountry = append(stats.ByCountry, c)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return stats, &domain.StorageError{Op: "statistics", Err: err}
	}

	rows, err = s.db.QueryContext(ctx, `
		SELECT EXTRACT(YEAR FROM posted_date)::INT AS year, COUNT(*)
		FROM opportunities
		GROUP BY year
		ORDER BY year DESC`)
	if err != nil {
		return stats, &domain.StorageError{Op: "statistics", Err: err}
	}
	for rows.Next() {
		var y domain.YearCount
		if err := rows.Scan(&y.Year, &y.Count); err != nil {
			rows.Close()
			return stats, &domain.StorageError{Op: "statistics", Err: err}
		}
		stats.ByYear = append(stats.ByYear, y)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return stats, &domain.StorageError{Op: "statistics", Err: err}
	}

	if err := s.db.QueryRowContext(ctx,
		"SELECT pg_total_relation_size('opportunities')").Scan(&stats.SizeBytes); err != nil {
		return stats, &domain.StorageError{Op: "statistics", Err: err}
	}
	return stats, nil
}

// Optimize reclaims dead tuples and refreshes planner statistics.
func (s *Store) Optimize(ctx context.Context) error {
	for _, table := range []string{"opportunities", "task_results"} {
		stmt := "VACUUM (ANALYZE) " + pq.QuoteIdentifier(table)
		logger.Debug("postgres: %s", stmt)
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return &domain.StorageError{Op: "vacuum " + table, Err: err}
		}
	}
	return nil
}

// PurgeUnresolved deletes records whose raw country keep rejects.
func (s *Store) PurgeUnresolved(ctx context.Context, keep func(rawCountry string) bool) (int, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT DISTINCT raw_country FROM opportunities")
	if err != nil {
		return 0, &domain.StorageError{Op: "purge", Err: err}
	}
	var drop []string
	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			rows.Close()
			return 0, &domain.StorageError{Op: "purge", Err: err}
		}
		if !keep(raw) {
			drop = append(drop, raw)
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, &domain.StorageError{Op: "purge", Err: err}
	}
	if len(drop) == 0 {
		return 0, nil
	}

	res, err := s.db.ExecContext(ctx, "DELETE FROM opportunities WHERE raw_country = ANY($1)", pq.Array(drop))
	if err != nil {
		return 0, &domain.StorageError{Op: "purge", Err: err}
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, &domain.StorageError{Op: "purge", Err: err}
	}
	return int(n), nil
}

// ==================== Helper Functions ====================

// queryStatement builds the SELECT used by Query.
func queryStatement(filter domain.Filter) (string, []any) {
	where, args := buildFilter(filter)
	query := "SELECT " + recordColumns + " FROM opportunities" + where + " ORDER BY posted_date DESC, id"
	if filter.Limit > 0 {
		args = append(args, filter.Limit)
		query += " LIMIT $" + strconv.Itoa(len(args))
	}
	return query, args
}

// buildFilter turns a filter into a WHERE clause with numbered parameters.
func buildFilter(f domain.Filter) (string, []any) {
	var clauses []string
	var args []any
	next := func(v any) string {
		args = append(args, v)
		return "$" + strconv.Itoa(len(args))
	}

	if len(f.Countries) > 0 {
		codes := make([]string, len(f.Countries))
		for i, c := range f.Countries {
			codes[i] = strings.ToUpper(c)
		}
		clauses = append(clauses, "country_code = ANY("+next(pq.Array(codes))+")")
	}
	if !f.From.IsZero() {
		clauses = append(clauses, "posted_date >= "+next(f.From.UTC().Format(time.DateOnly))+"::DATE")
	}
	if !f.To.IsZero() {
		clauses = append(clauses, "posted_date <= "+next(f.To.UTC().Format(time.DateOnly))+"::DATE")
	}
	if f.Agency != "" {
		lo, hi := domain.AgencyKeyRange(f.Agency)
		clauses = append(clauses, "agency_key >= "+next(lo)+" AND agency_key < "+next(hi))
	}
	if f.ActiveOnly {
		clauses = append(clauses, "active")
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

// placeholders returns "$from, ..., $to".
func placeholders(from, to int) string {
	parts := make([]string, 0, to-from+1)
	for i := from; i <= to; i++ {
		parts = append(parts, "$"+strconv.Itoa(i))
	}
	return strings.Join(parts, ", ")
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

func insertArgs(o *domain.Opportunity, now time.Time) []any {
	firstSeen := o.FirstSeenAt
	if firstSeen.IsZero() {
		firstSeen = now
	}
	return []any{
		o.ID, o.Title, nullString(o.SolicitationNumber), nullString(o.Agency),
		nullString(o.SubTier), nullString(o.Office), o.PostedDate.UTC().Format(time.DateOnly),
		o.CountryCode, o.CountryName, o.RawCountry, nullString(o.PopCity),
		nullString(o.Type), nullString(o.BaseType), nullString(o.ArchiveType),
		nullTime(o.ArchiveDate), nullTime(o.ResponseDeadline),
		o.Active, nullString(o.AwardNumber), nullTime(o.AwardDate),
		nullString(o.AwardAmount), nullString(o.Awardee), nullString(o.NAICSCode),
		nullString(o.SetAside), nullString(o.ContactName), nullString(o.ContactEmail),
		nullString(o.Link), nullString(o.AdditionalInfoLink), nullString(o.Description),
		nullString(o.Source), firstSeen.UTC(), now, nullString(domain.AgencyKey(o.Agency)),
	}
}

// scanStatus reads the mutable status fields of a stored record.
func scanStatus(row *sql.Row) (*domain.Opportunity, error) {
	var o domain.Opportunity
	var typ, baseType, archiveType, awardNumber, awardAmount, awardee sql.NullString
	var archiveDate, deadline, awardDate sql.NullTime

	if err := row.Scan(&o.PostedDate, &typ, &baseType, &archiveType, &archiveDate, &deadline, &o.Active,
		&awardNumber, &awardDate, &awardAmount, &awardee); err != nil {
		return nil, err
	}

	o.Type = typ.String
	o.BaseType = baseType.String
	o.ArchiveType = archiveType.String
	o.ArchiveDate = archiveDate.Time
	o.ResponseDeadline = deadline.Time
	o.AwardNumber = awardNumber.String
	o.AwardDate = awardDate.Time
	o.AwardAmount = awardAmount.String
	o.Awardee = awardee.String
	return &o, nil
}

// scanRecord scans a full record from *sql.Rows.
func scanRecord(rows *sql.Rows) (*domain.Opportunity, error) {
	var o domain.Opportunity
	var sol, agency, subTier, office, city sql.NullString
	var typ, baseType, archiveType, awardNumber, awardAmount, awardee sql.NullString
	var naics, setAside, contactName, contactEmail, link, infoLink, desc, source sql.NullString
	var archiveDate, deadline, awardDate sql.NullTime

	if err := rows.Scan(&o.ID, &o.Title, &sol, &agency, &subTier, &office, &o.PostedDate,
		&o.CountryCode, &o.CountryName, &o.RawCountry, &city, &typ, &baseType, &archiveType,
		&archiveDate, &deadline, &o.Active, &awardNumber, &awardDate, &awardAmount, &awardee,
		&naics, &setAside, &contactName, &contactEmail, &link, &infoLink,
		&desc, &source, &o.FirstSeenAt, &o.UpdatedAt); err != nil {
		return nil, fmt.Errorf("scanning record: %w", err)
	}

	o.PostedDate = o.PostedDate.UTC()
	o.SolicitationNumber = sol.String
	o.Agency = agency.String
	o.SubTier = subTier.String
	o.Office = office.String
	o.PopCity = city.String
	o.Type = typ.String
	o.BaseType = baseType.String
	o.ArchiveType = archiveType.String
	o.ArchiveDate = archiveDate.Time
	o.ResponseDeadline = deadline.Time
	o.AwardNumber = awardNumber.String
	o.AwardDate = awardDate.Time
	o.AwardAmount = awardAmount.String
	o.Awardee = awardee.String
	o.NAICSCode = naics.String
	o.SetAside = setAside.String
	o.ContactName = contactName.String
	o.ContactEmail = contactEmail.String
	o.Link = link.String
	o.AdditionalInfoLink = infoLink.String
	o.Description = desc.String
	o.Source = source.String

	return &o, nil
}
