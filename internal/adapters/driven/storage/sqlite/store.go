package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io/fs"
	"iter"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/custodia-labs/afrisam/internal/adapters/driven/storage/sqlite/migrations"
	"github.com/custodia-labs/afrisam/internal/core/domain"
	"github.com/custodia-labs/afrisam/internal/core/ports/driven"
	"github.com/custodia-labs/afrisam/internal/logger"
)

// DefaultFileName is the database file created inside the data directory.
const DefaultFileName = "opportunities.db"

// dateLayout stores posted dates as sortable calendar dates.
const dateLayout = time.DateOnly

// Store is the SQLite record store. It also hosts the scheduler tables.
type Store struct {
	db   *sql.DB
	path string
}

var _ driven.RecordStore = (*Store)(nil)

// NewStore opens the record store in dataDir, creating it if needed.
func NewStore(dataDir string) (*Store, error) {
	if dataDir == "" {
		return nil, errors.New("sqlite: data directory is required")
	}
	return Open(filepath.Join(dataDir, DefaultFileName))
}

// Open opens or creates the database at path and applies pending migrations.
func Open(path string) (*Store, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return nil, &domain.StorageError{Op: "open", Err: fmt.Errorf("creating data directory: %w", err)}
	}

	// WAL lets readers run while a sync is merging.
	db, err := sql.Open("sqlite", path+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, &domain.StorageError{Op: "open", Err: err}
	}

	s := &Store{db: db, path: path}
	if err := s.migrate(migrations.FS); err != nil {
		db.Close()
		return nil, &domain.StorageError{Op: "migrate", Err: err}
	}
	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// Path returns the database file path.
func (s *Store) Path() string {
	return s.path
}

// SchedulerStore returns a SchedulerStore interface backed by this store.
func (s *Store) SchedulerStore() driven.SchedulerStore {
	return &schedulerStore{store: s}
}

// migrate runs all pending migrations.
func (s *Store) migrate(fsys fs.FS) error {
	_, err := s.db.Exec(`
		CREATE TABLE IF NOT EXISTS schema_migrations (
			version INTEGER PRIMARY KEY,
			applied_at DATETIME DEFAULT CURRENT_TIMESTAMP
		)
	`)
	if err != nil {
		return fmt.Errorf("creating schema_migrations table: %w", err)
	}

	var currentVersion int
	row := s.db.QueryRow("SELECT COALESCE(MAX(version), 0) FROM schema_migrations")
	if err := row.Scan(&currentVersion); err != nil {
		return fmt.Errorf("getting current version: %w", err)
	}

	entries, err := fs.ReadDir(fsys, ".")
	if err != nil {
		return fmt.Errorf("reading migrations directory: %w", err)
	}

	var upFiles []string
	for _, entry := range entries {
		if name := entry.Name(); strings.HasSuffix(name, ".up.sql") {
			upFiles = append(upFiles, name)
		}
	}
	sort.Strings(upFiles)

	for _, name := range upFiles {
		// "001_initial.up.sql" -> 1
		var version int
		if _, err := fmt.Sscanf(name, "%d_", &version); err != nil {
			continue
		}
		if version <= currentVersion {
			continue
		}

		content, err := fs.ReadFile(fsys, name)
		if err != nil {
			return fmt.Errorf("reading migration %s: %w", name, err)
		}
		if _, err := s.db.Exec(string(content)); err != nil {
			return fmt.Errorf("executing migration %s: %w", name, err)
		}
		logger.Debug("applied migration %s", name)
	}

	return nil
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
		FROM opportunities WHERE id = ?`)
	if err != nil {
		return result, &domain.StorageError{Op: "upsert", Err: err}
	}
	defer lookup.Close()

	insert, err := tx.PrepareContext(ctx, `INSERT INTO opportunities (`+recordColumns+`, agency_key)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return result, &domain.StorageError{Op: "upsert", Err: err}
	}
	defer insert.Close()

	update, err := tx.PrepareContext(ctx, `
		UPDATE opportunities SET
			posted_date = ?, type = ?, base_type = ?, archive_type = ?, archive_date = ?, response_deadline = ?,
			active = ?, award_number = ?, award_date = ?, award_amount = ?, awardee = ?,
			updated_at = ?
		WHERE id = ?`)
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
				rec.PostedDate.UTC().Format(dateLayout), rec.Type, rec.BaseType, rec.ArchiveType,
				formatNullableTime(rec.ArchiveDate), formatNullableTime(rec.ResponseDeadline),
				boolToInt(rec.Active), rec.AwardNumber, formatNullableTime(rec.AwardDate),
				rec.AwardAmount, rec.Awardee, formatTimestamp(now), rec.ID,
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
	rows, err := s.db.QueryContext(ctx, "SELECT "+recordColumns+" FROM opportunities WHERE id = ?", id)
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
		return now.UTC().AddDate(0, 0, -days).Format(dateLayout)
	}

	var latest sql.NullString
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*),
			COALESCE(SUM(active), 0),
			COALESCE(SUM(CASE WHEN posted_date >= ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN posted_date >= ? THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN posted_date >= ? THEN 1 ELSE 0 END), 0),
			MAX(posted_date)
		FROM opportunities`, day(7), day(30), day(365),
	).Scan(&stats.Total, &stats.Active, &stats.Last7Days, &stats.RecentCount, &stats.Last365Days, &latest)
	if err != nil {
		return stats, &domain.StorageError{Op: "statistics", Err: err}
	}
	if latest.Valid {
		stats.LatestPosted, _ = time.Parse(dateLayout, latest.String)
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
		SELECT CAST(substr(posted_date, 1, 4) AS INTEGER) AS year, COUNT(*)
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

	err = s.db.QueryRowContext(ctx,
		"SELECT page_count * page_size FROM pragma_page_count(), pragma_page_size()",
	).Scan(&stats.SizeBytes)
	if err != nil {
		return stats, &domain.StorageError{Op: "statistics", Err: err}
	}

	return stats, nil
}

// Optimize reclaims free pages and refreshes planner statistics.
func (s *Store) Optimize(ctx context.Context) error {
	for _, stmt := range []string{"VACUUM", "ANALYZE", "PRAGMA optimize"} {
		logger.Debug("sqlite: %s", stmt)
		if _, err := s.db.ExecContext(ctx, stmt); err != nil {
			return &domain.StorageError{Op: strings.ToLower(stmt), Err: err}
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
	var drop []any
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

	res, err := s.db.ExecContext(ctx,
		"DELETE FROM opportunities WHERE raw_country IN ("+placeholders(len(drop))+")", drop...)
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
	query := "SELECT " + recordColumns + " FROM opportunities" + where +
		" ORDER BY posted_date DESC, id"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	return query, args
}

// buildFilter turns a filter into a WHERE clause and its arguments.
func buildFilter(f domain.Filter) (string, []any) {
	var clauses []string
	var args []any

	if len(f.Countries) > 0 {
		clauses = append(clauses, "country_code IN ("+placeholders(len(f.Countries))+")")
		for _, c := range f.Countries {
			args = append(args, strings.ToUpper(c))
		}
	}
	if !f.From.IsZero() {
		clauses = append(clauses, "posted_date >= ?")
		args = append(args, f.From.UTC().Format(dateLayout))
	}
	if !f.To.IsZero() {
		clauses = append(clauses, "posted_date <= ?")
		args = append(args, f.To.UTC().Format(dateLayout))
	}
	if f.Agency != "" {
		lo, hi := domain.AgencyKeyRange(f.Agency)
		clauses = append(clauses, "agency_key >= ? AND agency_key < ?")
		args = append(args, lo, hi)
	}
	if f.ActiveOnly {
		clauses = append(clauses, "active = 1")
	}

	if len(clauses) == 0 {
		return "", nil
	}
	return " WHERE " + strings.Join(clauses, " AND "), args
}

func placeholders(n int) string {
	return strings.TrimSuffix(strings.Repeat("?, ", n), ", ")
}

func insertArgs(o *domain.Opportunity, now time.Time) []any {
	firstSeen := o.FirstSeenAt
	if firstSeen.IsZero() {
		firstSeen = now
	}
	return []any{
		o.ID, o.Title, nullString(o.SolicitationNumber), nullString(o.Agency),
		nullString(o.SubTier), nullString(o.Office), o.PostedDate.UTC().Format(dateLayout),
		o.CountryCode, o.CountryName, o.RawCountry, nullString(o.PopCity),
		nullString(o.Type), nullString(o.BaseType), nullString(o.ArchiveType),
		formatNullableTime(o.ArchiveDate), formatNullableTime(o.ResponseDeadline),
		boolToInt(o.Active), nullString(o.AwardNumber), formatNullableTime(o.AwardDate),
		nullString(o.AwardAmount), nullString(o.Awardee), nullString(o.NAICSCode),
		nullString(o.SetAside), nullString(o.ContactName), nullString(o.ContactEmail),
		nullString(o.Link), nullString(o.AdditionalInfoLink), nullString(o.Description),
		nullString(o.Source), formatTimestamp(firstSeen), formatTimestamp(now),
		nullString(domain.AgencyKey(o.Agency)),
	}
}

// scanStatus reads the mutable status fields of a stored record.
func scanStatus(row *sql.Row) (*domain.Opportunity, error) {
	var o domain.Opportunity
	var posted string
	var typ, baseType, archiveType, archiveDate, deadline sql.NullString
	var awardNumber, awardDate, awardAmount, awardee sql.NullString
	var active int

	if err := row.Scan(&posted, &typ, &baseType, &archiveType, &archiveDate, &deadline, &active,
		&awardNumber, &awardDate, &awardAmount, &awardee); err != nil {
		return nil, err
	}

	t, err := time.Parse(dateLayout, posted)
	if err != nil {
		return nil, fmt.Errorf("posted date %q: %w", posted, err)
	}
	o.PostedDate = t
	o.Type = typ.String
	o.BaseType = baseType.String
	o.ArchiveType = archiveType.String
	o.ArchiveDate = parseNullableTime(archiveDate)
	o.ResponseDeadline = parseNullableTime(deadline)
	o.Active = active == 1
	o.AwardNumber = awardNumber.String
	o.AwardDate = parseNullableTime(awardDate)
	o.AwardAmount = awardAmount.String
	o.Awardee = awardee.String
	return &o, nil
}

// scanRecord scans a full record from *sql.Rows.
func scanRecord(rows *sql.Rows) (*domain.Opportunity, error) {
	var o domain.Opportunity
	var posted, firstSeen, updated string
	var sol, agency, subTier, office, city sql.NullString
	var typ, baseType, archiveType, archiveDate, deadline sql.NullString
	var awardNumber, awardDate, awardAmount, awardee sql.NullString
	var naics, setAside, contactName, contactEmail, link, infoLink, desc, source sql.NullString
	var active int

	if err := rows.Scan(&o.ID, &o.Title, &sol, &agency, &subTier, &office, &posted,
		&o.CountryCode, &o.CountryName, &o.RawCountry, &city, &typ, &baseType, &archiveType,
		&archiveDate, &deadline, &active, &awardNumber, &awardDate, &awardAmount, &awardee,
		&naics, &setAside, &contactName, &contactEmail, &link, &infoLink,
		&desc, &source, &firstSeen, &updated); err != nil {
		return nil, fmt.Errorf("scanning record: %w", err)
	}

	t, err := time.Parse(dateLayout, posted)
	if err != nil {
		return nil, fmt.Errorf("record %s: posted date %q: %w", o.ID, posted, err)
	}
	o.PostedDate = t

	o.SolicitationNumber = sol.String
	o.Agency = agency.String
	o.SubTier = subTier.String
	o.Office = office.String
	o.PopCity = city.String
	o.Type = typ.String
	o.BaseType = baseType.String
	o.ArchiveType = archiveType.String
	o.ArchiveDate = parseNullableTime(archiveDate)
	o.ResponseDeadline = parseNullableTime(deadline)
	o.Active = active == 1
	o.AwardNumber = awardNumber.String
	o.AwardDate = parseNullableTime(awardDate)
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
	o.FirstSeenAt = parseNullableTime(sql.NullString{String: firstSeen, Valid: true})
	o.UpdatedAt = parseNullableTime(sql.NullString{String: updated, Valid: true})

	return &o, nil
}
