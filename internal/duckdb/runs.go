package duckdb

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	goduckdb "github.com/marcboeker/go-duckdb"

	"github.com/inodb/vibe-phase/internal/synced"
)

// ErrRunNotFound is returned by LookupRun for an unknown run id.
var ErrRunNotFound = errors.New("run not found")

// Inputs identifies the files a run was computed from.
type Inputs struct {
	Ref     FileFingerprint
	Target  FileFingerprint
	MapPath string
	CMmax   float64
}

// Run is one row of sync_runs.
type Run struct {
	ID        string
	CreatedAt time.Time
	Inputs    Inputs
	Chrom     int
	M         int
	Mseg64    int
	Nref      int
	Ntarget   int
	Stats     synced.Stats
}

// Site is one accepted variant of a run.
type Site struct {
	Index   int
	Chrom   int
	Pos     int64
	CM      float64
	Segment int
	Swapped bool
}

// SitesFromData lists the accepted variants of d with their segment index.
func SitesFromData(d *synced.Data) []Site {
	segOf := make([]int, d.M())
	for s, seg := range d.Packed().Segments() {
		for _, m := range seg {
			segOf[m] = s
		}
	}

	sites := make([]Site, len(d.Keys))
	for m, k := range d.Keys {
		sites[m] = Site{
			Index:   m,
			Chrom:   k.Chrom,
			Pos:     k.BP,
			CM:      d.CMs[m],
			Segment: segOf[m],
			Swapped: m < len(d.Swapped) && d.Swapped[m],
		}
	}
	return sites
}

// WriteRun records a finished run and its accepted sites. It returns the
// generated run id.
func (s *Store) WriteRun(in Inputs, d *synced.Data) (string, error) {
	id := uuid.New().String()
	chrom := 0
	if len(d.Keys) > 0 {
		chrom = d.Keys[0].Chrom
	}
	st := d.Stats

	// TIMESTAMP holds microseconds
	if _, err := s.db.Exec(`INSERT INTO sync_runs VALUES
		(?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		id, time.Now().UTC(),
		in.Ref.Path, in.Ref.Size, dbTime(in.Ref.ModTime),
		in.Target.Path, in.Target.Size, dbTime(in.Target.ModTime),
		in.MapPath, chrom, d.M(), d.Mseg64(), d.Nref(), d.Ntarget(), in.CMmax,
		st.TargetOnly, st.RefOnly, st.MultiAllelic, st.Monomorphic,
		st.RefAltError, st.RefAltSwaps, st.MissingTargetCalls,
	); err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	if err := s.writeSites(id, SitesFromData(d)); err != nil {
		return "", err
	}
	return id, nil
}

// writeSites batch-inserts sites using the Appender API.
func (s *Store) writeSites(runID string, sites []Site) error {
	if len(sites) == 0 {
		return nil
	}

	conn, err := s.db.Conn(context.Background())
	if err != nil {
		return fmt.Errorf("get connection: %w", err)
	}
	defer conn.Close()

	var appender *goduckdb.Appender
	if err := conn.Raw(func(driverConn any) error {
		var err error
		appender, err = goduckdb.NewAppenderFromConn(driverConn.(driver.Conn), "", "sync_sites")
		return err
	}); err != nil {
		return fmt.Errorf("create appender: %w", err)
	}
	defer appender.Close()

	for _, site := range sites {
		if err := appender.AppendRow(
			runID, int64(site.Index), int64(site.Chrom), site.Pos,
			site.CM, int64(site.Segment), site.Swapped,
		); err != nil {
			return fmt.Errorf("append site: %w", err)
		}
	}

	return appender.Flush()
}

// LookupRun returns the run with the given id.
func (s *Store) LookupRun(id string) (*Run, error) {
	row := s.db.QueryRow(`SELECT
		run_id, created_at,
		ref_path, ref_size, ref_modtime,
		target_path, target_size, target_modtime,
		map_path, chrom, m, mseg64, nref, ntarget, cm_max,
		target_only, ref_only, multi_allelic, monomorphic,
		ref_alt_error, ref_alt_swaps, missing_target_calls
		FROM sync_runs WHERE run_id=?`, id)

	var r Run
	st := &r.Stats
	err := row.Scan(
		&r.ID, &r.CreatedAt,
		&r.Inputs.Ref.Path, &r.Inputs.Ref.Size, &r.Inputs.Ref.ModTime,
		&r.Inputs.Target.Path, &r.Inputs.Target.Size, &r.Inputs.Target.ModTime,
		&r.Inputs.MapPath, &r.Chrom, &r.M, &r.Mseg64, &r.Nref, &r.Ntarget, &r.Inputs.CMmax,
		&st.TargetOnly, &st.RefOnly, &st.MultiAllelic, &st.Monomorphic,
		&st.RefAltError, &st.RefAltSwaps, &st.MissingTargetCalls,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("query run: %w", err)
	}
	return &r, nil
}

// FindRuns returns the ids of runs computed from the given inputs, newest
// first. Every field of in must match, modification times and CMmax included.
func (s *Store) FindRuns(in Inputs) ([]string, error) {
	rows, err := s.db.Query(`SELECT run_id FROM sync_runs
		WHERE ref_path=? AND ref_size=? AND ref_modtime=?
		AND target_path=? AND target_size=? AND target_modtime=?
		AND map_path=? AND cm_max=?
		ORDER BY created_at DESC`,
		in.Ref.Path, in.Ref.Size, dbTime(in.Ref.ModTime),
		in.Target.Path, in.Target.Size, dbTime(in.Target.ModTime),
		in.MapPath, in.CMmax)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// SitesForRun returns the accepted sites of a run in input order.
func (s *Store) SitesForRun(id string) ([]Site, error) {
	rows, err := s.db.Query(`SELECT idx, chrom, pos, cm, segment, swapped
		FROM sync_sites WHERE run_id=? ORDER BY idx`, id)
	if err != nil {
		return nil, fmt.Errorf("query sites: %w", err)
	}
	defer rows.Close()

	var sites []Site
	for rows.Next() {
		var site Site
		if err := rows.Scan(&site.Index, &site.Chrom, &site.Pos, &site.CM, &site.Segment, &site.Swapped); err != nil {
			return nil, fmt.Errorf("scan site: %w", err)
		}
		sites = append(sites, site)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate sites: %w", err)
	}
	return sites, nil
}

// DeleteRun removes a run and its sites.
func (s *Store) DeleteRun(id string) error {
	if _, err := s.db.Exec("DELETE FROM sync_sites WHERE run_id=?", id); err != nil {
		return err
	}
	_, err := s.db.Exec("DELETE FROM sync_runs WHERE run_id=?", id)
	return err
}

// dbTime converts t to the UTC microsecond precision of a TIMESTAMP column.
func dbTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}
