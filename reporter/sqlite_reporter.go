package reporter

import (
	"database/sql"
	"fmt"

	// sqlite3 driver
	_ "github.com/mattn/go-sqlite3"

	necsim "github.com/kentwait/necsimgo"
)

// SQLiteReporter writes events into a SQLite database, one table per event
// kind, grounded on sqlite_logger.go's open-then-create-table-then-prepare-
// insert idiom.
type SQLiteReporter struct {
	db            *sql.DB
	speciationIns *sql.Stmt
	dispersalIns  *sql.Stmt
}

// NewSQLiteReporter opens (creating if necessary) the SQLite database at
// path and creates its Speciation/Dispersal tables.
func NewSQLiteReporter(path string) (*SQLiteReporter, error) {
	db, err := sql.Open("sqlite3", fmt.Sprintf("file:%s?_journal=WAL&_locking=EXCLUSIVE&_sync=NORMAL", path))
	if err != nil {
		return nil, necsim.WrapSimError(necsim.IOError, err, "opening sqlite reporter database")
	}

	const createStmt = `
	create table if not exists Speciation (
		id integer not null primary key,
		lineage integer, origin_x integer, origin_y integer, origin_index integer,
		prior_time real, event_time real
	);
	create table if not exists Dispersal (
		id integer not null primary key,
		lineage integer, origin_x integer, origin_y integer, origin_index integer,
		target_x integer, target_y integer,
		prior_time real, event_time real,
		interaction integer, parent integer
	);
	`
	if _, err := db.Exec(createStmt); err != nil {
		db.Close()
		return nil, necsim.WrapSimError(necsim.IOError, err, "creating sqlite reporter tables")
	}

	speciationIns, err := db.Prepare(
		"insert into Speciation(lineage, origin_x, origin_y, origin_index, prior_time, event_time) values(?, ?, ?, ?, ?, ?)")
	if err != nil {
		db.Close()
		return nil, err
	}
	dispersalIns, err := db.Prepare(
		`insert into Dispersal(lineage, origin_x, origin_y, origin_index, target_x, target_y,
			prior_time, event_time, interaction, parent) values(?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		speciationIns.Close()
		db.Close()
		return nil, err
	}

	return &SQLiteReporter{db: db, speciationIns: speciationIns, dispersalIns: dispersalIns}, nil
}

// Report inserts one row into the table matching e.Kind.
func (r *SQLiteReporter) Report(e necsim.Event) error {
	switch e.Kind {
	case necsim.Speciation:
		_, err := r.speciationIns.Exec(uint64(e.Lineage), e.Origin.X, e.Origin.Y, e.OriginIndex, e.PriorTime, e.EventTime)
		return err
	case necsim.Dispersal:
		_, err := r.dispersalIns.Exec(
			uint64(e.Lineage), e.Origin.X, e.Origin.Y, e.OriginIndex, e.Target.X, e.Target.Y,
			e.PriorTime, e.EventTime, int(e.Interaction), uint64(e.Parent))
		return err
	default:
		return fmt.Errorf("reporter: unknown event kind %v", e.Kind)
	}
}

// Close closes the prepared statements and the database handle.
func (r *SQLiteReporter) Close() error {
	r.speciationIns.Close()
	r.dispersalIns.Close()
	return r.db.Close()
}
