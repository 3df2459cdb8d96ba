package reporter

import (
	"encoding/csv"
	"fmt"
	"os"
	"strconv"

	necsim "github.com/kentwait/necsimgo"
)

// CSVReporter writes one CSV file per event kind, grounded on
// csv_logger.go's one-file-per-record-kind layout and header-then-append
// idiom.
type CSVReporter struct {
	speciationFile *os.File
	dispersalFile  *os.File
	speciationW    *csv.Writer
	dispersalW     *csv.Writer
}

// NewCSVReporter creates (or truncates) "<basepath>.speciation.csv" and
// "<basepath>.dispersal.csv" and writes their header rows.
func NewCSVReporter(basepath string) (*CSVReporter, error) {
	sf, err := os.Create(basepath + ".speciation.csv")
	if err != nil {
		return nil, necsim.WrapSimError(necsim.IOError, err, "creating speciation reporter file")
	}
	df, err := os.Create(basepath + ".dispersal.csv")
	if err != nil {
		sf.Close()
		return nil, necsim.WrapSimError(necsim.IOError, err, "creating dispersal reporter file")
	}

	r := &CSVReporter{
		speciationFile: sf, dispersalFile: df,
		speciationW: csv.NewWriter(sf), dispersalW: csv.NewWriter(df),
	}
	if err := r.speciationW.Write([]string{"lineage", "origin_x", "origin_y", "origin_index", "prior_time", "event_time"}); err != nil {
		return nil, err
	}
	if err := r.dispersalW.Write([]string{
		"lineage", "origin_x", "origin_y", "origin_index", "target_x", "target_y",
		"prior_time", "event_time", "interaction", "parent",
	}); err != nil {
		return nil, err
	}
	r.speciationW.Flush()
	r.dispersalW.Flush()
	return r, nil
}

// Report writes one row to the file matching e.Kind.
func (r *CSVReporter) Report(e necsim.Event) error {
	switch e.Kind {
	case necsim.Speciation:
		row := []string{
			strconv.FormatUint(uint64(e.Lineage), 10),
			strconv.FormatUint(uint64(e.Origin.X), 10),
			strconv.FormatUint(uint64(e.Origin.Y), 10),
			strconv.FormatUint(uint64(e.OriginIndex), 10),
			strconv.FormatFloat(e.PriorTime, 'g', -1, 64),
			strconv.FormatFloat(e.EventTime, 'g', -1, 64),
		}
		if err := r.speciationW.Write(row); err != nil {
			return err
		}
		r.speciationW.Flush()
		return r.speciationW.Error()
	case necsim.Dispersal:
		interaction := "none"
		parent := ""
		if e.Interaction == necsim.Coalescence {
			interaction = "coalescence"
			parent = strconv.FormatUint(uint64(e.Parent), 10)
		}
		row := []string{
			strconv.FormatUint(uint64(e.Lineage), 10),
			strconv.FormatUint(uint64(e.Origin.X), 10),
			strconv.FormatUint(uint64(e.Origin.Y), 10),
			strconv.FormatUint(uint64(e.OriginIndex), 10),
			strconv.FormatUint(uint64(e.Target.X), 10),
			strconv.FormatUint(uint64(e.Target.Y), 10),
			strconv.FormatFloat(e.PriorTime, 'g', -1, 64),
			strconv.FormatFloat(e.EventTime, 'g', -1, 64),
			interaction, parent,
		}
		if err := r.dispersalW.Write(row); err != nil {
			return err
		}
		r.dispersalW.Flush()
		return r.dispersalW.Error()
	default:
		return fmt.Errorf("reporter: unknown event kind %v", e.Kind)
	}
}

// Close flushes and closes both underlying files.
func (r *CSVReporter) Close() error {
	r.speciationW.Flush()
	r.dispersalW.Flush()
	if err := r.speciationFile.Close(); err != nil {
		return err
	}
	return r.dispersalFile.Close()
}
