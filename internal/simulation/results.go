package simulation

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"

	"simflow/internal/domain"
)

// ErrOutputNotFound is returned for a missing output directory.
var ErrOutputNotFound = errors.New("output directory not found")

const (
	joulesPerKWh = 3.6e6
	joulesPerGJ  = 1e9
)

// Summary is the condensed view of a finished simulation.
type Summary struct {
	domain.ResultsSummary
	// ParseError is set when the meter CSV exists but could not be read.
	ParseError string
}

type MeterTotal struct {
	Total float64
	Unit  string
}

// Details is the full view of an output directory.
type Details struct {
	OutputDirectory     string
	FilesByExtension    map[string][]string
	CompletionStatus    string
	Meters              []string
	EnergyTotals        map[string]MeterTotal
	HTMLReportAvailable bool
	HasEnergySummary    bool
	Errors              []string
	Warnings            []string
	Timeseries          []map[string]string
}

type meterTable struct {
	columns []string
	rows    [][]string
}

// Summarize reads completion, diagnostics and meter totals from dir.
func Summarize(dir string) (*Summary, error) {
	if err := requireDir(dir); err != nil {
		return nil, err
	}

	s := &Summary{ResultsSummary: domain.ResultsSummary{
		OutputDirectory: dir,
		EnergySummary:   map[string]domain.EnergyTotal{},
		KeyMetrics:      map[string]float64{},
	}}

	if end, err := os.ReadFile(filepath.Join(dir, "eplusout.end")); err == nil {
		s.SimulationCompleted = strings.Contains(string(end), "Successfully")
	}

	if errFile, err := os.ReadFile(filepath.Join(dir, "eplusout.err")); err == nil {
		content := string(errFile)
		s.WarningsCount = strings.Count(content, "** Warning **")
		s.ErrorsCount = strings.Count(content, "** Severe **") + strings.Count(content, "** Fatal **")
	}

	path, ok := findMeterCSV(dir)
	if !ok {
		return s, nil
	}
	table, err := readMeterCSV(path)
	if err != nil {
		s.ParseError = err.Error()
		return s, nil
	}

	var facility, ite float64
	for i, col := range table.columns {
		total := table.sum(i)
		if i > 0 {
			s.EnergySummary[col] = domain.EnergyTotal{
				TotalJ:   total,
				TotalKWh: total / joulesPerKWh,
				TotalGJ:  total / joulesPerGJ,
			}
		}
		if strings.Contains(col, "Electricity:Facility") {
			facility = total
		}
		if strings.Contains(col, "ITE") || strings.Contains(col, "IT Equipment") {
			ite = total
		}
	}
	if facility != 0 && ite > 0 {
		s.KeyMetrics["PUE"] = facility / ite
	}
	return s, nil
}

// Describe builds the full results view. Timeseries rows are included only
// on request since meter files can be large.
func Describe(dir string, includeTimeseries bool) (*Details, error) {
	if err := requireDir(dir); err != nil {
		return nil, err
	}

	d := &Details{
		OutputDirectory:  dir,
		FilesByExtension: map[string][]string{},
		Errors:           []string{},
		Warnings:         []string{},
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list output directory: %w", err)
	}
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		ext := strings.ToLower(filepath.Ext(e.Name()))
		d.FilesByExtension[ext] = append(d.FilesByExtension[ext], e.Name())
	}

	if errFile, err := os.ReadFile(filepath.Join(dir, "eplusout.err")); err == nil {
		for _, line := range strings.Split(string(errFile), "\n") {
			switch {
			case strings.Contains(line, "** Warning **"):
				d.Warnings = append(d.Warnings, strings.TrimSpace(line))
			case strings.Contains(line, "** Severe **"), strings.Contains(line, "** Fatal **"):
				d.Errors = append(d.Errors, strings.TrimSpace(line))
			}
		}
	}

	if end, err := os.ReadFile(filepath.Join(dir, "eplusout.end")); err == nil {
		d.CompletionStatus = strings.TrimSpace(string(end))
	}

	if path, ok := findMeterCSV(dir); ok {
		table, err := readMeterCSV(path)
		if err != nil {
			d.Warnings = append(d.Warnings, "Could not parse meter CSV: "+err.Error())
		} else {
			d.Meters = table.columns[1:]
			d.EnergyTotals = map[string]MeterTotal{}
			for i, col := range table.columns {
				if i == 0 {
					continue
				}
				if strings.Contains(col, "Electricity") || strings.Contains(col, "Gas") || strings.Contains(col, "Energy") {
					d.EnergyTotals[col] = MeterTotal{Total: table.sum(i), Unit: "J"}
				}
			}
			if includeTimeseries {
				d.Timeseries = table.records()
			}
		}
	}

	if html, err := os.ReadFile(filepath.Join(dir, "eplustbl.htm")); err == nil {
		d.HTMLReportAvailable = true
		d.HasEnergySummary = strings.Contains(string(html), "Total Site Energy")
	}

	return d, nil
}

func requireDir(dir string) error {
	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return fmt.Errorf("%w: %s", ErrOutputNotFound, dir)
	}
	return nil
}

// findMeterCSV returns the first *Meter.csv in name order.
func findMeterCSV(dir string) (string, bool) {
	matches, err := filepath.Glob(filepath.Join(dir, "*Meter.csv"))
	if err != nil || len(matches) == 0 {
		return "", false
	}
	sort.Strings(matches)
	return matches[0], true
}

func readMeterCSV(path string) (*meterTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = -1
	r.TrimLeadingSpace = true

	header, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, errors.New("meter CSV is empty")
		}
		return nil, err
	}
	for i := range header {
		header[i] = strings.TrimSpace(header[i])
	}

	t := &meterTable{columns: header}
	for {
		row, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		t.rows = append(t.rows, row)
	}
	return t, nil
}

// sum adds every numeric cell of column i. Blank and non-numeric cells are skipped.
func (t *meterTable) sum(i int) float64 {
	total := 0.0
	for _, row := range t.rows {
		if i >= len(row) {
			continue
		}
		if v, err := strconv.ParseFloat(strings.TrimSpace(row[i]), 64); err == nil {
			total += v
		}
	}
	return total
}

func (t *meterTable) records() []map[string]string {
	out := make([]map[string]string, 0, len(t.rows))
	for _, row := range t.rows {
		rec := make(map[string]string, len(t.columns))
		for i, col := range t.columns {
			if i < len(row) {
				rec[col] = strings.TrimSpace(row[i])
			}
		}
		out = append(out, rec)
	}
	return out
}
