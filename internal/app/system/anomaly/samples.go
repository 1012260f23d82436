package anomaly

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"
)

// Columns expected in a historical sample file.
var sampleColumns = []string{"login_time", "logout_time", "failed_attempts"}

var timeLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
}

// ReadSamplesCSV parses historical sessions. The header must name
// login_time, logout_time and failed_attempts (any order, extra columns
// ignored). Times may be Unix seconds or one of the common date layouts.
func ReadSamplesCSV(r io.Reader) ([][]float64, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err != nil {
		return nil, fmt.Errorf("anomaly: read sample header: %w", err)
	}
	cols := make([]int, len(sampleColumns))
	for i, name := range sampleColumns {
		cols[i] = -1
		for j, h := range header {
			if strings.EqualFold(strings.TrimSpace(h), name) {
				cols[i] = j
			}
		}
		if cols[i] < 0 {
			return nil, fmt.Errorf("anomaly: sample file missing column %q", name)
		}
	}

	var out [][]float64
	for line := 2; ; line++ {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("anomaly: line %d: %w", line, err)
		}
		login, err := parseTime(rec[cols[0]])
		if err != nil {
			return nil, fmt.Errorf("anomaly: line %d: login_time: %w", line, err)
		}
		logout, err := parseTime(rec[cols[1]])
		if err != nil {
			return nil, fmt.Errorf("anomaly: line %d: logout_time: %w", line, err)
		}
		failed, err := strconv.ParseFloat(strings.TrimSpace(rec[cols[2]]), 64)
		if err != nil {
			return nil, fmt.Errorf("anomaly: line %d: failed_attempts: %w", line, err)
		}
		out = append(out, []float64{login, logout, failed})
	}
	if len(out) == 0 {
		return nil, errNoSamples
	}
	return out, nil
}

// TrainingVectors maps (login, logout, failed attempts) rows, as returned by
// ReadSamplesCSV, onto the model inputs Features.Vector produces.
func TrainingVectors(rows [][]float64) ([][]float64, error) {
	out := make([][]float64, len(rows))
	for i, r := range rows {
		if len(r) != len(sampleColumns) {
			return nil, errRaggedInput
		}
		out[i] = Features{LoginTs: r[0], LogoutTs: r[1], FailedAttempts: r[2]}.Vector()
	}
	return out, nil
}

// ReadSamplesFile opens path and parses it with ReadSamplesCSV.
func ReadSamplesFile(path string) ([][]float64, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return ReadSamplesCSV(f)
}

func parseTime(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if v, err := strconv.ParseFloat(s, 64); err == nil {
		return v, nil
	}
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return float64(t.Unix()), nil
		}
	}
	return 0, fmt.Errorf("unrecognized time %q", s)
}
