package eogmaneo

import (
	"encoding/csv"
	"os"
	"strconv"
)

// Statistics tracks, per external input source, how many chunks of last
// step's forecast disagreed with the input that then arrived. A zero entry
// means the step was predicted perfectly.
type Statistics struct {
	Mismatches [][]int // [source][step]
}

func makeStatistics(numSources int) Statistics {
	return Statistics{
		Mismatches: make([][]int, numSources),
	}
}

func (s *Statistics) record(source, mismatched int) {
	s.Mismatches[source] = append(s.Mismatches[source], mismatched)
}

// LastMismatch returns the most recent mismatch count for a source, or -1
// if nothing has been recorded yet.
func (s *Statistics) LastMismatch(source int) int {
	hist := s.Mismatches[source]
	if len(hist) == 0 {
		return -1
	}
	return hist[len(hist)-1]
}

// Dump writes the mismatch history as CSV, one row per step, one column
// per source.
func (s *Statistics) Dump(filename string) error {
	f, err := os.OpenFile(filename, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	steps := 0
	for _, hist := range s.Mismatches {
		if len(hist) > steps {
			steps = len(hist)
		}
	}
	var records [][]string
	for i := 0; i < steps; i++ {
		record := make([]string, len(s.Mismatches))
		for v, hist := range s.Mismatches {
			if i < len(hist) {
				record[v] = strconv.Itoa(hist[i])
			}
		}
		records = append(records, record)
	}
	if err := w.WriteAll(records); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}
