package platform

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Column positions in `schtasks /Query /FO CSV /V /NH` output.
const (
	taskColName   = 1
	taskColAction = 8
)

// parseTasksCSV reads verbose schtasks CSV output. Tasks with several
// triggers appear once per trigger; only the first row is kept.
func parseTasksCSV(r io.Reader) ([]Task, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var tasks []Task
	seen := make(map[string]bool)
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return tasks, fmt.Errorf("parse task list: %w", err)
		}
		if len(rec) <= taskColName {
			continue
		}
		name := strings.TrimSpace(rec[taskColName])
		if name == "" || strings.EqualFold(name, "TaskName") || !strings.HasPrefix(name, `\`) {
			continue
		}
		key := strings.ToLower(name)
		if seen[key] {
			continue
		}
		seen[key] = true

		t := Task{Path: name}
		if len(rec) > taskColAction {
			t.Action = strings.TrimSpace(rec[taskColAction])
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}
