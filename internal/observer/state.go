package observer

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Observer statuses.
const (
	StatusStarting = "Starting"
	StatusRunning  = "Running"
	StatusSleeping = "Sleeping"
	StatusError    = "Error"
)

// NeverRun is last_run before the first completed cycle.
const NeverRun = "Never"

// stoppedMsg is the last log line of an observer that shut down cleanly.
const stoppedMsg = "Observer daemon stopped."

// maxLogs caps the persisted log, newest first.
const maxLogs = 5

// State is the observer's externally visible status.
type State struct {
	Status        string   `json:"status"`
	LastRun       string   `json:"last_run"`
	CheckedFiles  int      `json:"checked_files"`
	DriftDetected bool     `json:"drift_detected"`
	Logs          []string `json:"logs"`
	SkippedFiles  int      `json:"skipped_files"`
	DriftCount    int      `json:"drift_count"`
	Workbase      string   `json:"workbase,omitempty"`
	UpdatedAt     string   `json:"updated_at,omitempty"`
}

func initialState() State {
	return State{
		Status:  StatusStarting,
		LastRun: NeverRun,
		Logs:    []string{"Observer thread initialized."},
	}
}

// appendLog prepends a timestamped entry and trims the log.
func (s *State) appendLog(now time.Time, msg string) string {
	entry := fmt.Sprintf("[%s] %s", now.Format("15:04:05"), msg)
	logs := make([]string, 0, maxLogs)
	logs = append(logs, entry)
	for _, l := range s.Logs {
		if len(logs) == maxLogs {
			break
		}
		logs = append(logs, l)
	}
	s.Logs = logs
	return entry
}

// Stopped reports whether the observer that wrote s has shut down.
func (s State) Stopped() bool {
	return len(s.Logs) > 0 && strings.HasSuffix(s.Logs[0], stoppedMsg)
}

func (s State) clone() State {
	s.Logs = append([]string(nil), s.Logs...)
	return s
}

// writeState replaces path atomically so readers never see a torn file.
func writeState(path string, s State) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(dir, ".observer_state-*.json")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	if err := os.Rename(tmp.Name(), path); err != nil {
		_ = os.Remove(tmp.Name())
		return err
	}
	return nil
}

// ReadState loads a status file written by a running observer.
func ReadState(path string) (State, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return State{}, err
	}
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return State{}, fmt.Errorf("observer: parse %s: %w", path, err)
	}
	return s, nil
}
