package editor

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// History keeps the recent search and replace strings of one working
// directory, newest first.
type History struct {
	WorkingDir string   `json:"working_dir"`
	Find       []string `json:"find"`
	Replace    []string `json:"replace"`

	limit int
}

func historyDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".local", "share", "sweep", "history")
}

func historyPath(workDir string) string {
	hash := sha256.Sum256([]byte(workDir))
	return filepath.Join(historyDir(), fmt.Sprintf("%x.json", hash[:8]))
}

// LoadHistory returns the stored history of workDir, or an empty one.
func LoadHistory(workDir string, limit int) *History {
	h := &History{WorkingDir: workDir, limit: limit}
	data, err := os.ReadFile(historyPath(workDir))
	if err != nil {
		return h
	}
	var stored History
	if err := json.Unmarshal(data, &stored); err != nil || stored.WorkingDir != workDir {
		return h
	}
	h.Find = truncateList(stored.Find, limit)
	h.Replace = truncateList(stored.Replace, limit)
	return h
}

func (h *History) AddFind(s string)    { h.Find = push(h.Find, s, h.limit) }
func (h *History) AddReplace(s string) { h.Replace = push(h.Replace, s, h.limit) }

func push(list []string, s string, limit int) []string {
	if s == "" {
		return list
	}
	out := []string{s}
	for _, v := range list {
		if v != s {
			out = append(out, v)
		}
	}
	return truncateList(out, limit)
}

func truncateList(list []string, limit int) []string {
	if limit > 0 && len(list) > limit {
		return list[:limit]
	}
	return list
}

func (h *History) Save() error {
	if len(h.Find) == 0 && len(h.Replace) == 0 {
		return nil
	}
	if err := os.MkdirAll(historyDir(), 0755); err != nil {
		return err
	}
	data, err := json.MarshalIndent(h, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(historyPath(h.WorkingDir), data, 0644)
}
