package editor

import (
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// BackupInfo is the sidecar stored next to each backup copy.
type BackupInfo struct {
	OriginalPath string `json:"original_path"`
	WorkDir      string `json:"work_dir"`
	Timestamp    string `json:"timestamp"`
}

func backupDir() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "sweep", "backups")
}

func backupPathForFile(originalPath string) string {
	h := sha256.Sum256([]byte(originalPath))
	name := fmt.Sprintf("%x.bak", h[:8])
	return filepath.Join(backupDir(), name)
}

func backupMetaPath(backupPath string) string {
	return backupPath + ".json"
}

// SaveBackup copies the current on-disk content of path aside before it is
// rewritten, replacing an older backup of the same file. A file that does not
// exist yet needs no backup.
func SaveBackup(path, workDir string) error {
	abs, err := filepath.Abs(path)
	if err != nil {
		return err
	}
	bpath := backupPathForFile(abs)
	data, err := os.ReadFile(abs)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return err
	}
	if err := os.MkdirAll(backupDir(), 0755); err != nil {
		return err
	}
	if err := os.WriteFile(bpath, data, 0644); err != nil {
		return err
	}

	meta := BackupInfo{
		OriginalPath: abs,
		WorkDir:      workDir,
		Timestamp:    time.Now().Format(time.RFC3339),
	}
	metaData, err := json.Marshal(meta)
	if err != nil {
		return err
	}
	return os.WriteFile(backupMetaPath(bpath), metaData, 0644)
}

// CheckBackups lists the backups taken while working in workDir.
func CheckBackups(workDir string) []BackupInfo {
	dir := backupDir()
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil
	}

	var found []BackupInfo
	for _, entry := range entries {
		if !strings.HasSuffix(entry.Name(), ".json") {
			continue
		}
		metaPath := filepath.Join(dir, entry.Name())
		data, err := os.ReadFile(metaPath)
		if err != nil {
			continue
		}
		var info BackupInfo
		if json.Unmarshal(data, &info) != nil {
			continue
		}
		if info.WorkDir != workDir {
			continue
		}
		if _, err := os.Stat(strings.TrimSuffix(metaPath, ".json")); err == nil {
			found = append(found, info)
		}
	}
	sort.Slice(found, func(i, j int) bool { return found[i].OriginalPath < found[j].OriginalPath })
	return found
}

// RestoreBackup writes a backup over its original file and removes it.
func RestoreBackup(info BackupInfo) error {
	bpath := backupPathForFile(info.OriginalPath)
	data, err := os.ReadFile(bpath)
	if err != nil {
		return err
	}
	perm := os.FileMode(0644)
	if st, err := os.Stat(info.OriginalPath); err == nil {
		perm = st.Mode().Perm()
	}
	if err := os.WriteFile(info.OriginalPath, data, perm); err != nil {
		return err
	}
	CleanBackup(info.OriginalPath)
	return nil
}

// CleanBackup removes the backup of path, if any.
func CleanBackup(path string) {
	bpath := backupPathForFile(path)
	os.Remove(bpath)
	os.Remove(backupMetaPath(bpath))
}
