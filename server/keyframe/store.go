package keyframe

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/cyclopcam/logs"
)

// Store owns the on-disk keyframe documents and their backups.
// Layout inside the root directory, per 4-digit video code:
//
//	MVI_<code>_keyframes.json
//	MVI_<code>_keyframes.backup_<YYYYMMDD_HHMMSS>.json
//
// Backups are full timestamped copies, taken before every mutating operation
// and before every restore. They are never pruned automatically.
type Store struct {
	log  logs.Log
	root string

	// writeFile is swapped out by tests to simulate write failures
	writeFile func(filename string, data []byte) error
}

const backupTimeFormat = "20060102_150405"

var codeRegexp = regexp.MustCompile(`^[0-9]{4}$`)

func NewStore(log logs.Log, root string) (*Store, error) {
	if err := os.MkdirAll(root, 0777); err != nil {
		return nil, fmt.Errorf("Failed to create keyframe storage path '%v': %w", root, err)
	}
	s := &Store{
		log:  log,
		root: root,
	}
	s.writeFile = s.atomicWriteFile
	return s, nil
}

// ValidateCode checks that 'code' is a 4-digit video code.
func ValidateCode(code string) error {
	if !codeRegexp.MatchString(code) {
		return fmt.Errorf("%w: invalid code '%v' (must be 4 digits)", ErrInvalidInput, code)
	}
	return nil
}

func (s *Store) DocumentPath(code string) string {
	return filepath.Join(s.root, fmt.Sprintf("MVI_%v_keyframes.json", code))
}

func (s *Store) backupPath(code string, t time.Time) string {
	return filepath.Join(s.root, fmt.Sprintf("MVI_%v_keyframes.backup_%v.json", code, t.Format(backupTimeFormat)))
}

// Load reads and parses the document for 'code'.
func (s *Store) Load(code string) (*Document, error) {
	if err := ValidateCode(code); err != nil {
		return nil, err
	}
	raw, err := os.ReadFile(s.DocumentPath(code))
	if errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("%w: no keyframe document for code %v", ErrNotFound, code)
	} else if err != nil {
		return nil, err
	}
	doc := &Document{}
	if err := json.Unmarshal(raw, doc); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrCorrupt, err)
	}
	if doc.Keyframes == nil {
		return nil, fmt.Errorf("%w: document has no keyframes field", ErrCorrupt)
	}
	return doc, nil
}

// Save writes the document for 'code'. 'backupName' is the snapshot taken at
// the start of the operation; if the write fails, the prior file state is
// restored from it, so the on-disk document is never left partially written.
func (s *Store) Save(code string, doc *Document, backupName string) error {
	raw, err := json.MarshalIndent(doc, "", "  ")
	if err == nil {
		err = s.writeFile(s.DocumentPath(code), raw)
	}
	if err != nil {
		s.log.Errorf("Save of keyframes %v failed (%v). Restoring from %v", code, err, backupName)
		if backupName != "" {
			if rerr := copyFile(filepath.Join(s.root, backupName), s.DocumentPath(code)); rerr != nil {
				s.log.Criticalf("Restore of keyframes %v from %v failed: %v", code, backupName, rerr)
			}
		}
		return fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	return nil
}

// Snapshot copies the current document file to a new timestamped backup, and
// returns the backup's filename. It is called unconditionally before every
// mutating operation, even those that end up touching zero frames.
// Snapshots within the same second share a name; the later one wins.
func (s *Store) Snapshot(code string) (string, error) {
	if err := ValidateCode(code); err != nil {
		return "", err
	}
	src := s.DocumentPath(code)
	if _, err := os.Stat(src); errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: no keyframe document for code %v", ErrNotFound, code)
	}
	dst := s.backupPath(code, time.Now())
	if err := copyFile(src, dst); err != nil {
		return "", err
	}
	s.log.Infof("Created backup %v", filepath.Base(dst))
	return filepath.Base(dst), nil
}

// BackupInfo describes one backup file of a document.
type BackupInfo struct {
	Name string    `json:"name"`
	Time time.Time `json:"time"`
	Size int64     `json:"size"`
}

// ListBackups returns the backups for 'code', newest first. Backup files
// whose names don't parse are skipped; listing must not fail wholesale over
// one bad entry.
func (s *Store) ListBackups(code string) ([]BackupInfo, error) {
	if err := ValidateCode(code); err != nil {
		return nil, err
	}
	pattern := filepath.Join(s.root, fmt.Sprintf("MVI_%v_keyframes.backup_*.json", code))
	matches, err := filepath.Glob(pattern)
	if err != nil {
		return nil, err
	}
	backups := []BackupInfo{}
	for _, fn := range matches {
		name := filepath.Base(fn)
		t, ok := parseBackupName(code, name)
		if !ok {
			continue
		}
		info := BackupInfo{Name: name, Time: t}
		if st, err := os.Stat(fn); err == nil {
			info.Size = st.Size()
		}
		backups = append(backups, info)
	}
	sort.Slice(backups, func(i, j int) bool { return backups[i].Time.After(backups[j].Time) })
	return backups, nil
}

// Restore replaces the current document with the named backup. The current
// state is snapshotted first, so a restore is itself reversible. Returns the
// name of that pre-restore backup.
func (s *Store) Restore(code, backupName string) (string, error) {
	if err := ValidateCode(code); err != nil {
		return "", err
	}
	if _, ok := parseBackupName(code, backupName); !ok {
		return "", fmt.Errorf("%w: backup '%v' does not belong to code %v", ErrInvalidInput, backupName, code)
	}
	src := filepath.Join(s.root, backupName)
	if _, err := os.Stat(src); errors.Is(err, os.ErrNotExist) {
		return "", fmt.Errorf("%w: backup '%v'", ErrNotFound, backupName)
	}
	preRestore, err := s.Snapshot(code)
	if err != nil {
		return "", err
	}
	if err := copyFile(src, s.DocumentPath(code)); err != nil {
		return "", fmt.Errorf("%w: %v", ErrPersistence, err)
	}
	s.log.Infof("Restored keyframes %v from %v (pre-restore state in %v)", code, backupName, preRestore)
	return preRestore, nil
}

// parseBackupName validates that 'name' is a backup filename for 'code', and
// extracts its timestamp.
func parseBackupName(code, name string) (time.Time, bool) {
	prefix := fmt.Sprintf("MVI_%v_keyframes.backup_", code)
	if !strings.HasPrefix(name, prefix) || !strings.HasSuffix(name, ".json") {
		return time.Time{}, false
	}
	stamp := strings.TrimSuffix(strings.TrimPrefix(name, prefix), ".json")
	t, err := time.ParseInLocation(backupTimeFormat, stamp, time.Local)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// atomicWriteFile writes to a temp file in the same directory, then renames
// over the destination, so a crash mid-write can't truncate the document.
func (s *Store) atomicWriteFile(filename string, data []byte) error {
	tmp := filename + ".tmp"
	if err := os.WriteFile(tmp, data, 0666); err != nil {
		return err
	}
	if err := os.Rename(tmp, filename); err != nil {
		os.Remove(tmp)
		return err
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()
	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
