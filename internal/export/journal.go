package export

import (
	"compress/gzip"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// JournalEntry records one refreshed view of the live series.
type JournalEntry struct {
	Time        string `json:"time"`
	Series      string `json:"series"`
	Session     string `json:"session"`
	Mode        string `json:"mode"`
	Bars        int    `json:"bars"`
	LastClose   string `json:"last_close,omitempty"`
	LastError   string `json:"last_error,omitempty"`
	Annotations int    `json:"annotations"`
}

// Journal appends entries to one JSON-lines file per UTC day under dir.
type Journal struct {
	dir string
	mu  sync.Mutex
	now func() time.Time
}

func NewJournal(dir string) *Journal {
	return &Journal{dir: dir, now: time.Now}
}

func (j *Journal) Dir() string { return j.dir }

func (j *Journal) dailyFilepath(t time.Time) string {
	return filepath.Join(j.dir, "journal", t.UTC().Format("2006-01-02")+".txt")
}

func (j *Journal) Append(e JournalEntry) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	now := j.now().UTC()
	e.Time = now.Format(time.RFC3339)
	p := j.dailyFilepath(now)
	if err := os.MkdirAll(filepath.Dir(p), 0o755); err != nil {
		return err
	}
	f, err := os.OpenFile(p, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return err
	}
	defer f.Close()
	b, err := json.Marshal(e)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(f, string(b))
	return err
}

// CompressOlder gzips journal files last written more than retentionDays ago
// and removes the originals. It returns the number of files compressed.
func (j *Journal) CompressOlder(retentionDays int) (int, error) {
	if retentionDays <= 0 {
		return 0, nil
	}
	j.mu.Lock()
	defer j.mu.Unlock()

	root := filepath.Join(j.dir, "journal")
	if _, err := os.Stat(root); os.IsNotExist(err) {
		return 0, nil
	}
	cutoff := j.now().AddDate(0, 0, -retentionDays)
	n := 0
	err := filepath.WalkDir(root, func(p string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || filepath.Ext(p) != ".txt" {
			return nil
		}
		info, err := d.Info()
		if err != nil || !info.ModTime().Before(cutoff) {
			return nil
		}
		// already compressed by an earlier run
		if _, err := os.Stat(p + ".gz"); err == nil {
			return os.Remove(p)
		}
		if err := gzipFile(p); err != nil {
			return err
		}
		n++
		return nil
	})
	return n, err
}

func gzipFile(p string) error {
	in, err := os.Open(p)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.OpenFile(p+".gz", os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0o644)
	if err != nil {
		return err
	}
	gw := gzip.NewWriter(out)
	if _, err := io.Copy(gw, in); err != nil {
		_ = gw.Close()
		_ = out.Close()
		_ = os.Remove(p + ".gz")
		return err
	}
	if err := gw.Close(); err != nil {
		_ = out.Close()
		return err
	}
	if err := out.Close(); err != nil {
		return err
	}
	return os.Remove(p)
}
