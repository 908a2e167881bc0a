// Package output writes merged cards and, unless originals are kept, backs
// up and rewrites the input files that lost records to a merge.
package output

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/vcf-dupe/internal/config"
	"github.com/sells-group/vcf-dupe/internal/contact"
	"github.com/sells-group/vcf-dupe/internal/vcf"
)

// OriginalsDir is the backup folder under the merged directory.
const OriginalsDir = "originals"

// Merged is one merged record and the input file its first source came from.
type Merged struct {
	Record     *contact.Record
	SourcePath string
}

// Input is a loaded file. Consumed holds the indexes of records that were
// folded into a merge.
type Input struct {
	Path     string
	Records  []*contact.Record
	Consumed map[int]bool
}

// Result lists the files written, or that would be written on a dry run.
// Merged is parallel to the merged slice passed to Write.
type Result struct {
	Merged    []string `json:"merged,omitempty"`
	BackedUp  []string `json:"backed_up,omitempty"`
	Rewritten []string `json:"rewritten,omitempty"`
	Removed   []string `json:"removed,omitempty"`
}

// Writer places merge output on disk.
type Writer struct {
	dir           string
	keepOriginals bool
	dryRun        bool

	taken map[string]bool
}

// NewWriter creates a Writer for cfg. A dry run plans names without touching
// the filesystem.
func NewWriter(cfg config.Config, dryRun bool) *Writer {
	return &Writer{
		dir:           cfg.MergedDir,
		keepOriginals: cfg.KeepOriginals,
		dryRun:        dryRun,
		taken:         make(map[string]bool),
	}
}

// Write stores each merged record as merged_<source-base>[_n].vcf and then
// handles the inputs that lost records.
func (w *Writer) Write(merged []Merged, inputs []Input) (Result, error) {
	var res Result
	if len(merged) == 0 {
		return res, nil
	}

	if !w.dryRun {
		if err := os.MkdirAll(w.dir, 0o755); err != nil {
			return res, eris.Wrapf(err, "output: create %s", w.dir)
		}
	}

	for _, m := range merged {
		path := w.claim(w.dir, "merged_"+stem(m.SourcePath), ".vcf")
		if !w.dryRun {
			if err := vcf.WriteFile(path, m.Record); err != nil {
				return res, err
			}
		}
		res.Merged = append(res.Merged, path)
	}

	if w.keepOriginals {
		return res, nil
	}

	backups := filepath.Join(w.dir, OriginalsDir)
	for _, in := range inputs {
		if len(in.Consumed) == 0 {
			continue
		}

		backup := w.claim(backups, stem(in.Path), filepath.Ext(in.Path))
		var survivors []*contact.Record
		for i, r := range in.Records {
			if !in.Consumed[i] {
				survivors = append(survivors, r)
			}
		}

		res.BackedUp = append(res.BackedUp, backup)
		if len(survivors) == 0 {
			res.Removed = append(res.Removed, in.Path)
		} else {
			res.Rewritten = append(res.Rewritten, in.Path)
		}
		if w.dryRun {
			continue
		}

		if err := os.MkdirAll(backups, 0o755); err != nil {
			return res, eris.Wrapf(err, "output: create %s", backups)
		}
		if err := copyFile(in.Path, backup); err != nil {
			return res, err
		}
		if len(survivors) == 0 {
			if err := os.Remove(in.Path); err != nil {
				return res, eris.Wrapf(err, "output: remove %s", in.Path)
			}
			zap.L().Info("output: removed merged original", zap.String("path", in.Path), zap.String("backup", backup))
			continue
		}
		if err := rewrite(in.Path, survivors); err != nil {
			return res, err
		}
		zap.L().Info("output: rewrote original",
			zap.String("path", in.Path),
			zap.Int("kept", len(survivors)),
			zap.Int("consumed", len(in.Consumed)),
			zap.String("backup", backup),
		)
	}
	return res, nil
}

// claim returns dir/base+ext, or dir/base_n+ext for the first n not used in
// this run or on disk.
func (w *Writer) claim(dir, base, ext string) string {
	for n := 0; ; n++ {
		name := base + ext
		if n > 0 {
			name = fmt.Sprintf("%s_%d%s", base, n, ext)
		}
		path := filepath.Join(dir, name)
		if w.taken[path] {
			continue
		}
		if _, err := os.Stat(path); err == nil {
			continue
		}
		w.taken[path] = true
		return path
	}
}

func stem(path string) string {
	base := filepath.Base(path)
	if s := strings.TrimSuffix(base, filepath.Ext(base)); s != "" {
		return s
	}
	return "contacts"
}

// rewrite replaces path through a temp file in the same directory so a
// failed write leaves the original intact.
func rewrite(path string, records []*contact.Record) error {
	tmp := path + ".tmp"
	if err := vcf.WriteFile(tmp, records...); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		_ = os.Remove(tmp)
		return eris.Wrapf(err, "output: replace %s", path)
	}
	return nil
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return eris.Wrapf(err, "output: open %s", src)
	}
	defer in.Close() //nolint:errcheck

	out, err := os.OpenFile(dst, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		return eris.Wrapf(err, "output: create %s", dst)
	}
	if _, err := io.Copy(out, in); err != nil {
		_ = out.Close()
		return eris.Wrapf(err, "output: copy %s", src)
	}
	return eris.Wrapf(out.Close(), "output: close %s", dst)
}
