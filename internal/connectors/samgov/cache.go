package samgov

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/custodia-labs/afrisam/internal/core/domain"
	"github.com/custodia-labs/afrisam/internal/logger"
)

// datedLayout formats the date suffix of kept latest-extract copies.
const datedLayout = "01_02_2006"

// DatedName returns the file name of the latest extract copy for day.
func DatedName(day time.Time) string {
	base := strings.TrimSuffix(domain.LatestFileName, ".csv")
	return fmt.Sprintf("%s_%s.csv", base, day.Format(datedLayout))
}

// parseDatedName returns the date encoded in a dated copy name.
func parseDatedName(name string) (time.Time, bool) {
	base := strings.TrimSuffix(domain.LatestFileName, ".csv") + "_"
	rest, ok := strings.CutPrefix(name, base)
	if !ok {
		return time.Time{}, false
	}
	t, err := time.Parse(datedLayout, strings.TrimSuffix(rest, ".csv"))
	return t, err == nil
}

// keepDatedCopy links or copies the latest extract to today's dated name
// and prunes copies beyond KeepLatest.
func (f *Fetcher) keepDatedCopy(src string) error {
	if f.cfg.KeepLatest <= 0 {
		return nil
	}

	dir := filepath.Dir(src)
	dest := filepath.Join(dir, DatedName(f.now()))
	_ = os.Remove(dest)
	if err := os.Link(src, dest); err != nil {
		if err := copyFile(src, dest); err != nil {
			return err
		}
	}
	return f.pruneDatedCopies(dir)
}

func (f *Fetcher) pruneDatedCopies(dir string) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	type dated struct {
		name string
		day  time.Time
	}
	var copies []dated
	for _, e := range entries {
		if day, ok := parseDatedName(e.Name()); ok {
			copies = append(copies, dated{e.Name(), day})
		}
	}
	slices.SortFunc(copies, func(a, b dated) int { return b.day.Compare(a.day) })

	var errs []error
	for _, c := range copies[min(f.cfg.KeepLatest, len(copies)):] {
		logger.Debug("removing old extract copy %s", c.name)
		if err := os.Remove(filepath.Join(dir, c.name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

func copyFile(src, dest string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dest)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
