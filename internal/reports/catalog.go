// Package reports exposes the pre-rendered training report images.
package reports

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/peoplesignal/attrition-api/internal/utils"
)

// BaseURL is the public prefix under which images are served.
const BaseURL = "/api/visualizations"

var categories = []string{"comparison", "full", "reduced", "minimal"}

// Categories returns the image categories in display order.
func Categories() []string {
	return append([]string(nil), categories...)
}

// ValidCategory reports whether name is a known category.
func ValidCategory(name string) bool {
	for _, c := range categories {
		if c == name {
			return true
		}
	}
	return false
}

// Catalog lists and resolves PNG images stored as <root>/<category>/<file>.png.
type Catalog struct {
	root string
}

// NewCatalog returns a catalog rooted at dir.
func NewCatalog(dir string) *Catalog {
	return &Catalog{root: dir}
}

// Root returns the directory the catalog serves from.
func (c *Catalog) Root() string { return c.root }

// List returns the sorted PNG file names per category. Every category is
// present; missing directories yield an empty list.
func (c *Catalog) List() (map[string][]string, error) {
	out := make(map[string][]string, len(categories))
	for _, category := range categories {
		files := []string{}
		entries, err := os.ReadDir(filepath.Join(c.root, category))
		if err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, utils.NewAppError("reports.List", "read category "+category, err)
		}
		for _, entry := range entries {
			if entry.Type().IsRegular() && strings.HasSuffix(entry.Name(), ".png") {
				files = append(files, entry.Name())
			}
		}
		sort.Strings(files)
		out[category] = files
	}
	return out, nil
}

// Count returns the total number of images across categories.
func (c *Catalog) Count() int {
	listing, err := c.List()
	if err != nil {
		return 0
	}
	total := 0
	for _, files := range listing {
		total += len(files)
	}
	return total
}

// ImagePath resolves category/filename to an existing file on disk.
func (c *Catalog) ImagePath(category, filename string) (string, error) {
	const op = "reports.ImagePath"
	if !ValidCategory(category) {
		return "", utils.NewKindError(utils.KindClientContract, op,
			"Invalid category. Use: comparison, full, reduced, or minimal", nil, nil)
	}
	if filename == "" || filename != filepath.Base(filename) || filename == "." || filename == ".." || strings.ContainsAny(filename, `/\`) {
		return "", utils.NewKindError(utils.KindClientContract, op, "Invalid filename", nil, nil)
	}
	path := filepath.Join(c.root, category, filename)
	info, err := os.Stat(path)
	if err != nil || !info.Mode().IsRegular() {
		return "", utils.NewKindError(utils.KindNotFound, op,
			fmt.Sprintf("Visualization not found: %s/%s", category, filename), nil, err)
	}
	return path, nil
}
