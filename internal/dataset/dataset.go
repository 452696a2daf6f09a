package dataset

import (
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	json "github.com/goccy/go-json"

	"github.com/changdang/companion/internal/content"
)

// File names inside a dataset bundle.
const (
	SitesFile = "sites.json"
	TermsFile = "terms.json"
)

// ErrEmptyDir is returned by Override for an empty directory argument.
var ErrEmptyDir = errors.New("dataset directory not set")

//go:embed data/*.json
var embedded embed.FS

var (
	embeddedOnce    sync.Once
	embeddedDataset *content.Dataset
)

// Embedded returns the dataset compiled into the binary. It is parsed once
// and shared; callers must not modify the returned slices.
func Embedded() *content.Dataset {
	embeddedOnce.Do(func() {
		fsys, err := fs.Sub(embedded, "data")
		if err != nil {
			panic(fmt.Sprintf("dataset: embedded data: %v", err))
		}
		ds, err := Load(fsys)
		if err != nil {
			panic(fmt.Sprintf("dataset: embedded data: %v", err))
		}
		embeddedDataset = ds
	})
	return embeddedDataset
}

// Load reads sites.json and terms.json from the root of fsys.
func Load(fsys fs.FS) (*content.Dataset, error) {
	var sites []content.Site
	if err := readJSON(fsys, SitesFile, &sites); err != nil {
		return nil, err
	}
	var terms []content.Term
	if err := readJSON(fsys, TermsFile, &terms); err != nil {
		return nil, err
	}
	if sites == nil {
		sites = []content.Site{}
	}
	if terms == nil {
		terms = []content.Term{}
	}
	return content.NewDataset(sites, terms), nil
}

// Override loads a dataset bundle from a directory on disk.
func Override(dir string) (*content.Dataset, error) {
	if dir == "" {
		return nil, ErrEmptyDir
	}
	info, err := os.Stat(dir)
	if err != nil {
		return nil, fmt.Errorf("dataset directory: %w", err)
	}
	if !info.IsDir() {
		return nil, fmt.Errorf("dataset directory: %s is not a directory", dir)
	}
	return Load(os.DirFS(dir))
}

// Export writes the embedded bundle files to dir, creating it if needed.
// Existing files are overwritten.
func Export(dir string) ([]string, error) {
	if dir == "" {
		return nil, ErrEmptyDir
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create dataset dir: %w", err)
	}

	var written []string
	for _, name := range []string{SitesFile, TermsFile} {
		data, err := embedded.ReadFile("data/" + name)
		if err != nil {
			return written, fmt.Errorf("read embedded %s: %w", name, err)
		}
		dst := filepath.Join(dir, name)
		if err := os.WriteFile(dst, data, 0o644); err != nil {
			return written, fmt.Errorf("write %s: %w", dst, err)
		}
		written = append(written, dst)
	}
	return written, nil
}

func readJSON(fsys fs.FS, name string, v any) error {
	data, err := fs.ReadFile(fsys, name)
	if err != nil {
		return fmt.Errorf("read %s: %w", name, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("decode %s: %w", name, err)
	}
	return nil
}
