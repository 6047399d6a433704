// Package shapefile loads ESRI shapefiles, bare or zipped, into overlay layers.
package shapefile

import (
	"archive/zip"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sdbikes/overlays/internal/overlay"
)

// ReadArchive extracts a zipped shapefile into a private directory under tempDir, reads it, and
// removes the extracted files. An empty tempDir uses the system default.
func ReadArchive(zipPath, tempDir string) (*overlay.Layer, error) {
	log := zap.L().With(
		zap.String("component", "shapefile.archive"),
		zap.String("path", zipPath),
	)

	if tempDir != "" {
		if err := os.MkdirAll(tempDir, 0o755); err != nil {
			return nil, eris.Wrap(err, "shapefile: create temp dir")
		}
	}
	extractDir, err := os.MkdirTemp(tempDir, "shapefile-*")
	if err != nil {
		return nil, eris.Wrap(err, "shapefile: create extract dir")
	}
	defer func() { _ = os.RemoveAll(extractDir) }()

	if err := extractZIP(zipPath, extractDir); err != nil {
		return nil, eris.Wrapf(err, "shapefile: extract %s", zipPath)
	}

	shpPath, err := findFileByExt(extractDir, ".shp")
	if err != nil {
		return nil, eris.Wrapf(err, "shapefile: %s", zipPath)
	}
	log.Debug("extracted shapefile", zap.String("shp", filepath.Base(shpPath)))

	layer, err := Read(shpPath)
	if err != nil {
		return nil, err
	}
	layer.Name = strings.TrimSuffix(filepath.Base(zipPath), filepath.Ext(zipPath))
	return layer, nil
}

// extractZIP extracts a ZIP archive's files, flattened, into destDir. File extensions are
// lowercased.
func extractZIP(zipPath, destDir string) error {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return eris.Wrap(err, "open zip")
	}
	defer r.Close() //nolint:errcheck

	for _, f := range r.File {
		if f.FileInfo().IsDir() {
			continue
		}
		name := filepath.Base(f.Name)
		// macOS archives carry resource forks alongside the real files.
		if strings.HasPrefix(name, "._") || strings.Contains(f.Name, "__MACOSX") {
			continue
		}

		// go-shp only finds lowercase sidecar extensions.
		ext := filepath.Ext(name)
		name = strings.TrimSuffix(name, ext) + strings.ToLower(ext)

		if err := extractFile(f, filepath.Join(destDir, name)); err != nil {
			return err
		}
	}

	return nil
}

func extractFile(f *zip.File, destPath string) error {
	rc, err := f.Open()
	if err != nil {
		return eris.Wrapf(err, "open zip entry %s", f.Name)
	}
	defer rc.Close() //nolint:errcheck

	out, err := os.Create(destPath)
	if err != nil {
		return eris.Wrapf(err, "create %s", destPath)
	}

	if _, err := io.Copy(out, rc); err != nil {
		_ = out.Close()
		return eris.Wrapf(err, "extract %s", f.Name)
	}
	return out.Close()
}

// findFileByExt finds the first file with the given extension in a directory.
func findFileByExt(dir, ext string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", eris.Wrap(err, "read directory")
	}
	for _, e := range entries {
		if !e.IsDir() && strings.HasSuffix(strings.ToLower(e.Name()), ext) {
			return filepath.Join(dir, e.Name()), nil
		}
	}
	return "", eris.Errorf("no %s file found in %s", ext, dir)
}
