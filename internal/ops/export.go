package ops

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"time"

	"github.com/hpungsan/timecapsule/internal/capsule"
	"github.com/hpungsan/timecapsule/internal/config"
	"github.com/hpungsan/timecapsule/internal/errors"
)

// ExportInput contains parameters for the Export operation.
type ExportInput struct {
	Fields capsule.Fields
	Path   string    // optional, default: <exports_dir>/TimeCapsule_<name>_<ms>.txt
	Now    time.Time // optional, default: time.Now()
}

// ExportOutput contains the result of the Export operation.
type ExportOutput struct {
	Path       string `json:"path"`
	Bytes      int    `json:"bytes"`
	ExportedAt int64  `json:"exported_at"`
}

// Export writes the capsule document for input.Fields to a .txt file.
// Nothing is written when a field is missing.
func Export(ctx context.Context, cfg *config.Config, input ExportInput) (*ExportOutput, error) {
	if err := input.Fields.Validate(); err != nil {
		return nil, err
	}

	now := input.Now
	if now.IsZero() {
		now = time.Now()
	}

	exportPath := input.Path
	if exportPath == "" {
		var err error
		exportPath, err = defaultExportPath(cfg, input.Fields.Name, now)
		if err != nil {
			return nil, err
		}
	}

	// Default paths are validated too; the name part is user input
	if err := ValidateExportPath(exportPath, cfg); err != nil {
		return nil, err
	}

	opts := capsule.ExportOptions{}
	if cfg != nil {
		opts.EscapeNewlines = cfg.ExportEscapeNewlines
	}
	doc := []byte(capsule.ExportDocument(input.Fields, opts))

	if err := ctx.Err(); err != nil {
		return nil, errors.NewCancelled("export")
	}
	if err := writeFileAtomic(exportPath, doc); err != nil {
		return nil, err
	}

	return &ExportOutput{
		Path:       exportPath,
		Bytes:      len(doc),
		ExportedAt: now.UnixMilli(),
	}, nil
}

// writeFileAtomic writes data to a temp file next to path and renames it into
// place. An existing file at path survives any failure.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to create export directory: %w", err))
	}

	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := path + "." + hex.EncodeToString(randBytes) + ".tmp"
	file, err := openFileNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		if errors.As(err).Code != errors.ErrInternal {
			return err
		}
		return errors.NewInternal(fmt.Errorf("failed to create export file: %w", err))
	}

	success := false
	defer func() {
		if file != nil {
			file.Close()
		}
		if !success {
			os.Remove(tempPath)
		}
	}()

	if _, err := file.Write(data); err != nil {
		return errors.NewInternal(err)
	}
	if err := file.Sync(); err != nil {
		return errors.NewInternal(err)
	}

	// Close before rename (required on Windows)
	if err := file.Close(); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to close export file: %w", err))
	}
	file = nil

	// os.Rename would follow a symlink planted since validation
	if info, err := os.Lstat(path); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return errors.NewInvalidRequest("export path is a symlink")
	}

	// On Windows os.Rename fails if the destination exists. Fail and keep the
	// existing file rather than delete-then-rename.
	if err := os.Rename(tempPath, path); err != nil {
		if runtime.GOOS == "windows" {
			if _, statErr := os.Stat(path); statErr == nil {
				return errors.NewInvalidRequest("export destination already exists; overwriting is not supported on Windows (choose a new path or delete the existing file)")
			}
		}
		return errors.NewInternal(fmt.Errorf("failed to finalize export: %w", err))
	}

	success = true
	return nil
}

// defaultExportPath returns <exports_dir>/TimeCapsule_<name>_<ms>.txt.
func defaultExportPath(cfg *config.Config, name string, now time.Time) (string, error) {
	dir := ""
	if cfg != nil {
		dir = cfg.ExportsDir
	}
	if dir == "" {
		d, err := DefaultExportsDir()
		if err != nil {
			return "", err
		}
		dir = d
	}
	return filepath.Join(dir, capsule.ExportFilename(name, now)), nil
}
