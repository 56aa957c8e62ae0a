package ops

import (
	"bufio"
	"context"
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/recap/internal/db"
	"github.com/hpungsan/recap/internal/errors"
	"github.com/hpungsan/recap/internal/summary"
)

// ExportInput contains parameters for the ExportSummary operation.
type ExportInput struct {
	ID string // required
	// Format is markdown, text or html. Default: the export_format setting.
	Format string
	// Path defaults to ~/.recap/exports/<title>-<id><ext>.
	Path              string
	IncludeTranscript bool
}

// ExportOutput contains the result of the ExportSummary operation.
type ExportOutput struct {
	Path   string `json:"path"`
	Format string `json:"format"`
	Bytes  int    `json:"bytes"`
}

// ExportSummary renders one saved summary to a Markdown, text or HTML file.
func ExportSummary(ctx context.Context, rt *Runtime, input ExportInput) (*ExportOutput, error) {
	id := strings.TrimSpace(input.ID)
	if id == "" {
		return nil, errors.NewInvalidRequest("id is required")
	}

	format := strings.TrimSpace(input.Format)
	if format == "" {
		settings, err := rt.kv().Settings(ctx)
		if err != nil {
			return nil, err
		}
		format = settings.ExportFormat
	}
	ext, ok := summary.ExtensionFor(format)
	if !ok {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("format must be one of: %s, %s, %s", summary.FormatMarkdown, summary.FormatText, summary.FormatHTML))
	}

	r, err := db.GetByID(ctx, rt.DB, id)
	if err != nil {
		return nil, err
	}

	body, err := summary.Render(r, format, summary.RenderOptions{IncludeTranscript: input.IncludeTranscript})
	if err != nil {
		return nil, errors.NewInternal(err)
	}

	path := input.Path
	if path == "" {
		dir, err := DefaultExportsDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(dir, SanitizeForFilename(r.Title)+"-"+r.ID+ext)
	} else if !strings.EqualFold(filepath.Ext(path), ext) {
		return nil, errors.NewInvalidRequest(fmt.Sprintf("path extension must be %s for format %s", ext, format))
	}

	if err := ValidatePath(path, PathCheckWrite, ExportExtensions, rt.cfg()); err != nil {
		return nil, err
	}

	err = writeFileAtomic(path, func(w io.Writer) error {
		_, err := io.WriteString(w, body)
		return err
	})
	if err != nil {
		return nil, err
	}

	return &ExportOutput{Path: path, Format: format, Bytes: len(body)}, nil
}

// BackupInput contains parameters for the Backup operation.
type BackupInput struct {
	// Path defaults to ~/.recap/exports/recap-backup-<timestamp>.jsonl.
	Path string
}

// BackupOutput contains the result of the Backup operation.
type BackupOutput struct {
	Path       string `json:"path"`
	Count      int    `json:"count"`
	ExportDate string `json:"export_date"`
}

// Backup writes the settings and every saved summary to a JSONL file: a
// header line, then one summary per line, oldest first.
func Backup(ctx context.Context, rt *Runtime, input BackupInput) (*BackupOutput, error) {
	now := rt.now()
	exportDate := now.UTC().Format(time.RFC3339)

	path := input.Path
	if path == "" {
		dir, err := DefaultExportsDir()
		if err != nil {
			return nil, err
		}
		path = filepath.Join(dir, fmt.Sprintf("recap-backup-%s.jsonl", now.Format("2006-01-02T150405")))
	}
	if err := ValidatePath(path, PathCheckWrite, BackupExtensions, rt.cfg()); err != nil {
		return nil, err
	}

	settings, err := rt.kv().Settings(ctx)
	if err != nil {
		return nil, err
	}

	count := 0
	err = writeFileAtomic(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		header := summary.BackupRecord{
			RecapBackup: true,
			Version:     summary.BackupVersion,
			ExportDate:  exportDate,
			Settings:    &settings,
		}
		if err := enc.Encode(header); err != nil {
			return errors.NewInternal(err)
		}

		rows, err := db.StreamAll(ctx, rt.DB)
		if err != nil {
			return err
		}
		defer rows.Close()

		for rows.Next() {
			select {
			case <-ctx.Done():
				return errors.NewCancelled("backup")
			default:
			}
			r, err := db.ScanRecordFromRows(rows)
			if err != nil {
				return errors.NewInternal(err)
			}
			if err := enc.Encode(summary.RecordToBackup(r)); err != nil {
				return errors.NewInternal(err)
			}
			count++
		}
		if err := rows.Err(); err != nil {
			return errors.NewInternal(err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	rt.log().Info("backup: written", zap.String("path", path), zap.Int("count", count))
	return &BackupOutput{Path: path, Count: count, ExportDate: exportDate}, nil
}

// writeFileAtomic writes through a temp file in the destination directory
// and renames it into place, so a failed write leaves any existing file
// untouched.
func writeFileAtomic(path string, write func(io.Writer) error) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to create export directory: %w", err))
	}

	randBytes := make([]byte, 8)
	if _, err := rand.Read(randBytes); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to generate temp file name: %w", err))
	}
	tempPath := path + "." + hex.EncodeToString(randBytes) + ".tmp"
	file, err := openNoFollow(tempPath, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
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

	bw := bufio.NewWriter(file)
	if err := write(bw); err != nil {
		if _, ok := errors.As(err); ok {
			return err
		}
		return errors.NewInternal(err)
	}
	if err := bw.Flush(); err != nil {
		return errors.NewInternal(err)
	}
	if err := file.Sync(); err != nil {
		return errors.NewInternal(err)
	}
	// Windows cannot rename an open file.
	if err := file.Close(); err != nil {
		return errors.NewInternal(fmt.Errorf("failed to close export file: %w", err))
	}
	file = nil

	// os.Rename would follow a symlinked destination.
	if info, err := os.Lstat(path); err == nil && info.Mode()&os.ModeSymlink != 0 {
		return errors.NewInvalidRequest("export path is a symlink")
	}

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
