package ops

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"go.uber.org/zap"

	"github.com/hpungsan/recap/internal/db"
	"github.com/hpungsan/recap/internal/errors"
	"github.com/hpungsan/recap/internal/summary"
)

// MaxRestoreFileSize bounds the backup files Restore accepts.
const MaxRestoreFileSize int64 = 64 << 20

// RestoreMode controls how a backup combines with the existing library.
type RestoreMode string

const (
	RestoreModeReplace RestoreMode = "replace" // wipe, then load (atomic)
	RestoreModeMerge   RestoreMode = "merge"   // upsert by id
)

// RestoreInput contains parameters for the Restore operation.
type RestoreInput struct {
	Path string      // required
	Mode RestoreMode // default: merge
}

// RestoreOutput contains the result of the Restore operation.
type RestoreOutput struct {
	Restored         int           `json:"restored"`
	Skipped          int           `json:"skipped"`
	SettingsRestored bool          `json:"settings_restored"`
	Errors           []ImportError `json:"errors"`
}

// ImportError describes a backup line that could not be restored.
type ImportError struct {
	Line    int    `json:"line"`
	ID      string `json:"id,omitempty"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Restore loads a JSONL backup written by Backup.
//
// Replace mode removes every saved summary and loads the file inside one
// transaction; any unreadable line aborts it with nothing changed. Merge mode
// upserts each valid summary by id and reports the rest in Errors. Settings
// carried by the header are restored in both modes.
func Restore(ctx context.Context, rt *Runtime, input RestoreInput) (*RestoreOutput, error) {
	if input.Mode == "" {
		input.Mode = RestoreModeMerge
	}
	if input.Mode != RestoreModeReplace && input.Mode != RestoreModeMerge {
		return nil, errors.NewInvalidRequest("mode must be one of: replace, merge")
	}
	if err := ValidatePath(input.Path, PathCheckRead, BackupExtensions, rt.cfg()); err != nil {
		return nil, err
	}

	file, err := openNoFollow(input.Path, os.O_RDONLY, 0)
	if err != nil {
		if _, ok := errors.As(err); ok {
			return nil, err
		}
		return nil, errors.NewInternal(fmt.Errorf("failed to open backup file: %w", err))
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	if info.Size() > MaxRestoreFileSize {
		return nil, errors.NewFileTooLarge(MaxRestoreFileSize, info.Size())
	}

	settings, records, parseErrors := parseBackup(io.LimitReader(file, MaxRestoreFileSize))

	out := &RestoreOutput{Errors: parseErrors, Skipped: len(parseErrors)}
	if out.Errors == nil {
		out.Errors = []ImportError{}
	}
	if input.Mode == RestoreModeReplace && len(parseErrors) > 0 {
		return out, nil
	}

	tx, err := rt.DB.BeginTx(ctx, nil)
	if err != nil {
		return nil, errors.NewInternal(err)
	}
	defer tx.Rollback() //nolint:errcheck

	if input.Mode == RestoreModeReplace {
		if _, err := db.DeleteAll(ctx, tx); err != nil {
			return nil, err
		}
	}
	for _, r := range records {
		if err := db.Upsert(ctx, tx, r); err != nil {
			return nil, err
		}
		out.Restored++
	}
	if err := tx.Commit(); err != nil {
		return nil, errors.NewInternal(err)
	}

	if settings != nil {
		if err := rt.kv().SaveSettings(ctx, *settings); err != nil {
			return nil, err
		}
		out.SettingsRestored = true
	}

	rt.log().Info("restore: done",
		zap.String("mode", string(input.Mode)),
		zap.Int("restored", out.Restored),
		zap.Int("skipped", out.Skipped))
	return out, nil
}

// parseBackup reads every line of a backup. The header is optional; its
// settings are returned only when they validate.
func parseBackup(r io.Reader) (*summary.Settings, []*summary.Record, []ImportError) {
	var (
		settings *summary.Settings
		records  []*summary.Record
		errs     []ImportError
	)

	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), int(MaxRestoreFileSize))
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		raw := bytes.TrimSpace(scanner.Bytes())
		if len(raw) == 0 {
			continue
		}

		var rec summary.BackupRecord
		if err := json.Unmarshal(raw, &rec); err != nil {
			errs = append(errs, ImportError{Line: lineNum, Code: "PARSE_ERROR", Message: fmt.Sprintf("invalid JSON: %v", err)})
			continue
		}

		if rec.RecapBackup {
			var hdr struct {
				Settings json.RawMessage `json:"settings"`
			}
			if err := json.Unmarshal(raw, &hdr); err != nil || len(hdr.Settings) == 0 || string(hdr.Settings) == "null" {
				continue
			}
			s, err := summary.LoadSettings(hdr.Settings)
			if err == nil {
				err = s.Validate()
			}
			if err != nil {
				errs = append(errs, ImportError{Line: lineNum, Code: "INVALID_SETTINGS", Message: err.Error()})
				continue
			}
			settings = &s
			continue
		}

		if msg := invalidRecord(&rec); msg != "" {
			errs = append(errs, ImportError{Line: lineNum, ID: rec.ID, Code: "INVALID_RECORD", Message: msg})
			continue
		}
		records = append(records, rec.ToRecord())
	}

	if err := scanner.Err(); err != nil {
		errs = append(errs, ImportError{Line: lineNum, Code: "READ_ERROR", Message: fmt.Sprintf("failed to read file: %v", err)})
	}

	return settings, records, errs
}

func invalidRecord(rec *summary.BackupRecord) string {
	switch {
	case strings.TrimSpace(rec.ID) == "":
		return "missing id field"
	case strings.TrimSpace(rec.Content) == "":
		return "missing content field"
	case !rec.SummaryType.Valid():
		return fmt.Sprintf("unknown summary_type %q", rec.SummaryType)
	case rec.CreatedAt <= 0:
		return "missing created_at field"
	}
	return ""
}
