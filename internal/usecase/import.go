package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"semnotes/internal/adapter/fs"
	"semnotes/internal/domain"
)

// ImportUseCase captures one note per text file found under a directory.
type ImportUseCase struct {
	capture *CaptureUseCase
	walker  *fs.Walker
	logger  *slog.Logger
}

// NewImportUseCase creates a new import use case.
func NewImportUseCase(capture *CaptureUseCase, walker *fs.Walker, logger *slog.Logger) *ImportUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &ImportUseCase{
		capture: capture,
		walker:  walker,
		logger:  logger,
	}
}

// ImportResult contains the results of an import operation.
type ImportResult struct {
	FilesImported int
	FilesSkipped  int
	NoteIDs       []string
	Errors        []string
}

// Import walks root and captures each matching file for ownerID. Files that
// are empty, too large or not text are skipped; a failed capture is recorded
// and the import continues. progress, if set, is called after each file.
func (u *ImportUseCase) Import(ctx context.Context, ownerID, root string, progress func(done, total int)) (*ImportResult, error) {
	if err := validateOwner(ownerID); err != nil {
		return nil, err
	}

	files, skipped, err := u.walker.Walk(ctx, root)
	if err != nil {
		return nil, fmt.Errorf("failed to walk directory: %w", err)
	}

	result := &ImportResult{FilesSkipped: len(skipped)}
	for _, rel := range skipped {
		result.Errors = append(result.Errors, fmt.Sprintf("%s: file too large", rel))
	}

	for i, file := range files {
		if err := ctx.Err(); err != nil {
			return result, err
		}

		id, err := u.importFile(ctx, ownerID, file)
		switch {
		case err == nil:
			result.FilesImported++
			result.NoteIDs = append(result.NoteIDs, id)
		case errors.Is(err, errEmptyFile):
			result.FilesSkipped++
		default:
			if errors.Is(err, domain.ErrValidation) {
				result.FilesSkipped++
			}
			result.Errors = append(result.Errors, fmt.Sprintf("%s: %v", file.RelPath, err))
		}

		if progress != nil {
			progress(i+1, len(files))
		}
	}

	u.logger.Info("import finished", "owner_id", ownerID, "root", root, "imported", result.FilesImported, "skipped", result.FilesSkipped, "errors", len(result.Errors))
	return result, nil
}

var errEmptyFile = errors.New("empty file")

func (u *ImportUseCase) importFile(ctx context.Context, ownerID string, file fs.FileInfo) (string, error) {
	text, err := fs.ReadText(file.Path)
	if err != nil {
		return "", fmt.Errorf("%w: %w", domain.ErrValidation, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", errEmptyFile
	}
	return u.capture.Capture(ctx, ownerID, text)
}
