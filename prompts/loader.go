package prompts

import (
	"context"
	"log/slog"
	"path/filepath"
	"strings"

	"github.com/viant/afs"
	"github.com/viant/afs/url"
)

// Loader resolves instruction text. Missing resources resolve to empty text;
// they never fail the caller.
type Loader interface {
	LoadTemplate(ctx context.Context, name string) string
	LoadCharacterSheet(ctx context.Context, persona, sheet string) string
}

// FileLoader reads instructions laid out as
//
//	<base>/templates/<name>.txt
//	<base>/<persona>/<persona>.txt
//	<base>/<persona>/<user id>.txt
//
// The base may be any location afs understands (local path, mem://, s3://, gs://).
type FileLoader struct {
	fs      afs.Service
	baseURL string
	logger  *slog.Logger
}

var _ Loader = (*FileLoader)(nil)

func NewFileLoader(baseURL string) *FileLoader {
	if url.Scheme(baseURL, "") == "" {
		if abs, err := filepath.Abs(baseURL); err == nil {
			baseURL = abs
		}
	}
	return &FileLoader{
		fs:      afs.New(),
		baseURL: baseURL,
		logger:  slog.Default(),
	}
}

func (l *FileLoader) SetLogger(logger *slog.Logger) {
	l.logger = logger
}

func (l *FileLoader) LoadTemplate(ctx context.Context, name string) string {
	return l.load(ctx, url.Join(l.baseURL, "templates", name+".txt"), "template", name)
}

// LoadCharacterSheet loads the sheet of a persona, or the sheet a persona
// keeps about a specific user when sheet is not empty.
func (l *FileLoader) LoadCharacterSheet(ctx context.Context, persona, sheet string) string {
	dir := strings.ToLower(persona)
	name := dir
	if sheet != "" {
		name = strings.ToLower(sheet)
	}
	return l.load(ctx, url.Join(l.baseURL, dir, name+".txt"), "character sheet", name)
}

func (l *FileLoader) load(ctx context.Context, location, kind, name string) string {
	if ok, _ := l.fs.Exists(ctx, location); !ok {
		l.logger.Error("instruction not found", "kind", kind, "name", name, "url", location)
		return ""
	}
	data, err := l.fs.DownloadWithURL(ctx, location)
	if err != nil {
		l.logger.Error("failed to read instruction", "kind", kind, "name", name, "error", err)
		return ""
	}
	return string(data)
}
