package report

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path"
	"strings"
	"time"

	"github.com/spf13/afero"

	"github.com/jhoicas/fbs-core/internal/application/ports"
	"github.com/jhoicas/fbs-core/internal/domain"
)

// Store implementa ports.ReportStore sobre un afero.Fs (disco en producción, memoria en tests).
type Store struct {
	fs   afero.Fs
	root string
	now  func() time.Time
}

// NewStore guarda los reportes bajo root dentro de fs.
func NewStore(fs afero.Fs, root string) *Store {
	return &Store{fs: fs, root: root, now: time.Now}
}

// NewOSStore almacén en el sistema de archivos local.
func NewOSStore(root string) *Store {
	return NewStore(afero.NewOsFs(), root)
}

// Save escribe el contenido y devuelve su handle. Sobrescribe si el nombre existe.
func (s *Store) Save(_ context.Context, name, contentType string, content []byte) (ports.ReportHandle, error) {
	p, err := s.path(name)
	if err != nil {
		return ports.ReportHandle{}, err
	}
	if err := s.fs.MkdirAll(path.Dir(p), 0o755); err != nil {
		return ports.ReportHandle{}, fmt.Errorf("crear directorio de reportes: %w", err)
	}
	if err := afero.WriteFile(s.fs, p, content, 0o644); err != nil {
		return ports.ReportHandle{}, fmt.Errorf("guardar reporte %s: %w", name, err)
	}
	return ports.ReportHandle{
		Name:        name,
		ContentType: contentType,
		Size:        int64(len(content)),
		CreatedAt:   s.now(),
	}, nil
}

// Open lee un reporte guardado.
func (s *Store) Open(_ context.Context, name string) ([]byte, error) {
	p, err := s.path(name)
	if err != nil {
		return nil, err
	}
	b, err := afero.ReadFile(s.fs, p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("reporte %s: %w", name, domain.ErrNotFound)
		}
		return nil, fmt.Errorf("leer reporte %s: %w", name, err)
	}
	return b, nil
}

// path arma la ruta dentro de root. Los nombres son relativos y sin "..".
func (s *Store) path(name string) (string, error) {
	clean := path.Clean("/" + strings.TrimSpace(name))
	if name == "" || clean == "/" || strings.Contains(name, "..") {
		return "", fmt.Errorf("%w: nombre de reporte %q", domain.ErrInvalidInput, name)
	}
	return path.Join(s.root, clean), nil
}
