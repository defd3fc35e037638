package process

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/hashicorp/go-hclog"
)

const definitionFileExtension = ".xml"

// DefinitionFile is one process definition document found in the repository.
type DefinitionFile struct {
	Id       string
	FileName string
}

// DefinitionRepository keeps process definition documents in {processEnginePath}/process/definitions.
type DefinitionRepository struct {
	dir    string
	logger hclog.Logger
}

func NewDefinitionRepository(processEnginePath string) *DefinitionRepository {
	return &DefinitionRepository{
		dir:    filepath.Join(processEnginePath, "process", "definitions"),
		logger: hclog.Default().Named("definition-repository"),
	}
}

func (r *DefinitionRepository) Dir() string {
	return r.dir
}

// DefinitionIdFromFileName derives the process definition id from a file name.
// A file name containing an underscore only contributes its first character to the id,
// so "7_provisioning.xml" has the id "7".
func DefinitionIdFromFileName(fileName string) string {
	id := strings.TrimSuffix(filepath.Base(fileName), definitionFileExtension)
	if strings.Contains(id, "_") {
		r, _ := utf8.DecodeRuneInString(id)
		return string(r)
	}
	return id
}

// Scan lists the definition documents ordered by file name. A missing directory holds no definitions.
func (r *DefinitionRepository) Scan(ctx context.Context) ([]DefinitionFile, error) {
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return []DefinitionFile{}, nil
		}
		return nil, fmt.Errorf("failed to read process definition directory %s: %w", r.dir, err)
	}
	files := make([]DefinitionFile, 0, len(entries))
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), definitionFileExtension) {
			continue
		}
		files = append(files, DefinitionFile{
			Id:       DefinitionIdFromFileName(e.Name()),
			FileName: e.Name(),
		})
	}
	sort.Slice(files, func(i, j int) bool {
		return files[i].FileName < files[j].FileName
	})
	return files, nil
}

// find returns the files mapping to the id, the last one is the effective definition.
func (r *DefinitionRepository) find(ctx context.Context, id string) ([]DefinitionFile, error) {
	files, err := r.Scan(ctx)
	if err != nil {
		return nil, err
	}
	var res []DefinitionFile
	for _, f := range files {
		if f.Id == id {
			res = append(res, f)
		}
	}
	return res, nil
}

// Read returns the document of the definition, ErrProcessDefinitionNotFound when there is none.
func (r *DefinitionRepository) Read(ctx context.Context, id string) ([]byte, error) {
	files, err := r.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(files) == 0 {
		return nil, fmt.Errorf("no file for process definition %s: %w", id, ErrProcessDefinitionNotFound)
	}
	if len(files) > 1 {
		r.logger.Warn("several files map to one process definition id, using the last one", "id", id, "files", files)
	}
	path := filepath.Join(r.dir, files[len(files)-1].FileName)
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read process definition %s: %w", path, err)
	}
	return data, nil
}

// Write stores the document as {id}.xml replacing any previous version.
func (r *DefinitionRepository) Write(ctx context.Context, id string, data []byte) error {
	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("failed to create process definition directory %s: %w", r.dir, err)
	}
	tmp, err := os.CreateTemp(r.dir, "."+id+"-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to write process definition %s: %w", id, err)
	}
	defer os.Remove(tmp.Name())
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("failed to write process definition %s: %w", id, err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("failed to write process definition %s: %w", id, err)
	}
	path := filepath.Join(r.dir, id+definitionFileExtension)
	if err := os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("failed to write process definition %s: %w", path, err)
	}
	r.logger.Debug("wrote process definition", "id", id, "path", path)
	return nil
}

// Delete removes every file mapping to the id.
func (r *DefinitionRepository) Delete(ctx context.Context, id string) error {
	files, err := r.find(ctx, id)
	if err != nil {
		return err
	}
	if len(files) == 0 {
		return fmt.Errorf("no file for process definition %s: %w", id, ErrProcessDefinitionNotFound)
	}
	for _, f := range files {
		if err := os.Remove(filepath.Join(r.dir, f.FileName)); err != nil {
			return fmt.Errorf("failed to delete process definition %s: %w", f.FileName, err)
		}
	}
	return nil
}
