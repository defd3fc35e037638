package process

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_definition_id_from_file_name(t *testing.T) {
	assert.Equal(t, "provisioning", DefinitionIdFromFileName("provisioning.xml"))
	assert.Equal(t, "7", DefinitionIdFromFileName("7_provisioning.xml"))
	assert.Equal(t, "a", DefinitionIdFromFileName("/tmp/defs/ab_cd.xml"))
	assert.Equal(t, "12", DefinitionIdFromFileName("12.xml"))
	assert.Equal(t, "é", DefinitionIdFromFileName("étude_fibre.xml"))
	assert.Equal(t, "光", DefinitionIdFromFileName("光_ファイバー.xml"))
}

func Test_repository_scan_of_missing_directory_is_empty(t *testing.T) {
	repository := NewDefinitionRepository(filepath.Join(t.TempDir(), "missing"))

	files, err := repository.Scan(t.Context())

	assert.NoError(t, err)
	assert.Empty(t, files)
}

func Test_repository_write_read_delete(t *testing.T) {
	// given
	repository := NewDefinitionRepository(t.TempDir())
	data := []byte("<processDefinition/>")

	// when
	err := repository.Write(t.Context(), "orders", data)
	require.NoError(t, err)

	// then
	files, err := repository.Scan(t.Context())
	assert.NoError(t, err)
	assert.Equal(t, []DefinitionFile{{Id: "orders", FileName: "orders.xml"}}, files)

	read, err := repository.Read(t.Context(), "orders")
	assert.NoError(t, err)
	assert.Equal(t, data, read)

	assert.NoError(t, repository.Delete(t.Context(), "orders"))
	_, err = repository.Read(t.Context(), "orders")
	assert.ErrorIs(t, err, ErrProcessDefinitionNotFound)
	assert.ErrorIs(t, repository.Delete(t.Context(), "orders"), ErrProcessDefinitionNotFound)
}

func Test_repository_resolves_underscore_file_names(t *testing.T) {
	// given
	repository := NewDefinitionRepository(t.TempDir())
	require.NoError(t, os.MkdirAll(repository.Dir(), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(repository.Dir(), "3_first.xml"), []byte("first"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(repository.Dir(), "3_second.xml"), []byte("second"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(repository.Dir(), "notes.txt"), []byte("ignored"), 0o644))

	// when
	files, err := repository.Scan(t.Context())
	require.NoError(t, err)
	data, err := repository.Read(t.Context(), "3")

	// then
	assert.Len(t, files, 2)
	assert.NoError(t, err)
	assert.Equal(t, []byte("second"), data)
}
