package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"gatepass/internal/core/entity"
	"gatepass/internal/core/id"
)

type mockCatalog struct {
	entity.BaseCatalog
	Code    string `db:"code" json:"code"`
	Name    string `db:"name" json:"name"`
	Ignored string `db:"-"`
	NoTag   string
}

func TestExtractDBColumns(t *testing.T) {
	cols := ExtractDBColumns[mockCatalog]()

	for _, expected := range []string{"id", "version", "code", "name"} {
		assert.Contains(t, cols, expected)
	}
	assert.NotContains(t, cols, "-")
	assert.Len(t, cols, 4)
}

func TestStructToMap(t *testing.T) {
	cat := mockCatalog{
		BaseCatalog: entity.BaseCatalog{
			BaseEntity: entity.BaseEntity{
				ID:      id.New(),
				Version: 5,
			},
		},
		Code:    "P00001",
		Name:    "Test Name",
		Ignored: "skip me",
		NoTag:   "skip me too",
	}

	m := StructToMap(cat)

	assert.Equal(t, cat.ID, m["id"])
	assert.Equal(t, 5, m["version"])
	assert.Equal(t, "P00001", m["code"])
	assert.Equal(t, "Test Name", m["name"])
	assert.Len(t, m, 4)
}

func TestStructToMapPointer(t *testing.T) {
	cat := &mockCatalog{Code: "P00002", Name: "Pointer"}

	m := StructToMap(cat)
	assert.Equal(t, "P00002", m["code"])
}
