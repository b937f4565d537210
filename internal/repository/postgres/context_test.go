package postgres

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNewContextRepository(t *testing.T) {
	db := &Connection{}
	repo := NewContextRepository(db)

	assert.NotNil(t, repo)
	assert.Equal(t, db, repo.db)
}
