package entity

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestPageParamsNormalize(t *testing.T) {
	p := PageParams{}
	p.Normalize(MaxPageSize)
	assert.Equal(t, PageParams{Page: 1, PageSize: DefaultPageSize}, p)
	assert.Equal(t, 0, p.Offset())

	p = PageParams{Page: 3, PageSize: 500}
	p.Normalize(MaxPageSize)
	assert.Equal(t, MaxPageSize, p.PageSize)
	assert.Equal(t, 200, p.Offset())

	p = PageParams{Page: 1, PageSize: 500}
	p.Normalize(0)
	assert.Equal(t, 500, p.PageSize)
}

func TestNewMeta(t *testing.T) {
	assert.Equal(t, 3, NewMeta(PageParams{Page: 1, PageSize: 20}, 41).TotalPages)
	assert.Equal(t, 0, NewMeta(PageParams{Page: 1, PageSize: 20}, 0).TotalPages)
}
