package pagination

import (
	"strconv"

	"github.com/gin-gonic/gin"
)

const (
	DefaultPage    = 1
	DefaultPerPage = 10
	MaxPerPage     = 100
	MinPerPage     = 1
)

// Params holds validated pagination parameters
type Params struct {
	Page    int
	PerPage int
	Offset  int
}

// Parse extracts and validates page/per_page from query parameters
func Parse(c *gin.Context) Params {
	page, _ := strconv.Atoi(c.DefaultQuery("page", strconv.Itoa(DefaultPage)))
	perPage, _ := strconv.Atoi(c.DefaultQuery("per_page", strconv.Itoa(DefaultPerPage)))
	return Normalize(page, perPage)
}

// Normalize clamps raw page/per_page values into the allowed ranges
func Normalize(page, perPage int) Params {
	if page < 1 {
		page = DefaultPage
	}
	if perPage < MinPerPage {
		perPage = DefaultPerPage
	}
	if perPage > MaxPerPage {
		perPage = MaxPerPage
	}

	return Params{
		Page:    page,
		PerPage: perPage,
		Offset:  (page - 1) * perPage,
	}
}

// Meta describes a page of a larger result set
type Meta struct {
	Total      int64 `json:"total"`
	TotalPages int   `json:"total_pages"`
	Page       int   `json:"page"`
	PerPage    int   `json:"per_page"`
	HasNext    bool  `json:"has_next"`
	HasPrev    bool  `json:"has_prev"`
}

// NewMeta computes page metadata for a total row count
func NewMeta(total int64, p Params) Meta {
	totalPages := int((total + int64(p.PerPage) - 1) / int64(p.PerPage))
	return Meta{
		Total:      total,
		TotalPages: totalPages,
		Page:       p.Page,
		PerPage:    p.PerPage,
		HasNext:    p.Page < totalPages,
		HasPrev:    p.Page > 1,
	}
}
