// Package mapper turns a Mela recipe into a Paprika recipe.
package mapper

import (
	"encoding/base64"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/starford/melaconv/internal/checksum"
	"github.com/starford/melaconv/internal/models"
)

const favoriteRating = 5

// UIDFunc produces the uid of each mapped recipe.
type UIDFunc func() string

// NewUID returns a random upper-case UUID.
func NewUID() string {
	return strings.ToUpper(uuid.NewString())
}

// Mapper maps source records to target records.
type Mapper struct {
	uid UIDFunc
	loc *time.Location
}

// Option configures a Mapper.
type Option func(*Mapper)

// WithUID replaces the uid generator.
func WithUID(fn UIDFunc) Option {
	return func(m *Mapper) {
		m.uid = fn
	}
}

// WithLocation sets the zone used to format the created timestamp.
func WithLocation(loc *time.Location) Option {
	return func(m *Mapper) {
		m.loc = loc
	}
}

// New creates a Mapper using random UUIDs and the local time zone by default.
func New(opts ...Option) *Mapper {
	m := &Mapper{uid: NewUID, loc: time.Local}
	for _, opt := range opts {
		opt(m)
	}
	if m.uid == nil {
		m.uid = NewUID
	}
	if m.loc == nil {
		m.loc = time.Local
	}
	return m
}

// Map builds the target record for rec. Apart from uid the result depends
// only on its inputs. The only failure is a first image that is not base64.
func (m *Mapper) Map(_ models.SourceRecipeHeader, rec models.SourceRecipe) (models.TargetRecipe, error) {
	out := models.TargetRecipe{
		UID:             m.uid(),
		Difficulty:      "",
		Servings:        rec.Yield,
		Description:     rec.Text,
		Hash:            checksum.Sum([]byte(rec.ID)),
		Notes:           rec.Notes,
		CookTime:        rec.CookTime,
		ImageURL:        "",
		Photos:          []models.Photo{},
		Name:            rec.Title,
		TotalTime:       rec.TotalTime,
		Categories:      nonNilSlice(slices.Clone(rec.Categories)),
		NutritionalInfo: rec.Nutrition,
		Directions:      rec.Instructions,
		Created:         CreatedAt(rec.Date, m.loc),
		SourceURL:       rec.Link,
		Rating:          rating(rec.Favorite),
		Ingredients:     rec.Ingredients,
		PrepTime:        rec.PrepTime,
	}

	if host, ok := SourceHost(rec.Link); ok {
		out.Source = &host
	}

	if len(rec.Images) > 0 {
		data := rec.Images[0]
		raw, err := base64.StdEncoding.DecodeString(data)
		if err != nil {
			return models.TargetRecipe{}, fmt.Errorf("mapper: decode first image: %w", err)
		}
		sum := checksum.Sum(raw)
		out.PhotoData = &data
		out.PhotoHash = &sum
	}

	return out, nil
}

func rating(favorite bool) int {
	if favorite {
		return favoriteRating
	}
	return 0
}

func nonNilSlice[T any](s []T) []T {
	if s == nil {
		return []T{}
	}
	return s
}
