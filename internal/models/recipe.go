// Package models defines the recipe records on both sides of the conversion.
package models

// SourceRecipeHeader is derived from a source entry name "<ordinal>-<title>.melarecipe".
type SourceRecipeHeader struct {
	Ordinal int
	Title   string
}

// SourceRecipe is one Mela recipe document.
type SourceRecipe struct {
	ID           string   `json:"id"`
	Categories   []string `json:"categories"`
	Nutrition    string   `json:"nutrition"`
	Favorite     bool     `json:"favorite"`
	Yield        string   `json:"yield"`
	CookTime     string   `json:"cookTime"`
	PrepTime     string   `json:"prepTime"`
	TotalTime    string   `json:"totalTime"`
	Link         string   `json:"link"`
	Title        string   `json:"title"`
	Notes        string   `json:"notes"`
	Date         float64  `json:"date"` // seconds since 2001-01-01T00:00:00Z
	Ingredients  string   `json:"ingredients"`
	Instructions string   `json:"instructions"`
	Text         string   `json:"text"`
	Images       []string `json:"images"` // base64
	WantToCook   bool     `json:"wantToCook"`
}

// TargetRecipe is one Paprika recipe document. Every key is always present;
// nullable fields are pointers so they encode as JSON null.
type TargetRecipe struct {
	UID             string   `json:"uid"`
	Difficulty      string   `json:"difficulty"`
	Servings        string   `json:"servings"`
	Description     string   `json:"description"`
	Hash            string   `json:"hash"`
	PhotoData       *string  `json:"photo_data"`
	PhotoLarge      *string  `json:"photo_large"`
	Notes           string   `json:"notes"`
	Photo           *string  `json:"photo"`
	CookTime        string   `json:"cook_time"`
	ImageURL        string   `json:"image_url"`
	Photos          []Photo  `json:"photos"`
	Name            string   `json:"name"`
	TotalTime       string   `json:"total_time"`
	Categories      []string `json:"categories"`
	NutritionalInfo string   `json:"nutritional_info"`
	Directions      string   `json:"directions"`
	Created         string   `json:"created"` // "2006-01-02 15:04:05", local time
	SourceURL       string   `json:"source_url"`
	Rating          int      `json:"rating"`
	Source          *string  `json:"source"`
	Ingredients     string   `json:"ingredients"`
	PrepTime        string   `json:"prep_time"`
	PhotoHash       *string  `json:"photo_hash"`
}

// Photo is an additional image attached to a TargetRecipe.
type Photo struct {
	Name     string `json:"name"`
	Data     string `json:"data"`
	Filename string `json:"filename"`
	Hash     string `json:"hash"`
}
