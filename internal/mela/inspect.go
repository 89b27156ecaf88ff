package mela

// Summary identifies one recipe of a source archive.
type Summary struct {
	Entry   string `json:"entry"`
	Ordinal int    `json:"ordinal"`
	Title   string `json:"title"`
	ID      string `json:"id"`
}

// Summaries reads every entry of r without converting it. It fails on the
// same entries Recipes fails on.
func (r *Reader) Summaries() ([]Summary, error) {
	out := make([]Summary, 0, r.Len())
	for e, err := range r.Recipes() {
		if err != nil {
			return out, err
		}
		out = append(out, Summary{
			Entry:   e.Name,
			Ordinal: e.Header.Ordinal,
			Title:   e.Header.Title,
			ID:      e.Recipe.ID,
		})
	}
	return out, nil
}

// Inspect opens the source archive at path and summarizes its entries.
func Inspect(path string) ([]Summary, error) {
	r, err := Open(path)
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return r.Summaries()
}
