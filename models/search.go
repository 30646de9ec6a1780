package models

import "strconv"

// SearchResult is one hit from /search/{movie,tv,collection} or /find.
// Movies carry Title and ReleaseDate, series and collections Name and
// FirstAirDate.
type SearchResult struct {
	ID            int     `json:"id"`
	Title         string  `json:"title,omitempty"`
	Name          string  `json:"name,omitempty"`
	OriginalTitle string  `json:"original_title,omitempty"`
	OriginalName  string  `json:"original_name,omitempty"`
	Overview      string  `json:"overview,omitempty"`
	ReleaseDate   string  `json:"release_date,omitempty"`
	FirstAirDate  string  `json:"first_air_date,omitempty"`
	PosterPath    string  `json:"poster_path,omitempty"`
	BackdropPath  string  `json:"backdrop_path,omitempty"`
	Adult         bool    `json:"adult,omitempty"`
	Popularity    float64 `json:"popularity,omitempty"`
	VoteAverage   float64 `json:"vote_average,omitempty"`
	VoteCount     int     `json:"vote_count,omitempty"`
}

// DisplayName returns the first non-empty of title, name, original title and
// original name.
func (r SearchResult) DisplayName() string {
	for _, v := range []string{r.Title, r.Name, r.OriginalTitle, r.OriginalName} {
		if v != "" {
			return v
		}
	}
	return ""
}

// Year returns the release or first air year, or 0 when TMDB has no date.
func (r SearchResult) Year() int {
	date := r.ReleaseDate
	if date == "" {
		date = r.FirstAirDate
	}
	if len(date) < 4 {
		return 0
	}
	y, err := strconv.Atoi(date[:4])
	if err != nil {
		return 0
	}
	return y
}

// SearchResults is one page of a /search response.
type SearchResults struct {
	Page         int            `json:"page"`
	Results      []SearchResult `json:"results"`
	TotalPages   int            `json:"total_pages"`
	TotalResults int            `json:"total_results"`
}

// FindResults is the /find/{external_id} document.
type FindResults struct {
	MovieResults  []SearchResult `json:"movie_results"`
	TVResults     []SearchResult `json:"tv_results"`
	PersonResults []SearchResult `json:"person_results"`
}

// Empty reports whether the lookup matched nothing.
func (f *FindResults) Empty() bool {
	return f == nil || len(f.MovieResults)+len(f.TVResults)+len(f.PersonResults) == 0
}
