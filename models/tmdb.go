package models

// TMDB documents as returned by api.themoviedb.org/3 with the
// append_to_response blocks the metadata service requests. The same shapes
// are written to the disk cache.

type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type Keyword struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type Keywords struct {
	Keywords []Keyword `json:"keywords,omitempty"`
	// Series use "results" instead of "keywords".
	Results []Keyword `json:"results,omitempty"`
}

type ImageInfo struct {
	AspectRatio float64 `json:"aspect_ratio"`
	FilePath    string  `json:"file_path"`
	Height      int     `json:"height"`
	Width       int     `json:"width"`
	Language    string  `json:"iso_639_1,omitempty"`
	VoteAverage float64 `json:"vote_average"`
	VoteCount   int     `json:"vote_count"`
}

type Images struct {
	Backdrops []ImageInfo `json:"backdrops,omitempty"`
	Posters   []ImageInfo `json:"posters,omitempty"`
	Logos     []ImageInfo `json:"logos,omitempty"`
	Stills    []ImageInfo `json:"stills,omitempty"`
	Profiles  []ImageInfo `json:"profiles,omitempty"`
}

type CastMember struct {
	ID          int     `json:"id"`
	Name        string  `json:"name"`
	Character   string  `json:"character,omitempty"`
	CreditID    string  `json:"credit_id,omitempty"`
	Order       int     `json:"order"`
	ProfilePath string  `json:"profile_path,omitempty"`
	Popularity  float64 `json:"popularity,omitempty"`
}

type CrewMember struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Department  string `json:"department,omitempty"`
	Job         string `json:"job,omitempty"`
	CreditID    string `json:"credit_id,omitempty"`
	ProfilePath string `json:"profile_path,omitempty"`
}

type Credits struct {
	Cast []CastMember `json:"cast,omitempty"`
	Crew []CrewMember `json:"crew,omitempty"`
}

type Video struct {
	ID       string `json:"id,omitempty"`
	Language string `json:"iso_639_1,omitempty"`
	Country  string `json:"iso_3166_1,omitempty"`
	Key      string `json:"key"`
	Name     string `json:"name"`
	Site     string `json:"site"`
	Size     int    `json:"size,omitempty"`
	Type     string `json:"type,omitempty"`
}

type Videos struct {
	Results []Video `json:"results,omitempty"`
}

// Trailer is the movie "trailers" block (YouTube sources only).
type Trailer struct {
	Name   string `json:"name"`
	Size   string `json:"size,omitempty"`
	Source string `json:"source"`
	Type   string `json:"type,omitempty"`
}

type Trailers struct {
	YouTube []Trailer `json:"youtube,omitempty"`
}

type ExternalIDs struct {
	IMDBID   string `json:"imdb_id,omitempty"`
	TVDBID   int    `json:"tvdb_id,omitempty"`
	TVRageID int    `json:"tvrage_id,omitempty"`
}

type CountryRelease struct {
	Country       string `json:"iso_3166_1"`
	Certification string `json:"certification"`
	ReleaseDate   string `json:"release_date,omitempty"`
}

type Releases struct {
	Countries []CountryRelease `json:"countries,omitempty"`
}

type ContentRating struct {
	Country string `json:"iso_3166_1"`
	Rating  string `json:"rating"`
}

type ContentRatings struct {
	Results []ContentRating `json:"results,omitempty"`
}

type CollectionRef struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	PosterPath   string `json:"poster_path,omitempty"`
	BackdropPath string `json:"backdrop_path,omitempty"`
}

// AlternativeTitle is one entry of the "alternative_titles" block.
type AlternativeTitle struct {
	Country string `json:"iso_3166_1"`
	Title   string `json:"title"`
	Type    string `json:"type,omitempty"`
}

type AlternativeTitles struct {
	Titles []AlternativeTitle `json:"titles,omitempty"`
	// Series use "results" instead of "titles".
	Results []AlternativeTitle `json:"results,omitempty"`
}

type Review struct {
	ID        string `json:"id"`
	Author    string `json:"author"`
	Content   string `json:"content"`
	URL       string `json:"url,omitempty"`
	CreatedAt string `json:"created_at,omitempty"`
	UpdatedAt string `json:"updated_at,omitempty"`
}

type Reviews struct {
	Page         int      `json:"page"`
	Results      []Review `json:"results,omitempty"`
	TotalPages   int      `json:"total_pages"`
	TotalResults int      `json:"total_results"`
}

type Company struct {
	ID            int    `json:"id"`
	Name          string `json:"name"`
	OriginCountry string `json:"origin_country,omitempty"`
}

// Movie is the /movie/{id} document.
type Movie struct {
	ID                  int                `json:"id"`
	IMDBID              string             `json:"imdb_id,omitempty"`
	Title               string             `json:"title"`
	OriginalTitle       string             `json:"original_title,omitempty"`
	OriginalLanguage    string             `json:"original_language,omitempty"`
	Overview            string             `json:"overview"`
	Tagline             string             `json:"tagline,omitempty"`
	ReleaseDate         string             `json:"release_date,omitempty"`
	Runtime             int                `json:"runtime,omitempty"`
	Status              string             `json:"status,omitempty"`
	Homepage            string             `json:"homepage,omitempty"`
	Adult               bool               `json:"adult,omitempty"`
	Budget              int64              `json:"budget,omitempty"`
	Revenue             int64              `json:"revenue,omitempty"`
	Popularity          float64            `json:"popularity,omitempty"`
	VoteAverage         float64            `json:"vote_average,omitempty"`
	VoteCount           int                `json:"vote_count,omitempty"`
	PosterPath          string             `json:"poster_path,omitempty"`
	BackdropPath        string             `json:"backdrop_path,omitempty"`
	Genres              []Genre            `json:"genres,omitempty"`
	ProductionCompanies []Company          `json:"production_companies,omitempty"`
	BelongsToCollection *CollectionRef     `json:"belongs_to_collection,omitempty"`
	AlternativeTitles   *AlternativeTitles `json:"alternative_titles,omitempty"`
	Reviews             *Reviews           `json:"reviews,omitempty"`
	Casts               *Credits           `json:"casts,omitempty"`
	Releases            *Releases          `json:"releases,omitempty"`
	Images              *Images            `json:"images,omitempty"`
	Keywords            *Keywords          `json:"keywords,omitempty"`
	Trailers            *Trailers          `json:"trailers,omitempty"`
}

type Network struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type SeasonSummary struct {
	ID           int    `json:"id"`
	Name         string `json:"name,omitempty"`
	SeasonNumber int    `json:"season_number"`
	EpisodeCount int    `json:"episode_count"`
	AirDate      string `json:"air_date,omitempty"`
	PosterPath   string `json:"poster_path,omitempty"`
}

// Series is the /tv/{id} document.
type Series struct {
	ID                int                `json:"id"`
	Name              string             `json:"name"`
	OriginalName      string             `json:"original_name,omitempty"`
	OriginalLanguage  string             `json:"original_language,omitempty"`
	Overview          string             `json:"overview"`
	Tagline           string             `json:"tagline,omitempty"`
	FirstAirDate      string             `json:"first_air_date,omitempty"`
	LastAirDate       string             `json:"last_air_date,omitempty"`
	Status            string             `json:"status,omitempty"`
	Homepage          string             `json:"homepage,omitempty"`
	InProduction      bool               `json:"in_production,omitempty"`
	NumberOfSeasons   int                `json:"number_of_seasons,omitempty"`
	NumberOfEpisodes  int                `json:"number_of_episodes,omitempty"`
	EpisodeRunTime    []int              `json:"episode_run_time,omitempty"`
	OriginCountry     []string           `json:"origin_country,omitempty"`
	Popularity        float64            `json:"popularity,omitempty"`
	VoteAverage       float64            `json:"vote_average,omitempty"`
	VoteCount         int                `json:"vote_count,omitempty"`
	PosterPath        string             `json:"poster_path,omitempty"`
	BackdropPath      string             `json:"backdrop_path,omitempty"`
	Genres            []Genre            `json:"genres,omitempty"`
	Networks          []Network          `json:"networks,omitempty"`
	Seasons           []SeasonSummary    `json:"seasons,omitempty"`
	AlternativeTitles *AlternativeTitles `json:"alternative_titles,omitempty"`
	Reviews           *Reviews           `json:"reviews,omitempty"`
	Credits           *Credits           `json:"credits,omitempty"`
	Images            *Images            `json:"images,omitempty"`
	Keywords          *Keywords          `json:"keywords,omitempty"`
	ExternalIDs       *ExternalIDs       `json:"external_ids,omitempty"`
	Videos            *Videos            `json:"videos,omitempty"`
	ContentRatings    *ContentRatings    `json:"content_ratings,omitempty"`
}

// Episode is the /tv/{id}/season/{n}/episode/{m} document.
type Episode struct {
	ID             int          `json:"id"`
	Name           string       `json:"name"`
	Overview       string       `json:"overview"`
	AirDate        string       `json:"air_date,omitempty"`
	SeasonNumber   int          `json:"season_number"`
	EpisodeNumber  int          `json:"episode_number"`
	Runtime        int          `json:"runtime,omitempty"`
	StillPath      string       `json:"still_path,omitempty"`
	VoteAverage    float64      `json:"vote_average,omitempty"`
	VoteCount      int          `json:"vote_count,omitempty"`
	ProductionCode string       `json:"production_code,omitempty"`
	GuestStars     []CastMember `json:"guest_stars,omitempty"`
	Crew           []CrewMember `json:"crew,omitempty"`
	Credits        *Credits     `json:"credits,omitempty"`
	Images         *Images      `json:"images,omitempty"`
	ExternalIDs    *ExternalIDs `json:"external_ids,omitempty"`
	Videos         *Videos      `json:"videos,omitempty"`
}

// Season is the /tv/{id}/season/{n} document.
type Season struct {
	ID           int          `json:"id"`
	Name         string       `json:"name"`
	Overview     string       `json:"overview"`
	AirDate      string       `json:"air_date,omitempty"`
	SeasonNumber int          `json:"season_number"`
	PosterPath   string       `json:"poster_path,omitempty"`
	Episodes     []Episode    `json:"episodes,omitempty"`
	Credits      *Credits     `json:"credits,omitempty"`
	Images       *Images      `json:"images,omitempty"`
	Keywords     *Keywords    `json:"keywords,omitempty"`
	ExternalIDs  *ExternalIDs `json:"external_ids,omitempty"`
	Videos       *Videos      `json:"videos,omitempty"`
}

type CollectionPart struct {
	ID           int    `json:"id"`
	Title        string `json:"title"`
	ReleaseDate  string `json:"release_date,omitempty"`
	PosterPath   string `json:"poster_path,omitempty"`
	BackdropPath string `json:"backdrop_path,omitempty"`
}

// Collection is the /collection/{id} document.
type Collection struct {
	ID           int              `json:"id"`
	Name         string           `json:"name"`
	Overview     string           `json:"overview"`
	PosterPath   string           `json:"poster_path,omitempty"`
	BackdropPath string           `json:"backdrop_path,omitempty"`
	Parts        []CollectionPart `json:"parts,omitempty"`
	Images       *Images          `json:"images,omitempty"`
}

// Person is the /person/{id} document.
type Person struct {
	ID                 int          `json:"id"`
	IMDBID             string       `json:"imdb_id,omitempty"`
	Name               string       `json:"name"`
	AlsoKnownAs        []string     `json:"also_known_as,omitempty"`
	Biography          string       `json:"biography"`
	Birthday           string       `json:"birthday,omitempty"`
	Deathday           string       `json:"deathday,omitempty"`
	PlaceOfBirth       string       `json:"place_of_birth,omitempty"`
	Gender             int          `json:"gender,omitempty"`
	Homepage           string       `json:"homepage,omitempty"`
	KnownForDepartment string       `json:"known_for_department,omitempty"`
	Popularity         float64      `json:"popularity,omitempty"`
	ProfilePath        string       `json:"profile_path,omitempty"`
	Images             *Images      `json:"images,omitempty"`
	ExternalIDs        *ExternalIDs `json:"external_ids,omitempty"`
}

// ImageConfiguration is the "images" block of /configuration.
type ImageConfiguration struct {
	BaseURL       string   `json:"base_url"`
	SecureBaseURL string   `json:"secure_base_url"`
	BackdropSizes []string `json:"backdrop_sizes"`
	LogoSizes     []string `json:"logo_sizes"`
	PosterSizes   []string `json:"poster_sizes"`
	ProfileSizes  []string `json:"profile_sizes"`
	StillSizes    []string `json:"still_sizes"`
}

// Configuration is the /configuration document.
type Configuration struct {
	Images     ImageConfiguration `json:"images"`
	ChangeKeys []string           `json:"change_keys,omitempty"`
}
