package metadata

// document is implemented by the pointer types of every cached TMDB entity.
type document[T any] interface {
	*T
	Incomplete() bool
	FillMissing(from *T)
}
