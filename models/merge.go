package models

// Incomplete and FillMissing drive the language fallback pass: a document
// fetched in the preferred language is incomplete when its descriptive text or
// trailers are missing, and FillMissing copies only the empty fields from the
// same document fetched in the fallback language.

func fill(dst *string, src string) {
	if *dst == "" {
		*dst = src
	}
}

func (t *Trailers) empty() bool { return t == nil || len(t.YouTube) == 0 }

func (v *Videos) empty() bool { return v == nil || len(v.Results) == 0 }

func (m *Movie) Incomplete() bool {
	return m.Title == "" || m.Overview == "" || m.Trailers.empty()
}

func (m *Movie) FillMissing(from *Movie) {
	if from == nil {
		return
	}
	fill(&m.Title, from.Title)
	fill(&m.Overview, from.Overview)
	fill(&m.Tagline, from.Tagline)
	if m.Trailers.empty() {
		m.Trailers = from.Trailers
	}
}

func (s *Series) Incomplete() bool {
	return s.Name == "" || s.Overview == "" || s.Videos.empty()
}

func (s *Series) FillMissing(from *Series) {
	if from == nil {
		return
	}
	fill(&s.Name, from.Name)
	fill(&s.Overview, from.Overview)
	fill(&s.Tagline, from.Tagline)
	if s.Videos.empty() {
		s.Videos = from.Videos
	}
}

func (s *Season) Incomplete() bool {
	return s.Name == "" || s.Overview == ""
}

// FillMissing also repairs episode names and overviews, matched by number.
func (s *Season) FillMissing(from *Season) {
	if from == nil {
		return
	}
	fill(&s.Name, from.Name)
	fill(&s.Overview, from.Overview)
	if s.Videos.empty() {
		s.Videos = from.Videos
	}
	byNumber := make(map[int]*Episode, len(from.Episodes))
	for i := range from.Episodes {
		byNumber[from.Episodes[i].EpisodeNumber] = &from.Episodes[i]
	}
	for i := range s.Episodes {
		if fb, ok := byNumber[s.Episodes[i].EpisodeNumber]; ok {
			fill(&s.Episodes[i].Name, fb.Name)
			fill(&s.Episodes[i].Overview, fb.Overview)
		}
	}
}

func (e *Episode) Incomplete() bool {
	return e.Name == "" || e.Overview == ""
}

func (e *Episode) FillMissing(from *Episode) {
	if from == nil {
		return
	}
	fill(&e.Name, from.Name)
	fill(&e.Overview, from.Overview)
	if e.Videos.empty() {
		e.Videos = from.Videos
	}
}

func (c *Collection) Incomplete() bool {
	return c.Name == "" || c.Overview == ""
}

func (c *Collection) FillMissing(from *Collection) {
	if from == nil {
		return
	}
	fill(&c.Name, from.Name)
	fill(&c.Overview, from.Overview)
}

func (p *Person) Incomplete() bool {
	return p.Name == "" || p.Biography == ""
}

func (p *Person) FillMissing(from *Person) {
	if from == nil {
		return
	}
	fill(&p.Name, from.Name)
	fill(&p.Biography, from.Biography)
}
