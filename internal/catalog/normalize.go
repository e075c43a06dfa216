package catalog

// Normalize makes every episode of s share one episode type. A uniform list
// sets s.Type to that type; a mixed list is filtered down to active episodes
// of s.Type numbered within NumberOfEpisodes (when it is known). It reports
// whether any episode survived.
func Normalize(s *Series) bool {
	if s == nil || len(s.Episodes) == 0 {
		return false
	}

	first := s.Episodes[0].EpisodeType
	uniform := true
	for _, e := range s.Episodes[1:] {
		if e.EpisodeType != first {
			uniform = false
			break
		}
	}
	if uniform {
		s.Type = first
		return true
	}

	kept := make([]*Episode, 0, len(s.Episodes))
	for _, e := range s.Episodes {
		if !e.IsActive || e.EpisodeType != s.Type {
			continue
		}
		if s.NumberOfEpisodes > 0 {
			n, ok := e.Number()
			if !ok || n > float64(s.NumberOfEpisodes) {
				continue
			}
		}
		kept = append(kept, e)
	}
	s.Episodes = kept
	return len(kept) > 0
}
