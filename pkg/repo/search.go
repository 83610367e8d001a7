/*
   Aphid - Apple parallel port hard drive emulator
   Copyright (c) 2022, The Aphid Authors

   This file is part of Aphid.

   Aphid is free software: you can redistribute it and/or modify
   it under the terms of the GNU General Public License as published by
   the Free Software Foundation, either version 3 of the License, or
   (at your option) any later version.

   Aphid is distributed in the hope that it will be useful,
   but WITHOUT ANY WARRANTY; without even the implied warranty of
   MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
   GNU General Public License for more details.

   You should have received a copy of the GNU General Public License
   along with Aphid. If not, see <http://www.gnu.org/licenses/>.
*/

package repo

import (
	"fmt"
	"strings"

	"github.com/blevesearch/bleve/v2"
	log "github.com/sirupsen/logrus"
)

// DefaultMaxHits limits search results when no limit is given.
const DefaultMaxHits = 100

// Hit is an image found by a search. Path is relative to the repository,
// and can be used in a repository reference.
type Hit struct {
	Path  string  `json:"path"`
	Score float64 `json:"score"`
}

//
type SearchResult struct {
	Hits     []Hit  `json:"hits"`
	Total    uint64 `json:"total"`
	Complete bool   `json:"complete"`
}

/*
	Search looks up images whose names match term, using bleve's query string
	syntax. At most max hits are returned, best match first. If there were
	more, the result is marked incomplete.
*/
func (i *Index) Search(term string, max int) (*SearchResult, error) {

	if i.index == nil {
		return nil, fmt.Errorf("index not open")
	}

	term = strings.TrimSpace(term)
	if term == "" {
		return nil, fmt.Errorf("no search term")
	}
	if max <= 0 {
		max = DefaultMaxHits
	}

	log.WithFields(log.Fields{"term": term, "max": max}).Debug("SEARCH")

	query := bleve.NewQueryStringQuery(term)
	search := bleve.NewSearchRequestOptions(query, max+1, 0, false)
	res, err := i.index.Search(search)
	if err != nil {
		return nil, err
	}

	ret := &SearchResult{
		Hits:     make([]Hit, 0, len(res.Hits)),
		Total:    res.Total,
		Complete: len(res.Hits) <= max,
	}

	for _, h := range res.Hits {
		if len(ret.Hits) == max {
			break
		}
		ret.Hits = append(ret.Hits, Hit{Path: h.ID, Score: h.Score})
	}

	return ret, nil
}

// String renders the result as one hit per line, followed by the total.
func (r *SearchResult) String() string {
	var sb strings.Builder
	for _, h := range r.Hits {
		sb.WriteString(RepoScheme + h.Path + "\n")
	}
	sb.WriteString(fmt.Sprintf("\ntotal hits: %d", r.Total))
	if !r.Complete {
		sb.WriteString(fmt.Sprintf(", showing first %d", len(r.Hits)))
	}
	sb.WriteString("\n")
	return sb.String()
}
