package memory

import (
	"sort"
	"time"

	"ridehail/internal/utils"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

type sortKey struct {
	id      primitive.ObjectID
	created time.Time
	updated time.Time
	str     map[string]string
	num     map[string]float64
}

// sortPage orders keys the way the mongodb repositories sort a page and
// returns the indexes of the requested window.
func sortPage(keys []sortKey, params *utils.PaginationParams) []int {
	idx := make([]int, len(keys))
	for i := range idx {
		idx[i] = i
	}

	less := func(a, b sortKey) int {
		switch params.Sort {
		case "updated_at":
			return compareTime(a.updated, b.updated)
		case "created_at":
			return compareTime(a.created, b.created)
		}
		if av, ok := a.num[params.Sort]; ok {
			bv := b.num[params.Sort]
			switch {
			case av < bv:
				return -1
			case av > bv:
				return 1
			}
			return 0
		}
		as, bs := a.str[params.Sort], b.str[params.Sort]
		switch {
		case as < bs:
			return -1
		case as > bs:
			return 1
		}
		return 0
	}

	sort.SliceStable(idx, func(i, j int) bool {
		a, b := keys[idx[i]], keys[idx[j]]
		c := less(a, b)
		if c == 0 {
			c = compareID(a.id, b.id)
		}
		if params.Order == "asc" {
			return c < 0
		}
		return c > 0
	})

	start, end := params.Window(len(idx))
	return idx[start:end]
}

func compareTime(a, b time.Time) int {
	switch {
	case a.Before(b):
		return -1
	case a.After(b):
		return 1
	}
	return 0
}

func compareID(a, b primitive.ObjectID) int {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}
