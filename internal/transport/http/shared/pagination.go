package shared

import (
	"net/http"
	"strconv"
)

const (
	DefaultPageSize = 100
	MaxPageSize     = 500

	TotalCountHeader = "X-Total-Count"
)

// Page is the ?limit=&offset= window of a list endpoint.
type Page struct {
	Limit  int
	Offset int
}

func queryInt(r *http.Request, key string, fallback, floor int) int {
	v, err := strconv.Atoi(r.URL.Query().Get(key))
	if err != nil || v < floor {
		return fallback
	}
	return v
}

func PageFrom(r *http.Request) Page {
	return Page{
		Limit:  min(queryInt(r, "limit", DefaultPageSize, 1), MaxPageSize),
		Offset: queryInt(r, "offset", 0, 0),
	}
}

// WriteTotal reports the unpaged row count next to a paged listing.
func WriteTotal(w http.ResponseWriter, total int) {
	w.Header().Set(TotalCountHeader, strconv.Itoa(total))
}
