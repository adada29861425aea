package server

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	ie "github.com/voidshard/galleryimport/pkg/errors"
	"github.com/voidshard/galleryimport/pkg/structs"
)

var (
	errmap map[int][]error = map[int][]error{
		http.StatusBadRequest: []error{
			ie.ErrMaxExceeded,
			ie.ErrInvalidState,
			ie.ErrInvalidArg,
			ie.ErrNotSupported,
			ie.ErrSourceMissing,
			ie.ErrSourceNoRead,
			ie.ErrSourceBadJSON,
		},
		http.StatusNotFound: []error{
			ie.ErrNotFound,
		},
		http.StatusForbidden: []error{
			ie.ErrForbidden,
		},
	}
)

// mapError returns the http status code for a given error, or
// http.StatusInternalServerError if the error is not recognised.
func mapError(err error) int {
	if err == nil {
		return http.StatusOK
	}
	for code, errs := range errmap {
		for _, e := range errs {
			if errors.Is(err, e) {
				return code
			}
		}
	}
	return http.StatusInternalServerError
}

func unmarshalQuery(w http.ResponseWriter, r *http.Request, out *structs.Query) error {
	q := r.URL.Query()

	if q.Has("limit") {
		limit, err := strconv.Atoi(q.Get("limit"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return fmt.Errorf("bad limit: %v", err)
		}
		out.Limit = limit
	}

	if q.Has("offset") {
		offset, err := strconv.Atoi(q.Get("offset"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return fmt.Errorf("bad offset: %v", err)
		}
		out.Offset = offset
	}

	if q.Has("kinds") {
		out.Kinds = []string{}
		for _, k := range q["kinds"] {
			if k != structs.KindImport && k != structs.KindDelete {
				http.Error(w, "bad kind", http.StatusBadRequest)
				return fmt.Errorf("bad kind: %v", k)
			}
			out.Kinds = append(out.Kinds, k)
		}
	}
	if q.Has("statuses") {
		out.Statuses = []structs.Status{}
		for _, s := range q["statuses"] {
			st := structs.ToStatus(s)
			if st == "" {
				http.Error(w, "bad status", http.StatusBadRequest)
				return fmt.Errorf("bad status: %v", s)
			}
			out.Statuses = append(out.Statuses, st)
		}
	}
	out.Owner = q.Get("owner")

	out.Sanitize()
	return nil
}

// writeJson encodes obj as the response body.
func writeJson(w http.ResponseWriter, code int, obj interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(obj)
}
