package markup

import (
	"bytes"
	"errors"
	"net/http"

	"github.com/pthm/cmpkit"
)

// PropsFunc extracts the props of a component from a request.
type PropsFunc func(r *http.Request) (cmpkit.Record, error)

// QueryProps reads props from the query string. Repeated keys keep the
// first value.
func QueryProps(r *http.Request) (cmpkit.Record, error) {
	props := cmpkit.Record{}
	for k, vs := range r.URL.Query() {
		if k == "state" || len(vs) == 0 {
			continue
		}
		props[k] = vs[0]
	}
	return props, nil
}

// Handler serves a component. A state query parameter hydrates the fields
// from a snapshot. Each request renders a fresh instance that is destroyed
// once written.
func (e *Engine) Handler(id string, props PropsFunc) http.Handler {
	if props == nil {
		props = QueryProps
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, err := props(r)
		if err != nil {
			http.Error(w, "Bad request", http.StatusBadRequest)
			return
		}

		var (
			buf bytes.Buffer
			v   *View
		)
		if state := r.URL.Query().Get("state"); state != "" {
			v, err = e.Hydrate(r.Context(), id, p, state, &buf)
		} else {
			v, err = e.Mount(r.Context(), id, p, &buf)
		}
		if v != nil {
			defer func() {
				if derr := v.Destroy(r.Context()); derr != nil {
					e.log.Error(derr, "destroy view", "component", id)
				}
			}()
		}
		if err != nil {
			e.log.Error(err, "render component", "component", id)
			switch {
			case cmpkit.IsNotFound(err):
				http.Error(w, "Not found", http.StatusNotFound)
			case cmpkit.IsDecryptionError(err), cmpkit.IsInvalidProp(err), errors.Is(err, cmpkit.ErrInvalidFormat):
				http.Error(w, "Bad request", http.StatusBadRequest)
			default:
				http.Error(w, "Internal error", http.StatusInternalServerError)
			}
			return
		}

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write(buf.Bytes())
	})
}
