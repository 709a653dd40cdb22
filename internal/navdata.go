package internal

import (
	"errors"
	"net/http"
	"strings"

	"flk-api/internal/nav"

	"github.com/sirupsen/logrus"
)

// GET /api/nav-data and /api/nav-data-noseri
func (s *Server) navData(entitySet, defaultField string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		field := strings.TrimSpace(q.Get("field"))
		if field == "" {
			field = defaultField
		}
		value := strings.TrimSpace(q.Get("value"))
		if value == "" {
			writeError(w, http.StatusBadRequest, "value is required")
			return
		}

		records, err := s.NAV.Lookup(r.Context(), entitySet, field, value)
		if err != nil {
			var navErr *nav.Error
			if !errors.As(err, &navErr) {
				navErr = &nav.Error{Status: http.StatusBadGateway, Message: "NAV request failed", Details: err.Error()}
			}
			s.logger(r).WithError(err).WithFields(logrus.Fields{
				"entity_set": entitySet,
				"field":      field,
			}).Warn("nav lookup failed")
			writeJSON(w, navErr.Status, navErr)
			return
		}

		writeJSON(w, http.StatusOK, records)
	}
}
