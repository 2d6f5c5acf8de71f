package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/zoff-tech/queue-admin/pkg/store"
)

// errBadRequest marks input the handler rejects before calling the service.
var errBadRequest = errors.New("bad request")

func badRequest(format string, args ...any) error {
	return fmt.Errorf("%w: %s", errBadRequest, fmt.Sprintf(format, args...))
}

// dateLayouts are tried in order for startDate and endDate.
var dateLayouts = []string{time.RFC3339Nano, "2006-01-02T15:04:05", "2006-01-02"}

func parseDate(q url.Values, name string) (*time.Time, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return nil, nil
	}
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, raw); err == nil {
			return &t, nil
		}
	}
	return nil, badRequest("%s must be an RFC 3339 timestamp or a YYYY-MM-DD date", name)
}

func parseInt(q url.Values, name string, fallback int) (int, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return fallback, nil
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, badRequest("%s must be an integer", name)
	}
	return v, nil
}

func parseBool(q url.Values, name string) (bool, error) {
	raw := strings.TrimSpace(q.Get(name))
	if raw == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false, badRequest("%s must be true or false", name)
	}
	return v, nil
}

// pageRequest reads page and pageSize. Out-of-range values are left for the store to clamp.
func (s *Server) pageRequest(q url.Values) (store.PageRequest, error) {
	page, err := parseInt(q, "page", 1)
	if err != nil {
		return store.PageRequest{}, err
	}
	size, err := parseInt(q, "pageSize", s.dashboard.DefaultPageSize)
	if err != nil {
		return store.PageRequest{}, err
	}
	return store.PageRequest{Page: page, PageSize: size}, nil
}

func pathUUID(r *http.Request) (uuid.UUID, error) {
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		return uuid.Nil, badRequest("id must be a UUID")
	}
	return id, nil
}

// envelopeKey reads the composite key from the {id} path segment and the receivedAt query parameter.
func envelopeKey(r *http.Request) (store.EnvelopeKey, error) {
	id, err := pathUUID(r)
	if err != nil {
		return store.EnvelopeKey{}, err
	}
	receivedAt := r.URL.Query().Get("receivedAt")
	if strings.TrimSpace(receivedAt) == "" {
		return store.EnvelopeKey{}, badRequest("receivedAt is required")
	}
	return store.EnvelopeKey{ID: id, ReceivedAt: receivedAt}, nil
}

// assignmentID reads a node assignment id. Ids are URIs, so the path segment may be escaped
// or may span several segments. chi routes on RawPath when the request carries one, and only
// then is the captured id still escaped.
func assignmentID(r *http.Request) (string, error) {
	id := chi.URLParam(r, "*")
	if r.URL.RawPath != "" {
		unescaped, err := url.PathUnescape(id)
		if err != nil {
			return "", badRequest("node assignment id is not a valid escaped path")
		}
		id = unescaped
	}
	if strings.TrimSpace(id) == "" {
		return "", badRequest("node assignment id is required")
	}
	return id, nil
}

func deadLetterFilter(q url.Values) (store.DeadLetterFilter, error) {
	start, err := parseDate(q, "startDate")
	if err != nil {
		return store.DeadLetterFilter{}, err
	}
	end, err := parseDate(q, "endDate")
	if err != nil {
		return store.DeadLetterFilter{}, err
	}
	return store.DeadLetterFilter{
		MessageType:   q.Get("messageType"),
		ExceptionType: q.Get("exceptionType"),
		BodySearch:    q.Get("bodySearch"),
		StartDate:     start,
		EndDate:       end,
	}, nil
}

func envelopeFilter(q url.Values) (store.EnvelopeFilter, error) {
	start, err := parseDate(q, "startDate")
	if err != nil {
		return store.EnvelopeFilter{}, err
	}
	end, err := parseDate(q, "endDate")
	if err != nil {
		return store.EnvelopeFilter{}, err
	}
	return store.EnvelopeFilter{
		MessageType: q.Get("messageType"),
		Status:      q.Get("status"),
		BodySearch:  q.Get("bodySearch"),
		StartDate:   start,
		EndDate:     end,
	}, nil
}
