package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/google/uuid"

	"github.com/zoff-tech/queue-admin/pkg/store"
)

type errorResponse struct {
	Error string `json:"error"`
}

type affectedResponse struct {
	Affected int64 `json:"affected"`
}

// writeError maps err onto a status code. Store failures are logged and reported without detail.
func (s *Server) writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, errBadRequest), errors.Is(err, store.ErrInvalidInput):
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
	default:
		s.logger.Error().Err(err).Str("method", r.Method).Str("path", r.URL.Path).Msg("request failed")
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "internal server error"})
	}
}

func writeNotFound(w http.ResponseWriter, what string) {
	writeJSON(w, http.StatusNotFound, errorResponse{Error: what + " not found"})
}

// writeFound writes v, or a 404 when the lookup matched nothing.
func (s *Server) writeFound(w http.ResponseWriter, r *http.Request, v any, found bool, err error, what string) {
	switch {
	case err != nil:
		s.writeError(w, r, err)
	case !found:
		writeNotFound(w, what)
	default:
		writeJSON(w, http.StatusOK, v)
	}
}

// writeDeleted answers a delete: 204 when a row went away, 404 when nothing matched.
func (s *Server) writeDeleted(w http.ResponseWriter, r *http.Request, affected int64, err error, what string) {
	switch {
	case err != nil:
		s.writeError(w, r, err)
	case affected == 0:
		writeNotFound(w, what)
	default:
		w.WriteHeader(http.StatusNoContent)
	}
}

// Dead letters

func (s *Server) listDeadLetters(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter, err := deadLetterFilter(q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	page, err := s.pageRequest(q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	result, err := s.svc.ListDeadLetters(r.Context(), filter, page)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) getDeadLetter(w http.ResponseWriter, r *http.Request) {
	key, err := envelopeKey(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	d, found, err := s.svc.GetDeadLetter(r.Context(), key)
	s.writeFound(w, r, d, found, err, "dead letter")
}

type replayRequest struct {
	Replayable *bool `json:"replayable"`
}

type replayMultipleRequest struct {
	DeadLetters []store.EnvelopeKey `json:"deadLetters"`
	Replayable  *bool               `json:"replayable"`
}

// replayableOrDefault treats an omitted flag as a request to replay.
func replayableOrDefault(v *bool) bool {
	return v == nil || *v
}

func (s *Server) replayDeadLetter(w http.ResponseWriter, r *http.Request) {
	key, err := envelopeKey(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	// an empty body is allowed and means replayable
	var req replayRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		s.writeError(w, r, badRequest("invalid body: %v", err))
		return
	}
	n, err := s.svc.SetDeadLetterReplayable(r.Context(), key, replayableOrDefault(req.Replayable))
	switch {
	case err != nil:
		s.writeError(w, r, err)
	case n == 0:
		writeNotFound(w, "dead letter")
	default:
		writeJSON(w, http.StatusOK, affectedResponse{Affected: n})
	}
}

func (s *Server) replayDeadLetters(w http.ResponseWriter, r *http.Request) {
	var req replayMultipleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeError(w, r, badRequest("invalid body: %v", err))
		return
	}
	n, err := s.svc.SetDeadLettersReplayable(r.Context(), req.DeadLetters, replayableOrDefault(req.Replayable))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, affectedResponse{Affected: n})
}

func (s *Server) deleteDeadLetter(w http.ResponseWriter, r *http.Request) {
	key, err := envelopeKey(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	n, err := s.svc.DeleteDeadLetter(r.Context(), key)
	s.writeDeleted(w, r, n, err, "dead letter")
}

// Incoming envelopes

func (s *Server) listIncomingEnvelopes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	filter, err := envelopeFilter(q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	page, err := s.pageRequest(q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	result, err := s.svc.ListIncomingEnvelopes(r.Context(), filter, page)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) getIncomingEnvelope(w http.ResponseWriter, r *http.Request) {
	key, err := envelopeKey(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	e, found, err := s.svc.GetIncomingEnvelope(r.Context(), key)
	s.writeFound(w, r, e, found, err, "incoming envelope")
}

func (s *Server) deleteIncomingEnvelope(w http.ResponseWriter, r *http.Request) {
	key, err := envelopeKey(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	n, err := s.svc.DeleteIncomingEnvelope(r.Context(), key)
	s.writeDeleted(w, r, n, err, "incoming envelope")
}

// Nodes

func (s *Server) listNodes(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	activeOnly, err := parseBool(q, "activeOnly")
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	page, err := s.pageRequest(q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	result, err := s.svc.ListNodes(r.Context(), store.NodeFilter{ActiveOnly: activeOnly}, page)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) getNode(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	n, found, err := s.svc.GetNode(r.Context(), id)
	s.writeFound(w, r, n, found, err, "node")
}

func (s *Server) deleteNode(w http.ResponseWriter, r *http.Request) {
	id, err := pathUUID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	n, err := s.svc.DeleteNode(r.Context(), id)
	s.writeDeleted(w, r, n, err, "node")
}

// Node assignments

func (s *Server) listNodeAssignments(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	var filter store.NodeAssignmentFilter
	if raw := q.Get("nodeId"); raw != "" {
		id, err := uuid.Parse(raw)
		if err != nil {
			s.writeError(w, r, badRequest("nodeId must be a UUID"))
			return
		}
		filter.NodeID = &id
	}
	page, err := s.pageRequest(q)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	result, err := s.svc.ListNodeAssignments(r.Context(), filter, page)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, result)
}

func (s *Server) getNodeAssignment(w http.ResponseWriter, r *http.Request) {
	id, err := assignmentID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	a, found, err := s.svc.GetNodeAssignment(r.Context(), id)
	s.writeFound(w, r, a, found, err, "node assignment")
}

func (s *Server) deleteNodeAssignment(w http.ResponseWriter, r *http.Request) {
	id, err := assignmentID(r)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	n, err := s.svc.DeleteNodeAssignment(r.Context(), id)
	s.writeDeleted(w, r, n, err, "node assignment")
}
