// Package httpapi implements the HTTP handlers for the portrait service.
//
// It delegates all business logic to the portrait service, the feedback
// ledger and the publish coordinator, and handles only transport concerns:
// routing, body decoding and domain-error mapping.
//
// Routes:
//
//	POST   /portraits                          → create portrait (version 1)
//	GET    /portraits/{base}                   → current version
//	GET    /portraits/{base}/versions          → ordered version metadata
//	GET    /portraits/{base}/versions/{v}      → exact version
//	DELETE /portraits/{base}/versions/{v}      → delete version
//	POST   /portraits/{base}/update            → new version from fields
//	POST   /portraits/{base}/switch            → make a version current
//	POST   /portraits/{base}/publish           → new version + close feedback
//	POST   /portraits/{base}/draft             → LLM draft (not persisted)
//	POST   /jobs/{base}/feedback               → add feedback item
//	GET    /jobs/{base}/feedback               → list open items
//	GET    /jobs/{base}/feedback/count         → open item count
package httpapi

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"hirebot/portrait-service/internal/feedback"
	"hirebot/portrait-service/internal/generate"
	"hirebot/portrait-service/internal/portrait"
	"hirebot/portrait-service/internal/publish"
)

// ─── Server ──────────────────────────────────────────────────────────────────

// Server holds shared dependencies. generator may be nil when no API key is
// configured; the draft route then reports UNAVAILABLE.
type Server struct {
	portraits *portrait.Service
	ledger    feedback.Ledger
	publisher *publish.Coordinator
	generator generate.Generator
}

// NewServer returns a configured Server.
func NewServer(portraits *portrait.Service, ledger feedback.Ledger, publisher *publish.Coordinator, generator generate.Generator) *Server {
	return &Server{portraits: portraits, ledger: ledger, publisher: publisher, generator: generator}
}

// RegisterRoutes mounts all portrait-service routes on mux.
func (s *Server) RegisterRoutes(mux *http.ServeMux) {
	mux.HandleFunc("/portraits", s.handlePortraits)
	mux.HandleFunc("/portraits/", s.handlePortraitAction)
	mux.HandleFunc("/jobs/", s.handleFeedback)
}

// ─── Route dispatch ───────────────────────────────────────────────────────────

// handlePortraits handles POST /portraits
func (s *Server) handlePortraits(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonError(w, "VALIDATION", "method not allowed", http.StatusMethodNotAllowed)
		return
	}
	s.createPortrait(w, r)
}

// handlePortraitAction dispatches /portraits/{base}[/...]
func (s *Server) handlePortraitAction(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")

	switch {
	case len(parts) == 2 && r.Method == http.MethodGet:
		s.getCurrent(w, r, parts[1])

	case len(parts) == 3 && parts[2] == "versions" && r.Method == http.MethodGet:
		s.listVersions(w, r, parts[1])

	case len(parts) == 4 && parts[2] == "versions":
		version, err := strconv.Atoi(parts[3])
		if err != nil || version < 1 {
			jsonError(w, "VALIDATION", fmt.Sprintf("invalid version %q", parts[3]), http.StatusBadRequest)
			return
		}
		switch r.Method {
		case http.MethodGet:
			s.getVersion(w, r, parts[1], version)
		case http.MethodDelete:
			s.deleteVersion(w, r, parts[1], version)
		default:
			jsonError(w, "VALIDATION", "method not allowed", http.StatusMethodNotAllowed)
		}

	case len(parts) == 3 && r.Method == http.MethodPost:
		baseID, action := parts[1], parts[2]
		switch action {
		case "update":
			s.updatePortrait(w, r, baseID)
		case "switch":
			s.switchVersion(w, r, baseID)
		case "publish":
			s.publishPortrait(w, r, baseID)
		case "draft":
			s.draftPortrait(w, r, baseID)
		default:
			jsonError(w, "NOT_FOUND", fmt.Sprintf("unknown action %q", action), http.StatusNotFound)
		}

	default:
		jsonError(w, "NOT_FOUND", "invalid path", http.StatusNotFound)
	}
}

// handleFeedback dispatches /jobs/{base}/feedback[/count]
func (s *Server) handleFeedback(w http.ResponseWriter, r *http.Request) {
	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")

	switch {
	case len(parts) == 3 && parts[2] == "feedback" && r.Method == http.MethodPost:
		s.addFeedback(w, r, parts[1])
	case len(parts) == 3 && parts[2] == "feedback" && r.Method == http.MethodGet:
		s.listOpenFeedback(w, r, parts[1])
	case len(parts) == 4 && parts[2] == "feedback" && parts[3] == "count" && r.Method == http.MethodGet:
		s.countOpenFeedback(w, r, parts[1])
	default:
		jsonError(w, "NOT_FOUND", "invalid path", http.StatusNotFound)
	}
}

// ─── Portrait handlers ───────────────────────────────────────────────────────

func (s *Server) createPortrait(w http.ResponseWriter, r *http.Request) {
	var body struct {
		BaseID string          `json:"baseId"`
		Fields json.RawMessage `json:"fields"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.BaseID == "" || len(body.Fields) == 0 {
		jsonError(w, "VALIDATION", "body must contain baseId and fields", http.StatusBadRequest)
		return
	}

	rec, err := s.portraits.Create(r.Context(), body.BaseID, body.Fields)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	jsonOK(w, rec)
}

func (s *Server) getCurrent(w http.ResponseWriter, r *http.Request, baseID string) {
	rec, err := s.portraits.GetCurrent(r.Context(), baseID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	jsonOK(w, rec)
}

func (s *Server) listVersions(w http.ResponseWriter, r *http.Request, baseID string) {
	metas, err := s.portraits.List(r.Context(), baseID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	jsonOK(w, metas)
}

func (s *Server) getVersion(w http.ResponseWriter, r *http.Request, baseID string, version int) {
	rec, err := s.portraits.GetVersion(r.Context(), portrait.VersionedID(baseID, version))
	if err != nil {
		writeDomainError(w, err)
		return
	}
	jsonOK(w, rec)
}

func (s *Server) deleteVersion(w http.ResponseWriter, r *http.Request, baseID string, version int) {
	if err := s.portraits.DeleteVersion(r.Context(), portrait.VersionedID(baseID, version)); err != nil {
		writeDomainError(w, err)
		return
	}
	jsonOK(w, map[string]string{"deleted": portrait.VersionedID(baseID, version)})
}

func (s *Server) updatePortrait(w http.ResponseWriter, r *http.Request, baseID string) {
	var body struct {
		Fields json.RawMessage `json:"fields"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.Fields) == 0 {
		jsonError(w, "VALIDATION", "body must contain fields", http.StatusBadRequest)
		return
	}

	rec, err := s.portraits.Update(r.Context(), baseID, body.Fields)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	jsonOK(w, rec)
}

func (s *Server) switchVersion(w http.ResponseWriter, r *http.Request, baseID string) {
	var body struct {
		Version int `json:"version"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.Version < 1 {
		jsonError(w, "VALIDATION", "body must contain a positive version", http.StatusBadRequest)
		return
	}

	rec, err := s.portraits.SwitchVersion(r.Context(), baseID, body.Version)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	jsonOK(w, rec)
}

func (s *Server) publishPortrait(w http.ResponseWriter, r *http.Request, baseID string) {
	var body struct {
		Fields      json.RawMessage `json:"fields"`
		FeedbackIDs []string        `json:"feedbackIds"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || len(body.Fields) == 0 {
		jsonError(w, "VALIDATION", "body must contain fields", http.StatusBadRequest)
		return
	}

	res, err := s.publisher.Publish(r.Context(), baseID, body.Fields, body.FeedbackIDs)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	jsonOK(w, res)
}

func (s *Server) draftPortrait(w http.ResponseWriter, r *http.Request, baseID string) {
	if s.generator == nil {
		jsonError(w, "UNAVAILABLE", "draft generator not configured", http.StatusServiceUnavailable)
		return
	}

	current, err := s.portraits.GetCurrent(r.Context(), baseID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	open, err := s.ledger.ListOpen(r.Context(), baseID)
	if err != nil {
		writeDomainError(w, err)
		return
	}

	fields, err := s.generator.Draft(r.Context(), baseID, current.Fields, open)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	jsonOK(w, map[string]any{"baseId": baseID, "fields": fields})
}

// ─── Feedback handlers ───────────────────────────────────────────────────────

func (s *Server) addFeedback(w http.ResponseWriter, r *http.Request, baseID string) {
	var body struct {
		CandidateRef string          `json:"candidateRef"`
		Payload      json.RawMessage `json:"payload"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil || body.CandidateRef == "" || len(body.Payload) == 0 {
		jsonError(w, "VALIDATION", "body must contain candidateRef and payload", http.StatusBadRequest)
		return
	}

	item, err := s.ledger.Add(r.Context(), baseID, body.CandidateRef, body.Payload)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	jsonOK(w, item)
}

func (s *Server) listOpenFeedback(w http.ResponseWriter, r *http.Request, baseID string) {
	items, err := s.ledger.ListOpen(r.Context(), baseID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	jsonOK(w, items)
}

func (s *Server) countOpenFeedback(w http.ResponseWriter, r *http.Request, baseID string) {
	n, err := s.ledger.CountOpen(r.Context(), baseID)
	if err != nil {
		writeDomainError(w, err)
		return
	}
	jsonOK(w, map[string]any{"baseId": baseID, "openFeedback": n})
}

// ─── Helpers ─────────────────────────────────────────────────────────────────

// writeDomainError maps domain errors to structured {kind, message} responses.
func writeDomainError(w http.ResponseWriter, err error) {
	var ve *portrait.ValidationError
	switch {
	case errors.As(err, &ve):
		jsonError(w, "VALIDATION", ve.Msg, http.StatusBadRequest)
	case errors.Is(err, portrait.ErrNotFound):
		jsonError(w, "NOT_FOUND", err.Error(), http.StatusNotFound)
	case errors.Is(err, portrait.ErrAlreadyExists):
		jsonError(w, "ALREADY_EXISTS", err.Error(), http.StatusConflict)
	case errors.Is(err, portrait.ErrInvalidOperation):
		jsonError(w, "INVALID_OPERATION", err.Error(), http.StatusUnprocessableEntity)
	case errors.Is(err, portrait.ErrConflict):
		jsonError(w, "CONFLICT", err.Error(), http.StatusConflict)
	case errors.Is(err, portrait.ErrUnavailable):
		jsonError(w, "UNAVAILABLE", err.Error(), http.StatusServiceUnavailable)
	default:
		log.Printf("[portrait-service] internal error: %v", err)
		jsonError(w, "INTERNAL", "internal server error", http.StatusInternalServerError)
	}
}

func jsonOK(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(v)
}

func jsonError(w http.ResponseWriter, kind, msg string, code int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	json.NewEncoder(w).Encode(map[string]string{"kind": kind, "message": msg})
}
