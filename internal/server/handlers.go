package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"

	"github.com/woozymasta/gamestatus/internal/game"
	"github.com/woozymasta/gamestatus/internal/models"
	"github.com/woozymasta/gamestatus/internal/storage"
	"github.com/woozymasta/gamestatus/internal/vars"
)

// createRequest is the body of POST /api/servers.
type createRequest struct {
	Name     string `json:"name"`
	Address  string `json:"address"`
	Protocol string `json:"protocol"`
	Port     int    `json:"port"`
}

// handleListServers returns every stored record.
func (s *Server) handleListServers(w http.ResponseWriter, _ *http.Request) {
	records, err := s.store.ListRecords()
	if err != nil {
		log.Error().Err(err).Msg("failed to list records")
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	writeJSON(w, http.StatusOK, records)
}

// handleCreateServer stores a new record. Records without a protocol use
// auto detection and are queued for the detect workers.
func (s *Server) handleCreateServer(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, s.maxBody)

	var req createRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json: "+err.Error())
		return
	}

	rec, err := s.store.CreateRecord(models.ServerRecord{
		Name:     strings.TrimSpace(req.Name),
		Address:  req.Address,
		Protocol: models.Protocol(req.Protocol),
		Port:     req.Port,
	})
	switch {
	case errors.Is(err, storage.ErrDuplicate):
		writeError(w, http.StatusConflict, err.Error())
		return
	case errors.Is(err, storage.ErrInvalidRecord):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		log.Error().Err(err).Msg("failed to create record")
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	log.Info().
		Str("id", rec.ID).
		Str("address", rec.Address).
		Stringer("protocol", rec.Protocol).
		Msg("record created")

	if rec.Protocol == models.ProtocolAuto {
		s.enqueue(rec)
	}

	writeJSON(w, http.StatusCreated, rec)
}

// handleDeleteServer removes a record.
// Query params: ?id=<uuid>
func (s *Server) handleDeleteServer(w http.ResponseWriter, r *http.Request) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing id")
		return
	}

	found, err := s.store.DeleteRecord(id)
	if err != nil {
		log.Error().Err(err).Str("id", id).Msg("failed to delete record")
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, "record not found")
		return
	}

	log.Info().Str("id", id).Msg("record deleted")
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleStatus queries one stored record.
// Query params: ?id=<uuid>
func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookup(w, r)
	if !ok {
		return
	}

	before := rec.Protocol
	status := s.game.Fetch(r.Context(), rec)
	s.persistDetection(before, *rec)

	writeJSON(w, http.StatusOK, recordStatus{Server: *rec, Status: status})
}

// handleStatusAll queries every stored record in parallel.
func (s *Server) handleStatusAll(w http.ResponseWriter, r *http.Request) {
	records, err := s.store.ListRecords()
	if err != nil {
		log.Error().Err(err).Msg("failed to list records")
		writeError(w, http.StatusInternalServerError, "database error")
		return
	}

	ptrs := make([]*models.ServerRecord, len(records))
	before := make([]models.Protocol, len(records))
	for i := range records {
		ptrs[i] = &records[i]
		before[i] = records[i].Protocol
	}

	statuses := s.game.FetchAll(r.Context(), ptrs)

	out := make([]recordStatus, 0, len(records))
	for i, rec := range records {
		s.persistDetection(before[i], rec)
		out = append(out, recordStatus{Server: rec, Status: statuses[rec.ID]})
	}

	writeJSON(w, http.StatusOK, out)
}

// handleRules returns the A2S rules of a stored Source record.
// Query params: ?id=<uuid>
func (s *Server) handleRules(w http.ResponseWriter, r *http.Request) {
	rec, ok := s.lookup(w, r)
	if !ok {
		return
	}

	rules, err := s.game.FetchRules(r.Context(), *rec)
	switch {
	case errors.Is(err, game.ErrUnsupported):
		writeError(w, http.StatusBadRequest, err.Error())
		return
	case err != nil:
		log.Debug().Err(err).Str("id", rec.ID).Msg("rules query failed")
		writeError(w, http.StatusGatewayTimeout, err.Error())
		return
	}

	writeJSON(w, http.StatusOK, rules)
}

// handleQuery performs a live query of an unsaved server.
// Query params: ?type=mc&host=play.example.com&port=25565
func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	protocol, err := models.ParseProtocol(q.Get("type"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec := models.ServerRecord{
		Address:  strings.TrimSpace(q.Get("host")),
		Protocol: protocol,
	}
	if portStr := q.Get("port"); portStr != "" {
		if rec.Port, err = strconv.Atoi(portStr); err != nil {
			writeError(w, http.StatusBadRequest, "invalid port")
			return
		}
	}
	if err := rec.Validate(); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	rec.Name = rec.Address
	rec.ID = models.AdHocID(rec.Protocol, rec.Address, rec.Port)

	status := s.game.Fetch(r.Context(), &rec)
	writeJSON(w, http.StatusOK, recordStatus{Server: rec, Status: status})
}

// handleVersion returns the build information.
func handleVersion(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, vars.Ver())
}

// lookup resolves the ?id= record or writes the error response.
func (s *Server) lookup(w http.ResponseWriter, r *http.Request) (*models.ServerRecord, bool) {
	id := r.URL.Query().Get("id")
	if id == "" {
		writeError(w, http.StatusBadRequest, "missing id")
		return nil, false
	}

	rec, err := s.store.GetRecord(id)
	if err != nil {
		log.Error().Err(err).Str("id", id).Msg("failed to fetch record")
		writeError(w, http.StatusInternalServerError, "database error")
		return nil, false
	}
	if rec == nil {
		writeError(w, http.StatusNotFound, "record not found")
		return nil, false
	}

	return rec, true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, msg string) {
	writeJSON(w, code, map[string]string{"error": msg})
}
