package server

import (
	"encoding/json"
	"errors"
	"io"
	"net"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"fleetscan/internal/shared"
)

type API struct {
	Store  Store
	APIKey string
	Log    zerolog.Logger
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func readBody(r *http.Request) ([]byte, error) {
	defer r.Body.Close()
	return io.ReadAll(io.LimitReader(r.Body, 2<<20))
}

// clientAddr extracts the host part of the connection's remote address.
// The payload is never consulted.
func clientAddr(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// IngestAgentData handles POST /api/agent_data.
func (a *API) IngestAgentData(w http.ResponseWriter, r *http.Request) {
	body, err := readBody(r)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "bad body"})
		return
	}

	var data shared.AgentData
	if err := json.Unmarshal(body, &data); err != nil {
		var typeErr *json.UnmarshalTypeError
		if errors.As(err, &typeErr) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"error":  "invalid payload",
				"field":  typeErr.Field,
				"detail": "expected " + typeErr.Type.String(),
			})
			return
		}
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "bad json"})
		return
	}

	if err := data.Validate(); err != nil {
		var fieldErr *shared.FieldError
		if errors.As(err, &fieldErr) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"error":  "invalid payload",
				"field":  fieldErr.Field,
				"detail": fieldErr.Msg,
			})
			return
		}
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{"error": "invalid payload"})
		return
	}

	clientIP := clientAddr(r)
	rec, err := a.Store.CreateSnapshot(r.Context(), &data, clientIP)
	if err != nil {
		a.Log.Error().Err(err).Str("client_ip", clientIP).Msg("snapshot insert failed")
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "db error"})
		return
	}

	snapshotsIngested.Inc()
	a.Log.Info().
		Int64("id", rec.ID).
		Str("client_ip", clientIP).
		Int("processes", len(rec.Processes)).
		Int("users", len(rec.Users)).
		Msg("snapshot stored")

	writeJSON(w, http.StatusCreated, shared.IngestResponse{
		Message:  "Data received",
		ClientIP: clientIP,
		ID:       rec.ID,
	})
}

// ListAgentData handles GET /api/agent_data. client_ip filters exact
// matches; offset/limit page the result (defaults 0/100).
func (a *API) ListAgentData(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	offset := 0
	limit := DefaultListLimit
	var err error
	if v := q.Get("offset"); v != "" {
		offset, err = strconv.Atoi(v)
		if err != nil || offset < 0 {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"error": "invalid payload", "field": "offset", "detail": "expected non-negative integer",
			})
			return
		}
	}
	if v := q.Get("limit"); v != "" {
		limit, err = strconv.Atoi(v)
		if err != nil || limit < 1 {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
				"error": "invalid payload", "field": "limit", "detail": "expected positive integer",
			})
			return
		}
		if limit > MaxListLimit {
			limit = MaxListLimit
		}
	}

	recs, err := a.Store.ListSnapshots(r.Context(), q.Get("client_ip"), offset, limit)
	if err != nil {
		a.Log.Error().Err(err).Msg("snapshot list failed")
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "db error"})
		return
	}
	if len(recs) == 0 {
		writeJSON(w, http.StatusNotFound, map[string]any{
			"error": "no agent data found for the given criteria",
		})
		return
	}

	out := make([]shared.AgentRecordOut, 0, len(recs))
	for _, rec := range recs {
		out = append(out, rec.Payload())
	}
	writeJSON(w, http.StatusOK, out)
}

// GetAgentData handles GET /api/agent_data/{id}.
func (a *API) GetAgentData(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	if err != nil {
		writeJSON(w, http.StatusUnprocessableEntity, map[string]any{
			"error": "invalid payload", "field": "id", "detail": "expected integer",
		})
		return
	}

	rec, err := a.Store.GetSnapshot(r.Context(), id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]any{
				"error": "no agent data found for the given id",
			})
			return
		}
		a.Log.Error().Err(err).Int64("id", id).Msg("snapshot get failed")
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "db error"})
		return
	}
	writeJSON(w, http.StatusOK, rec.Payload())
}
