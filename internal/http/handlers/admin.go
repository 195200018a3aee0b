package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"oaiserve/internal/domain/source"
	"oaiserve/internal/services/ingest"
	"oaiserve/internal/store/repositories"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"
)

type sourceRequest struct {
	Name           string `json:"name"`
	URL            string `json:"url"`
	MetadataPrefix string `json:"metadataPrefix,omitempty"`
	Set            string `json:"set,omitempty"`
}

type sourceResponse struct {
	ID              int64   `json:"id"`
	Name            string  `json:"name"`
	URL             string  `json:"url"`
	MetadataPrefix  string  `json:"metadataPrefix"`
	Set             string  `json:"set,omitempty"`
	LastRefreshedAt *string `json:"lastRefreshedAt,omitempty"`
}

func toSourceResponse(s *source.Source) sourceResponse {
	out := sourceResponse{
		ID:             s.ID,
		Name:           s.Name,
		URL:            s.URL,
		MetadataPrefix: s.MetadataPrefix,
		Set:            s.SetSpec,
	}
	if s.LastRefreshedAt != nil {
		ts := s.LastRefreshedAt.UTC().Format("2006-01-02T15:04:05Z")
		out.LastRefreshedAt = &ts
	}
	return out
}

// CreateSource registers an upstream endpoint to mirror
func CreateSource(sources repositories.SourceRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req sourceRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, "invalid JSON", http.StatusBadRequest)
			return
		}

		src, err := source.NewSource(req.Name, req.URL, req.MetadataPrefix, req.Set)
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := sources.Save(r.Context(), src); err != nil {
			log.Error().Err(err).Str("source", src.Name).Msg("save source failed")
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		writeJSON(w, http.StatusCreated, toSourceResponse(src))
	}
}

// ListSources returns every registered source
func ListSources(sources repositories.SourceRepository) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		all, err := sources.FindAll(r.Context())
		if err != nil {
			log.Error().Err(err).Msg("list sources failed")
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		out := make([]sourceResponse, 0, len(all))
		for _, s := range all {
			out = append(out, toSourceResponse(s))
		}
		writeJSON(w, http.StatusOK, map[string]interface{}{"sources": out})
	}
}

// RefreshSource schedules an asynchronous refresh of one source
func RefreshSource(refresher *ingest.Refresher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
		if err != nil || id <= 0 {
			http.Error(w, "invalid source id", http.StatusBadRequest)
			return
		}

		err = refresher.Trigger(r.Context(), id)
		switch {
		case err == nil:
			writeJSON(w, http.StatusAccepted, map[string]interface{}{
				"status":   "scheduled",
				"sourceId": id,
			})
		case errors.Is(err, repositories.ErrNotFound):
			http.Error(w, "source not found", http.StatusNotFound)
		case errors.Is(err, ingest.ErrRefreshRunning):
			http.Error(w, err.Error(), http.StatusConflict)
		default:
			log.Error().Err(err).Int64("source_id", id).Msg("refresh trigger failed")
			http.Error(w, "internal error", http.StatusInternalServerError)
		}
	}
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
