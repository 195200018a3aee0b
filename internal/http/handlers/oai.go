package handlers

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"oaiserve/internal/render"
	"oaiserve/internal/services/harvest"

	"github.com/rs/zerolog/log"
)

// largest form body accepted on POST
const maxFormBytes = 1 << 20

// OAI serves protocol requests. Protocol errors are regular 200 responses;
// only collaborator failures turn into HTTP errors.
func OAI(dispatcher *harvest.Dispatcher) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		params, err := requestParams(w, r)
		if err != nil {
			http.Error(w, "malformed request arguments", http.StatusBadRequest)
			return
		}

		resp, err := dispatcher.Dispatch(r.Context(), harvest.Request{
			Params:  params,
			ThisURL: thisURL(r),
			Host:    r.Host,
		})
		if err != nil {
			var svcErr *harvest.ServiceError
			if errors.As(err, &svcErr) {
				http.Error(w, "request failed: "+svcErr.Op, http.StatusInternalServerError)
			} else {
				http.Error(w, "internal error", http.StatusInternalServerError)
			}
			return
		}

		// Render fully before writing so a failure can still become a 500
		var buf bytes.Buffer
		if err := render.XML(&buf, resp); err != nil {
			log.Error().Err(err).Str("kind", string(resp.Kind)).Msg("render failed")
			http.Error(w, "internal error", http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", render.ContentType)
		w.WriteHeader(http.StatusOK)
		w.Write(buf.Bytes())
	}
}

// requestParams reads arguments from the query string, or from the form body
// of a POST, keeping request order and repeated keys
func requestParams(w http.ResponseWriter, r *http.Request) (harvest.Params, error) {
	if r.Method != http.MethodPost {
		return parseOrdered(r.URL.RawQuery)
	}

	ct := r.Header.Get("Content-Type")
	if ct != "" && !strings.HasPrefix(ct, "application/x-www-form-urlencoded") {
		return nil, fmt.Errorf("unsupported content type %q", ct)
	}
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxFormBytes))
	if err != nil {
		return nil, err
	}
	return parseOrdered(string(body))
}

// parseOrdered decodes an urlencoded string like url.ParseQuery but keeps
// the argument order, which url.Values loses
func parseOrdered(raw string) (harvest.Params, error) {
	var params harvest.Params
	for _, pair := range strings.Split(raw, "&") {
		if pair == "" {
			continue
		}
		k, v, _ := strings.Cut(pair, "=")
		key, err := url.QueryUnescape(k)
		if err != nil {
			return nil, err
		}
		value, err := url.QueryUnescape(v)
		if err != nil {
			return nil, err
		}
		params = append(params, harvest.Param{Key: key, Value: value})
	}
	return params, nil
}

func thisURL(r *http.Request) string {
	scheme := "http"
	if r.TLS != nil {
		scheme = "https"
	} else if p := r.Header.Get("X-Forwarded-Proto"); p == "https" {
		scheme = p
	}
	return scheme + "://" + r.Host + r.URL.Path
}
