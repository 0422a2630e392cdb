package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"

	"github.com/absmach/fedtree/job"
	pkgerrors "github.com/absmach/fedtree/pkg/errors"
	"github.com/absmach/fedtree/pkg/store"
	"github.com/go-chi/chi/v5"
	kithttp "github.com/go-kit/kit/transport/http"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

const contentType = "application/json"

var errInvalidRole = errors.New("invalid role")

// MakeHandler serves stored task entries, the registered operations, health
// and Prometheus metrics.
func MakeHandler(st store.Store, ops []string) http.Handler {
	opts := []kithttp.ServerOption{
		kithttp.ServerErrorEncoder(encodeError),
	}

	mux := chi.NewRouter()

	mux.Route("/jobs", func(r chi.Router) {
		r.Get("/{job_id}/roles/{role}", kithttp.NewServer(
			MakeGetResultEndpoint(st),
			decodeResultRequest,
			encodeResponse,
			opts...,
		).ServeHTTP)
	})

	mux.Get("/operations", kithttp.NewServer(
		MakeListOperationsEndpoint(ops),
		kithttp.NopRequestDecoder,
		encodeResponse,
		opts...,
	).ServeHTTP)

	mux.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		_ = encodeResponse(r.Context(), w, healthRes{Status: "pass"})
	})

	mux.Handle("/metrics", promhttp.Handler())

	return otelhttp.NewHandler(mux, "fedtree")
}

func decodeResultRequest(_ context.Context, r *http.Request) (interface{}, error) {
	return resultReq{
		JobID: chi.URLParam(r, "job_id"),
		Role:  job.Role(chi.URLParam(r, "role")),
	}, nil
}

func encodeResponse(_ context.Context, w http.ResponseWriter, response interface{}) error {
	w.Header().Set("Content-Type", contentType)

	return json.NewEncoder(w).Encode(response)
}

func encodeError(_ context.Context, err error, w http.ResponseWriter) {
	w.Header().Set("Content-Type", contentType)

	switch {
	case errors.Is(err, pkgerrors.ErrNotFound):
		w.WriteHeader(http.StatusNotFound)
	case errors.Is(err, pkgerrors.ErrMissingValue), errors.Is(err, errInvalidRole):
		w.WriteHeader(http.StatusBadRequest)
	default:
		w.WriteHeader(http.StatusInternalServerError)
	}

	_ = json.NewEncoder(w).Encode(map[string]string{"error": err.Error()})
}
