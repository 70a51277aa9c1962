// Package health serves the operational endpoints of a processor: liveness,
// run status and Prometheus metrics.
package health

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/ridge/alluvium"
	"github.com/ridge/alluvium/tlog"
	"github.com/ridge/must/v2"
	"go.uber.org/zap"
)

// Reporter is the part of the processor the endpoints report on
type Reporter interface {
	Pipeline() string
	Mode() alluvium.Mode
	Status() alluvium.State
}

type statusResponse struct {
	Pipeline string         `json:"pipeline"`
	Mode     alluvium.Mode  `json:"mode"`
	State    alluvium.State `json:"state"`
}

// Handler routes the health endpoints:
//
//	/healthz  liveness probe, 200 while the server is up
//	/status   pipeline identity and current state
//	/metrics  Prometheus metrics
func Handler(reporter Reporter) http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/healthz", func(w http.ResponseWriter, req *http.Request) {
		jsonResult(tlog.Get(req.Context()), w, map[string]string{"status": "up"}, http.StatusOK)
	}).Methods(http.MethodGet)
	r.HandleFunc("/status", func(w http.ResponseWriter, req *http.Request) {
		jsonResult(tlog.Get(req.Context()), w, statusResponse{
			Pipeline: reporter.Pipeline(),
			Mode:     reporter.Mode(),
			State:    reporter.Status(),
		}, http.StatusOK)
	}).Methods(http.MethodGet)
	r.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)
	return r
}

// jsonResult writes the HTTP status code and a JSON body
func jsonResult(logger *zap.Logger, w http.ResponseWriter, res any, code int) {
	body := must.OK1(json.Marshal(res))
	w.Header().Add("Content-Type", "application/json")
	w.WriteHeader(code)
	if _, err := w.Write(body); err != nil {
		logger.Debug("Failed to write response to client", zap.Error(err))
	}
}
