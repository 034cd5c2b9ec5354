package app

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"

	"github.com/skyhookml/yolokit/skyhook"
)

// NewRouter serves the ledger read-only over HTTP.
func NewRouter(ledger *Ledger) *mux.Router {
	router := mux.NewRouter()

	router.HandleFunc("/runs", func(w http.ResponseWriter, r *http.Request) {
		runs, err := ledger.ListRuns()
		if err != nil {
			httpError(w, err)
			return
		}
		skyhook.JsonResponse(w, runs)
	}).Methods("GET")

	router.HandleFunc("/runs/{id}", func(w http.ResponseWriter, r *http.Request) {
		run, err := ledger.GetRun(mux.Vars(r)["id"])
		if err != nil {
			httpError(w, err)
			return
		}
		skyhook.JsonResponse(w, run)
	}).Methods("GET")

	router.HandleFunc("/runs/{id}/warnings", func(w http.ResponseWriter, r *http.Request) {
		warnings, err := ledger.ListWarnings(mux.Vars(r)["id"])
		if err != nil {
			httpError(w, err)
			return
		}
		skyhook.JsonResponse(w, warnings)
	}).Methods("GET")

	router.HandleFunc("/tools/{tool}/last", func(w http.ResponseWriter, r *http.Request) {
		run, err := ledger.LastRun(mux.Vars(r)["tool"])
		if err != nil {
			httpError(w, err)
			return
		}
		skyhook.JsonResponse(w, run)
	}).Methods("GET")

	return router
}

func httpError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrRunNotFound) {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	log.Printf("[http] %v", err)
	http.Error(w, err.Error(), http.StatusInternalServerError)
}
