// Package server exposes the running game over HTTP and websocket:
// JSON state and geometry endpoints, mutation endpoints mirroring the
// websocket actions, a GTFS-realtime export, and the live push hub.
package server

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/cioddi/metromesh-sub000/internal/config"
	"github.com/cioddi/metromesh-sub000/internal/feed"
	"github.com/cioddi/metromesh-sub000/internal/game"
	"github.com/cioddi/metromesh-sub000/internal/geo"
	"github.com/cioddi/metromesh-sub000/internal/store"
)

type Server struct {
	cfg    *config.Config
	engine *game.Engine
	db     *store.DB
	hub    *Hub
}

func New(cfg *config.Config, engine *game.Engine, db *store.DB, hub *Hub) *Server {
	return &Server{cfg: cfg, engine: engine, db: db, hub: hub}
}

// Router assembles the HTTP surface.
func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"*"},
		AllowCredentials: true,
	}))

	r.Get("/health", s.handleHealth)
	r.Get("/api/state", s.handleState)
	r.Get("/api/network/visual", s.handleVisualNetwork)
	r.Get("/api/scores", s.handleScores)
	r.Get("/api/gtfsrt", s.handleGTFSRT)

	r.Post("/api/stations", s.handleAddStation)
	r.Post("/api/routes", s.handleCreateRoute)
	r.Post("/api/routes/{routeID}/extend", s.handleExtendRoute)
	r.Post("/api/speed", s.handleSetSpeed)
	r.Post("/api/reset", s.handleReset)
	r.Post("/api/city", s.handleSetCity)

	r.Get("/ws", s.hub.HandleWS)
	return r
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	status := map[string]any{
		"status":    "ok",
		"timestamp": time.Now().UTC(),
	}
	if s.db != nil {
		if _, err := s.db.TopResults(r.Context(), "", 1); err != nil {
			status["status"] = "error"
			status["database"] = "disconnected"
			writeJSON(w, http.StatusServiceUnavailable, status)
			return
		}
		status["database"] = "connected"
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.Snapshot())
}

func (s *Server) handleVisualNetwork(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.engine.VisualNetwork())
}

func (s *Server) handleScores(w http.ResponseWriter, r *http.Request) {
	city := r.URL.Query().Get("city")
	results, err := s.db.TopResults(r.Context(), city, 20)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if results == nil {
		results = []store.SavedResult{}
	}
	writeJSON(w, http.StatusOK, results)
}

func (s *Server) handleGTFSRT(w http.ResponseWriter, r *http.Request) {
	msg := feed.BuildVehiclePositions(s.engine.TrainViews(), time.Now())
	data, err := feed.Marshal(msg)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	w.Header().Set("Content-Type", "application/x-protobuf")
	w.Write(data)
}

func (s *Server) handleAddStation(w http.ResponseWriter, r *http.Request) {
	var p AddStationPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	var st *game.Station
	if p.Lng != nil && p.Lat != nil {
		st = s.engine.AddStation(geo.LngLat{Lng: *p.Lng, Lat: *p.Lat})
	} else {
		var err error
		st, err = s.engine.AddRandomStation()
		if err != nil {
			writeError(w, http.StatusConflict, err)
			return
		}
	}
	s.hub.BroadcastState()
	writeJSON(w, http.StatusCreated, st)
}

func (s *Server) handleCreateRoute(w http.ResponseWriter, r *http.Request) {
	var p CreateRoutePayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	route, err := s.engine.CreateRoute(p.StationIDs)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.hub.BroadcastState()
	writeJSON(w, http.StatusCreated, route)
}

func (s *Server) handleExtendRoute(w http.ResponseWriter, r *http.Request) {
	var p ExtendRoutePayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	routeID := chi.URLParam(r, "routeID")
	if err := s.engine.ExtendRoute(routeID, p.StationID, p.AtStart); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.hub.BroadcastState()
	writeJSON(w, http.StatusOK, map[string]string{"status": "extended"})
}

func (s *Server) handleSetSpeed(w http.ResponseWriter, r *http.Request) {
	var p SetGameSpeedPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.engine.SetGameSpeed(p.Speed)
	s.hub.BroadcastState()
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// handleSetCity persists the map choice. The engine's center is fixed
// at startup, so the new city takes effect on the next server start.
func (s *Server) handleSetCity(w http.ResponseWriter, r *http.Request) {
	var p struct {
		City string `json:"city"`
	}
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	if p.City == "" {
		writeError(w, http.StatusBadRequest, errors.New("city is required"))
		return
	}
	if err := s.db.SetSelectedCity(r.Context(), p.City); err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"city": p.City, "status": "saved"})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	s.engine.Reset()
	s.hub.BroadcastState()
	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}
