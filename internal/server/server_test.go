package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/cioddi/metromesh-sub000/internal/config"
	"github.com/cioddi/metromesh-sub000/internal/game"
	"github.com/cioddi/metromesh-sub000/internal/geo"
	"github.com/cioddi/metromesh-sub000/internal/store"
)

var testCenter = geo.LngLat{Lng: 2.170302, Lat: 41.3896}

func testServer(t *testing.T) (*Server, *game.Engine) {
	t.Helper()
	cfg := config.Load()
	cfg.PassengerBaseRate = 0

	db, err := store.Connect(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := db.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema: %v", err)
	}

	engine := game.New(cfg, "barcelona", testCenter, 1)
	hub := NewHub(engine)
	go hub.Run()
	return New(cfg, engine, db, hub), engine
}

func postJSON(t *testing.T, handler http.Handler, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal request: %v", err)
	}
	req := httptest.NewRequest("POST", path, bytes.NewReader(b))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestStateEndpoint(t *testing.T) {
	s, engine := testServer(t)
	engine.AddStation(testCenter)

	req := httptest.NewRequest("GET", "/api/state", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var snap game.Snapshot
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(snap.Stations) != 1 {
		t.Errorf("snapshot has %d stations, want 1", len(snap.Stations))
	}
}

func TestAddStationEndpoint(t *testing.T) {
	s, engine := testServer(t)
	router := s.Router()

	lng, lat := 2.18, 41.40
	rec := postJSON(t, router, "/api/stations", AddStationPayload{Lng: &lng, Lat: &lat})
	if rec.Code != http.StatusCreated {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var st game.Station
	if err := json.Unmarshal(rec.Body.Bytes(), &st); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if st.ID == "" {
		t.Error("created station has no id")
	}
	if got := len(engine.Snapshot().Stations); got != 1 {
		t.Errorf("engine has %d stations, want 1", got)
	}

	// Empty body falls back to a spawned position.
	req := httptest.NewRequest("POST", "/api/stations", nil)
	rec2 := httptest.NewRecorder()
	router.ServeHTTP(rec2, req)
	if rec2.Code != http.StatusCreated {
		t.Fatalf("random station status = %d, body = %s", rec2.Code, rec2.Body.String())
	}
}

func TestRouteEndpoints(t *testing.T) {
	s, engine := testServer(t)
	router := s.Router()

	a := engine.AddStation(testCenter)
	b := engine.AddStation(geo.OffsetBy(testCenter, geo.Point{X: 1, Y: 0}, 2000))
	c := engine.AddStation(geo.OffsetBy(testCenter, geo.Point{X: 1, Y: 0}, 4000))

	rec := postJSON(t, router, "/api/routes", CreateRoutePayload{StationIDs: []string{a.ID, b.ID}})
	if rec.Code != http.StatusCreated {
		t.Fatalf("create route status = %d, body = %s", rec.Code, rec.Body.String())
	}
	var route game.Route
	if err := json.Unmarshal(rec.Body.Bytes(), &route); err != nil {
		t.Fatalf("decode: %v", err)
	}

	rec = postJSON(t, router, fmt.Sprintf("/api/routes/%s/extend", route.ID),
		ExtendRoutePayload{StationID: c.ID})
	if rec.Code != http.StatusOK {
		t.Fatalf("extend status = %d, body = %s", rec.Code, rec.Body.String())
	}

	// Extending with the station already at that end must be rejected.
	rec = postJSON(t, router, fmt.Sprintf("/api/routes/%s/extend", route.ID),
		ExtendRoutePayload{StationID: c.ID})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("duplicate extension status = %d, want 400", rec.Code)
	}

	rec = postJSON(t, router, "/api/routes", CreateRoutePayload{StationIDs: []string{a.ID}})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("single-station route status = %d, want 400", rec.Code)
	}
}

func TestVisualNetworkEndpoint(t *testing.T) {
	s, engine := testServer(t)
	a := engine.AddStation(testCenter)
	b := engine.AddStation(geo.OffsetBy(testCenter, geo.Point{X: 1, Y: 0}, 2000))
	if _, err := engine.CreateRoute([]string{a.ID, b.ID}); err != nil {
		t.Fatalf("CreateRoute: %v", err)
	}

	req := httptest.NewRequest("GET", "/api/network/visual", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var net struct {
		Routes []struct {
			RouteID string `json:"routeId"`
		} `json:"routes"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &net); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(net.Routes) != 1 {
		t.Errorf("visual network has %d routes, want 1", len(net.Routes))
	}
}

func TestScoresEndpoint(t *testing.T) {
	s, _ := testServer(t)
	if _, err := s.db.SaveResult(context.Background(), &game.Result{City: "barcelona", Score: 100}, time.Now()); err != nil {
		t.Fatalf("SaveResult: %v", err)
	}

	req := httptest.NewRequest("GET", "/api/scores?city=barcelona", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var results []store.SavedResult
	if err := json.Unmarshal(rec.Body.Bytes(), &results); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(results) != 1 || results[0].Result.Score != 100 {
		t.Errorf("results = %+v", results)
	}
}

func TestGTFSRTEndpoint(t *testing.T) {
	s, engine := testServer(t)
	a := engine.AddStation(testCenter)
	b := engine.AddStation(geo.OffsetBy(testCenter, geo.Point{X: 1, Y: 0}, 2000))
	if _, err := engine.CreateRoute([]string{a.ID, b.ID}); err != nil {
		t.Fatalf("CreateRoute: %v", err)
	}

	req := httptest.NewRequest("GET", "/api/gtfsrt", nil)
	rec := httptest.NewRecorder()
	s.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "application/x-protobuf" {
		t.Errorf("content type = %q", ct)
	}
	if rec.Body.Len() == 0 {
		t.Error("empty feed body with one train running")
	}
}

func TestSetCityEndpoint(t *testing.T) {
	s, _ := testServer(t)
	router := s.Router()

	rec := postJSON(t, router, "/api/city", map[string]string{"city": "tokyo"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	city, err := s.db.SelectedCity(context.Background(), "barcelona")
	if err != nil {
		t.Fatalf("SelectedCity: %v", err)
	}
	if city != "tokyo" {
		t.Errorf("persisted city = %q, want tokyo", city)
	}

	rec = postJSON(t, router, "/api/city", map[string]string{})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("empty city status = %d, want 400", rec.Code)
	}
}

func TestResetEndpoint(t *testing.T) {
	s, engine := testServer(t)
	engine.AddStation(testCenter)

	rec := postJSON(t, s.Router(), "/api/reset", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if got := len(engine.Snapshot().Stations); got != 0 {
		t.Errorf("engine has %d stations after reset, want 0", got)
	}
}
