package web

import (
	"context"
	"net/http"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/zainal/disaster-siren/internal/domain/siren"
)

// Commander enqueues commands onto the ordered channel.
type Commander interface {
	Submit(ctx context.Context, cmd siren.Command) (string, error)
}

// StatusSource reads the current coordinator snapshot.
type StatusSource interface {
	Current() siren.Snapshot
}

// AssetStore is the mode registry surface the web layer needs.
type AssetStore interface {
	Modes() []siren.Mode
	ReplaceCustomAsset(path string) error
}

// Converter transcodes uploads into player-friendly WAV files.
type Converter interface {
	ConvertToWAV(ctx context.Context, src, dst string) error
}

// Server wires the HTTP routes to the appliance services.
type Server struct {
	// commander submits commands for the coordinator.
	commander Commander
	// status serves read-only snapshots.
	status StatusSource
	// assets lists modes and swaps the Custom asset.
	assets AssetStore
	// converter prepares uploaded audio for the player.
	converter Converter
	// uploadsDir receives uploaded and converted files.
	uploadsDir string
	// router dispatches requests.
	router *mux.Router
}

// NewServer builds the route table.
func NewServer(commander Commander, status StatusSource, assets AssetStore, converter Converter, uploadsDir string) *Server {
	s := &Server{
		commander:  commander,
		status:     status,
		assets:     assets,
		converter:  converter,
		uploadsDir: uploadsDir,
		router:     mux.NewRouter(),
	}

	s.router.HandleFunc("/api/status", s.handleStatus).Methods(http.MethodGet)
	s.router.HandleFunc("/api/toggle", s.handleToggle).Methods(http.MethodPost)
	s.router.HandleFunc("/api/cycle", s.handleCycle).Methods(http.MethodPost)
	s.router.HandleFunc("/api/modes", s.handleModes).Methods(http.MethodGet)
	s.router.HandleFunc("/api/modes/{id}", s.handleSelectMode).Methods(http.MethodPost)
	s.router.HandleFunc("/api/announce", s.handleAnnounce).Methods(http.MethodPost)
	s.router.HandleFunc("/api/announce/stop", s.handleStopAnnounce).Methods(http.MethodPost)
	s.router.HandleFunc("/api/upload", s.handleUpload).Methods(http.MethodPost)
	s.router.Handle("/metrics", promhttp.Handler()).Methods(http.MethodGet)

	return s
}

// Router exposes the handler for the HTTP server.
func (s *Server) Router() http.Handler {
	return s.router
}
