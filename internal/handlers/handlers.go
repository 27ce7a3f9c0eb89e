package handlers

import (
	"net/http"

	"forma-server/internal/database"
	"forma-server/internal/events"
	"forma-server/internal/registry"

	"github.com/gorilla/mux"
)

type Handlers struct {
	db       *database.Database
	registry *registry.Registry
	bus      *events.Bus
}

func New(db *database.Database, reg *registry.Registry, bus *events.Bus) *Handlers {
	return &Handlers{
		db:       db,
		registry: reg,
		bus:      bus,
	}
}

// RegisterRoutes attaches all API routes to the router.
func (h *Handlers) RegisterRoutes(r *mux.Router) {
	api := r.PathPrefix("/api").Subrouter()

	api.HandleFunc("/assets", h.ListAssets).Methods(http.MethodGet)
	api.HandleFunc("/assets/{id:[0-9]+}", h.GetAsset).Methods(http.MethodGet)
	api.HandleFunc("/assets/{id:[0-9]+}", h.UpdateAsset).Methods(http.MethodPatch, http.MethodPut)
	api.HandleFunc("/assets/{id:[0-9]+}", h.DeleteAsset).Methods(http.MethodDelete)
	api.HandleFunc("/assets/{id:[0-9]+}/thumbnail", h.GetThumbnail).Methods(http.MethodGet)
	api.HandleFunc("/assets/{id:[0-9]+}/thumbnail", h.PutThumbnail).Methods(http.MethodPut)
	api.HandleFunc("/assets/{id:[0-9]+}/thumbnail", h.DeleteThumbnail).Methods(http.MethodDelete)
	api.HandleFunc("/assets/{id:[0-9]+}/model", h.GetModel).Methods(http.MethodGet)
	api.HandleFunc("/tags", h.ListTags).Methods(http.MethodGet)
	api.HandleFunc("/thumbnails", h.ClearThumbnails).Methods(http.MethodDelete)

	api.HandleFunc("/folders", h.ListFolders).Methods(http.MethodGet)
	api.HandleFunc("/folders", h.AddFolder).Methods(http.MethodPost)
	api.HandleFunc("/folders/{id:[0-9]+}", h.RemoveFolder).Methods(http.MethodDelete)
	api.HandleFunc("/folders/{id:[0-9]+}/assets", h.ListFolderAssets).Methods(http.MethodGet)
	api.HandleFunc("/folders/{id:[0-9]+}/toggle", h.ToggleFolder).Methods(http.MethodPost)
	api.HandleFunc("/folders/{id:[0-9]+}/rescan", h.RescanFolder).Methods(http.MethodPost)
	api.HandleFunc("/folders/{id:[0-9]+}/scan", h.CancelScan).Methods(http.MethodDelete)

	api.HandleFunc("/events", h.Events).Methods(http.MethodGet)
	api.HandleFunc("/version", h.Version).Methods(http.MethodGet)

	r.HandleFunc("/health", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/healthz", h.HealthCheck).Methods(http.MethodGet)
	r.HandleFunc("/livez", h.Liveness).Methods(http.MethodGet)
	r.HandleFunc("/readyz", h.HealthCheck).Methods(http.MethodGet)
}
