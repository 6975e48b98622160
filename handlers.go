package main

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"

	"github.com/Bowarc/Tetris-wasm/domain"
	"github.com/Bowarc/Tetris-wasm/hub"
	"github.com/Bowarc/Tetris-wasm/protocol"
	ws "github.com/Bowarc/Tetris-wasm/websocket"
)

type statsResponse struct {
	Clients int `json:"clients"`
	protocol.Stats
}

type connectionsResponse struct {
	Clients int      `json:"clients"`
	IDs     []string `json:"ids"`
}

func wsHandler(upgrader *websocket.Upgrader, registry domain.Registry, handler domain.MessageHandler, cfg ws.Config) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			slog.Error("upgrade error", "error", err)
			return
		}

		session := ws.NewConn(conn, registry, handler, cfg)
		if err := session.Serve(r.Context()); err != nil {
			slog.Debug("session not admitted", "remote", r.RemoteAddr, "error", err)
		}
	}
}

func healthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func statsHandler(broadcaster *hub.Hub, handler *protocol.Handler) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, statsResponse{
			Clients: broadcaster.Len(),
			Stats:   handler.Stats(),
		})
	}
}

// broadcastHandler sends content verbatim, behind the outbound prefix, to
// every live connection. Content comes from the path or the request body.
func broadcastHandler(broadcaster *hub.Hub, prefix string, maxSize int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		content := r.PathValue("content")
		if r.Method == http.MethodPost {
			body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxSize))
			if err != nil {
				http.Error(w, "body too large", http.StatusRequestEntityTooLarge)
				return
			}
			content = string(body)
		}

		report := broadcaster.Broadcast(r.Context(), []byte(prefix+content))
		slog.Info("admin broadcast", "delivered", report.Delivered, "failed", report.Failed)
		writeJSON(w, http.StatusOK, report)
	}
}

func connectionsHandler(broadcaster *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		keys := broadcaster.SnapshotKeys()
		ids := make([]string, 0, len(keys))
		for _, id := range keys {
			ids = append(ids, id.String())
		}
		writeJSON(w, http.StatusOK, connectionsResponse{Clients: len(ids), IDs: ids})
	}
}

// disconnectHandler closes one connection; its session then removes itself.
func disconnectHandler(broadcaster *hub.Hub) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, err := domain.ParseConnectionID(r.PathValue("id"))
		if err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}

		sink, ok := broadcaster.GetSink(id)
		if !ok {
			http.Error(w, "connection not found", http.StatusNotFound)
			return
		}
		if err := sink.Close(); err != nil {
			slog.Debug("close error", "clientId", id.String(), "error", err)
		}
		slog.Info("admin disconnect", "clientId", id.String())
		w.WriteHeader(http.StatusNoContent)
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
