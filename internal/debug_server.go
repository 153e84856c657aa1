// Package internal hosts the operator-facing debug server. It is never
// exposed to clients: bind it to a loopback or private interface.
package internal

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/http/pprof"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"video2tool/observability"
)

// StatsProvider returns the snapshot served on /debug/stats.
type StatsProvider func() observability.CollabStats

// AccountRow is a redacted account listing. Password hashes never leave
// the store.
type AccountRow struct {
	Key       string `json:"key"`
	Email     string `json:"email"`
	SizeBytes int    `json:"size_bytes"`
}

// NewDebugMux wires the stats endpoint, a redacted account inspector
// over the badger store, and the pprof handlers.
func NewDebugMux(db *badger.DB, stats StatsProvider) *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/debug/stats", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		snapshot := observability.CollabStats{}
		if stats != nil {
			snapshot = stats()
		}
		_ = json.NewEncoder(w).Encode(snapshot)
	})

	mux.HandleFunc("/debug/accounts", func(w http.ResponseWriter, r *http.Request) {
		prefix := []byte("user:")
		rows := make([]AccountRow, 0)

		err := db.View(func(txn *badger.Txn) error {
			opts := badger.DefaultIteratorOptions
			opts.PrefetchValues = false
			it := txn.NewIterator(opts)
			defer it.Close()
			for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
				item := it.Item()
				key := string(item.Key())
				rows = append(rows, AccountRow{
					Key:       key,
					Email:     strings.TrimPrefix(key, "user:"),
					SizeBytes: int(item.ValueSize()),
				})
			}
			return nil
		})
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(rows)
	})

	mux.HandleFunc("/debug/pprof/", pprof.Index)
	mux.HandleFunc("/debug/pprof/cmdline", pprof.Cmdline)
	mux.HandleFunc("/debug/pprof/profile", pprof.Profile)
	mux.HandleFunc("/debug/pprof/symbol", pprof.Symbol)
	mux.HandleFunc("/debug/pprof/trace", pprof.Trace)

	return mux
}

// StartDebugServer serves the debug mux in the background. Failures are
// logged, never fatal: losing the debug endpoint must not take the
// collaboration server down.
func StartDebugServer(log *slog.Logger, port int, mux *http.ServeMux) {
	server := &http.Server{
		Addr:              fmt.Sprintf("127.0.0.1:%d", port),
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		log.Info("Debug server listening", "addr", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Warn("Debug server stopped", "err", err)
		}
	}()
}
