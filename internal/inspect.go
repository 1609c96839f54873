// Package internal provides a development-only key inspector over the
// Badger store. It renders raw rows per key prefix (msg:, member:,
// group:, push:, employee:) for debugging delivery issues.
package internal

import (
	"embed"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"
)

//go:embed inspect.html
var templatesFS embed.FS

type InspectRow struct {
	Key       string
	Prefix    string
	Timestamp string
	EntityID  string
	Detail    string
}

type PageData struct {
	Prefix string
	Items  []InspectRow
}

// StartDebugServer serves the inspector on its own port. Never exposed
// in production; main only wires it when DEBUG_PORT is set.
func StartDebugServer(db *badger.DB, port int, log *slog.Logger) {
	mux := http.NewServeMux()
	tmpl := template.Must(template.ParseFS(templatesFS, "inspect.html"))

	mux.HandleFunc("/inspect", func(w http.ResponseWriter, r *http.Request) {
		prefix := r.URL.Query().Get("prefix")
		if prefix == "" {
			prefix = "msg:"
		}

		data := PageData{Prefix: prefix}
		_ = db.View(func(txn *badger.Txn) error {
			it := txn.NewIterator(badger.DefaultIteratorOptions)
			defer it.Close()
			for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
				item := it.Item()
				_ = item.Value(func(val []byte) error {
					data.Items = append(data.Items, mapRow(string(item.Key()), val))
					return nil
				})
			}
			return nil
		})

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = tmpl.Execute(w, data)
	})

	go func() {
		addr := fmt.Sprintf("0.0.0.0:%d", port)
		log.Info("Debug inspector listening", "addr", addr)
		_ = http.ListenAndServe(addr, mux)
	}()
}

// mapRow decodes the message key layout "msg:{group}:{ts}:{id}"; other
// prefixes fall back to raw display.
func mapRow(key string, val []byte) InspectRow {
	parts := strings.Split(key, ":")
	row := InspectRow{
		Key:       key,
		Prefix:    parts[0],
		Timestamp: "--:--:--",
		EntityID:  "-",
		Detail:    "Size: " + strconv.Itoa(len(val)) + " bytes",
	}

	if parts[0] == "msg" && len(parts) == 4 {
		if tsNano, err := strconv.ParseInt(parts[2], 10, 64); err == nil {
			row.Timestamp = time.Unix(0, tsNano).UTC().Format("15:04:05")
		}
		row.EntityID = strings.TrimLeft(parts[3], "0")
	} else if len(parts) >= 2 {
		row.EntityID = parts[1]
	}
	return row
}
