package internal

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/dgraph-io/badger/v4"

	"you-chat/domain"
)

//go:embed inspect.html
var templatesFS embed.FS

type InspectRow struct {
	Key       string
	Type      string
	Timestamp string
	EntityID  string
	Detail    string
}

type RowMapper func(key string, val []byte) InspectRow
type StatsProvider func() map[string]any

type PageData struct {
	Prefix string
	Items  []InspectRow
	Stats  map[string]any
}

// StartDebugServer exposes a human-readable view of badger on a side
// port. It never writes; safe to run next to the live server, and the
// viewer binary reuses it against a read-only copy of the store.
func StartDebugServer(db *badger.DB, port int, endpoint string, mapper RowMapper, statsProvider StatsProvider) {
	mux := http.NewServeMux()
	tmpl := template.Must(template.ParseFS(templatesFS, "inspect.html"))

	if mapper == nil {
		mapper = ChatMapper
	}

	mux.HandleFunc(endpoint, func(w http.ResponseWriter, r *http.Request) {
		prefix := r.URL.Query().Get("prefix")
		if prefix == "" {
			prefix = "msg:"
		}

		data := PageData{
			Prefix: prefix,
			Stats:  make(map[string]any),
		}

		if statsProvider != nil {
			data.Stats = statsProvider()
		}

		_ = db.View(func(txn *badger.Txn) error {
			it := txn.NewIterator(badger.DefaultIteratorOptions)
			defer it.Close()
			for it.Seek([]byte(prefix)); it.ValidForPrefix([]byte(prefix)); it.Next() {
				item := it.Item()
				_ = item.Value(func(val []byte) error {
					data.Items = append(data.Items, mapper(string(item.Key()), val))
					return nil
				})
			}
			return nil
		})

		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_ = tmpl.Execute(w, data)
	})

	go func() {
		_ = http.ListenAndServe(fmt.Sprintf("0.0.0.0:%d", port), mux)
	}()
}

// ChatMapper decodes the JSON records the repositories write. The key
// namespaces are "user:", "useremail:", "conv:", "convpair:" and
// "msg:{conversation}:{timestamp}:{uuid}".
func ChatMapper(key string, val []byte) InspectRow {
	row := InspectRow{
		Key:       key,
		Type:      "RAW",
		Timestamp: "--:--:--",
		EntityID:  "--------",
		Detail:    "Size: " + strconv.Itoa(len(val)) + " bytes",
	}

	switch {
	case strings.HasPrefix(key, "msg:"):
		row.Type = "MESSAGE"
		var m domain.Message
		if err := json.Unmarshal(val, &m); err != nil {
			return row
		}
		row.Timestamp = m.CreatedAt.Format("15:04:05")
		row.EntityID = shortID(m.ID.String())
		row.Detail = fmt.Sprintf("%s: %s", m.SenderID, m.Body)
	case strings.HasPrefix(key, "user:"):
		row.Type = "USER"
		var u domain.User
		if err := json.Unmarshal(val, &u); err != nil {
			return row
		}
		row.Timestamp = u.CreatedAt.Format("15:04:05")
		row.EntityID = shortID(u.ID)
		row.Detail = fmt.Sprintf("%s <%s>", u.FullName, u.Email)
	case strings.HasPrefix(key, "conv:"):
		row.Type = "CONVERSATION"
		var c domain.Conversation
		if err := json.Unmarshal(val, &c); err != nil {
			return row
		}
		row.Timestamp = c.CreatedAt.Format("15:04:05")
		row.EntityID = shortID(c.ID)
		row.Detail = fmt.Sprintf("%s <-> %s", c.Members[0], c.Members[1])
	case strings.HasPrefix(key, "useremail:"), strings.HasPrefix(key, "convpair:"):
		row.Type = "INDEX"
		row.Detail = "-> " + string(val)
	}
	return row
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// SelfStats is the default stats provider for the live server page.
func SelfStats(start time.Time, extra func() map[string]any) StatsProvider {
	return func() map[string]any {
		stats := map[string]any{
			"Uptime": time.Since(start).Round(time.Second).String(),
			"Time":   time.Now().Format(time.RFC822),
		}
		if extra != nil {
			for k, v := range extra() {
				stats[k] = v
			}
		}
		return stats
	}
}
