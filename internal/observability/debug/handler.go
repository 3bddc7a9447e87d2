package debug

import (
	"encoding/json"
	"net/http"
	hpprof "net/http/pprof"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"toastd/internal/storage"
	"toastd/internal/toast"
)

const (
	defaultHistoryLimit = 50
	maxHistoryLimit     = 300
)

// Toasts is the controller view served on /toasts.
type Toasts interface {
	Toasts() []toast.Toast
	QueueStatus() toast.QueueStatus
	Appearance() toast.Appearance
	MaxVisible() int
}

// History serves /history; nil disables the route.
type History interface {
	Recent(n int) []storage.Entry
}

type Sources struct {
	Toasts   Toasts
	History  History
	Gatherer prometheus.Gatherer
}

type buttonView struct {
	ID       string `json:"id"`
	Text     string `json:"text"`
	Style    string `json:"style,omitempty"`
	Disabled bool   `json:"disabled,omitempty"`
}

type toastView struct {
	ID            string       `json:"id"`
	Title         string       `json:"title,omitempty"`
	Message       string       `json:"message,omitempty"`
	Category      string       `json:"category"`
	Size          string       `json:"size"`
	CreatedAt     time.Time    `json:"created_at"`
	Timeout       string       `json:"timeout,omitempty"`
	Progress      float64      `json:"progress"`
	Active        bool         `json:"active"`
	Visible       bool         `json:"visible"`
	Removing      bool         `json:"removing,omitempty"`
	Transitioning bool         `json:"transitioning,omitempty"`
	Buttons       []buttonView `json:"buttons,omitempty"`
	States        int          `json:"states,omitempty"`
	CurrentState  *int         `json:"current_state,omitempty"`
	Skipped       []int        `json:"skipped,omitempty"`
	Remaining     int          `json:"remaining,omitempty"`
	Completed     int          `json:"completed,omitempty"`
}

type toastsResponse struct {
	Status     toast.QueueStatus `json:"status"`
	MaxVisible int               `json:"max_visible"`
	Position   string            `json:"position"`
	Animation  string            `json:"animation"`
	Theme      string            `json:"theme"`
	Toasts     []toastView       `json:"toasts"`
}

func viewOf(t toast.Toast) toastView {
	v := toastView{
		ID:            t.ID,
		Title:         t.Title,
		Message:       t.Message,
		Category:      t.Category.String(),
		Size:          t.Size.String(),
		CreatedAt:     t.CreatedAt,
		Progress:      t.Progress,
		Active:        t.Active,
		Visible:       t.Visible,
		Removing:      t.Removing,
		Transitioning: t.Transitioning,
	}
	if t.Timeout > 0 {
		v.Timeout = t.Timeout.String()
	}
	for _, b := range t.Buttons {
		v.Buttons = append(v.Buttons, buttonView{ID: b.ID, Text: b.Text, Style: b.Style, Disabled: b.Disabled})
	}
	if t.Stateful() {
		cur := t.CurrentState
		v.States = len(t.States)
		v.CurrentState = &cur
		v.Skipped = t.Skipped
		v.Remaining = t.Remaining
		v.Completed = t.Completed
	}
	return v
}

// NewHandler builds the debug router. Every route sits behind the token when
// one is set.
func NewHandler(src Sources, token string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(bearerAuth(token))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	if src.Gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(src.Gatherer, promhttp.HandlerOpts{}))
	}

	if src.Toasts != nil {
		r.Get("/toasts", func(w http.ResponseWriter, _ *http.Request) {
			app := src.Toasts.Appearance()
			resp := toastsResponse{
				Status:     src.Toasts.QueueStatus(),
				MaxVisible: src.Toasts.MaxVisible(),
				Position:   app.Position.String(),
				Animation:  app.Animation.String(),
				Theme:      app.Theme.String(),
				Toasts:     []toastView{},
			}
			for _, t := range src.Toasts.Toasts() {
				resp.Toasts = append(resp.Toasts, viewOf(t))
			}
			writeJSON(w, resp)
		})
	}

	if src.History != nil {
		r.Get("/history", func(w http.ResponseWriter, req *http.Request) {
			n := defaultHistoryLimit
			if raw := req.URL.Query().Get("n"); raw != "" {
				v, err := strconv.Atoi(raw)
				if err != nil || v <= 0 {
					http.Error(w, "n must be a positive integer", http.StatusBadRequest)
					return
				}
				n = min(v, maxHistoryLimit)
			}
			entries := src.History.Recent(n)
			if entries == nil {
				entries = []storage.Entry{}
			}
			writeJSON(w, entries)
		})
	}

	r.Route("/debug/pprof", func(r chi.Router) {
		r.HandleFunc("/", hpprof.Index)
		r.HandleFunc("/cmdline", hpprof.Cmdline)
		r.HandleFunc("/profile", hpprof.Profile)
		r.HandleFunc("/symbol", hpprof.Symbol)
		r.HandleFunc("/trace", hpprof.Trace)
		r.HandleFunc("/{name}", hpprof.Index)
	})
	return r
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

// bearerAuth accepts "Authorization: Bearer <token>" or ?token=<token>.
func bearerAuth(token string) func(http.Handler) http.Handler {
	tok := strings.TrimSpace(token)
	return func(next http.Handler) http.Handler {
		if tok == "" {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if got := r.URL.Query().Get("token"); got != "" {
				if got == tok {
					next.ServeHTTP(w, r)
					return
				}
				unauthorized(w)
				return
			}
			const p = "Bearer "
			if ah := r.Header.Get("Authorization"); strings.HasPrefix(ah, p) && strings.TrimSpace(strings.TrimPrefix(ah, p)) == tok {
				next.ServeHTTP(w, r)
				return
			}
			unauthorized(w)
		})
	}
}

func unauthorized(w http.ResponseWriter) {
	w.Header().Set("WWW-Authenticate", "Bearer")
	http.Error(w, "unauthorized", http.StatusUnauthorized)
}
