package server

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/timoshinoleg-eng/habit/internal/domain"
	"github.com/timoshinoleg-eng/habit/internal/repository"
	"github.com/timoshinoleg-eng/habit/internal/service"
)

// Server is the mini-app HTTP API. All /api routes require the shared
// bearer secret plus the caller's Telegram id.
type Server struct {
	repo     repository.Repository
	habitSvc *service.HabitService
	secret   string
	port     string
}

func NewServer(repo repository.Repository, habitSvc *service.HabitService, secret, port string) *Server {
	return &Server{repo: repo, habitSvc: habitSvc, secret: secret, port: port}
}

func (s *Server) Start(ctx context.Context) error {
	mux := http.NewServeMux()
	mux.HandleFunc("/health", s.healthHandler)
	mux.HandleFunc("/api/habits", s.auth(s.habitsHandler))
	mux.HandleFunc("/api/habits/", s.auth(s.habitLogHandler))

	server := &http.Server{Addr: ":" + s.port, Handler: mux}

	go func() {
		<-ctx.Done()
		server.Shutdown(context.Background())
	}()

	log.Printf("HTTP server started on port %s", s.port)
	return server.ListenAndServe()
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

func (s *Server) auth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.secret == "" {
			http.Error(w, "API disabled", http.StatusServiceUnavailable)
			return
		}
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		if token != s.secret {
			http.Error(w, "Unauthorized", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// caller resolves the user from the X-Telegram-ID header.
func (s *Server) caller(r *http.Request) (*domain.User, error) {
	telegramID, err := strconv.ParseInt(r.Header.Get("X-Telegram-ID"), 10, 64)
	if err != nil {
		return nil, err
	}
	return s.repo.GetUserByTelegramID(r.Context(), telegramID)
}

type habitResponse struct {
	ID             int64   `json:"id"`
	Name           string  `json:"name"`
	Emoji          string  `json:"emoji"`
	Frequency      string  `json:"frequency"`
	ReminderTime   *string `json:"reminder_time"`
	CurrentStreak  int     `json:"current_streak"`
	BestStreak     int     `json:"best_streak"`
	CompletedToday bool    `json:"completed_today"`
}

func (s *Server) habitsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	user, err := s.caller(r)
	if err != nil {
		http.Error(w, "Unknown user", http.StatusBadRequest)
		return
	}

	habits, err := s.habitSvc.GetUserHabits(r.Context(), user.ID)
	if err != nil {
		log.Printf("Error listing habits for user %d: %v", user.ID, err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}
	completedToday, _ := s.habitSvc.GetTodayStatus(r.Context(), user)

	resp := make([]habitResponse, 0, len(habits))
	for _, h := range habits {
		resp = append(resp, habitResponse{
			ID:             h.ID,
			Name:           h.Name,
			Emoji:          h.Emoji,
			Frequency:      string(h.Frequency),
			ReminderTime:   h.ReminderTime,
			CurrentStreak:  h.CurrentStreak,
			BestStreak:     h.BestStreak,
			CompletedToday: completedToday[h.ID],
		})
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(resp)
}

// habitLogHandler serves POST /api/habits/{id}/log.
func (s *Server) habitLogHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	parts := strings.Split(strings.Trim(r.URL.Path, "/"), "/")
	// api / habits / {id} / log
	if len(parts) != 4 || parts[3] != "log" {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}
	habitID, err := strconv.ParseInt(parts[2], 10, 64)
	if err != nil {
		http.Error(w, "Bad habit id", http.StatusBadRequest)
		return
	}

	user, err := s.caller(r)
	if err != nil {
		http.Error(w, "Unknown user", http.StatusBadRequest)
		return
	}

	habit, err := s.habitSvc.GetHabit(r.Context(), habitID, user.ID)
	if err != nil {
		http.Error(w, "Not found", http.StatusNotFound)
		return
	}

	var body struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		http.Error(w, "Bad request", http.StatusBadRequest)
		return
	}

	switch body.Status {
	case "", string(domain.StatusCompleted):
		err = s.habitSvc.CompleteHabit(r.Context(), habit, user)
	case string(domain.StatusSkipped):
		err = s.habitSvc.SkipHabit(r.Context(), habit, user)
	default:
		http.Error(w, "Bad status", http.StatusBadRequest)
		return
	}
	if err != nil {
		log.Printf("Error logging habit %d: %v", habitID, err)
		http.Error(w, "Internal error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]any{
		"ok":             true,
		"current_streak": habit.CurrentStreak,
		"best_streak":    habit.BestStreak,
	})
}
