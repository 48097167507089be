package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/cors"

	"github.com/antufev/gracebot/internal/domain"
	"github.com/antufev/gracebot/internal/service"
	"github.com/antufev/gracebot/internal/storage"
)

// Server exposes the engine's domain operations over HTTP for the app
// screens that consume them.
type Server struct {
	svc      *service.NotificationService
	calendar *service.CalendarService
	http     *http.Server
}

func New(svc *service.NotificationService, calendar *service.CalendarService, port string) *Server {
	s := &Server{svc: svc, calendar: calendar}
	s.http = &http.Server{
		Addr:    ":" + port,
		Handler: s.routes(),
	}
	return s
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{
			"status": "ok",
			"engine": string(s.svc.State()),
		})
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Post("/reminders/content", s.scheduleContent)
		r.Post("/reminders/faith", s.scheduleFaith)
		r.Post("/reminders/analytics", s.scheduleAnalytics)
		r.Patch("/reminders/{id}", s.toggleReminder)

		r.Post("/notifications", s.sendImmediate)
		r.Delete("/notifications/{osID}", s.cancel)
		r.Delete("/notifications", s.cancelAll)

		r.Get("/users/{userID}/reminders", s.listReminders)
		r.Get("/users/{userID}/calendar.ics", s.exportCalendar)

		r.Post("/push/send", s.sendPush)
		r.Get("/push/token", s.pushToken)
		r.Get("/permissions", s.checkPermissions)
		r.Post("/permissions/request", s.requestPermissions)
	})

	return r
}

func (s *Server) Start() error {
	log.Printf("HTTP server listening on %s", s.http.Addr)
	if err := s.http.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.http.Shutdown(ctx)
}

type contentReminderRequest struct {
	Title    string    `json:"title"`
	When     time.Time `json:"when"`
	Platform string    `json:"platform"`
	UserID   string    `json:"user_id"`
}

func (s *Server) scheduleContent(w http.ResponseWriter, r *http.Request) {
	var req contentReminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Title == "" || req.UserID == "" || req.When.IsZero() {
		writeError(w, http.StatusBadRequest, "title, when and user_id are required")
		return
	}

	osID, err := s.svc.ScheduleContentReminder(req.Title, req.When, req.Platform, req.UserID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"os_id": osID})
}

type faithReminderRequest struct {
	UserID string    `json:"user_id"`
	Time   time.Time `json:"time"`
}

func (s *Server) scheduleFaith(w http.ResponseWriter, r *http.Request) {
	var req faithReminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.UserID == "" || req.Time.IsZero() {
		writeError(w, http.StatusBadRequest, "user_id and time are required")
		return
	}

	osID, err := s.svc.ScheduleFaithEncouragement(req.UserID, req.Time)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"os_id": osID})
}

type analyticsReminderRequest struct {
	UserID    string `json:"user_id"`
	Frequency string `json:"frequency"`
}

func (s *Server) scheduleAnalytics(w http.ResponseWriter, r *http.Request) {
	var req analyticsReminderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	osID, err := s.svc.ScheduleAnalyticsReview(req.UserID, domain.ReviewFrequency(req.Frequency))
	if err != nil {
		if errors.Is(err, service.ErrUnknownFrequency) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]int64{"os_id": osID})
}

type toggleRequest struct {
	IsActive bool `json:"is_active"`
}

func (s *Server) toggleReminder(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var req toggleRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.svc.ToggleReminder(id, req.IsActive); err != nil {
		if errors.Is(err, storage.ErrReminderNotFound) {
			writeError(w, http.StatusNotFound, "reminder not found")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]bool{"is_active": req.IsActive})
}

type immediateRequest struct {
	Title string            `json:"title"`
	Body  string            `json:"body"`
	Data  map[string]string `json:"data,omitempty"`
}

func (s *Server) sendImmediate(w http.ResponseWriter, r *http.Request) {
	var req immediateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.svc.SendImmediate(req.Title, req.Body, req.Data); err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) cancel(w http.ResponseWriter, r *http.Request) {
	osID, err := strconv.ParseInt(chi.URLParam(r, "osID"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid os id")
		return
	}
	s.svc.Cancel(osID)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) cancelAll(w http.ResponseWriter, r *http.Request) {
	s.svc.CancelAll()
	w.WriteHeader(http.StatusNoContent)
}

type reminderResponse struct {
	ID           string            `json:"id"`
	Kind         string            `json:"kind"`
	Title        string            `json:"title"`
	Message      string            `json:"message,omitempty"`
	ScheduledFor time.Time         `json:"scheduled_for"`
	UserID       string            `json:"user_id"`
	IsActive     bool              `json:"is_active"`
	Metadata     map[string]string `json:"metadata,omitempty"`
}

func (s *Server) listReminders(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "userID")

	reminders, err := s.svc.GetUserReminders(userID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	resp := make([]reminderResponse, 0, len(reminders))
	for _, rem := range reminders {
		resp = append(resp, reminderResponse{
			ID:           rem.ID,
			Kind:         string(rem.Kind),
			Title:        rem.Title,
			Message:      rem.Message,
			ScheduledFor: rem.ScheduledFor,
			UserID:       rem.UserID,
			IsActive:     rem.IsActive,
			Metadata:     rem.Metadata,
		})
	}
	writeJSON(w, http.StatusOK, resp)
}

func (s *Server) exportCalendar(w http.ResponseWriter, r *http.Request) {
	if s.calendar == nil {
		writeError(w, http.StatusNotFound, "calendar export not available")
		return
	}

	ics, err := s.calendar.ExportUserICS(chi.URLParam(r, "userID"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	w.Header().Set("Content-Type", "text/calendar; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	w.Write(ics)
}

func (s *Server) sendPush(w http.ResponseWriter, r *http.Request) {
	var req immediateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if err := s.svc.SendPush(r.Context(), req.Title, req.Body, req.Data); err != nil {
		writeError(w, http.StatusBadGateway, err.Error())
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) pushToken(w http.ResponseWriter, r *http.Request) {
	token := s.svc.GetPushToken()
	writeJSON(w, http.StatusOK, map[string]any{
		"token": token,
		"set":   token != "",
	})
}

func (s *Server) checkPermissions(w http.ResponseWriter, r *http.Request) {
	status, err := s.svc.CheckPermissions(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(status)})
}

func (s *Server) requestPermissions(w http.ResponseWriter, r *http.Request) {
	status, err := s.svc.RequestPermissions(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": string(status)})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("Error encoding response: %v", err)
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
