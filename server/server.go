package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/siherrmann/ragchat"
	"github.com/siherrmann/ragchat/core/pipeline"
	"github.com/siherrmann/ragchat/core/session"
	"github.com/siherrmann/ragchat/model"
)

const SessionCookie = "ragchat_session"

// Server exposes the chatbot over a JSON HTTP API with one session per cookie.
type Server struct {
	chatbot       *ragchat.Chatbot
	sessions      *session.Manager
	maxUploadSize int64
	mux           *http.ServeMux
	log           *slog.Logger
}

type askRequest struct {
	Query string `json:"query"`
}

type askResponse struct {
	Answer    string `json:"answer"`
	SessionID string `json:"session_id"`
}

type historyResponse struct {
	SessionID          string                   `json:"session_id"`
	DocumentsProcessed bool                     `json:"documents_processed"`
	Messages           []model.ConversationTurn `json:"messages"`
}

type healthResponse struct {
	Status string `json:"status"`
	Chunks int    `json:"chunks"`
}

func New(chatbot *ragchat.Chatbot, logger *slog.Logger) *Server {
	s := &Server{
		chatbot:       chatbot,
		sessions:      session.NewManager(chatbot.Config.Server.MaxSessions, chatbot.Config.Server.SessionIdleTimeout),
		maxUploadSize: chatbot.Config.Server.MaxUploadSize,
		mux:           http.NewServeMux(),
		log:           logger,
	}
	if s.maxUploadSize <= 0 {
		s.maxUploadSize = 32 << 20
	}

	s.mux.HandleFunc("POST /api/upload", s.handleUpload)
	s.mux.HandleFunc("POST /api/ingest", s.handleIngest)
	s.mux.HandleFunc("POST /api/ask", s.handleAsk)
	s.mux.HandleFunc("GET /api/history", s.handleHistory)
	s.mux.HandleFunc("POST /api/session/reset", s.handleSessionReset)
	s.mux.HandleFunc("POST /api/chat/clear", s.handleChatClear)
	s.mux.HandleFunc("DELETE /api/index", s.handleClearIndex)
	s.mux.HandleFunc("GET /health", s.handleHealth)

	return s
}

// Handler returns the routes wrapped with CORS headers.
func (s *Server) Handler() http.Handler {
	return enableCORS(s.mux)
}

// ListenAndServe serves on address until ctx is done, then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context, address string) error {
	server := &http.Server{
		Addr:              address,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		s.log.Info("Shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			s.log.Error("Error shutting down server", slog.String("error", err.Error()))
		}
	}()

	s.log.Info("Starting server", slog.String("address", address))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func sessionID(r *http.Request) string {
	if cookie, err := r.Cookie(SessionCookie); err == nil {
		return cookie.Value
	}
	return ""
}

// session returns the session of the request cookie, creating and storing
// one if needed, and refreshes the cookie. Only routes that change the
// session or the index use it.
func (s *Server) session(w http.ResponseWriter, r *http.Request) *session.Session {
	sess := s.sessions.GetOrCreate(sessionID(r))
	setSessionCookie(w, sess)
	return sess
}

// currentSession returns the stored session of the request cookie.
// Without one it returns an empty session that is not stored.
func (s *Server) currentSession(r *http.Request) *session.Session {
	if sess, ok := s.sessions.Lookup(sessionID(r)); ok {
		return sess
	}
	return session.New()
}

func setSessionCookie(w http.ResponseWriter, sess *session.Session) {
	http.SetCookie(w, &http.Cookie{
		Name:     SessionCookie,
		Value:    sess.ID.String(),
		Path:     "/",
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})
}

// handleUpload stores the uploaded files in the documents directory
// and re-indexes the whole directory.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)

	r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadSize)
	if err := r.ParseMultipartForm(s.maxUploadSize); err != nil {
		respondWithError(w, fmt.Sprintf("Failed to parse upload: %v", err), http.StatusBadRequest)
		return
	}

	files := r.MultipartForm.File["files"]
	if len(files) == 0 {
		respondWithError(w, "No files uploaded, use the form field 'files'", http.StatusBadRequest)
		return
	}

	dir := s.chatbot.Config.Ingestion.DocsDirectory
	if err := os.MkdirAll(dir, 0750); err != nil {
		respondWithError(w, fmt.Sprintf("Failed to create documents directory: %v", err), http.StatusInternalServerError)
		return
	}

	// Every file is checked before the first one is written.
	loaders := pipeline.DefaultLoaders()
	names := make([]string, len(files))
	for i, header := range files {
		name := filepath.Base(header.Filename)
		if _, ok := loaders[strings.ToLower(filepath.Ext(name))]; !ok || name == "." || name == string(filepath.Separator) {
			respondWithError(w, fmt.Sprintf("Unsupported file: %s", header.Filename), http.StatusBadRequest)
			return
		}
		names[i] = name
	}

	saved := make([]string, 0, len(files))
	for i, header := range files {
		path := filepath.Join(dir, names[i])
		if err := saveUpload(header, path); err != nil {
			s.removeUploads(dir, saved)
			respondWithError(w, fmt.Sprintf("Failed to save %s: %v", names[i], err), http.StatusInternalServerError)
			return
		}
		saved = append(saved, names[i])
	}

	s.log.Info("Saved uploaded files", slog.Int("files", len(saved)), slog.String("session", sess.ID.String()))

	report, err := s.chatbot.IngestAndIndex(r.Context(), dir)
	if err != nil {
		respondWithError(w, fmt.Sprintf("Failed to index documents: %v", err), http.StatusInternalServerError)
		return
	}
	sess.MarkDocumentsProcessed()

	respondWithJSON(w, report)
}

// removeUploads deletes files saved by a failed upload so they are not indexed later.
func (s *Server) removeUploads(dir string, names []string) {
	for _, name := range names {
		if err := os.Remove(filepath.Join(dir, name)); err != nil && !errors.Is(err, os.ErrNotExist) {
			s.log.Error("Error removing uploaded file", slog.String("file", name), slog.String("error", err.Error()))
		}
	}
}

func saveUpload(header *multipart.FileHeader, path string) error {
	src, err := header.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	dst, err := os.OpenFile(filepath.Clean(path), os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return err
	}

	if _, err := io.Copy(dst, src); err != nil {
		_ = dst.Close()
		return err
	}
	return dst.Close()
}

func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)

	report, err := s.chatbot.IngestAndIndex(r.Context(), "")
	if err != nil {
		respondWithError(w, fmt.Sprintf("Failed to index documents: %v", err), http.StatusInternalServerError)
		return
	}
	if report.Chunks > 0 {
		sess.MarkDocumentsProcessed()
	}

	respondWithJSON(w, report)
}

func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	sess := s.session(w, r)

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		respondWithError(w, "Invalid JSON body", http.StatusBadRequest)
		return
	}

	answer := s.chatbot.Ask(r.Context(), sess, req.Query)

	respondWithJSON(w, askResponse{
		Answer:    answer,
		SessionID: sess.ID.String(),
	})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	sess := s.currentSession(r)

	respondWithJSON(w, historyResponse{
		SessionID:          sess.ID.String(),
		DocumentsProcessed: sess.DocumentsProcessed(),
		Messages:           sess.Messages(),
	})
}

// handleSessionReset replaces the session with a new one.
func (s *Server) handleSessionReset(w http.ResponseWriter, r *http.Request) {
	if old, ok := s.sessions.Lookup(sessionID(r)); ok {
		s.chatbot.ResetSession(old)
		s.sessions.Delete(old.ID)
	}

	sess := s.sessions.Create()
	setSessionCookie(w, sess)

	respondWithJSON(w, historyResponse{
		SessionID:          sess.ID.String(),
		DocumentsProcessed: sess.DocumentsProcessed(),
		Messages:           sess.Messages(),
	})
}

// handleChatClear drops the history but keeps the session.
func (s *Server) handleChatClear(w http.ResponseWriter, r *http.Request) {
	sess := s.currentSession(r)
	sess.ClearMessages()

	respondWithJSON(w, historyResponse{
		SessionID:          sess.ID.String(),
		DocumentsProcessed: sess.DocumentsProcessed(),
		Messages:           sess.Messages(),
	})
}

func (s *Server) handleClearIndex(w http.ResponseWriter, r *http.Request) {
	if err := s.chatbot.ClearIndex(r.Context()); err != nil {
		respondWithError(w, fmt.Sprintf("Failed to clear index: %v", err), http.StatusInternalServerError)
		return
	}

	respondWithJSON(w, healthResponse{Status: "cleared", Chunks: 0})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	count, err := s.chatbot.Count(r.Context())
	if err != nil {
		respondWithError(w, fmt.Sprintf("Failed to count chunks: %v", err), http.StatusServiceUnavailable)
		return
	}

	respondWithJSON(w, healthResponse{Status: "ok", Chunks: count})
}
