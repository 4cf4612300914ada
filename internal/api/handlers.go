package api

import (
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/MikeSquared-Agency/zihin/internal/advisor"
	"github.com/MikeSquared-Agency/zihin/internal/analysis"
	"github.com/MikeSquared-Agency/zihin/internal/retrieval"
)

const (
	defaultSimilar = 5
	maxSimilar     = 20
	ragAgentType   = "RAG Agent - Terapi Teknikleri"
)

type analyzeRequest struct {
	Text      string `json:"text"`
	UserID    string `json:"user_id,omitempty"`
	EntryID   string `json:"entry_id,omitempty"`
	MoodScore int    `json:"mood_score,omitempty"`
}

func (a analyzeRequest) toAnalysis(userID string) analysis.Request {
	return analysis.Request{Text: a.Text, UserID: userID, EntryID: a.EntryID, MoodScore: a.MoodScore}
}

func (s *Server) analyze(w http.ResponseWriter, r *http.Request) {
	var req analyzeRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	res, err := s.deps.Analyzer.Analyze(r.Context(), req.toAnalysis(resolveUser(r, req.UserID)))
	if errors.Is(err, analysis.ErrValidation) {
		writeError(w, http.StatusUnprocessableEntity, err.Error())
		return
	}
	if err != nil {
		s.logger.Error("analysis failed", "error", err)
		writeError(w, http.StatusInternalServerError, "Analiz sırasında beklenmeyen bir hata oluştu")
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) analyzeBatch(w http.ResponseWriter, r *http.Request) {
	var reqs []analyzeRequest
	if err := decodeJSON(w, r, &reqs); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	batch := make([]analysis.Request, 0, len(reqs))
	for _, req := range reqs {
		batch = append(batch, req.toAnalysis(resolveUser(r, req.UserID)))
	}
	writeJSON(w, http.StatusOK, s.deps.Analyzer.AnalyzeBatch(r.Context(), batch, s.deps.BatchConcurrency))
}

type techniquesRequest struct {
	DistortionType string `json:"distortion_type"`
	UserContext    string `json:"user_context,omitempty"`
	UserID         string `json:"user_id,omitempty"`
}

type multipleRequest struct {
	DistortionTypes []string `json:"distortion_types"`
	UserContext     string   `json:"user_context,omitempty"`
	UserID          string   `json:"user_id,omitempty"`
}

type envelope struct {
	Success bool   `json:"success"`
	Data    any    `json:"data"`
	UserID  string `json:"user_id,omitempty"`
}

func (s *Server) techniques(w http.ResponseWriter, r *http.Request) {
	var req techniquesRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if strings.TrimSpace(req.DistortionType) == "" {
		writeError(w, http.StatusUnprocessableEntity, "distortion_type gerekli")
		return
	}

	userID := resolveUser(r, req.UserID)
	resp := s.deps.Advisor.GetTechniques(r.Context(), advisor.Request{
		DistortionType: req.DistortionType,
		UserContext:    req.UserContext,
		UserID:         userID,
	})
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: resp, UserID: userID})
}

func (s *Server) multipleTechniques(w http.ResponseWriter, r *http.Request) {
	var req multipleRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	if len(req.DistortionTypes) == 0 {
		writeError(w, http.StatusUnprocessableEntity, "distortion_types boş olamaz")
		return
	}

	userID := resolveUser(r, req.UserID)
	resp := s.deps.Advisor.GetMultiple(r.Context(), req.DistortionTypes, req.UserContext, userID)
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: resp, UserID: userID})
}

func (s *Server) distortions(w http.ResponseWriter, r *http.Request) {
	list := s.deps.Advisor.Distortions()
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: map[string]any{
		"distortions":      list.Distortions,
		"summary":          list.TechniqueSummary,
		"total_techniques": list.TotalTechniques,
	}})
}

func (s *Server) ragHealth(w http.ResponseWriter, r *http.Request) {
	list := s.deps.Advisor.Distortions()
	body := map[string]any{
		"status":                "healthy",
		"available_distortions": len(list.Distortions),
		"total_techniques":      list.TotalTechniques,
		"agent_type":            ragAgentType,
		"vector_store":          s.vectorState(r.Context()),
	}
	if s.deps.History != nil && s.deps.History.Available() {
		if stats, err := s.deps.History.Stats(r.Context()); err == nil {
			body["collections"] = stats
		} else {
			s.logger.Warn("collection stats unavailable", "error", err)
		}
	}
	writeJSON(w, http.StatusOK, body)
}

func (s *Server) userPatterns(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	summary, err := s.deps.History.UserPatterns(r.Context(), userID)
	if err != nil {
		s.historyError(w, "user patterns", err)
		return
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: summary, UserID: userID})
}

func (s *Server) similarEntries(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	query := strings.TrimSpace(r.URL.Query().Get("q"))
	if query == "" {
		writeError(w, http.StatusUnprocessableEntity, "q parametresi gerekli")
		return
	}
	n := defaultSimilar
	if raw := r.URL.Query().Get("n"); raw != "" {
		v, err := strconv.Atoi(raw)
		if err != nil || v < 1 {
			writeError(w, http.StatusUnprocessableEntity, "n pozitif bir tam sayı olmalı")
			return
		}
		n = min(v, maxSimilar)
	}

	entries, err := s.deps.History.SimilarEntries(r.Context(), userID, query, n)
	if err != nil {
		s.historyError(w, "similar entries", err)
		return
	}
	if entries == nil {
		entries = []retrieval.SimilarEntry{}
	}
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: entries, UserID: userID})
}

func (s *Server) clearHistory(w http.ResponseWriter, r *http.Request) {
	userID := chi.URLParam(r, "id")
	deleted, err := s.deps.History.ClearUser(r.Context(), userID)
	if err != nil {
		s.historyError(w, "clear history", err)
		return
	}
	s.logger.Info("user history cleared", "user_id", userID, "deleted", deleted)
	writeJSON(w, http.StatusOK, envelope{Success: true, Data: map[string]int{"deleted": deleted}, UserID: userID})
}

func (s *Server) historyError(w http.ResponseWriter, op string, err error) {
	if errors.Is(err, retrieval.ErrUnavailable) {
		writeError(w, http.StatusServiceUnavailable, "Vektör veritabanı kullanılamıyor")
		return
	}
	s.logger.Error(op+" failed", "error", err)
	writeError(w, http.StatusInternalServerError, "Kullanıcı geçmişi okunamadı")
}
