package http

import (
	"net/http"
	"strings"
	"unicode/utf8"

	"finsight/internal/insights"
	"finsight/internal/log"
)

const maxQuestionLen = 1000

func (s *Server) handleOverview(w http.ResponseWriter, r *http.Request) {
	ov, err := s.deps.Dashboard.Overview(r.Context())
	if err != nil {
		FromError(r.Context(), err).Write(w)
		return
	}
	NewJSONResponse().Body(ov).Write(w)
}

// CategoryList is the body of the category endpoints. Drift lists
// categories used by cached transactions that the local list lacks.
type CategoryList struct {
	Categories []string `json:"categories"`
	Drift      []string `json:"drift"`
	Added      *bool    `json:"added,omitempty"`
}

func (s *Server) categoryList() CategoryList {
	drift := s.deps.Categories.Drift(s.deps.Store.Transactions())
	if drift == nil {
		drift = []string{}
	}
	return CategoryList{Categories: s.deps.Categories.Names(), Drift: drift}
}

func (s *Server) handleListCategories(w http.ResponseWriter, _ *http.Request) {
	NewJSONResponse().Body(s.categoryList()).Write(w)
}

func (s *Server) handleAddCategory(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Name string `json:"name"`
	}
	if err := DecodeJSON(w, r, &in); err != nil {
		FromError(r.Context(), err).Write(w)
		return
	}

	added, err := s.deps.Categories.Add(r.Context(), sanitizeInput(in.Name))
	if err != nil {
		FromError(r.Context(), err).Write(w)
		return
	}
	status := http.StatusOK
	if added {
		status = http.StatusCreated
	}
	body := s.categoryList()
	body.Added = &added
	NewJSONResponse().Status(status).Body(body).Write(w)
}

func (s *Server) handleStreak(w http.ResponseWriter, r *http.Request) {
	streak, err := s.deps.Prefs.Streak(r.Context(), s.now())
	if err != nil {
		FromError(r.Context(), err).Write(w)
		return
	}
	NewJSONResponse().Body(streak).Write(w)
}

func (s *Server) handleCheckIn(w http.ResponseWriter, r *http.Request) {
	streak, err := s.deps.Prefs.CheckIn(r.Context(), s.now())
	if err != nil {
		FromError(r.Context(), err).Write(w)
		return
	}
	NewJSONResponse().Body(streak).Write(w)
}

type themeBody struct {
	Theme string `json:"theme"`
}

func (s *Server) handleGetTheme(w http.ResponseWriter, r *http.Request) {
	theme, err := s.deps.Prefs.Theme(r.Context())
	if err != nil {
		FromError(r.Context(), err).Write(w)
		return
	}
	NewJSONResponse().Body(themeBody{Theme: theme}).Write(w)
}

func (s *Server) handleSetTheme(w http.ResponseWriter, r *http.Request) {
	var in themeBody
	if err := DecodeJSON(w, r, &in); err != nil {
		FromError(r.Context(), err).Write(w)
		return
	}
	if err := s.deps.Prefs.SetTheme(r.Context(), in.Theme); err != nil {
		FromError(r.Context(), err).Write(w)
		return
	}
	theme, err := s.deps.Prefs.Theme(r.Context())
	if err != nil {
		FromError(r.Context(), err).Write(w)
		return
	}
	NewJSONResponse().Body(themeBody{Theme: theme}).Write(w)
}

// InsightsAnswer is the body of POST /api/insights.
type InsightsAnswer struct {
	Question string           `json:"question"`
	Answer   string           `json:"answer"`
	Chunks   int              `json:"chunks"`
	Context  insights.Context `json:"context"`
}

func (s *Server) handleInsights(w http.ResponseWriter, r *http.Request) {
	if err := configured(s.deps.Assistant != nil, "insights"); err != nil {
		FromError(r.Context(), err).Write(w)
		return
	}

	var in struct {
		Question string `json:"question"`
	}
	if err := DecodeJSON(w, r, &in); err != nil {
		FromError(r.Context(), err).Write(w)
		return
	}
	question := strings.TrimSpace(sanitizeInput(in.Question))
	switch {
	case question == "":
		BadRequestError("question is required").Write(w)
		return
	case utf8.RuneCountInString(question) > maxQuestionLen:
		BadRequestError("question is too long").Write(w)
		return
	}

	ov, err := s.deps.Dashboard.Overview(r.Context())
	if err != nil {
		FromError(r.Context(), err).Write(w)
		return
	}
	ans, err := s.deps.Assistant.Ask(r.Context(), question, ov)
	if err != nil {
		FromError(r.Context(), err).Write(w)
		return
	}

	log.FromContext(r.Context()).InfoContext(r.Context(), "Insights answered", "chunks", ans.Chunks)
	NewJSONResponse().Body(InsightsAnswer{
		Question: question,
		Answer:   ans.Text,
		Chunks:   ans.Chunks,
		Context:  insights.ContextFrom(ov),
	}).Write(w)
}
