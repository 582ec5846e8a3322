package handlers

import (
	"net/http"
	"strconv"

	"abaquest/internal/catalog"
	"abaquest/internal/models"
	"abaquest/internal/service"
)

// QuestHandler drives the quest map and the phase walk of a running quest
type QuestHandler struct {
	catalog       *catalog.Catalog
	registry      *service.LearnerRegistry
	defaultLocale string
}

// NewQuestHandler creates a new quest handler
func NewQuestHandler(c *catalog.Catalog, registry *service.LearnerRegistry, defaultLocale string) *QuestHandler {
	return &QuestHandler{catalog: c, registry: registry, defaultLocale: defaultLocale}
}

type phaseView struct {
	Phase models.Phase `json:"phase"`
	Label string       `json:"label"`
}

type questCard struct {
	*models.QuestDefinition
	PhaseLabels []phaseView `json:"phaseLabels"`
	Unlocked    bool        `json:"unlocked"`
	Completed   bool        `json:"completed"`
	Active      bool        `json:"active"`
}

type questState struct {
	QuestID models.QuestID `json:"questId"`
	Phase   models.Phase   `json:"phase"`
	Label   string         `json:"label"`
}

type jumpRequest struct {
	Phase models.Phase `json:"phase"`
}

type answerRequest struct {
	Response string `json:"response"`
}

func (h *QuestHandler) locale(r *http.Request) string {
	if accept := r.Header.Get("Accept-Language"); accept != "" {
		return accept
	}
	return h.defaultLocale
}

func (h *QuestHandler) state(r *http.Request, id models.QuestID, phase models.Phase) questState {
	return questState{QuestID: id, Phase: phase, Label: h.catalog.PhaseLabel(phase, h.locale(r))}
}

// ListQuests returns the quest map with unlock and completion flags
func (h *QuestHandler) ListQuests(w http.ResponseWriter, r *http.Request) {
	learner := GetLearnerFromContext(r.Context())
	progress := learner.Snapshot()
	locale := h.locale(r)

	cards := make([]questCard, 0, len(h.catalog.Quests()))
	for _, q := range h.catalog.Quests() {
		labels := make([]phaseView, 0, len(q.Phases))
		for _, p := range q.Phases {
			labels = append(labels, phaseView{Phase: p, Label: h.catalog.PhaseLabel(p, locale)})
		}
		cards = append(cards, questCard{
			QuestDefinition: q,
			PhaseLabels:     labels,
			Unlocked:        progress.IsUnlocked(q.ID),
			Completed:       progress.HasCompleted(q.ID),
			Active:          progress.CurrentQuestID != nil && *progress.CurrentQuestID == q.ID,
		})
	}
	respondJSON(w, http.StatusOK, cards)
}

// StartQuest begins an attempt at the quest named in the path
func (h *QuestHandler) StartQuest(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.Atoi(r.PathValue("id"))
	if err != nil || id <= 0 {
		respondWithError(w, r, http.StatusBadRequest, "Invalid quest ID", "", err)
		return
	}
	learner := GetLearnerFromContext(r.Context())
	session, err := learner.StartQuest(r.Context(), models.QuestID(id))
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	phase, err := session.Phase()
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, h.state(r, session.QuestID(), phase))
}

func (h *QuestHandler) session(w http.ResponseWriter, r *http.Request) (*service.QuestSession, bool) {
	session, err := GetLearnerFromContext(r.Context()).Quest()
	if err != nil {
		respondWithServiceError(w, r, err)
		return nil, false
	}
	return session, true
}

// Current returns the running quest and its phase
func (h *QuestHandler) Current(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	phase, err := session.Phase()
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, h.state(r, session.QuestID(), phase))
}

// Advance moves the running quest to its next phase
func (h *QuestHandler) Advance(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	phase, err := session.Advance(r.Context())
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, h.state(r, session.QuestID(), phase))
}

// Jump moves the running quest straight to the requested phase
func (h *QuestHandler) Jump(w http.ResponseWriter, r *http.Request) {
	var req jumpRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if !req.Phase.Valid() {
		respondWithError(w, r, http.StatusBadRequest, "Unknown phase", "", nil)
		return
	}
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	phase, err := session.JumpTo(r.Context(), req.Phase)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, h.state(r, session.QuestID(), phase))
}

// Question returns the item currently posed
func (h *QuestHandler) Question(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	q, err := session.CurrentQuestion()
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, q)
}

// Answer checks and logs the learner's answer to the current item
func (h *QuestHandler) Answer(w http.ResponseWriter, r *http.Request) {
	var req answerRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	out, err := session.SubmitAnswer(r.Context(), req.Response)
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, out)
}

// Skip logs an "I don't know yet" for the current item
func (h *QuestHandler) Skip(w http.ResponseWriter, r *http.Request) {
	session, ok := h.session(w, r)
	if !ok {
		return
	}
	out, err := session.Skip(r.Context())
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	respondJSON(w, http.StatusOK, out)
}

// Finalize completes the quest at its closing phase and returns the results
func (h *QuestHandler) Finalize(w http.ResponseWriter, r *http.Request) {
	learner := GetLearnerFromContext(r.Context())
	result, err := learner.Finalize(r.Context())
	if err != nil {
		respondWithServiceError(w, r, err)
		return
	}
	if err := h.registry.Sync(r.Context(), learner.StudentID()); err != nil {
		loggerFrom(r.Context()).Warn("progress not mirrored after quest", "error", err)
	}
	loggerFrom(r.Context()).Info("quest finalized",
		"quest_id", result.QuestID,
		"learning_gain", result.LearningGain,
		"coins_awarded", result.CoinsAwarded,
	)
	respondJSON(w, http.StatusOK, result)
}
