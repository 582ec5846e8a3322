package handlers

import (
	"net/http"
)

// Router bundles the handlers served by the device API
type Router struct {
	Middleware *Middleware
	Startup    *StartupStatus
	Identity   *IdentityHandler
	Quests     *QuestHandler
	Progress   *ProgressHandler
	Operator   *OperatorHandler
}

// Mux registers every route
func (rt *Router) Mux() *http.ServeMux {
	m := rt.Middleware
	mux := http.NewServeMux()

	// Public routes
	mux.HandleFunc("GET /api/status", rt.Startup.ShowStartupStatus)
	mux.HandleFunc("GET /api/roster", rt.Identity.Roster)
	mux.HandleFunc("GET /api/identity/gate", rt.Identity.GateState)
	mux.HandleFunc("POST /api/identity/select", rt.Identity.Select)
	mux.HandleFunc("POST /api/identity/unlock", rt.Identity.Unlock)
	mux.HandleFunc("POST /api/identity/acknowledge", rt.Identity.Acknowledge)
	mux.HandleFunc("POST /api/identity/back", rt.Identity.Back)

	// Learner routes
	mux.HandleFunc("POST /api/identity/logout", m.RequireLearner(rt.Identity.Logout))
	mux.HandleFunc("GET /api/quests", m.RequireLearner(rt.Quests.ListQuests))
	mux.HandleFunc("POST /api/quests/{id}/start", m.RequireLearner(rt.Quests.StartQuest))
	mux.HandleFunc("GET /api/quest", m.RequireLearner(rt.Quests.Current))
	mux.HandleFunc("POST /api/quest/advance", m.RequireLearner(rt.Quests.Advance))
	mux.HandleFunc("POST /api/quest/jump", m.RequireLearner(rt.Quests.Jump))
	mux.HandleFunc("GET /api/quest/question", m.RequireLearner(rt.Quests.Question))
	mux.HandleFunc("POST /api/quest/answer", m.RequireLearner(rt.Quests.Answer))
	mux.HandleFunc("POST /api/quest/skip", m.RequireLearner(rt.Quests.Skip))
	mux.HandleFunc("POST /api/quest/finalize", m.RequireLearner(rt.Quests.Finalize))

	mux.HandleFunc("GET /api/progress", m.RequireLearner(rt.Progress.GetProgress))
	mux.HandleFunc("POST /api/progress/name", m.RequireLearner(rt.Progress.SetName))
	mux.HandleFunc("POST /api/progress/emotion", m.RequireLearner(rt.Progress.SetEmotion))
	mux.HandleFunc("POST /api/progress/coins", m.RequireLearner(rt.Progress.AddCoins))
	mux.HandleFunc("POST /api/progress/reset", m.RequireLearner(rt.Progress.Reset))
	mux.HandleFunc("GET /api/export", m.RequireLearner(rt.Progress.Export))

	// Operator routes
	mux.HandleFunc("GET /api/operator/roster", m.RequireOperator(rt.Operator.Dashboard))
	mux.HandleFunc("POST /api/operator/profiles", m.RequireOperator(rt.Operator.CreateProfile))
	mux.HandleFunc("POST /api/operator/profiles/{id}/reset-pass", m.RequireOperator(rt.Operator.ResetBeadPass))
	mux.HandleFunc("GET /api/operator/backup", m.RequireOperator(rt.Operator.ExportBackup))
	mux.HandleFunc("POST /api/operator/backup", m.RequireOperator(rt.Operator.ImportBackup))

	return mux
}
