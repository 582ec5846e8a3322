package models

import "time"

// ExportSummary keeps the snake_case names downstream research tooling reads
type ExportSummary struct {
	PreTestScore       int `json:"pre_test_score"`
	PostTestScore      int `json:"post_test_score"`
	LearningGain       int `json:"learning_gain"`
	HighestNumberBuilt int `json:"highest_number_built"`
	TotalCoins         int `json:"total_coins"`
	TotalInteractions  int `json:"total_interactions"`
}

// ExportDocument is the downloadable analytics record for one learner
type ExportDocument struct {
	StudentName  string        `json:"student_name"`
	QuestID      QuestID       `json:"quest_id"`
	Summary      ExportSummary `json:"summary"`
	Interactions []Interaction `json:"interactions"`
	ExportDate   time.Time     `json:"export_date"`
}
