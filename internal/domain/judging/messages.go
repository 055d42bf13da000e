package judging

// User-facing notification texts.
const (
	msgScoresSaved        = "Scores saved successfully"
	msgScoresSaveFailed   = "Failed to save scores"
	msgScoresConflict     = "Scores were changed by another judge; reopen the session before saving"
	msgLoadFailed         = "Error fetching data"
	msgCriteriaSaved      = "Judging criteria saved successfully"
	msgCriteriaSaveFailed = "Failed to save judging criteria"
	msgCriteriaNames      = "Please fill in all criteria names"
	msgCriteriaWeights    = "Total weights must sum to 1.0"
	msgCriteriaInvalid    = "Judging criteria are invalid"
	msgStatusFailed       = "Error updating status"
)

func msgStatusUpdated(status string) string {
	return "Registration " + status + " successfully"
}
