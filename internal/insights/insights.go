package insights

// AIRecommendation is one concrete suggestion for improving a profile.
type AIRecommendation struct {
	Category        string   `json:"category"`
	Title           string   `json:"title"`
	Description     string   `json:"description"`
	Priority        string   `json:"priority"` // high, medium or low
	ActionItems     []string `json:"actionItems"`
	EstimatedImpact string   `json:"estimatedImpact"`
}

// AIInsight is the full recommendation payload for one analysis run.
type AIInsight struct {
	Summary         string             `json:"summary"`
	Recommendations []AIRecommendation `json:"recommendations"`
	Strengths       []string           `json:"strengths"`
	Improvements    []string           `json:"improvements"`
}
