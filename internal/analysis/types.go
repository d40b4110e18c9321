package analysis

import "time"

// SchemaVersion tags persisted dimension payloads so that historical rows
// written under an older dimension set remain parseable.
const SchemaVersion = 1

// ScoreDimension is one named, weighted facet of profile quality.
type ScoreDimension struct {
	Name     string  `json:"name"`
	Weight   float64 `json:"weight"`
	Score    float64 `json:"score"`
	MaxScore float64 `json:"max_score"`
	Details  string  `json:"details"`
}

// ProfileScore is the aggregate result of one analysis run. Immutable once
// returned; corrections require a new run.
type ProfileScore struct {
	Overall        int                       `json:"overall"`
	Dimensions     map[string]ScoreDimension `json:"dimensions"`
	Improvement    *float64                  `json:"improvement"`
	LastAnalyzedAt time.Time                 `json:"last_analyzed_at"`
	AnalysisID     string                    `json:"analysis_id"`
}

// Fixed dimension keys.
const (
	DimRepositoryQuality    = "repositoryQuality"
	DimDocumentation        = "documentation"
	DimContributionActivity = "contributionActivity"
	DimCodeQuality          = "codeQuality"
	DimProjectImpact        = "projectImpact"
	DimEngineeringPractices = "engineeringPractices"
	DimTechDiversity        = "techDiversity"
	DimCollaboration        = "collaboration"
	DimProfilePresentation  = "profilePresentation"
)

// DimensionKeys lists the nine fixed dimension keys in canonical order.
var DimensionKeys = []string{
	DimRepositoryQuality,
	DimDocumentation,
	DimContributionActivity,
	DimCodeQuality,
	DimProjectImpact,
	DimEngineeringPractices,
	DimTechDiversity,
	DimCollaboration,
	DimProfilePresentation,
}

type dimensionSpec struct {
	name   string
	weight float64
}

// The weight table is a compile-time constant set; it is never derived from
// the dimension map at runtime. Weights sum to 1.0 (asserted in tests).
var dimensions = map[string]dimensionSpec{
	DimRepositoryQuality:    {name: "Repository Quality", weight: 0.25},
	DimDocumentation:        {name: "Documentation", weight: 0.15},
	DimContributionActivity: {name: "Contribution Activity", weight: 0.15},
	DimCodeQuality:          {name: "Code Quality", weight: 0.15},
	DimProjectImpact:        {name: "Project Impact", weight: 0.10},
	DimEngineeringPractices: {name: "Engineering Practices", weight: 0.08},
	DimTechDiversity:        {name: "Tech Diversity", weight: 0.05},
	DimCollaboration:        {name: "Collaboration", weight: 0.04},
	DimProfilePresentation:  {name: "Profile Presentation", weight: 0.03},
}

// Weight returns the fixed weight for a dimension key, or 0 for an unknown key.
func Weight(key string) float64 {
	return dimensions[key].weight
}

// DimensionName returns the display label for a dimension key.
func DimensionName(key string) string {
	return dimensions[key].name
}
