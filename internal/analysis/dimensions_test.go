package analysis

import (
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/gitprofile/analyzer/internal/types"
)

func testRepo(name string, mutate func(*types.Repository)) types.Repository {
	r := types.Repository{
		ID:        "repo-" + name,
		Name:      name,
		URL:       "https://github.com/tester/" + name,
		UpdatedAt: time.Now(),
	}
	if mutate != nil {
		mutate(&r)
	}
	return r
}

// activeFleet builds ten repositories with five stars each, one language,
// five of them carrying a long description, all updated within the last week.
func activeFleet(now time.Time) []types.Repository {
	repos := make([]types.Repository, 0, 10)
	for i := 0; i < 10; i++ {
		idx := i
		repos = append(repos, testRepo(fmt.Sprintf("repo-%d", i), func(r *types.Repository) {
			r.Stars = 5
			r.Language = "Go"
			r.UpdatedAt = now.Add(-7 * 24 * time.Hour)
			if idx < 5 {
				r.Description = strings.Repeat("a", 60)
			}
		}))
	}
	return repos
}

func TestScoreRepositoryQuality(t *testing.T) {
	now := time.Now()

	tests := []struct {
		name      string
		repos     []types.Repository
		wantScore float64
	}{
		{
			name:      "empty profile scores zero",
			repos:     nil,
			wantScore: 0,
		},
		{
			// count capped at 40, avg 5 stars capped at 30, half described = 15
			name:      "active fleet",
			repos:     activeFleet(now),
			wantScore: 85,
		},
		{
			name: "single bare repo",
			repos: []types.Repository{
				testRepo("solo", nil),
			},
			wantScore: 5, // 1/20*100
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dim := ScoreRepositoryQuality(tt.repos)
			assert.InDelta(t, tt.wantScore, dim.Score, 0.001)
			assert.Equal(t, Weight(DimRepositoryQuality), dim.Weight)
			assert.NotEmpty(t, dim.Details)
		})
	}
}

func TestScoreRepositoryQualityEmptyDetails(t *testing.T) {
	dim := ScoreRepositoryQuality(nil)
	assert.Equal(t, "No public repositories found", dim.Details)
}

func TestScoreDocumentation(t *testing.T) {
	now := time.Now()

	t.Run("empty", func(t *testing.T) {
		dim := ScoreDocumentation(nil)
		assert.Zero(t, dim.Score)
		assert.Equal(t, "No repositories to analyze", dim.Details)
	})

	t.Run("half documented", func(t *testing.T) {
		// 5/10 detailed = 25, avg length 30 chars = 7.5
		dim := ScoreDocumentation(activeFleet(now))
		assert.InDelta(t, 32.5, dim.Score, 0.001)
	})

	t.Run("long descriptions cap the length term", func(t *testing.T) {
		repos := []types.Repository{
			testRepo("a", func(r *types.Repository) { r.Description = strings.Repeat("x", 400) }),
		}
		dim := ScoreDocumentation(repos)
		assert.InDelta(t, 100, dim.Score, 0.001)
	})
}

func TestScoreContributionActivity(t *testing.T) {
	tests := []struct {
		name      string
		followers int
		following int
		ageYears  float64
		wantScore float64
	}{
		{"new account", 0, 0, 0, 0},
		{"all terms saturated", 100, 200, 10, 100},
		{"oversaturated stays capped", 5000, 9000, 30, 100},
		{"partial", 50, 100, 5, 20 + 15 + 15},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dim := ScoreContributionActivity(tt.followers, tt.following, tt.ageYears)
			assert.InDelta(t, tt.wantScore, dim.Score, 0.001)
		})
	}
}

func TestScoreCodeQuality(t *testing.T) {
	now := time.Now()

	t.Run("empty", func(t *testing.T) {
		assert.Zero(t, ScoreCodeQuality(nil, now).Score)
	})

	t.Run("single language all fresh", func(t *testing.T) {
		// 1/5*40 = 8, 10/10*60 = 60
		dim := ScoreCodeQuality(activeFleet(now), now)
		assert.InDelta(t, 68, dim.Score, 0.001)
	})

	t.Run("stale repos earn no recency", func(t *testing.T) {
		repos := []types.Repository{
			testRepo("old", func(r *types.Repository) {
				r.Language = "Rust"
				r.UpdatedAt = now.Add(-365 * 24 * time.Hour)
			}),
		}
		dim := ScoreCodeQuality(repos, now)
		assert.InDelta(t, 8, dim.Score, 0.001)
	})
}

func TestScoreProjectImpact(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		assert.Zero(t, ScoreProjectImpact(nil).Score)
	})

	t.Run("half saturated", func(t *testing.T) {
		repos := []types.Repository{
			testRepo("a", func(r *types.Repository) { r.Stars = 50; r.Forks = 25 }),
		}
		dim := ScoreProjectImpact(repos)
		assert.InDelta(t, 50, dim.Score, 0.001)
	})

	t.Run("fully saturated", func(t *testing.T) {
		repos := []types.Repository{
			testRepo("a", func(r *types.Repository) { r.Stars = 1000; r.Forks = 500 }),
		}
		assert.InDelta(t, 100, ScoreProjectImpact(repos).Score, 0.001)
	})
}

func TestScoreEngineeringPractices(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		assert.Zero(t, ScoreEngineeringPractices(nil).Score)
	})

	t.Run("topics and one language", func(t *testing.T) {
		repos := make([]types.Repository, 0, 10)
		for i := 0; i < 10; i++ {
			idx := i
			repos = append(repos, testRepo(fmt.Sprintf("r%d", i), func(r *types.Repository) {
				r.Language = "Go"
				if idx < 4 {
					r.Topics = []string{"cli"}
				}
			}))
		}
		// 4/10*50 = 20 topics, 1/2*50 = 25 language
		dim := ScoreEngineeringPractices(repos)
		assert.InDelta(t, 45, dim.Score, 0.001)
	})

	t.Run("more than two languages grants full term", func(t *testing.T) {
		repos := []types.Repository{
			testRepo("a", func(r *types.Repository) { r.Language = "Go" }),
			testRepo("b", func(r *types.Repository) { r.Language = "Rust" }),
			testRepo("c", func(r *types.Repository) { r.Language = "Python" }),
		}
		dim := ScoreEngineeringPractices(repos)
		assert.InDelta(t, 50, dim.Score, 0.001)
	})
}

func TestScoreTechDiversity(t *testing.T) {
	t.Run("empty", func(t *testing.T) {
		assert.Zero(t, ScoreTechDiversity(nil).Score)
	})

	t.Run("three languages ten topics", func(t *testing.T) {
		repos := []types.Repository{
			testRepo("a", func(r *types.Repository) {
				r.Language = "Go"
				r.Topics = []string{"t1", "t2", "t3", "t4"}
			}),
			testRepo("b", func(r *types.Repository) {
				r.Language = "Rust"
				r.Topics = []string{"t5", "t6", "t7"}
			}),
			testRepo("c", func(r *types.Repository) {
				r.Language = "Python"
				r.Topics = []string{"t8", "t9", "t10"}
			}),
		}
		// min(3*15,50)=45 + min(10*2,50)=20
		dim := ScoreTechDiversity(repos)
		assert.InDelta(t, 65, dim.Score, 0.001)
	})
}

func TestScoreCollaboration(t *testing.T) {
	t.Run("no repos keeps following term only", func(t *testing.T) {
		dim := ScoreCollaboration(50, nil)
		assert.InDelta(t, 25, dim.Score, 0.001)
	})

	t.Run("forked share", func(t *testing.T) {
		repos := make([]types.Repository, 0, 10)
		for i := 0; i < 10; i++ {
			idx := i
			repos = append(repos, testRepo(fmt.Sprintf("r%d", i), func(r *types.Repository) {
				if idx < 4 {
					r.Forks = 3
				}
			}))
		}
		// 50/100*50 = 25, 4/10*50 = 20
		dim := ScoreCollaboration(50, repos)
		assert.InDelta(t, 45, dim.Score, 0.001)
	})
}

func TestScoreProfilePresentation(t *testing.T) {
	tests := []struct {
		name      string
		realName  string
		bio       string
		wantScore float64
	}{
		{"nothing set", "", "", 0},
		{"name only", "Ada Lovelace", "", 50},
		{"short bio earns nothing", "Ada Lovelace", "too short", 50},
		{"name and substantive bio", "Ada Lovelace", "Building analytical engines since 1842.", 100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dim := ScoreProfilePresentation(tt.realName, tt.bio)
			assert.InDelta(t, tt.wantScore, dim.Score, 0.001)
		})
	}
}

func TestDimensionWeightsSumToOne(t *testing.T) {
	var sum float64
	for _, key := range DimensionKeys {
		sum += Weight(key)
	}
	assert.InDelta(t, 1.0, sum, 1e-9)
}

func TestDimensionScoresStayInRange(t *testing.T) {
	now := time.Now()
	huge := make([]types.Repository, 0, 50)
	for i := 0; i < 50; i++ {
		huge = append(huge, testRepo(fmt.Sprintf("big-%d", i), func(r *types.Repository) {
			r.Stars = 100000
			r.Forks = 50000
			r.Language = fmt.Sprintf("Lang%d", i)
			r.Description = strings.Repeat("d", 500)
			r.Topics = []string{"a", "b", "c"}
			r.UpdatedAt = now
		}))
	}

	dims := []ScoreDimension{
		ScoreRepositoryQuality(huge),
		ScoreDocumentation(huge),
		ScoreContributionActivity(1e6, 1e6, 100),
		ScoreCodeQuality(huge, now),
		ScoreProjectImpact(huge),
		ScoreEngineeringPractices(huge),
		ScoreTechDiversity(huge),
		ScoreCollaboration(1e6, huge),
		ScoreProfilePresentation("Name", strings.Repeat("b", 100)),
	}
	for _, dim := range dims {
		assert.GreaterOrEqual(t, dim.Score, 0.0, dim.Name)
		assert.LessOrEqual(t, dim.Score, 100.0, dim.Name)
	}
}
