package analysis

import (
	"fmt"
	"time"

	"github.com/gitprofile/analyzer/internal/types"
)

const maxDimensionScore = 100

// recencyWindow is the update window a repository must fall inside to count
// as recently maintained.
const recencyWindow = 90 * 24 * time.Hour

func clip(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

func capAt(x, max float64) float64 {
	if x > max {
		return max
	}
	return x
}

// newDimension builds a ScoreDimension for the given key, clamping the score
// to [0, 100] as the final step. Sub-term caps are applied by the callers.
func newDimension(key string, score float64, details string) ScoreDimension {
	spec := dimensions[key]
	return ScoreDimension{
		Name:     spec.name,
		Weight:   spec.weight,
		Score:    clip(score, 0, maxDimensionScore),
		MaxScore: maxDimensionScore,
		Details:  details,
	}
}

func zeroDimension(key, details string) ScoreDimension {
	return newDimension(key, 0, details)
}

func distinctLanguages(repos []types.Repository) int {
	langs := make(map[string]struct{})
	for _, r := range repos {
		if r.Language != "" {
			langs[r.Language] = struct{}{}
		}
	}
	return len(langs)
}

// ScoreRepositoryQuality rewards repository count, average stars and the
// share of repositories that carry a description.
func ScoreRepositoryQuality(repos []types.Repository) ScoreDimension {
	if len(repos) == 0 {
		return zeroDimension(DimRepositoryQuality, "No public repositories found")
	}

	total := float64(len(repos))

	countScore := capAt(total/20*100, 40)

	sumStars := 0
	withDescription := 0
	for _, r := range repos {
		sumStars += r.Stars
		if r.Description != "" {
			withDescription++
		}
	}
	avgStars := float64(sumStars) / total
	starsScore := capAt(avgStars/10*100, 30)
	descScore := float64(withDescription) / total * 30

	details := fmt.Sprintf("%d repos, avg %.1f stars, %d with descriptions",
		len(repos), avgStars, withDescription)

	return newDimension(DimRepositoryQuality, countScore+starsScore+descScore, details)
}

// ScoreDocumentation measures description depth: the share of repositories
// with a substantive description plus average description length, the latter
// standing in for README presence.
func ScoreDocumentation(repos []types.Repository) ScoreDimension {
	if len(repos) == 0 {
		return zeroDimension(DimDocumentation, "No repositories to analyze")
	}

	total := float64(len(repos))

	detailed := 0
	lengthSum := 0
	for _, r := range repos {
		if len(r.Description) > 50 {
			detailed++
		}
		lengthSum += len(r.Description)
	}

	descScore := float64(detailed) / total * 50
	avgLength := float64(lengthSum) / total
	readmeScore := capAt(avgLength/200*50, 50)

	details := fmt.Sprintf("%d repos with detailed descriptions", detailed)

	return newDimension(DimDocumentation, descScore+readmeScore, details)
}

// ScoreContributionActivity scores follower reach, following engagement and
// account age. Account age is in fractional years and never negative.
func ScoreContributionActivity(followers, following int, accountAgeYears float64) ScoreDimension {
	followerScore := capAt(float64(followers)/100*100, 40)
	followingScore := capAt(float64(following)/200*30, 30)
	ageScore := capAt(accountAgeYears/10*30, 30)

	details := fmt.Sprintf("%d followers, %d following, account age %.1f years",
		followers, following, accountAgeYears)

	return newDimension(DimContributionActivity, followerScore+followingScore+ageScore, details)
}

// ScoreCodeQuality uses language breadth and the share of repositories
// updated within the recency window relative to now.
func ScoreCodeQuality(repos []types.Repository, now time.Time) ScoreDimension {
	if len(repos) == 0 {
		return zeroDimension(DimCodeQuality, "No repositories to analyze")
	}

	total := float64(len(repos))

	langCount := distinctLanguages(repos)
	languageScore := capAt(float64(langCount)/5*40, 40)

	recent := 0
	for _, r := range repos {
		age := now.Sub(r.UpdatedAt)
		if age < 0 {
			age = -age
		}
		if age < recencyWindow {
			recent++
		}
	}
	recencyScore := float64(recent) / total * 60

	details := fmt.Sprintf("%d languages, %d recently updated", langCount, recent)

	return newDimension(DimCodeQuality, languageScore+recencyScore, details)
}

// ScoreProjectImpact averages a capped total-stars score with a capped
// total-forks score.
func ScoreProjectImpact(repos []types.Repository) ScoreDimension {
	if len(repos) == 0 {
		return zeroDimension(DimProjectImpact, "No repositories to analyze")
	}

	totalStars := 0
	totalForks := 0
	for _, r := range repos {
		totalStars += r.Stars
		totalForks += r.Forks
	}

	starsScore := capAt(float64(totalStars)/100*100, 100)
	forksScore := capAt(float64(totalForks)/50*100, 100)

	details := fmt.Sprintf("%d total stars, %d total forks", totalStars, totalForks)

	return newDimension(DimProjectImpact, (starsScore+forksScore)/2, details)
}

// ScoreEngineeringPractices rewards topic usage (project organization) and
// working across more than two languages.
func ScoreEngineeringPractices(repos []types.Repository) ScoreDimension {
	if len(repos) == 0 {
		return zeroDimension(DimEngineeringPractices, "No repositories to analyze")
	}

	total := float64(len(repos))

	withTopics := 0
	for _, r := range repos {
		if len(r.Topics) > 0 {
			withTopics++
		}
	}
	topicsScore := float64(withTopics) / total * 50

	langCount := distinctLanguages(repos)
	var multiLanguageScore float64
	if langCount > 2 {
		multiLanguageScore = 50
	} else {
		multiLanguageScore = float64(langCount) / 2 * 50
	}

	details := fmt.Sprintf("%d repos with topics, %d languages used", withTopics, langCount)

	return newDimension(DimEngineeringPractices, topicsScore+multiLanguageScore, details)
}

// ScoreTechDiversity counts distinct languages and distinct topics across
// the repository set.
func ScoreTechDiversity(repos []types.Repository) ScoreDimension {
	if len(repos) == 0 {
		return zeroDimension(DimTechDiversity, "No repositories to analyze")
	}

	langCount := distinctLanguages(repos)

	topics := make(map[string]struct{})
	for _, r := range repos {
		for _, t := range r.Topics {
			topics[t] = struct{}{}
		}
	}

	languageScore := capAt(float64(langCount)*15, 50)
	topicScore := capAt(float64(len(topics))*2, 50)

	details := fmt.Sprintf("%d languages, %d different topics", langCount, len(topics))

	return newDimension(DimTechDiversity, languageScore+topicScore, details)
}

// ScoreCollaboration combines following count with the share of repositories
// that have been forked by others. The fork ratio contributes nothing when
// there are no repositories.
func ScoreCollaboration(following int, repos []types.Repository) ScoreDimension {
	followingScore := capAt(float64(following)/100*50, 50)

	forked := 0
	var forkScore float64
	if len(repos) > 0 {
		for _, r := range repos {
			if r.Forks > 0 {
				forked++
			}
		}
		forkScore = float64(forked) / float64(len(repos)) * 50
	}

	details := fmt.Sprintf("Following %d, %d repos with forks", following, forked)

	return newDimension(DimCollaboration, followingScore+forkScore, details)
}

// ScoreProfilePresentation awards 50 points for a display name and 50 for a
// bio longer than 20 characters.
func ScoreProfilePresentation(name, bio string) ScoreDimension {
	var score float64
	if name != "" {
		score += 50
	}
	if len(bio) > 20 {
		score += 50
	}

	hasName := "Missing"
	if name != "" {
		hasName = "Has"
	}
	hasBio := "Missing"
	if bio != "" {
		hasBio = "Has"
	}
	details := fmt.Sprintf("%s name, %s bio", hasName, hasBio)

	return newDimension(DimProfilePresentation, score, details)
}
