// Package scoring computes compatibility scores between jobs and workers.
//
// Two weightings exist, both pure functions of their inputs:
//
//   - Score (worker side, used by allocation): 40 required skill,
//     up to 30 proximity, up to 20 related skills, up to 10 certifications.
//   - JobScore (job side, used when a worker browses postings): 50 required
//     skill, up to 30 proximity, 10+5 rate tiers, 5 duration.
//
// Results are in [0, 100], rounded to the nearest integer. Score ties are
// broken by the caller on distance (closer wins) and then worker id, never
// on input order, so allocation stays deterministic.
package scoring

import (
	"math"

	"github.com/shopspring/decimal"

	"github.com/fernandolim41/picopro-clt/internal/model"
	"github.com/fernandolim41/picopro-clt/internal/skills"
)

// MaxDistanceKm is the distance at which the proximity bonus reaches zero.
const MaxDistanceKm = 20.0

const (
	skillPoints        = 40
	proximityPoints    = 30
	relatedSkillPoints = 5
	relatedSkillCap    = 20
	certificationPts   = 3
	certificationCap   = 10
)

// Score returns the worker-side compatibility score for a worker at
// distanceKm from the job location.
//
// A worker lacking the required skill still gets a score (for transparency in
// allocation reports) but can never reach the 40-point skill gate; the
// allocator excludes such workers before scoring.
func Score(w model.Worker, job model.JobPosting, distanceKm float64, graph skills.Graph) int {
	score := 0.0

	if w.HasSkill(job.RequiredSkill) {
		score += skillPoints
	}

	score += proximityBonus(distanceKm)

	related := 0
	for _, s := range w.Skills {
		if s != job.RequiredSkill && graph.IsRelated(job.RequiredSkill, s) {
			related += relatedSkillPoints
		}
	}
	score += math.Min(float64(related), relatedSkillCap)

	if n := len(w.Certifications); n > 0 {
		score += math.Min(float64(n*certificationPts), certificationCap)
	}

	return int(math.Round(score))
}

const (
	jobSkillPoints   = 50
	rateTierOne      = 10 // hourly rate >= 20
	rateTierTwo      = 5  // hourly rate >= 30
	longShiftPoints  = 5  // duration >= 6h
	longShiftHours   = 6
)

var (
	rateTierOneFloor = decimal.NewFromInt(20)
	rateTierTwoFloor = decimal.NewFromInt(30)
)

// JobScore returns the job-side compatibility score used when a worker
// browses open postings: better-paying, longer, closer jobs rank higher.
func JobScore(job model.JobPosting, w model.Worker, distanceKm float64) int {
	score := 0.0

	if w.HasSkill(job.RequiredSkill) {
		score += jobSkillPoints
	}

	score += proximityBonus(distanceKm)

	if job.HourlyRate.GreaterThanOrEqual(rateTierOneFloor) {
		score += rateTierOne
	}
	if job.HourlyRate.GreaterThanOrEqual(rateTierTwoFloor) {
		score += rateTierTwo
	}
	if job.DurationHours >= longShiftHours {
		score += longShiftPoints
	}

	return int(math.Round(score))
}

// proximityBonus is linear in distance: full points at 0 km, zero at
// MaxDistanceKm and beyond.
func proximityBonus(distanceKm float64) float64 {
	return math.Max(0, (MaxDistanceKm-distanceKm)/MaxDistanceKm*proximityPoints)
}
