package engine

import "github.com/devswarm/coordd/internal/model"

// NeutralScore is returned for items with no skill requirements: any agent
// is equally suitable and no load penalty applies.
const NeutralScore = 0.5

// Score rates how well an agent fits an item. For items that require
// skills:
//
//	score = (matched / required) * performance * (1 - loadPenalty * load/capacity)
//
// The result is non-negative; a fully loaded agent with loadPenalty 1.0
// bottoms out at zero.
func Score(a *model.Agent, item *model.WorkItem, loadPenalty float64) float64 {
	if len(item.RequiredSkills) == 0 {
		return NeutralScore
	}

	matched := 0
	for _, skill := range item.RequiredSkills {
		if a.HasSkill(skill) {
			matched++
		}
	}

	overlap := float64(matched) / float64(len(item.RequiredSkills))
	availability := 1.0 - loadPenalty*float64(a.Load())/float64(a.MaxConcurrent)
	if availability < 0 {
		availability = 0
	}
	return overlap * a.PerformanceScore * availability
}
