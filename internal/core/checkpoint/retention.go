package checkpoint

import (
	"sort"
	"time"
)

// RetentionPolicy bounds how many checkpoints are kept and for how long.
// Zero values disable the corresponding rule.
type RetentionPolicy struct {
	MaxAge        time.Duration
	MaxPerMission int
}

// PruneCandidate is the minimal view of a stored checkpoint for planning.
type PruneCandidate struct {
	ID        string
	MissionID string
	CreatedAt time.Time
}

// PruneInput is everything PlanPrune needs, pre-fetched.
type PruneInput struct {
	Checkpoints     []PruneCandidate
	MissionStatuses map[string]string
	Policy          RetentionPolicy
	Now             time.Time
}

// PlanPrune returns the checkpoint IDs to delete.
// Rule: the newest checkpoint of an in_progress mission is never pruned,
// whatever its age or rank.
func PlanPrune(in PruneInput) []string {
	byMission := make(map[string][]PruneCandidate)
	for _, c := range in.Checkpoints {
		byMission[c.MissionID] = append(byMission[c.MissionID], c)
	}

	missionIDs := make([]string, 0, len(byMission))
	for id := range byMission {
		missionIDs = append(missionIDs, id)
	}
	sort.Strings(missionIDs)

	var doomed []string
	for _, missionID := range missionIDs {
		list := byMission[missionID]
		sort.SliceStable(list, func(i, j int) bool {
			if list[i].CreatedAt.Equal(list[j].CreatedAt) {
				return list[i].ID > list[j].ID
			}
			return list[i].CreatedAt.After(list[j].CreatedAt)
		})

		protectNewest := in.MissionStatuses[missionID] == "in_progress"
		for rank, c := range list {
			if rank == 0 && protectNewest {
				continue
			}
			tooOld := in.Policy.MaxAge > 0 && in.Now.Sub(c.CreatedAt) > in.Policy.MaxAge
			tooMany := in.Policy.MaxPerMission > 0 && rank >= in.Policy.MaxPerMission
			if tooOld || tooMany {
				doomed = append(doomed, c.ID)
			}
		}
	}
	return doomed
}
