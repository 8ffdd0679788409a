// Package recommend turns a health concern plus demographics into an ordered,
// deduplicated list of catalog poses.
package recommend

import (
	"github.com/MikeSquared-Agency/Sadhana/internal/catalog"
)

// Filter selects poses for the matched benefits. Benefits are visited in the
// given order and each benefit's poses in catalog order. A pose is included
// when its minimum age is at most age and it targets gender or "all"; a pose
// already included through an earlier benefit is skipped.
//
// The result is never nil. An empty result means no suitable pose was found.
func Filter(cat *catalog.Catalog, matched []string, age int, gender string) []catalog.Pose {
	out := []catalog.Pose{}
	seen := make(map[string]bool)

	for _, benefit := range matched {
		for _, pose := range cat.PosesFor(benefit) {
			if seen[pose.ID] {
				continue
			}
			if pose.MinAge() > age || !pose.AdmitsGender(gender) {
				continue
			}
			seen[pose.ID] = true
			out = append(out, pose)
		}
	}
	return out
}
