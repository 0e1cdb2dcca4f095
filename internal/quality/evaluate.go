package quality

import (
	"time"

	"github.com/google/uuid"

	"github.com/sells-group/uvp-engine/internal/model"
)

// Evaluate compares each dimension against the yellow threshold and creates
// one EnhancementTask per weak dimension. Priority is the distance below
// the threshold, so the worst dimension is worked first.
func (s *Scorer) Evaluate(res *model.SynthesisResult, score model.QualityScore) []model.EnhancementTask {
	now := time.Now()
	var tasks []model.EnhancementTask
	for _, d := range model.AllDimensions {
		v := score.Metric(d)
		if v >= s.YellowThreshold {
			continue
		}
		tasks = append(tasks, model.EnhancementTask{
			ID:             uuid.NewString(),
			SubjectID:      res.SubjectID,
			TargetResultID: res.ID,
			Dimension:      d,
			Priority:       s.YellowThreshold - v,
			Status:         model.TaskStatusQueued,
			CreatedAt:      now,
			UpdatedAt:      now,
		})
	}
	return tasks
}
