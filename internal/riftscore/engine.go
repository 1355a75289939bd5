// Package riftscore computes the composite risk score behind invoice and
// organization grading. Calculations are deterministic: the same inputs
// under the same weight table always produce the same score, and every run
// is persisted as an immutable versioned record.
package riftscore

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/riftfin/riftcore/internal/config"
	"github.com/riftfin/riftcore/internal/fault"
	"github.com/riftfin/riftcore/internal/model"
	"github.com/riftfin/riftcore/internal/store"
)

// Engine scores entities against the configured weight table.
type Engine struct {
	store store.Store
	cfg   config.ScoreConfig
}

// New creates an Engine. The weight table is validated at config load time.
func New(st store.Store, cfg config.ScoreConfig) *Engine {
	return &Engine{store: st, cfg: cfg}
}

// grade maps a composite score to a letter using the configured cutoffs,
// so a config version change regrades without a code change.
func (e *Engine) grade(score float64) model.Grade {
	switch {
	case score >= e.cfg.CutoffA:
		return model.GradeA
	case score >= e.cfg.CutoffB:
		return model.GradeB
	case score >= e.cfg.CutoffC:
		return model.GradeC
	default:
		return model.GradeIneligible
	}
}

// Calculate validates the factor inputs, computes the weighted composite,
// and persists a new score record superseding the previous one. Inputs must
// cover every known factor, each normalized to [0,100].
func (e *Engine) Calculate(ctx context.Context, entityType model.EntityType, entityID string, inputs map[string]float64) (*model.RiftScoreRecord, error) {
	if entityType != model.EntityInvoice && entityType != model.EntityOrganization {
		return nil, fault.Validationf("entity_type", "must be invoice or organization, got %q", entityType)
	}
	if entityID == "" {
		return nil, fault.Validationf("entity_id", "required")
	}
	weights := e.cfg.Weights()
	for name := range inputs {
		if _, ok := weights[name]; !ok {
			return nil, fault.Validationf("inputs", "unknown factor %q", name)
		}
	}
	for _, name := range model.Factors {
		v, ok := inputs[name]
		if !ok {
			return nil, fault.Validationf("inputs", "missing factor %q", name)
		}
		if v < 0 || v > 100 {
			return nil, fault.Validationf(name, "must be in [0,100], got %.2f", v)
		}
	}

	total := 0.0
	breakdown := make(map[string]float64, len(model.Factors))
	for _, name := range model.Factors {
		contribution := inputs[name] * weights[name]
		breakdown[name] = model.Round2(contribution)
		total += contribution
	}
	total = model.Round2(total)
	grade := e.grade(total)

	rec := model.RiftScoreRecord{
		ID:            uuid.New().String(),
		EntityType:    entityType,
		EntityID:      entityID,
		Inputs:        inputs,
		Breakdown:     breakdown,
		TotalScore:    total,
		Grade:         grade,
		EngineVersion: e.cfg.EngineVersion,
		CalculatedAt:  time.Now().UTC(),
	}
	if prev, err := e.store.LatestScoreRecord(ctx, entityType, entityID); err != nil {
		return nil, err
	} else if prev != nil {
		rec.Supersedes = prev.ID
	}

	saved, err := e.store.InsertScoreRecord(ctx, rec, model.AuditRecord{
		ID:       uuid.New().String(),
		Action:   "score.calculated",
		Actor:    "system",
		Entity:   string(entityType),
		EntityID: entityID,
		Metadata: map[string]string{
			"score_id": rec.ID,
			"grade":    string(grade),
		},
		CreatedAt: rec.CalculatedAt,
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("riftscore: calculated",
		zap.String("entity_type", string(entityType)),
		zap.String("entity_id", entityID),
		zap.Float64("total", total),
		zap.String("grade", string(grade)),
		zap.String("version", saved.Version),
	)
	return saved, nil
}

// Override applies a manual delta on top of the latest score, producing a
// new record linked to the one it supersedes. The adjusted total is clamped
// to [0,100] and regraded; the original record stays untouched.
func (e *Engine) Override(ctx context.Context, entityType model.EntityType, entityID string, delta float64, reason, actor string) (*model.RiftScoreRecord, error) {
	if reason == "" {
		return nil, fault.Validationf("reason", "required for a score override")
	}
	if actor == "" {
		return nil, fault.Validationf("actor", "required for a score override")
	}
	prev, err := e.store.LatestScoreRecord(ctx, entityType, entityID)
	if err != nil {
		return nil, err
	}
	if prev == nil {
		return nil, fault.Validationf("entity_id", "no score to override for %s %s", entityType, entityID)
	}

	total := model.Round2(prev.TotalScore + delta)
	if total < 0 {
		total = 0
	}
	if total > 100 {
		total = 100
	}
	grade := e.grade(total)

	rec := model.RiftScoreRecord{
		ID:             uuid.New().String(),
		EntityType:     entityType,
		EntityID:       entityID,
		Inputs:         prev.Inputs,
		Breakdown:      prev.Breakdown,
		TotalScore:     total,
		Grade:          grade,
		EngineVersion:  e.cfg.EngineVersion,
		Supersedes:     prev.ID,
		OverrideDelta:  &delta,
		OverrideReason: reason,
		CalculatedAt:   time.Now().UTC(),
	}

	saved, err := e.store.InsertScoreRecord(ctx, rec, model.AuditRecord{
		ID:       uuid.New().String(),
		Action:   "score.overridden",
		Actor:    actor,
		Entity:   string(entityType),
		EntityID: entityID,
		Metadata: map[string]string{
			"score_id":   rec.ID,
			"supersedes": prev.ID,
			"reason":     reason,
			"grade":      string(grade),
		},
		CreatedAt: rec.CalculatedAt,
	})
	if err != nil {
		return nil, err
	}

	zap.L().Info("riftscore: overridden",
		zap.String("entity_type", string(entityType)),
		zap.String("entity_id", entityID),
		zap.Float64("delta", delta),
		zap.Float64("total", total),
		zap.String("actor", actor),
	)
	return saved, nil
}

// History returns every score record for an entity, oldest first.
func (e *Engine) History(ctx context.Context, entityType model.EntityType, entityID string) ([]model.RiftScoreRecord, error) {
	return e.store.ListScoreRecords(ctx, entityType, entityID)
}
