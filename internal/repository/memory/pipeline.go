package memory

import (
	"context"

	"github.com/ignite/event-crm/internal/domain"
	"github.com/ignite/event-crm/internal/service/pipeline"
)

// PipelineRepo implements pipeline.Repository.
type PipelineRepo struct{ s *Store }

func copyRecord(r *domain.PipelineRecord) *domain.PipelineRecord {
	cp := *r
	cp.Stage = domain.NormalizeStage(string(r.Stage))
	cp.Tags = cloneStrings(r.Tags)
	return &cp
}

func (r *PipelineRepo) Get(_ context.Context, orgID, id string) (*domain.PipelineRecord, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	rec, ok := r.s.pipeline[id]
	if !ok || rec.OrganizationID != orgID {
		return nil, pipeline.ErrNotFound
	}
	return copyRecord(rec), nil
}

func (r *PipelineRepo) findLocked(key domain.PipelineKey) *domain.PipelineRecord {
	for _, id := range r.s.pipelineOrder {
		rec := r.s.pipeline[id]
		if rec.Key() == key {
			return rec
		}
	}
	return nil
}

func (r *PipelineRepo) FindOne(_ context.Context, key domain.PipelineKey) (*domain.PipelineRecord, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	if rec := r.findLocked(key); rec != nil {
		return copyRecord(rec), nil
	}
	return nil, nil
}

func (r *PipelineRepo) Find(_ context.Context, orgID string, f pipeline.ListFilter) ([]domain.PipelineRecord, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	stage := domain.NormalizeStage(string(f.Stage))
	out := []domain.PipelineRecord{}
	for _, id := range r.s.pipelineOrder {
		rec := r.s.pipeline[id]
		switch {
		case rec.OrganizationID != orgID,
			f.EventID != "" && rec.EventID != f.EventID,
			f.ContactID != "" && rec.ContactID != f.ContactID,
			f.AudienceType != "" && rec.AudienceType != f.AudienceType,
			stage != "" && rec.Stage != stage:
			continue
		}
		out = append(out, *copyRecord(rec))
	}
	return page(out, f.Limit, f.Offset), nil
}

func (r *PipelineRepo) Create(_ context.Context, rec *domain.PipelineRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if r.findLocked(rec.Key()) != nil {
		return pipeline.ErrAlreadyInPipeline
	}
	rec.ID = newID(rec.ID)
	rec.Stage = domain.NormalizeStage(string(rec.Stage))
	r.s.pipeline[rec.ID] = copyRecord(rec)
	r.s.pipelineOrder = append(r.s.pipelineOrder, rec.ID)
	return nil
}

func (r *PipelineRepo) Update(_ context.Context, rec *domain.PipelineRecord) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	existing, ok := r.s.pipeline[rec.ID]
	if !ok || existing.OrganizationID != rec.OrganizationID {
		return pipeline.ErrNotFound
	}
	updated := copyRecord(rec)
	// The uniqueness key is fixed at creation.
	updated.EventID = existing.EventID
	updated.ContactID = existing.ContactID
	updated.AudienceType = existing.AudienceType
	updated.CreatedAt = existing.CreatedAt
	r.s.pipeline[rec.ID] = updated
	return nil
}

func (r *PipelineRepo) ListByEventAndStage(ctx context.Context, orgID, eventID string, audienceType domain.AudienceType, stage domain.Stage) ([]domain.PipelineRecord, error) {
	return r.Find(ctx, orgID, pipeline.ListFilter{EventID: eventID, AudienceType: audienceType, Stage: stage})
}

func (r *PipelineRepo) CountByStage(_ context.Context, orgID, eventID string) (map[domain.Stage]int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	counts := make(map[domain.Stage]int)
	for _, rec := range r.s.pipeline {
		if rec.OrganizationID == orgID && rec.EventID == eventID {
			counts[domain.NormalizeStage(string(rec.Stage))]++
		}
	}
	return counts, nil
}

func (r *PipelineRepo) ListUngraduated(_ context.Context, limit int) ([]domain.PipelineRecord, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := []domain.PipelineRecord{}
	for _, id := range r.s.pipelineOrder {
		rec := r.s.pipeline[id]
		if !rec.IsPaid() || r.s.hasAttendeeLocked(rec.OrganizationID, rec.EventID, rec.ContactID) {
			continue
		}
		out = append(out, *copyRecord(rec))
		if limit > 0 && len(out) == limit {
			break
		}
	}
	return out, nil
}
