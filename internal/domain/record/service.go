package record

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/slog"
)

type Servicer interface {
	List(ctx context.Context, userID int, kind Kind) (ListResponse, error)
	GetByKind(ctx context.Context, userID int, kind Kind) ([]Record, error)
	Find(ctx context.Context, userID int, id string) (*Record, error)
	Create(ctx context.Context, userID int, req CreateRequest) (*Record, error)
	Update(ctx context.Context, userID int, id string, req UpdateRequest) (*Record, error)
	Delete(ctx context.Context, userID int, id string) (*Record, error)
	GetVersions(ctx context.Context, userID int, id string) ([]Version, error)
	GetModifiedSince(ctx context.Context, userID int, since time.Time) ([]Record, error)
}

type Service struct {
	repo    Repository
	factory *Factory
	log     *slog.Logger
}

func NewService(repo Repository, factory *Factory, log *slog.Logger) *Service {
	return &Service{
		repo:    repo,
		factory: factory,
		log:     log.With("component", "record_service"),
	}
}

// List возвращает записи пользователя, пустой kind - все типы
func (s *Service) List(ctx context.Context, userID int, kind Kind) (ListResponse, error) {
	if kind != "" {
		if err := kind.Validate(); err != nil {
			return ListResponse{}, fmt.Errorf("%w: %v", ErrInvalidData, err)
		}
	}

	records, err := s.repo.List(ctx, userID, kind)
	if err != nil {
		s.log.Error("failed to list records", "user_id", userID, "error", err)
		return ListResponse{}, fmt.Errorf("list records: %w", err)
	}

	items := make([]Item, len(records))
	for i, r := range records {
		items[i] = Item{
			ID:        r.ID,
			Kind:      r.Kind,
			Payload:   r.Payload,
			Version:   r.Version,
			UpdatedAt: r.UpdatedAt,
		}
	}

	return ListResponse{Records: items, Total: len(items)}, nil
}

func (s *Service) GetByKind(ctx context.Context, userID int, kind Kind) ([]Record, error) {
	records, err := s.repo.List(ctx, userID, kind)
	if err != nil {
		return nil, fmt.Errorf("get records by kind: %w", err)
	}
	return records, nil
}

func (s *Service) Find(ctx context.Context, userID int, id string) (*Record, error) {
	rec, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		s.log.Error("failed to find record", "record_id", id, "user_id", userID, "error", err)
		return nil, fmt.Errorf("find record: %w", err)
	}

	if rec.IsDeleted() {
		return nil, ErrRecordDeleted
	}

	return rec, nil
}

func (s *Service) Create(ctx context.Context, userID int, req CreateRequest) (*Record, error) {
	if err := req.Kind.Validate(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}

	id := req.ID
	if id == "" {
		id = uuid.NewString()
	} else if _, err := uuid.Parse(id); err != nil {
		return nil, fmt.Errorf("%w: id must be a UUID", ErrInvalidData)
	}

	if err := s.factory.ValidatePayload(req.Kind, req.Payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}

	rec := &Record{
		ID:       id,
		UserID:   userID,
		Kind:     req.Kind,
		Payload:  req.Payload,
		Version:  1,
		Checksum: Checksum(req.Kind, req.Payload),
		DeviceID: req.DeviceID,
	}

	if err := s.repo.Create(ctx, rec); err != nil {
		if errors.Is(err, ErrAlreadyExists) {
			return nil, ErrAlreadyExists
		}
		s.log.Error("failed to create record", "user_id", userID, "kind", req.Kind, "error", err)
		return nil, fmt.Errorf("create record: %w", err)
	}

	s.log.Info("record created", "record_id", rec.ID, "user_id", userID, "kind", rec.Kind)
	return rec, nil
}

// Update применяет изменение, сделанное на основе версии req.Version
func (s *Service) Update(ctx context.Context, userID int, id string, req UpdateRequest) (*Record, error) {
	current, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get record for update: %w", err)
	}

	if current.IsDeleted() {
		return nil, ErrRecordDeleted
	}

	if current.Version != req.Version {
		return nil, ErrVersionConflict
	}

	if err := s.factory.ValidatePayload(current.Kind, req.Payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidData, err)
	}

	updated := *current
	updated.Payload = req.Payload
	updated.Version = current.Version + 1
	updated.Checksum = Checksum(current.Kind, req.Payload)
	updated.DeviceID = req.DeviceID

	if err := s.repo.Update(ctx, &updated, current.Version); err != nil {
		if errors.Is(err, ErrVersionConflict) {
			return nil, ErrVersionConflict
		}
		s.log.Error("failed to update record", "record_id", id, "user_id", userID, "error", err)
		return nil, fmt.Errorf("update record: %w", err)
	}

	s.saveVersion(ctx, current)

	s.log.Info("record updated", "record_id", id, "user_id", userID, "version", updated.Version)
	return &updated, nil
}

// Delete помечает запись удаленной, надгробие остается для синхронизации
func (s *Service) Delete(ctx context.Context, userID int, id string) (*Record, error) {
	current, err := s.repo.Get(ctx, userID, id)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get record for delete: %w", err)
	}

	if current.IsDeleted() {
		return current, nil
	}

	deleted, err := s.repo.SoftDelete(ctx, userID, id)
	if err != nil {
		s.log.Error("failed to soft delete record", "record_id", id, "user_id", userID, "error", err)
		return nil, fmt.Errorf("soft delete record: %w", err)
	}

	s.saveVersion(ctx, current)

	s.log.Info("record soft deleted", "record_id", id, "user_id", userID)
	return deleted, nil
}

func (s *Service) GetVersions(ctx context.Context, userID int, id string) ([]Version, error) {
	if _, err := s.repo.Get(ctx, userID, id); err != nil {
		return nil, fmt.Errorf("verify record ownership: %w", err)
	}

	return s.repo.GetVersions(ctx, id)
}

func (s *Service) GetModifiedSince(ctx context.Context, userID int, since time.Time) ([]Record, error) {
	records, err := s.repo.GetModifiedSince(ctx, userID, since)
	if err != nil {
		s.log.Error("failed to get modified records", "user_id", userID, "since", since, "error", err)
		return nil, fmt.Errorf("get modified records: %w", err)
	}
	return records, nil
}

// история версий не должна ломать основную операцию
func (s *Service) saveVersion(ctx context.Context, rec *Record) {
	v := &Version{
		RecordID: rec.ID,
		Version:  rec.Version,
		Payload:  rec.Payload,
		Checksum: rec.Checksum,
	}
	if err := s.repo.SaveVersion(ctx, v); err != nil {
		s.log.Warn("failed to save record version", "record_id", rec.ID, "error", err)
	}
}
