package repository

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"gopherai-slides/internal/model"
)

type PresentationRepository struct {
	db *gorm.DB
}

func NewPresentationRepository(db *gorm.DB) *PresentationRepository {
	return &PresentationRepository{db: db}
}

func (r *PresentationRepository) Create(ctx context.Context, p *model.Presentation) error {
	if err := r.db.WithContext(ctx).Create(p).Error; err != nil {
		return fmt.Errorf("create presentation failed: %w", err)
	}
	return nil
}

// GetByID returns nil, nil when the presentation does not exist.
func (r *PresentationRepository) GetByID(ctx context.Context, id string) (*model.Presentation, error) {
	var p model.Presentation
	err := r.db.WithContext(ctx).
		Preload("Images", func(db *gorm.DB) *gorm.DB { return db.Order("position ASC") }).
		Where("id = ?", id).
		First(&p).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("get presentation failed: %w", err)
	}
	return &p, nil
}

func (r *PresentationRepository) List(ctx context.Context, limit int) ([]model.Presentation, error) {
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	var list []model.Presentation
	if err := r.db.WithContext(ctx).Order("created_at DESC").Limit(limit).Find(&list).Error; err != nil {
		return nil, fmt.Errorf("list presentations failed: %w", err)
	}
	return list, nil
}

// ClaimPending marks a pending presentation as started. It reports false when
// the presentation is missing, no longer pending, or already claimed.
func (r *PresentationRepository) ClaimPending(ctx context.Context, id string) (bool, error) {
	now := time.Now()
	res := r.db.WithContext(ctx).Model(&model.Presentation{}).
		Where("id = ? AND status = ? AND started_at IS NULL", id, model.StatusPending).
		Update("started_at", &now)
	if res.Error != nil {
		return false, fmt.Errorf("claim presentation failed: %w", res.Error)
	}
	return res.RowsAffected == 1, nil
}

func (r *PresentationRepository) MarkCompleted(ctx context.Context, id, title, content string) error {
	err := r.db.WithContext(ctx).Model(&model.Presentation{}).Where("id = ?", id).Updates(map[string]interface{}{
		"title":   model.Truncate(title, model.MaxTitleLength),
		"content": content,
		"status":  model.StatusCompleted,
		"error":   "",
	}).Error
	if err != nil {
		return fmt.Errorf("mark presentation completed failed: %w", err)
	}
	return nil
}

// MarkFailed leaves title and content untouched.
func (r *PresentationRepository) MarkFailed(ctx context.Context, id, reason string) error {
	reason = model.Truncate(reason, model.MaxErrorLength)
	err := r.db.WithContext(ctx).Model(&model.Presentation{}).Where("id = ?", id).Updates(map[string]interface{}{
		"status": model.StatusFailed,
		"error":  reason,
	}).Error
	if err != nil {
		return fmt.Errorf("mark presentation failed failed: %w", err)
	}
	return nil
}

func (r *PresentationRepository) AddImage(ctx context.Context, img *model.PresentationImage) error {
	if err := r.db.WithContext(ctx).Create(img).Error; err != nil {
		return fmt.Errorf("create presentation image failed: %w", err)
	}
	return nil
}

// Delete removes the presentation and its images; it returns the image rows
// that were removed so callers can clean up stored assets.
func (r *PresentationRepository) Delete(ctx context.Context, id string) ([]model.PresentationImage, error) {
	var images []model.PresentationImage
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("presentation_id = ?", id).Order("position ASC").Find(&images).Error; err != nil {
			return err
		}
		if err := tx.Where("presentation_id = ?", id).Delete(&model.PresentationImage{}).Error; err != nil {
			return err
		}
		return tx.Where("id = ?", id).Delete(&model.Presentation{}).Error
	})
	if err != nil {
		return nil, fmt.Errorf("delete presentation failed: %w", err)
	}
	return images, nil
}

// AutoMigrate creates or updates the presentation tables.
func AutoMigrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&model.Presentation{}, &model.PresentationImage{}); err != nil {
		return fmt.Errorf("auto migrate failed: %w", err)
	}
	return nil
}
