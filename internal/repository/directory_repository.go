package repository

import (
	"context"

	"github.com/prosync/audit-task-api/internal/models"
	"gorm.io/gorm"
)

// GormActorRepository is a GORM implementation of ActorRepository
type GormActorRepository struct {
	db *gorm.DB
}

// NewActorRepository creates a new ActorRepository
func NewActorRepository(db *gorm.DB) ActorRepository {
	return &GormActorRepository{db: db}
}

// FindByID finds an actor by ID
func (r *GormActorRepository) FindByID(ctx context.Context, id uint64) (*models.Actor, error) {
	var actor models.Actor
	if err := r.db.WithContext(ctx).First(&actor, id).Error; err != nil {
		return nil, err
	}
	return &actor, nil
}

// ListReviewers lists active actors with one of the given roles, by name
func (r *GormActorRepository) ListReviewers(ctx context.Context, roleIDs []int) ([]models.Actor, error) {
	var actors []models.Actor
	if err := r.db.WithContext(ctx).
		Where("status = ? AND role_id IN ?", models.StatusActive, roleIDs).
		Order("name ASC").
		Find(&actors).Error; err != nil {
		return nil, err
	}
	return actors, nil
}

// GormCustomerRepository is a GORM implementation of CustomerRepository
type GormCustomerRepository struct {
	db *gorm.DB
}

// NewCustomerRepository creates a new CustomerRepository
func NewCustomerRepository(db *gorm.DB) CustomerRepository {
	return &GormCustomerRepository{db: db}
}

// FindByID finds a customer by ID
func (r *GormCustomerRepository) FindByID(ctx context.Context, id uint64) (*models.Customer, error) {
	var customer models.Customer
	if err := r.db.WithContext(ctx).First(&customer, id).Error; err != nil {
		return nil, err
	}
	return &customer, nil
}

// GormActivityRepository is a GORM implementation of ActivityRepository
type GormActivityRepository struct {
	db *gorm.DB
}

// NewActivityRepository creates a new ActivityRepository
func NewActivityRepository(db *gorm.DB) ActivityRepository {
	return &GormActivityRepository{db: db}
}

// FindByID finds an activity by ID
func (r *GormActivityRepository) FindByID(ctx context.Context, id uint64) (*models.Activity, error) {
	var activity models.Activity
	if err := r.db.WithContext(ctx).First(&activity, id).Error; err != nil {
		return nil, err
	}
	return &activity, nil
}
