package team

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

var ErrTeamNotFound = errors.New("team not found")

type Repository interface {
	Count(ctx context.Context) (int64, error)
	CreateAll(ctx context.Context, teams []Team) error
	List(ctx context.Context) ([]Team, error)
	FindByID(ctx context.Context, id string) (*Team, error)
}

type repository struct {
	db *gorm.DB
}

func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&Team{}).Count(&count).Error; err != nil {
		return 0, err
	}
	return count, nil
}

func (r *repository) CreateAll(ctx context.Context, teams []Team) error {
	if len(teams) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(&teams).Error
}

func (r *repository) List(ctx context.Context) ([]Team, error) {
	var teams []Team
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&teams).Error; err != nil {
		return nil, err
	}
	return teams, nil
}

func (r *repository) FindByID(ctx context.Context, id string) (*Team, error) {
	var team Team
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&team).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrTeamNotFound
		}
		return nil, err
	}
	return &team, nil
}
