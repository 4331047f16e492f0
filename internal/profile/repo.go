package profile

import (
	"context"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type Repo struct {
	db *gorm.DB
}

func NewRepo(db *gorm.DB) *Repo {
	return &Repo{db: db}
}

func (r *Repo) GetByUserID(ctx context.Context, userID uint64) (*Profile, error) {
	var p Profile
	if err := r.db.WithContext(ctx).
		Where("user_id = ?", userID).
		First(&p).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// Upsert inserts p or overwrites the secret columns of the existing row for
// p.UserID.
func (r *Repo) Upsert(ctx context.Context, p *Profile) error {
	return r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "user_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"anthropic_api_key",
				"aws_access_key_id",
				"aws_secret_access_key",
				"aws_region",
				"updated_at",
			}),
		}).
		Create(p).Error
}
