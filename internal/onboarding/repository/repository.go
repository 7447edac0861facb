package repository

import (
	"context"
	"errors"
	"strings"

	"github.com/bwmarrin/snowflake"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/smallbiznis/egsbridge/internal/onboarding/domain"
)

type repo struct {
	db    *gorm.DB
	genID *snowflake.Node
}

func New(db *gorm.DB, genID *snowflake.Node) domain.Repository {
	return &repo{db: db, genID: genID}
}

func (r *repo) Get(ctx context.Context, key, environment string) (*domain.CredentialState, error) {
	var state domain.CredentialState
	err := r.db.WithContext(ctx).
		Where("certificate_key = ? AND environment = ?", strings.TrimSpace(key), strings.TrimSpace(environment)).
		First(&state).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, domain.ErrStateNotFound
		}
		return nil, err
	}
	return &state, nil
}

// Save inserts the state or overwrites the progress columns of the row
// already held for the same unit and environment.
func (r *repo) Save(ctx context.Context, state *domain.CredentialState) error {
	if state == nil {
		return domain.ErrInvalidRequest
	}
	state.CertificateKey = strings.TrimSpace(state.CertificateKey)
	state.Environment = strings.TrimSpace(state.Environment)
	if state.CertificateKey == "" || state.Environment == "" {
		return domain.ErrInvalidRequest
	}
	if state.ID == 0 && r.genID != nil {
		state.ID = r.genID.Generate()
	}
	if state.Tier == "" {
		state.Tier = domain.TierNone
	}

	return r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns: []clause.Column{{Name: "certificate_key"}, {Name: "environment"}},
		DoUpdates: clause.AssignmentColumns([]string{
			"tier",
			"compliance_request_id",
			"flow_outcomes",
			"chain_counter",
			"chain_hash",
			"ccsid_issued_at",
			"pcsid_issued_at",
			"updated_at",
		}),
	}).Create(state).Error
}
