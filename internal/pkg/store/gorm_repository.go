package store

import (
	"context"
	"errors"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/ManuelReschke/BookfoldAR/app/models"
)

type gormRepository struct {
	db *gorm.DB
}

// NewRepository creates a store repository backed by GORM.
func NewRepository(db *gorm.DB) Repository {
	return &gormRepository{db: db}
}

func (r *gormRepository) Transaction(ctx context.Context, fn func(tx Repository) error) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(&gormRepository{db: tx})
	})
}

func (r *gormRepository) FindPaidPurchaseByEmail(ctx context.Context, email string) (*models.Purchase, error) {
	return r.firstPurchase(ctx, "email = ? AND status = ?", email, models.PurchaseStatusPaid)
}

func (r *gormRepository) FindPendingPurchaseByEmail(ctx context.Context, email string) (*models.Purchase, error) {
	var p models.Purchase
	err := r.db.WithContext(ctx).
		Where("email = ? AND status = ?", email, models.PurchaseStatusPending).
		Order("created_at DESC").
		First(&p).Error
	if err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (r *gormRepository) FindPurchaseBySessionID(ctx context.Context, sessionID string) (*models.Purchase, error) {
	return r.firstPurchase(ctx, "processor_session_id = ?", sessionID)
}

func (r *gormRepository) FindPurchaseByPaymentIntentID(ctx context.Context, paymentIntentID string) (*models.Purchase, error) {
	return r.firstPurchase(ctx, "processor_payment_intent_id = ?", paymentIntentID)
}

func (r *gormRepository) firstPurchase(ctx context.Context, query string, args ...interface{}) (*models.Purchase, error) {
	var p models.Purchase
	if err := r.db.WithContext(ctx).Where(query, args...).First(&p).Error; err != nil {
		return nil, translate(err)
	}
	return &p, nil
}

func (r *gormRepository) LockPurchasesByEmail(ctx context.Context, email string) ([]models.Purchase, error) {
	var purchases []models.Purchase
	err := r.db.WithContext(ctx).
		Clauses(clause.Locking{Strength: "UPDATE"}).
		Where("email = ?", email).
		Order("created_at").
		Find(&purchases).Error
	if err != nil {
		return nil, err
	}
	return purchases, nil
}

func (r *gormRepository) CreatePurchase(ctx context.Context, purchase *models.Purchase) error {
	if err := r.db.WithContext(ctx).Create(purchase).Error; err != nil {
		return translate(err)
	}
	return nil
}

func (r *gormRepository) UpdatePurchase(ctx context.Context, purchase *models.Purchase, fromStatus string) (bool, error) {
	tx := r.db.WithContext(ctx).
		Model(&models.Purchase{}).
		Where("id = ? AND status = ?", purchase.ID, fromStatus).
		Updates(map[string]interface{}{
			"status":                      purchase.Status,
			"processor_session_id":        purchase.ProcessorSessionID,
			"processor_payment_intent_id": purchase.ProcessorPaymentIntentID,
			"amount":                      purchase.Amount,
			"currency":                    purchase.Currency,
		})
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *gormRepository) FindTrialByEmail(ctx context.Context, email string) (*models.Trial, error) {
	var t models.Trial
	if err := r.db.WithContext(ctx).Where("email = ?", email).First(&t).Error; err != nil {
		return nil, translate(err)
	}
	return &t, nil
}

func (r *gormRepository) CreateTrialIfNotExists(ctx context.Context, trial *models.Trial) (bool, *models.Trial, error) {
	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "email"}},
		DoNothing: true,
	}).Create(trial)
	if tx.Error != nil {
		return false, nil, tx.Error
	}

	created := tx.RowsAffected > 0
	stored, err := r.FindTrialByEmail(ctx, trial.Email)
	if err != nil {
		return false, nil, err
	}
	return created, stored, nil
}

func (r *gormRepository) ClaimEvent(ctx context.Context, event *models.ProcessedEvent) (bool, error) {
	tx := r.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "processor_event_id"}},
		DoNothing: true,
	}).Create(event)
	if tx.Error != nil {
		return false, tx.Error
	}
	return tx.RowsAffected > 0, nil
}

func (r *gormRepository) Ping(ctx context.Context) error {
	sqlDB, err := r.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

func translate(err error) error {
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return ErrNotFound
	case errors.Is(err, gorm.ErrDuplicatedKey):
		return ErrDuplicateKey
	}
	return err
}
