package services

import (
	"context"
	"fmt"
	"regexp"
	"strings"
	"time"

	"bar_backoffice/internal/models"
	"bar_backoffice/internal/repositories"
	"bar_backoffice/pkg/utils"

	"github.com/shopspring/decimal"
)

var themeColorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// EstablishmentSettings are the resolved billing and kitchen settings of a tenant.
type EstablishmentSettings struct {
	ServiceFeeRate   decimal.Decimal
	KitchenLateAfter time.Duration
}

// SettingsProvider resolves per-tenant settings, falling back to server defaults.
type SettingsProvider interface {
	EffectiveSettings(ctx context.Context, establishmentID int64) (EstablishmentSettings, error)
}

// UpdateEstablishmentRequest DTO. Nil fields are left unchanged.
type UpdateEstablishmentRequest struct {
	Name                    *string          `json:"name"`
	ThemeColor              *string          `json:"theme_color"`
	ServiceFeeRate          *decimal.Decimal `json:"service_fee_rate"`
	KitchenLateAfterMinutes *int             `json:"kitchen_late_after_minutes"`
}

// --- EstablishmentService Interface ---
type EstablishmentService interface {
	SettingsProvider
	GetEstablishment(ctx context.Context, sess models.Session) (*models.Establishment, error)
	UpdateEstablishment(ctx context.Context, sess models.Session, req UpdateEstablishmentRequest) (*models.Establishment, error)
}

type establishmentService struct {
	repo         repositories.EstablishmentRepository
	tx           repositories.Transactor
	defaults     EstablishmentSettings
	queryTimeout time.Duration
}

// NewEstablishmentService creates a new instance of EstablishmentService.
func NewEstablishmentService(repo repositories.EstablishmentRepository, tx repositories.Transactor, defaults EstablishmentSettings, queryTimeout time.Duration) EstablishmentService {
	return &establishmentService{repo: repo, tx: tx, defaults: defaults, queryTimeout: queryTimeout}
}

func (s *establishmentService) EffectiveSettings(ctx context.Context, establishmentID int64) (EstablishmentSettings, error) {
	settings := s.defaults
	e, err := s.repo.GetEstablishmentByID(ctx, establishmentID)
	if err != nil {
		return settings, mapRepoError(fmt.Sprintf("establishment %d", establishmentID), err)
	}
	if e.ServiceFeeRate != nil {
		settings.ServiceFeeRate = *e.ServiceFeeRate
	}
	if e.KitchenLateAfterMinutes != nil && *e.KitchenLateAfterMinutes > 0 {
		settings.KitchenLateAfter = time.Duration(*e.KitchenLateAfterMinutes) * time.Minute
	}
	return settings, nil
}

func (s *establishmentService) GetEstablishment(ctx context.Context, sess models.Session) (*models.Establishment, error) {
	if err := checkSession(sess); err != nil {
		return nil, err
	}
	ctx, cancel := withQueryTimeout(ctx, s.queryTimeout)
	defer cancel()

	e, err := s.repo.GetEstablishmentByID(ctx, sess.EstablishmentID)
	if err != nil {
		return nil, mapRepoError("loading establishment", err)
	}
	return e, nil
}

func (s *establishmentService) UpdateEstablishment(ctx context.Context, sess models.Session, req UpdateEstablishmentRequest) (*models.Establishment, error) {
	if err := checkSession(sess); err != nil {
		return nil, err
	}
	if sess.Role != models.RoleManager {
		return nil, fmt.Errorf("%w: only managers change settings", ErrForbidden)
	}
	if err := validateEstablishmentUpdate(req); err != nil {
		return nil, err
	}

	ctx, cancel := withQueryTimeout(ctx, s.queryTimeout)
	defer cancel()

	e, err := s.repo.GetEstablishmentByID(ctx, sess.EstablishmentID)
	if err != nil {
		return nil, mapRepoError("loading establishment", err)
	}
	if req.Name != nil {
		e.Name = strings.TrimSpace(*req.Name)
	}
	if req.ThemeColor != nil {
		e.ThemeColor = *req.ThemeColor
	}
	if req.ServiceFeeRate != nil {
		rate := *req.ServiceFeeRate
		e.ServiceFeeRate = &rate
	}
	if req.KitchenLateAfterMinutes != nil {
		minutes := *req.KitchenLateAfterMinutes
		e.KitchenLateAfterMinutes = &minutes
	}

	err = s.tx.WithinTx(ctx, func(exec repositories.SQLExecutor) error {
		return s.repo.UpdateEstablishment(ctx, exec, e)
	})
	if err != nil {
		return nil, mapRepoError("updating establishment", err)
	}
	utils.LogInfo("Establishment settings updated", map[string]interface{}{"establishment_id": e.ID, "user_id": sess.UserID})
	return e, nil
}

func validateEstablishmentUpdate(req UpdateEstablishmentRequest) error {
	if req.Name != nil && utils.IsEmpty(*req.Name) {
		return fmt.Errorf("%w: name cannot be empty", ErrValidation)
	}
	if req.ThemeColor != nil && !themeColorPattern.MatchString(*req.ThemeColor) {
		return fmt.Errorf("%w: theme_color must look like #RRGGBB", ErrValidation)
	}
	if req.ServiceFeeRate != nil && (req.ServiceFeeRate.IsNegative() || req.ServiceFeeRate.GreaterThan(decimal.NewFromInt(1))) {
		return fmt.Errorf("%w: service_fee_rate must be within [0, 1]", ErrValidation)
	}
	if req.KitchenLateAfterMinutes != nil && *req.KitchenLateAfterMinutes < 1 {
		return fmt.Errorf("%w: kitchen_late_after_minutes must be positive", ErrValidation)
	}
	return nil
}
