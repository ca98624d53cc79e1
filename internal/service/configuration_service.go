package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/sekolahku/sims-api/internal/models"
	appErrors "github.com/sekolahku/sims-api/pkg/errors"
)

type configurationRepository interface {
	ListAll(ctx context.Context) ([]models.Configuration, error)
	Get(ctx context.Context, key string) (*models.Configuration, error)
	Upsert(ctx context.Context, entry *models.Configuration) error
}

type configurationCache interface {
	Get(ctx context.Context, key string, dest interface{}) error
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Delete(ctx context.Context, key string) error
}

type configurationAuditLogger interface {
	CreateAuditLog(ctx context.Context, log *models.AuditLog) error
}

type allowedConfiguration struct {
	Key         string
	Type        models.ConfigurationType
	Description string
	Default     string
}

const configurationCacheKeyPrefix = "config:"

var allowedConfigurationKeys = []string{
	"school_display_name",
	"academic_year",
	"admission_open",
	"admission_review_window_days",
	"attendance_backfill_window_days",
	"fee_grace_days",
}

var allowedConfigurations = map[string]allowedConfiguration{
	"school_display_name": {
		Key:         "school_display_name",
		Type:        models.ConfigurationTypeString,
		Description: "Display name for the school shown in headers and letters",
	},
	"academic_year": {
		Key:         "academic_year",
		Type:        models.ConfigurationTypeString,
		Description: "Current academic year label",
	},
	"admission_open": {
		Key:         "admission_open",
		Type:        models.ConfigurationTypeBoolean,
		Description: "Toggle accepting new admission applications",
		Default:     "true",
	},
	"admission_review_window_days": {
		Key:         "admission_review_window_days",
		Type:        models.ConfigurationTypeInteger,
		Description: "Days a PENDING admission may sit before reminders fire",
		Default:     "14",
	},
	"attendance_backfill_window_days": {
		Key:         "attendance_backfill_window_days",
		Type:        models.ConfigurationTypeInteger,
		Description: "How many days back attendance may be recorded",
		Default:     "30",
	},
	"fee_grace_days": {
		Key:         "fee_grace_days",
		Type:        models.ConfigurationTypeInteger,
		Description: "Grace period before a past-due invoice is flagged overdue",
		Default:     "0",
	},
}

// ConfigurationItem is the API shape of one configuration entry.
type ConfigurationItem struct {
	Key         string `json:"key"`
	Value       string `json:"value"`
	Type        string `json:"type"`
	Description string `json:"description"`
}

// ConfigurationService manages the allowlisted school configuration with
// cached reads and audit-logged writes.
type ConfigurationService struct {
	repo     configurationRepository
	cache    configurationCache
	audit    configurationAuditLogger
	cacheTTL time.Duration
	logger   *zap.Logger
}

// NewConfigurationService constructs a ConfigurationService. A nil cache
// disables read caching; a nil audit logger disables write auditing.
func NewConfigurationService(repo configurationRepository, cache configurationCache, audit configurationAuditLogger, cacheTTL time.Duration, logger *zap.Logger) *ConfigurationService {
	if cacheTTL <= 0 {
		cacheTTL = 5 * time.Minute
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ConfigurationService{repo: repo, cache: cache, audit: audit, cacheTTL: cacheTTL, logger: logger}
}

// List returns every allowlisted entry, filling in defaults for keys never
// written.
func (s *ConfigurationService) List(ctx context.Context) ([]ConfigurationItem, error) {
	rows, err := s.repo.ListAll(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list configurations")
	}
	existing := make(map[string]models.Configuration, len(rows))
	for _, row := range rows {
		existing[row.Key] = row
	}

	items := make([]ConfigurationItem, 0, len(allowedConfigurationKeys))
	for _, key := range allowedConfigurationKeys {
		meta := allowedConfigurations[key]
		item := ConfigurationItem{
			Key:         key,
			Value:       meta.Default,
			Type:        string(meta.Type),
			Description: meta.Description,
		}
		if row, ok := existing[key]; ok {
			item.Value = row.Value
		}
		items = append(items, item)
	}
	return items, nil
}

// Get retrieves a single configuration entry, preferring the cache.
func (s *ConfigurationService) Get(ctx context.Context, key string) (*ConfigurationItem, error) {
	meta, err := s.requireAllowedKey(key)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		var cached ConfigurationItem
		if err := s.cache.Get(ctx, configurationCacheKeyPrefix+key, &cached); err == nil {
			return &cached, nil
		}
	}

	item := &ConfigurationItem{
		Key:         key,
		Value:       meta.Default,
		Type:        string(meta.Type),
		Description: meta.Description,
	}
	entry, err := s.repo.Get(ctx, key)
	if err != nil {
		if err != sql.ErrNoRows {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to get configuration")
		}
		if meta.Default == "" {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "configuration not set")
		}
	} else {
		item.Value = entry.Value
	}

	if s.cache != nil {
		if err := s.cache.Set(ctx, configurationCacheKeyPrefix+key, item, s.cacheTTL); err != nil {
			s.logger.Warn("failed to cache configuration", zap.String("key", key), zap.Error(err))
		}
	}
	return item, nil
}

// Update writes an allowlisted entry, invalidates its cache and records an
// audit row.
func (s *ConfigurationService) Update(ctx context.Context, key, value string, actor *models.JWTClaims) (*ConfigurationItem, error) {
	meta, err := s.requireAllowedKey(key)
	if err != nil {
		return nil, err
	}
	value, err = normalizeConfigValue(meta, value)
	if err != nil {
		return nil, err
	}

	prev, err := s.repo.Get(ctx, key)
	if err != nil && err != sql.ErrNoRows {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to fetch configuration")
	}

	entry := &models.Configuration{
		Key:         key,
		Value:       value,
		Type:        meta.Type,
		Description: strPtr(meta.Description),
		UpdatedBy:   userIDPtr(actor),
	}
	if err := s.repo.Upsert(ctx, entry); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update configuration")
	}

	if s.cache != nil {
		if err := s.cache.Delete(ctx, configurationCacheKeyPrefix+key); err != nil {
			s.logger.Warn("failed to invalidate configuration cache", zap.String("key", key), zap.Error(err))
		}
	}
	s.emitAudit(ctx, actor, key, prevValue(prev), value)

	return &ConfigurationItem{
		Key:         key,
		Value:       value,
		Type:        string(meta.Type),
		Description: meta.Description,
	}, nil
}

// IntValue reads an integer entry, falling back to its default.
func (s *ConfigurationService) IntValue(ctx context.Context, key string) (int, error) {
	item, err := s.Get(ctx, key)
	if err != nil {
		return 0, err
	}
	n, err := strconv.Atoi(item.Value)
	if err != nil {
		return 0, appErrors.Clone(appErrors.ErrInternal, fmt.Sprintf("configuration %s is not an integer", key))
	}
	return n, nil
}

// BoolValue reads a boolean entry, falling back to its default.
func (s *ConfigurationService) BoolValue(ctx context.Context, key string) (bool, error) {
	item, err := s.Get(ctx, key)
	if err != nil {
		return false, err
	}
	return item.Value == "true", nil
}

func (s *ConfigurationService) requireAllowedKey(key string) (allowedConfiguration, error) {
	meta, ok := allowedConfigurations[key]
	if !ok {
		return allowedConfiguration{}, appErrors.Clone(appErrors.ErrValidation, "unsupported configuration key")
	}
	return meta, nil
}

func normalizeConfigValue(meta allowedConfiguration, value string) (string, error) {
	value = strings.TrimSpace(value)
	switch meta.Type {
	case models.ConfigurationTypeBoolean:
		switch strings.ToLower(value) {
		case "true":
			return "true", nil
		case "false":
			return "false", nil
		default:
			return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s expects a boolean value", meta.Key))
		}
	case models.ConfigurationTypeInteger:
		n, err := strconv.Atoi(value)
		if err != nil || n < 0 {
			return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s expects a non-negative integer", meta.Key))
		}
		return strconv.Itoa(n), nil
	case models.ConfigurationTypeString:
		if value == "" {
			return "", appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("%s cannot be empty", meta.Key))
		}
		return value, nil
	default:
		return "", appErrors.Clone(appErrors.ErrValidation, "unsupported configuration type")
	}
}

func (s *ConfigurationService) emitAudit(ctx context.Context, actor *models.JWTClaims, key, oldValue, newValue string) {
	if s.audit == nil {
		return
	}
	oldBytes, _ := json.Marshal(map[string]string{"key": key, "value": oldValue})
	newBytes, _ := json.Marshal(map[string]string{"key": key, "value": newValue})
	log := &models.AuditLog{
		UserID:     userIDPtr(actor),
		Action:     models.AuditActionConfigurationUpdate,
		Resource:   "configuration",
		ResourceID: &key,
		OldValues:  oldBytes,
		NewValues:  newBytes,
		IPAddress:  "system",
		UserAgent:  "configuration-service",
	}
	if err := s.audit.CreateAuditLog(ctx, log); err != nil {
		s.logger.Warn("failed to record configuration audit", zap.Error(err))
	}
}

func prevValue(cfg *models.Configuration) string {
	if cfg == nil {
		return ""
	}
	return cfg.Value
}

func userIDPtr(actor *models.JWTClaims) *string {
	if actor == nil || actor.UserID == "" {
		return nil
	}
	return &actor.UserID
}

func strPtr(value string) *string {
	if value == "" {
		return nil
	}
	result := value
	return &result
}
