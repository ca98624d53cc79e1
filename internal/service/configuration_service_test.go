package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sekolahku/sims-api/internal/models"
	appErrors "github.com/sekolahku/sims-api/pkg/errors"
)

type mockConfigurationRepo struct {
	entries map[string]models.Configuration
	saved   *models.Configuration
}

func (m *mockConfigurationRepo) ListAll(ctx context.Context) ([]models.Configuration, error) {
	var list []models.Configuration
	for _, e := range m.entries {
		list = append(list, e)
	}
	return list, nil
}

func (m *mockConfigurationRepo) Get(ctx context.Context, key string) (*models.Configuration, error) {
	if e, ok := m.entries[key]; ok {
		return &e, nil
	}
	return nil, sql.ErrNoRows
}

func (m *mockConfigurationRepo) Upsert(ctx context.Context, entry *models.Configuration) error {
	if m.entries == nil {
		m.entries = make(map[string]models.Configuration)
	}
	m.entries[entry.Key] = *entry
	m.saved = entry
	return nil
}

type mockConfigurationCache struct {
	store   map[string][]byte
	deleted []string
	hits    int
}

func (m *mockConfigurationCache) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.store[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	m.hits++
	return json.Unmarshal(raw, dest)
}

func (m *mockConfigurationCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if m.store == nil {
		m.store = make(map[string][]byte)
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.store[key] = raw
	return nil
}

func (m *mockConfigurationCache) Delete(ctx context.Context, key string) error {
	delete(m.store, key)
	m.deleted = append(m.deleted, key)
	return nil
}

type mockConfigAudit struct {
	logs []models.AuditLog
}

func (m *mockConfigAudit) CreateAuditLog(ctx context.Context, log *models.AuditLog) error {
	m.logs = append(m.logs, *log)
	return nil
}

func TestConfigurationServiceListFillsDefaults(t *testing.T) {
	repo := &mockConfigurationRepo{entries: map[string]models.Configuration{
		"academic_year": {Key: "academic_year", Value: "2026/2027", Type: models.ConfigurationTypeString},
	}}
	svc := NewConfigurationService(repo, nil, nil, 0, nil)

	items, err := svc.List(context.Background())
	require.NoError(t, err)
	require.Len(t, items, len(allowedConfigurationKeys))

	byKey := make(map[string]ConfigurationItem, len(items))
	for _, item := range items {
		byKey[item.Key] = item
	}
	assert.Equal(t, "2026/2027", byKey["academic_year"].Value)
	assert.Equal(t, "true", byKey["admission_open"].Value)
	assert.Equal(t, "14", byKey["admission_review_window_days"].Value)
}

func TestConfigurationServiceGetUnknownKey(t *testing.T) {
	svc := NewConfigurationService(&mockConfigurationRepo{}, nil, nil, 0, nil)

	_, err := svc.Get(context.Background(), "smtp_password")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestConfigurationServiceGetUnsetWithoutDefault(t *testing.T) {
	svc := NewConfigurationService(&mockConfigurationRepo{}, nil, nil, 0, nil)

	_, err := svc.Get(context.Background(), "school_display_name")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestConfigurationServiceGetCachesReads(t *testing.T) {
	repo := &mockConfigurationRepo{entries: map[string]models.Configuration{
		"fee_grace_days": {Key: "fee_grace_days", Value: "7", Type: models.ConfigurationTypeInteger},
	}}
	cache := &mockConfigurationCache{}
	svc := NewConfigurationService(repo, cache, nil, time.Minute, nil)

	item, err := svc.Get(context.Background(), "fee_grace_days")
	require.NoError(t, err)
	assert.Equal(t, "7", item.Value)
	assert.Equal(t, 0, cache.hits)

	item, err = svc.Get(context.Background(), "fee_grace_days")
	require.NoError(t, err)
	assert.Equal(t, "7", item.Value)
	assert.Equal(t, 1, cache.hits)
}

func TestConfigurationServiceUpdateRejectsUnknownKey(t *testing.T) {
	svc := NewConfigurationService(&mockConfigurationRepo{}, nil, nil, 0, nil)

	_, err := svc.Update(context.Background(), "smtp_password", "secret", nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestConfigurationServiceUpdateNormalizesBoolean(t *testing.T) {
	repo := &mockConfigurationRepo{}
	svc := NewConfigurationService(repo, nil, nil, 0, nil)

	item, err := svc.Update(context.Background(), "admission_open", "  TRUE ", nil)
	require.NoError(t, err)
	assert.Equal(t, "true", item.Value)

	_, err = svc.Update(context.Background(), "admission_open", "yes", nil)
	require.Error(t, err)
}

func TestConfigurationServiceUpdateRejectsNegativeInteger(t *testing.T) {
	svc := NewConfigurationService(&mockConfigurationRepo{}, nil, nil, 0, nil)

	_, err := svc.Update(context.Background(), "fee_grace_days", "-1", nil)
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestConfigurationServiceUpdateInvalidatesCacheAndAudits(t *testing.T) {
	repo := &mockConfigurationRepo{entries: map[string]models.Configuration{
		"fee_grace_days": {Key: "fee_grace_days", Value: "0", Type: models.ConfigurationTypeInteger},
	}}
	cache := &mockConfigurationCache{store: map[string][]byte{"config:fee_grace_days": []byte(`{}`)}}
	audit := &mockConfigAudit{}
	actor := &models.JWTClaims{UserID: "u1", Role: models.RoleAdmin}
	svc := NewConfigurationService(repo, cache, audit, 0, nil)

	item, err := svc.Update(context.Background(), "fee_grace_days", "3", actor)
	require.NoError(t, err)
	assert.Equal(t, "3", item.Value)
	assert.Contains(t, cache.deleted, "config:fee_grace_days")

	require.Len(t, audit.logs, 1)
	assert.Equal(t, models.AuditActionConfigurationUpdate, audit.logs[0].Action)
	require.NotNil(t, audit.logs[0].UserID)
	assert.Equal(t, "u1", *audit.logs[0].UserID)
}

func TestConfigurationServiceIntAndBoolValue(t *testing.T) {
	repo := &mockConfigurationRepo{}
	svc := NewConfigurationService(repo, nil, nil, 0, nil)

	n, err := svc.IntValue(context.Background(), "admission_review_window_days")
	require.NoError(t, err)
	assert.Equal(t, 14, n)

	open, err := svc.BoolValue(context.Background(), "admission_open")
	require.NoError(t, err)
	assert.True(t, open)
}
