package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/print-hub-api/internal/dto"
	"github.com/noah-isme/print-hub-api/internal/models"
	appErrors "github.com/noah-isme/print-hub-api/pkg/errors"
)

type memSettingsRepo struct {
	values  map[string]string
	audits  []*models.AuditLog
	listErr error
}

func newMemSettingsRepo(values map[string]string) *memSettingsRepo {
	if values == nil {
		values = map[string]string{}
	}
	return &memSettingsRepo{values: values}
}

func (r *memSettingsRepo) ListByKeys(_ context.Context, keys []string) ([]models.Configuration, error) {
	if r.listErr != nil {
		return nil, r.listErr
	}
	var out []models.Configuration
	for _, k := range keys {
		if v, ok := r.values[k]; ok {
			out = append(out, models.Configuration{Key: k, Value: v})
		}
	}
	return out, nil
}

func (r *memSettingsRepo) BulkUpsert(_ context.Context, cfgs []models.Configuration, audit *models.AuditLog) error {
	for _, c := range cfgs {
		r.values[c.Key] = c.Value
	}
	if audit != nil {
		r.audits = append(r.audits, audit)
	}
	return nil
}

func TestSettingsServiceDefaultsAndMasking(t *testing.T) {
	svc := NewSettingsService(newMemSettingsRepo(nil), nil, nil)
	settings, err := svc.Get(context.Background())
	require.NoError(t, err)
	assert.False(t, settings.Enabled)
	assert.Equal(t, "TEST", settings.Environment)
	assert.Empty(t, settings.MerchantKey)

	svc = NewSettingsService(newMemSettingsRepo(map[string]string{
		models.ConfigKeyPaymentEnabled: "true",
		models.ConfigKeyMerchantID:     "MID123",
		models.ConfigKeyMerchantKey:    "s3cr3t",
		models.ConfigKeyEnvironment:    "prod",
	}), nil, nil)
	settings, err = svc.Get(context.Background())
	require.NoError(t, err)
	assert.True(t, settings.Enabled)
	assert.Equal(t, "PROD", settings.Environment)
	assert.Equal(t, "********", settings.MerchantKey)

	raw, err := svc.Load(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "s3cr3t", raw.MerchantKey)
}

func TestSettingsServiceUpdateKeepsKeyWhenBlank(t *testing.T) {
	repo := newMemSettingsRepo(map[string]string{models.ConfigKeyMerchantKey: "old-key"})
	svc := NewSettingsService(repo, nil, nil)

	out, err := svc.Update(context.Background(), dto.UpdatePaymentSettingsRequest{Enabled: true, MerchantID: "MID1", Environment: "PROD"}, models.Actor{Name: "root"})
	require.NoError(t, err)
	assert.Equal(t, "********", out.MerchantKey)
	assert.Equal(t, "old-key", repo.values[models.ConfigKeyMerchantKey])
	assert.Equal(t, "true", repo.values[models.ConfigKeyPaymentEnabled])
	assert.Equal(t, "PROD", repo.values[models.ConfigKeyEnvironment])

	_, err = svc.Update(context.Background(), dto.UpdatePaymentSettingsRequest{Enabled: true, MerchantID: "MID1", MerchantKey: "new-key"}, models.Actor{Name: "root"})
	require.NoError(t, err)
	assert.Equal(t, "new-key", repo.values[models.ConfigKeyMerchantKey])
	assert.Equal(t, "PROD", repo.values[models.ConfigKeyEnvironment])
}

func TestSettingsServiceAuditOmitsMerchantKey(t *testing.T) {
	repo := newMemSettingsRepo(nil)
	svc := NewSettingsService(repo, nil, nil)

	_, err := svc.Update(context.Background(), dto.UpdatePaymentSettingsRequest{Enabled: true, MerchantID: "MID1", MerchantKey: "top-secret"}, models.Actor{Name: "root", IP: "10.0.0.9"})
	require.NoError(t, err)
	require.Len(t, repo.audits, 1)

	audit := repo.audits[0]
	assert.Equal(t, models.AuditActionUpdatePaymentSettings, audit.Action)
	assert.Equal(t, models.AuditEntityPaymentSettings, audit.EntityType)
	assert.Equal(t, "10.0.0.9", audit.IPAddress)
	assert.True(t, audit.AfterState.Settings.KeyConfigured)
	assert.False(t, audit.BeforeState.Settings.KeyConfigured)

	encoded, err := json.Marshal(audit)
	require.NoError(t, err)
	assert.NotContains(t, string(encoded), "top-secret")
}

func TestSettingsServiceUpdateValidation(t *testing.T) {
	svc := NewSettingsService(newMemSettingsRepo(nil), nil, nil)

	cases := map[string]dto.UpdatePaymentSettingsRequest{
		"enabled without merchant id":  {Enabled: true, MerchantKey: "k"},
		"enabled without merchant key": {Enabled: true, MerchantID: "MID1"},
		"unknown environment":          {MerchantID: "MID1", Environment: "SANDBOX"},
	}
	for name, req := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.Update(context.Background(), req, models.Actor{Name: "root"})
			require.Error(t, err)
			assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
		})
	}
}

func TestSettingsServiceLoadFailure(t *testing.T) {
	repo := newMemSettingsRepo(nil)
	repo.listErr = errors.New("db down")
	svc := NewSettingsService(repo, nil, nil)

	_, err := svc.Get(context.Background())
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInternal.Code, appErrors.FromError(err).Code)
}
