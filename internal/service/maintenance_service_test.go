package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sekolahku/sims-api/pkg/config"
	"github.com/sekolahku/sims-api/pkg/jobs"
)

type mockAdmissionScanner struct {
	window time.Duration
	count  int
	err    error
}

func (m *mockAdmissionScanner) StaleScan(ctx context.Context, reviewWindow time.Duration) (int, error) {
	m.window = reviewWindow
	return m.count, m.err
}

type mockFeeScanner struct {
	called bool
	err    error
}

func (m *mockFeeScanner) OverdueScan(ctx context.Context) (int64, error) {
	m.called = true
	return 0, m.err
}

func TestMaintenanceServiceAdmissionStaleScan(t *testing.T) {
	admissions := &mockAdmissionScanner{count: 2}
	svc := NewMaintenanceService(admissions, &mockFeeScanner{}, config.AdmissionsConfig{ReviewWindowDays: 14}, nil, nil)

	err := svc.Handle(context.Background(), jobs.Job{ID: "j1", Type: JobAdmissionStaleScan})
	require.NoError(t, err)
	assert.Equal(t, 14*24*time.Hour, admissions.window)
}

func TestMaintenanceServiceFeeOverdueScan(t *testing.T) {
	fees := &mockFeeScanner{}
	svc := NewMaintenanceService(&mockAdmissionScanner{}, fees, config.AdmissionsConfig{}, nil, nil)

	err := svc.Handle(context.Background(), jobs.Job{ID: "j2", Type: JobFeeOverdueScan})
	require.NoError(t, err)
	assert.True(t, fees.called)
}

func TestMaintenanceServiceUnknownJobType(t *testing.T) {
	svc := NewMaintenanceService(&mockAdmissionScanner{}, &mockFeeScanner{}, config.AdmissionsConfig{}, nil, nil)

	err := svc.Handle(context.Background(), jobs.Job{ID: "j3", Type: "vacuum_database"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown maintenance job")
}

func TestMaintenanceServicePropagatesScanError(t *testing.T) {
	fees := &mockFeeScanner{err: assert.AnError}
	svc := NewMaintenanceService(&mockAdmissionScanner{}, fees, config.AdmissionsConfig{}, nil, nil)

	err := svc.Handle(context.Background(), jobs.Job{ID: "j4", Type: JobFeeOverdueScan})
	require.Error(t, err)
}
