package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/sensorgrid/devicehub-backend/pkg/logger"
	"github.com/sensorgrid/devicehub-backend/pkg/metrics"
)

const (
	OTPExpirySweepJobName = "otp_expiry_sweep"
	OTPPurgeJobName       = "otp_purge"

	defaultOTPRetention = 7 * 24 * time.Hour
)

type otpMaintainer interface {
	ExpireStale(ctx context.Context, now time.Time) (int64, error)
	PurgeConsumedBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// OTPJobParams configure the OTP maintenance jobs.
type OTPJobParams struct {
	Logger    *logger.Logger
	OTP       otpMaintainer
	Metrics   *metrics.CronJobMetrics
	Retention time.Duration
}

func (p OTPJobParams) validate() error {
	if p.Logger == nil {
		return fmt.Errorf("logger required")
	}
	if p.OTP == nil {
		return fmt.Errorf("otp service required")
	}
	return nil
}

// NewOTPExpirySweepJob closes sessions whose code lifetime has passed.
func NewOTPExpirySweepJob(p OTPJobParams) (Job, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	return &otpExpirySweepJob{logg: p.Logger, otp: p.OTP, metrics: p.Metrics, now: time.Now}, nil
}

// NewOTPPurgeJob deletes closed sessions older than the retention window.
func NewOTPPurgeJob(p OTPJobParams) (Job, error) {
	if err := p.validate(); err != nil {
		return nil, err
	}
	retention := p.Retention
	if retention <= 0 {
		retention = defaultOTPRetention
	}
	return &otpPurgeJob{logg: p.Logger, otp: p.OTP, metrics: p.Metrics, retention: retention, now: time.Now}, nil
}

type otpExpirySweepJob struct {
	logg    *logger.Logger
	otp     otpMaintainer
	metrics *metrics.CronJobMetrics
	now     func() time.Time
}

func (j *otpExpirySweepJob) Name() string { return OTPExpirySweepJobName }

func (j *otpExpirySweepJob) Run(ctx context.Context) error {
	expired, err := j.otp.ExpireStale(ctx, j.now().UTC())
	if err != nil {
		return fmt.Errorf("expire otp sessions: %w", err)
	}
	j.metrics.AddRows(OTPExpirySweepJobName, expired)
	if expired > 0 {
		j.logg.Info(j.logg.WithField(ctx, "sessions_expired", expired), "otp sessions expired")
	}
	return nil
}

type otpPurgeJob struct {
	logg      *logger.Logger
	otp       otpMaintainer
	metrics   *metrics.CronJobMetrics
	retention time.Duration
	now       func() time.Time
}

func (j *otpPurgeJob) Name() string { return OTPPurgeJobName }

func (j *otpPurgeJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	purged, err := j.otp.PurgeConsumedBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("purge otp sessions: %w", err)
	}
	j.metrics.AddRows(OTPPurgeJobName, purged)
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"rows_deleted": purged,
	})
	j.logg.Info(logCtx, "otp purge complete")
	return nil
}
