package verify

import (
	"context"
	"errors"
	"io"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"

	"github.com/Sriram-PR/logo-scraper/pkg/config"
)

type stubDetector struct {
	logos []DetectedLogo
	err   error
	calls int
}

func (d *stubDetector) DetectLogos(_ context.Context, _ []byte) ([]DetectedLogo, error) {
	d.calls++
	return d.logos, d.err
}

func testLogger() *logrus.Entry {
	log := logrus.New()
	log.SetOutput(io.Discard)
	return logrus.NewEntry(log)
}

func testVisionConfig() config.VisionConfig {
	return config.VisionConfig{Enabled: true, MinConfidence: 0.6, Bonus: 15}
}

func TestVerifier_Bonus(t *testing.T) {
	tests := []struct {
		name  string
		logos []DetectedLogo
		err   error
		want  float64
	}{
		{"match", []DetectedLogo{{Name: "Acme Casino", Confidence: 0.9}}, nil, 15},
		{"match after punctuation", []DetectedLogo{{Name: "ACME-Casino Ltd.", Confidence: 0.7}}, nil, 15},
		{"low confidence", []DetectedLogo{{Name: "Acme Casino", Confidence: 0.3}}, nil, 0},
		{"other brand", []DetectedLogo{{Name: "Globex", Confidence: 0.99}}, nil, 0},
		{"no logos", nil, nil, 0},
		{"detector error", nil, errors.New("quota"), 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := &stubDetector{logos: tt.logos, err: tt.err}
			v := NewVerifier(d, testVisionConfig(), nil, testLogger())
			got := v.Bonus(context.Background(), []byte("img"), []string{"acme-casino", "acmecasino"})
			assert.Equal(t, tt.want, got)
			assert.Equal(t, 1, d.calls)
		})
	}
}

func TestVerifier_NilIsNoop(t *testing.T) {
	var v *Verifier
	assert.Zero(t, v.Bonus(context.Background(), nil, []string{"acme"}))
}

func TestVerifier_CancelledContext(t *testing.T) {
	d := &stubDetector{logos: []DetectedLogo{{Name: "Acme", Confidence: 1}}}
	v := NewVerifier(d, testVisionConfig(), nil, testLogger())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.Zero(t, v.Bonus(ctx, nil, []string{"acme"}))
	assert.Zero(t, d.calls)
}

func TestMatchesBrand(t *testing.T) {
	assert.True(t, MatchesBrand("Acme", []string{"acme"}))
	assert.True(t, MatchesBrand("acme", []string{"Acme Casino"}))
	assert.False(t, MatchesBrand("", []string{"acme"}))
	assert.False(t, MatchesBrand("ab", []string{"ab"}), "terms shorter than 3 never match")
}

type hangingDetector struct{ deadline bool }

func (d *hangingDetector) DetectLogos(ctx context.Context, _ []byte) ([]DetectedLogo, error) {
	_, d.deadline = ctx.Deadline()
	<-ctx.Done()
	return nil, ctx.Err()
}

func TestVerifier_DetectionTimeout(t *testing.T) {
	d := &hangingDetector{}
	cfg := testVisionConfig()
	cfg.Timeout = 20 * time.Millisecond
	v := NewVerifier(d, cfg, nil, testLogger())

	start := time.Now()
	assert.Zero(t, v.Bonus(context.Background(), []byte("img"), []string{"acme"}))
	assert.True(t, d.deadline)
	assert.Less(t, time.Since(start), 2*time.Second)
}
