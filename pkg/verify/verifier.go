package verify

import (
	"context"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/Sriram-PR/logo-scraper/pkg/config"
	"github.com/Sriram-PR/logo-scraper/pkg/fetch"
	"github.com/Sriram-PR/logo-scraper/pkg/utils"
)

// Verifier turns logo detections into a score bonus for candidates that
// show the brand. Detection failures are never fatal and earn no bonus.
type Verifier struct {
	detector      Detector
	gate          *fetch.Gate
	minConfidence float32
	bonus         float64
	timeout       time.Duration
	log           *logrus.Entry
}

// NewVerifier wraps detector with the configured threshold and bonus
func NewVerifier(detector Detector, cfg config.VisionConfig, clock fetch.Clock, log *logrus.Entry) *Verifier {
	return &Verifier{
		detector:      detector,
		gate:          fetch.NewGate(cfg.Delay, clock),
		minConfidence: cfg.MinConfidence,
		bonus:         cfg.Bonus,
		timeout:       cfg.Timeout,
		log:           log,
	}
}

// Bonus returns the configured bonus when a detected logo names one of the brand
// terms with enough confidence, otherwise 0.
func (v *Verifier) Bonus(ctx context.Context, imageData []byte, brandTerms []string) float64 {
	if v == nil || v.detector == nil {
		return 0
	}
	if err := v.gate.Wait(ctx); err != nil {
		return 0
	}

	callCtx := ctx
	if v.timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, v.timeout)
		defer cancel()
	}

	logos, err := v.detector.DetectLogos(callCtx, imageData)
	if err != nil {
		if ctx.Err() == nil {
			v.log.Debugf("Logo detection failed: %v", err)
		}
		return 0
	}

	for _, logo := range logos {
		if logo.Confidence < v.minConfidence {
			continue
		}
		if MatchesBrand(logo.Name, brandTerms) {
			v.log.WithFields(logrus.Fields{"detected": logo.Name, "confidence": logo.Confidence}).Debug("Detected logo matches brand")
			return v.bonus
		}
	}
	return 0
}

// MatchesBrand compares a detected description with brand terms, ignoring case and punctuation
func MatchesBrand(description string, brandTerms []string) bool {
	desc := utils.CompactName(description)
	if len(desc) < 3 {
		return false
	}
	for _, term := range brandTerms {
		t := utils.CompactName(term)
		if len(t) < 3 {
			continue
		}
		if strings.Contains(desc, t) || strings.Contains(t, desc) {
			return true
		}
	}
	return false
}
