package metrics

import (
	"errors"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/ppiankov/veritas/internal/model"
)

func TestRecordOutcome(t *testing.T) {
	before := testutil.ToFloat64(minerOutcomes.WithLabelValues(KindVerify, "timeout"))
	RecordOutcome(KindVerify, model.OutcomeTimeout, 2*time.Second)
	after := testutil.ToFloat64(minerOutcomes.WithLabelValues(KindVerify, "timeout"))

	if after-before != 1 {
		t.Errorf("expected timeout counter to increase by 1, got %v", after-before)
	}
}

func TestRecordLateAndRetry(t *testing.T) {
	lateBefore := testutil.ToFloat64(lateResponses.WithLabelValues(KindReview))
	retryBefore := testutil.ToFloat64(networkRetries)

	RecordLate(KindReview)
	RecordRetry()
	RecordRetry()

	if got := testutil.ToFloat64(lateResponses.WithLabelValues(KindReview)) - lateBefore; got != 1 {
		t.Errorf("expected 1 late response, got %v", got)
	}
	if got := testutil.ToFloat64(networkRetries) - retryBefore; got != 2 {
		t.Errorf("expected 2 retries, got %v", got)
	}
}

func TestRecordRound(t *testing.T) {
	okBefore := testutil.ToFloat64(rounds.WithLabelValues("ok"))
	failedBefore := testutil.ToFloat64(rounds.WithLabelValues("failed"))

	RecordRound(nil, time.Second)
	RecordRound(errors.New("boom"), time.Second)

	if got := testutil.ToFloat64(rounds.WithLabelValues("ok")) - okBefore; got != 1 {
		t.Errorf("expected 1 ok round, got %v", got)
	}
	if got := testutil.ToFloat64(rounds.WithLabelValues("failed")) - failedBefore; got != 1 {
		t.Errorf("expected 1 failed round, got %v", got)
	}
}

func TestRecordWeights(t *testing.T) {
	RecordWeights(&model.WeightVector{Version: 7, Weights: map[string]float64{"m1": 0.75, "m2": 0.25}})

	if got := testutil.ToFloat64(minerWeight.WithLabelValues("m1")); got != 0.75 {
		t.Errorf("expected m1 weight 0.75, got %v", got)
	}
	if got := testutil.ToFloat64(weightVersion); got != 7 {
		t.Errorf("expected version 7, got %v", got)
	}

	RecordWeights(&model.WeightVector{Version: 8, Weights: map[string]float64{"m2": 1}})
	if got := testutil.CollectAndCount(minerWeight); got != 1 {
		t.Errorf("expected gauges reset to 1 series, got %d", got)
	}

	RecordWeights(nil)
}
