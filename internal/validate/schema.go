package validate

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/go-playground/validator/v10/non-standard/validators"

	"github.com/ppiankov/veritas/internal/model"
	"github.com/ppiankov/veritas/internal/wire"
)

var schema = newSchema()

func newSchema() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("notblank", validators.NotBlank); err != nil {
		panic(fmt.Sprintf("register notblank: %v", err))
	}
	return v
}

// Verification checks a miner's verify response and converts it into a
// VerificationResult. Any schema or range violation returns an error wrapping
// model.ErrMalformed; confidence is never clamped.
func Verification(minerID string, roundID string, statementID string, resp *wire.VerifyResponse, receivedAt time.Time, latency time.Duration) (*model.VerificationResult, error) {
	if resp == nil {
		return nil, fmt.Errorf("%w: empty body", model.ErrMalformed)
	}
	if err := checkStruct(resp); err != nil {
		return nil, err
	}
	if err := checkStatement(statementID, resp.StatementID); err != nil {
		return nil, err
	}
	if err := checkConfidence(*resp.Confidence); err != nil {
		return nil, err
	}

	return &model.VerificationResult{
		MinerID:     minerID,
		StatementID: statementID,
		RoundID:     roundID,
		IsTrue:      *resp.IsTrue,
		Confidence:  *resp.Confidence,
		Evidence:    convertEvidence(resp.Evidence),
		Explanation: strings.TrimSpace(*resp.Explanation),
		Methodology: strings.TrimSpace(*resp.Methodology),
		ReceivedAt:  receivedAt,
		Latency:     latency,
	}, nil
}

// Review checks a reviewer's response and converts it into a result that can
// serve as a verdict's alternative result
func Review(reviewerID string, roundID string, statementID string, resp *wire.ReviewResponse, receivedAt time.Time, latency time.Duration) (*model.VerificationResult, error) {
	if resp == nil {
		return nil, fmt.Errorf("%w: empty body", model.ErrMalformed)
	}
	if err := checkStruct(resp); err != nil {
		return nil, err
	}
	if err := checkStatement(statementID, resp.StatementID); err != nil {
		return nil, err
	}
	if err := checkConfidence(*resp.Confidence); err != nil {
		return nil, err
	}

	return &model.VerificationResult{
		MinerID:     reviewerID,
		StatementID: statementID,
		RoundID:     roundID,
		IsTrue:      *resp.IsTrue,
		Confidence:  *resp.Confidence,
		Evidence:    convertEvidence(resp.Evidence),
		ReceivedAt:  receivedAt,
		Latency:     latency,
	}, nil
}

func checkStruct(v interface{}) error {
	err := schema.Struct(v)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) && len(fieldErrs) > 0 {
		fe := fieldErrs[0]
		return fmt.Errorf("%w: field %s failed %q", model.ErrMalformed, fe.Namespace(), fe.Tag())
	}
	return fmt.Errorf("%w: %v", model.ErrMalformed, err)
}

func checkStatement(want, got string) error {
	if got != "" && got != want {
		return fmt.Errorf("%w: answer for statement %q, expected %q", model.ErrMalformed, got, want)
	}
	return nil
}

func checkConfidence(c float64) error {
	if math.IsNaN(c) || math.IsInf(c, 0) || c < 0 || c > 1 {
		return fmt.Errorf("%w: confidence %v outside [0,1]", model.ErrMalformed, c)
	}
	return nil
}

func convertEvidence(items []wire.EvidenceItem) []model.Evidence {
	evidence := make([]model.Evidence, 0, len(items))
	for _, item := range items {
		evidence = append(evidence, model.Evidence{
			Source:  strings.TrimSpace(item.Source),
			Snippet: strings.TrimSpace(item.Snippet),
		})
	}
	return evidence
}
