package classify

import (
	"errors"
	"testing"
)

func TestClassification_Predicates(t *testing.T) {
	if !Success.IsSuccess() || Success.IsFailure() || Success.IsRetryable() {
		t.Fatalf("Success predicates wrong: %+v", Success)
	}
	if !TransientFailure.IsRetryable() || !TransientFailure.IsFailure() || TransientFailure.IsSuccess() {
		t.Fatalf("TransientFailure predicates wrong")
	}
	if PermanentFailure.IsRetryable() || !PermanentFailure.IsFailure() || PermanentFailure.IsSuccess() {
		t.Fatalf("PermanentFailure predicates wrong")
	}
}

type statusResult struct{ status int }

func TestFromResultClassifier_DispatchesOnError(t *testing.T) {
	rc := ResultClassifierFunc{
		Response: func(resp any) Classification {
			if r, ok := resp.(statusResult); ok && r.status >= 500 {
				return TransientFailure
			}
			return Success
		},
		Exception: func(err error) Classification { return TransientFailure },
	}
	c := FromResultClassifier(rc)

	if out := c.Classify(statusResult{status: 200}, nil); out.Kind != OutcomeSuccess {
		t.Fatalf("200: kind=%v want success", out.Kind)
	}
	if out := c.Classify(statusResult{status: 503}, nil); out.Kind != OutcomeRetryable {
		t.Fatalf("503: kind=%v want retryable", out.Kind)
	}
	if out := c.Classify(nil, errors.New("boom")); out.Kind != OutcomeRetryable {
		t.Fatalf("exception: kind=%v want retryable", out.Kind)
	}
}

func TestCompositeClassifier_FirstNonSuccessWins(t *testing.T) {
	always := classifierFunc(func(any, error) Outcome { return Outcome{Kind: OutcomeSuccess} })
	denies := classifierFunc(func(any, error) Outcome { return Outcome{Kind: OutcomeNonRetryable, Reason: "denied"} })
	neverReached := classifierFunc(func(any, error) Outcome {
		t.Fatal("should not be consulted after a non-success verdict")
		return Outcome{}
	})

	c := CompositeClassifier{Classifiers: []Classifier{always, denies, neverReached}}
	out := c.Classify(nil, nil)
	if out.Kind != OutcomeNonRetryable || out.Reason != "denied" {
		t.Fatalf("out=%+v, want non-retryable denied", out)
	}
}

func TestCompositeClassifier_AllSuccess(t *testing.T) {
	always := classifierFunc(func(any, error) Outcome { return Outcome{Kind: OutcomeSuccess} })
	c := CompositeClassifier{Classifiers: []Classifier{always, always}}
	if out := c.Classify(nil, nil); out.Kind != OutcomeSuccess {
		t.Fatalf("out=%+v, want success", out)
	}
}

func TestCompositeClassifier_Empty(t *testing.T) {
	c := CompositeClassifier{}
	if out := c.Classify(nil, nil); out.Kind != OutcomeSuccess {
		t.Fatalf("empty composite: out=%+v, want success", out)
	}
}
