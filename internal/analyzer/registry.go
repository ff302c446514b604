package analyzer

import "github.com/ivlev/sheet2photos/internal/errs"

// SkewOptions carries the settings shared by skew estimators.
type SkewOptions struct {
	MaxLines int
	MinVotes int
}

// NewSkewEstimator creates an estimator based on the specified variant
func NewSkewEstimator(variant string, opts SkewOptions) (SkewEstimator, error) {
	switch variant {
	case "minrect", "":
		return NewMinRectEstimator(), nil
	case "hough":
		return NewHoughEstimator(opts.MaxLines, opts.MinVotes), nil
	case "ocr":
		return nil, errs.New(errs.InvalidParameter, "", "OCR skew estimator not yet implemented")
	default:
		return nil, errs.New(errs.InvalidParameter, "", "unknown skew estimator variant: %s", variant)
	}
}
