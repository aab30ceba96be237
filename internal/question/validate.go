package question

import (
	"fmt"

	"quizbank/internal/apperr"
)

var (
	ErrTitleRequired        = apperr.New(apperr.ErrValidation, "Question title must have text or image")
	ErrInvalidOptions       = apperr.New(apperr.ErrValidation, "There must be exactly 4 options and each must have text or image")
	ErrInvalidCorrectAnswer = apperr.New(apperr.ErrValidation, "correctAnswer must be an integer index (0-3) of the options array")
	ErrInvalidDifficulty    = apperr.New(apperr.ErrValidation, "difficulty must be an integer between 1 and 5")
)

// OptionPolicy bounds how many options a question may carry.
type OptionPolicy struct {
	Min int
	Max int
	err error
}

var (
	// ExactlyFour applies to questions written through the API.
	ExactlyFour = OptionPolicy{Min: OptionCount, Max: OptionCount, err: ErrInvalidOptions}
	// BulkRange applies to imported rows, which may carry fewer options.
	BulkRange = OptionPolicy{
		Min: 2,
		Max: OptionCount,
		err: apperr.New(apperr.ErrValidation, "There must be between 2 and 4 options and each must have text or image"),
	}
)

// Candidate is the part of a question the validator inspects.
type Candidate struct {
	Title         MediaText
	Options       []MediaText
	CorrectAnswer *int
	Difficulty    int
}

// Validate runs the checks in order and reports the first failure.
func Validate(c Candidate, policy OptionPolicy) error {
	if err := ValidateTitle(c.Title); err != nil {
		return err
	}
	if err := ValidateOptions(c.Options, policy); err != nil {
		return err
	}
	if err := ValidateCorrectAnswer(c.CorrectAnswer, c.Options); err != nil {
		return err
	}
	return ValidateDifficulty(c.Difficulty)
}

func ValidateTitle(t MediaText) error {
	if t.Empty() {
		return ErrTitleRequired
	}
	return nil
}

func ValidateOptions(opts []MediaText, policy OptionPolicy) error {
	if len(opts) < policy.Min || len(opts) > policy.Max {
		return policy.err
	}
	for _, o := range opts {
		if o.Empty() {
			return policy.err
		}
	}
	return nil
}

// ValidateCorrectAnswer rejects a missing index and any index outside opts.
func ValidateCorrectAnswer(idx *int, opts []MediaText) error {
	if idx == nil || *idx < 0 || *idx >= len(opts) {
		return ErrInvalidCorrectAnswer
	}
	return nil
}

func ValidateDifficulty(d int) error {
	if d < 1 || d > 5 {
		return ErrInvalidDifficulty
	}
	return nil
}

func rangeMessage(n int) string {
	if n <= 0 {
		return "correct answer index out of range"
	}
	return fmt.Sprintf("correct answer must be between 0 and %d", n-1)
}
