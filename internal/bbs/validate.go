package bbs

import (
	"errors"
	"fmt"
	"html"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/microcosm-cc/bluemonday"

	"github.com/mathclub/festival-bbs/internal/domain"
)

const (
	// DefaultAuthor replaces a blank author name.
	DefaultAuthor    = "名無しの数学部員"
	MaxAuthorLength  = 50
	MaxContentLength = 2000

	maxStripPasses = 8
)

type submission struct {
	BoardID string `validate:"required,max=64"`
	Author  string `validate:"max=50"`
	Content string `validate:"required,max=2000"`
}

// Sanitizer cleans visitor input before it is stored.
type Sanitizer struct {
	policy   *bluemonday.Policy
	validate *validator.Validate
}

// NewSanitizer uses the strict policy, which keeps no markup at all.
func NewSanitizer() *Sanitizer {
	return &Sanitizer{
		policy:   bluemonday.StrictPolicy(),
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// strip removes markup but keeps plain text like "a < b" readable. Decoding
// entities can produce new markup, so the policy runs again until the text
// stops changing. Input that never settles is kept in its escaped form.
func (s *Sanitizer) strip(text string) string {
	for i := 0; i < maxStripPasses; i++ {
		next := html.UnescapeString(s.policy.Sanitize(text))
		if next == text {
			return strings.TrimSpace(text)
		}
		text = next
	}
	return strings.TrimSpace(s.policy.Sanitize(text))
}

// Normalize validates a submission and returns the values to store.
func (s *Sanitizer) Normalize(in domain.NewPost) (domain.NewPost, error) {
	out := domain.NewPost{
		BoardID: strings.TrimSpace(in.BoardID),
		Author:  s.strip(in.Author),
		Content: s.strip(in.Content),
	}
	if strings.TrimSpace(in.Content) == "" || out.Content == "" {
		return domain.NewPost{}, &domain.ValidationError{Field: "content", Message: "must not be empty"}
	}

	err := s.validate.Struct(submission{BoardID: out.BoardID, Author: out.Author, Content: out.Content})
	if err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return domain.NewPost{}, fieldError(verrs[0])
		}
		return domain.NewPost{}, err
	}

	if out.Author == "" {
		out.Author = DefaultAuthor
	}
	return out, nil
}

func fieldError(fe validator.FieldError) *domain.ValidationError {
	field := strings.ToLower(fe.Field())
	if field == "boardid" {
		field = "board_id"
	}
	switch fe.Tag() {
	case "required":
		return &domain.ValidationError{Field: field, Message: "is required"}
	case "max":
		return &domain.ValidationError{Field: field, Message: fmt.Sprintf("must be at most %s characters", fe.Param())}
	default:
		return &domain.ValidationError{Field: field, Message: fmt.Sprintf("failed %q check", fe.Tag())}
	}
}
