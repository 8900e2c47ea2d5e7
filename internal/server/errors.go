package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
	"strings"

	"connectrpc.com/connect"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	enTranslations "github.com/go-playground/validator/v10/translations/en"
	"google.golang.org/genproto/googleapis/rpc/errdetails"

	"github.com/at-ishikawa/mindbank/internal/auth"
	"github.com/at-ishikawa/mindbank/internal/books"
	"github.com/at-ishikawa/mindbank/internal/bookshelf"
	"github.com/at-ishikawa/mindbank/internal/capture"
	"github.com/at-ishikawa/mindbank/internal/collection"
	"github.com/at-ishikawa/mindbank/internal/dictionary"
	"github.com/at-ishikawa/mindbank/internal/inference"
	"github.com/at-ishikawa/mindbank/internal/item"
	"github.com/at-ishikawa/mindbank/internal/security"
	"github.com/at-ishikawa/mindbank/internal/session"
	"github.com/at-ishikawa/mindbank/internal/speech"
	"github.com/at-ishikawa/mindbank/internal/translation"
)

var (
	errBookNotFound = errors.New("book not found")
	errItemNotFound = errors.New("item not found")
)

// requestValidator checks request messages and reports violations by their
// JSON field names.
type requestValidator struct {
	validate   *validator.Validate
	translator ut.Translator
}

func newRequestValidator() (*requestValidator, error) {
	validate := validator.New(validator.WithRequiredStructEnabled())

	enLocale := en.New()
	uni := ut.New(enLocale, enLocale)
	trans, _ := uni.GetTranslator("en")
	if err := enTranslations.RegisterDefaultTranslations(validate, trans); err != nil {
		return nil, fmt.Errorf("failed to register default translations: %w", err)
	}
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return &requestValidator{validate: validate, translator: trans}, nil
}

func (v *requestValidator) check(msg any) *connect.Error {
	err := v.validate.Struct(msg)
	if err == nil {
		return nil
	}

	var validationErrors validator.ValidationErrors
	if !errors.As(err, &validationErrors) {
		return connect.NewError(connect.CodeInvalidArgument, err)
	}

	fieldViolations := make([]*errdetails.BadRequest_FieldViolation, 0, len(validationErrors))
	messages := make([]string, 0, len(validationErrors))
	for _, fe := range validationErrors {
		description := fe.Translate(v.translator)
		fieldViolations = append(fieldViolations, &errdetails.BadRequest_FieldViolation{
			Field:       fieldPath(fe.Namespace()),
			Description: description,
		})
		messages = append(messages, description)
	}

	connectErr := connect.NewError(connect.CodeInvalidArgument, errors.New(strings.Join(messages, ", ")))
	if detail, detailErr := connect.NewErrorDetail(&errdetails.BadRequest{
		FieldViolations: fieldViolations,
	}); detailErr == nil {
		connectErr.AddDetail(detail)
	}
	return connectErr
}

// fieldPath drops the struct name validator puts in front of the namespace.
func fieldPath(namespace string) string {
	if _, rest, ok := strings.Cut(namespace, "."); ok {
		return rest
	}
	return namespace
}

// toConnectError maps service errors onto Connect codes.
func toConnectError(err error) error {
	if err == nil {
		return nil
	}
	var connectErr *connect.Error
	if errors.As(err, &connectErr) {
		return connectErr
	}

	var (
		authErr           *auth.AuthError
		classificationErr *inference.ClassificationError
		translationErr    *inference.TranslationError
		insightErr        *inference.InsightError
		synthesisErr      *speech.SynthesisError
		searchErr         *books.MetadataSearchError
	)

	switch {
	case errors.As(err, &authErr), errors.Is(err, session.ErrNotSignedIn):
		return connect.NewError(connect.CodeUnauthenticated, err)

	case errors.Is(err, item.ErrNotFound),
		errors.Is(err, errItemNotFound),
		errors.Is(err, errBookNotFound),
		errors.Is(err, dictionary.ErrWordNotFound):
		return connect.NewError(connect.CodeNotFound, err)

	case errors.Is(err, capture.ErrEmptyInput),
		errors.Is(err, capture.ErrNotAQuote),
		errors.Is(err, collection.ErrInvalidItem),
		errors.Is(err, collection.ErrNotFavoritable),
		errors.Is(err, bookshelf.ErrEmptyNote),
		errors.Is(err, dictionary.ErrInvalidWord),
		errors.Is(err, security.ErrBlockedURL):
		return connect.NewError(connect.CodeInvalidArgument, err)

	case errors.Is(err, capture.ErrBusy),
		errors.Is(err, capture.ErrInvalidState),
		errors.Is(err, collection.ErrConfirmationRequired),
		errors.Is(err, bookshelf.ErrNothingToSummarize),
		errors.Is(err, dictionary.ErrNotConfigured):
		return connect.NewError(connect.CodeFailedPrecondition, err)

	case errors.Is(err, capture.ErrDiscarded), errors.Is(err, translation.ErrSuperseded):
		return connect.NewError(connect.CodeAborted, err)

	case errors.As(err, &classificationErr),
		errors.As(err, &translationErr),
		errors.As(err, &insightErr),
		errors.As(err, &synthesisErr),
		errors.As(err, &searchErr):
		return connect.NewError(connect.CodeUnavailable, err)

	case errors.Is(err, context.Canceled):
		return connect.NewError(connect.CodeCanceled, err)
	case errors.Is(err, context.DeadlineExceeded):
		return connect.NewError(connect.CodeDeadlineExceeded, err)
	}

	slog.Default().Error("unexpected error", "error", err)
	return connect.NewError(connect.CodeInternal, err)
}
