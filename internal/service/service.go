package service

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"salonledger/backend/internal/domain"
	"salonledger/backend/internal/lock"
	"salonledger/backend/internal/store"
	"salonledger/backend/internal/whatsapp"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrBillLocked   = errors.New("this bill is too old to edit")
)

const (
	EditPolicyRecent = "recent"
	EditPolicyWindow = "window"

	DayWindowFull    = "full"
	DayWindowMorning = "morning"

	billLockTTL = 10 * time.Second
)

type actorContextKey struct{}

func WithActor(ctx context.Context, actor domain.Actor) context.Context {
	return context.WithValue(ctx, actorContextKey{}, actor)
}

func ActorFromContext(ctx context.Context) (domain.Actor, bool) {
	actor, ok := ctx.Value(actorContextKey{}).(domain.Actor)
	return actor, ok
}

// Options tunes the bookkeeping rules that differ between salons.
type Options struct {
	EditPolicy          string
	EditRecentLimit     int
	EditWindow          time.Duration
	DayWindow           string
	RecentBillsInWindow bool
	Location            *time.Location
	WeekStart           time.Weekday
	Now                 func() time.Time
}

type Service struct {
	repo     store.Repository
	locker   lock.Locker
	sharer   *whatsapp.Sharer
	log      *zap.Logger
	validate *validator.Validate
	opts     Options
}

func New(repo store.Repository, locker lock.Locker, sharer *whatsapp.Sharer, log *zap.Logger, opts Options) *Service {
	if locker == nil {
		locker = lock.NewLocalLocker()
	}
	if sharer == nil {
		sharer = whatsapp.New("", "")
	}
	if log == nil {
		log = zap.NewNop()
	}
	if opts.EditPolicy != EditPolicyWindow {
		opts.EditPolicy = EditPolicyRecent
	}
	if opts.EditRecentLimit < 1 {
		opts.EditRecentLimit = 15
	}
	if opts.EditWindow <= 0 {
		opts.EditWindow = 15 * time.Minute
	}
	if opts.DayWindow != DayWindowMorning {
		opts.DayWindow = DayWindowFull
	}
	if opts.Location == nil {
		opts.Location = time.Local
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}

	return &Service{
		repo:     repo,
		locker:   locker,
		sharer:   sharer,
		log:      log.Named("service"),
		validate: newValidator(),
		opts:     opts,
	}
}

func (s *Service) now() time.Time {
	return s.opts.Now().In(s.opts.Location)
}

// Location is the calendar zone used for day, week and month boundaries.
func (s *Service) Location() *time.Location {
	return s.opts.Location
}

func newValidator() *validator.Validate {
	v := validator.New()
	v.RegisterTagNameFunc(func(field reflect.StructField) string {
		name := strings.SplitN(field.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// check runs struct-tag validation and folds the failures into one
// ErrInvalidInput message.
func (s *Service) check(req any) error {
	err := s.validate.Struct(req)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return invalid("%v", err)
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		parts = append(parts, describeFieldError(fe))
	}
	return invalid("%s", strings.Join(parts, "; "))
}

func describeFieldError(fe validator.FieldError) string {
	field := strings.TrimPrefix(fe.Namespace(), strings.SplitN(fe.Namespace(), ".", 2)[0]+".")
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "email":
		return field + " must be a valid email address"
	case "min":
		return fmt.Sprintf("%s must have at least %s entries", field, fe.Param())
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", field, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", field, fe.Param())
	case "oneof":
		return fmt.Sprintf("%s must be one of: %s", field, strings.ReplaceAll(fe.Param(), " ", ", "))
	case "unique":
		return field + " must not contain duplicates"
	default:
		return field + " is invalid"
	}
}

func invalid(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrInvalidInput, fmt.Sprintf(format, args...))
}

// lockBills serialises bill mutations for one tenant so the editability gate
// and the write it guards see the same set of recent bills.
func (s *Service) lockBills(ctx context.Context, userID string) (func(), error) {
	return s.locker.Obtain(ctx, "bills:"+userID, billLockTTL)
}
