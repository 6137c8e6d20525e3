package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/claytile-api/internal/domain"
	pkgtoken "github.com/claytile-api/internal/pkg/token"
	"github.com/claytile-api/internal/pkg/validate"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const (
	DefaultCodeTTL    = 5 * time.Minute
	DefaultSessionTTL = 30 * 24 * time.Hour
)

type RequestCodeRequest struct {
	Email *string `json:"email"`
	Phone *string `json:"phone"`
	Type  string  `json:"type" validate:"omitempty,oneof=email sms phone"`
}

type VerifyCodeRequest struct {
	Email *string `json:"email"`
	Phone *string `json:"phone"`
	Code  string  `json:"code" validate:"required,len=6,numeric"`
}

type Service interface {
	RequestCode(ctx context.Context, req RequestCodeRequest) error
	VerifyCode(ctx context.Context, req VerifyCodeRequest) (*domain.Session, error)
	Authenticate(ctx context.Context, token string) (*domain.Session, error)
	Logout(ctx context.Context, token string) error
}

// CodeStore persists one passcode per identifier.
type CodeStore interface {
	Upsert(ctx context.Context, v *domain.VerificationCode) error
	GetLive(ctx context.Context, identifier string, now time.Time) (*domain.VerificationCode, error)
	Consume(ctx context.Context, identifier, codeHash string) error
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

type SessionStore interface {
	Put(ctx context.Context, s *domain.Session) error
	GetLive(ctx context.Context, token string, now time.Time) (*domain.Session, error)
	Delete(ctx context.Context, token string) error
	DeleteExpired(ctx context.Context, now time.Time) (int, error)
}

type Mailer interface {
	SendEmail(ctx context.Context, to, subject, body string) error
}

type SMSSender interface {
	SendSMS(ctx context.Context, to, message string) error
}

type Publisher interface {
	Publish(ctx context.Context, ev domain.Event) error
}

// ServiceDeps groups the collaborators of the login service.
type ServiceDeps struct {
	Codes      CodeStore
	Sessions   SessionStore
	Mailer     Mailer
	SMSSender  SMSSender
	Publisher  Publisher
	CodeTTL    time.Duration
	SessionTTL time.Duration
	// HashCost is the bcrypt cost for stored codes; zero means bcrypt.DefaultCost.
	HashCost int
	Now      func() time.Time
}

type service struct {
	codes      CodeStore
	sessions   SessionStore
	mailer     Mailer
	smsSender  SMSSender
	publisher  Publisher
	codeTTL    time.Duration
	sessionTTL time.Duration
	hashCost   int
	now        func() time.Time
}

func NewService(deps ServiceDeps) Service {
	s := &service{
		codes:      deps.Codes,
		sessions:   deps.Sessions,
		mailer:     deps.Mailer,
		smsSender:  deps.SMSSender,
		publisher:  deps.Publisher,
		codeTTL:    deps.CodeTTL,
		sessionTTL: deps.SessionTTL,
		hashCost:   deps.HashCost,
		now:        deps.Now,
	}
	if s.codeTTL <= 0 {
		s.codeTTL = DefaultCodeTTL
	}
	if s.sessionTTL <= 0 {
		s.sessionTTL = DefaultSessionTTL
	}
	if s.hashCost == 0 {
		s.hashCost = bcrypt.DefaultCost
	}
	if s.now == nil {
		s.now = time.Now
	}
	return s
}

func (s *service) RequestCode(ctx context.Context, req RequestCodeRequest) error {
	ident, channel, err := parseCodeRequest(req)
	if err != nil {
		return err
	}

	code, err := pkgtoken.NewCode()
	if err != nil {
		return err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.hashCost)
	if err != nil {
		return fmt.Errorf("hash code: %w", err)
	}

	now := s.now().UTC()
	v := &domain.VerificationCode{
		Identifier: ident.Key(),
		Email:      ident.Email,
		Phone:      ident.Phone,
		CodeHash:   string(hash),
		ExpiresAt:  now.Add(s.codeTTL).Unix(),
		CreatedAt:  now,
	}
	if err := s.codes.Upsert(ctx, v); err != nil {
		return err
	}

	if err := s.deliver(ctx, channel, ident, code); err != nil {
		zap.L().Error("code delivery failed",
			zap.String("channel", string(channel)),
			zap.String("kind", ident.Kind()),
			zap.Error(err))
		return fmt.Errorf("%w: %v", domain.ErrDelivery, err)
	}

	s.publish(ctx, domain.Event{
		Subject:    domain.EventCodeRequested,
		OccurredAt: now,
		Attributes: map[string]string{"kind": ident.Kind(), "channel": string(channel)},
	})
	return nil
}

func (s *service) deliver(ctx context.Context, channel domain.Channel, ident domain.Identifier, code string) error {
	body := fmt.Sprintf("Your Clay Tile Roofing login code is %s. It expires in %s.", code, humanMinutes(s.codeTTL))
	if channel == domain.ChannelSMS {
		if s.smsSender == nil {
			return errors.New("sms sender not configured")
		}
		return s.smsSender.SendSMS(ctx, ident.Phone, body)
	}
	if s.mailer == nil {
		return errors.New("mailer not configured")
	}
	return s.mailer.SendEmail(ctx, ident.Email, "Your login code", body)
}

func (s *service) VerifyCode(ctx context.Context, req VerifyCodeRequest) (*domain.Session, error) {
	if err := validate.Struct(req); err != nil {
		return nil, domain.Invalid("a 6-digit code is required")
	}
	candidates, err := verifyCandidates(req)
	if err != nil {
		return nil, err
	}

	now := s.now().UTC()
	var match *domain.VerificationCode
	for _, ident := range candidates {
		v, err := s.codes.GetLive(ctx, ident.Key(), now)
		if err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			return nil, err
		}
		if bcrypt.CompareHashAndPassword([]byte(v.CodeHash), []byte(req.Code)) != nil {
			continue
		}
		if match == nil || v.CreatedAt.After(match.CreatedAt) {
			match = v
		}
	}
	if match == nil {
		return nil, domain.ErrInvalidCode
	}

	if err := s.codes.Consume(ctx, match.Identifier, match.CodeHash); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			// Another request consumed or replaced the row first.
			return nil, domain.ErrInvalidCode
		}
		return nil, err
	}

	tok, err := pkgtoken.NewSessionToken()
	if err != nil {
		return nil, err
	}
	sess := &domain.Session{
		Token:      tok,
		Identifier: match.Identifier,
		CreatedAt:  now,
		ExpiresAt:  now.Add(s.sessionTTL).Unix(),
	}
	if err := s.sessions.Put(ctx, sess); err != nil {
		return nil, err
	}

	kind, _, _ := strings.Cut(match.Identifier, ":")
	s.publish(ctx, domain.Event{
		Subject:    domain.EventSessionCreated,
		OccurredAt: now,
		Attributes: map[string]string{"kind": kind},
	})
	return sess, nil
}

func (s *service) Authenticate(ctx context.Context, token string) (*domain.Session, error) {
	if token == "" {
		return nil, fmt.Errorf("no session: %w", domain.ErrUnauthorized)
	}
	sess, err := s.sessions.GetLive(ctx, token, s.now())
	if err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return nil, fmt.Errorf("session expired or revoked: %w", domain.ErrUnauthorized)
		}
		return nil, err
	}
	return sess, nil
}

func (s *service) Logout(ctx context.Context, token string) error {
	if token == "" {
		return nil
	}
	return s.sessions.Delete(ctx, token)
}

func (s *service) publish(ctx context.Context, ev domain.Event) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, ev); err != nil {
		zap.L().Warn("event not published", zap.String("subject", ev.Subject), zap.Error(err))
	}
}

// parseCodeRequest normalizes the identifier and resolves the delivery channel.
func parseCodeRequest(req RequestCodeRequest) (domain.Identifier, domain.Channel, error) {
	var ident domain.Identifier
	if err := validate.Struct(req); err != nil {
		return ident, "", domain.Invalid("type must be email or sms")
	}

	email, phone := deref(req.Email), deref(req.Phone)
	channel := domain.Channel(req.Type)
	if channel == "phone" {
		channel = domain.ChannelSMS
	}
	if channel == "" {
		if email != "" {
			channel = domain.ChannelEmail
		} else {
			channel = domain.ChannelSMS
		}
	}

	switch channel {
	case domain.ChannelEmail:
		if email == "" {
			return ident, "", domain.Invalid("email is required")
		}
		normalized, err := validate.Email(email)
		if err != nil {
			return ident, "", domain.Invalid("invalid email address")
		}
		ident.Email = normalized
	default:
		if phone == "" {
			if email == "" {
				return ident, "", domain.Invalid("email or phone is required")
			}
			return ident, "", domain.Invalid("phone is required")
		}
		normalized, err := validate.Phone(phone)
		if err != nil {
			return ident, "", domain.Invalid(err.Error())
		}
		ident.Phone = normalized
	}
	return ident, channel, nil
}

// verifyCandidates returns every identifier supplied with a verify request.
// Malformed identifiers are skipped; they cannot own a stored code.
func verifyCandidates(req VerifyCodeRequest) ([]domain.Identifier, error) {
	email, phone := deref(req.Email), deref(req.Phone)
	if email == "" && phone == "" {
		return nil, domain.Invalid("email or phone is required")
	}
	var out []domain.Identifier
	if email != "" {
		if normalized, err := validate.Email(email); err == nil {
			out = append(out, domain.Identifier{Email: normalized})
		}
	}
	if phone != "" {
		if normalized, err := validate.Phone(phone); err == nil {
			out = append(out, domain.Identifier{Phone: normalized})
		}
	}
	return out, nil
}

func deref(p *string) string {
	if p == nil {
		return ""
	}
	return strings.TrimSpace(*p)
}

func humanMinutes(d time.Duration) string {
	m := int(d.Round(time.Minute) / time.Minute)
	if m == 1 {
		return "1 minute"
	}
	return fmt.Sprintf("%d minutes", m)
}
