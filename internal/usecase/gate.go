package usecase

import (
	"crypto/rand"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math/big"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"golang.org/x/crypto/bcrypt"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/adapter/observability"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/config"
	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
	"github.com/fairyhunter13/ai-interview-evaluator/pkg/textx"
)

// Session key layout in the KV store.
const (
	SessionKeyPrefix = "interview_session:"
	IndexKeyPrefix   = "interview_session_index:"
	// OTPSendBucket names the rate limit bucket charged once per mailed code.
	OTPSendBucket = "otp_send"
	otpDigits        = 6
)

// AdvancePayload carries the data a target stage requires.
type AdvancePayload struct {
	PhotoRef string
}

// GateService walks a candidate through the verification stages.
type GateService struct {
	KV       domain.KVStore
	Notifier domain.OTPNotifier
	// Limiter is optional; without it only the per-session cooldown applies.
	Limiter domain.RateLimiter

	SessionTTL     time.Duration
	OTPTTL         time.Duration
	OTPCooldown    time.Duration
	OTPMaxAttempts int

	now        func() time.Time
	newCode    func() (string, error)
	bcryptCost int
}

// GateOption customizes a GateService.
type GateOption func(*GateService)

// WithGateClock overrides time.Now.
func WithGateClock(now func() time.Time) GateOption {
	return func(s *GateService) { s.now = now }
}

// WithCodeSource overrides the OTP generator.
func WithCodeSource(fn func() (string, error)) GateOption {
	return func(s *GateService) { s.newCode = fn }
}

// WithBcryptCost sets the hashing cost of OTP codes.
func WithBcryptCost(cost int) GateOption {
	return func(s *GateService) { s.bcryptCost = cost }
}

// WithOTPLimiter charges every mailed code to the candidate's OTPSendBucket.
func WithOTPLimiter(l domain.RateLimiter) GateOption {
	return func(s *GateService) { s.Limiter = l }
}

// NewGateService constructs a GateService with TTLs and OTP limits from cfg.
func NewGateService(kv domain.KVStore, n domain.OTPNotifier, cfg config.Config, opts ...GateOption) GateService {
	s := GateService{
		KV:             kv,
		Notifier:       n,
		SessionTTL:     cfg.SessionTTL,
		OTPTTL:         cfg.OTPTTL,
		OTPCooldown:    cfg.OTPCooldown,
		OTPMaxAttempts: cfg.OTPMaxAttempts,
		now:            time.Now,
		newCode:        randomCode,
		bcryptCost:     bcrypt.DefaultCost,
	}
	if s.SessionTTL <= 0 {
		s.SessionTTL = 2 * time.Hour
	}
	if s.OTPTTL <= 0 {
		s.OTPTTL = 10 * time.Minute
	}
	for _, o := range opts {
		o(&s)
	}
	return s
}

func sessionKey(id string) string { return SessionKeyPrefix + id }

func pairIndexKey(email, interviewID string) string {
	return IndexKeyPrefix + email + ":" + interviewID
}

func latestIndexKey(email string) string { return IndexKeyPrefix + email }

// BeginSession stores a fresh session at email_verified. Any earlier session
// for the same candidate and interview is replaced.
func (s GateService) BeginSession(ctx domain.Context, email, interviewID, interviewType string, metadata map[string]string) (domain.VerificationSession, error) {
	ctx, span := otel.Tracer("usecase.gate").Start(ctx, "gate.BeginSession")
	defer span.End()

	em, ok := textx.NormalizeEmail(email)
	if !ok {
		return domain.VerificationSession{}, domain.FieldError("email", "must be a valid email address")
	}
	interviewID = strings.TrimSpace(interviewID)
	if _, err := uuid.Parse(interviewID); err != nil {
		return domain.VerificationSession{}, domain.FieldError("interviewId", "must be a UUID")
	}
	itype, err := domain.ParseInterviewType(interviewType)
	if err != nil {
		return domain.VerificationSession{}, err
	}

	if prev, err := s.KV.Get(ctx, pairIndexKey(em, interviewID)); err == nil {
		if err := s.KV.Del(ctx, sessionKey(string(prev))); err != nil {
			return domain.VerificationSession{}, fmt.Errorf("op=gate.begin: %w", err)
		}
	} else if !errors.Is(err, domain.ErrNotFound) {
		return domain.VerificationSession{}, fmt.Errorf("op=gate.begin: %w", err)
	}

	id, err := newSessionID()
	if err != nil {
		return domain.VerificationSession{}, fmt.Errorf("op=gate.begin: %w: %w", domain.ErrInternal, err)
	}
	now := s.now().UTC()
	sess := domain.VerificationSession{
		ID:             id,
		CandidateEmail: em,
		InterviewID:    interviewID,
		InterviewType:  itype,
		Stage:          domain.StageEmailVerified,
		CreatedAt:      now,
		LastActivity:   now,
		ClientMetadata: metadata,
		ExpiresAt:      now.Add(s.SessionTTL),
	}
	b, err := json.Marshal(sess)
	if err != nil {
		return domain.VerificationSession{}, fmt.Errorf("op=gate.begin: %w: %w", domain.ErrInternal, err)
	}
	if err := s.KV.Put(ctx, sessionKey(id), b, s.SessionTTL); err != nil {
		return domain.VerificationSession{}, fmt.Errorf("op=gate.begin: %w", err)
	}
	if err := s.KV.Put(ctx, pairIndexKey(em, interviewID), []byte(id), s.SessionTTL); err != nil {
		return domain.VerificationSession{}, fmt.Errorf("op=gate.begin: %w", err)
	}
	if err := s.KV.Put(ctx, latestIndexKey(em), []byte(id), s.SessionTTL); err != nil {
		return domain.VerificationSession{}, fmt.Errorf("op=gate.begin: %w", err)
	}
	span.SetAttributes(attribute.String("interview.id", interviewID))
	observability.RecordGateTransition(string(domain.StageEmailVerified), "ok")
	observability.LoggerFromContext(ctx).Info("verification session started",
		slog.String("interview_id", interviewID),
		slog.String("interview_type", string(itype)))
	return sess, nil
}

// Advance moves a session to target, which must be the immediate successor of
// the stored stage. Reaching photo_captured issues the first OTP.
func (s GateService) Advance(ctx domain.Context, sessionID string, target domain.Stage, payload AdvancePayload) (domain.VerificationSession, error) {
	ctx, span := otel.Tracer("usecase.gate").Start(ctx, "gate.Advance")
	defer span.End()
	span.SetAttributes(attribute.String("gate.target", string(target)))

	if !target.Valid() {
		return domain.VerificationSession{}, domain.FieldError("stage", fmt.Sprintf("unknown stage %q", target))
	}
	if target == domain.StageOTPVerified {
		return domain.VerificationSession{}, domain.FieldError("stage", "otp_verified is reached by verifying the one-time code")
	}
	ref := strings.TrimSpace(payload.PhotoRef)
	if target == domain.StagePhotoCaptured && ref == "" {
		return domain.VerificationSession{}, domain.FieldError("photo", "a captured photo is required")
	}

	var issued *issuedOTP
	sess, err := s.update(ctx, sessionID, func(sess *domain.VerificationSession, now time.Time) error {
		if err := domain.CheckTransition(sess.Stage, target); err != nil {
			return err
		}
		if target == domain.StagePhotoCaptured {
			if issued == nil {
				otp, err := s.issueOTP(ctx, sess, now)
				if err != nil {
					return err
				}
				issued = &otp
			}
			sess.PhotoRef = ref
			issued.attach(sess)
		}
		sess.Stage = target
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrStageViolation) {
			observability.RecordGateTransition(string(target), "violation")
		}
		return domain.VerificationSession{}, fmt.Errorf("op=gate.advance: %w", err)
	}
	if issued != nil {
		observability.RecordOTPEvent("issued")
	}
	observability.RecordGateTransition(string(target), "ok")
	return sess, nil
}

// ResendOTP replaces the live code of a session waiting for verification.
// Calls inside the cooldown window are refused with a RateLimitError.
func (s GateService) ResendOTP(ctx domain.Context, sessionID string) error {
	ctx, span := otel.Tracer("usecase.gate").Start(ctx, "gate.ResendOTP")
	defer span.End()

	var issued *issuedOTP
	_, err := s.update(ctx, sessionID, func(sess *domain.VerificationSession, now time.Time) error {
		if err := domain.CheckTransition(sess.Stage, domain.StageOTPVerified); err != nil {
			return err
		}
		if issued == nil {
			if !sess.OTPSentAt.IsZero() && s.OTPCooldown > 0 {
				if wait := sess.OTPSentAt.Add(s.OTPCooldown).Sub(now); wait > 0 {
					observability.RecordOTPEvent("throttled")
					return &domain.RateLimitError{Action: "resend_otp", RetryAfter: wait}
				}
			}
			otp, err := s.issueOTP(ctx, sess, now)
			if err != nil {
				return err
			}
			issued = &otp
		}
		issued.attach(sess)
		return nil
	})
	if err != nil {
		return fmt.Errorf("op=gate.resend_otp: %w", err)
	}
	observability.RecordOTPEvent("resent")
	return nil
}

// VerifyOTP checks code against the live OTP. A match consumes the code and
// moves the session to otp_verified; a second call with the same code fails
// with a stage violation. Every mismatch is counted even when guesses race.
func (s GateService) VerifyOTP(ctx domain.Context, sessionID, code string) (bool, error) {
	ctx, span := otel.Tracer("usecase.gate").Start(ctx, "gate.VerifyOTP")
	defer span.End()

	code = strings.TrimSpace(code)
	var event string
	_, err := s.update(ctx, sessionID, func(sess *domain.VerificationSession, now time.Time) error {
		if err := domain.CheckTransition(sess.Stage, domain.StageOTPVerified); err != nil {
			return err
		}
		otp := sess.OTP
		switch {
		case otp == nil:
			event = "exhausted"
			return errNoWrite
		case !now.Before(otp.ExpiresAt):
			event = "expired"
			return errNoWrite
		}
		if bcrypt.CompareHashAndPassword([]byte(otp.Hash), []byte(code)) != nil {
			otp.Attempts++
			event = "mismatch"
			if s.OTPMaxAttempts > 0 && otp.Attempts >= s.OTPMaxAttempts {
				sess.OTP = nil
				event = "exhausted"
			}
			return nil
		}
		sess.OTP = nil
		sess.Stage = domain.StageOTPVerified
		event = "verified"
		return nil
	})
	if err != nil {
		if errors.Is(err, domain.ErrStageViolation) {
			observability.RecordGateTransition(string(domain.StageOTPVerified), "violation")
		}
		return false, fmt.Errorf("op=gate.verify_otp: %w", err)
	}
	observability.RecordOTPEvent(event)
	if event != "verified" {
		return false, nil
	}
	observability.RecordGateTransition(string(domain.StageOTPVerified), "ok")
	return true, nil
}

// IsReadyToStart reports whether the session reached the lobby. It fails
// closed: missing, expired or unreadable sessions are not ready.
func (s GateService) IsReadyToStart(ctx domain.Context, sessionID string) bool {
	sess, err := s.load(ctx, sessionID)
	if err != nil {
		if !errors.Is(err, domain.ErrNotFound) {
			observability.LoggerFromContext(ctx).Warn("readiness check failed closed", slog.Any("error", err))
		}
		return false
	}
	return sess.Stage.AtLeast(domain.StageLobbyReady)
}

// Session returns the stored session and slides its expiry.
func (s GateService) Session(ctx domain.Context, sessionID string) (domain.VerificationSession, error) {
	sess, err := s.load(ctx, sessionID)
	if err != nil {
		return domain.VerificationSession{}, fmt.Errorf("op=gate.session: %w", err)
	}
	return sess, nil
}

// SessionFor resolves the session of a candidate for one interview.
func (s GateService) SessionFor(ctx domain.Context, email, interviewID string) (domain.VerificationSession, error) {
	em, ok := textx.NormalizeEmail(email)
	if !ok {
		return domain.VerificationSession{}, domain.FieldError("email", "must be a valid email address")
	}
	id, err := s.KV.Get(ctx, pairIndexKey(em, strings.TrimSpace(interviewID)))
	if err != nil {
		return domain.VerificationSession{}, fmt.Errorf("op=gate.session_for: %w", err)
	}
	return s.Session(ctx, string(id))
}

// LatestFor resolves the most recently started session of a candidate.
func (s GateService) LatestFor(ctx domain.Context, email string) (domain.VerificationSession, error) {
	em, ok := textx.NormalizeEmail(email)
	if !ok {
		return domain.VerificationSession{}, domain.FieldError("email", "must be a valid email address")
	}
	id, err := s.KV.Get(ctx, latestIndexKey(em))
	if err != nil {
		return domain.VerificationSession{}, fmt.Errorf("op=gate.latest_for: %w", err)
	}
	return s.Session(ctx, string(id))
}

// Logout removes the session and the index entries that point at it.
func (s GateService) Logout(ctx domain.Context, sessionID string) error {
	raw, err := s.KV.Get(ctx, sessionKey(sessionID))
	if err != nil {
		return fmt.Errorf("op=gate.logout: %w", err)
	}
	var sess domain.VerificationSession
	if err := json.Unmarshal(raw, &sess); err != nil {
		return fmt.Errorf("op=gate.logout: %w: %w", domain.ErrInternal, err)
	}
	keys := []string{sessionKey(sessionID), pairIndexKey(sess.CandidateEmail, sess.InterviewID)}
	if latest, err := s.KV.Get(ctx, latestIndexKey(sess.CandidateEmail)); err == nil && string(latest) == sessionID {
		keys = append(keys, latestIndexKey(sess.CandidateEmail))
	}
	if err := s.KV.Del(ctx, keys...); err != nil {
		return fmt.Errorf("op=gate.logout: %w", err)
	}
	return nil
}

// load reads a session and refreshes the TTL of it and its indexes.
func (s GateService) load(ctx domain.Context, sessionID string) (domain.VerificationSession, error) {
	sessionID = strings.TrimSpace(sessionID)
	if sessionID == "" {
		return domain.VerificationSession{}, domain.FieldError("sessionId", "is required")
	}
	raw, err := s.KV.Get(ctx, sessionKey(sessionID))
	if err != nil {
		return domain.VerificationSession{}, err
	}
	var sess domain.VerificationSession
	if err := json.Unmarshal(raw, &sess); err != nil {
		return domain.VerificationSession{}, fmt.Errorf("%w: corrupt session: %w", domain.ErrInternal, err)
	}
	if err := s.KV.Refresh(ctx, sessionKey(sessionID), s.SessionTTL); err != nil {
		return domain.VerificationSession{}, err
	}
	// index entries only speed up lookups, a failed refresh is not fatal
	_ = s.KV.Refresh(ctx, pairIndexKey(sess.CandidateEmail, sess.InterviewID), s.SessionTTL)
	_ = s.KV.Refresh(ctx, latestIndexKey(sess.CandidateEmail), s.SessionTTL)
	sess.ExpiresAt = s.now().UTC().Add(s.SessionTTL)
	return sess, nil
}

// maxUpdateAttempts bounds how often update re-reads a session that keeps
// changing underneath it.
const maxUpdateAttempts = 8

// errNoWrite lets an update callback finish without writing the session.
var errNoWrite = errors.New("no write")

// update applies fn to the latest stored session and writes the result only
// if nobody wrote the session in between. A lost race re-reads the session and
// applies fn again, so fn sees the state the winning writer left behind.
func (s GateService) update(ctx domain.Context, sessionID string, fn func(sess *domain.VerificationSession, now time.Time) error) (domain.VerificationSession, error) {
	for attempt := 1; ; attempt++ {
		sess, err := s.load(ctx, sessionID)
		if err != nil {
			return domain.VerificationSession{}, err
		}
		now := s.now().UTC()
		if err := fn(&sess, now); err != nil {
			if errors.Is(err, errNoWrite) {
				return sess, nil
			}
			return domain.VerificationSession{}, err
		}
		sess.LastActivity = now
		ok, err := s.save(ctx, &sess)
		if err != nil {
			return domain.VerificationSession{}, err
		}
		if ok {
			return sess, nil
		}
		if attempt >= maxUpdateAttempts {
			return domain.VerificationSession{}, fmt.Errorf("%w: session changed concurrently", domain.ErrConflict)
		}
		observability.LoggerFromContext(ctx).Debug("session write lost a race, retrying", slog.Int("attempt", attempt))
	}
}

// save writes sess back if its stored revision is still sess.Revision.
func (s GateService) save(ctx domain.Context, sess *domain.VerificationSession) (bool, error) {
	expected := sess.Revision
	sess.Revision = expected + 1
	sess.ExpiresAt = s.now().UTC().Add(s.SessionTTL)
	b, err := json.Marshal(sess)
	if err != nil {
		return false, fmt.Errorf("%w: %w", domain.ErrInternal, err)
	}
	ok, err := s.KV.CompareAndSwap(ctx, sessionKey(sess.ID), expected, b, s.SessionTTL)
	if err != nil || !ok {
		sess.Revision = expected
	}
	return ok, err
}

// issuedOTP is a code that has been delivered but not yet stored.
type issuedOTP struct {
	challenge domain.OTPChallenge
	sentAt    time.Time
}

func (o issuedOTP) attach(sess *domain.VerificationSession) {
	c := o.challenge
	sess.OTP = &c
	sess.OTPSentAt = o.sentAt
}

// issueOTP delivers a fresh code to the candidate of sess and returns its hash.
func (s GateService) issueOTP(ctx domain.Context, sess *domain.VerificationSession, now time.Time) (issuedOTP, error) {
	if s.Limiter != nil {
		allowed, wait, err := s.Limiter.Allow(ctx, OTPSendBucket+":"+sess.CandidateEmail, 1)
		if err != nil {
			observability.LoggerFromContext(ctx).Warn("otp send limiter unavailable", slog.Any("error", err))
		} else if !allowed {
			observability.RecordOTPEvent("throttled")
			return issuedOTP{}, &domain.RateLimitError{Action: "send_otp", RetryAfter: wait}
		}
	}
	code, err := s.newCode()
	if err != nil {
		return issuedOTP{}, fmt.Errorf("%w: %w", domain.ErrInternal, err)
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(code), s.bcryptCost)
	if err != nil {
		return issuedOTP{}, fmt.Errorf("%w: %w", domain.ErrInternal, err)
	}
	expiresAt := now.Add(s.OTPTTL)
	if err := s.Notifier.SendOTP(ctx, sess.CandidateEmail, sess.InterviewID, code, expiresAt); err != nil {
		return issuedOTP{}, err
	}
	return issuedOTP{
		challenge: domain.OTPChallenge{Hash: string(hash), IssuedAt: now, ExpiresAt: expiresAt},
		sentAt:    now,
	}, nil
}

func newSessionID() (string, error) {
	b := make([]byte, 32)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

func randomCode() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(1_000_000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%0*d", otpDigits, n.Int64()), nil
}
