package notify

import (
	"log/slog"
	"time"

	"github.com/fairyhunter13/ai-interview-evaluator/internal/domain"
)

// LogNotifier writes codes to the log instead of mailing them. The code
// itself is only printed when RevealCode is set (dev and test).
type LogNotifier struct {
	RevealCode bool
}

// SendOTP implements domain.OTPNotifier.
func (n LogNotifier) SendOTP(ctx domain.Context, email, interviewID, code string, expiresAt time.Time) error {
	attrs := []any{
		slog.String("interview_id", interviewID),
		slog.String("email", email),
		slog.Time("expires_at", expiresAt),
	}
	if n.RevealCode {
		attrs = append(attrs, slog.String("code", code))
	}
	slog.InfoContext(ctx, "otp issued (smtp disabled)", attrs...)
	return nil
}
