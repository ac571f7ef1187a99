package tenancy

import "context"

// Mailer triggers outbound mail. Delivery is fire-and-forget from the core's
// perspective: implementations swallow their own failures.
type Mailer interface {
	SendVerification(ctx context.Context, account *Account)
	SendInvitation(ctx context.Context, email string, org *Organisation)
}

// NopMailer discards all mail.
type NopMailer struct{}

func (NopMailer) SendVerification(context.Context, *Account)            {}
func (NopMailer) SendInvitation(context.Context, string, *Organisation) {}
