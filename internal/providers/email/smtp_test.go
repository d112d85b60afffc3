package email

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/smallbiznis/referrals/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gopkg.in/gomail.v2"
)

type recordingDialer struct {
	sent  []*gomail.Message
	err   error
	block chan struct{}
}

func (d *recordingDialer) DialAndSend(m ...*gomail.Message) error {
	if d.block != nil {
		<-d.block
	}
	d.sent = append(d.sent, m...)
	return d.err
}

func newTestProvider(d dialer) *SMTPProvider {
	return &SMTPProvider{cfg: Config{From: "no-reply@example.com"}, dialer: d}
}

func TestRenderPartnerInvitation(t *testing.T) {
	body, err := Render("partner_invitation", map[string]any{
		"email":        "pat@example.com",
		"name":         "Pat",
		"redirect_url": "https://app.example.com/partners",
	})
	require.NoError(t, err)
	assert.Contains(t, body, "Hi Pat,")
	assert.Contains(t, body, "https://app.example.com/partners")
	assert.Contains(t, body, "pat@example.com")
}

func TestRenderUnknownTemplate(t *testing.T) {
	_, err := Render("missing", nil)
	assert.Error(t, err)
}

func TestSendTemplateUsesDefaultSubject(t *testing.T) {
	d := &recordingDialer{}
	p := newTestProvider(d)

	err := p.SendTemplate(context.Background(), []string{"pat@example.com"}, "partner_invitation", map[string]any{"email": "pat@example.com"})
	require.NoError(t, err)
	require.Len(t, d.sent, 1)
	assert.Equal(t, []string{"You're invited to become a partner"}, d.sent[0].GetHeader("Subject"))
	assert.Equal(t, []string{"pat@example.com"}, d.sent[0].GetHeader("To"))
}

func TestSendRequiresRecipients(t *testing.T) {
	err := newTestProvider(&recordingDialer{}).Send(context.Background(), nil, "hi", "<p>hi</p>")
	assert.ErrorIs(t, err, ErrNoRecipients)
}

func TestSendWrapsDialerError(t *testing.T) {
	d := &recordingDialer{err: errors.New("connection refused")}
	err := newTestProvider(d).Send(context.Background(), []string{"a@example.com"}, "hi", "<p>hi</p>")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "connection refused")
}

func TestSendHonoursContextDeadline(t *testing.T) {
	d := &recordingDialer{block: make(chan struct{})}
	defer close(d.block)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := newTestProvider(d).Send(ctx, []string{"a@example.com"}, "hi", "<p>hi</p>")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestInvitationNotifierPassesMetadata(t *testing.T) {
	d := &recordingDialer{}
	n := NewInvitationNotifier(newTestProvider(d), "https://app.example.com", nil)

	require.NoError(t, n.SendPartnerInvitation(context.Background(), "pat@example.com", map[string]any{"role": "partner"}))
	assert.Equal(t, "email", n.Name())
	require.Len(t, d.sent, 1)
}

func TestInvitationNotifierUsesReloadableSettings(t *testing.T) {
	d := &recordingDialer{}
	settings := config.DefaultReferralConfig()
	settings.Invitation.Subject = "Partner access granted"
	n := NewInvitationNotifier(newTestProvider(d), "", config.NewStaticReferralConfigHolder(settings))

	require.NoError(t, n.SendPartnerInvitation(context.Background(), "pat@example.com", nil))
	require.Len(t, d.sent, 1)
	assert.Equal(t, []string{"Partner access granted"}, d.sent[0].GetHeader("Subject"))
}
