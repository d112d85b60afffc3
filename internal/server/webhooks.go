package server

import (
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	webhookdomain "github.com/smallbiznis/referrals/internal/webhook/domain"
)

const (
	maxWebhookBodyBytes = 1 << 20
	webhookOutcomeKey   = "webhook_outcome"
)

func (s *Server) HandleUserSignup(c *gin.Context) {
	s.ingest(c, "user-signup", webhookdomain.KindUserSignup)
}

func (s *Server) HandlePartnerSignup(c *gin.Context) {
	s.ingest(c, "partner-signup", webhookdomain.KindPartnerSignup)
}

// HandleUserEvents accepts either event kind on one endpoint.
func (s *Server) HandleUserEvents(c *gin.Context) {
	s.ingest(c, "user-events", "")
}

func (s *Server) HandleIdentityEvent(c *gin.Context) {
	payload, ok := readWebhookBody(c)
	if !ok {
		return
	}

	outcome, err := s.webhookSvc.SyncIdentity(c.Request.Context(), webhookdomain.IngestRequest{
		Source:    "identity",
		Payload:   payload,
		Signature: c.GetHeader(webhookdomain.SignatureHeader),
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Set(webhookOutcomeKey, string(outcome.Result))
	c.JSON(http.StatusOK, outcome)
}

func (s *Server) ingest(c *gin.Context, source string, expect webhookdomain.Kind) {
	payload, ok := readWebhookBody(c)
	if !ok {
		return
	}

	outcome, err := s.webhookSvc.Ingest(c.Request.Context(), webhookdomain.IngestRequest{
		Source:    source,
		Payload:   payload,
		Signature: c.GetHeader(webhookdomain.SignatureHeader),
		Expect:    expect,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.Set(webhookOutcomeKey, string(outcome.Result))
	c.JSON(http.StatusOK, outcome)
}

// readWebhookBody returns the exact request bytes; the signature covers them.
func readWebhookBody(c *gin.Context) ([]byte, bool) {
	body, err := io.ReadAll(http.MaxBytesReader(c.Writer, c.Request.Body, maxWebhookBodyBytes))
	if err != nil {
		AbortWithError(c, webhookdomain.ErrMalformedPayload)
		return nil, false
	}
	return body, true
}
