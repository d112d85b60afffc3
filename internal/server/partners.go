package server

import (
	"fmt"
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	commissiondomain "github.com/smallbiznis/referrals/internal/commission/domain"
	invitationdomain "github.com/smallbiznis/referrals/internal/invitation/domain"
	"github.com/smallbiznis/referrals/pkg/db/pagination"
)

type customerCommissionResponse struct {
	CustomerID snowflake.ID `json:"customer_id"`
	Email      string       `json:"email"`
	FullName   string       `json:"full_name,omitempty"`
	Total      string       `json:"total"`
}

type commissionSummaryResponse struct {
	PartnerID     snowflake.ID                 `json:"partner_id"`
	PeriodStart   time.Time                    `json:"period_start"`
	PeriodEnd     time.Time                    `json:"period_end"`
	Direct        []customerCommissionResponse `json:"direct"`
	DirectTotal   string                       `json:"direct_total"`
	IndirectTotal string                       `json:"indirect_total"`
	Total         string                       `json:"total"`
}

type commissionEntryResponse struct {
	ID             snowflake.ID `json:"id"`
	CustomerID     snowflake.ID `json:"customer_id"`
	SubscriptionID snowflake.ID `json:"subscription_id"`
	Level          int          `json:"level"`
	FeeType        string       `json:"fee_type"`
	Rate           string       `json:"rate"`
	Amount         string       `json:"amount"`
	CreatedAt      time.Time    `json:"created_at"`
}

type listCommissionsResponse struct {
	pagination.PageInfo
	Entries []commissionEntryResponse `json:"entries"`
}

type createReferralInviteRequest struct {
	FullName string `json:"full_name"`
	Email    string `json:"email"`
	Phone    string `json:"phone"`
}

func (s *Server) GetCommissionSummary(c *gin.Context) {
	partnerID, err := parsePathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	summary, err := s.commissionSvc.Summary(c.Request.Context(), partnerID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, toCommissionSummaryResponse(summary))
}

func (s *Server) ListCommissions(c *gin.Context) {
	partnerID, err := parsePathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var page pagination.Pagination
	if err := c.ShouldBindQuery(&page); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	resp, err := s.commissionSvc.List(c.Request.Context(), commissiondomain.ListEntriesRequest{
		PartnerID:  partnerID,
		Pagination: page,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	entries := make([]commissionEntryResponse, 0, len(resp.Entries))
	for _, entry := range resp.Entries {
		entries = append(entries, toCommissionEntryResponse(entry))
	}
	c.JSON(http.StatusOK, listCommissionsResponse{PageInfo: resp.PageInfo, Entries: entries})
}

func (s *Server) DownloadCommissionStatement(c *gin.Context) {
	partnerID, err := parsePathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	ctx := c.Request.Context()
	statement, err := s.commissionSvc.Statement(ctx, partnerID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	doc, err := s.pdfProvider.RenderStatement(ctx, statement)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	filename := fmt.Sprintf("commission-statement-%s-%s.pdf", partnerID, statement.Summary.PeriodStart.Format("2006-01"))
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Data(http.StatusOK, "application/pdf", doc)
}

func (s *Server) CreateReferralInvite(c *gin.Context) {
	partnerID, err := parsePathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	var req createReferralInviteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		AbortWithError(c, invalidRequestError())
		return
	}

	invite, err := s.invitationSvc.InviteReferral(c.Request.Context(), invitationdomain.InviteReferralRequest{
		PartnerID: partnerID,
		FullName:  req.FullName,
		Email:     req.Email,
		Phone:     req.Phone,
	})
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{"data": invite})
}

func (s *Server) ListReferralInvites(c *gin.Context) {
	partnerID, err := parsePathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	invites, err := s.invitationSvc.ListReferralInvites(c.Request.Context(), partnerID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": invites})
}

func toCommissionSummaryResponse(summary commissiondomain.Summary) commissionSummaryResponse {
	direct := make([]customerCommissionResponse, 0, len(summary.Direct))
	for _, item := range summary.Direct {
		direct = append(direct, customerCommissionResponse{
			CustomerID: item.CustomerID,
			Email:      item.Email,
			FullName:   item.FullName,
			Total:      item.Total.StringFixed(2),
		})
	}
	return commissionSummaryResponse{
		PartnerID:     summary.PartnerID,
		PeriodStart:   summary.PeriodStart,
		PeriodEnd:     summary.PeriodEnd,
		Direct:        direct,
		DirectTotal:   summary.DirectTotal.StringFixed(2),
		IndirectTotal: summary.IndirectTotal.StringFixed(2),
		Total:         summary.Total.StringFixed(2),
	}
}

func toCommissionEntryResponse(entry commissiondomain.Entry) commissionEntryResponse {
	return commissionEntryResponse{
		ID:             entry.ID,
		CustomerID:     entry.CustomerID,
		SubscriptionID: entry.SubscriptionID,
		Level:          entry.Level,
		FeeType:        string(entry.FeeType),
		Rate:           entry.Rate.StringFixed(2),
		Amount:         entry.Amount.StringFixed(2),
		CreatedAt:      entry.CreatedAt,
	}
}
