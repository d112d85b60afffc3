package server

import (
	"net/http"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	referraldomain "github.com/smallbiznis/referrals/internal/referral/domain"
)

type overviewResponse struct {
	Accounts          int64     `json:"accounts"`
	Partners          int64     `json:"partners"`
	Subscriptions     int64     `json:"subscriptions"`
	SignupsMTD        int64     `json:"signups_mtd"`
	CommissionMTD     string    `json:"commission_mtd"`
	CommissionEntries int64     `json:"commission_entries_mtd"`
	PeriodStart       time.Time `json:"period_start"`
	GeneratedAt       time.Time `json:"generated_at"`
}

type treeNodeResponse struct {
	ID        snowflake.ID `json:"id"`
	Email     string       `json:"email"`
	FullName  string       `json:"full_name,omitempty"`
	IsPartner bool         `json:"is_partner"`
	Active    bool         `json:"active"`
	ParentID  snowflake.ID `json:"parent_id"`
	Level     int          `json:"level"`
}

type referralTreeResponse struct {
	Root  treeNodeResponse   `json:"root"`
	Nodes []treeNodeResponse `json:"nodes"`
}

func (s *Server) GetAdminOverview(c *gin.Context) {
	overview, err := s.dashboardSvc.Overview(c.Request.Context())
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, overviewResponse{
		Accounts:          overview.Accounts,
		Partners:          overview.Partners,
		Subscriptions:     overview.Subscriptions,
		SignupsMTD:        overview.SignupsMTD,
		CommissionMTD:     overview.CommissionMTD.StringFixed(2),
		CommissionEntries: overview.CommissionEntries,
		PeriodStart:       overview.PeriodStart,
		GeneratedAt:       overview.GeneratedAt,
	})
}

func (s *Server) ListWebhookDeliveries(c *gin.Context) {
	limit, err := parseOptionalInt(c.Query("limit"))
	if err != nil {
		AbortWithError(c, newValidationError("limit", "invalid_limit", "limit must be a number"))
		return
	}

	requested := 0
	if limit != nil {
		requested = *limit
	}
	deliveries, err := s.webhookSvc.RecentDeliveries(c.Request.Context(), requested)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": deliveries})
}

func (s *Server) GetReferralTree(c *gin.Context) {
	rootID, err := parsePathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}
	maxLevel, err := parseOptionalInt(c.Query("max_level"))
	if err != nil {
		AbortWithError(c, referraldomain.ErrInvalidDepth)
		return
	}

	depth := 0
	if maxLevel != nil {
		depth = *maxLevel
	}
	tree, err := s.referralSvc.Tree(c.Request.Context(), rootID, depth)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	resp := referralTreeResponse{
		Root: treeNodeResponse{
			ID:        tree.Root.ID,
			Email:     tree.Root.Email,
			FullName:  tree.Root.DisplayName(),
			IsPartner: tree.Root.IsPartner,
			Active:    tree.Root.Active,
		},
		Nodes: make([]treeNodeResponse, 0, len(tree.Nodes)),
	}
	for _, node := range tree.Nodes {
		resp.Nodes = append(resp.Nodes, treeNodeResponse{
			ID:        node.Account.ID,
			Email:     node.Account.Email,
			FullName:  node.Account.DisplayName(),
			IsPartner: node.Account.IsPartner,
			Active:    node.Account.Active,
			ParentID:  node.ParentID,
			Level:     node.Level,
		})
	}

	c.JSON(http.StatusOK, resp)
}

func (s *Server) ListPartnerInvitations(c *gin.Context) {
	accountID, err := parsePathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	attempts, err := s.invitationSvc.ListAttempts(c.Request.Context(), accountID)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": attempts})
}
