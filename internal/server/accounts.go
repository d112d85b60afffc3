package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
)

// LookupAccount resolves ?email= to the account; email matching is case-insensitive.
func (s *Server) LookupAccount(c *gin.Context) {
	email := strings.TrimSpace(c.Query("email"))
	if email == "" {
		AbortWithError(c, newValidationError("email", "required", "email is required"))
		return
	}

	account, err := s.accountSvc.GetByEmail(c.Request.Context(), email)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": account})
}

func (s *Server) GetAccountByID(c *gin.Context) {
	id, err := parsePathID(c, "id")
	if err != nil {
		AbortWithError(c, err)
		return
	}

	account, err := s.accountSvc.GetByID(c.Request.Context(), id)
	if err != nil {
		AbortWithError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{"data": account})
}
