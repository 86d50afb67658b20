package server

import (
	"errors"
	"net/http"
	"time"

	"github.com/gin-contrib/requestid"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	applog "gitlab.com/yelinaung/budgetly-bot/internal/logger"
	"gitlab.com/yelinaung/budgetly-bot/internal/repository"
)

type linkCodeResponse struct {
	Code        string    `json:"code"`
	Expiry      time.Time `json:"expiry"`
	BotUsername string    `json:"botUsername"`
}

type statusResponse struct {
	Linked      bool       `json:"linked"`
	DisplayName string     `json:"displayName"`
	CodeExpiry  *time.Time `json:"codeExpiry"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func (s *Server) createLinkCode(c *gin.Context) {
	code, err := s.deps.Linking.GenerateCode(c.Request.Context(), accountID(c))
	if err != nil {
		s.replyStoreError(c, err, "Failed to generate linking code")
		return
	}
	c.JSON(http.StatusOK, linkCodeResponse{
		Code:        code.Value,
		Expiry:      code.Expiry,
		BotUsername: s.opts.BotUsername,
	})
}

func (s *Server) linkStatus(c *gin.Context) {
	st, err := s.deps.Linking.Status(c.Request.Context(), accountID(c))
	if err != nil {
		s.replyStoreError(c, err, "Failed to get link status")
		return
	}
	c.JSON(http.StatusOK, statusResponse{
		Linked:      st.Linked,
		DisplayName: st.DisplayName,
		CodeExpiry:  st.CodeExpiry,
	})
}

func (s *Server) disconnect(c *gin.Context) {
	if err := s.deps.Linking.Disconnect(c.Request.Context(), accountID(c)); err != nil {
		s.replyStoreError(c, err, "Failed to disconnect account")
		return
	}
	c.JSON(http.StatusOK, messageResponse{Message: "Disconnected"})
}

func (s *Server) deleteExpense(c *gin.Context) {
	expenseID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		abortWithError(c, http.StatusBadRequest, "invalid expense id")
		return
	}
	if err := s.deps.Expenses.Delete(c.Request.Context(), accountID(c), expenseID); err != nil {
		s.replyStoreError(c, err, "Failed to delete expense")
		return
	}
	c.Status(http.StatusNoContent)
}

func (s *Server) replyStoreError(c *gin.Context, err error, msg string) {
	if errors.Is(err, repository.ErrNotFound) {
		abortWithError(c, http.StatusNotFound, "not found")
		return
	}
	applog.Log.Error().Err(err).
		Str("request_id", requestID(c)).
		Str("account_hash", applog.HashAccountID(accountID(c))).
		Msg(msg)
	abortWithError(c, http.StatusInternalServerError, "internal error")
}

func requestID(c *gin.Context) string {
	return requestid.Get(c)
}
