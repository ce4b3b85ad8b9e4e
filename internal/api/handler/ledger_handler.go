package handler

import (
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/tudinhtu98/copee-nest/internal/api/dto"
	"github.com/tudinhtu98/copee-nest/internal/ledger"
)

// GetBalance handles GET /api/v1/ledger/:account_id/balance
func (h *LedgerHandler) GetBalance(c *gin.Context) {
	accountID := c.Param("account_id")

	balance, err := h.ledger.Balance(c.Request.Context(), accountID)
	if err != nil {
		if errors.Is(err, ledger.ErrAccountNotFound) {
			c.JSON(http.StatusNotFound, gin.H{
				"error": "Account not found",
			})
			return
		}
		h.logger.Error("Failed to get balance", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to get balance",
		})
		return
	}

	c.JSON(http.StatusOK, dto.BalanceResponse{
		AccountID: accountID,
		Balance:   balance,
	})
}

// Credit handles POST /api/v1/ledger/:account_id/credit
// Tops up the prepaid balance
func (h *LedgerHandler) Credit(c *gin.Context) {
	accountID := c.Param("account_id")

	var req dto.CreditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.logger.Error("Invalid request body", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid request body",
		})
		return
	}

	balance, err := h.ledger.Credit(c.Request.Context(), accountID, req.Amount, req.Reference, req.Description)
	if err != nil {
		if errors.Is(err, ledger.ErrInvalidAmount) {
			c.JSON(http.StatusBadRequest, gin.H{
				"error": "Amount must be positive",
			})
			return
		}
		h.logger.Error("Failed to credit account", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to credit account",
		})
		return
	}

	c.JSON(http.StatusOK, dto.BalanceResponse{
		AccountID: accountID,
		Balance:   balance,
	})
}

// ListEntries handles GET /api/v1/ledger/:account_id/entries
// Returns the transaction history, newest first
func (h *LedgerHandler) ListEntries(c *gin.Context) {
	accountID := c.Param("account_id")

	var req dto.ListEntriesRequest
	if err := c.ShouldBindQuery(&req); err != nil {
		h.logger.Error("Invalid query parameters", slog.String("error", err.Error()))
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "Invalid query parameters",
		})
		return
	}

	if req.Limit <= 0 {
		req.Limit = 50
	}
	if req.Limit > 200 {
		req.Limit = 200
	}

	entries, err := h.ledger.Entries(c.Request.Context(), accountID, ledger.EntryFilter{
		Kind:  req.Kind,
		Limit: req.Limit,
	})
	if err != nil {
		h.logger.Error("Failed to list ledger entries", slog.String("error", err.Error()))
		c.JSON(http.StatusInternalServerError, gin.H{
			"error": "Failed to list ledger entries",
		})
		return
	}

	entryResponse := make([]dto.EntryDTO, len(entries))
	for i, entry := range entries {
		entryResponse[i] = dto.EntryDTO{
			ID:          entry.ID,
			AccountID:   entry.AccountID,
			Amount:      entry.Amount,
			Kind:        entry.Kind,
			Reference:   entry.Reference,
			Description: entry.Description,
			CreatedAt:   entry.CreatedAt.Format(time.RFC3339),
		}
	}

	c.JSON(http.StatusOK, dto.ListEntriesResponse{
		Entries: entryResponse,
	})
}
