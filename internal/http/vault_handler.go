package http

import (
	"encoding/base64"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/allisson/vaultcore/internal/http/dto"
	"github.com/allisson/vaultcore/internal/httputil"
	cryptoDomain "github.com/allisson/vaultcore/internal/crypto/domain"
	customValidation "github.com/allisson/vaultcore/internal/validation"
	"github.com/allisson/vaultcore/internal/vault"
)

// VaultHandler exposes the crypto core's facade over HTTP: encrypt_field,
// decrypt_field, encrypt_for_transport, rotate_user_keys and stats.
type VaultHandler struct {
	vault  *vault.Service
	logger *slog.Logger
}

// NewVaultHandler creates a new vault handler with required dependencies.
func NewVaultHandler(v *vault.Service, logger *slog.Logger) *VaultHandler {
	return &VaultHandler{vault: v, logger: logger}
}

// EncryptHandler encrypts a field value under the caller's active key.
// POST /v1/vault/encrypt
func (h *VaultHandler) EncryptHandler(c *gin.Context) {
	var req dto.EncryptFieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	plaintext, err := base64.StdEncoding.DecodeString(req.Plaintext)
	if err != nil {
		httputil.HandleBadRequestGin(c, fmt.Errorf("invalid base64 plaintext: %w", err), h.logger)
		return
	}
	var aad []byte
	if req.AAD != "" {
		aad, err = base64.StdEncoding.DecodeString(req.AAD)
		if err != nil {
			httputil.HandleBadRequestGin(c, fmt.Errorf("invalid base64 aad: %w", err), h.logger)
			return
		}
	}

	ctx := securityContextFromGin(c)
	defer cryptoDomain.Zero(plaintext)

	bundle, err := h.vault.EncryptField(ctx, ctx.UserID, req.DataKind, plaintext, aad)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, bundle)
}

// DecryptHandler decrypts a previously encrypted bundle.
// POST /v1/vault/decrypt
func (h *VaultHandler) DecryptHandler(c *gin.Context) {
	var req dto.DecryptFieldRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	ctx := securityContextFromGin(c)

	plaintext, err := h.vault.DecryptField(ctx, ctx.UserID, req.DataKind, &req.Bundle)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}
	defer cryptoDomain.Zero(plaintext)

	c.JSON(http.StatusOK, dto.MapDecryptFieldResponse(plaintext))
}

// EncryptForTransportHandler wraps a short message under a recipient's
// RSA-4096 public key for out-of-band key exchange.
// POST /v1/vault/encrypt-for-transport
func (h *VaultHandler) EncryptForTransportHandler(c *gin.Context) {
	var req dto.EncryptForTransportRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	plaintext, err := base64.StdEncoding.DecodeString(req.Plaintext)
	if err != nil {
		httputil.HandleBadRequestGin(c, fmt.Errorf("invalid base64 plaintext: %w", err), h.logger)
		return
	}

	ctx := securityContextFromGin(c)
	defer cryptoDomain.Zero(plaintext)

	bundle, err := h.vault.EncryptForTransport(ctx, plaintext, []byte(req.RecipientPublicKey))
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, bundle)
}

// RotateHandler retires the caller's active key for a data kind and
// issues a fresh one.
// POST /v1/vault/rotate
func (h *VaultHandler) RotateHandler(c *gin.Context) {
	var req dto.RotateUserKeysRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		httputil.HandleBadRequestGin(c, err, h.logger)
		return
	}
	if err := req.Validate(); err != nil {
		httputil.HandleValidationErrorGin(c, customValidation.WrapValidationError(err), h.logger)
		return
	}

	ctx := securityContextFromGin(c)

	fk, err := h.vault.RotateUserKeys(ctx, ctx.UserID, req.DataKind)
	if err != nil {
		httputil.HandleErrorGin(c, err, h.logger)
		return
	}

	c.JSON(http.StatusOK, dto.MapFieldKeyToResponse(fk))
}

// StatsHandler returns a snapshot of the facade's operation counters.
// GET /v1/vault/stats
func (h *VaultHandler) StatsHandler(c *gin.Context) {
	c.JSON(http.StatusOK, dto.MapStatsToResponse(h.vault.Stats()))
}
