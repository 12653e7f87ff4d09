package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/labstack/echo/v4"
	"go.uber.org/zap"

	"walletd/internal/helper"
	"walletd/internal/model"
	"walletd/internal/service"
)

type sessionView struct {
	model.SessionState
	ShortAddress string `json:"shortAddress,omitempty"`
}

func viewOf(st model.SessionState) sessionView {
	return sessionView{SessionState: st, ShortAddress: helper.ShortAddress(st.Address)}
}

// GET /api/session
func GetSession(m *service.SessionManager) echo.HandlerFunc {
	return func(c echo.Context) error {
		return SuccessResponse(c, http.StatusOK, "Session state retrieved", viewOf(m.State()))
	}
}

// POST /api/session/connect
func ConnectWallet(m *service.SessionManager, logger *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		ctx := c.Request().Context()

		if _, err := m.EnsureInitialized(ctx); err != nil {
			return initErrorResponse(c, err)
		}

		if err := m.OpenConnectModal(ctx); err != nil {
			logger.Info("connect flow failed", zap.Error(err))
			return ErrorResponse(c, http.StatusBadGateway, "Wallet did not connect", "MODAL_OPEN_FAILED", "Please try again")
		}

		return SuccessResponse(c, http.StatusOK, "Connect flow completed", viewOf(m.State()))
	}
}

type signRequest struct {
	Message string `json:"message"`
}

// POST /api/session/sign
func SignMessage(m *service.SessionManager, logger *zap.Logger) echo.HandlerFunc {
	return func(c echo.Context) error {
		var req signRequest
		if err := c.Bind(&req); err != nil {
			return ErrorResponse(c, http.StatusBadRequest, "Invalid request body", "INVALID_BODY", err.Error())
		}
		if strings.TrimSpace(req.Message) == "" {
			return ErrorResponse(c, http.StatusBadRequest, "Message is required", "MESSAGE_REQUIRED", "")
		}

		ctx := c.Request().Context()
		h, err := m.GetSigningHandle(ctx)
		if h == nil {
			switch {
			case errors.Is(err, service.ErrNotInitialized):
				return ErrorResponse(c, http.StatusServiceUnavailable, "Wallet session is not ready", "SESSION_NOT_READY", "")
			case errors.Is(err, service.ErrNotConnected):
				return ErrorResponse(c, http.StatusConflict, "Wallet is not connected", "NOT_CONNECTED", "Connect a wallet first")
			default:
				return ErrorResponse(c, http.StatusBadGateway, "Cannot sign right now", "SIGNER_UNAVAILABLE", "Please try again")
			}
		}

		sig, err := h.SignMessage(ctx, []byte(req.Message))
		if err != nil {
			logger.Info("message signing failed", zap.Error(err))
			return ErrorResponse(c, http.StatusBadGateway, "Signing failed", "SIGN_FAILED", "Please try again")
		}

		return SuccessResponse(c, http.StatusOK, "Message signed", map[string]interface{}{
			"address":   h.Address().Hex(),
			"chainId":   h.ChainID().String(),
			"signature": hexutil.Encode(sig),
		})
	}
}

func initErrorResponse(c echo.Context, err error) error {
	switch {
	case errors.Is(err, service.ErrConfigurationMissing):
		return ErrorResponse(c, http.StatusServiceUnavailable, "Wallet connection is not configured", "WALLET_NOT_CONFIGURED", "")
	case errors.Is(err, service.ErrEnvironmentUnsupported):
		return ErrorResponse(c, http.StatusServiceUnavailable, "No wallet available", "WALLET_UNAVAILABLE", "")
	default:
		return ErrorResponse(c, http.StatusBadGateway, "Wallet initialization failed", "WALLET_INIT_FAILED", "Please try again")
	}
}
