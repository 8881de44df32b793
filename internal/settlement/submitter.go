package settlement

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"
)

// DevSubmitter stands in for the chain collaborator when no RPC endpoint is
// configured. It only logs; every "broadcast" confirms immediately.
type DevSubmitter struct {
	logger *zap.Logger
}

func NewDevSubmitter(logger *zap.Logger) *DevSubmitter {
	return &DevSubmitter{logger: logger}
}

func (d *DevSubmitter) IsAuthorized(_ context.Context) (bool, error) {
	return true, nil
}

func (d *DevSubmitter) Submit(_ context.Context, to common.Address, amount decimal.Decimal, memo string) (string, error) {
	txHash := fmt.Sprintf("0xdev%s", uuid.New().String())
	d.logger.Info("dev settlement submit",
		zap.String("to", to.Hex()),
		zap.String("amount", amount.String()),
		zap.String("memo", memo),
		zap.String("tx_hash", txHash))
	return txHash, nil
}

func (d *DevSubmitter) AwaitConfirmation(_ context.Context, txHash string) (*Receipt, error) {
	return &Receipt{Success: true, BlockNumber: 0}, nil
}

// HTTPSubmitter talks to the external distribution service that holds the
// treasury keys. Broadcasting returns immediately; confirmation is polled.
type HTTPSubmitter struct {
	baseURL string
	client  *http.Client
}

func NewHTTPSubmitter(baseURL string) *HTTPSubmitter {
	return &HTTPSubmitter{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

func (s *HTTPSubmitter) IsAuthorized(ctx context.Context) (bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/authorized", nil)
	if err != nil {
		return false, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("authorization check failed: %v", err)
	}
	defer resp.Body.Close()

	var payload struct {
		Authorized bool `json:"authorized"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return false, fmt.Errorf("failed to decode authorization response: %v", err)
	}
	return payload.Authorized, nil
}

func (s *HTTPSubmitter) Submit(ctx context.Context, to common.Address, amount decimal.Decimal, memo string) (string, error) {
	body, err := json.Marshal(map[string]string{
		"to":     to.Hex(),
		"amount": amount.String(),
		"memo":   memo,
	})
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+"/transactions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("broadcast failed: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("broadcast rejected with status %d", resp.StatusCode)
	}

	var payload struct {
		TxHash string `json:"tx_hash"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("failed to decode broadcast response: %v", err)
	}
	return payload.TxHash, nil
}

func (s *HTTPSubmitter) AwaitConfirmation(ctx context.Context, txHash string) (*Receipt, error) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-ticker.C:
			receipt, done, err := s.pollReceipt(ctx, txHash)
			if err != nil {
				return nil, err
			}
			if done {
				return receipt, nil
			}
		}
	}
}

func (s *HTTPSubmitter) pollReceipt(ctx context.Context, txHash string) (*Receipt, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.baseURL+"/transactions/"+txHash, nil)
	if err != nil {
		return nil, false, err
	}
	resp, err := s.client.Do(req)
	if err != nil {
		return nil, false, fmt.Errorf("receipt poll failed: %v", err)
	}
	defer resp.Body.Close()

	var payload struct {
		Status      string `json:"status"` // pending, confirmed or failed
		BlockNumber uint64 `json:"block_number"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return nil, false, fmt.Errorf("failed to decode receipt: %v", err)
	}

	switch payload.Status {
	case "confirmed":
		return &Receipt{Success: true, BlockNumber: payload.BlockNumber}, true, nil
	case "failed":
		return &Receipt{Success: false, BlockNumber: payload.BlockNumber}, true, nil
	default:
		return nil, false, nil
	}
}
