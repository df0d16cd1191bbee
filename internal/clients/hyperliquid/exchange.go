package hyperliquid

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/vmihailenco/msgpack/v5"

	"github.com/dcabot/hypersip/internal/domain"
)

// Exchange combines the /info client with the signed /exchange gateway and
// implements domain.Exchange.
type Exchange struct {
	*Client
	signer *Signer
	http   *http.Client
	log    zerolog.Logger
	now    func() time.Time // nonce source, overridable in tests
}

// NewExchange creates the full venue session: market data plus order
// placement signed with the operator's key.
func NewExchange(info *Client, signer *Signer, log zerolog.Logger) *Exchange {
	return &Exchange{
		Client: info,
		signer: signer,
		http:   &http.Client{Timeout: 15 * time.Second},
		log:    log.With().Str("client", "hyperliquid-exchange").Logger(),
		now:    time.Now,
	}
}

// orderAction is the msgpack-encoded action for a single order. Field order
// matters: the signature is computed over these exact bytes.
type orderAction struct {
	Type     string      `msgpack:"type" json:"type"`
	Orders   []wireOrder `msgpack:"orders" json:"orders"`
	Grouping string      `msgpack:"grouping" json:"grouping"`
}

type wireOrder struct {
	Asset      int       `msgpack:"a" json:"a"`
	IsBuy      bool      `msgpack:"b" json:"b"`
	LimitPrice string    `msgpack:"p" json:"p"`
	Size       string    `msgpack:"s" json:"s"`
	ReduceOnly bool      `msgpack:"r" json:"r"`
	OrderType  wireOType `msgpack:"t" json:"t"`
}

type wireOType struct {
	Limit wireLimit `msgpack:"limit" json:"limit"`
}

type wireLimit struct {
	Tif string `msgpack:"tif" json:"tif"`
}

type cancelAction struct {
	Type    string       `msgpack:"type" json:"type"`
	Cancels []wireCancel `msgpack:"cancels" json:"cancels"`
}

type wireCancel struct {
	Asset   int   `msgpack:"a" json:"a"`
	OrderID int64 `msgpack:"o" json:"o"`
}

// exchangeResponse is the venue's generic /exchange answer.
type exchangeResponse struct {
	Status   string `json:"status"`
	Response struct {
		Type string `json:"type"`
		Data struct {
			Statuses []struct {
				Resting *struct {
					OID int64 `json:"oid"`
				} `json:"resting"`
				Filled *struct {
					OID int64 `json:"oid"`
				} `json:"filled"`
				Error string `json:"error"`
			} `json:"statuses"`
		} `json:"data"`
	} `json:"response"`
}

// PlaceOrder submits a spot limit order.
func (e *Exchange) PlaceOrder(ctx context.Context, req domain.OrderRequest) (domain.OrderResult, error) {
	assetID, err := e.spotAssetID(ctx, req.Pair)
	if err != nil {
		return domain.OrderResult{}, err
	}

	tif := req.TimeInForce
	if tif == "" {
		tif = "Gtc"
	}

	action := orderAction{
		Type: "order",
		Orders: []wireOrder{{
			Asset:      assetID,
			IsBuy:      req.IsBuy,
			LimitPrice: req.LimitPrice.String(),
			Size:       req.Size.String(),
			ReduceOnly: false,
			OrderType:  wireOType{Limit: wireLimit{Tif: tif}},
		}},
		Grouping: "na",
	}

	resp, err := e.submit(ctx, action)
	if err != nil {
		return domain.OrderResult{}, err
	}
	if resp.Status != "ok" {
		return domain.OrderResult{}, fmt.Errorf("order submission rejected: %s", resp.Status)
	}
	if len(resp.Response.Data.Statuses) == 0 {
		return domain.OrderResult{}, fmt.Errorf("order response carried no status")
	}

	status := resp.Response.Data.Statuses[0]
	switch {
	case status.Resting != nil:
		e.log.Info().Int64("oid", status.Resting.OID).Str("pair", req.Pair).Msg("Order resting")
		return domain.OrderResult{Status: domain.OrderResting, OrderID: status.Resting.OID}, nil
	case status.Filled != nil:
		return domain.OrderResult{Status: domain.OrderFilled, OrderID: status.Filled.OID}, nil
	case status.Error != "":
		return domain.OrderResult{Status: domain.OrderRejected, Reason: status.Error}, nil
	default:
		return domain.OrderResult{}, fmt.Errorf("order response carried an unrecognized status")
	}
}

// CancelOrder cancels a resting order by id.
func (e *Exchange) CancelOrder(ctx context.Context, pair string, orderID int64) error {
	assetID, err := e.spotAssetID(ctx, pair)
	if err != nil {
		return err
	}

	resp, err := e.submit(ctx, cancelAction{
		Type:    "cancel",
		Cancels: []wireCancel{{Asset: assetID, OrderID: orderID}},
	})
	if err != nil {
		return err
	}
	if resp.Status != "ok" {
		return fmt.Errorf("cancel rejected: %s", resp.Status)
	}
	e.log.Info().Int64("oid", orderID).Str("pair", pair).Msg("Order cancelled")
	return nil
}

// submit signs and posts an action to /exchange. The nonce is the request
// timestamp in milliseconds, which the venue requires to be fresh.
func (e *Exchange) submit(ctx context.Context, action any) (*exchangeResponse, error) {
	actionBytes, err := msgpack.Marshal(action)
	if err != nil {
		return nil, fmt.Errorf("failed to encode action: %w", err)
	}

	nonce := uint64(e.now().UnixMilli())
	sig, err := e.signer.Sign(actionBytes, nonce)
	if err != nil {
		return nil, err
	}

	payload, err := json.Marshal(map[string]any{
		"action":    action,
		"nonce":     nonce,
		"signature": sig,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/exchange", bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	httpResp, err := e.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("exchange request failed: %w", err)
	}
	defer httpResp.Body.Close()

	if httpResp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(io.LimitReader(httpResp.Body, 512))
		return nil, fmt.Errorf("exchange returned status %d: %s", httpResp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var resp exchangeResponse
	if err := json.NewDecoder(httpResp.Body).Decode(&resp); err != nil {
		return nil, fmt.Errorf("failed to decode exchange response: %w", err)
	}
	return &resp, nil
}
