package riskadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/riftfin/riftcore/internal/config"
	"github.com/riftfin/riftcore/internal/fault"
)

// Live calls the real verification providers over HTTP. Every call is rate
// limited, retried on transient failure, and fails closed: any remaining
// error surfaces as an AdapterFailure so the caller denies.
type Live struct {
	client  *http.Client
	baseURL string
	apiKey  string
	limiter *rate.Limiter
	retry   fault.RetryConfig
}

// NewLive creates a Live adapter from config.
func NewLive(cfg config.AdapterConfig) *Live {
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	perSec := cfg.RateLimitPerSec
	if perSec <= 0 {
		perSec = 5
	}
	burst := cfg.RateLimitBurst
	if burst <= 0 {
		burst = 10
	}
	return &Live{
		client:  &http.Client{Timeout: timeout},
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		limiter: rate.NewLimiter(rate.Limit(perSec), burst),
		retry:   fault.DefaultRetryConfig(),
	}
}

func (l *Live) ScreenSanctions(ctx context.Context, name, org string) (SanctionsResult, error) {
	var out SanctionsResult
	err := l.post(ctx, "sanctions", "/v1/sanctions/screen", map[string]string{
		"name":         name,
		"organization": org,
	}, &out)
	if err != nil {
		return SanctionsResult{}, err
	}
	return out, nil
}

func (l *Live) VerifyVAT(ctx context.Context, country, vatNumber string) (VATResult, error) {
	var out VATResult
	err := l.post(ctx, "vat", "/v1/vat/verify", map[string]string{
		"country":    country,
		"vat_number": vatNumber,
	}, &out)
	if err != nil {
		return VATResult{}, err
	}
	return out, nil
}

func (l *Live) SubmitKYB(ctx context.Context, payload KYBPayload) (KYBResult, error) {
	var out KYBResult
	if err := l.post(ctx, "kyb", "/v1/kyb/submit", payload, &out); err != nil {
		return KYBResult{}, err
	}
	return out, nil
}

func (l *Live) BindInsurance(ctx context.Context, policy InsurancePolicy) (BindResult, error) {
	var out BindResult
	if err := l.post(ctx, "insurance", "/v1/insurance/bind", policy, &out); err != nil {
		return BindResult{}, err
	}
	return out, nil
}

func (l *Live) CreditFiatRepayment(ctx context.Context, credit RepaymentCredit) (CreditResult, error) {
	var out CreditResult
	if err := l.post(ctx, "fiat", "/v1/fiat/credit", credit, &out); err != nil {
		return CreditResult{}, err
	}
	return out, nil
}

// post sends a JSON request and decodes the response, wrapping any
// remaining failure as an AdapterFailure for the named provider op.
func (l *Live) post(ctx context.Context, op, path string, body any, out any) error {
	if err := l.limiter.Wait(ctx); err != nil {
		return fault.Adapter("risk", op, err)
	}

	payload, err := json.Marshal(body)
	if err != nil {
		return fault.Adapter("risk", op, eris.Wrap(err, "marshal request"))
	}

	err = fault.Retry(ctx, l.retry, func(ctx context.Context) error {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, l.baseURL+path, bytes.NewReader(payload))
		if err != nil {
			return eris.Wrap(err, "build request")
		}
		req.Header.Set("Content-Type", "application/json")
		if l.apiKey != "" {
			req.Header.Set("Authorization", "Bearer "+l.apiKey)
		}

		resp, err := l.client.Do(req)
		if err != nil {
			return eris.Wrap(err, "send request")
		}
		defer resp.Body.Close() //nolint:errcheck

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return eris.Errorf("provider returned status %d: %s", resp.StatusCode, string(snippet))
		}
		return json.NewDecoder(resp.Body).Decode(out)
	})
	if err != nil {
		zap.L().Warn("riskadapter: provider call failed",
			zap.String("op", op),
			zap.Error(err),
		)
		return fault.Adapter("risk", op, err)
	}
	return nil
}

var _ Port = (*Live)(nil)
var _ Port = (*Mock)(nil)
