package cj

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/samber/lo"
	"go.uber.org/fx"
	"go.uber.org/zap"

	models "github.com/fatflowers/affiliate/internal/models"
	cfgpkg "github.com/fatflowers/affiliate/pkg/config"
)

// Client is the surface the jobs consume. The concrete client owns
// authentication, encoding and transport; the jobs interpret status codes
// and records.
type Client interface {
	// ReportSubscription submits one subscription to the CJ S2S event
	// endpoint and returns the transport-level result.
	ReportSubscription(ctx context.Context, sub *models.Subscription) (*ReportResult, error)
	// QueryCommissions returns the commission records whose posting date
	// falls inside the given window. The window is widened to whole UTC
	// days before querying.
	QueryCommissions(ctx context.Context, window models.DateRange) ([]CommissionRecord, error)
}

// ReportResult exposes the status code of an S2S report; interpretation is
// the caller's job.
type ReportResult struct {
	StatusCode int
}

type CommissionItem struct {
	SKU string `json:"sku"`
}

// CommissionRecord is CJ's own record of a received event. Verification
// consumes OrderID, SaleAmountPubCurrency and Items; the remaining fields
// are decoded for logging only and never interpreted.
type CommissionRecord struct {
	Original              bool             `json:"original"`
	OrderID               string           `json:"orderId"`
	PostingDate           string           `json:"postingDate"`
	CorrectionReason      string           `json:"correctionReason"`
	SaleAmountPubCurrency float64          `json:"saleAmountPubCurrency"`
	Items                 []CommissionItem `json:"items"`
}

type commissionsResponse struct {
	Data struct {
		AdvertiserCommissions struct {
			Count   int                `json:"count"`
			Records []CommissionRecord `json:"records"`
		} `json:"advertiserCommissions"`
	} `json:"data"`
}

type S2SClient struct {
	cfg  cfgpkg.CJConfig
	http *http.Client
	log  *zap.SugaredLogger
}

func NewClient(cfg *cfgpkg.Config, log *zap.SugaredLogger) Client {
	return &S2SClient{
		cfg:  cfg.CJ,
		http: &http.Client{Timeout: 30 * time.Second},
		log:  log,
	}
}

func (c *S2SClient) ReportSubscription(ctx context.Context, sub *models.Subscription) (*ReportResult, error) {
	u, err := url.Parse(c.cfg.EventEndpoint)
	if err != nil {
		return nil, fmt.Errorf("invalid cj event endpoint: %w", err)
	}
	q := u.Query()
	q.Set("CID", c.cfg.CID)
	q.Set("TYPE", c.cfg.Type)
	q.Set("SIGNATURE", c.cfg.Signature)
	q.Set("METHOD", "S2S")
	q.Set("CJEVENT", lo.FromPtr(sub.CJEventValue))
	q.Set("EVENTTIME", sub.SubscriptionCreated.UTC().Format(time.RFC3339))
	q.Set("OID", sub.ID)
	q.Set("CURRENCY", sub.PlanCurrency)
	q.Set("ITEM1", sub.PlanID)
	q.Set("AMT1", strconv.Itoa(int(sub.PlanAmount)))
	q.Set("QTY1", strconv.Itoa(int(sub.Quantity)))
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build cj event request: %w", err)
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("cj event request failed: %w", err)
	}
	defer resp.Body.Close()
	return &ReportResult{StatusCode: resp.StatusCode}, nil
}

func (c *S2SClient) QueryCommissions(ctx context.Context, window models.DateRange) ([]CommissionRecord, error) {
	if window.Empty() {
		return nil, fmt.Errorf("commissions query needs a bounded window")
	}
	body, err := json.Marshal(map[string]string{
		"query": commissionsQuery(c.cfg.AdvertiserIDs, *window.Min, *window.Max),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode commissions query: %w", err)
	}

	// CJ's commissions API takes the GraphQL document in the body of a GET.
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.CommissionsEndpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build commissions request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIAccessToken)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("commissions query failed: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("commissions query returned status %d", resp.StatusCode)
	}

	var decoded commissionsResponse
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("failed to decode commissions response: %w", err)
	}
	c.log.Infow("cj commissions query complete",
		"count", decoded.Data.AdvertiserCommissions.Count,
		"records", len(decoded.Data.AdvertiserCommissions.Records),
	)
	return decoded.Data.AdvertiserCommissions.Records, nil
}

// commissionsQuery renders the advertiserCommissions document. The window
// is widened to whole UTC days: CJ ingests with latency and rejects
// sub-day posting-date bounds anyway.
func commissionsQuery(advertiserIDs []string, min, max time.Time) string {
	since := min.UTC().Truncate(24 * time.Hour)
	before := max.UTC().Truncate(24 * time.Hour).Add(24 * time.Hour)
	quoted := lo.Map(advertiserIDs, func(id string, _ int) string {
		return `"` + id + `"`
	})
	return fmt.Sprintf(`{
advertiserCommissions(
    forAdvertisers: [%s],
    sincePostingDate:"%s",
    beforePostingDate:"%s",
) {
    count
    records {
        original
        orderId
        postingDate
        correctionReason
        saleAmountPubCurrency
        items {
            sku
        }
    }
}}`, strings.Join(quoted, ", "), since.Format(time.RFC3339), before.Format(time.RFC3339))
}

var Module = fx.Options(
	fx.Provide(NewClient),
)
