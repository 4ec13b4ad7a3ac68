package ukrlp

import (
	"context"
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/skillsinfra/ukrlp-cache/internal/core/domain"
	"github.com/skillsinfra/ukrlp-cache/internal/core/ports/driven"
)

// Provider status codes understood by the registry. Lookups for a single
// provider fall through the deactivation statuses so recently closed
// providers still resolve.
const (
	StatusActive       = "A"
	StatusDeactivated  = "PD1"
	StatusDeregistered = "PD2"
)

var lookupStatuses = []string{StatusActive, StatusDeactivated, StatusDeregistered}

const soapAction = "retrieveAllProviders"

// SoapFault is returned when the registry answers with a SOAP fault instead
// of a provider query response.
type SoapFault struct {
	Code   string
	Detail string
}

func (f *SoapFault) Error() string {
	return fmt.Sprintf("registry returned SOAP fault %s: %s", f.Code, f.Detail)
}

// Ensure Client implements UkrlpClient
var _ driven.UkrlpClient = (*Client)(nil)

// Client calls the UKRLP provider query SOAP endpoint.
type Client struct {
	endpoint string
	builder  *messageBuilder
	client   *http.Client
	logger   *slog.Logger
}

// ClientConfig holds the settings for the registry client.
type ClientConfig struct {
	Endpoint      string
	StakeholderID string
	HTTPClient    *http.Client
	Logger        *slog.Logger
}

// NewClient creates a registry client.
func NewClient(cfg ClientConfig) (*Client, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("registry endpoint is required")
	}
	if cfg.StakeholderID == "" {
		return nil, fmt.Errorf("stakeholder id is required")
	}

	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: 60 * time.Second}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Client{
		endpoint: cfg.Endpoint,
		builder:  newMessageBuilder(cfg.StakeholderID),
		client:   httpClient,
		logger:   logger,
	}, nil
}

// GetProvider fetches a single provider, trying each status code in turn.
// Returns nil, nil when the registry knows no record under any of them.
func (c *Client) GetProvider(ctx context.Context, ukprn int64) (*domain.Provider, error) {
	for _, status := range lookupStatuses {
		message, err := c.builder.BuildUKPRNQuery([]int64{ukprn}, status)
		if err != nil {
			return nil, err
		}

		providers, err := c.execute(ctx, message)
		if err != nil {
			return nil, err
		}
		if len(providers) > 0 {
			return &providers[0], nil
		}
	}
	return nil, nil
}

// GetProviders fetches multiple providers in one query per status code.
// Each status query only asks for the UKPRNs still unmatched.
func (c *Client) GetProviders(ctx context.Context, ukprns []int64) ([]domain.Provider, error) {
	if len(ukprns) == 0 {
		return nil, nil
	}

	var found []domain.Provider
	remaining := ukprns

	for _, status := range lookupStatuses {
		if len(remaining) == 0 {
			break
		}

		message, err := c.builder.BuildUKPRNQuery(remaining, status)
		if err != nil {
			return nil, err
		}

		providers, err := c.execute(ctx, message)
		if err != nil {
			return nil, err
		}
		found = append(found, providers...)

		matched := make(map[int64]bool, len(providers))
		for _, p := range providers {
			matched[p.UKPRN] = true
		}
		var next []int64
		for _, ukprn := range remaining {
			if !matched[ukprn] {
				next = append(next, ukprn)
			}
		}
		remaining = next
	}

	return found, nil
}

// GetProvidersUpdatedSince fetches every provider changed after the given
// time.
func (c *Client) GetProvidersUpdatedSince(ctx context.Context, since time.Time) ([]domain.Provider, error) {
	message, err := c.builder.BuildUpdatedSinceQuery(since)
	if err != nil {
		return nil, err
	}
	return c.execute(ctx, message)
}

// execute posts a query envelope and parses the matching records.
func (c *Client) execute(ctx context.Context, message string) ([]domain.Provider, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, strings.NewReader(message))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "text/xml; charset=utf-8")
	req.Header.Set("SOAPAction", soapAction)

	start := time.Now()
	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("registry request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read registry response: %w", err)
	}

	c.logger.Debug("registry query executed",
		"status", resp.StatusCode,
		"duration_ms", time.Since(start).Milliseconds())

	parsed, err := parseResponse(body)
	if err != nil {
		return nil, err
	}
	if parsed.Fault != nil {
		return nil, &SoapFault{Code: parsed.Fault.Code, Detail: parsed.Fault.Detail}
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("registry returned status %d", resp.StatusCode)
	}
	if parsed.Query == nil {
		return nil, fmt.Errorf("registry response missing provider query response")
	}

	providers := make([]domain.Provider, 0, len(parsed.Query.Records))
	for _, record := range parsed.Query.Records {
		providers = append(providers, record.toDomain())
	}
	return providers, nil
}

// Response documents. Tags match on local name only, so the registry's
// namespace prefixes do not matter here.
type responseBody struct {
	Fault *faultRecord   `xml:"Fault"`
	Query *queryResponse `xml:"ProviderQueryResponse"`
}

type responseEnvelope struct {
	Body responseBody `xml:"Body"`
}

type faultRecord struct {
	Code   string `xml:"faultcode"`
	Detail string `xml:"faultstring"`
}

type queryResponse struct {
	Records []matchingRecord `xml:"MatchingProviderRecords"`
}

type matchingRecord struct {
	UKPRN            int64                `xml:"UnitedKingdomProviderReferenceNumber"`
	ProviderName     string               `xml:"ProviderName"`
	AccessibleName   string               `xml:"AccessibleProviderName"`
	VerificationDate string               `xml:"ProviderVerificationDate"`
	ExpiryDate       string               `xml:"ExpiryDate"`
	ProviderStatus   string               `xml:"ProviderStatus"`
	Contacts         []contactRecord      `xml:"ProviderContact"`
	Verifications    []verificationRecord `xml:"VerificationDetails"`
}

type contactRecord struct {
	ContactType     string         `xml:"ContactType"`
	ContactRole     string         `xml:"ContactRole"`
	Telephone1      string         `xml:"ContactTelephone1"`
	Telephone2      string         `xml:"ContactTelephone2"`
	Fax             string         `xml:"ContactFax"`
	WebsiteAddress  string         `xml:"ContactWebsiteAddress"`
	Email           string         `xml:"ContactEmail"`
	LastUpdated     string         `xml:"LastUpdated"`
	Address         *addressRecord `xml:"ContactAddress"`
	PersonalDetails *personRecord  `xml:"ContactPersonalDetails"`
}

type addressRecord struct {
	Address1 string `xml:"Address1"`
	Address2 string `xml:"Address2"`
	Address3 string `xml:"Address3"`
	Address4 string `xml:"Address4"`
	Town     string `xml:"Town"`
	County   string `xml:"County"`
	Postcode string `xml:"PostCode"`
}

type personRecord struct {
	Title         string `xml:"PersonNameTitle"`
	GivenName     string `xml:"PersonGivenName"`
	FamilyName    string `xml:"PersonFamilyName"`
	Suffix        string `xml:"PersonNameSuffix"`
	RequestedName string `xml:"PersonRequestedName"`
}

type verificationRecord struct {
	Authority string `xml:"VerificationAuthority"`
	ID        string `xml:"VerificationID"`
}

func parseResponse(body []byte) (*responseBody, error) {
	var envelope responseEnvelope
	if err := xml.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("failed to parse registry response: %w", err)
	}
	return &envelope.Body, nil
}

func (r matchingRecord) toDomain() domain.Provider {
	provider := domain.Provider{
		UKPRN:                    r.UKPRN,
		ProviderName:             r.ProviderName,
		AccessibleProviderName:   r.AccessibleName,
		ProviderStatus:           r.ProviderStatus,
		ProviderVerificationDate: parseRegistryTime(r.VerificationDate),
		ExpiryDate:               parseRegistryTime(r.ExpiryDate),
	}

	for _, c := range r.Contacts {
		contact := domain.ProviderContact{
			ContactType:    c.ContactType,
			ContactRole:    c.ContactRole,
			Telephone1:     c.Telephone1,
			Telephone2:     c.Telephone2,
			Fax:            c.Fax,
			WebsiteAddress: c.WebsiteAddress,
			Email:          c.Email,
			LastUpdated:    parseRegistryTime(c.LastUpdated),
		}
		if c.Address != nil {
			contact.Address = &domain.Address{
				Line1:    c.Address.Address1,
				Line2:    c.Address.Address2,
				Line3:    c.Address.Address3,
				Line4:    c.Address.Address4,
				Town:     c.Address.Town,
				County:   c.Address.County,
				Postcode: c.Address.Postcode,
			}
		}
		if c.PersonalDetails != nil {
			contact.PersonalDetails = &domain.PersonName{
				Title:         c.PersonalDetails.Title,
				GivenName:     c.PersonalDetails.GivenName,
				FamilyName:    c.PersonalDetails.FamilyName,
				Suffix:        c.PersonalDetails.Suffix,
				RequestedName: c.PersonalDetails.RequestedName,
			}
		}
		provider.Contacts = append(provider.Contacts, contact)
	}

	for _, v := range r.Verifications {
		provider.Verifications = append(provider.Verifications, domain.VerificationDetail{
			Authority: v.Authority,
			ID:        v.ID,
		})
	}

	return provider
}

// parseRegistryTime handles the timestamp shapes the registry emits. Missing
// or unparseable values come back nil.
func parseRegistryTime(value string) *time.Time {
	if value == "" {
		return nil
	}
	for _, layout := range []string{time.RFC3339Nano, time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			t = t.UTC()
			return &t
		}
	}
	return nil
}
