package ukrlp

import (
	"encoding/xml"
	"fmt"
	"sync"
	"time"
)

const (
	soapNamespace  = "http://schemas.xmlsoap.org/soap/envelope/"
	ukrlpNamespace = "http://ukrlp.co.uk.server.ws.v3"
)

// Registry query envelope. The registry matches elements by local name but
// expects the soapenv and ukrlp prefixes to be declared on the envelope.
type queryEnvelope struct {
	XMLName xml.Name  `xml:"soapenv:Envelope"`
	SoapNS  string    `xml:"xmlns:soapenv,attr"`
	UkrlpNS string    `xml:"xmlns:ukrlp,attr"`
	Header  struct{}  `xml:"soapenv:Header"`
	Body    queryBody `xml:"soapenv:Body"`
}

type queryBody struct {
	Request providerQueryRequest `xml:"ukrlp:ProviderQueryRequest"`
}

type providerQueryRequest struct {
	Criteria selectionCriteria `xml:"SelectionCriteria"`
	QueryID  int               `xml:"QueryId"`
}

type selectionCriteria struct {
	UpdatedSince  string     `xml:"ProviderUpdatedSince,omitempty"`
	UKPRNList     *ukprnList `xml:"UnitedKingdomProviderReferenceNumberList,omitempty"`
	Condition     string     `xml:"CriteriaCondition"`
	ApprovedOnly  string     `xml:"ApprovedProvidersOnly"`
	Status        string     `xml:"ProviderStatus"`
	StakeholderID string     `xml:"StakeholderId"`
}

type ukprnList struct {
	UKPRNs []int64 `xml:"UnitedKingdomProviderReferenceNumber"`
}

// messageBuilder renders provider query request envelopes. Query IDs
// increment per builder so concurrent requests stay distinguishable in the
// registry's logs.
type messageBuilder struct {
	stakeholderID string

	mu      sync.Mutex
	queryID int
}

func newMessageBuilder(stakeholderID string) *messageBuilder {
	return &messageBuilder{
		stakeholderID: stakeholderID,
		queryID:       1,
	}
}

// BuildUKPRNQuery builds a request for specific providers with the given
// status code.
func (b *messageBuilder) BuildUKPRNQuery(ukprns []int64, status string) (string, error) {
	criteria := selectionCriteria{
		UKPRNList:     &ukprnList{UKPRNs: ukprns},
		Condition:     "OR",
		ApprovedOnly:  "No",
		Status:        status,
		StakeholderID: b.stakeholderID,
	}
	return b.render(criteria)
}

// BuildUpdatedSinceQuery builds a request for all active providers changed
// after the given time.
func (b *messageBuilder) BuildUpdatedSinceQuery(updatedSince time.Time) (string, error) {
	criteria := selectionCriteria{
		UpdatedSince:  updatedSince.UTC().Format(time.RFC3339),
		Condition:     "OR",
		ApprovedOnly:  "No",
		Status:        StatusActive,
		StakeholderID: b.stakeholderID,
	}
	return b.render(criteria)
}

func (b *messageBuilder) render(criteria selectionCriteria) (string, error) {
	b.mu.Lock()
	queryID := b.queryID
	b.queryID++
	b.mu.Unlock()

	envelope := queryEnvelope{
		SoapNS:  soapNamespace,
		UkrlpNS: ukrlpNamespace,
		Body: queryBody{
			Request: providerQueryRequest{
				Criteria: criteria,
				QueryID:  queryID,
			},
		},
	}

	body, err := xml.Marshal(envelope)
	if err != nil {
		return "", fmt.Errorf("failed to marshal query envelope: %w", err)
	}
	return xml.Header + string(body), nil
}
