package twilio

import (
	"context"
	"errors"
	"fmt"

	twiliogo "github.com/twilio/twilio-go"
	openapi "github.com/twilio/twilio-go/rest/api/v2010"
)

// Placer starts an outbound call to number whose answer webhook is
// callbackURL. It returns the Twilio call SID.
type Placer interface {
	PlaceCall(ctx context.Context, to, callbackURL string) (string, error)
}

// RESTPlacer places calls through the Twilio REST API.
type RESTPlacer struct {
	client *twiliogo.RestClient
	from   string
}

// NewRESTPlacer creates a placer that dials from the given Twilio number.
func NewRESTPlacer(accountSID, authToken, from string) *RESTPlacer {
	client := twiliogo.NewRestClientWithParams(twiliogo.ClientParams{
		Username: accountSID,
		Password: authToken,
	})
	return &RESTPlacer{client: client, from: from}
}

// PlaceCall implements Placer.
func (p *RESTPlacer) PlaceCall(ctx context.Context, to, callbackURL string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}

	params := &openapi.CreateCallParams{}
	params.SetTo(to)
	params.SetFrom(p.from)
	params.SetUrl(callbackURL)

	resp, err := p.client.Api.CreateCall(params)
	if err != nil {
		return "", fmt.Errorf("create call: %w", err)
	}
	if resp.Sid == nil {
		return "", errors.New("create call: response without sid")
	}
	return *resp.Sid, nil
}
