package ephemeris

import (
	"context"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/wonny/lunaris/pkg/httputil"
)

// Remote queries an HTTP ephemeris service:
//
//	GET {BaseURL}/elongation?at=2024-01-01T00:00:00Z  ->  {"angle_deg": 12.34}
//
// Throttling and retries are handled by the httputil client.
type Remote struct {
	baseURL string
	client  *httputil.Client
}

type remoteAngle struct {
	AngleDeg *float64 `json:"angle_deg"`
}

// NewRemote creates a remote oracle
func NewRemote(baseURL string, client *httputil.Client) *Remote {
	return &Remote{
		baseURL: strings.TrimRight(baseURL, "/"),
		client:  client,
	}
}

// ID implements Identified
func (r *Remote) ID() string {
	return "remote:" + r.baseURL
}

// Angle implements contracts.AngleOracle
func (r *Remote) Angle(ctx context.Context, at time.Time) (float64, error) {
	endpoint := fmt.Sprintf("%s/elongation?at=%s", r.baseURL, url.QueryEscape(at.UTC().Format(time.RFC3339)))

	var body remoteAngle
	if err := r.client.GetJSON(ctx, endpoint, &body); err != nil {
		return 0, fmt.Errorf("remote elongation at %s: %w", at.UTC().Format(time.RFC3339), err)
	}
	if body.AngleDeg == nil {
		return 0, fmt.Errorf("remote elongation at %s: missing angle_deg", at.UTC().Format(time.RFC3339))
	}

	return Normalize(*body.AngleDeg), nil
}
