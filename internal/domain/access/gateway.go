package access

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/medtrust/console/internal/domain/auditlog"
	"github.com/medtrust/console/internal/platform/api"
)

// Gateway is the backend surface the orchestrator drives. *APIGateway is
// the production implementation; tests substitute fakes.
type Gateway interface {
	RequestAccess(ctx context.Context, tier Tier, req Request) (*Response, error)
	RecordAudit(ctx context.Context, rec auditlog.WriteRequest) error
	Precheck(ctx context.Context, justification string) (*Advisory, error)
}

// APIGateway implements Gateway over the shared HTTP client.
type APIGateway struct {
	api *api.Client
}

func NewAPIGateway(c *api.Client) *APIGateway {
	return &APIGateway{api: c}
}

// RequestAccess posts the attempt to the tier's endpoint. The backend
// reports denials as 4xx responses with the same body shape as grants, so
// a server error carrying a decodable denial body settles as a Response
// rather than an error. Everything else (transport failures, auth, 5xx)
// surfaces as an error.
func (g *APIGateway) RequestAccess(ctx context.Context, tier Tier, req Request) (*Response, error) {
	var resp Response
	if err := g.api.Post(ctx, tier.Endpoint(), req, &resp); err != nil {
		var se *api.ServerError
		if errors.As(err, &se) && se.StatusCode < 500 && len(se.Body) > 0 {
			var denied Response
			if json.Unmarshal(se.Body, &denied) == nil && denied.Message != "" {
				denied.Success = false
				return &denied, nil
			}
		}
		return nil, err
	}
	return &resp, nil
}

func (g *APIGateway) RecordAudit(ctx context.Context, rec auditlog.WriteRequest) error {
	return g.api.Post(ctx, "/log_access", rec, nil)
}

func (g *APIGateway) Precheck(ctx context.Context, justification string) (*Advisory, error) {
	body := map[string]string{"justification": justification}
	var adv Advisory
	if err := g.api.Post(ctx, "/api/access/precheck", body, &adv); err != nil {
		return nil, err
	}
	return &adv, nil
}
