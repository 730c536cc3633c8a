package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/verdantlabs/greenlight/pkg/models"
)

const defaultTimeout = 60 * time.Second

// HTTPOracle talks to a remote decision oracle service over JSON/HTTP. One
// POST endpoint per operation; any non-2xx response or transport error is a
// collaborator failure.
type HTTPOracle struct {
	baseURL string
	client  *http.Client
}

func NewHTTPOracle(baseURL string) *HTTPOracle {
	return &HTTPOracle{
		baseURL: baseURL,
		client:  &http.Client{Timeout: defaultTimeout},
	}
}

func (o *HTTPOracle) ExtractActionItem(ctx context.Context, rawItem models.PlanItem, sectionType models.WorkflowType, oc Context) (*StructuredItem, error) {
	var out StructuredItem

	err := o.post(ctx, "/v1/extract", map[string]any{
		"item":         rawItem,
		"section_type": sectionType,
		"context":      oc,
	}, &out)
	if err != nil {
		return nil, err
	}

	return &out, nil
}

func (o *HTTPOracle) AssessRisk(ctx context.Context, item *StructuredItem, oc Context) (*RiskAssessment, error) {
	var out RiskAssessment

	err := o.post(ctx, "/v1/assess-risk", map[string]any{
		"item":    item,
		"context": oc,
	}, &out)
	if err != nil {
		return nil, err
	}

	return &out, nil
}

func (o *HTTPOracle) DetermineApprovalRouting(ctx context.Context, item *StructuredItem, risk *RiskAssessment, oc Context) (*ApprovalRouting, error) {
	var out ApprovalRouting

	err := o.post(ctx, "/v1/approval-routing", map[string]any{
		"item":    item,
		"risk":    risk,
		"context": oc,
	}, &out)
	if err != nil {
		return nil, err
	}

	return &out, nil
}

func (o *HTTPOracle) ValidateApproval(ctx context.Context, workflow *models.Workflow, approver, reasoning string, oc Context) (*ApprovalValidation, error) {
	var out ApprovalValidation

	err := o.post(ctx, "/v1/validate-approval", map[string]any{
		"workflow":  workflow,
		"approver":  approver,
		"reasoning": reasoning,
		"context":   oc,
	}, &out)
	if err != nil {
		return nil, err
	}

	return &out, nil
}

func (o *HTTPOracle) ValidateRejection(ctx context.Context, workflow *models.Workflow, rejector, reason string, oc Context) (*RejectionValidation, error) {
	var out RejectionValidation

	err := o.post(ctx, "/v1/validate-rejection", map[string]any{
		"workflow": workflow,
		"rejector": rejector,
		"reason":   reason,
		"context":  oc,
	}, &out)
	if err != nil {
		return nil, err
	}

	return &out, nil
}

func (o *HTTPOracle) ChooseExecutorAndParameters(ctx context.Context, workflow *models.Workflow, oc Context) (*ExecutorChoice, error) {
	var out ExecutorChoice

	err := o.post(ctx, "/v1/choose-executor", map[string]any{
		"workflow": workflow,
		"context":  oc,
	}, &out)
	if err != nil {
		return nil, err
	}

	return &out, nil
}

func (o *HTTPOracle) post(ctx context.Context, path string, payload any, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal oracle request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create oracle request: %w", err)
	}

	req.Header.Set("Content-Type", "application/json")

	resp, err := o.client.Do(req)
	if err != nil {
		return fmt.Errorf("oracle request failed: %w", err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read oracle response: %w", err)
	}

	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		return fmt.Errorf("oracle returned status %d: %s", resp.StatusCode, string(respBody))
	}

	if err := json.Unmarshal(respBody, out); err != nil {
		return fmt.Errorf("failed to decode oracle response: %w", err)
	}

	return nil
}
