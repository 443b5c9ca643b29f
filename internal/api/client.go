package api

import (
	"context"
	"net/http"

	"github.com/mlaakso/clusterdash/internal/gateway"
)

// Client implements the data-access interfaces over the request gateway.
type Client struct {
	gw *gateway.Gateway
}

var (
	_ PodService    = (*Client)(nil)
	_ NodeService   = (*Client)(nil)
	_ AlertService  = (*Client)(nil)
	_ TuningService = (*Client)(nil)
)

// NewClient creates the REST client.
func NewClient(gw *gateway.Gateway) *Client {
	return &Client{gw: gw}
}

type podsResponse struct {
	Pods []Pod `json:"pods"`
}

// ListPods lists pods in a namespace, or all namespaces when empty.
func (c *Client) ListPods(ctx context.Context, namespace string) ([]Pod, error) {
	result := &podsResponse{}
	req := &gateway.Request{
		Method: http.MethodGet,
		Path:   "/api/v1/pods",
		Result: result,
	}
	if namespace != "" {
		req.Query = map[string]string{"namespace": namespace}
	}
	if _, err := c.gw.Do(ctx, req); err != nil {
		return nil, err
	}
	return result.Pods, nil
}

// DeletePod deletes one pod.
func (c *Client) DeletePod(ctx context.Context, namespace, name string) error {
	_, err := c.gw.Do(ctx, &gateway.Request{
		Method: http.MethodDelete,
		Path:   "/api/v1/pods/" + namespace + "/" + name,
	})
	return err
}

type nodesResponse struct {
	Nodes []Node `json:"nodes"`
}

// ListNodes lists cluster nodes.
func (c *Client) ListNodes(ctx context.Context) ([]Node, error) {
	result := &nodesResponse{}
	if _, err := c.gw.Do(ctx, &gateway.Request{
		Method: http.MethodGet,
		Path:   "/api/v1/nodes",
		Result: result,
	}); err != nil {
		return nil, err
	}
	return result.Nodes, nil
}

type alertsResponse struct {
	Alerts []Alert `json:"alerts"`
}

// ListAlerts lists active and recent alerts.
func (c *Client) ListAlerts(ctx context.Context) ([]Alert, error) {
	result := &alertsResponse{}
	if _, err := c.gw.Do(ctx, &gateway.Request{
		Method: http.MethodGet,
		Path:   "/api/v1/alerts",
		Result: result,
	}); err != nil {
		return nil, err
	}
	return result.Alerts, nil
}

// SilenceAlert silences one alert.
func (c *Client) SilenceAlert(ctx context.Context, id string) error {
	_, err := c.gw.Do(ctx, &gateway.Request{
		Method: http.MethodPost,
		Path:   "/api/v1/alerts/" + id + "/silence",
	})
	return err
}

type tuningResponse struct {
	Parameters []TuningParameter `json:"parameters"`
}

// GetTuningParameters fetches a workload's tuning knobs.
func (c *Client) GetTuningParameters(ctx context.Context, workload string) ([]TuningParameter, error) {
	result := &tuningResponse{}
	if _, err := c.gw.Do(ctx, &gateway.Request{
		Method: http.MethodGet,
		Path:   "/api/v1/workloads/" + workload + "/tuning",
		Result: result,
	}); err != nil {
		return nil, err
	}
	return result.Parameters, nil
}

// SetTuningParameter updates one tuning knob.
func (c *Client) SetTuningParameter(ctx context.Context, workload string, param TuningParameter) error {
	_, err := c.gw.Do(ctx, &gateway.Request{
		Method: http.MethodPut,
		Path:   "/api/v1/workloads/" + workload + "/tuning/" + param.Name,
		Body:   param,
	})
	return err
}
