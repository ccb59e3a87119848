package kafka

import (
	"context"

	"github.com/kafkaclient/kafka/diagnostic"
	"github.com/kafkaclient/kafka/internal/conn"
	"github.com/kafkaclient/kafka/kerrors"
	"github.com/kafkaclient/kafka/protocol/registry"
)

// Admin wraps the cluster-management requests of spec.md §4.11:
// CreateTopics/DeleteTopics run against the controller broker, DescribeConfigs
// and DescribeCluster tolerate any broker that can answer Metadata.
type Admin struct {
	client *Client
	diag   diagnostic.Diagnostic
}

func NewAdmin(client *Client) *Admin {
	return &Admin{client: client, diag: client.diag.WithContext(diagnostic.String("component", "admin"))}
}

// controller returns a connection to the broker holding the current
// controller role, since CreateTopics/DeleteTopics must be sent there.
func (a *Admin) controller(ctx context.Context) (*conn.Conn, error) {
	snap := a.client.Metadata().Current()
	if snap.ControllerID == 0 {
		if err := a.client.Metadata().Refresh(ctx, nil); err != nil {
			return nil, err
		}
		snap = a.client.Metadata().Current()
	}
	c, err := a.client.Pool().Get(ctx, snap.ControllerID)
	if err != nil {
		return nil, kerrors.Wrap(kerrors.NetworkError, err, "admin: dial controller")
	}
	return c, nil
}

// TopicSpec describes one topic to create via CreateTopics.
type TopicSpec struct {
	Name              string
	NumPartitions     int32
	ReplicationFactor int16
	Configs           map[string]string
}

// CreateTopics creates the given topics, waiting up to timeoutMs for the
// controller to complete them before replying.
func (a *Admin) CreateTopics(ctx context.Context, specs []TopicSpec, timeoutMs int32) ([]CreateTopicResult, error) {
	c, err := a.controller(ctx)
	if err != nil {
		return nil, err
	}
	req := &registry.CreateTopicsRequest{TimeoutMs: timeoutMs}
	for _, s := range specs {
		data := registry.CreateTopicRequestData{
			Name:              s.Name,
			NumPartitions:     s.NumPartitions,
			ReplicationFactor: s.ReplicationFactor,
		}
		for k, v := range s.Configs {
			value := v
			data.Configs = append(data.Configs, registry.CreateTopicConfig{Name: k, Value: &value})
		}
		req.Topics = append(req.Topics, data)
	}
	resp := &registry.CreateTopicsResponse{}
	if err := c.Send(ctx, registry.APIKeyCreateTopics, 7, req, resp); err != nil {
		return nil, err
	}
	out := make([]CreateTopicResult, 0, len(resp.Topics))
	for _, t := range resp.Topics {
		out = append(out, CreateTopicResult{Name: t.Name, ErrorCode: kerrors.ProtocolCode(t.ErrorCode), ErrorMessage: t.ErrorMessage})
	}
	return out, nil
}

// CreateTopicResult is one per-topic outcome from CreateTopics/DeleteTopics.
type CreateTopicResult struct {
	Name         string
	ErrorCode    kerrors.ProtocolCode
	ErrorMessage *string
}

// DeleteTopics deletes the named topics against the controller.
func (a *Admin) DeleteTopics(ctx context.Context, names []string, timeoutMs int32) ([]CreateTopicResult, error) {
	c, err := a.controller(ctx)
	if err != nil {
		return nil, err
	}
	req := &registry.DeleteTopicsRequest{TopicNames: names, TimeoutMs: timeoutMs}
	resp := &registry.DeleteTopicsResponse{}
	if err := c.Send(ctx, registry.APIKeyDeleteTopics, 6, req, resp); err != nil {
		return nil, err
	}
	out := make([]CreateTopicResult, 0, len(resp.Responses))
	for _, t := range resp.Responses {
		out = append(out, CreateTopicResult{Name: t.Name, ErrorCode: kerrors.ProtocolCode(t.ErrorCode), ErrorMessage: t.ErrorMessage})
	}
	return out, nil
}

// TopicConfig is one resolved config entry from DescribeConfigs.
type TopicConfig struct {
	Name      string
	Value     *string
	ReadOnly  bool
	IsDefault bool
	Sensitive bool
}

// DescribeConfigs describes the live configuration of the named topics.
// Unlike CreateTopics/DeleteTopics this can be answered by any broker, so it
// is routed through the pool's first-available node rather than the
// controller.
func (a *Admin) DescribeConfigs(ctx context.Context, topics []string) (map[string][]TopicConfig, error) {
	c, err := a.client.Pool().GetFirstAvailable(ctx, a.client.bootstrapNodeIDs())
	if err != nil {
		return nil, err
	}
	req := &registry.DescribeConfigsRequest{}
	for _, t := range topics {
		req.Resources = append(req.Resources, registry.DescribeConfigsResource{
			ResourceType: registry.ResourceTypeTopic,
			ResourceName: t,
		})
	}
	resp := &registry.DescribeConfigsResponse{}
	if err := c.Send(ctx, registry.APIKeyDescribeConfigs, 4, req, resp); err != nil {
		return nil, err
	}
	out := make(map[string][]TopicConfig, len(resp.Results))
	for _, res := range resp.Results {
		if res.ErrorCode != 0 {
			return nil, kerrors.NewProtocolError(kerrors.ProtocolCode(res.ErrorCode), "DescribeConfigs "+res.ResourceName)
		}
		configs := make([]TopicConfig, 0, len(res.Configs))
		for _, e := range res.Configs {
			configs = append(configs, TopicConfig{Name: e.Name, Value: e.Value, ReadOnly: e.ReadOnly, IsDefault: e.IsDefault, Sensitive: e.Sensitive})
		}
		out[res.ResourceName] = configs
	}
	return out, nil
}

// BrokerInfo is one member of the cluster's broker list, as seen by
// DescribeCluster.
type BrokerInfo struct {
	NodeID int32
	Addr   string
}

// ClusterInfo is the reply to DescribeCluster.
type ClusterInfo struct {
	ControllerID int32
	Brokers      []BrokerInfo
}

// DescribeCluster refreshes the shared metadata cache (one Metadata request
// for all topics) and then reports the broker topology from the freshly
// published snapshot.
func (a *Admin) DescribeCluster(ctx context.Context) (ClusterInfo, error) {
	if err := a.client.Metadata().Refresh(ctx, nil); err != nil {
		return ClusterInfo{}, err
	}
	snap := a.client.Metadata().Current()
	info := ClusterInfo{ControllerID: snap.ControllerID}
	for id, node := range snap.Brokers {
		info.Brokers = append(info.Brokers, BrokerInfo{NodeID: id, Addr: node.Addr})
	}
	return info, nil
}
