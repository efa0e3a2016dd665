package kafka

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/baekenough/kafka-lens-sub000/internal/metrics"
	"github.com/twmb/franz-go/pkg/kadm"
)

// DefaultAdminTimeout bounds every administrative metadata call unless the
// gateway is configured otherwise.
const DefaultAdminTimeout = 60 * time.Second

// Gateway executes administrative broker queries with a bounded timeout and
// maps every failure into the error taxonomy. It never retries; retry
// policy belongs to the caller. The gateway is stateless beyond the
// registry it reads handles from.
type Gateway struct {
	registry *Registry
	timeout  time.Duration
}

// NewGateway creates a gateway on top of the registry. A non-positive
// timeout falls back to DefaultAdminTimeout.
func NewGateway(registry *Registry, timeout time.Duration) *Gateway {
	if timeout <= 0 {
		timeout = DefaultAdminTimeout
	}
	return &Gateway{registry: registry, timeout: timeout}
}

// exec resolves the cluster handle and runs one remote call under the
// gateway timeout, recording the outcome. Failures come back classified.
func (g *Gateway) exec(ctx context.Context, clusterID, op string, fn func(ctx context.Context, admin *kadm.Client) error) error {
	handle, err := g.registry.GetOrCreate(ctx, clusterID)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	start := time.Now()
	err = fn(ctx, handle.Admin)
	elapsed := time.Since(start)

	if err != nil {
		oe := classify(clusterID, op, err)
		metrics.ObserveRemoteOperation(clusterID, op, oe.Kind.String(), elapsed)
		slog.Warn("remote operation failed",
			"cluster", clusterID,
			"operation", op,
			"kind", oe.Kind.String(),
			"error", err,
		)
		return oe
	}

	metrics.ObserveRemoteOperation(clusterID, op, "ok", elapsed)
	return nil
}

// ListTopics returns the sorted topic names of a cluster. Internal topics
// are omitted unless includeInternal is set.
func (g *Gateway) ListTopics(ctx context.Context, clusterID string, includeInternal bool) ([]string, error) {
	var names []string
	err := g.exec(ctx, clusterID, "list_topics", func(ctx context.Context, admin *kadm.Client) error {
		var (
			details kadm.TopicDetails
			listErr error
		)
		if includeInternal {
			details, listErr = admin.ListTopicsWithInternal(ctx)
		} else {
			details, listErr = admin.ListTopics(ctx)
		}
		if listErr != nil {
			return listErr
		}
		names = details.Names()
		return nil
	})
	if err != nil {
		return nil, err
	}

	sort.Strings(names)
	return names, nil
}

// DescribeTopics returns partition, leader, replica, and ISR detail for the
// named topics. An unknown topic surfaces as ResourceNotFound.
func (g *Gateway) DescribeTopics(ctx context.Context, clusterID string, topics ...string) ([]TopicDetail, error) {
	var out []TopicDetail
	err := g.exec(ctx, clusterID, "describe_topics", func(ctx context.Context, admin *kadm.Client) error {
		details, listErr := admin.ListTopicsWithInternal(ctx, topics...)
		if listErr != nil {
			return listErr
		}

		out = make([]TopicDetail, 0, len(details))
		for _, td := range details.Sorted() {
			if td.Err != nil {
				return td.Err
			}

			detail := TopicDetail{
				Name:       td.Topic,
				Internal:   td.IsInternal,
				Partitions: make([]PartitionDetail, 0, len(td.Partitions)),
			}
			for _, pd := range td.Partitions.Sorted() {
				detail.Partitions = append(detail.Partitions, PartitionDetail{
					Partition: pd.Partition,
					Leader:    pd.Leader,
					Replicas:  pd.Replicas,
					ISR:       pd.ISR,
				})
			}
			if len(detail.Partitions) > 0 {
				detail.ReplicationFactor = len(detail.Partitions[0].Replicas)
			}
			out = append(out, detail)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DescribeTopicConfigs returns the configuration entries of one topic.
func (g *Gateway) DescribeTopicConfigs(ctx context.Context, clusterID, topic string) ([]ConfigEntry, error) {
	var out []ConfigEntry
	err := g.exec(ctx, clusterID, "describe_topic_configs", func(ctx context.Context, admin *kadm.Client) error {
		configs, descErr := admin.DescribeTopicConfigs(ctx, topic)
		if descErr != nil {
			return descErr
		}

		rc, descErr := configs.On(topic, nil)
		if descErr != nil {
			return descErr
		}
		if rc.Err != nil {
			return rc.Err
		}

		out = convertConfigs(rc.Configs)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListGroups returns the consumer groups known to the cluster, sorted by id.
func (g *Gateway) ListGroups(ctx context.Context, clusterID string) ([]GroupListing, error) {
	var out []GroupListing
	err := g.exec(ctx, clusterID, "list_groups", func(ctx context.Context, admin *kadm.Client) error {
		groups, listErr := admin.ListGroups(ctx)
		if listErr != nil {
			return listErr
		}

		out = make([]GroupListing, 0, len(groups))
		for _, lg := range groups.Sorted() {
			out = append(out, GroupListing{
				GroupID:      lg.Group,
				State:        lg.State,
				ProtocolType: lg.ProtocolType,
			})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DescribeGroups returns state, coordinator, and member assignments for the
// named consumer groups.
func (g *Gateway) DescribeGroups(ctx context.Context, clusterID string, groups ...string) ([]GroupDetail, error) {
	var out []GroupDetail
	err := g.exec(ctx, clusterID, "describe_groups", func(ctx context.Context, admin *kadm.Client) error {
		described, descErr := admin.DescribeGroups(ctx, groups...)
		if descErr != nil {
			return descErr
		}

		out = make([]GroupDetail, 0, len(described))
		for _, dg := range described.Sorted() {
			if dg.Err != nil {
				return dg.Err
			}

			detail := GroupDetail{
				GroupID:     dg.Group,
				State:       dg.State,
				Coordinator: dg.Coordinator.NodeID,
				Members:     make([]GroupMember, 0, len(dg.Members)),
			}
			for _, m := range dg.Members {
				member := GroupMember{
					MemberID:   m.MemberID,
					ClientID:   m.ClientID,
					ClientHost: m.ClientHost,
				}
				if assigned, ok := m.Assigned.AsConsumer(); ok {
					for _, t := range assigned.Topics {
						partitions := append([]int32(nil), t.Partitions...)
						sort.Slice(partitions, func(i, j int) bool { return partitions[i] < partitions[j] })
						member.Assigned = append(member.Assigned, MemberAssignment{
							Topic:      t.Topic,
							Partitions: partitions,
						})
					}
					sort.Slice(member.Assigned, func(i, j int) bool {
						return member.Assigned[i].Topic < member.Assigned[j].Topic
					})
				}
				detail.Members = append(detail.Members, member)
			}
			sort.Slice(detail.Members, func(i, j int) bool {
				return detail.Members[i].MemberID < detail.Members[j].MemberID
			})
			out = append(out, detail)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// FetchGroupOffsets returns the committed offsets of one consumer group,
// ordered by topic then partition.
func (g *Gateway) FetchGroupOffsets(ctx context.Context, clusterID, group string) ([]CommittedOffset, error) {
	var out []CommittedOffset
	err := g.exec(ctx, clusterID, "fetch_group_offsets", func(ctx context.Context, admin *kadm.Client) error {
		responses, fetchErr := admin.FetchOffsets(ctx, group)
		if fetchErr != nil {
			return fetchErr
		}
		if fetchErr = responses.Error(); fetchErr != nil {
			return fetchErr
		}

		out = out[:0]
		responses.Each(func(resp kadm.OffsetResponse) {
			out = append(out, CommittedOffset{
				Topic:     resp.Topic,
				Partition: resp.Partition,
				Offset:    resp.At,
			})
		})
		sortCommitted(out)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// ListPartitionOffsets returns the earliest and latest offset of every
// partition of the given topics, ordered by topic then partition.
func (g *Gateway) ListPartitionOffsets(ctx context.Context, clusterID string, topics ...string) ([]PartitionOffsets, error) {
	var out []PartitionOffsets
	err := g.exec(ctx, clusterID, "list_offsets", func(ctx context.Context, admin *kadm.Client) error {
		starts, listErr := admin.ListStartOffsets(ctx, topics...)
		if listErr != nil {
			return listErr
		}
		if listErr = starts.Error(); listErr != nil {
			return listErr
		}

		ends, listErr := admin.ListEndOffsets(ctx, topics...)
		if listErr != nil {
			return listErr
		}
		if listErr = ends.Error(); listErr != nil {
			return listErr
		}

		out = out[:0]
		ends.Each(func(end kadm.ListedOffset) {
			po := PartitionOffsets{
				Topic:     end.Topic,
				Partition: end.Partition,
				End:       end.Offset,
			}
			if start, ok := starts.Lookup(end.Topic, end.Partition); ok {
				po.Start = start.Offset
			}
			out = append(out, po)
		})
		sort.Slice(out, func(i, j int) bool {
			if out[i].Topic != out[j].Topic {
				return out[i].Topic < out[j].Topic
			}
			return out[i].Partition < out[j].Partition
		})
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DescribeCluster returns the broker list and current controller.
func (g *Gateway) DescribeCluster(ctx context.Context, clusterID string) (*ClusterDetail, error) {
	var out *ClusterDetail
	err := g.exec(ctx, clusterID, "describe_cluster", func(ctx context.Context, admin *kadm.Client) error {
		meta, metaErr := admin.Metadata(ctx)
		if metaErr != nil {
			return metaErr
		}

		detail := &ClusterDetail{
			ClusterID:  meta.Cluster,
			Controller: meta.Controller,
			Brokers:    make([]BrokerDetail, 0, len(meta.Brokers)),
		}
		for _, broker := range meta.Brokers {
			rack := ""
			if broker.Rack != nil {
				rack = *broker.Rack
			}
			detail.Brokers = append(detail.Brokers, BrokerDetail{
				ID:         broker.NodeID,
				Host:       broker.Host,
				Port:       broker.Port,
				Rack:       rack,
				Controller: broker.NodeID == meta.Controller,
			})
		}
		sort.Slice(detail.Brokers, func(i, j int) bool {
			return detail.Brokers[i].ID < detail.Brokers[j].ID
		})
		out = detail
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

// DescribeBrokerConfigs returns the configuration entries of one broker.
func (g *Gateway) DescribeBrokerConfigs(ctx context.Context, clusterID string, brokerID int32) ([]ConfigEntry, error) {
	var out []ConfigEntry
	err := g.exec(ctx, clusterID, "describe_broker_configs", func(ctx context.Context, admin *kadm.Client) error {
		configs, descErr := admin.DescribeBrokerConfigs(ctx, brokerID)
		if descErr != nil {
			return descErr
		}

		rc, descErr := configs.On(fmt.Sprintf("%d", brokerID), nil)
		if descErr != nil {
			return descErr
		}
		if rc.Err != nil {
			return rc.Err
		}

		out = convertConfigs(rc.Configs)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func convertConfigs(configs []kadm.Config) []ConfigEntry {
	out := make([]ConfigEntry, 0, len(configs))
	for _, c := range configs {
		out = append(out, ConfigEntry{
			Key:       c.Key,
			Value:     c.Value,
			Source:    c.Source.String(),
			Sensitive: c.Sensitive,
		})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out
}

func sortCommitted(offsets []CommittedOffset) {
	sort.Slice(offsets, func(i, j int) bool {
		if offsets[i].Topic != offsets[j].Topic {
			return offsets[i].Topic < offsets[j].Topic
		}
		return offsets[i].Partition < offsets[j].Partition
	})
}
