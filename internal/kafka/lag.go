package kafka

import (
	"context"
	"sort"
)

// LagStatus grades how far behind a partition is.
type LagStatus string

const (
	LagNormal   LagStatus = "normal"
	LagWarning  LagStatus = "warning"
	LagCritical LagStatus = "critical"
)

const (
	lagWarningThreshold  = 1000
	lagCriticalThreshold = 10000
)

// PartitionLag is the computed lag of one partition for one group.
type PartitionLag struct {
	GroupID   string    `json:"group_id"`
	Topic     string    `json:"topic"`
	Partition int32     `json:"partition"`
	Committed int64     `json:"committed"`
	End       int64     `json:"end"`
	Lag       int64     `json:"lag"`
	Status    LagStatus `json:"status"`
}

// TopicLag is the per-topic rollup inside a group summary.
type TopicLag struct {
	Topic      string `json:"topic"`
	Lag        int64  `json:"lag"`
	Partitions int    `json:"partitions"`
}

// GroupLagSummary aggregates lag across every partition a group has
// committed offsets for. TotalLag always equals the sum of the partition
// lags, and no partition lag is negative.
type GroupLagSummary struct {
	GroupID    string         `json:"group_id"`
	TotalLag   int64          `json:"total_lag"`
	Status     LagStatus      `json:"status"`
	Partitions []PartitionLag `json:"partitions"`
	Topics     []TopicLag     `json:"topics"`
}

// Lag returns how far a committed offset trails an end offset. A stale or
// invalid commit past the end offset reads as zero, never negative.
func Lag(committed, end int64) int64 {
	if committed >= end {
		return 0
	}
	return end - committed
}

// StatusForLag grades a lag figure against the fixed thresholds.
func StatusForLag(lag int64) LagStatus {
	switch {
	case lag >= lagCriticalThreshold:
		return LagCritical
	case lag >= lagWarningThreshold:
		return LagWarning
	default:
		return LagNormal
	}
}

// GroupSummary computes lag for every partition present in the committed
// set. Partitions the group never committed for are not reported: no
// commit means nothing to measure. An empty committed set yields a valid
// summary with zero lag, which is what a Dead or never-consumed group
// looks like.
func GroupSummary(groupID string, committed []CommittedOffset, ends []PartitionOffsets) GroupLagSummary {
	endByPartition := make(map[string]map[int32]int64, len(ends))
	for _, po := range ends {
		if _, ok := endByPartition[po.Topic]; !ok {
			endByPartition[po.Topic] = make(map[int32]int64)
		}
		endByPartition[po.Topic][po.Partition] = po.End
	}

	summary := GroupLagSummary{
		GroupID:    groupID,
		Partitions: make([]PartitionLag, 0, len(committed)),
	}

	topicTotals := make(map[string]*TopicLag)
	for _, co := range committed {
		end := endByPartition[co.Topic][co.Partition]
		lag := Lag(co.Offset, end)

		summary.Partitions = append(summary.Partitions, PartitionLag{
			GroupID:   groupID,
			Topic:     co.Topic,
			Partition: co.Partition,
			Committed: co.Offset,
			End:       end,
			Lag:       lag,
			Status:    StatusForLag(lag),
		})
		summary.TotalLag += lag

		tl, ok := topicTotals[co.Topic]
		if !ok {
			tl = &TopicLag{Topic: co.Topic}
			topicTotals[co.Topic] = tl
		}
		tl.Lag += lag
		tl.Partitions++
	}

	sort.Slice(summary.Partitions, func(i, j int) bool {
		if summary.Partitions[i].Topic != summary.Partitions[j].Topic {
			return summary.Partitions[i].Topic < summary.Partitions[j].Topic
		}
		return summary.Partitions[i].Partition < summary.Partitions[j].Partition
	})

	summary.Topics = make([]TopicLag, 0, len(topicTotals))
	for _, tl := range topicTotals {
		summary.Topics = append(summary.Topics, *tl)
	}
	sort.Slice(summary.Topics, func(i, j int) bool {
		return summary.Topics[i].Topic < summary.Topics[j].Topic
	})

	summary.Status = StatusForLag(summary.TotalLag)
	return summary
}

// GroupLag fetches a group's committed offsets and the end offsets of the
// topics involved, then reduces them to a lag summary. Both fetches run
// through the gateway; the reduction itself is pure.
func (g *Gateway) GroupLag(ctx context.Context, clusterID, group string) (*GroupLagSummary, error) {
	committed, err := g.FetchGroupOffsets(ctx, clusterID, group)
	if err != nil {
		return nil, err
	}

	if len(committed) == 0 {
		summary := GroupSummary(group, nil, nil)
		return &summary, nil
	}

	topicSet := make(map[string]struct{})
	for _, co := range committed {
		topicSet[co.Topic] = struct{}{}
	}
	topics := make([]string, 0, len(topicSet))
	for topic := range topicSet {
		topics = append(topics, topic)
	}
	sort.Strings(topics)

	ends, err := g.ListPartitionOffsets(ctx, clusterID, topics...)
	if err != nil {
		return nil, err
	}

	summary := GroupSummary(group, committed, ends)
	return &summary, nil
}
