package kafka

// PartitionDetail describes one partition of a topic.
type PartitionDetail struct {
	Partition int32   `json:"partition"`
	Leader    int32   `json:"leader"`
	Replicas  []int32 `json:"replicas"`
	ISR       []int32 `json:"isr"`
}

// TopicDetail describes a topic with its partition layout.
type TopicDetail struct {
	Name              string            `json:"name"`
	Internal          bool              `json:"internal"`
	Partitions        []PartitionDetail `json:"partitions"`
	ReplicationFactor int               `json:"replication_factor"`
}

// ConfigEntry is a single configuration key of a topic or broker.
// Value is nil for sensitive entries the broker redacts.
type ConfigEntry struct {
	Key       string  `json:"key"`
	Value     *string `json:"value"`
	Source    string  `json:"source"`
	Sensitive bool    `json:"sensitive"`
}

// GroupListing is the summary row returned when listing consumer groups.
type GroupListing struct {
	GroupID      string `json:"group_id"`
	State        string `json:"state"`
	ProtocolType string `json:"protocol_type"`
}

// MemberAssignment lists the partitions of one topic assigned to a member.
type MemberAssignment struct {
	Topic      string  `json:"topic"`
	Partitions []int32 `json:"partitions"`
}

// GroupMember is one member of a described consumer group together with
// its current partition assignment.
type GroupMember struct {
	MemberID   string             `json:"member_id"`
	ClientID   string             `json:"client_id"`
	ClientHost string             `json:"client_host"`
	Assigned   []MemberAssignment `json:"assigned"`
}

// GroupDetail is the full description of a consumer group.
type GroupDetail struct {
	GroupID     string        `json:"group_id"`
	State       string        `json:"state"`
	Coordinator int32         `json:"coordinator"`
	Members     []GroupMember `json:"members"`
}

// CommittedOffset is one committed offset of a consumer group.
type CommittedOffset struct {
	Topic     string `json:"topic"`
	Partition int32  `json:"partition"`
	Offset    int64  `json:"offset"`
}

// PartitionOffsets carries the earliest and latest offset of one partition.
type PartitionOffsets struct {
	Topic     string `json:"topic"`
	Partition int32  `json:"partition"`
	Start     int64  `json:"start"`
	End       int64  `json:"end"`
}

// BrokerDetail describes one broker of a cluster.
type BrokerDetail struct {
	ID         int32  `json:"id"`
	Host       string `json:"host"`
	Port       int32  `json:"port"`
	Rack       string `json:"rack"`
	Controller bool   `json:"controller"`
}

// ClusterDetail is the result of describing a cluster.
type ClusterDetail struct {
	ClusterID  string         `json:"cluster_id"`
	Controller int32          `json:"controller"`
	Brokers    []BrokerDetail `json:"brokers"`
}
