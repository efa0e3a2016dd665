package api

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/baekenough/kafka-lens-sub000/internal/kafka"
	"github.com/go-chi/chi/v5"
)

// Metadata is the slice of the operation gateway the handlers consume.
type Metadata interface {
	ListTopics(ctx context.Context, clusterID string, includeInternal bool) ([]string, error)
	DescribeTopics(ctx context.Context, clusterID string, topics ...string) ([]kafka.TopicDetail, error)
	DescribeTopicConfigs(ctx context.Context, clusterID, topic string) ([]kafka.ConfigEntry, error)
	ListGroups(ctx context.Context, clusterID string) ([]kafka.GroupListing, error)
	DescribeGroups(ctx context.Context, clusterID string, groups ...string) ([]kafka.GroupDetail, error)
	GroupLag(ctx context.Context, clusterID, group string) (*kafka.GroupLagSummary, error)
	DescribeCluster(ctx context.Context, clusterID string) (*kafka.ClusterDetail, error)
	DescribeBrokerConfigs(ctx context.Context, clusterID string, brokerID int32) ([]kafka.ConfigEntry, error)
}

// MessageFetcher is the sampling engine surface.
type MessageFetcher interface {
	Fetch(ctx context.Context, clusterID string, req kafka.FetchRequest) ([]kafka.SampledMessage, error)
}

// Connections is the registry surface the handlers consume.
type Connections interface {
	TestConnection(ctx context.Context, clusterID string) (bool, string)
	Cached(clusterID string) bool
}

// Handler serves the dashboard-facing read-only API.
type Handler struct {
	source      kafka.DescriptorSource
	connections Connections
	gateway     Metadata
	sampler     MessageFetcher
}

// NewHandler wires the handler to the core components.
func NewHandler(source kafka.DescriptorSource, connections Connections, gateway Metadata, sampler MessageFetcher) *Handler {
	return &Handler{
		source:      source,
		connections: connections,
		gateway:     gateway,
		sampler:     sampler,
	}
}

type clusterItem struct {
	ID               string   `json:"id"`
	Name             string   `json:"name"`
	BootstrapServers []string `json:"bootstrap_servers"`
	Protocol         string   `json:"protocol"`
	Connected        bool     `json:"connected"`
}

func (h *Handler) listClusters(w http.ResponseWriter, r *http.Request) {
	descriptors := h.source.All()
	items := make([]clusterItem, 0, len(descriptors))
	for _, desc := range descriptors {
		items = append(items, clusterItem{
			ID:               desc.ID,
			Name:             desc.Name,
			BootstrapServers: desc.BootstrapServers,
			Protocol:         string(desc.Security.Protocol),
			Connected:        h.connections.Cached(desc.ID),
		})
	}
	writeSuccess(w, http.StatusOK, items)
}

type connectionTestResult struct {
	ClusterID string `json:"cluster_id"`
	OK        bool   `json:"ok"`
	Message   string `json:"message,omitempty"`
}

func (h *Handler) testConnection(w http.ResponseWriter, r *http.Request) {
	clusterID := chi.URLParam(r, "cluster")
	ok, message := h.connections.TestConnection(r.Context(), clusterID)
	writeSuccess(w, http.StatusOK, connectionTestResult{
		ClusterID: clusterID,
		OK:        ok,
		Message:   message,
	})
}

func (h *Handler) describeCluster(w http.ResponseWriter, r *http.Request) {
	detail, err := h.gateway.DescribeCluster(r.Context(), chi.URLParam(r, "cluster"))
	if err != nil {
		writeKafkaError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, detail)
}

func (h *Handler) describeBrokerConfigs(w http.ResponseWriter, r *http.Request) {
	brokerID, err := strconv.ParseInt(chi.URLParam(r, "broker"), 10, 32)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "broker id must be an integer")
		return
	}

	entries, gerr := h.gateway.DescribeBrokerConfigs(r.Context(), chi.URLParam(r, "cluster"), int32(brokerID))
	if gerr != nil {
		writeKafkaError(w, gerr)
		return
	}
	writeSuccess(w, http.StatusOK, entries)
}

func (h *Handler) listTopics(w http.ResponseWriter, r *http.Request) {
	includeInternal := strings.EqualFold(r.URL.Query().Get("internal"), "true")
	names, err := h.gateway.ListTopics(r.Context(), chi.URLParam(r, "cluster"), includeInternal)
	if err != nil {
		writeKafkaError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, names)
}

func (h *Handler) describeTopic(w http.ResponseWriter, r *http.Request) {
	details, err := h.gateway.DescribeTopics(r.Context(), chi.URLParam(r, "cluster"), chi.URLParam(r, "topic"))
	if err != nil {
		writeKafkaError(w, err)
		return
	}
	if len(details) == 0 {
		writeError(w, http.StatusNotFound, "resource_not_found", "topic not found")
		return
	}
	writeSuccess(w, http.StatusOK, details[0])
}

func (h *Handler) describeTopicConfigs(w http.ResponseWriter, r *http.Request) {
	entries, err := h.gateway.DescribeTopicConfigs(r.Context(), chi.URLParam(r, "cluster"), chi.URLParam(r, "topic"))
	if err != nil {
		writeKafkaError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, entries)
}

func (h *Handler) sampleMessages(w http.ResponseWriter, r *http.Request) {
	partition, err := strconv.ParseInt(chi.URLParam(r, "partition"), 10, 32)
	if err != nil {
		writeError(w, http.StatusBadRequest, "validation_error", "partition must be an integer")
		return
	}

	req := kafka.FetchRequest{
		Topic:     chi.URLParam(r, "topic"),
		Partition: int32(partition),
		Offset:    parseInt64Default(r.URL.Query().Get("offset"), 0),
		Limit:     parseIntDefault(r.URL.Query().Get("limit"), 0),
	}

	messages, ferr := h.sampler.Fetch(r.Context(), chi.URLParam(r, "cluster"), req)
	if ferr != nil {
		writeKafkaError(w, ferr)
		return
	}
	writeSuccess(w, http.StatusOK, messages)
}

func (h *Handler) listGroups(w http.ResponseWriter, r *http.Request) {
	groups, err := h.gateway.ListGroups(r.Context(), chi.URLParam(r, "cluster"))
	if err != nil {
		writeKafkaError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, groups)
}

func (h *Handler) describeGroup(w http.ResponseWriter, r *http.Request) {
	details, err := h.gateway.DescribeGroups(r.Context(), chi.URLParam(r, "cluster"), chi.URLParam(r, "group"))
	if err != nil {
		writeKafkaError(w, err)
		return
	}
	if len(details) == 0 {
		writeError(w, http.StatusNotFound, "resource_not_found", "consumer group not found")
		return
	}
	writeSuccess(w, http.StatusOK, details[0])
}

func (h *Handler) groupLag(w http.ResponseWriter, r *http.Request) {
	summary, err := h.gateway.GroupLag(r.Context(), chi.URLParam(r, "cluster"), chi.URLParam(r, "group"))
	if err != nil {
		writeKafkaError(w, err)
		return
	}
	writeSuccess(w, http.StatusOK, summary)
}

func parseIntDefault(raw string, def int) int {
	if v, err := strconv.Atoi(strings.TrimSpace(raw)); err == nil {
		return v
	}
	return def
}

func parseInt64Default(raw string, def int64) int64 {
	if v, err := strconv.ParseInt(strings.TrimSpace(raw), 10, 64); err == nil {
		return v
	}
	return def
}
