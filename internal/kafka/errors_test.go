package kafka

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/twmb/franz-go/pkg/kerr"
)

func TestClassify(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want Kind
	}{
		{name: "deadline exceeded", err: context.DeadlineExceeded, want: KindTimeout},
		{name: "wrapped deadline", err: fmt.Errorf("poll: %w", context.DeadlineExceeded), want: KindTimeout},
		{name: "request timed out", err: kerr.RequestTimedOut, want: KindTimeout},
		{name: "sasl failed", err: kerr.SaslAuthenticationFailed, want: KindAuthentication},
		{name: "unsupported mechanism", err: kerr.UnsupportedSaslMechanism, want: KindAuthentication},
		{name: "topic acl", err: kerr.TopicAuthorizationFailed, want: KindAuthorization},
		{name: "cluster acl", err: kerr.ClusterAuthorizationFailed, want: KindAuthorization},
		{name: "group acl", err: kerr.GroupAuthorizationFailed, want: KindAuthorization},
		{name: "unknown topic", err: kerr.UnknownTopicOrPartition, want: KindResourceNotFound},
		{name: "unknown group", err: kerr.GroupIDNotFound, want: KindResourceNotFound},
		{name: "anything else", err: errors.New("connection refused"), want: KindConnection},
		{name: "wrapped broker error", err: fmt.Errorf("describe: %w", kerr.UnknownTopicOrPartition), want: KindResourceNotFound},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			oe := classify("local", "list_topics", tc.err)
			if oe.Kind != tc.want {
				t.Fatalf("classify(%v) kind = %s, want %s", tc.err, oe.Kind, tc.want)
			}
			if oe.Cluster != "local" || oe.Op != "list_topics" {
				t.Fatalf("context lost: %+v", oe)
			}
			if !errors.Is(oe, tc.err) {
				t.Fatalf("underlying error not wrapped")
			}
		})
	}
}

func TestIsKind(t *testing.T) {
	err := clusterNotFound("local", "list_topics")

	if !IsKind(err, KindClusterNotFound) {
		t.Fatal("IsKind missed a direct match")
	}
	if IsKind(err, KindTimeout) {
		t.Fatal("IsKind matched the wrong kind")
	}

	wrapped := fmt.Errorf("handler: %w", err)
	if !IsKind(wrapped, KindClusterNotFound) {
		t.Fatal("IsKind missed a wrapped match")
	}

	if IsKind(errors.New("plain"), KindConnection) {
		t.Fatal("IsKind matched a non-taxonomy error")
	}
}

func TestKindString(t *testing.T) {
	cases := map[Kind]string{
		KindClusterNotFound:  "cluster_not_found",
		KindResourceNotFound: "resource_not_found",
		KindTimeout:          "timeout",
		KindConnection:       "connection_failure",
		KindAuthentication:   "authentication_failure",
		KindAuthorization:    "authorization_failure",
		KindValidation:       "validation_error",
	}

	for kind, want := range cases {
		if got := kind.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", kind, got, want)
		}
	}
}
