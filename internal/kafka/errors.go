package kafka

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/twmb/franz-go/pkg/kerr"
	"github.com/twmb/franz-go/pkg/kgo"
)

// Kind tags an Error with the failure category callers branch on.
type Kind int

const (
	KindClusterNotFound Kind = iota
	KindResourceNotFound
	KindTimeout
	KindConnection
	KindAuthentication
	KindAuthorization
	KindValidation
)

// String returns the stable name used in logs and metrics labels.
func (k Kind) String() string {
	switch k {
	case KindClusterNotFound:
		return "cluster_not_found"
	case KindResourceNotFound:
		return "resource_not_found"
	case KindTimeout:
		return "timeout"
	case KindConnection:
		return "connection_failure"
	case KindAuthentication:
		return "authentication_failure"
	case KindAuthorization:
		return "authorization_failure"
	case KindValidation:
		return "validation_error"
	default:
		return "unknown"
	}
}

// Error is the typed failure every remote operation returns. The underlying
// transport error stays wrapped; callers above the gateway branch on Kind
// and never on franz-go types.
type Error struct {
	Kind    Kind
	Cluster string
	Op      string
	Err     error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: cluster %q: %s", e.Op, e.Cluster, e.Kind)
	}
	return fmt.Sprintf("%s: cluster %q: %s: %v", e.Op, e.Cluster, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// IsKind reports whether err is a *Error of the given kind.
func IsKind(err error, kind Kind) bool {
	var oe *Error
	return errors.As(err, &oe) && oe.Kind == kind
}

func clusterNotFound(cluster, op string) *Error {
	return &Error{Kind: KindClusterNotFound, Cluster: cluster, Op: op}
}

func validationError(cluster, op string, err error) *Error {
	return &Error{Kind: KindValidation, Cluster: cluster, Op: op, Err: err}
}

// isAuthenticationErr matches SASL handshake and session failures.
func isAuthenticationErr(err error) bool {
	var ke *kerr.Error
	if errors.As(err, &ke) {
		switch ke {
		case kerr.SaslAuthenticationFailed,
			kerr.UnsupportedSaslMechanism,
			kerr.IllegalSaslState:
			return true
		}
	}

	var eof *kgo.ErrFirstReadEOF
	return errors.As(err, &eof)
}

// isAuthorizationErr matches ACL rejections on otherwise-healthy sessions.
func isAuthorizationErr(err error) bool {
	var ke *kerr.Error
	if errors.As(err, &ke) {
		switch ke {
		case kerr.TopicAuthorizationFailed,
			kerr.ClusterAuthorizationFailed,
			kerr.GroupAuthorizationFailed,
			kerr.TransactionalIDAuthorizationFailed:
			return true
		}
	}

	return false
}

// isNotFoundErr matches a topic or group that is absent on the cluster.
func isNotFoundErr(err error) bool {
	var ke *kerr.Error
	if errors.As(err, &ke) {
		switch ke {
		case kerr.UnknownTopicOrPartition,
			kerr.UnknownTopicID,
			kerr.GroupIDNotFound:
			return true
		}
	}

	return false
}

func isTimeoutErr(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	var ke *kerr.Error
	if errors.As(err, &ke) {
		return ke == kerr.RequestTimedOut
	}

	var ne net.Error
	return errors.As(err, &ne) && ne.Timeout()
}

// classify maps a raw remote failure into the error taxonomy. Anything not
// recognized as a deadline, auth, or not-found condition is a connection
// failure.
func classify(cluster, op string, err error) *Error {
	kind := KindConnection
	switch {
	case isTimeoutErr(err):
		kind = KindTimeout
	case isAuthenticationErr(err):
		kind = KindAuthentication
	case isAuthorizationErr(err):
		kind = KindAuthorization
	case isNotFoundErr(err):
		kind = KindResourceNotFound
	}

	return &Error{Kind: kind, Cluster: cluster, Op: op, Err: err}
}
