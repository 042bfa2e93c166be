package authz

import (
	"context"
	"log/slog"

	"github.com/engram-dev/engram/pkg/api"
	"github.com/engram-dev/engram/pkg/observability"
	"github.com/engram-dev/engram/pkg/storage"
)

// Category classifies a request path; it selects which authorization
// rule applies. Category is a pure function of the path shape, derived
// by the routes package, never of stored data.
type Category string

const (
	// CategoryAdmin covers tenant-management paths.
	CategoryAdmin Category = "admin"

	// CategorySelf covers a tenant inspecting its own registry entry.
	CategorySelf Category = "gpt-self"

	// CategoryMemory covers per-tenant memory documents.
	CategoryMemory Category = "memory"

	// CategoryFile covers per-tenant files.
	CategoryFile Category = "file"

	// CategoryInvalid marks paths that match no known template.
	CategoryInvalid Category = "invalid"
)

// Operation is one of the fixed set of actions a request can perform.
// Anything outside this set is never authorized.
type Operation string

const (
	OpRead   Operation = "read"
	OpWrite  Operation = "write"
	OpDelete Operation = "delete"
)

// OperationFromMethod maps an HTTP method onto the operation set.
// Unsupported methods map to the empty Operation, which Decide denies.
func OperationFromMethod(method string) Operation {
	switch method {
	case "GET", "HEAD":
		return OpRead
	case "POST", "PUT":
		return OpWrite
	case "DELETE":
		return OpDelete
	default:
		return ""
	}
}

// Decide returns the access decision for one request. It is total and
// stateless: the same inputs always yield the same result.
//
// The rules are checked in order, first match wins:
//  1. an operation outside the enumerated set is denied
//  2. admin paths: allowed iff the requester's role is admin
//  3. self paths: allowed iff the requester is the resource owner
//  4. memory and file paths: the owner may do anything; non-owners may
//     never delete; non-owners may read and write iff the owner appears
//     in their shared-memory grants
//  5. every other category is denied
func Decide(category Category, op Operation, requesterID, ownerID string, role api.Role, sharedMemories []string) bool {
	switch op {
	case OpRead, OpWrite, OpDelete:
	default:
		return false
	}

	switch category {
	case CategoryAdmin:
		return role == api.RoleAdmin

	case CategorySelf:
		return requesterID == ownerID

	case CategoryMemory, CategoryFile:
		if requesterID == ownerID {
			return true
		}
		if op == OpDelete {
			return false
		}
		for _, id := range sharedMemories {
			if id == ownerID {
				return true
			}
		}
		return false

	default:
		return false
	}
}

// Engine evaluates access decisions against a freshly loaded tenant
// registry. It holds no per-request state; the registry is re-read on
// every call so sharing and role changes apply immediately.
type Engine struct {
	registry storage.Registry
	logger   *slog.Logger
}

// New creates an authorization engine backed by the given registry.
func New(registry storage.Registry, logger *slog.Logger) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{registry: registry, logger: logger}
}

// Permitted reports whether the requester may perform op on the
// resource owned by ownerID under the given category. A requester
// absent from the registry is denied for every category before any
// rule runs; a missing registry denies everything.
func (e *Engine) Permitted(ctx context.Context, requesterID string, category Category, op Operation, ownerID string) bool {
	allowed := e.permitted(ctx, requesterID, category, op, ownerID)

	outcome := "deny"
	if allowed {
		outcome = "allow"
	}
	observability.AuthzDecisionsTotal.WithLabelValues(string(category), outcome).Inc()

	return allowed
}

func (e *Engine) permitted(ctx context.Context, requesterID string, category Category, op Operation, ownerID string) bool {
	tenants, err := e.registry.Tenants(ctx)
	if err != nil {
		e.logger.Error("tenant registry unavailable, denying access",
			"requester", requesterID,
			"error", err,
		)
		return false
	}

	profile, ok := tenants[requesterID]
	if !ok {
		e.logger.Warn("requester not found in tenant registry",
			"requester", requesterID,
			"category", string(category),
			"operation", string(op),
		)
		return false
	}

	return Decide(category, op, requesterID, ownerID, profile.EffectiveRole(), profile.SharedMemories)
}
