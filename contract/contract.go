//go:generate go run go.uber.org/mock/mockgen -source=contract.go -destination=../mocks/mock_contract.go -package=mocks
package contract

import (
	"context"
	"reflect"

	"you-chat/domain"
	"you-chat/domain/event"
)

type ISupervisor interface {
	Add(worker ...Worker) ISupervisor
	Run(ctx context.Context)
	Start(ctx context.Context, worker Worker)
	Stop()
}

type WorkerName string

// Worker doesn't protect itself
// Can be silly, focused
type Worker interface {
	Run(ctx context.Context) error
}

// GetWorkerName uses reflection to retrieve the type name of the worker.
// This is used for logging and supervision purposes during worker initialization
// or lifecycle events, avoiding the need for manual naming in the Worker interface.
func GetWorkerName(w Worker) string {
	if w == nil {
		return "NilWorker"
	}
	t := reflect.TypeOf(w)
	for t.Kind() == reflect.Ptr {
		t = t.Elem()
	}
	return t.Name()
}

type EventSink interface {
	Consume(ctx context.Context, e event.DomainEvent) error
}

// IRegistry is the presence registry: the in-memory source of truth for
// which users currently hold a live connection, and through which one.
type IRegistry interface {
	// Register binds userID to connID and its sink unless the user is
	// already present. Returns whether an insertion occurred: a second
	// connection for an already-online user is a no-op, the first
	// registered connection wins until it disconnects.
	Register(userID, connID string, sink EventSink) bool
	// Unregister removes the entry owning connID, if any, and reports
	// whether an entry was removed.
	Unregister(connID string) bool
	Lookup(userID string) (EventSink, bool)
	// Snapshot returns current entries in insertion order.
	Snapshot() []domain.PresenceEntry
	// Sinks returns the sinks of every live connection, for broadcasts.
	Sinks() []EventSink
}
