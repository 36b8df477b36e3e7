package events

import "time"

// GraphQLStart is emitted before executing a GraphQL operation against a
// freshly built schema.
type GraphQLStart struct {
	Graph         string
	Query         string
	OperationName string
}

// GraphQLFinish is emitted after executing a GraphQL operation.
// Errors holds query-level errors only.
type GraphQLFinish struct {
	Graph         string
	Query         string
	OperationName string
	Errors        []error
	Duration      time.Duration
}
