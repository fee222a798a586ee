package service

const (
	ActionIngest = "post.ingest"

	OpFind   = "find"
	OpInsert = "insert"

	// OutcomeUnauthenticated labels ingestions refused for lack of a principal.
	OutcomeUnauthenticated = "unauthenticated"
)
