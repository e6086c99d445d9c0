// Package dynaval converts Go values to and from the tagged attribute values
// of the DynamoDB wire API, and builds AWS SDK for Go v2 requests on top of
// that conversion.
//
// # Tagged Values
//
// Every value on the wire carries one of ten tags: S, N, B, BOOL, NULL, SS,
// NS, BS, L and M. Encode picks the tag from the Go shape:
//   - integers, floats, big numbers and json.Number encode as N
//   - strings encode as S, bools as BOOL, nil values as NULL
//   - byte slices encode as S when they hold valid UTF-8, otherwise as B
//   - slices and arrays encode as L, string-keyed maps as M
//   - Set[T] and map[T]struct{} encode as NS, SS or BS by element
//   - values that are already a types.AttributeValue pass through
//
// Numbers keep their integer or float identity through the round trip:
// floats always encode with a decimal point, and N text without one decodes
// to int64 (or *big.Int when it overflows).
//
//	av, err := dynaval.Encode(map[string]any{"id": 9007199254740993, "score": 1.5})
//	v, err := dynaval.Decode(av) // map[id:9007199254740993 score:1.5]
//
// # Records
//
// Structs are encoded through a capability: either the type implements
// Encodable and Decodable, or a Capability is registered for it.
//
//	dynaval.Derive[User](dynaval.DefaultRegistry, dynaval.Except("password"))
//	item, err := dynaval.EncodeRoot(user)
//	u, err := dynaval.DecodeInto[User](item)
//
// # Tables
//
// Table builds request inputs whose items and keys go through the encoder:
//
//	table := dynaval.NewTable("my-table")
//	putInput, err := table.MarshalPut(user, dynaval.WithCondition(
//	    expression.AttributeNotExists(expression.Name("pk"))))
//	_, err = ddb.PutItem(ctx, putInput)
//
// # Pagination
//
// Built-in pagination support stores cursors in the same table:
//
//	paginator := table.Paginator(ddb)
//	cursor, err := paginator.PageCursor(ctx, lastEvaluatedKey)
//	startKey, err := paginator.StartKey(ctx, cursor)
package dynaval
