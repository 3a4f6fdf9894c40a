// Package dispatch runs blocking command batches over a LAN session.
//
// A batch is enqueued in one call, which also announces it to the device
// with a local registration. Dispatch then waits for each command in
// submission order. Each wait has its own deadline, counted from the
// moment the wait begins:
//
//	results, err := dispatch.New(dispatch.Config{}).Dispatch(ctx, controller,
//	    command.NewGetProperty("Blue_LED"),
//	    command.NewGetProperty("Green_LED"),
//	)
//
// Once one command times out, every later command of the batch fails with
// a timeout error without being waited for. Dispatch itself only fails
// when the batch cannot be submitted.
package dispatch
