// Package harness drives a length-escalating echo test against a TCP server.
//
// The driver connects to the server, sends a fixed 8-byte seed and expects an 8-byte reply.
// From then on every request is the previous response, and the reply for test index i must be
// exactly 7+i bytes long, up to the max test index (400 by default). Connect and exchange
// failures consume a fail budget (100 by default); the run fails when the budget is spent.
//
// State Machine:
//
//	BOOTSTRAPPING --seed exchange ok--> RUNNING --index > max--> PASSED
//	      |                                |
//	      +--------budget spent------------+--budget spent / abort--> FAILED
//
// Bootstrapping reconnects on every failure. Running never reconnects: a failed exchange only
// consumes the fail budget, and FailureMode decides what is sent on the next step.
//
// Usage Example:
//
//	cfg, err := harness.NewConfig("127.0.0.1", 6666,
//	    harness.WithTimeout(500*time.Millisecond),
//	    harness.WithStepDelay(2*time.Millisecond),
//	)
//	if err != nil {
//	    // ... handle error ...
//	}
//
//	driver, _ := harness.NewDriver(cfg)
//	report := driver.Run(ctx)
//	fmt.Println(report) // "Test passed" or "Test failed"
package harness
