// Package coordinator refreshes subscribers in the background.
//
// A Coordinator holds a set of Refreshers and refreshes all of them once at
// start and then on every tick. The interval carries a random jitter so that
// several processes watching the same repository do not hit it together.
//
//	c := coordinator.New(coordinator.WithInterval(5 * time.Minute))
//	c.Add(workspace)
//	go func() { _ = c.Start(ctx) }()
//	defer c.Stop()
package coordinator
