// Package node bootstraps a Gray Logic field node and runs its control loop.
//
// A node owns one connectivity.Supervisor. Setup checks that the device has
// network credentials (handing over to a Provisioner when it does not),
// attaches the message dispatcher to the transport and records the boot.
// Run then ticks the supervisor and every registered Duty on a fixed
// interval until the context is cancelled:
//
//	n, err := node.New(node.Deps{
//	    Name:              cfg.Node.Name,
//	    Version:           version,
//	    NetworkConfigured: cfg.Network.Configured(),
//	    LoopInterval:      cfg.LoopInterval(),
//	    Supervisor:        sup,
//	    Dispatcher:        disp,
//	})
//	if err := n.Setup(ctx); err != nil {
//	    return err
//	}
//	n.AddDuty(reporter)
//	return n.Run(ctx)
//
// Everything runs on the loop goroutine: the supervisor pumps inbound
// messages, so dispatcher handlers and duties never race each other.
package node
