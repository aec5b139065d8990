// Package backplane opens the cluster backplane selected by
// backplane.type so the node binary and glsend share one code path.
//
// # Usage
//
//	bp, err := backplane.Open(ctx, cfg, log)
//	if err != nil {
//	    return err
//	}
//	defer bp.Close()
//
//	clusters := cluster.NewManager(bp)
package backplane
