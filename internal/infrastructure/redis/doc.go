// Package redis provides the Redis pub/sub backplane for the dispatch node.
//
// When backplane.type is "redis", cluster topics are Redis channels. Topic
// patterns use MQTT wildcard syntax ("+" one level, "#" the rest); they are
// translated to PSUBSCRIBE globs and every delivery is re-checked against
// the original pattern, since a Redis "*" also matches "/".
//
// Publish returns the receiver count reported by PUBLISH, which is what the
// topic bridge hands back to its callers as the listener count.
//
// Both standalone and Redis Cluster deployments are supported through
// redis.UniversalClient (redis.cluster_mode).
//
// # Usage
//
//	bp, err := redis.Connect(ctx, cfg.Redis)
//	if err != nil {
//	    return err
//	}
//	defer bp.Close()
//
//	n, err := bp.Publish(ctx, "graylogic/cluster/node-001/send", envelope)
package redis
