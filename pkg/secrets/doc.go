// Package secrets resolves the credentials that seat backends and the judge
// model need, so they can stay out of the configuration file.
//
// A configuration value may embed references of the form ${secret:name}:
//
//	seats:
//	  - id: p1
//	    endpoint: http://agents:9000
//	    api_key: ${secret:openai-key}
//
// A Resolver tries its providers in order. EnvProvider reads
// ARBITER_SECRET_OPENAI_KEY; FileProvider reads <dir>/openai-key, the layout
// of a mounted Kubernetes secret, and refuses files readable by anyone but
// the owner. Resolved values are cached for a TTL; a watched secrets
// directory invalidates the cache when a file changes, and the next seat hot
// swap picks up the rotated value.
package secrets
