package config

import (
	"fmt"
	"sync"

	"cuelang.org/go/cue"
	"cuelang.org/go/cue/cuecontext"
)

// configSchema constrains the JSON view of Config. Durations encode as
// nanoseconds.
const configSchema = `
#Config: {
	server: {
		host:             string
		port:             int & >0 & <=65535
		public_url:       =~"^https?://"
		read_timeout:     int & >=0
		write_timeout:    int & >=0
		shutdown_timeout: int & >0
		allowed_origins:  [...("*" | =~"^https?://[^/]+$")] | null
	}
	origin: {
		base_url:       =~"^https?://[^/]+"
		api_key?:       string
		api_key_header: =~"^[A-Za-z0-9-]+$"
	}
	resolver: {
		probe_timeout:     int & >0 & <=5000000000
		default_extension: =~"^[a-z0-9]+$"
	}
	proxy: {
		default_content_type:    string & !=""
		error_body_limit:        int & >=0 & <=65536
		response_header_timeout: int & >=0
	}
	interceptor: allow_direct_origin: bool
	logging: {
		level:  "trace" | "debug" | "info" | "warn" | "error"
		format: "text" | "json"
	}
	metrics: {
		enabled: bool
		path:    =~"^/"
	}
}
`

var (
	schemaOnce  sync.Once
	schemaCtx   *cue.Context
	schemaValue cue.Value
	schemaErr   error

	// cue.Context is not safe for concurrent use.
	validateMu sync.Mutex
)

func compiledSchema() (*cue.Context, cue.Value, error) {
	schemaOnce.Do(func() {
		schemaCtx = cuecontext.New()
		compiled := schemaCtx.CompileString(configSchema, cue.Filename("streamgate.cue"))
		if err := compiled.Err(); err != nil {
			schemaErr = fmt.Errorf("compile config schema: %w", err)
			return
		}
		schemaValue = compiled.LookupPath(cue.ParsePath("#Config"))
	})
	return schemaCtx, schemaValue, schemaErr
}

// Validate checks a configuration against the embedded CUE schema.
func Validate(cfg *Config) error {
	validateMu.Lock()
	defer validateMu.Unlock()

	ctx, schema, err := compiledSchema()
	if err != nil {
		return err
	}

	value := ctx.Encode(cfg)
	if err := value.Err(); err != nil {
		return fmt.Errorf("encode config: %w", err)
	}

	if err := schema.Unify(value).Validate(cue.Concrete(true)); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}
