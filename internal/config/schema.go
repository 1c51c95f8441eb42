package config

import (
	"net/url"

	"github.com/invopop/jsonschema"
)

// JSONSchema describes the configuration using the yaml field names printed by
// evaluator-cli config show.
func JSONSchema() *jsonschema.Schema {
	reflector := &jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
		ExpandedStruct:            true,
		FieldNameTag:              "yaml",
	}

	schema := reflector.Reflect(&Config{})
	schema.Title = "Evaluator Server Configuration"
	schema.Description = "Environment backed configuration of evaluator-server"
	schema.Version = "1.0.0"
	return schema
}

// Redacted returns a copy safe to print: credentials embedded in connection URLs are masked.
func (c *Config) Redacted() *Config {
	out := *c
	out.DatabaseURL = redactURL(c.DatabaseURL)
	out.RedisURL = redactURL(c.RedisURL)
	return &out
}

func redactURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	return u.Redacted()
}
