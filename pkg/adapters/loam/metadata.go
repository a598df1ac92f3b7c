package loam

// TypeMetadata is the frontmatter of a node type document. The document body
// becomes the type description.
type TypeMetadata struct {
	Tag           string           `json:"tag" mapstructure:"tag"`
	DisplayName   string           `json:"display_name" mapstructure:"display_name"`
	Category      string           `json:"category" mapstructure:"category"`
	AllowSelfLoop bool             `json:"allow_self_loop" mapstructure:"allow_self_loop"`
	Ports         []map[string]any `json:"ports" mapstructure:"ports"`
	Properties    []map[string]any `json:"properties" mapstructure:"properties"`
}
