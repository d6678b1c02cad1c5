package core

import "strings"

// ModelPrefix is the scheme every external model identifier carries.
// External identifiers look like "mindbridge:openai/gpt-4o".
const ModelPrefix = "mindbridge:"

// ModelID is the parsed form of an external model identifier.
type ModelID struct {
	// Provider is the tag selecting the adapter. Matched exactly,
	// case-sensitive: "OpenAI" does not route to "openai".
	Provider string
	// UpstreamModel is passed through to the provider unmodified.
	UpstreamModel string
}

// String reassembles the external identifier.
func (m ModelID) String() string {
	return ModelPrefix + m.Provider + "/" + m.UpstreamModel
}

// ExternalModelID builds the external identifier for a provider tag and
// native model name, as exposed by /v1/models.
func ExternalModelID(tag, upstreamModel string) string {
	return ModelPrefix + tag + "/" + upstreamModel
}

// ParseModelID splits an external model string into its provider tag and
// upstream model name. It does not check that the tag is registered; that
// is the registry's job.
func ParseModelID(model string) (ModelID, error) {
	rest, ok := strings.CutPrefix(model, ModelPrefix)
	if !ok {
		return ModelID{}, NewInvalidModelError("model must start with '" + ModelPrefix + "', got: " + model)
	}

	tag, upstream, ok := strings.Cut(rest, "/")
	if !ok {
		return ModelID{}, NewInvalidModelError("model must be in format '" + ModelPrefix + "provider/model', got: " + model)
	}
	if tag == "" {
		return ModelID{}, NewInvalidModelError("model has an empty provider segment: " + model)
	}
	if upstream == "" {
		return ModelID{}, NewInvalidModelError("model has an empty model segment: " + model)
	}

	return ModelID{Provider: tag, UpstreamModel: upstream}, nil
}
